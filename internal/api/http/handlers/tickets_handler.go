package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-warden/internal/api/dto"
	"github.com/spec-kit/ticket-warden/internal/service"
	apperrors "github.com/spec-kit/ticket-warden/pkg/util"
)

// SweepTrigger runs a sweep on demand.
type SweepTrigger interface {
	RunOnce(ctx context.Context) ([]service.SweepAction, bool, error)
}

// TicketsHandler exposes the ticket store to operators.
type TicketsHandler struct {
	service *service.TicketService
	sweeper SweepTrigger
	now     func() time.Time
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, sweeper SweepTrigger) *TicketsHandler {
	return &TicketsHandler{service: ticketService, sweeper: sweeper, now: time.Now}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	now := h.now().UTC()
	threshold := h.service.Policy().InactivityThreshold

	items := make([]dto.TicketSummary, 0)
	for _, record := range h.service.ListTickets() {
		if query.OpenerID != "" && record.OpenerUserID != query.OpenerID {
			continue
		}
		summary := dto.NewTicketSummary(record, now, threshold)
		if query.StaleOnly && !summary.Stale {
			continue
		}
		items = append(items, summary)
	}
	return c.JSON(fiber.Map{"data": items, "count": len(items)})
}

// RetireTicket DELETE /tickets/:channel_id.
func (h *TicketsHandler) RetireTicket(c *fiber.Ctx) error {
	channelID := strings.TrimSpace(c.Params("channel_id"))
	if channelID == "" {
		return apperrors.NewValidationError("channel_id required", nil)
	}
	removed, err := h.service.RetireTicket(c.UserContext(), channelID)
	if err != nil && !removed {
		return err
	}
	if !removed {
		return apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}
	// A flush failure after removal still retired the ticket in memory.
	resp := fiber.Map{"data": dto.RetireTicketResponse{ChannelID: channelID, Retired: true}}
	if err != nil {
		resp["warning"] = apperrors.ToDomainError(err).Code
	}
	return c.JSON(resp)
}

// RunSweep POST /sweeps.
func (h *TicketsHandler) RunSweep(c *fiber.Ctx) error {
	actions, ran, err := h.sweeper.RunOnce(c.UserContext())
	if !ran {
		return apperrors.NewDomainError("SWEEP_IN_PROGRESS", "a sweep is already running", fiber.StatusConflict, nil)
	}
	items := make([]dto.SweepActionSummary, 0, len(actions))
	for _, action := range actions {
		items = append(items, dto.NewSweepActionSummary(action))
	}
	if err != nil {
		return apperrors.NewGatewayUnavailable(err)
	}
	return c.JSON(fiber.Map{"data": items, "count": len(items)})
}

func parseTicketQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	query := dto.TicketListQuery{OpenerID: strings.TrimSpace(c.Query("opener_id"))}
	if raw := c.Query("stale"); raw != "" {
		stale, err := strconv.ParseBool(raw)
		if err != nil {
			return query, apperrors.NewValidationError("stale must be a boolean", map[string]any{"stale": raw})
		}
		query.StaleOnly = stale
	}
	return query, nil
}
