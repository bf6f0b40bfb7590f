package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/domain"
	"github.com/spec-kit/ticket-warden/internal/gateway"
	"github.com/spec-kit/ticket-warden/internal/repository"
	apperrors "github.com/spec-kit/ticket-warden/pkg/util"
)

const maxButtonLabelLen = 80

// MenuService manages the ticket menu and opens tickets from its buttons.
type MenuService struct {
	menus   *repository.MenuRepository
	tickets *TicketService
	gateway gateway.Gateway
	logger  *zap.Logger
}

// NewMenuService creates the service.
func NewMenuService(menus *repository.MenuRepository, tickets *TicketService, gw gateway.Gateway, logger *zap.Logger) *MenuService {
	return &MenuService{
		menus:   menus,
		tickets: tickets,
		gateway: gw,
		logger:  logger.Named("menu"),
	}
}

// AddButton appends a button to the menu. Only administrators may call it.
func (m *MenuService) AddButton(ctx context.Context, actor domain.Actor, label, roleID string) (domain.MenuButton, error) {
	if !actor.IsAdmin {
		return domain.MenuButton{}, apperrors.NewPermissionDenied("setup requires administrator")
	}
	label = strings.TrimSpace(label)
	if label == "" || utf8.RuneCountInString(label) > maxButtonLabelLen {
		return domain.MenuButton{}, apperrors.NewValidationError("invalid button label", map[string]any{"label": label, "max_length": maxButtonLabelLen})
	}
	if strings.TrimSpace(roleID) == "" {
		return domain.MenuButton{}, apperrors.NewValidationError("role is required", nil)
	}

	button := domain.MenuButton{Label: label, RoleID: roleID}
	menu, err := m.menus.AppendButton(ctx, button)
	if err != nil {
		return button, err
	}
	m.logger.Info("menu button added",
		zap.String("label", label),
		zap.String("role_id", roleID),
		zap.String("user_id", actor.UserID),
		zap.Int("buttons", len(menu.Buttons)))
	return button, nil
}

// PostMenu publishes the menu into channelID. Only administrators may call
// it and the menu must have at least one button.
func (m *MenuService) PostMenu(ctx context.Context, actor domain.Actor, channelID string) error {
	if !actor.IsAdmin {
		return apperrors.NewPermissionDenied("create-ticket-menu requires administrator")
	}
	menu := m.menus.Get(ctx)
	if len(menu.Buttons) == 0 {
		return apperrors.NewNoButtonsConfigured()
	}

	buttons := make([]gateway.Button, 0, len(menu.Buttons))
	for i, b := range menu.Buttons {
		buttons = append(buttons, gateway.Button{
			Label:    b.Label,
			CustomID: OpenButtonPrefix + strconv.Itoa(i),
			Style:    gateway.ButtonSuccess,
		})
	}
	if err := m.gateway.SendMessage(ctx, channelID, "🎫 Press a button below to open a ticket:", buttons); err != nil {
		return fmt.Errorf("post ticket menu: %w", err)
	}
	m.logger.Info("menu posted", zap.String("channel_id", channelID), zap.Int("buttons", len(buttons)))
	return nil
}

// OpenFromButton opens a ticket for the menu button at index. Indexes refer
// to the menu as currently stored.
func (m *MenuService) OpenFromButton(ctx context.Context, actor domain.Actor, index int) (*domain.TicketRef, error) {
	menu := m.menus.Get(ctx)
	button, ok := menu.Button(index)
	if !ok {
		return nil, apperrors.NewNotFound("menu button", map[string]any{"index": index})
	}
	return m.tickets.CreateTicket(ctx, TicketCreateInput{
		GuildID:      actor.GuildID,
		Opener:       actor.Opener(),
		CategoryID:   menu.CategoryID,
		NotifyRoleID: button.RoleID,
		Label:        button.Label,
	})
}

// ParseOpenButton extracts the menu index from an open-ticket custom ID.
func ParseOpenButton(customID string) (int, bool) {
	raw, ok := strings.CutPrefix(customID, OpenButtonPrefix)
	if !ok {
		return 0, false
	}
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}
