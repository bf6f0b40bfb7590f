package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/config"
	"github.com/spec-kit/ticket-warden/internal/events"
	"github.com/spec-kit/ticket-warden/internal/gateway"
)

// Custom IDs carried by the bot's buttons.
const (
	CloseButtonID    = "ticket:close"
	OpenButtonPrefix = "ticket:open:"
)

// NotificationService turns ticket events into chat messages: the greeting
// and close prompt inside a new ticket, and audit entries in the log channel.
type NotificationService struct {
	dispatcher   events.Dispatcher
	gateway      gateway.Gateway
	logger       *zap.Logger
	logChannelID string
	policy       config.TicketPolicyConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, gw gateway.Gateway, logger *zap.Logger, discord config.DiscordConfig, policy config.TicketPolicyConfig) *NotificationService {
	return &NotificationService{
		dispatcher:   dispatcher,
		gateway:      gw,
		logger:       logger.Named("notifications"),
		logChannelID: strings.TrimSpace(discord.LogChannelID),
		policy:       policy,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketActivated, n.handleTicketActivated)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventTicketRetired, n.handleTicketRetired)
	n.dispatcher.Subscribe(events.EventMemberSanctioned, n.handleMemberSanctioned)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	var errs []error
	if payload.NotifyRoleID != "" {
		role, err := n.gateway.ResolveRole(ctx, event.GuildID, payload.NotifyRoleID)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("resolve notify role: %w", err))
		case role != nil:
			text := fmt.Sprintf("%s opened a ticket! Ping %s", gateway.UserMention(payload.OpenerUserID), role.Mention())
			if err := n.gateway.SendMessage(ctx, event.ChannelID, text, nil); err != nil {
				errs = append(errs, fmt.Errorf("send role ping: %w", err))
			}
		}
	}

	closeButton := []gateway.Button{{Label: "🔒 Close Ticket", CustomID: CloseButtonID, Style: gateway.ButtonDanger}}
	if err := n.gateway.SendMessage(ctx, event.ChannelID, "🔒 Press the button below to close the ticket:", closeButton); err != nil {
		errs = append(errs, fmt.Errorf("send close prompt: %w", err))
	}

	if err := n.sendLogEmbed(ctx, gateway.Embed{
		Title: "🎫 Ticket Created",
		Description: fmt.Sprintf("Opened by: %s\nType: **%s**\nChannel: %s",
			gateway.UserMention(payload.OpenerUserID), payload.Label, gateway.ChannelMention(event.ChannelID)),
		Color: gateway.ColorGreen,
	}); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (n *NotificationService) handleTicketActivated(_ context.Context, event events.Event) error {
	n.logger.Debug("TicketActivated", zap.String("channel_id", event.ChannelID))
	return nil
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketClosedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return n.sendLogEmbed(ctx, gateway.Embed{
		Title: "🔒 Ticket Closed",
		Description: fmt.Sprintf("Ticket %s was closed by %s",
			gateway.ChannelMention(event.ChannelID), gateway.UserMention(payload.ClosedBy)),
		Color: gateway.ColorRed,
	})
}

func (n *NotificationService) handleTicketRetired(_ context.Context, event events.Event) error {
	n.logger.Debug("TicketRetired", zap.String("channel_id", event.ChannelID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleMemberSanctioned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MemberSanctionedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if n.logChannelID == "" {
		return nil
	}
	text := fmt.Sprintf("⚠️ %s has been muted for %s for opening a ticket with no stated reason!",
		gateway.UserMention(payload.UserID), humanDuration(n.policy.SanctionDuration))
	if err := n.gateway.SendMessage(ctx, n.logChannelID, text, nil); err != nil {
		return fmt.Errorf("send sanction notice: %w", err)
	}
	return nil
}

func (n *NotificationService) sendLogEmbed(ctx context.Context, embed gateway.Embed) error {
	if n.logChannelID == "" {
		return nil
	}
	if err := n.gateway.SendEmbed(ctx, n.logChannelID, embed); err != nil {
		return fmt.Errorf("send log embed: %w", err)
	}
	return nil
}

// humanDuration renders whole days and hours as words, falling back to
// Duration.String for anything finer.
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d > 0 && d%(24*time.Hour) == 0:
		return plural(int64(d/(24*time.Hour)), "day")
	case d > 0 && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	default:
		return d.String()
	}
}
