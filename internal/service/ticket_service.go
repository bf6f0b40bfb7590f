package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/config"
	"github.com/spec-kit/ticket-warden/internal/domain"
	"github.com/spec-kit/ticket-warden/internal/events"
	"github.com/spec-kit/ticket-warden/internal/gateway"
	"github.com/spec-kit/ticket-warden/internal/observability"
	"github.com/spec-kit/ticket-warden/internal/repository"
	apperrors "github.com/spec-kit/ticket-warden/pkg/util"
)

const (
	ticketChannelPrefix = "ticket-"
	closedChannelPrefix = "closed-"
	maxChannelNameLen   = 100
)

// TicketService owns the ticket lifecycle: creation, activity, the
// inactivity sweep, closing and retirement.
type TicketService struct {
	store      *repository.TicketStore
	gateway    gateway.Gateway
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	policy     config.TicketPolicyConfig
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      *repository.TicketStore
	Gateway    gateway.Gateway
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Policy     config.TicketPolicyConfig
	// Now defaults to time.Now.
	Now func() time.Time
}

// TicketCreateInput describes a ticket creation request.
type TicketCreateInput struct {
	GuildID      string
	Opener       domain.Opener
	CategoryID   string
	NotifyRoleID string
	Label        string
}

// SweepAction reports what the sweep did with one stale ticket.
type SweepAction struct {
	ChannelID    string
	OpenerUserID string
	Age          time.Duration
	// SanctionedGuilds lists guilds where the timeout was applied.
	SanctionedGuilds []string
	SanctionErrors   []error
	Retired          bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger.Named("tickets"),
		policy:     deps.Policy,
		now:        now,
	}
}

// CreateTicket opens a private channel for the opener under the category and
// starts tracking it.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.TicketRef, error) {
	category, err := s.gateway.ResolveChannel(ctx, input.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("resolve category: %w", err)
	}
	if category == nil || category.Kind != gateway.ChannelCategory {
		return nil, apperrors.NewInvalidCategory(input.CategoryID)
	}
	guildID := input.GuildID
	if guildID == "" {
		guildID = category.GuildID
	}
	if category.GuildID != "" && category.GuildID != guildID {
		return nil, apperrors.NewInvalidCategory(input.CategoryID)
	}

	overwrites := []gateway.PermissionOverwrite{
		{Kind: gateway.TargetEveryone, Deny: gateway.PermissionViewChannel},
		{Kind: gateway.TargetMember, ID: input.Opener.UserID, Allow: gateway.PermissionViewChannel | gateway.PermissionSendMessages},
		{Kind: gateway.TargetSelf, Allow: gateway.PermissionViewChannel | gateway.PermissionSendMessages},
	}
	channel, err := s.gateway.CreateChannel(ctx, guildID, TicketChannelName(input.Opener.Username), category.ID, overwrites)
	if err != nil {
		return nil, fmt.Errorf("create ticket channel: %w", err)
	}

	record := domain.TicketRecord{
		ChannelID:    channel.ID,
		OpenerUserID: input.Opener.UserID,
		CreatedAt:    s.clock(),
		Active:       false,
	}
	if err := s.store.Insert(ctx, record); err != nil {
		// The channel exists and the in-memory store tracks it; the next
		// successful flush persists it.
		s.metrics.Inc(observability.MetricStoreFlushErrors)
		s.logger.Error("ticket created but not persisted",
			zap.String("channel_id", channel.ID), zap.String("user_id", input.Opener.UserID), zap.Error(err))
	}
	s.metrics.Inc(observability.MetricTicketsCreated)
	s.logger.Info("ticket created",
		zap.String("channel_id", channel.ID),
		zap.String("guild_id", guildID),
		zap.String("user_id", input.Opener.UserID),
		zap.String("label", input.Label))

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketCreated,
		ChannelID: channel.ID,
		GuildID:   guildID,
		ActorID:   input.Opener.UserID,
		Payload: events.TicketCreatedPayload{
			OpenerUserID: input.Opener.UserID,
			Label:        input.Label,
			NotifyRoleID: input.NotifyRoleID,
		},
	})
	return &domain.TicketRef{ChannelID: channel.ID, Mention: channel.Mention()}, nil
}

// MarkActive records that a ticket has been attended. Unknown channels and
// tickets that are already active are left untouched.
func (s *TicketService) MarkActive(ctx context.Context, channelID string) (bool, error) {
	changed, err := s.store.MarkActive(ctx, channelID)
	if err != nil {
		s.metrics.Inc(observability.MetricStoreFlushErrors)
	}
	if !changed {
		return false, err
	}
	s.metrics.Inc(observability.MetricTicketsActivated)
	s.publishEvent(ctx, events.Event{Type: events.EventTicketActivated, ChannelID: channelID})
	return true, err
}

// SweepInactive sanctions the openers of stale tickets and retires those
// tickets. It works from a snapshot of the store and re-checks the record
// before each guild's timeout and again before retiring it, so a ticket
// activated mid-sweep stops collecting sanctions and is kept. A timeout
// already in flight when the activation lands is not undone. Sanction
// failures are reported in the returned actions and never stop the sweep.
// When the guild list cannot be fetched nothing is retired and the error is
// returned so the next run retries.
func (s *TicketService) SweepInactive(ctx context.Context, now time.Time) ([]SweepAction, error) {
	now = now.UTC()
	threshold := s.policy.InactivityThreshold

	var (
		guilds  []gateway.GuildRef
		fetched bool
		actions []SweepAction
	)
	for _, record := range s.store.Snapshot() {
		if !record.IsStale(now, threshold) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return actions, err
		}
		current, ok := s.store.Get(record.ChannelID)
		if !ok || !current.IsStale(now, threshold) {
			continue
		}

		if !fetched {
			var err error
			guilds, err = s.gateway.ListGuilds(ctx)
			if err != nil {
				s.logger.Warn("sweep aborted: guild list unavailable", zap.Error(err))
				return actions, fmt.Errorf("list guilds: %w", err)
			}
			fetched = true
		}

		action := SweepAction{
			ChannelID:    current.ChannelID,
			OpenerUserID: current.OpenerUserID,
			Age:          now.Sub(current.CreatedAt),
		}
		s.sanction(ctx, current, guilds, now, &action)

		removed, err := s.store.RemoveIf(ctx, current.ChannelID, func(r domain.TicketRecord) bool { return !r.Active })
		if err != nil {
			s.metrics.Inc(observability.MetricStoreFlushErrors)
		}
		action.Retired = removed
		if removed {
			s.metrics.Inc(observability.MetricTicketsRetired)
			s.logger.Info("stale ticket retired",
				zap.String("channel_id", current.ChannelID),
				zap.String("user_id", current.OpenerUserID),
				zap.Duration("age", action.Age),
				zap.Int("sanctions", len(action.SanctionedGuilds)))
			s.publishEvent(ctx, events.Event{
				Type:      events.EventTicketRetired,
				ChannelID: current.ChannelID,
				Payload:   events.TicketRetiredPayload{OpenerUserID: current.OpenerUserID, Reason: events.RetiredStale},
			})
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func (s *TicketService) sanction(ctx context.Context, record domain.TicketRecord, guilds []gateway.GuildRef, now time.Time, action *SweepAction) {
	until := now.Add(s.policy.SanctionDuration)
	for _, guild := range guilds {
		if current, ok := s.store.Get(record.ChannelID); !ok || !current.IsStale(now, s.policy.InactivityThreshold) {
			s.logger.Info("ticket activated mid-sweep; sanctions stopped",
				zap.String("channel_id", record.ChannelID),
				zap.Int("sanctions", len(action.SanctionedGuilds)))
			return
		}
		member, err := s.gateway.ResolveMember(ctx, guild.ID, record.OpenerUserID)
		if err == nil && member == nil {
			continue
		}
		if err == nil {
			err = s.gateway.TimeoutMember(ctx, *member, until, s.policy.SanctionReason)
		}
		if err != nil {
			sanctionErr := apperrors.NewSanctionFailed(record.OpenerUserID, guild.ID, err)
			action.SanctionErrors = append(action.SanctionErrors, sanctionErr)
			s.metrics.Inc(observability.MetricSanctionsFailed)
			s.logger.Warn("sanction failed",
				zap.String("channel_id", record.ChannelID),
				zap.String("guild_id", guild.ID),
				zap.String("user_id", record.OpenerUserID),
				zap.Error(err))
			continue
		}

		action.SanctionedGuilds = append(action.SanctionedGuilds, guild.ID)
		s.metrics.Inc(observability.MetricSanctionsApplied)
		s.publishEvent(ctx, events.Event{
			Type:      events.EventMemberSanctioned,
			ChannelID: record.ChannelID,
			GuildID:   guild.ID,
			Payload: events.MemberSanctionedPayload{
				UserID: record.OpenerUserID,
				Until:  until,
				Reason: s.policy.SanctionReason,
			},
		})
	}
}

// CloseTicket hides the channel from everyone but the bot and renames it.
// The ticket stays in the store; use RetireTicket to stop tracking it.
func (s *TicketService) CloseTicket(ctx context.Context, channelID, closedBy string) error {
	channel, err := s.gateway.ResolveChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("resolve channel: %w", err)
	}
	if channel == nil {
		return apperrors.NewNotFound("channel", map[string]any{"channel_id": channelID})
	}

	overwrites := []gateway.PermissionOverwrite{
		{Kind: gateway.TargetEveryone, Deny: gateway.PermissionViewChannel},
		{Kind: gateway.TargetSelf, Allow: gateway.PermissionViewChannel | gateway.PermissionSendMessages},
	}
	name := ClosedChannelName(channel.Name)
	if err := s.gateway.EditChannel(ctx, channelID, overwrites, name); err != nil {
		return fmt.Errorf("close channel: %w", err)
	}

	s.metrics.Inc(observability.MetricTicketsClosed)
	s.logger.Info("ticket closed", zap.String("channel_id", channelID), zap.String("closed_by", closedBy))
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketClosed,
		ChannelID: channelID,
		GuildID:   channel.GuildID,
		ActorID:   closedBy,
		Payload:   events.TicketClosedPayload{ClosedBy: closedBy, NewName: name},
	})
	return nil
}

// RetireTicket stops tracking a ticket without touching its channel. It
// reports whether the ticket was tracked.
func (s *TicketService) RetireTicket(ctx context.Context, channelID string) (bool, error) {
	record, ok := s.store.Get(channelID)
	if !ok {
		return false, nil
	}
	removed, err := s.store.Remove(ctx, channelID)
	if err != nil {
		s.metrics.Inc(observability.MetricStoreFlushErrors)
	}
	if removed {
		s.metrics.Inc(observability.MetricTicketsRetired)
		s.logger.Info("ticket retired", zap.String("channel_id", channelID))
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketRetired,
			ChannelID: channelID,
			Payload:   events.TicketRetiredPayload{OpenerUserID: record.OpenerUserID, Reason: events.RetiredManual},
		})
	}
	return removed, err
}

// ListTickets returns every tracked ticket, oldest first.
func (s *TicketService) ListTickets() []domain.TicketRecord {
	return s.store.Snapshot()
}

// IsTracked reports whether channelID is an open ticket.
func (s *TicketService) IsTracked(channelID string) bool {
	return s.store.Contains(channelID)
}

// Policy returns the inactivity policy in force.
func (s *TicketService) Policy() config.TicketPolicyConfig {
	return s.policy
}

// clock returns UTC now at microsecond precision so timestamps survive
// every storage backend unchanged.
func (s *TicketService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// TicketChannelName derives the channel name for a ticket from the opener's
// handle: lowercased, with anything but letters, digits, '_' and '-'
// replaced by '-'.
func TicketChannelName(handle string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(handle) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "user"
	}
	return truncateRunes(ticketChannelPrefix+slug, maxChannelNameLen)
}

// ClosedChannelName prefixes name with "closed-" once.
func ClosedChannelName(name string) string {
	if strings.HasPrefix(name, closedChannelPrefix) {
		return name
	}
	return truncateRunes(closedChannelPrefix+name, maxChannelNameLen)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
