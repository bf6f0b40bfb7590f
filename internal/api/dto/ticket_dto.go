package dto

import (
	"time"

	"github.com/spec-kit/ticket-warden/internal/domain"
	"github.com/spec-kit/ticket-warden/internal/service"
)

// TicketListQuery captures filters for GET /tickets.
type TicketListQuery struct {
	// StaleOnly limits the list to tickets the next sweep would retire.
	StaleOnly bool
	OpenerID  string
}

// TicketSummary response.
type TicketSummary struct {
	ChannelID    string    `json:"channel_id"`
	OpenerUserID string    `json:"opener_user_id"`
	CreatedAt    time.Time `json:"created_at"`
	Active       bool      `json:"active"`
	AgeSeconds   int64     `json:"age_seconds"`
	Stale        bool      `json:"stale"`
}

// NewTicketSummary renders a record as seen at now.
func NewTicketSummary(record domain.TicketRecord, now time.Time, threshold time.Duration) TicketSummary {
	return TicketSummary{
		ChannelID:    record.ChannelID,
		OpenerUserID: record.OpenerUserID,
		CreatedAt:    record.CreatedAt,
		Active:       record.Active,
		AgeSeconds:   int64(now.Sub(record.CreatedAt) / time.Second),
		Stale:        record.IsStale(now, threshold),
	}
}

// RetireTicketResponse is returned by DELETE /tickets/:channel_id.
type RetireTicketResponse struct {
	ChannelID string `json:"channel_id"`
	Retired   bool   `json:"retired"`
}

// SweepActionSummary describes one ticket handled by a manual sweep.
type SweepActionSummary struct {
	ChannelID        string   `json:"channel_id"`
	OpenerUserID     string   `json:"opener_user_id"`
	AgeSeconds       int64    `json:"age_seconds"`
	SanctionedGuilds []string `json:"sanctioned_guilds"`
	SanctionErrors   []string `json:"sanction_errors,omitempty"`
	Retired          bool     `json:"retired"`
}

// NewSweepActionSummary renders a sweep action.
func NewSweepActionSummary(action service.SweepAction) SweepActionSummary {
	out := SweepActionSummary{
		ChannelID:        action.ChannelID,
		OpenerUserID:     action.OpenerUserID,
		AgeSeconds:       int64(action.Age / time.Second),
		SanctionedGuilds: action.SanctionedGuilds,
		Retired:          action.Retired,
	}
	if out.SanctionedGuilds == nil {
		out.SanctionedGuilds = []string{}
	}
	for _, err := range action.SanctionErrors {
		out.SanctionErrors = append(out.SanctionErrors, err.Error())
	}
	return out
}
