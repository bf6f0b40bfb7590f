package domain

import "time"

// TicketRecord is the persisted state of one open ticket, keyed by its channel.
type TicketRecord struct {
	ChannelID    string
	OpenerUserID string
	CreatedAt    time.Time
	// Active flips to true on the first non-bot message and never reverts.
	Active bool
}

// IsStale reports whether the ticket was never attended and is older than threshold.
func (t TicketRecord) IsStale(now time.Time, threshold time.Duration) bool {
	return !t.Active && now.Sub(t.CreatedAt) > threshold
}

// TicketRef points at a ticket channel on the chat platform.
type TicketRef struct {
	ChannelID string
	Mention   string
}

// Opener identifies the user opening a ticket.
type Opener struct {
	UserID   string
	Username string
}
