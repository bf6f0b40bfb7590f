package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketActivated  EventType = "ticket_activated"
	EventTicketClosed     EventType = "ticket_closed"
	EventTicketRetired    EventType = "ticket_retired"
	EventMemberSanctioned EventType = "member_sanctioned"
)

// Event represents a lifecycle event emitted by the ticket engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ChannelID string      `json:"channel_id"`
	GuildID   string      `json:"guild_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OpenerUserID string `json:"opener_user_id"`
	Label        string `json:"label"`
	NotifyRoleID string `json:"notify_role_id,omitempty"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	ClosedBy string `json:"closed_by"`
	NewName  string `json:"new_name"`
}

// TicketRetiredPayload payload.
type TicketRetiredPayload struct {
	OpenerUserID string `json:"opener_user_id"`
	Reason       string `json:"reason"`
}

// MemberSanctionedPayload payload.
type MemberSanctionedPayload struct {
	UserID string    `json:"user_id"`
	Until  time.Time `json:"until"`
	Reason string    `json:"reason"`
}

// Retirement reasons.
const (
	RetiredStale  = "stale"
	RetiredManual = "manual"
)
