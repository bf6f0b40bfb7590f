package service

import (
	"context"

	"go.uber.org/zap"
)

// InboundMessage is the part of a chat message the observer needs.
type InboundMessage struct {
	ChannelID   string
	AuthorID    string
	AuthorIsBot bool
}

// ActivityObserver marks tickets active when a human writes in them.
type ActivityObserver struct {
	tickets *TicketService
	logger  *zap.Logger
}

// NewActivityObserver creates the observer.
func NewActivityObserver(tickets *TicketService, logger *zap.Logger) *ActivityObserver {
	return &ActivityObserver{tickets: tickets, logger: logger.Named("activity")}
}

// Observe handles one inbound message. Messages from bots, including this
// one, never count as activity.
func (o *ActivityObserver) Observe(ctx context.Context, msg InboundMessage) {
	if msg.AuthorIsBot || msg.ChannelID == "" {
		return
	}
	changed, err := o.tickets.MarkActive(ctx, msg.ChannelID)
	if err != nil {
		o.logger.Error("mark ticket active", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}
	if changed {
		o.logger.Info("ticket attended", zap.String("channel_id", msg.ChannelID), zap.String("user_id", msg.AuthorID))
	}
}
