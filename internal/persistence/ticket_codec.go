package persistence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/ticket-warden/internal/domain"
	apperrors "github.com/spec-kit/ticket-warden/pkg/util"
)

// naiveISOLayout matches timestamps written without an offset, which older
// ticket files carry. They are read as UTC.
const naiveISOLayout = "2006-01-02T15:04:05.999999999"

// ticketDocument is the persisted form of a TicketRecord; the channel ID is
// the surrounding map key.
type ticketDocument struct {
	UserID    domain.Snowflake `json:"user_id"`
	CreatedAt string           `json:"created_at"`
	Active    bool             `json:"active"`
}

func encodeTicket(record domain.TicketRecord) ticketDocument {
	return ticketDocument{
		UserID:    domain.Snowflake(record.OpenerUserID),
		CreatedAt: formatTimestamp(record.CreatedAt),
		Active:    record.Active,
	}
}

func decodeTicket(channelID string, doc ticketDocument) (domain.TicketRecord, error) {
	createdAt, err := parseTimestamp(doc.CreatedAt)
	if err != nil {
		return domain.TicketRecord{}, fmt.Errorf("ticket %s: %w", channelID, err)
	}
	return domain.TicketRecord{
		ChannelID:    channelID,
		OpenerUserID: string(doc.UserID),
		CreatedAt:    createdAt,
		Active:       doc.Active,
	}, nil
}

func encodeTickets(tickets map[string]domain.TicketRecord) map[string]ticketDocument {
	docs := make(map[string]ticketDocument, len(tickets))
	for id, record := range tickets {
		docs[id] = encodeTicket(record)
	}
	return docs
}

// decodeTickets decodes every readable record. Unreadable ones are left out
// and reported together as a RECORDS_SKIPPED error alongside the rest.
func decodeTickets(docs map[string]ticketDocument, skipped map[string]error) (map[string]domain.TicketRecord, error) {
	tickets := make(map[string]domain.TicketRecord, len(docs))
	if skipped == nil {
		skipped = make(map[string]error)
	}
	for id, doc := range docs {
		record, err := decodeTicket(id, doc)
		if err != nil {
			skipped[id] = err
			continue
		}
		tickets[id] = record
	}
	return tickets, skippedError(skipped)
}

func skippedError(skipped map[string]error) error {
	if len(skipped) == 0 {
		return nil
	}
	ids := make([]string, 0, len(skipped))
	for id := range skipped {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, skipped[id])
	}
	return apperrors.NewRecordsSkipped(ids, errors.Join(errs...))
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(naiveISOLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid created_at %q", value)
	}
	return t, nil
}
