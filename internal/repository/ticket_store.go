package repository

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/domain"
	apperrors "github.com/spec-kit/ticket-warden/pkg/util"
)

// TicketBackend persists the full ticket set.
type TicketBackend interface {
	LoadTickets(ctx context.Context) (map[string]domain.TicketRecord, error)
	SaveTickets(ctx context.Context, tickets map[string]domain.TicketRecord) error
}

// TicketStore is the authoritative in-memory set of open tickets. Mutations
// take mu only for the in-memory change. Writes to the backend are serialized
// by writeMu and always carry the newest state, so a slow backend never
// blocks readers and an older state never overwrites a newer one.
//
// Until a load succeeds the store does not trust the backend to be empty:
// each flush first retries the load, merges what it finds, and writes
// nothing if the backend is still unreadable.
type TicketStore struct {
	mu      sync.Mutex
	tickets map[string]domain.TicketRecord
	// removed tracks deletions made while unsynced, so a later merge does
	// not resurrect them.
	removed map[string]struct{}
	synced  bool
	version uint64

	writeMu sync.Mutex
	written uint64

	backend TicketBackend
	logger  *zap.Logger
}

// NewTicketStore builds an empty store; call Load to hydrate it.
func NewTicketStore(backend TicketBackend, logger *zap.Logger) *TicketStore {
	return &TicketStore{
		tickets: make(map[string]domain.TicketRecord),
		removed: make(map[string]struct{}),
		backend: backend,
		logger:  logger.Named("ticket_store"),
	}
}

// Load replaces the in-memory set with the backend's contents. Records the
// backend could not decode are skipped and logged. When the backend cannot
// be read at all the store starts empty, withholds writes until a later
// flush manages to load, and a STORE_IO error is returned for the caller to
// report.
func (s *TicketStore) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	loaded, err := s.backend.LoadTickets(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && !errors.Is(err, apperrors.ErrRecordsSkipped) {
		s.tickets = make(map[string]domain.TicketRecord)
		s.removed = make(map[string]struct{})
		s.synced = false
		s.logger.Error("ticket store unreadable; starting empty, writes withheld", zap.Error(err))
		return apperrors.NewStoreIOError("load ticket store", err)
	}
	if err != nil {
		s.logger.Warn("unreadable ticket records skipped", zap.Error(err))
	}
	if loaded == nil {
		loaded = make(map[string]domain.TicketRecord)
	}
	s.tickets = loaded
	s.removed = make(map[string]struct{})
	s.synced = true
	s.version++
	s.written = s.version
	s.logger.Info("ticket store loaded", zap.Int("tickets", len(loaded)))
	return nil
}

// Insert adds or replaces the record for its channel.
func (s *TicketStore) Insert(ctx context.Context, record domain.TicketRecord) error {
	s.mu.Lock()
	s.tickets[record.ChannelID] = record
	s.version++
	s.mu.Unlock()
	return s.flush(ctx)
}

// MarkActive sets the active flag. It reports whether anything changed;
// unknown and already-active channels are left alone and nothing is written.
func (s *TicketStore) MarkActive(ctx context.Context, channelID string) (bool, error) {
	s.mu.Lock()
	record, ok := s.tickets[channelID]
	if !ok || record.Active {
		s.mu.Unlock()
		return false, nil
	}
	record.Active = true
	s.tickets[channelID] = record
	s.version++
	s.mu.Unlock()
	return true, s.flush(ctx)
}

// Remove stops tracking channelID. It reports whether a record existed.
func (s *TicketStore) Remove(ctx context.Context, channelID string) (bool, error) {
	return s.RemoveIf(ctx, channelID, nil)
}

// RemoveIf removes the record only when keep is nil or returns true for its
// current state.
func (s *TicketStore) RemoveIf(ctx context.Context, channelID string, keep func(domain.TicketRecord) bool) (bool, error) {
	s.mu.Lock()
	record, ok := s.tickets[channelID]
	if !ok || (keep != nil && !keep(record)) {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.tickets, channelID)
	if !s.synced {
		s.removed[channelID] = struct{}{}
	}
	s.version++
	s.mu.Unlock()
	return true, s.flush(ctx)
}

// Get returns the record for channelID.
func (s *TicketStore) Get(channelID string) (domain.TicketRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tickets[channelID]
	return record, ok
}

// Contains reports whether channelID is a tracked ticket.
func (s *TicketStore) Contains(channelID string) bool {
	_, ok := s.Get(channelID)
	return ok
}

// Snapshot copies every record, oldest first.
func (s *TicketStore) Snapshot() []domain.TicketRecord {
	s.mu.Lock()
	records := make([]domain.TicketRecord, 0, len(s.tickets))
	for _, record := range s.tickets {
		records = append(records, record)
	}
	s.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ChannelID < records[j].ChannelID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records
}

// Len returns the number of tracked tickets.
func (s *TicketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

// flush writes the newest state unless a concurrent flush already did. The
// in-memory change is kept even when the write fails; the next successful
// flush carries it.
func (s *TicketStore) flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.syncLocked(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	version := s.version
	snapshot := maps.Clone(s.tickets)
	s.mu.Unlock()
	if version <= s.written {
		return nil
	}

	if err := s.backend.SaveTickets(ctx, snapshot); err != nil {
		s.logger.Error("ticket store flush failed", zap.Int("tickets", len(snapshot)), zap.Error(err))
		return apperrors.NewStoreIOError("flush ticket store", err)
	}
	s.written = version
	return nil
}

// syncLocked retries the load for a store that has never loaded, merging
// persisted records that were neither seen nor removed in memory. Callers
// hold writeMu.
func (s *TicketStore) syncLocked(ctx context.Context) error {
	s.mu.Lock()
	synced := s.synced
	s.mu.Unlock()
	if synced {
		return nil
	}

	persisted, err := s.backend.LoadTickets(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrRecordsSkipped) {
		s.logger.Warn("ticket store still unreadable; write withheld", zap.Error(err))
		return apperrors.NewStoreIOError("ticket store not loaded; write withheld", err)
	}
	if err != nil {
		s.logger.Warn("unreadable ticket records skipped", zap.Error(err))
	}

	s.mu.Lock()
	merged := 0
	for id, record := range persisted {
		if _, ok := s.tickets[id]; ok {
			continue
		}
		if _, gone := s.removed[id]; gone {
			continue
		}
		s.tickets[id] = record
		merged++
	}
	s.removed = make(map[string]struct{})
	s.synced = true
	s.version++
	s.mu.Unlock()

	s.logger.Info("ticket store synced", zap.Int("merged", merged))
	return nil
}
