package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spec-kit/ticket-warden/internal/domain"
)

// FileTicketBackend keeps the ticket store in a single JSON document.
type FileTicketBackend struct {
	path string
}

// NewFileTicketBackend returns a backend writing to path.
func NewFileTicketBackend(path string) *FileTicketBackend {
	return &FileTicketBackend{path: path}
}

// Path returns the backing file location.
func (b *FileTicketBackend) Path() string {
	return b.path
}

// LoadTickets reads every record. A missing file yields an empty map. When
// some records cannot be decoded the rest are returned with a
// RECORDS_SKIPPED error, and a copy of the file is kept beside it so the next
// save does not lose them.
func (b *FileTicketBackend) LoadTickets(ctx context.Context) (map[string]domain.TicketRecord, error) {
	docs := map[string]ticketDocument{}
	if _, err := readJSONFile(b.path, &docs); err != nil {
		return map[string]domain.TicketRecord{}, err
	}
	tickets, err := decodeTickets(docs, nil)
	if err != nil {
		copyPath, copyErr := preserveCopy(b.path)
		if copyErr != nil {
			return tickets, errors.Join(err, copyErr)
		}
		return tickets, fmt.Errorf("%w (original kept at %s)", err, filepath.Base(copyPath))
	}
	return tickets, nil
}

// SaveTickets replaces the document with tickets.
func (b *FileTicketBackend) SaveTickets(ctx context.Context, tickets map[string]domain.TicketRecord) error {
	return writeJSONFile(b.path, encodeTickets(tickets))
}

// Ping checks the state directory is reachable.
func (b *FileTicketBackend) Ping(ctx context.Context) error {
	return statDir(b.path)
}

// FileMenuBackend keeps the menu configuration in a JSON document.
type FileMenuBackend struct {
	path string
}

// NewFileMenuBackend returns a backend writing to path.
func NewFileMenuBackend(path string) *FileMenuBackend {
	return &FileMenuBackend{path: path}
}

// LoadMenu returns nil when no menu has been saved yet.
func (b *FileMenuBackend) LoadMenu(ctx context.Context) (*domain.MenuConfig, error) {
	var menu domain.MenuConfig
	found, err := readJSONFile(b.path, &menu)
	if err != nil || !found {
		return nil, err
	}
	return &menu, nil
}

// SaveMenu replaces the menu document.
func (b *FileMenuBackend) SaveMenu(ctx context.Context, menu domain.MenuConfig) error {
	if menu.Buttons == nil {
		menu.Buttons = []domain.MenuButton{}
	}
	return writeJSONFile(b.path, menu)
}

func statDir(path string) error {
	info, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(path))
	}
	return nil
}
