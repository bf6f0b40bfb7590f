package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-warden/internal/domain"
	apperrors "github.com/spec-kit/ticket-warden/pkg/util"
)

func TestFileTicketBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewFileTicketBackend(filepath.Join(t.TempDir(), "ticket_data.json"))

	created := time.Date(2026, 3, 4, 5, 6, 7, 123456789, time.UTC)
	tickets := map[string]domain.TicketRecord{
		"100": {ChannelID: "100", OpenerUserID: "7", CreatedAt: created, Active: false},
		"200": {ChannelID: "200", OpenerUserID: "8", CreatedAt: created.Add(time.Hour), Active: true},
	}
	require.NoError(t, backend.SaveTickets(ctx, tickets))

	loaded, err := backend.LoadTickets(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for id, want := range tickets {
		got := loaded[id]
		assert.Equal(t, want.ChannelID, got.ChannelID)
		assert.Equal(t, want.OpenerUserID, got.OpenerUserID)
		assert.Equal(t, want.Active, got.Active)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %s != %s", want.CreatedAt, got.CreatedAt)
		assert.Equal(t, time.UTC, got.CreatedAt.Location())
	}
}

func TestFileTicketBackendMissingFileIsEmpty(t *testing.T) {
	backend := NewFileTicketBackend(filepath.Join(t.TempDir(), "absent.json"))

	loaded, err := backend.LoadTickets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileTicketBackendReadsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticket_data.json")
	legacy := `{
    "1421823728936816999": {
        "user_id": 381234567890123456,
        "created_at": "2025-09-28T10:15:30.123456",
        "active": false
    }
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	loaded, err := NewFileTicketBackend(path).LoadTickets(context.Background())
	require.NoError(t, err)

	record := loaded["1421823728936816999"]
	assert.Equal(t, "381234567890123456", record.OpenerUserID)
	assert.Equal(t, time.Date(2025, 9, 28, 10, 15, 30, 123456000, time.UTC), record.CreatedAt)
	assert.False(t, record.Active)
}

func TestFileTicketBackendQuarantinesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ticket_data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	loaded, err := NewFileTicketBackend(path).LoadTickets(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))
	assert.Empty(t, loaded)

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	matches, _ := filepath.Glob(filepath.Join(dir, "ticket_data.json.corrupt-*"))
	assert.Len(t, matches, 1)
}

func TestFileTicketBackendLeavesNoTemporaryFile(t *testing.T) {
	dir := t.TempDir()
	backend := NewFileTicketBackend(filepath.Join(dir, "ticket_data.json"))
	require.NoError(t, backend.SaveTickets(context.Background(), map[string]domain.TicketRecord{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ticket_data.json", entries[0].Name())
	require.NoError(t, backend.Ping(context.Background()))
}

func TestFileMenuBackend(t *testing.T) {
	ctx := context.Background()
	backend := NewFileMenuBackend(filepath.Join(t.TempDir(), "nested", "ticket_config.json"))

	menu, err := backend.LoadMenu(ctx)
	require.NoError(t, err)
	assert.Nil(t, menu)

	want := domain.MenuConfig{
		Buttons:    []domain.MenuButton{{Label: "Support", RoleID: "11"}, {Label: "Support", RoleID: "11"}},
		CategoryID: "99",
	}
	require.NoError(t, backend.SaveMenu(ctx, want))

	menu, err = backend.LoadMenu(ctx)
	require.NoError(t, err)
	require.NotNil(t, menu)
	assert.Equal(t, want, *menu)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339 utc", input: "2026-01-02T03:04:05.000000006Z", want: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)},
		{name: "rfc3339 offset", input: "2026-01-02T05:04:05+02:00", want: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{name: "naive", input: "2026-01-02T03:04:05", want: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimestamp(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestFileTicketBackendSkipsUnreadableRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ticket_data.json")
	doc := `{
    "111": {"user_id": 1, "created_at": "2026-05-01T08:00:00Z", "active": false},
    "222": {"user_id": "2", "created_at": "2026-05-01T09:00:00.123456", "active": true},
    "333": {"user_id": 3, "created_at": "yesterday", "active": false}
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	loaded, err := NewFileTicketBackend(path).LoadTickets(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrRecordsSkipped))
	assert.Len(t, loaded, 2)
	assert.Contains(t, loaded, "111")
	assert.Contains(t, loaded, "222")
	assert.NotContains(t, loaded, "333")

	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, []string{"333"}, domainErr.Details["skipped"])

	original, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, string(original))
	matches, _ := filepath.Glob(filepath.Join(dir, "ticket_data.json.corrupt-*"))
	require.Len(t, matches, 1)
	kept, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(kept), `"333"`)
}

func TestFileMenuBackendReadsNumericIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticket_config.json")
	legacy := `{"buttons":[{"label":"Support","role_id":1413442389422637001}],"category_id":1421823728936816750}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	menu, err := NewFileMenuBackend(path).LoadMenu(context.Background())
	require.NoError(t, err)
	require.NotNil(t, menu)
	require.Len(t, menu.Buttons, 1)
	assert.Equal(t, domain.MenuButton{Label: "Support", RoleID: "1413442389422637001"}, menu.Buttons[0])
	assert.Equal(t, "1421823728936816750", menu.CategoryID)
}
