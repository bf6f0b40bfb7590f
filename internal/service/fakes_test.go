package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/config"
	"github.com/spec-kit/ticket-warden/internal/domain"
	"github.com/spec-kit/ticket-warden/internal/events"
	"github.com/spec-kit/ticket-warden/internal/gateway"
	"github.com/spec-kit/ticket-warden/internal/observability"
	"github.com/spec-kit/ticket-warden/internal/persistence"
	"github.com/spec-kit/ticket-warden/internal/repository"
	apperrors "github.com/spec-kit/ticket-warden/pkg/util"
)

const (
	testGuild    = "guild-1"
	testCategory = "cat-1"
	testLog      = "log-1"
	testRole     = "role-1"
)

type sentMessage struct {
	ChannelID string
	Text      string
	Buttons   []gateway.Button
}

type sentEmbed struct {
	ChannelID string
	Embed     gateway.Embed
}

type createCall struct {
	GuildID    string
	Name       string
	CategoryID string
	Overwrites []gateway.PermissionOverwrite
}

type editCall struct {
	ChannelID  string
	Overwrites []gateway.PermissionOverwrite
	Name       string
}

type fakeGateway struct {
	mu       sync.Mutex
	nextID   int
	channels map[string]gateway.ChannelRef
	roles    map[string]gateway.RoleRef
	members  map[string]map[string]bool
	guilds   []gateway.GuildRef

	created  []createCall
	edits    []editCall
	messages []sentMessage
	embeds   []sentEmbed
	timeouts []gateway.MemberRef

	createErr  error
	timeoutErr error
	listErr    error
	onTimeout  func(gateway.MemberRef)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		channels: map[string]gateway.ChannelRef{
			testCategory: {ID: testCategory, GuildID: testGuild, Name: "Tickets", Kind: gateway.ChannelCategory},
			testLog:      {ID: testLog, GuildID: testGuild, Name: "ticket-log", Kind: gateway.ChannelText},
		},
		roles:   map[string]gateway.RoleRef{testGuild + "/" + testRole: {ID: testRole, GuildID: testGuild, Name: "Support"}},
		members: map[string]map[string]bool{testGuild: {}},
		guilds:  []gateway.GuildRef{{ID: testGuild, Name: "Guild One"}},
	}
}

func (f *fakeGateway) addMember(guildID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[guildID] == nil {
		f.members[guildID] = map[string]bool{}
	}
	f.members[guildID][userID] = true
}

func (f *fakeGateway) CreateChannel(_ context.Context, guildID, name, categoryID string, overwrites []gateway.PermissionOverwrite) (gateway.ChannelRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return gateway.ChannelRef{}, f.createErr
	}
	f.nextID++
	ch := gateway.ChannelRef{ID: fmt.Sprintf("chan-%d", f.nextID), GuildID: guildID, Name: name, Kind: gateway.ChannelText}
	f.channels[ch.ID] = ch
	f.created = append(f.created, createCall{GuildID: guildID, Name: name, CategoryID: categoryID, Overwrites: overwrites})
	return ch, nil
}

func (f *fakeGateway) EditChannel(_ context.Context, channelID string, overwrites []gateway.PermissionOverwrite, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return apperrors.NewNotFound("channel", nil)
	}
	if name != "" {
		ch.Name = name
		f.channels[channelID] = ch
	}
	f.edits = append(f.edits, editCall{ChannelID: channelID, Overwrites: overwrites, Name: name})
	return nil
}

func (f *fakeGateway) SendMessage(_ context.Context, channelID, text string, buttons []gateway.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{ChannelID: channelID, Text: text, Buttons: buttons})
	return nil
}

func (f *fakeGateway) SendEmbed(_ context.Context, channelID string, embed gateway.Embed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds = append(f.embeds, sentEmbed{ChannelID: channelID, Embed: embed})
	return nil
}

func (f *fakeGateway) ResolveChannel(_ context.Context, channelID string) (*gateway.ChannelRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (f *fakeGateway) ResolveRole(_ context.Context, guildID, roleID string) (*gateway.RoleRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[guildID+"/"+roleID]
	if !ok {
		return nil, nil
	}
	return &role, nil
}

func (f *fakeGateway) ResolveMember(_ context.Context, guildID, userID string) (*gateway.MemberRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.members[guildID][userID] {
		return nil, nil
	}
	return &gateway.MemberRef{GuildID: guildID, UserID: userID}, nil
}

func (f *fakeGateway) TimeoutMember(_ context.Context, member gateway.MemberRef, _ time.Time, _ string) error {
	f.mu.Lock()
	f.timeouts = append(f.timeouts, member)
	hook, err := f.onTimeout, f.timeoutErr
	f.mu.Unlock()

	if hook != nil {
		hook(member)
	}
	return err
}

func (f *fakeGateway) ListGuilds(_ context.Context) ([]gateway.GuildRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]gateway.GuildRef(nil), f.guilds...), nil
}

func (f *fakeGateway) messagesIn(channelID string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.messages {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeGateway) timeoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timeouts)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	gw       *fakeGateway
	clock    *fakeClock
	store    *repository.TicketStore
	metrics  *observability.Metrics
	tickets  *TicketService
	menus    *MenuService
	observer *ActivityObserver
	dataPath string
	menuPath string
}

var testPolicy = config.TicketPolicyConfig{
	InactivityThreshold: 6 * time.Hour,
	SanctionDuration:    24 * time.Hour,
	SweepInterval:       5 * time.Minute,
	SanctionReason:      "Ticket spam with no stated reason",
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		gw:       newFakeGateway(),
		clock:    &fakeClock{now: time.Date(2026, 5, 1, 8, 0, 0, 123456789, time.UTC)},
		metrics:  observability.NewMetrics(),
		dataPath: filepath.Join(dir, "ticket_data.json"),
		menuPath: filepath.Join(dir, "ticket_config.json"),
	}
	h.store = repository.NewTicketStore(persistence.NewFileTicketBackend(h.dataPath), zap.NewNop())
	require.NoError(t, h.store.Load(context.Background()))
	h.wire(h.store)
	return h
}

func (h *harness) wire(store *repository.TicketStore) {
	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher(logger)
	NewNotificationService(dispatcher, h.gw, logger, config.DiscordConfig{LogChannelID: testLog}, testPolicy).RegisterHandlers()

	h.store = store
	h.tickets = NewTicketService(TicketDependencies{
		Store:      store,
		Gateway:    h.gw,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
		Logger:     logger,
		Policy:     testPolicy,
		Now:        h.clock.Now,
	})
	menus := repository.NewMenuRepository(persistence.NewFileMenuBackend(h.menuPath), testCategory, logger)
	h.menus = NewMenuService(menus, h.tickets, h.gw, logger)
	h.observer = NewActivityObserver(h.tickets, logger)
}

func (h *harness) openTicket(t *testing.T, userID, username string) string {
	t.Helper()
	h.gw.addMember(testGuild, userID)
	ref, err := h.tickets.CreateTicket(context.Background(), TicketCreateInput{
		GuildID:      testGuild,
		Opener:       domain.Opener{UserID: userID, Username: username},
		CategoryID:   testCategory,
		NotifyRoleID: testRole,
		Label:        "Support",
	})
	require.NoError(t, err)
	return ref.ChannelID
}
