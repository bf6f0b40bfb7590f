// Package discord routes gateway events and interactions to the ticket services.
package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/observability"
	"github.com/spec-kit/ticket-warden/internal/service"
)

// Intents the bot needs: guild and member state for sanctions, and message
// content to observe activity.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent

const handlerTimeout = 30 * time.Second

// API is the subset of the discordgo session used to answer interactions.
type API interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// Starter starts background work once the gateway is ready.
type Starter interface {
	Start(ctx context.Context) error
}

// RouteConfig bundles dependencies for the router.
type RouteConfig struct {
	API            API
	Tickets        *service.TicketService
	Menus          *service.MenuService
	Observer       *service.ActivityObserver
	Sweeper        Starter
	CommandGuildID string
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// Router dispatches gateway events.
type Router struct {
	ctx            context.Context
	api            API
	tickets        *service.TicketService
	menus          *service.MenuService
	observer       *service.ActivityObserver
	sweeper        Starter
	commandGuildID string
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewRouter builds a router whose handlers derive their contexts from ctx.
func NewRouter(ctx context.Context, cfg RouteConfig) *Router {
	return &Router{
		ctx:            ctx,
		api:            cfg.API,
		tickets:        cfg.Tickets,
		menus:          cfg.Menus,
		observer:       cfg.Observer,
		sweeper:        cfg.Sweeper,
		commandGuildID: cfg.CommandGuildID,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger.Named("router"),
	}
}

// Register attaches the router's handlers and intents to a session. Call it
// before opening the session.
func (r *Router) Register(s *discordgo.Session) {
	s.Identify.Intents = Intents
	s.AddHandler(func(_ *discordgo.Session, ev *discordgo.Ready) { r.HandleReady(ev) })
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { r.HandleMessage(m) })
	s.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) { r.HandleInteraction(i) })
}

// HandleReady registers slash commands and starts the sweeper. Ready fires
// again after every reconnect; both steps tolerate that.
func (r *Router) HandleReady(ev *discordgo.Ready) {
	ctx, cancel := context.WithTimeout(r.ctx, handlerTimeout)
	defer cancel()

	appID := ev.User.ID
	if ev.Application != nil && ev.Application.ID != "" {
		appID = ev.Application.ID
	}
	if _, err := r.api.ApplicationCommandBulkOverwrite(appID, r.commandGuildID, Commands(), discordgo.WithContext(ctx)); err != nil {
		r.logger.Error("command registration failed", zap.Error(err))
	}
	if r.sweeper != nil {
		if err := r.sweeper.Start(r.ctx); err != nil {
			r.logger.Error("sweeper start failed", zap.Error(err))
		}
	}
	r.logger.Info("bot online",
		zap.String("user", ev.User.Username),
		zap.String("user_id", ev.User.ID),
		zap.Int("guilds", len(ev.Guilds)))
}

// HandleMessage forwards guild messages to the activity observer.
func (r *Router) HandleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(r.ctx, handlerTimeout)
	defer cancel()

	r.observer.Observe(ctx, service.InboundMessage{
		ChannelID:   m.ChannelID,
		AuthorID:    m.Author.ID,
		AuthorIsBot: m.Author.Bot,
	})
}

// HandleInteraction dispatches slash commands and button presses.
func (r *Router) HandleInteraction(i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(r.ctx, handlerTimeout)
	defer cancel()

	start := time.Now()
	route, err := r.dispatch(ctx, i)
	status := 200
	if err != nil {
		status = 500
		r.logger.Error("interaction failed", zap.String("route", route), zap.Error(err))
	}
	r.metrics.RecordRequest(route, "interaction", status, time.Since(start))
}

func (r *Router) dispatch(ctx context.Context, i *discordgo.InteractionCreate) (string, error) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case CommandSetup:
			return data.Name, r.handleSetup(ctx, i, optionMap(data.Options))
		case CommandCreateMenu:
			return data.Name, r.handleCreateMenu(ctx, i)
		}
		return data.Name, r.reply(i, "❌ Unknown command.")
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		if customID == service.CloseButtonID {
			return "close", r.handleClose(ctx, i)
		}
		if index, ok := service.ParseOpenButton(customID); ok {
			return "open", r.handleOpen(ctx, i, index)
		}
		return "component", nil
	}
	return "other", nil
}
