package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	discordapi "github.com/spec-kit/ticket-warden/internal/api/discord"
	httptransport "github.com/spec-kit/ticket-warden/internal/api/http"
	"github.com/spec-kit/ticket-warden/internal/api/http/handlers"
	"github.com/spec-kit/ticket-warden/internal/auth"
	"github.com/spec-kit/ticket-warden/internal/config"
	"github.com/spec-kit/ticket-warden/internal/events"
	"github.com/spec-kit/ticket-warden/internal/gateway"
	"github.com/spec-kit/ticket-warden/internal/observability"
	"github.com/spec-kit/ticket-warden/internal/repository"
	"github.com/spec-kit/ticket-warden/internal/service"
	"github.com/spec-kit/ticket-warden/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Discord.Token == "" {
		logger.Fatal("DISCORD_TOKEN is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer store.Close()

	tickets := repository.NewTicketStore(store.tickets, logger)
	if err := tickets.Load(ctx); err != nil {
		logger.Error("ticket store unreadable; writes withheld until it loads", zap.Error(err))
	}
	menus := repository.NewMenuRepository(store.menu, cfg.Discord.DefaultCategoryID, logger)

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	gw := gateway.NewDiscord(session, logger)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewNotificationService(dispatcher, gw, logger, cfg.Discord, cfg.Tickets).RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      tickets,
		Gateway:    gw,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Policy:     cfg.Tickets,
	})
	menuService := service.NewMenuService(menus, ticketService, gw, logger)
	sweeper := worker.NewSweeper(ticketService, cfg.Tickets, metrics, logger)

	router := discordapi.NewRouter(ctx, discordapi.RouteConfig{
		API:            session,
		Tickets:        ticketService,
		Menus:          menuService,
		Observer:       service.NewActivityObserver(ticketService, logger),
		Sweeper:        sweeper,
		CommandGuildID: cfg.Discord.CommandGuildID,
		Metrics:        metrics,
		Logger:         logger,
	})
	router.Register(session)

	if err := session.Open(); err != nil {
		logger.Fatal("failed to open discord session", zap.Error(err))
	}

	var app *fiber.App
	if cfg.App.HTTPEnabled {
		app = fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
		httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
		httptransport.RegisterRoutes(app, httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, gw, store.pingers),
			Metrics:        handlers.NewMetricsHandler(metrics),
			Tickets:        handlers.NewTicketsHandler(ticketService, sweeper),
			AuthMiddleware: auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.App.Name, cfg.Auth.AccessTokenTTLMinutes)),
		})

		go func() {
			if err := app.Listen(cfg.App.Addr()); err != nil {
				logger.Fatal("fiber listen", zap.Error(err))
			}
		}()
	}

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := sweeper.Stop(shutdownCtx); err != nil {
		logger.Warn("sweeper did not stop in time", zap.Error(err))
	}
	cancel()
	if app != nil {
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
	}
	if err := session.Close(); err != nil {
		logger.Warn("discord session close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
