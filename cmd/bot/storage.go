package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/api/http/handlers"
	"github.com/spec-kit/ticket-warden/internal/config"
	"github.com/spec-kit/ticket-warden/internal/persistence"
	"github.com/spec-kit/ticket-warden/internal/repository"
)

// storage is the backend pair selected by STORAGE_BACKEND.
type storage struct {
	tickets repository.TicketBackend
	menu    repository.MenuBackend
	pingers map[string]handlers.Pinger
	closers []func()
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		return &storage{
			tickets: persistence.NewPostgresTicketBackend(pg),
			menu:    persistence.NewPostgresMenuBackend(pg),
			pingers: map[string]handlers.Pinger{"postgres": pg},
			closers: []func(){pg.Close},
		}, nil

	case config.BackendRedis:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &storage{
			tickets: persistence.NewRedisTicketBackend(rdb.Client, cfg.Storage.RedisKeyPrefix),
			menu:    persistence.NewRedisMenuBackend(rdb.Client, cfg.Storage.RedisKeyPrefix),
			pingers: map[string]handlers.Pinger{"redis": rdb},
			closers: []func(){rdb.Close},
		}, nil

	default:
		tickets := persistence.NewFileTicketBackend(cfg.Storage.TicketDataPath)
		return &storage{
			tickets: tickets,
			menu:    persistence.NewFileMenuBackend(cfg.Storage.MenuConfigPath),
			pingers: map[string]handlers.Pinger{"file": tickets},
		}, nil
	}
}
