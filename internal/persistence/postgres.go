package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/config"
	"github.com/spec-kit/ticket-warden/internal/domain"
)

// Postgres wraps access to a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres establishes a connection pool for the configured DSN.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, errors.New("POSTGRES_DSN not provided")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return &Postgres{Pool: pool}, nil
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return errors.New("postgres pool not configured")
	}
	return p.Pool.Ping(ctx)
}

// PostgresTicketBackend stores tickets in the tickets table.
type PostgresTicketBackend struct {
	pg *Postgres
}

// NewPostgresTicketBackend builds the backend over an open pool.
func NewPostgresTicketBackend(pg *Postgres) *PostgresTicketBackend {
	return &PostgresTicketBackend{pg: pg}
}

func (b *PostgresTicketBackend) LoadTickets(ctx context.Context) (map[string]domain.TicketRecord, error) {
	const query = `SELECT channel_id, user_id, created_at, active FROM tickets`
	rows, err := b.pg.Pool.Query(ctx, query)
	if err != nil {
		return map[string]domain.TicketRecord{}, err
	}
	defer rows.Close()

	tickets := make(map[string]domain.TicketRecord)
	for rows.Next() {
		var record domain.TicketRecord
		if err := rows.Scan(&record.ChannelID, &record.OpenerUserID, &record.CreatedAt, &record.Active); err != nil {
			return map[string]domain.TicketRecord{}, err
		}
		record.CreatedAt = record.CreatedAt.UTC()
		tickets[record.ChannelID] = record
	}
	if err := rows.Err(); err != nil {
		return map[string]domain.TicketRecord{}, err
	}
	return tickets, nil
}

// SaveTickets makes the table match tickets in one transaction.
func (b *PostgresTicketBackend) SaveTickets(ctx context.Context, tickets map[string]domain.TicketRecord) error {
	const upsert = `
        INSERT INTO tickets (channel_id, user_id, created_at, active)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (channel_id) DO UPDATE SET active = EXCLUDED.active`
	const prune = `DELETE FROM tickets WHERE NOT (channel_id = ANY($1))`

	tx, err := b.pg.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	ids := make([]string, 0, len(tickets))
	for id, record := range tickets {
		batch.Queue(upsert, id, record.OpenerUserID, record.CreatedAt.UTC(), record.Active)
		ids = append(ids, id)
	}
	batch.Queue(prune, ids)

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("save tickets: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (b *PostgresTicketBackend) Ping(ctx context.Context) error {
	return b.pg.Ping(ctx)
}

// PostgresMenuBackend stores the menu as a single JSONB row.
type PostgresMenuBackend struct {
	pg *Postgres
}

// NewPostgresMenuBackend builds the backend over an open pool.
func NewPostgresMenuBackend(pg *Postgres) *PostgresMenuBackend {
	return &PostgresMenuBackend{pg: pg}
}

func (b *PostgresMenuBackend) LoadMenu(ctx context.Context) (*domain.MenuConfig, error) {
	var raw []byte
	err := b.pg.Pool.QueryRow(ctx, `SELECT config FROM ticket_menu WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var menu domain.MenuConfig
	if err := json.Unmarshal(raw, &menu); err != nil {
		return nil, fmt.Errorf("%w: ticket_menu: %v", ErrCorrupt, err)
	}
	return &menu, nil
}

func (b *PostgresMenuBackend) SaveMenu(ctx context.Context, menu domain.MenuConfig) error {
	if menu.Buttons == nil {
		menu.Buttons = []domain.MenuButton{}
	}
	raw, err := json.Marshal(menu)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO ticket_menu (id, config) VALUES (1, $1)
        ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = NOW()`
	_, err = b.pg.Pool.Exec(ctx, query, raw)
	return err
}
