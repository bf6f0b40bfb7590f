package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/config"
	"github.com/spec-kit/ticket-warden/internal/domain"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to reach redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr))

	return &Redis{Client: client}, nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// RedisTicketBackend stores tickets in one hash, one JSON field per channel.
// Unreadable fields are skipped on load and dropped by the next save.
type RedisTicketBackend struct {
	client redis.UniversalClient
	key    string
}

// NewRedisTicketBackend builds the backend under prefix.
func NewRedisTicketBackend(client redis.UniversalClient, prefix string) *RedisTicketBackend {
	return &RedisTicketBackend{client: client, key: prefix + ":tickets"}
}

func (b *RedisTicketBackend) LoadTickets(ctx context.Context) (map[string]domain.TicketRecord, error) {
	fields, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return map[string]domain.TicketRecord{}, err
	}
	docs := make(map[string]ticketDocument, len(fields))
	skipped := make(map[string]error)
	for channelID, raw := range fields {
		var doc ticketDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			skipped[channelID] = fmt.Errorf("%w: %s field %s: %v", ErrCorrupt, b.key, channelID, err)
			continue
		}
		docs[channelID] = doc
	}
	return decodeTickets(docs, skipped)
}

// SaveTickets replaces the hash atomically with MULTI/EXEC.
func (b *RedisTicketBackend) SaveTickets(ctx context.Context, tickets map[string]domain.TicketRecord) error {
	values := make([]interface{}, 0, len(tickets)*2)
	for channelID, record := range tickets {
		raw, err := json.Marshal(encodeTicket(record))
		if err != nil {
			return err
		}
		values = append(values, channelID, string(raw))
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key)
		if len(values) > 0 {
			pipe.HSet(ctx, b.key, values...)
		}
		return nil
	})
	return err
}

func (b *RedisTicketBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// RedisMenuBackend stores the menu as a JSON string value.
type RedisMenuBackend struct {
	client redis.UniversalClient
	key    string
}

// NewRedisMenuBackend builds the backend under prefix.
func NewRedisMenuBackend(client redis.UniversalClient, prefix string) *RedisMenuBackend {
	return &RedisMenuBackend{client: client, key: prefix + ":menu"}
}

func (b *RedisMenuBackend) LoadMenu(ctx context.Context) (*domain.MenuConfig, error) {
	raw, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var menu domain.MenuConfig
	if err := json.Unmarshal(raw, &menu); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, b.key, err)
	}
	return &menu, nil
}

func (b *RedisMenuBackend) SaveMenu(ctx context.Context, menu domain.MenuConfig) error {
	if menu.Buttons == nil {
		menu.Buttons = []domain.MenuButton{}
	}
	raw, err := json.Marshal(menu)
	if err != nil {
		return err
	}
	return b.client.Set(ctx, b.key, raw, 0).Err()
}
