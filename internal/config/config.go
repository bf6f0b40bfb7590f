package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig
	Discord  DiscordConfig
	Tickets  TicketPolicyConfig
	Storage  StorageConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig controls the ops HTTP surface.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	HTTPEnabled           bool
	RequestTimeoutSeconds int
}

// DiscordConfig holds gateway credentials and the fixed channel identifiers.
type DiscordConfig struct {
	Token             string
	LogChannelID      string
	DefaultCategoryID string
	// CommandGuildID scopes slash command registration; empty registers globally.
	CommandGuildID string
}

// TicketPolicyConfig holds the inactivity policy constants.
type TicketPolicyConfig struct {
	InactivityThreshold time.Duration
	SanctionDuration    time.Duration
	SweepInterval       time.Duration
	SanctionReason      string
}

// StorageConfig selects where ticket and menu state live.
type StorageConfig struct {
	Backend        string
	TicketDataPath string
	MenuConfigPath string
	RedisKeyPrefix string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines ops API token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-warden"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			HTTPEnabled:           getEnvAsBool("APP_HTTP_ENABLED", true),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Discord: DiscordConfig{
			Token:             os.Getenv("DISCORD_TOKEN"),
			LogChannelID:      getEnv("DISCORD_LOG_CHANNEL_ID", "1413442389422637137"),
			DefaultCategoryID: getEnv("DISCORD_CATEGORY_ID", "1421823728936816750"),
			CommandGuildID:    os.Getenv("DISCORD_COMMAND_GUILD_ID"),
		},
		Tickets: TicketPolicyConfig{
			InactivityThreshold: getEnvAsDuration("TICKET_INACTIVITY_THRESHOLD", 6*time.Hour),
			SanctionDuration:    getEnvAsDuration("TICKET_SANCTION_DURATION", 24*time.Hour),
			SweepInterval:       getEnvAsDuration("TICKET_SWEEP_INTERVAL", 5*time.Minute),
			SanctionReason:      getEnv("TICKET_SANCTION_REASON", "Ticket spam with no stated reason"),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(getEnv("STORAGE_BACKEND", BackendFile)),
			TicketDataPath: getEnv("TICKET_DATA_PATH", "ticket_data.json"),
			MenuConfigPath: getEnv("TICKET_MENU_PATH", "ticket_config.json"),
			RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "ticket-warden"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the bot cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendPostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
	}
	if c.Tickets.SweepInterval <= 0 {
		return fmt.Errorf("TICKET_SWEEP_INTERVAL must be positive")
	}
	if c.Tickets.InactivityThreshold <= 0 || c.Tickets.SanctionDuration <= 0 {
		return fmt.Errorf("ticket policy durations must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SweepSpec is the cron schedule for the inactivity sweep.
func (t TicketPolicyConfig) SweepSpec() string {
	return "@every " + t.SweepInterval.String()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
