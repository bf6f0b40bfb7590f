package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("TICKET_INACTIVITY_THRESHOLD", "")
	t.Setenv("TICKET_SWEEP_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, 6*time.Hour, cfg.Tickets.InactivityThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Tickets.SanctionDuration)
	assert.Equal(t, 5*time.Minute, cfg.Tickets.SweepInterval)
	assert.Equal(t, "@every 5m0s", cfg.Tickets.SweepSpec())
	assert.NotEmpty(t, cfg.Discord.LogChannelID)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "Redis")
	t.Setenv("TICKET_SWEEP_INTERVAL", "30s")
	t.Setenv("TICKET_INACTIVITY_THRESHOLD", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, 30*time.Second, cfg.Tickets.SweepInterval)
	assert.Equal(t, 6*time.Hour, cfg.Tickets.InactivityThreshold)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Storage: StorageConfig{Backend: BackendFile},
			Tickets: TicketPolicyConfig{
				InactivityThreshold: time.Hour,
				SanctionDuration:    time.Hour,
				SweepInterval:       time.Minute,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "sqlite" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Backend = BackendPostgres }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.Tickets.SweepInterval = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
