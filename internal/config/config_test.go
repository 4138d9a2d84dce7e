package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "queue-api", cfg.ServiceName)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, NotifierMemory, cfg.NotifierDriver)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.SLAThreshold)
	assert.Equal(t, 5, cfg.AttendMaxAttempt)
	assert.False(t, cfg.AutoDispatchEnabled)
	assert.Equal(t, ":8086", cfg.Addr())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("QUEUE_DATABASE_URL", "file:queue.db")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("SLA_THRESHOLD", "10m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.SLAThreshold)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "mysql"}},
		{name: "unknown notifier", env: map[string]string{"NOTIFIER_DRIVER": "kafka"}},
		{name: "pg notify on sqlite", env: map[string]string{"DB_DRIVER": "sqlite", "NOTIFIER_DRIVER": "postgres"}},
		{name: "auth without issuer", env: map[string]string{"AUTH_ENABLED": "true", "AUTH_JWKS_URL": "http://jwks"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
