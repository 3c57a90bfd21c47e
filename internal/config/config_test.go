package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carebook/backend/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "0.0.0.0:50051", cfg.GRPCAddr())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, domain.DefaultBusinessHours(), cfg.DefaultHours)
	assert.Equal(t, 30, cfg.DefaultDuration)
	assert.Equal(t, 24*time.Hour, cfg.ReminderWindow)
	assert.Equal(t, "log", cfg.NotifyDriver)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CAREBOOK_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("CAREBOOK_REMINDERS_WINDOW", "12h")
	t.Setenv("CAREBOOK_SCHEDULING_DEFAULT_OPEN", "09:30")
	t.Setenv("CAREBOOK_NOTIFY_DRIVER", "AMQP")
	t.Setenv("CAREBOOK_HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DATABASE_URL", "postgres://x@db:5432/cb")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.GRPCHost)
	assert.Equal(t, 6000, cfg.GRPCPort)
	assert.Equal(t, 12*time.Hour, cfg.ReminderWindow)
	assert.Equal(t, domain.ClockTime{Hour: 9, Minute: 30}, cfg.DefaultHours.Open)
	assert.Equal(t, "amqp", cfg.NotifyDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "postgres://x@db:5432/cb", cfg.DatabaseURL)
}

func TestLoad_Rejects(t *testing.T) {
	tests := map[string]string{
		"CAREBOOK_SHUTDOWN_TIMEOUT":         "soon",
		"CAREBOOK_SCHEDULING_DEFAULT_CLOSE": "07:00",
		"CAREBOOK_NOTIFY_DRIVER":            "smtp",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
