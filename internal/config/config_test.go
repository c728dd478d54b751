package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/tutor")
	t.Setenv("AUTH_JWT_SECRET", "secret")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 60, cfg.SlotMinutes)
	assert.Equal(t, 90, cfg.MaxRangeDays)
	assert.Equal(t, "@every 1m", cfg.RelaySchedule)
	assert.True(t, cfg.MigrateOnStart)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("TIMEZONE", "Europe/Moscow")
	t.Setenv("SLOT_MINUTES", "45")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100500")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.SlotMinutes)
	assert.Equal(t, int64(-100500), cfg.TelegramChatID)
	assert.Equal(t, "Europe/Moscow", cfg.Location().String())
}

func TestValidate(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")
	t.Setenv("SLOT_MINUTES", "0")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := Parse()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "STORAGE_DRIVER")
	assert.Contains(t, msg, "AUTH_JWT_SECRET")
	assert.Contains(t, msg, "SLOT_MINUTES")
	assert.Contains(t, msg, "TELEGRAM_CHAT_ID")
	assert.Contains(t, msg, "TIMEZONE")
}
