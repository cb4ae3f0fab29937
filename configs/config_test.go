package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 60*time.Second, cfg.Dispatch.Interval)
	assert.Equal(t, 30*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 30*time.Minute, cfg.Retry.MaxDelay)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Empty(t, cfg.MaxLengths)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DISPATCH_INTERVAL", "15s")
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("MAX_LENGTH_TWITTER", "500")
	t.Setenv("DATABASE_DRIVER", "sqlite")

	cfg := LoadConfig()

	assert.Equal(t, 15*time.Second, cfg.Dispatch.Interval)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, map[string]int{"twitter": 500}, cfg.MaxLengths)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DISPATCH_INTERVAL", "soon")
	t.Setenv("RETRY_MAX_ATTEMPTS", "many")
	t.Setenv("PUBLISH_TIMEOUT", "-5s")

	cfg := LoadConfig()

	assert.Equal(t, 60*time.Second, cfg.Dispatch.Interval)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.PublishTimeout)
}
