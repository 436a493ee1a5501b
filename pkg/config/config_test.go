package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("NOTIFY_MODE", "ASYNC")
	t.Setenv("NOTIFY_SEND_TIMEOUT", "3s")
	t.Setenv("ACTIVITY_THRESHOLD_YEARS", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg := Load()
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "async", cfg.Notify.Mode)
	assert.Equal(t, 3*time.Second, cfg.Notify.SendTimeout)
	assert.Equal(t, 5, cfg.Activity.ThresholdYears)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "@daily", cfg.Activity.Schedule)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, BookingConfig{TimeZone: "Mars/Olympus"}.Location())
}
