package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.ReminderInterval)
	assert.Equal(t, 30*time.Minute, cfg.SurveyInterval)
	assert.Equal(t, "America/Argentina/Buenos_Aires", cfg.DefaultTimezone)
	assert.Equal(t, "es_AR", cfg.TemplateLanguage)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("REMINDER_INTERVAL", "15m")
	t.Setenv("DISPATCH_DELAY", "250ms")
	t.Setenv("TEMPLATE_PHONE_ID", "123456")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.ReminderInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.DispatchDelay)
	assert.Equal(t, "123456", cfg.TemplatePhoneID)
}

func TestDurationFallbackOnGarbage(t *testing.T) {
	t.Setenv("SURVEY_INTERVAL", "not-a-duration")

	cfg := Load()

	assert.Equal(t, 30*time.Minute, cfg.SurveyInterval)
}
