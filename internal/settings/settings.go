// Package settings reads operator-editable runtime settings from the
// settings table, with a short-lived Redis cache in front of Postgres.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

// Setting keys consumed by the automation engine.
const (
	KeyAutomationEnabled   = "automation_enabled"
	KeyRemindersEnabled    = "reminders_enabled"
	KeySurveysEnabled      = "nps_surveys_enabled"
	KeyReminderHoursBefore = "reminder_hours_before"
	KeyReminderWindowStart = "reminder_window_start"
	KeyReminderWindowEnd   = "reminder_window_end"
	KeyClinicTimezone      = "clinic_timezone"
)

const cacheTTL = time.Minute

// Querier abstracts the pgx query interface for testing.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service reads typed settings. The Redis client is optional; when nil
// every read goes straight to Postgres.
type Service struct {
	db     Querier
	cache  *redis.Client
	logger *logging.Logger
}

// NewService creates a settings reader.
func NewService(db Querier, cache *redis.Client, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, cache: cache, logger: logger}
}

// Get returns the raw value for key, or ok=false when the key is unset.
func (s *Service) Get(ctx context.Context, key string) (string, bool, error) {
	if s.cache != nil {
		val, err := s.cache.Get(ctx, cacheKey(key)).Result()
		if err == nil {
			return val, true, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("settings: cache read failed", "key", key, "error", err)
		}
	}

	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings: get %s: %w", key, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(key), value, cacheTTL).Err(); err != nil {
			s.logger.Warn("settings: cache write failed", "key", key, "error", err)
		}
	}
	return value, true, nil
}

// GetBool reads a boolean setting, returning def when unset or invalid.
func (s *Service) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return def, nil
	}
	return val, nil
}

// GetInt reads an integer setting, returning def when unset or invalid.
func (s *Service) GetInt(ctx context.Context, key string, def int) (int, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def, nil
	}
	return val, nil
}

// AutomationEnabled reports the global automation switch.
func (s *Service) AutomationEnabled(ctx context.Context) (bool, error) {
	return s.GetBool(ctx, KeyAutomationEnabled, false)
}

// CampaignEnabled reports a per-campaign switch (reminders, surveys).
func (s *Service) CampaignEnabled(ctx context.Context, key string) (bool, error) {
	return s.GetBool(ctx, key, false)
}

// ReminderHoursBefore returns the configured hours-before threshold.
func (s *Service) ReminderHoursBefore(ctx context.Context) (int, error) {
	return s.GetInt(ctx, KeyReminderHoursBefore, 24)
}

// ReminderWindow returns the configured send-window bounds ("HH:MM").
// The window is read and surfaced but never gates dispatch.
func (s *Service) ReminderWindow(ctx context.Context) (start, end string, err error) {
	start, _, err = s.Get(ctx, KeyReminderWindowStart)
	if err != nil {
		return "", "", err
	}
	end, _, err = s.Get(ctx, KeyReminderWindowEnd)
	if err != nil {
		return "", "", err
	}
	return start, end, nil
}

// Timezone returns the clinic's IANA timezone name, or def when unset.
func (s *Service) Timezone(ctx context.Context, def string) (string, error) {
	raw, ok, err := s.Get(ctx, KeyClinicTimezone)
	if err != nil || !ok {
		return def, err
	}
	return raw, nil
}

// Set upserts a setting value and invalidates the cache entry.
func (s *Service) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey(key)).Err(); err != nil {
			s.logger.Warn("settings: cache invalidate failed", "key", key, "error", err)
		}
	}
	return nil
}

func cacheKey(key string) string {
	return "settings:" + key
}
