package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cedinhealth/clinic-automation/internal/reminder"
	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

type reminderRunner interface {
	ProcessReminders(ctx context.Context) (*reminder.Report, error)
}

type surveyRunner interface {
	TriggerSurveyBatch(ctx context.Context) (int, error)
}

type reminderStats interface {
	GetStats(ctx context.Context, from, to time.Time) (*reminder.Stats, error)
}

type settingsAccess interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// AdminHandler exposes manual triggers and settings for operators. The
// worker's tickers run the same engines; these endpoints exist for
// backfills and debugging.
type AdminHandler struct {
	reminders reminderRunner
	surveys   surveyRunner
	stats     reminderStats
	settings  settingsAccess
	logger    *logging.Logger
}

type AdminConfig struct {
	Reminders reminderRunner
	Surveys   surveyRunner
	Stats     reminderStats
	Settings  settingsAccess
	Logger    *logging.Logger
}

func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &AdminHandler{
		reminders: cfg.Reminders,
		surveys:   cfg.Surveys,
		stats:     cfg.Stats,
		settings:  cfg.Settings,
		logger:    cfg.Logger,
	}
}

// RunReminders triggers one reminder cycle synchronously.
func (h *AdminHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	report, err := h.reminders.ProcessReminders(r.Context())
	if err != nil {
		h.logger.Error("manual reminder run failed", "error", err)
		http.Error(w, "reminder run failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RunSurveys triggers one survey batch synchronously.
func (h *AdminHandler) RunSurveys(w http.ResponseWriter, r *http.Request) {
	sent, err := h.surveys.TriggerSurveyBatch(r.Context())
	if err != nil {
		h.logger.Error("manual survey run failed", "error", err)
		http.Error(w, "survey run failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

// ReminderStats reports reminder outcomes for the trailing period
// (default 7 days, override with ?days=N).
func (h *AdminHandler) ReminderStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid days", http.StatusBadRequest)
			return
		}
		days = n
	}
	now := time.Now().UTC()
	stats, err := h.stats.GetStats(r.Context(), now.AddDate(0, 0, -days), now)
	if err != nil {
		h.logger.Error("reminder stats query failed", "error", err)
		http.Error(w, "stats query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetSetting reads one automation setting.
func (h *AdminHandler) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key required", http.StatusBadRequest)
		return
	}
	value, found, err := h.settings.Get(r.Context(), key)
	if err != nil {
		http.Error(w, "settings lookup failed", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "setting not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

// PutSetting writes one automation setting.
func (h *AdminHandler) PutSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		http.Error(w, "key and value required", http.StatusBadRequest)
		return
	}
	if err := h.settings.Set(r.Context(), req.Key, req.Value); err != nil {
		h.logger.Error("settings update failed", "key", req.Key, "error", err)
		http.Error(w, "settings update failed", http.StatusInternalServerError)
		return
	}
	h.logger.Info("setting updated", "key", req.Key)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
