package router

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cedinhealth/clinic-automation/internal/http/handlers"
	httpmiddleware "github.com/cedinhealth/clinic-automation/internal/http/middleware"
	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	Webhook        *handlers.WebhookHandler
	Admin          *handlers.AdminHandler
	Session        *handlers.SessionHandler
	Health         *handlers.HealthHandler
	MetricsHandler http.Handler

	// AdminToken guards the /admin subtree. Empty disables those routes.
	AdminToken string
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Check)
		}
		if cfg.Webhook != nil {
			public.Route("/webhooks/whatsapp", func(r chi.Router) {
				r.Get("/", cfg.Webhook.Verify)
				r.Post("/", cfg.Webhook.HandleEvents)
			})
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.AdminToken != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(requireAdminToken(cfg.AdminToken))
			if cfg.Admin != nil {
				admin.Post("/automation/reminders/run", cfg.Admin.RunReminders)
				admin.Post("/automation/surveys/run", cfg.Admin.RunSurveys)
				admin.Get("/automation/reminders/stats", cfg.Admin.ReminderStats)
				admin.Get("/settings", cfg.Admin.GetSetting)
				admin.Put("/settings", cfg.Admin.PutSetting)
			}
			if cfg.Session != nil {
				admin.Get("/session/status", cfg.Session.Status)
				admin.Post("/session/logout", cfg.Session.Logout)
			}
		})
	}

	return r
}

// requireAdminToken matches a bearer token in constant time.
func requireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
