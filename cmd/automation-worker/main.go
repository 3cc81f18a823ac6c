package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/cedinhealth/clinic-automation/internal/appointment"
	"github.com/cedinhealth/clinic-automation/internal/clock"
	appconfig "github.com/cedinhealth/clinic-automation/internal/config"
	"github.com/cedinhealth/clinic-automation/internal/gateway"
	"github.com/cedinhealth/clinic-automation/internal/messaging"
	"github.com/cedinhealth/clinic-automation/internal/nps"
	"github.com/cedinhealth/clinic-automation/internal/observability/metrics"
	"github.com/cedinhealth/clinic-automation/internal/reminder"
	"github.com/cedinhealth/clinic-automation/internal/settings"
	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

// The worker runs the periodic engines. Automated sends always use the
// template gateway, so no session client is wired here; the API process
// owns the session websocket.
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting automation worker",
		"reminder_interval", cfg.ReminderInterval,
		"survey_interval", cfg.SurveyInterval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("automation worker requires DATABASE_URL")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	cache := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = cache.Close() }()

	m := metrics.NewAutomationMetrics(prometheus.NewRegistry())
	settingsSvc := settings.NewService(pool, cache, logger)
	appointments := appointment.NewStore(pool)
	reminders := reminder.NewStore(pool)
	surveys := nps.NewStore(pool)
	conversations := messaging.NewStore(pool)

	templateClient := gateway.NewTemplateClient(gateway.TemplateClientConfig{
		BaseURL:  cfg.TemplateAPIBaseURL,
		Token:    cfg.TemplateAPIToken,
		PhoneID:  cfg.TemplatePhoneID,
		Language: cfg.TemplateLanguage,
		Logger:   logger,
	})
	msgRouter := messaging.NewRouter(templateClient, nil, conversations, m, logger)

	clk := clock.NewLocal(cfg.DefaultTimezone)
	reminderEngine := reminder.NewEngine(settingsSvc, appointments, reminders, msgRouter, clk, m, logger,
		cfg.ReminderTemplateName, cfg.ClinicName, cfg.DispatchDelay)
	surveyEngine := nps.NewEngine(settingsSvc, appointments, surveys, msgRouter, clk, m, logger,
		cfg.SurveyTemplateName)

	go runEvery(ctx, cfg.ReminderInterval, func(ctx context.Context) {
		if _, err := reminderEngine.ProcessReminders(ctx); err != nil {
			logger.Error("reminder run failed", "error", err)
		}
	})
	go runEvery(ctx, cfg.SurveyInterval, func(ctx context.Context) {
		if _, err := surveyEngine.TriggerSurveyBatch(ctx); err != nil {
			logger.Error("survey batch failed", "error", err)
		}
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("automation worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}

// runEvery runs fn immediately and then on every tick until the context
// is cancelled.
func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
