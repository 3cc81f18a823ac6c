package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cedinhealth/clinic-automation/internal/api/router"
	"github.com/cedinhealth/clinic-automation/internal/appointment"
	"github.com/cedinhealth/clinic-automation/internal/automation"
	"github.com/cedinhealth/clinic-automation/internal/clock"
	appconfig "github.com/cedinhealth/clinic-automation/internal/config"
	"github.com/cedinhealth/clinic-automation/internal/gateway"
	"github.com/cedinhealth/clinic-automation/internal/gateway/session"
	"github.com/cedinhealth/clinic-automation/internal/http/handlers"
	"github.com/cedinhealth/clinic-automation/internal/messaging"
	"github.com/cedinhealth/clinic-automation/internal/nps"
	"github.com/cedinhealth/clinic-automation/internal/observability/metrics"
	"github.com/cedinhealth/clinic-automation/internal/patient"
	"github.com/cedinhealth/clinic-automation/internal/reminder"
	"github.com/cedinhealth/clinic-automation/internal/settings"
	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-automation API server", "env", cfg.Env, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
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

	registry := prometheus.NewRegistry()
	m := metrics.NewAutomationMetrics(registry)

	settingsSvc := settings.NewService(pool, cache, logger)
	patients := patient.NewStore(pool)
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

	var sessionClient *session.Client
	if cfg.SessionGatewayURL != "" {
		sessionClient = session.NewClient(session.Config{
			URL:           cfg.SessionGatewayURL,
			Device:        cfg.SessionDeviceName,
			Credentials:   session.NewPgCredentialStore(pool),
			Logger:        logger,
			ReconnectBase: cfg.SessionReconnectBase,
			ReconnectMax:  cfg.SessionReconnectMax,
		})
	}

	var sessionGateway messaging.SessionGateway
	if sessionClient != nil {
		sessionGateway = sessionClient
	}
	msgRouter := messaging.NewRouter(templateClient, sessionGateway, conversations, m, logger)
	inboundLog := messaging.NewInboundLogger(patients, conversations, logger)

	clk := clock.NewLocal(cfg.DefaultTimezone)
	surveyEngine := nps.NewEngine(settingsSvc, appointments, surveys, msgRouter, clk, m, logger,
		cfg.SurveyTemplateName)
	reminderEngine := reminder.NewEngine(settingsSvc, appointments, reminders, msgRouter, clk, m, logger,
		cfg.ReminderTemplateName, cfg.ClinicName, cfg.DispatchDelay)

	autoHandler := automation.NewHandler(surveyEngine, patients, appointments, reminders,
		msgRouter, inboundLog, conversations, clk, m, logger)
	statusHandler := automation.NewStatusHandler(msgRouter, reminders, logger)

	if sessionClient != nil {
		sessionClient.OnMessage(func(ctx context.Context, msg session.InboundMessage) {
			_, err := autoHandler.HandleInboundEvent(ctx, messaging.InboundEvent{
				SenderID:   msg.SenderID,
				ExternalID: msg.MessageID,
				Text:       msg.Text,
				Button:     msg.Button,
				MediaURL:   msg.MediaURL,
				MediaType:  messaging.MessageType(msg.MediaType),
				FromSelf:   msg.FromSelf,
				ReceivedAt: msg.Timestamp,
			})
			if err != nil {
				logger.Error("session inbound handling failed", "message_id", msg.MessageID, "error", err)
			}
		})
		sessionClient.OnStatusUpdate(func(ctx context.Context, externalID, status string) {
			if err := statusHandler.Handle(ctx, externalID, status); err != nil {
				logger.Error("session status handling failed", "external_id", externalID, "error", err)
			}
		})
		go sessionClient.Run(ctx)
	}

	webhook := handlers.NewWebhookHandler(handlers.WebhookConfig{
		Automation:  autoHandler,
		Statuses:    statusHandler,
		VerifyToken: cfg.WebhookVerifyToken,
		Metrics:     m,
		Logger:      logger,
	})
	admin := handlers.NewAdminHandler(handlers.AdminConfig{
		Reminders: reminderEngine,
		Surveys:   surveyEngine,
		Stats:     reminders,
		Settings:  settingsSvc,
		Logger:    logger,
	})
	var sessionHandler *handlers.SessionHandler
	if sessionClient != nil {
		sessionHandler = handlers.NewSessionHandler(sessionClient, logger)
	}
	var sessionHealth interface{ Connected() bool }
	if sessionClient != nil {
		sessionHealth = sessionClient
	}
	health := handlers.NewHealthHandler(templateClient, sessionHealth)

	r := router.New(&router.Config{
		Logger:         logger,
		Webhook:        webhook,
		Admin:          admin,
		Session:        sessionHandler,
		Health:         health,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminToken:     cfg.AdminToken,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
