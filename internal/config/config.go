package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds process configuration read from the environment.
// Operator-editable runtime settings (automation switches, reminder
// thresholds) live in the settings table instead; see internal/settings.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	// Template gateway (WhatsApp Business Cloud API).
	TemplateAPIBaseURL   string
	TemplateAPIToken     string
	TemplatePhoneID      string
	ReminderTemplateName string
	SurveyTemplateName   string
	TemplateLanguage     string

	// Session gateway (persistent WhatsApp Web session bridge).
	SessionGatewayURL    string
	SessionDeviceName    string
	SessionReconnectBase time.Duration
	SessionReconnectMax  time.Duration

	// Scheduler cadences for the automation worker.
	ReminderInterval time.Duration
	SurveyInterval   time.Duration

	// Delay inserted between sends once a batch exceeds the throttle
	// threshold.
	DispatchDelay time.Duration

	// HTTP surface secrets.
	WebhookVerifyToken string
	AdminToken         string

	DefaultTimezone string
	ClinicName      string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		TemplateAPIBaseURL:   getEnv("TEMPLATE_API_BASE_URL", "https://graph.facebook.com/v19.0"),
		TemplateAPIToken:     getEnv("TEMPLATE_API_TOKEN", ""),
		TemplatePhoneID:      getEnv("TEMPLATE_PHONE_ID", ""),
		ReminderTemplateName: getEnv("REMINDER_TEMPLATE_NAME", "recordatorio_turno"),
		SurveyTemplateName:   getEnv("SURVEY_TEMPLATE_NAME", "encuesta_satisfaccion"),
		TemplateLanguage:     getEnv("TEMPLATE_LANGUAGE", "es_AR"),

		SessionGatewayURL:    getEnv("SESSION_GATEWAY_URL", ""),
		SessionDeviceName:    getEnv("SESSION_DEVICE_NAME", "cedin-automation"),
		SessionReconnectBase: getEnvAsDuration("SESSION_RECONNECT_BASE", 2*time.Second),
		SessionReconnectMax:  getEnvAsDuration("SESSION_RECONNECT_MAX", time.Minute),

		ReminderInterval: getEnvAsDuration("REMINDER_INTERVAL", time.Hour),
		SurveyInterval:   getEnvAsDuration("SURVEY_INTERVAL", 30*time.Minute),

		DispatchDelay: getEnvAsDuration("DISPATCH_DELAY", 500*time.Millisecond),

		WebhookVerifyToken: getEnv("WEBHOOK_VERIFY_TOKEN", ""),
		AdminToken:         getEnv("ADMIN_TOKEN", ""),

		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "America/Argentina/Buenos_Aires"),
		ClinicName:      getEnv("CLINIC_NAME", "Cedin"),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
