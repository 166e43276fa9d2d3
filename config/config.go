package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string

	// Risk scoring
	CrisisThreshold    float64 // score at or above which a message counts as a crisis
	ImmediateThreshold float64 // score at or above which immediate intervention is required

	// AI providers
	ProviderTimeout  time.Duration
	ProviderCooldown time.Duration
	GeminiAPIKey     string
	GeminiBaseURL    string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	HFAPIKey         string
	HFBaseURL        string
	DefaultPersona   string

	// Scheduler sweeps
	SessionIdleTimeout time.Duration
	AckEscalationAfter time.Duration

	// Notifications
	SendgridFromEmail string
	SendgridFromName  string
}

// New sets up all config related services
func New() *Config {
	logger, err := setLogger(getEnv("APP_ENV", "development"))
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:          os.Getenv("DB_URI"),
		DatabaseName: os.Getenv("DB_NAME"),
		BaseURL:      os.Getenv("BASE_URL"),
		Port:         os.Getenv("PORT"),

		CrisisThreshold:    getEnvFloat("CRISIS_THRESHOLD", 3),
		ImmediateThreshold: getEnvFloat("IMMEDIATE_THRESHOLD", 8),

		ProviderTimeout:  getEnvDuration("AI_PROVIDER_TIMEOUT", 30*time.Second),
		ProviderCooldown: getEnvDuration("AI_PROVIDER_COOLDOWN", time.Minute),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		HFAPIKey:         os.Getenv("HF_API_KEY"),
		HFBaseURL:        getEnv("HF_BASE_URL", "https://api-inference.huggingface.co"),
		DefaultPersona:   getEnv("DEFAULT_PERSONA", "priya"),

		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		AckEscalationAfter: getEnvDuration("ACK_ESCALATION_AFTER", 15*time.Minute),

		SendgridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "alerts@mindhaven.app"),
		SendgridFromName:  getEnv("SENDGRID_FROM_NAME", "MindHaven Crisis Alerts"),
	}
}

// setLogger builds the zap logger for the given environment.
func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "local":
		return zap.NewDevelopment(zap.IncreaseLevel(zap.InfoLevel))
	default:
		return zap.NewDevelopment()
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
