package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Storage
	DatabaseURL    string
	SessionBackend string
	SessionTTL     time.Duration
	SessionsTable  string
	LeadsBackend   string
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool

	// Completion service
	LLMProvider        string
	BedrockModelID     string
	GeminiAPIKey       string
	GeminiModelID      string
	LLMFallback        string
	LLMMaxTokens       int
	CompletionTimeout  time.Duration
	PropertyConfigFile string

	// Collection policy
	LeadQualifyPolicy  string
	CompletePolicy     string
	CollectionPipeline string
	AskMoveInDate      bool

	// External lead sync
	LeadSyncURL         string
	LeadSyncAPIKey      string
	LeadSyncTimeout     time.Duration
	LeadSyncMaxAttempts int
	LeadSyncBaseDelay   time.Duration
	LeadSyncMode        string
	LeadSyncQueueURL    string
	CompanyID           string
	LeadSource          string
	PropertyInterest    string

	// HTTP surface
	AdminJWTSecret     string
	AdminEmail         string
	AdminPasswordHash  string
	AdminTokenTTL      time.Duration
	CORSAllowedOrigins []string
	ChatRateLimit      float64
	ChatRateBurst      int

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// New-lead alerts
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	LeadNotifyEmail   string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SessionBackend: strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		SessionTTL:     getEnvAsDuration("SESSION_TTL", 0),
		SessionsTable:  getEnv("SESSIONS_TABLE", "chat_sessions"),
		LeadsBackend:   strings.ToLower(strings.TrimSpace(getEnv("LEADS_BACKEND", "memory"))),
		RedisAddr:      getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),

		LLMProvider:        strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "stub"))),
		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:      getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		LLMFallback:        strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK", ""))),
		LLMMaxTokens:       getEnvAsInt("LLM_MAX_TOKENS", 200),
		CompletionTimeout:  getEnvAsDuration("COMPLETION_TIMEOUT", 20*time.Second),
		PropertyConfigFile: getEnv("PROPERTY_CONFIG_FILE", ""),

		LeadQualifyPolicy:  getEnv("LEAD_QUALIFY_POLICY", "phone|email"),
		CompletePolicy:     getEnv("COMPLETE_POLICY", "first_name,phone,email,tour_date,tour_time"),
		CollectionPipeline: getEnv("COLLECTION_PIPELINE", ""),
		AskMoveInDate:      getEnvAsBool("ASK_MOVE_IN_DATE", false),

		LeadSyncURL:         getEnv("LEAD_SYNC_URL", ""),
		LeadSyncAPIKey:      getEnv("LEAD_SYNC_API_KEY", ""),
		LeadSyncTimeout:     getEnvAsDuration("LEAD_SYNC_TIMEOUT", 10*time.Second),
		LeadSyncMaxAttempts: getEnvAsInt("LEAD_SYNC_MAX_ATTEMPTS", 3),
		LeadSyncBaseDelay:   getEnvAsDuration("LEAD_SYNC_BASE_DELAY", 500*time.Millisecond),
		LeadSyncMode:        strings.ToLower(strings.TrimSpace(getEnv("LEAD_SYNC_MODE", "inline"))),
		LeadSyncQueueURL:    getEnv("LEAD_SYNC_QUEUE_URL", ""),
		CompanyID:           getEnv("COMPANY_ID", ""),
		LeadSource:          getEnv("LEAD_SOURCE", "website-chat"),
		PropertyInterest:    getEnv("PROPERTY_INTEREST", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		AdminEmail:         getEnv("ADMIN_EMAIL", ""),
		AdminPasswordHash:  getEnv("ADMIN_PASSWORD_HASH", ""),
		AdminTokenTTL:      getEnvAsDuration("ADMIN_TOKEN_TTL", 12*time.Hour),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		ChatRateLimit:      getEnvAsFloat("CHAT_RATE_LIMIT", 1),
		ChatRateBurst:      getEnvAsInt("CHAT_RATE_BURST", 10),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Leasing Assistant"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		LeadNotifyEmail:   getEnv("LEAD_NOTIFY_EMAIL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

// getEnvAsList splits a comma-separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
