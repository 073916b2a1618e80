// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port              string
	FrontendURL       string
	AllowedOrigins    []string
	DBPath            string
	DatabaseURL       string // optional Postgres DSN for admin conversations
	PortfolioDataPath string // optional override for the embedded portfolio data
	SessionIdleTTL    time.Duration
	LLM               LLMConfig
	Assistant         GateConfig
	ATS               ATSConfig
	Admin             AdminConfig
	Contact           ContactConfig
	RateLimit         RateLimitConfig
	ConversationLog   ConversationLogConfig
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GateConfig configures a usage gate and its premium passkey.
type GateConfig struct {
	FreeLimit      int
	Cooldown       time.Duration
	PremiumPasskey string
}

// ATSConfig configures the resume checker.
type ATSConfig struct {
	GateConfig
	MaxUploadBytes int64
}

// AdminConfig holds admin credentials and token settings.
type AdminConfig struct {
	Username     string
	Password     string
	PasswordHash string // bcrypt; takes precedence over Password
	JWTSecret    string
	TokenTTL     time.Duration
}

// ContactConfig configures the outbound form-submission service.
type ContactConfig struct {
	Endpoint  string
	AccessKey string
}

// RateLimitConfig bounds requests per visitor on the completion endpoints.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	passkey := getEnv("PREMIUM_PASSKEY", "eesh2025")

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		FrontendURL:       getEnv("FRONTEND_URL", ""),
		AllowedOrigins:    getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		DBPath:            getEnv("DB_PATH", "./data/portfolio.db"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		PortfolioDataPath: getEnv("PORTFOLIO_DATA_PATH", ""),
		SessionIdleTTL:    getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		LLM: LLMConfig{
			APIKey:  getEnv("GROQ_API_KEY", os.Getenv("VITE_GROQ_API_KEY")),
			BaseURL: getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:   getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
			Timeout: getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		},
		Assistant: GateConfig{
			FreeLimit:      getEnvInt("ASSISTANT_FREE_LIMIT", 2),
			Cooldown:       getEnvDuration("ASSISTANT_COOLDOWN", 5*time.Second),
			PremiumPasskey: passkey,
		},
		ATS: ATSConfig{
			GateConfig: GateConfig{
				FreeLimit:      getEnvInt("ATS_FREE_LIMIT", 2),
				PremiumPasskey: getEnv("ATS_PREMIUM_PASSKEY", passkey),
			},
			MaxUploadBytes: int64(getEnvInt("ATS_MAX_UPLOAD_BYTES", 5<<20)),
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			Password:     getEnv("ADMIN_PASSWORD", "eesh2025"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			JWTSecret:    getEnv("JWT_SECRET", ""),
			TokenTTL:     getEnvDuration("ADMIN_TOKEN_TTL", 12*time.Hour),
		},
		Contact: ContactConfig{
			Endpoint:  getEnv("CONTACT_ENDPOINT", "https://api.web3forms.com/submit"),
			AccessKey: getEnv("WEB3FORMS_ACCESS_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL cannot be empty")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.Assistant.FreeLimit < 0 || c.ATS.FreeLimit < 0 {
		return fmt.Errorf("free limits must be >= 0")
	}
	if c.Assistant.PremiumPasskey == "" {
		return fmt.Errorf("PREMIUM_PASSKEY cannot be empty")
	}
	if c.Admin.Username == "" {
		return fmt.Errorf("ADMIN_USERNAME cannot be empty")
	}
	if c.Admin.Password == "" && c.Admin.PasswordHash == "" {
		return fmt.Errorf("one of ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be set")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// LLMEnabled reports whether an API key for the completion endpoint is set.
func (c *Config) LLMEnabled() bool {
	return c.LLM.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration syntax ("5s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
