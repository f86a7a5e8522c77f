package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Values come from environment variables, an optional config.yaml and defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// LLM
	LLMProvider    string
	LLMModel       string
	LLMAPIKey      string
	LLMBaseURL     string
	LLMMaxTokens   int
	LLMTemperature float64

	// WhatsApp (Woztell)
	WoztellAPIURL        string
	WoztellAPIToken      string
	WoztellWebhookSecret string
	WhatsAppVerifyToken  string

	// Chatwoot
	ChatwootURL       string
	ChatwootAPIToken  string
	ChatwootAccountID int
	ChatwootInboxID   int

	// Dialogue state
	StateBackend       string
	StateTTL           time.Duration
	SQLitePath         string
	DatabaseURL        string
	StateSweepInterval time.Duration

	// Events
	NATSURL   string
	NATSToken string

	// Prompts
	InstructionsDir string
	InstructionsTTL time.Duration

	// Admin API
	AdminPasswordHash string
	JWTSecret         string
	JWTTTL            time.Duration

	// Observability
	OTLPEndpoint string
}

var (
	stateBackends = []string{"memory", "sqlite", "postgres"}
	llmProviders  = []string{"anthropic", "openai", "groq"}
)

// Load reads configuration. Environment variables take precedence over
// config file values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		HTTPTimeout: v.GetDuration("HTTP_TIMEOUT"),

		MaxRetries:     v.GetInt("MAX_RETRIES"),
		InitialBackoff: v.GetDuration("INITIAL_BACKOFF"),
		MaxConcurrency: v.GetInt("MAX_CONCURRENCY"),

		LLMProvider:    strings.ToLower(v.GetString("LLM_PROVIDER")),
		LLMModel:       v.GetString("LLM_MODEL"),
		LLMAPIKey:      v.GetString("LLM_API_KEY"),
		LLMBaseURL:     v.GetString("LLM_BASE_URL"),
		LLMMaxTokens:   v.GetInt("LLM_MAX_TOKENS"),
		LLMTemperature: v.GetFloat64("LLM_TEMPERATURE"),

		WoztellAPIURL:        v.GetString("WOZTELL_API_URL"),
		WoztellAPIToken:      v.GetString("WOZTELL_API_TOKEN"),
		WoztellWebhookSecret: v.GetString("WOZTELL_WEBHOOK_SECRET"),
		WhatsAppVerifyToken:  v.GetString("WHATSAPP_VERIFY_TOKEN"),

		ChatwootURL:       v.GetString("CHATWOOT_URL"),
		ChatwootAPIToken:  v.GetString("CHATWOOT_API_TOKEN"),
		ChatwootAccountID: v.GetInt("CHATWOOT_ACCOUNT_ID"),
		ChatwootInboxID:   v.GetInt("CHATWOOT_INBOX_ID"),

		StateBackend:       strings.ToLower(v.GetString("STATE_BACKEND")),
		StateTTL:           v.GetDuration("STATE_TTL"),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		StateSweepInterval: v.GetDuration("STATE_SWEEP_INTERVAL"),

		NATSURL:   v.GetString("NATS_URL"),
		NATSToken: v.GetString("NATS_TOKEN"),

		InstructionsDir: v.GetString("INSTRUCTIONS_DIR"),
		InstructionsTTL: v.GetDuration("INSTRUCTIONS_TTL"),

		AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTTTL:            v.GetDuration("JWT_TTL"),

		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("HTTP_TIMEOUT", "30s")
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("INITIAL_BACKOFF", "200ms")
	v.SetDefault("MAX_CONCURRENCY", 20)

	v.SetDefault("LLM_PROVIDER", "anthropic")
	v.SetDefault("LLM_MODEL", "claude-3-5-haiku-latest")
	v.SetDefault("LLM_MAX_TOKENS", 1000)
	v.SetDefault("LLM_TEMPERATURE", 0.7)

	v.SetDefault("WOZTELL_API_URL", "https://api.woztell.com/v2")

	v.SetDefault("STATE_BACKEND", "memory")
	v.SetDefault("STATE_TTL", "24h")
	v.SetDefault("SQLITE_PATH", "data/iagente.db")
	v.SetDefault("STATE_SWEEP_INTERVAL", "1h")

	v.SetDefault("INSTRUCTIONS_TTL", "5m")

	v.SetDefault("JWT_TTL", "1h")

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

// Validate checks enumerated settings and the combinations they require.
func (c *Config) Validate() error {
	var problems []string

	if !slices.Contains(stateBackends, c.StateBackend) {
		problems = append(problems, fmt.Sprintf("STATE_BACKEND %q (want one of %s)", c.StateBackend, strings.Join(stateBackends, ", ")))
	}
	if c.StateBackend == "postgres" && c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL (required by postgres backend)")
	}
	if !slices.Contains(llmProviders, c.LLMProvider) {
		problems = append(problems, fmt.Sprintf("LLM_PROVIDER %q (want one of %s)", c.LLMProvider, strings.Join(llmProviders, ", ")))
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %d", c.Port))
	}
	if c.StateTTL <= 0 {
		problems = append(problems, "STATE_TTL must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// WhatsAppEnabled reports whether outbound WhatsApp delivery is configured.
func (c *Config) WhatsAppEnabled() bool {
	return c.WoztellAPIToken != ""
}

// ChatwootEnabled reports whether the helpdesk mirror is configured.
func (c *Config) ChatwootEnabled() bool {
	return c.ChatwootURL != "" && c.ChatwootAPIToken != "" && c.ChatwootAccountID > 0
}
