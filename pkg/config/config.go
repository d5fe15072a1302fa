package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreFirebase = "firebase"
	StoreDynamoDB = "dynamodb"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// LLM providers
const (
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	// LINE
	LineChannelSecret      string
	LineChannelAccessToken string

	// Generative service
	LLMProvider    string
	GeminiAPIKey   string
	GeminiModel    string
	BedrockModelID string
	AWSRegion      string

	// Transcript store
	StoreBackend        string
	FirebaseURL         string
	ConversationsTable  string
	RedisAddr           string
	RedisPassword       string
	ConversationTTLDays int
	AsyncWriteQueueSize int

	// Course summary flow
	InactivityTimeoutMinutes int

	// URL shortener
	ReurlAPIKey string

	// Server
	Port        string
	LogLevel    string
	Environment string
}

// LoadDotEnv reads a .env file into the process environment outside production.
// A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if IsProduction(os.Getenv("API_ENV")) {
		return nil
	}
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		LineChannelSecret:        getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken:   getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LLMProvider:              strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiModel:              getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		BedrockModelID:           getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0"),
		AWSRegion:                getEnv("AWS_REGION", "us-east-1"),
		StoreBackend:             strings.ToLower(getEnv("STORE_BACKEND", StoreFirebase)),
		FirebaseURL:              getEnv("FIREBASE_URL", ""),
		ConversationsTable:       getEnv("CONVERSATIONS_TABLE", "linebot-transcripts"),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            getEnv("REDIS_PASSWORD", ""),
		ConversationTTLDays:      getEnvInt("CONVERSATION_TTL_DAYS", 7),
		AsyncWriteQueueSize:      getEnvInt("ASYNC_WRITE_QUEUE_SIZE", 64),
		ReurlAPIKey:              getEnv("REURL_API_KEY", ""),
		InactivityTimeoutMinutes: getEnvInt("INACTIVITY_TIMEOUT_MINUTES", 30),
		Port:                     getEnv("PORT", "8080"),
		LogLevel:                 getEnv("LOG", "WARNING"),
		Environment:              getEnv("API_ENV", "develop"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.LineChannelSecret == "" {
		return fmt.Errorf("LINE_CHANNEL_SECRET is required")
	}
	if c.LineChannelAccessToken == "" {
		return fmt.Errorf("LINE_CHANNEL_ACCESS_TOKEN is required")
	}
	// Gemini also serves image extraction and audio summaries, so the key
	// is needed even when chat goes to Bedrock.
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	switch c.LLMProvider {
	case ProviderGemini, ProviderBedrock:
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLMProvider)
	}

	switch c.StoreBackend {
	case StoreFirebase:
		if c.FirebaseURL == "" {
			return fmt.Errorf("FIREBASE_URL is required for the firebase store")
		}
	case StoreDynamoDB:
		if c.ConversationsTable == "" {
			return fmt.Errorf("CONVERSATIONS_TABLE is required for the dynamodb store")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND %q is not supported", c.StoreBackend)
	}

	return nil
}

// IsProduction reports whether the environment flag selects production
func (c *Config) IsProduction() bool {
	return IsProduction(c.Environment)
}

// IsProduction reports whether env names the production environment
func IsProduction(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "production")
}

// GetConversationTTL returns the TTL duration for stored transcripts
func (c *Config) GetConversationTTL() time.Duration {
	return time.Duration(c.ConversationTTLDays*24) * time.Hour
}

// GetInactivityTimeout returns how long an unfinished course summary flow
// is kept before it is dropped
func (c *Config) GetInactivityTimeout() time.Duration {
	return time.Duration(c.InactivityTimeoutMinutes) * time.Minute
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
