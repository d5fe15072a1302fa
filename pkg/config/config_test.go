package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Save original env vars
	originalEnv := saveEnvironment()
	defer restoreEnvironment(originalEnv)

	os.Clearenv()
	os.Setenv("LINE_CHANNEL_SECRET", "test-secret")
	os.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "test-token")
	os.Setenv("GEMINI_API_KEY", "test-gemini")
	os.Setenv("FIREBASE_URL", "https://example.firebaseio.com")
	os.Setenv("PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LineChannelSecret != "test-secret" {
		t.Errorf("LineChannelSecret = %s, want test-secret", cfg.LineChannelSecret)
	}
	if cfg.LineChannelAccessToken != "test-token" {
		t.Errorf("LineChannelAccessToken = %s, want test-token", cfg.LineChannelAccessToken)
	}
	if cfg.FirebaseURL != "https://example.firebaseio.com" {
		t.Errorf("FirebaseURL = %s", cfg.FirebaseURL)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
}

func TestLoadConfigMissingRequired(t *testing.T) {
	originalEnv := saveEnvironment()
	defer restoreEnvironment(originalEnv)

	os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Error("Load() should return error when required env vars are missing")
	}
}

func TestConfigDefaultValues(t *testing.T) {
	originalEnv := saveEnvironment()
	defer restoreEnvironment(originalEnv)

	os.Clearenv()
	os.Setenv("LINE_CHANNEL_SECRET", "s")
	os.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "t")
	os.Setenv("GEMINI_API_KEY", "k")
	os.Setenv("FIREBASE_URL", "https://example.firebaseio.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.StoreBackend != StoreFirebase {
		t.Errorf("Default StoreBackend = %s, want %s", cfg.StoreBackend, StoreFirebase)
	}
	if cfg.LLMProvider != ProviderGemini {
		t.Errorf("Default LLMProvider = %s, want %s", cfg.LLMProvider, ProviderGemini)
	}
	if cfg.GeminiModel != "gemini-1.5-flash" {
		t.Errorf("Default GeminiModel = %s", cfg.GeminiModel)
	}
	if cfg.Port != "8080" {
		t.Errorf("Default Port = %s, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "WARNING" {
		t.Errorf("Default LogLevel = %s, want WARNING", cfg.LogLevel)
	}
	if cfg.ConversationTTLDays != 7 {
		t.Errorf("Default ConversationTTLDays = %d, want 7", cfg.ConversationTTLDays)
	}
	if cfg.IsProduction() {
		t.Error("default environment should not be production")
	}
}

func TestValidateStoreBackends(t *testing.T) {
	base := func() *Config {
		return &Config{
			LineChannelSecret:      "s",
			LineChannelAccessToken: "t",
			GeminiAPIKey:           "k",
			LLMProvider:            ProviderGemini,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "firebase with url",
			mutate:  func(c *Config) { c.StoreBackend = StoreFirebase; c.FirebaseURL = "https://x" },
			wantErr: false,
		},
		{
			name:    "firebase without url",
			mutate:  func(c *Config) { c.StoreBackend = StoreFirebase },
			wantErr: true,
		},
		{
			name:    "dynamodb with table",
			mutate:  func(c *Config) { c.StoreBackend = StoreDynamoDB; c.ConversationsTable = "tbl" },
			wantErr: false,
		},
		{
			name:    "redis without addr",
			mutate:  func(c *Config) { c.StoreBackend = StoreRedis },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.StoreBackend = "sqlite" },
			wantErr: true,
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.StoreBackend = StoreRedis
				c.RedisAddr = "localhost:6379"
				c.LLMProvider = "openai"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetConversationTTL(t *testing.T) {
	cfg := &Config{ConversationTTLDays: 2}
	if got := cfg.GetConversationTTL(); got != 48*time.Hour {
		t.Errorf("GetConversationTTL() = %v, want 48h", got)
	}
}

func TestGetInactivityTimeout(t *testing.T) {
	cfg := &Config{InactivityTimeoutMinutes: 30}
	if got := cfg.GetInactivityTimeout(); got != 30*time.Minute {
		t.Errorf("GetInactivityTimeout() = %v, want 30m", got)
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"Production", true},
		{"develop", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsProduction(tt.env); got != tt.want {
			t.Errorf("IsProduction(%q) = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	originalEnv := saveEnvironment()
	defer restoreEnvironment(originalEnv)

	os.Clearenv()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("GEMINI_MODEL=gemini-test\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("GEMINI_MODEL"); got != "gemini-test" {
		t.Errorf("GEMINI_MODEL = %q, want gemini-test", got)
	}
}

func TestLoadDotEnvSkippedInProduction(t *testing.T) {
	originalEnv := saveEnvironment()
	defer restoreEnvironment(originalEnv)

	os.Clearenv()
	os.Setenv("API_ENV", "production")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("GEMINI_MODEL=gemini-test\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("GEMINI_MODEL"); got != "" {
		t.Errorf("GEMINI_MODEL = %q, want it unset in production", got)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("LoadDotEnv() with missing file error = %v", err)
	}
}

// Helper function to save environment variables
func saveEnvironment() map[string]string {
	env := make(map[string]string)
	for _, pair := range os.Environ() {
		var key, val string
		for i, c := range pair {
			if c == '=' {
				key = pair[:i]
				val = pair[i+1:]
				break
			}
		}
		env[key] = val
	}
	return env
}

// Helper function to restore environment variables
func restoreEnvironment(env map[string]string) {
	os.Clearenv()
	for key, val := range env {
		os.Setenv(key, val)
	}
}
