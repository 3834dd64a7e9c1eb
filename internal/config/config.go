// Package config reads server configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr      string
	DBPath          string
	ProviderBaseURL string
	ProviderAPIKey  string
	Model           string
	ProviderTimeout time.Duration
	// MaxContextTokens caps the context window sent to the provider.
	// Zero means full history is sent, matching the original behavior.
	MaxContextTokens int
}

func Load() Config {
	return Config{
		ListenAddr:       envOrDefault("CHAT_LISTEN_ADDR", ":8100"),
		DBPath:           envOrDefault("CHAT_DB_PATH", "chat.db"),
		ProviderBaseURL:  envOrDefault("OPENAI_BASE_URL", "https://api.groq.com/openai/v1"),
		ProviderAPIKey:   os.Getenv("OPENAI_API_KEY"),
		Model:            envOrDefault("CHAT_MODEL", "llama-3.1-8b-instant"),
		ProviderTimeout:  envDurationOrDefault("CHAT_PROVIDER_TIMEOUT", 30*time.Second),
		MaxContextTokens: envIntOrDefault("CHAT_MAX_CONTEXT_TOKENS", 0),
	}
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.ProviderAPIKey == "" {
		return fmt.Errorf("missing required environment variable: OPENAI_API_KEY")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
