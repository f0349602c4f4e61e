// Package config loads and validates process configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// Supported toolkit slugs mapped to the env var holding their auth config id.
var supportedToolkitEnv = map[string]string{
	"GMAIL":          "COMPOSIO_GMAIL_AUTH_CONFIG_ID",
	"GOOGLECALENDAR": "COMPOSIO_GOOGLECALENDAR_AUTH_CONFIG_ID",
	"GITHUB":         "COMPOSIO_GITHUB_AUTH_CONFIG_ID",
	"NOTION":         "COMPOSIO_NOTION_AUTH_CONFIG_ID",
	"LINEAR":         "COMPOSIO_LINEAR_AUTH_CONFIG_ID",
	"YOUTUBE":        "COMPOSIO_YOUTUBE_AUTH_CONFIG_ID",
	"DISCORD":        "COMPOSIO_DISCORD_AUTH_CONFIG_ID",
	"GOOGLESHEETS":   "COMPOSIO_GOOGLESHEETS_AUTH_CONFIG_ID",
	"TELEGRAM":       "COMPOSIO_TELEGRAM_AUTH_CONFIG_ID",
}

type Config struct {
	Port        string
	DatabaseURL string

	EncryptionKey  string
	DefaultModelID string

	ComposioBaseURL string
	ComposioAPIKey  string
	// SupportedToolkits maps toolkit slug to its auth config id.
	SupportedToolkits map[string]string

	EngineBaseURL string
	EngineAPIKey  string

	ResendBaseURL    string
	ResendAPIKey     string
	ResendAudienceID string
}

// Load reads the environment and fails with every missing required variable
// listed at once.
func Load() (*Config, error) {
	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		EncryptionKey:     os.Getenv("ENCRYPTION_KEY"),
		DefaultModelID:    os.Getenv("DEFAULT_MODEL_ID"),
		ComposioBaseURL:   getEnv("COMPOSIO_BASE_URL", "https://backend.composio.dev"),
		ComposioAPIKey:    os.Getenv("COMPOSIO_API_KEY"),
		SupportedToolkits: make(map[string]string),
		EngineBaseURL:     os.Getenv("ENGINE_BASE_URL"),
		EngineAPIKey:      os.Getenv("ENGINE_API_KEY"),
		ResendBaseURL:     getEnv("RESEND_BASE_URL", "https://api.resend.com"),
		ResendAPIKey:      os.Getenv("RESEND_API_KEY"),
		ResendAudienceID:  os.Getenv("RESEND_AUDIENCE_ID"),
	}

	var missing []string
	for name, value := range map[string]string{
		"DATABASE_URL":     cfg.DatabaseURL,
		"ENCRYPTION_KEY":   cfg.EncryptionKey,
		"DEFAULT_MODEL_ID": cfg.DefaultModelID,
		"COMPOSIO_API_KEY": cfg.ComposioAPIKey,
		"ENGINE_BASE_URL":  cfg.EngineBaseURL,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}

	for slug, envName := range supportedToolkitEnv {
		if value := os.Getenv(envName); value != "" {
			cfg.SupportedToolkits[slug] = value
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
