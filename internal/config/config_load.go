package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults, mirroring the reference
// deployment.
func Default() *Config {
	return &Config{
		Trigger: TriggerConfig{
			Keyword:         "awsl",
			PollIntervalSec: 3,
			CooldownSec:     10,
			QueueSize:       10,
			MaxProcessed:    200,
		},
		AI: AIConfig{
			APIBase:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Images: ImagesConfig{
			Enabled: true,
			APIURL:  "https://awsl.api.awsl.icu/v2/random_json",
		},
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			RateLimitRPM: 20,
		},
		Database: DatabaseConfig{
			Path: "~/.chatclaw/messages.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file yields the defaults (plus env), not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays secrets that must never live in the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CHATCLAW_OPENAI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("CHATCLAW_POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("CHATCLAW_SUMMARY_KEY"); v != "" {
		cfg.Summary.Key = v
	}
	if v := os.Getenv("CHATCLAW_TSNET_AUTH_KEY"); v != "" {
		cfg.Tailscale.AuthKey = v
	}
}

// Validate rejects configs the loops cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Trigger.Keyword) == "" {
		return fmt.Errorf("trigger.keyword must not be empty")
	}
	if c.Trigger.PollIntervalSec <= 0 {
		return fmt.Errorf("trigger.poll_interval_sec must be positive")
	}
	if c.Trigger.CooldownSec < 0 {
		return fmt.Errorf("trigger.cooldown_sec must not be negative")
	}
	if c.Trigger.QueueSize <= 0 {
		return fmt.Errorf("trigger.queue_size must be positive")
	}
	if c.Database.Mode == "managed" && c.Database.PostgresDSN == "" {
		return fmt.Errorf("database.mode managed requires CHATCLAW_POSTGRES_DSN")
	}
	return nil
}

// ExpandHome resolves a leading ~ against the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}
