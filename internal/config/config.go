// Package config holds the chatclaw configuration: a JSON5 file overlaid
// with environment variables for secrets.
package config

import (
	"sync/atomic"
	"time"
)

// Config is the root configuration for the chatclaw bot.
type Config struct {
	Group     GroupConfig     `json:"group"`
	Trigger   TriggerConfig   `json:"trigger"`
	AI        AIConfig        `json:"ai"`
	Images    ImagesConfig    `json:"images"`
	Commands  CommandsConfig  `json:"commands"`
	HTTP      HTTPConfig      `json:"http,omitempty"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Summary   SummaryConfig   `json:"summary,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Tailscale TailscaleConfig `json:"tailscale,omitempty"`
}

// GroupConfig names the chat the bot watches.
type GroupConfig struct {
	Name string `json:"name"`
}

// TriggerConfig controls the detection/processing pipeline.
type TriggerConfig struct {
	Keyword         string `json:"keyword"`
	PollIntervalSec int    `json:"poll_interval_sec"`
	CooldownSec     int    `json:"cooldown_sec"`
	QueueSize       int    `json:"queue_size"`
	MaxProcessed    int    `json:"max_processed"` // processed-set prune threshold
}

// PollInterval returns the detection cadence.
func (t TriggerConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalSec) * time.Second
}

// Cooldown returns the minimum gap between accepted dispatches.
func (t TriggerConfig) Cooldown() time.Duration {
	return time.Duration(t.CooldownSec) * time.Second
}

// AIConfig configures the OpenAI-compatible answer provider.
// APIKey is never read from the config file, only from env CHATCLAW_OPENAI_API_KEY.
type AIConfig struct {
	APIBase      string  `json:"api_base"`
	APIKey       string  `json:"-"`
	Model        string  `json:"model"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
}

// Enabled reports whether the AI provider can be used.
func (a AIConfig) Enabled() bool { return a.APIKey != "" }

// ImagesConfig configures the random-image provider.
type ImagesConfig struct {
	Enabled bool   `json:"enabled"`
	APIURL  string `json:"api_url"`
}

// CommandsConfig configures the dynamic command source.
type CommandsConfig struct {
	APIBase string `json:"api_base"`
}

// Enabled reports whether a command source is configured.
func (c CommandsConfig) Enabled() bool { return c.APIBase != "" }

// HTTPConfig configures the control surface.
type HTTPConfig struct {
	Enabled      bool   `json:"enabled"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	RateLimitRPM int    `json:"rate_limit_rpm"`
}

// DatabaseConfig selects the store backend. PostgresDSN is env-only
// (CHATCLAW_POSTGRES_DSN); mode "managed" requires it.
type DatabaseConfig struct {
	Path        string `json:"path,omitempty"` // sqlite file (standalone)
	Mode        string `json:"mode,omitempty"` // "standalone" (default) or "managed"
	PostgresDSN string `json:"-"`
}

// IsManagedMode reports whether the processed set lives in Postgres.
func (d DatabaseConfig) IsManagedMode() bool {
	return d.Mode == "managed" && d.PostgresDSN != ""
}

// SummaryGroup selects one chat for the daily summary.
type SummaryGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SummaryConfig configures the scheduled group summary.
type SummaryConfig struct {
	Enabled   bool           `json:"enabled"`
	Cron      string         `json:"cron,omitempty"` // empty: HTTP-triggered only
	Groups    []SummaryGroup `json:"groups,omitempty"`
	APIBase   string         `json:"api_base,omitempty"` // message archive API
	InputPath string         `json:"input_path,omitempty"`
	OutputDir string         `json:"output_dir,omitempty"`
	Key       string         `json:"-"` // archive decrypt key, env CHATCLAW_SUMMARY_KEY
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint,omitempty"` // host:port, defaults per exporter
	Protocol string `json:"protocol,omitempty"` // "http" (default) or "grpc"
	Insecure bool   `json:"insecure,omitempty"`
}

// TailscaleConfig configures the optional tsnet listener for the control
// surface. Requires building with -tags tsnet. Auth key from env only.
type TailscaleConfig struct {
	Hostname  string `json:"hostname"`
	StateDir  string `json:"state_dir,omitempty"`
	AuthKey   string `json:"-"` // env CHATCLAW_TSNET_AUTH_KEY only
	Ephemeral bool   `json:"ephemeral,omitempty"`
}

// Holder publishes the live configuration to the loops. Hot reload swaps
// the pointer; readers take a snapshot per cycle and never see a partial
// config.
type Holder struct {
	ptr atomic.Pointer[Config]
}

// NewHolder wraps an initial config.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.ptr.Store(cfg)
	return h
}

// Current returns the live snapshot.
func (h *Holder) Current() *Config { return h.ptr.Load() }

// Swap installs a new config wholesale.
func (h *Holder) Swap(cfg *Config) { h.ptr.Store(cfg) }
