package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the on-disk configuration (JSON or YAML).
// String values may reference environment variables as ${NAME}.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Gemini    GeminiConfig    `json:"gemini"`
	ImageHost ImageHostConfig `json:"image_host"`
	YouTube   YouTubeConfig   `json:"youtube"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	Format  string      `json:"format,omitempty"` // "console" (default) or "json"
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the prompt/post store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/botgen.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SchedulerConfig controls the autonomous posting loop.
//
// Defaults (when fields are omitted/zero):
//   - spec: "1m"
//   - batch_size: 3
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Spec accepts a Go duration ("1m"), a cron expression ("*/5 * * * *"),
	// or a prefixed form ("every:90s", "cron:0 * * * *").
	Spec      string `json:"spec,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
	// Timezone for cron specs.
	Timezone string `json:"timezone,omitempty"`
}

// GeminiConfig configures text completion and image generation.
type GeminiConfig struct {
	APIKey      string   `json:"api_key"`
	BaseURL     string   `json:"base_url,omitempty"`
	TextModel   string   `json:"text_model,omitempty"`
	ImageModel  string   `json:"image_model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	RatePerSec  float64  `json:"rate_per_sec,omitempty"`
	Burst       int      `json:"burst,omitempty"`
	Timeout     string   `json:"timeout,omitempty"`
}

// ImageHostConfig configures the S3-compatible bucket generated images are
// uploaded to.
type ImageHostConfig struct {
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	// PublicBaseURL is prepended to object keys to build image URLs.
	// Defaults to the virtual-hosted S3 URL for Bucket/Region.
	PublicBaseURL string `json:"public_base_url,omitempty"`
	UsePathStyle  bool   `json:"use_path_style,omitempty"`
	Timeout       string `json:"timeout,omitempty"`
}

type YouTubeConfig struct {
	APIKey     string  `json:"api_key"`
	Endpoint   string  `json:"endpoint,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Timeout    string  `json:"timeout,omitempty"`
}

// MetricsConfig controls the ops HTTP server (/metrics, /healthz, optional pprof).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:9090").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:9090"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// Validate checks field formats that the loader cannot.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	check := func(path, raw string) {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	check("storage.busy_timeout", c.Storage.BusyTimeout)
	check("gemini.timeout", c.Gemini.Timeout)
	check("image_host.timeout", c.ImageHost.Timeout)
	check("youtube.timeout", c.YouTube.Timeout)
	check("metrics.read_timeout", c.Metrics.ReadTimeout)
	check("metrics.write_timeout", c.Metrics.WriteTimeout)
	check("metrics.idle_timeout", c.Metrics.IdleTimeout)

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required"))
		}
	case "", "none":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if c.Scheduler.BatchSize < 0 {
		errs = append(errs, errors.New("scheduler.batch_size must be >= 0"))
	}
	if c.Gemini.RatePerSec < 0 || c.YouTube.RatePerSec < 0 {
		errs = append(errs, errors.New("rate_per_sec must be >= 0"))
	}
	if t := c.Gemini.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("gemini.temperature: %v out of range [0,2]", *t))
	}
	return errors.Join(errs...)
}
