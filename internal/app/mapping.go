package app

import (
	"errors"
	"strings"
	"time"

	"github.com/EshelEyni/Chirper-sub001/internal/config"
	"github.com/EshelEyni/Chirper-sub001/internal/observability/server"
	"github.com/EshelEyni/Chirper-sub001/internal/providers/gemini"
	"github.com/EshelEyni/Chirper-sub001/internal/providers/imagehost"
	"github.com/EshelEyni/Chirper-sub001/internal/providers/youtube"
	"github.com/EshelEyni/Chirper-sub001/internal/storage"
	"github.com/EshelEyni/Chirper-sub001/internal/task/scheduler"
	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		Format:  cfg.Logging.Format,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, errors.New("storage.driver is required (file or sqlite)")
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:   cfg.Scheduler.Enabled,
		Spec:      strings.TrimSpace(cfg.Scheduler.Spec),
		BatchSize: cfg.Scheduler.BatchSize,
		Timezone:  strings.TrimSpace(cfg.Scheduler.Timezone),
	}
}

func mapGeminiConfig(cfg *config.Config) (gemini.Config, error) {
	g := cfg.Gemini
	timeout, err := config.ParseDurationOrDefault("gemini.timeout", g.Timeout, 60*time.Second)
	if err != nil {
		return gemini.Config{}, err
	}
	return gemini.Config{
		APIKey:      strings.TrimSpace(g.APIKey),
		BaseURL:     strings.TrimSpace(g.BaseURL),
		TextModel:   strings.TrimSpace(g.TextModel),
		ImageModel:  strings.TrimSpace(g.ImageModel),
		Temperature: g.Temperature,
		RatePerSec:  g.RatePerSec,
		Burst:       g.Burst,
		Timeout:     timeout,
	}, nil
}

func mapImageHostConfig(cfg *config.Config) (imagehost.Config, error) {
	h := cfg.ImageHost
	timeout, err := config.ParseDurationOrDefault("image_host.timeout", h.Timeout, 30*time.Second)
	if err != nil {
		return imagehost.Config{}, err
	}
	return imagehost.Config{
		Bucket:        strings.TrimSpace(h.Bucket),
		Prefix:        strings.TrimSpace(h.Prefix),
		Region:        strings.TrimSpace(h.Region),
		Endpoint:      strings.TrimSpace(h.Endpoint),
		AccessKey:     strings.TrimSpace(h.AccessKey),
		SecretKey:     strings.TrimSpace(h.SecretKey),
		PublicBaseURL: strings.TrimSpace(h.PublicBaseURL),
		UsePathStyle:  h.UsePathStyle,
		Timeout:       timeout,
	}, nil
}

func mapYouTubeConfig(cfg *config.Config) (youtube.Config, error) {
	y := cfg.YouTube
	timeout, err := config.ParseDurationOrDefault("youtube.timeout", y.Timeout, 15*time.Second)
	if err != nil {
		return youtube.Config{}, err
	}
	return youtube.Config{
		APIKey:     strings.TrimSpace(y.APIKey),
		Endpoint:   strings.TrimSpace(y.Endpoint),
		RatePerSec: y.RatePerSec,
		Timeout:    timeout,
	}, nil
}

func mapServerConfig(cfg *config.Config) (server.Config, error) {
	m := cfg.Metrics
	read, err := config.ParseDurationOrDefault("metrics.read_timeout", m.ReadTimeout, 5*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	// pprof profiles stream for up to 30s by default.
	write, err := config.ParseDurationOrDefault("metrics.write_timeout", m.WriteTimeout, 35*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("metrics.idle_timeout", m.IdleTimeout, 60*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Enabled:       m.Enabled,
		Addr:          strings.TrimSpace(m.Addr),
		Token:         strings.TrimSpace(m.Token),
		AllowInsecure: m.AllowInsecure,
		Pprof:         m.Pprof,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
	}, nil
}
