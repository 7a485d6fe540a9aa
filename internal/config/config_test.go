package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
storage:
  driver: sqlite
  path: ./data/botgen.db
  busy_timeout: 3s
scheduler:
  enabled: true
  spec: 1m
  batch_size: 3
gemini:
  api_key: ${BOTGEN_TEST_GEMINI_KEY}
  text_model: gemini-2.5-flash
  temperature: 0.7
image_host:
  bucket: chirper-bot-images
  region: us-east-1
youtube:
  api_key: "${BOTGEN_TEST_YT_KEY}"
`

func TestParseBytesYAMLWithEnv(t *testing.T) {
	t.Setenv("BOTGEN_TEST_GEMINI_KEY", `se"cret`)
	t.Setenv("BOTGEN_TEST_YT_KEY", "yt-key")

	cfg, err := ParseBytes("botgen.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Gemini.APIKey != `se"cret` {
		t.Fatalf("gemini.api_key=%q", cfg.Gemini.APIKey)
	}
	if cfg.YouTube.APIKey != "yt-key" {
		t.Fatalf("youtube.api_key=%q", cfg.YouTube.APIKey)
	}
	if cfg.Gemini.Temperature == nil || *cfg.Gemini.Temperature != 0.7 {
		t.Fatalf("temperature=%v", cfg.Gemini.Temperature)
	}
	if cfg.Scheduler.BatchSize != 3 || cfg.Scheduler.Spec != "1m" || !cfg.Scheduler.Enabled {
		t.Fatalf("scheduler=%+v", cfg.Scheduler)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.BusyTimeout != "3s" {
		t.Fatalf("storage=%+v", cfg.Storage)
	}
}

func TestParseBytesJSON(t *testing.T) {
	t.Parallel()

	cfg, err := ParseBytes("botgen.json", []byte(`{"storage":{"driver":"file","path":"./x"},"scheduler":{"batch_size":5}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Scheduler.BatchSize != 5 {
		t.Fatalf("batch_size=%d", cfg.Scheduler.BatchSize)
	}
}

func TestParseBytesRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		path string
		data string
	}{
		"unknown field":    {"c.json", `{"database":{}}`},
		"trailing data":    {"c.json", `{} {}`},
		"bad duration":     {"c.json", `{"gemini":{"timeout":"soon"}}`},
		"negative batch":   {"c.json", `{"scheduler":{"batch_size":-1}}`},
		"unknown driver":   {"c.json", `{"storage":{"driver":"mongo","path":"x"}}`},
		"missing path":     {"c.json", `{"storage":{"driver":"file"}}`},
		"bad temperature":  {"c.json", `{"gemini":{"temperature":3}}`},
		"bad yaml":         {"c.yaml", "logging: [unterminated"},
		"yaml unknown key": {"c.yml", "scheduler:\n  workers: 2\n"},
	}
	for name, tc := range cases {
		if _, err := ParseBytes(tc.path, []byte(tc.data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatalf("negative should fail")
	}
	if d, err := ParseDurationOrDefault("x", "", 7*time.Second); err != nil || d != 7*time.Second {
		t.Fatalf("default: %v %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "90s", time.Second); err != nil || d != 90*time.Second {
		t.Fatalf("explicit: %v %v", d, err)
	}
	if d, err := ParseDurationField("x", "45"); err != nil || d != 45*time.Second {
		t.Fatalf("bare seconds: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-3"); err == nil {
		t.Fatalf("negative seconds should fail")
	}
	_, err := ParseDurationField("gemini.timeout", "abc")
	if err == nil || !strings.Contains(err.Error(), "gemini.timeout") {
		t.Fatalf("error should name the field: %v", err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{Scheduler: SchedulerConfig{Spec: "1m", BatchSize: 3}, Gemini: GeminiConfig{APIKey: "a"}}
	newCfg := &Config{Scheduler: SchedulerConfig{Spec: "2m", BatchSize: 3}, Gemini: GeminiConfig{APIKey: "b"}, Metrics: MetricsConfig{Enabled: true}}

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	want := []string{"gemini", "metrics", "scheduler"}
	if !reflect.DeepEqual(changed, want) {
		t.Fatalf("changed=%v want %v", changed, want)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected attrs")
	}

	changed, _ = SummarizeConfigChange(oldCfg, oldCfg)
	if len(changed) != 0 {
		t.Fatalf("identical configs reported %v", changed)
	}
	changed, _ = SummarizeConfigChange(nil, &Config{})
	if len(changed) != 0 {
		t.Fatalf("nil vs zero reported %v", changed)
	}
}

func TestManagerWatchPublishesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "botgen.json")
	if err := os.WriteFile(path, []byte(`{"scheduler":{"batch_size":3}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := NewConfigManager(path)
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	rejected := make(chan struct{}, 1)
	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Scheduler.BatchSize == 99 {
			select {
			case rejected <- struct{}{}:
			default:
			}
			return os.ErrInvalid
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// The watcher registers asynchronously; keep rewriting until it notices.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
waitPublish:
	for {
		select {
		case cfg := <-ch:
			if cfg.Scheduler.BatchSize != 5 {
				t.Fatalf("batch_size=%d", cfg.Scheduler.BatchSize)
			}
			if m.Get().Scheduler.BatchSize != 5 {
				t.Fatalf("Get() not committed")
			}
			break waitPublish
		case <-tick.C:
			_ = os.WriteFile(path, []byte(`{"scheduler":{"batch_size":5}}`), 0o644)
		case <-deadline:
			t.Fatalf("no config published")
		}
	}

	deadline = time.After(5 * time.Second)
	for {
		select {
		case cfg := <-ch:
			t.Fatalf("rejected config was published: %+v", cfg.Scheduler)
		case <-rejected:
			if m.Get().Scheduler.BatchSize != 5 {
				t.Fatalf("rejected config committed")
			}
			return
		case <-tick.C:
			_ = os.WriteFile(path, []byte(`{"scheduler":{"batch_size":99}}`), 0o644)
		case <-deadline:
			t.Fatalf("validator never ran")
		}
	}
}
