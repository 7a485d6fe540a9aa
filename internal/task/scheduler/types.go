package scheduler

import (
	"context"
	"time"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
)

const (
	DefaultSpec      = "@every 1m"
	DefaultBatchSize = 3
)

type Config struct {
	Enabled   bool
	Spec      string
	BatchSize int
	Timezone  string
}

func (c Config) withDefaults() Config {
	if c.Spec == "" {
		c.Spec = DefaultSpec
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

// Creator runs the create-post pipeline for one bot.
type Creator interface {
	CreatePost(ctx context.Context, botID string, opts botgen.Options) ([]botgen.Post, error)
}

// Clock abstracts time so tests can advance it.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// BatchReport summarizes one batch.
type BatchReport struct {
	Seq       uint64        `json:"seq"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// State is the observable scheduler state.
type State string

const (
	StateStopped  State = "stopped"
	StateIdle     State = "idle"
	StateDraining State = "draining-batch"
)

// Status is a point-in-time view for health output.
type Status struct {
	State      State       `json:"state"`
	Spec       string      `json:"spec"`
	BatchSize  int         `json:"batch_size"`
	Population int         `json:"population"`
	NextRun    time.Time   `json:"next_run,omitzero"`
	LastBatch  BatchReport `json:"last_batch"`
}

// Validate reports whether cfg's spec and timezone compile.
func Validate(cfg Config) error {
	cfg = cfg.withDefaults()
	_, err := compile(cfg.Spec, cfg.Timezone)
	return err
}
