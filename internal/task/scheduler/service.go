package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
	"github.com/EshelEyni/Chirper-sub001/internal/botgen/rotation"
	"github.com/EshelEyni/Chirper-sub001/internal/eventbus"
	"github.com/EshelEyni/Chirper-sub001/internal/runtime/supervisor"
	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

// Service owns the trigger loop and the rotation it draws batches from.
type Service struct {
	log     logx.Logger
	bus     eventbus.Bus
	lister  rotation.PromptLister
	creator Creator
	clock   Clock
	rng     *rand.Rand

	mu         sync.Mutex
	cfg        Config
	sched      cron.Schedule
	sup        *supervisor.Supervisor
	state      State
	next       time.Time
	last       BatchReport
	population int
	reset      chan struct{}

	// runMu serializes batches and guards rot.
	runMu sync.Mutex
	rot   *rotation.Rotation
	seq   atomic.Uint64
}

type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

// WithRand sets the source used to shuffle the rotation.
func WithRand(r *rand.Rand) Option { return func(s *Service) { s.rng = r } }

func New(cfg Config, lister rotation.PromptLister, creator Creator, log logx.Logger, bus eventbus.Bus, opts ...Option) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if lister == nil || creator == nil {
		return nil, errors.New("scheduler: prompt lister and creator are required")
	}
	cfg = cfg.withDefaults()
	sched, err := compile(cfg.Spec, cfg.Timezone)
	if err != nil {
		return nil, err
	}
	s := &Service{
		log:     log.With(logx.String("comp", "scheduler")),
		bus:     bus,
		lister:  lister,
		creator: creator,
		clock:   realClock{},
		cfg:     cfg,
		sched:   sched,
		state:   StateStopped,
		reset:   make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Enabled reports the current config flag.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the trigger spec and batch size. A running loop re-arms with
// the new schedule right away.
func (s *Service) Apply(cfg Config) error {
	cfg = cfg.withDefaults()
	sched, err := compile(cfg.Spec, cfg.Timezone)
	if err != nil {
		return err
	}
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.sched = sched
	s.mu.Unlock()

	if old.Spec != cfg.Spec || old.Timezone != cfg.Timezone {
		select {
		case s.reset <- struct{}{}:
		default:
		}
	}
	s.log.Info("config applied",
		logx.String("spec", cfg.Spec),
		logx.Int("batch_size", cfg.BatchSize),
		logx.String("tz", cfg.Timezone),
	)
	return nil
}

// Start seeds the rotation (once per Service) and starts the trigger loop.
// Calling Start on a running Service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	running := s.sup != nil
	s.mu.Unlock()
	if running {
		return nil
	}

	// Lock order is runMu then mu, matching RunBatch.
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.rot == nil {
		rot, err := rotation.Seed(ctx, s.lister, s.rng)
		if err != nil {
			return fmt.Errorf("seed rotation: %w", err)
		}
		s.rot = rot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return nil
	}
	s.population = s.rot.Len()
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log))
	s.state = StateIdle
	s.sup.Go("scheduler.loop", s.loop)
	s.log.Info("service started",
		logx.String("spec", s.cfg.Spec),
		logx.Int("batch_size", s.cfg.BatchSize),
		logx.Int("population", s.population),
	)
	if s.population == 0 {
		s.log.Warn("rotation is empty; batches will be skipped")
	}
	return nil
}

// Stop cancels the trigger loop and waits for an in-flight batch to return.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.state = StateStopped
	s.next = time.Time{}
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	s.log.Info("stop requested")
	err := sup.Stop(ctx)
	s.log.Info("service stopped")
	return err
}

// Goroutines reports the loop's supervisor stats.
func (s *Service) Goroutines() supervisor.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sup.Snapshot()
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:      s.state,
		Spec:       s.cfg.Spec,
		BatchSize:  s.cfg.BatchSize,
		Population: s.population,
		NextRun:    s.next,
		LastBatch:  s.last,
	}
	return st
}

func (s *Service) loop(ctx context.Context) error {
	for {
		s.mu.Lock()
		sched := s.sched
		s.mu.Unlock()

		now := s.clock.Now()
		next := sched.Next(now)
		if next.IsZero() {
			s.log.Warn("schedule never fires; waiting for a new spec")
			select {
			case <-ctx.Done():
				return nil
			case <-s.reset:
				continue
			}
		}
		s.mu.Lock()
		s.next = next
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-s.reset:
			continue
		case <-s.clock.After(next.Sub(now)):
		}
		// Ticks missed while a batch runs are skipped; the next trigger is
		// computed from the time the batch returned.
		s.RunBatch(ctx)
	}
}

// RunBatch pulls up to BatchSize items and creates posts for them one at a
// time. Item failures (errors and panics) are logged, published as
// item.failed and do not stop the batch.
func (s *Service) RunBatch(ctx context.Context) BatchReport {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	size := s.cfg.BatchSize
	s.mu.Unlock()

	if s.rot == nil || s.rot.Len() == 0 {
		s.log.Debug("batch skipped: rotation is empty")
		return BatchReport{}
	}

	rep := BatchReport{Seq: s.seq.Add(1)}
	start := s.clock.Now()
	s.setState(StateDraining)
	defer s.setState(StateIdle)

	eventbus.Emit(s.bus, eventbus.TypeBatchStart, eventbus.BatchData{Seq: rep.Seq, Size: size})
	s.log.Debug("batch started", logx.Int64("seq", int64(rep.Seq)), logx.Int("size", size))

	for i := 0; i < size; i++ {
		if ctx.Err() != nil {
			break
		}
		item, ok := s.rot.Pull()
		if !ok {
			break
		}
		rep.Attempted++
		if err := s.runItem(ctx, item); err != nil {
			rep.Failed++
			s.log.Error("batch item failed",
				logx.Int64("seq", int64(rep.Seq)),
				logx.Int("item", i),
				logx.String("bot_id", item.BotID),
				logx.String("post_type", string(item.Options.PostType)),
				logx.String("kind", botgen.KindOf(err).String()),
				logx.Err(err),
			)
			eventbus.Emit(s.bus, eventbus.TypeItemFailed, eventbus.ItemFailedData{
				BatchSeq: rep.Seq,
				Item:     i,
				BotID:    item.BotID,
				PostType: item.Options.PostType,
				Message:  err.Error(),
				Kind:     botgen.KindOf(err),
			})
			continue
		}
		rep.Succeeded++
	}

	rep.Duration = s.clock.Now().Sub(start)
	s.mu.Lock()
	s.last = rep
	s.mu.Unlock()

	eventbus.Emit(s.bus, eventbus.TypeBatchEnd, eventbus.BatchData{
		Seq:       rep.Seq,
		Size:      size,
		Succeeded: rep.Succeeded,
		Failed:    rep.Failed,
		Duration:  rep.Duration,
	})
	s.log.Info("batch finished",
		logx.Int64("seq", int64(rep.Seq)),
		logx.Int("attempted", rep.Attempted),
		logx.Int("succeeded", rep.Succeeded),
		logx.Int("failed", rep.Failed),
		logx.Duration("took", rep.Duration),
	)
	return rep
}

// runItem is the per-item error boundary.
func (s *Service) runItem(ctx context.Context, item rotation.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("batch item panicked", logx.String("bot_id", item.BotID), logx.Stack(string(debug.Stack())))
		}
	}()
	_, err = s.creator.CreatePost(ctx, item.BotID, item.Options)
	return err
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	if s.state != StateStopped {
		s.state = st
	}
	s.mu.Unlock()
}
