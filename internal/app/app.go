// Package app wires storage, generators, the scheduler and the ops server
// into one process and applies config reloads to them.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
	"github.com/EshelEyni/Chirper-sub001/internal/botgen/content"
	"github.com/EshelEyni/Chirper-sub001/internal/botgen/post"
	"github.com/EshelEyni/Chirper-sub001/internal/config"
	"github.com/EshelEyni/Chirper-sub001/internal/eventbus"
	"github.com/EshelEyni/Chirper-sub001/internal/observability/metrics"
	"github.com/EshelEyni/Chirper-sub001/internal/observability/server"
	"github.com/EshelEyni/Chirper-sub001/internal/providers/gemini"
	"github.com/EshelEyni/Chirper-sub001/internal/providers/imagehost"
	"github.com/EshelEyni/Chirper-sub001/internal/providers/youtube"
	"github.com/EshelEyni/Chirper-sub001/internal/runtime/supervisor"
	"github.com/EshelEyni/Chirper-sub001/internal/storage"
	"github.com/EshelEyni/Chirper-sub001/internal/task/scheduler"
	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	posts   *post.Assembler
	sched   *scheduler.Service
	metrics *metrics.Metrics
	ops     *server.Service
}

// New loads the config and builds every component. Nothing runs until Start.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log)
	if err != nil {
		return nil, err
	}
	log.Info("storage enabled", logx.String("driver", sc.Driver))

	gen, err := newGenerators(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	posts := post.New(store, store, gen, log, bus)

	sched, err := scheduler.New(mapSchedulerConfig(cfg), store, posts, log, bus)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	a := &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		store:   store,
		posts:   posts,
		sched:   sched,
		metrics: metrics.New(),
	}
	a.metrics.WatchDrops(bus)

	srvCfg, err := mapServerConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.ops = server.New(srvCfg, a.metrics.Handler(), func() any { return a.Health() }, log)
	return a, nil
}

// newGenerators builds the content collaborators that have credentials.
// Missing ones make the matching post types fail at generation time.
func newGenerators(ctx context.Context, cfg *config.Config, log logx.Logger) (*content.Generators, error) {
	gen := &content.Generators{}

	gc, err := mapGeminiConfig(cfg)
	if err != nil {
		return nil, err
	}
	var gem *gemini.Client
	if gc.APIKey != "" {
		if gem, err = gemini.New(ctx, gc, log); err != nil {
			return nil, err
		}
		gen.Text = gem
	} else {
		log.Warn("gemini.api_key not set; text, poll, image and song-review posts will fail")
	}

	hc, err := mapImageHostConfig(cfg)
	if err != nil {
		return nil, err
	}
	if gem != nil && hc.Bucket != "" {
		host, err := imagehost.New(ctx, hc, log)
		if err != nil {
			return nil, err
		}
		gen.Images = imagehost.NewGenerator(gem, host)
	} else {
		log.Warn("image hosting not configured; image posts will fail")
	}

	yc, err := mapYouTubeConfig(cfg)
	if err != nil {
		return nil, err
	}
	if yc.APIKey != "" {
		yt, err := youtube.New(ctx, yc, log)
		if err != nil {
			return nil, err
		}
		gen.Videos = yt
	} else {
		log.Warn("youtube.api_key not set; video and song-review posts will fail")
	}
	return gen, nil
}

func (a *App) Logger() logx.Logger { return a.log }

// CreatePost runs one direct create-post request outside the scheduler.
func (a *App) CreatePost(ctx context.Context, botID string, opts botgen.Options) ([]botgen.Post, error) {
	return a.posts.CreatePost(ctx, botID, opts)
}

// ImportPrompts seeds prompts from a YAML or JSON file.
func (a *App) ImportPrompts(ctx context.Context, path string) (storage.ImportReport, error) {
	return storage.ImportPromptsFile(ctx, a.store, path)
}

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the scheduler (when enabled), the ops server, metrics
// collection and the config watcher.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log)
	a.cfgm.SetValidator(validateReload)

	if a.sched.Enabled() {
		if err := a.sched.Start(a.sup.Context()); err != nil {
			return err
		}
	} else {
		a.log.Info("scheduler disabled")
	}
	a.ops.Start(a.sup.Context())

	a.sup.Go("metrics.collect", func(c context.Context) error {
		return a.metrics.Run(c, a.bus)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started")
	return nil
}

// Stop shuts components down in order, bounding each step.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.sup != nil {
		a.sup.Cancel()
	}

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("scheduler", 5*time.Second, a.sched.Stop)
	step("ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error {
		if a.sup == nil {
			return nil
		}
		return a.sup.Wait(c)
	})
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
