package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/EshelEyni/Chirper-sub001/internal/config"
	"github.com/EshelEyni/Chirper-sub001/internal/task/scheduler"
	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

// validateReload rejects configs the running app could not apply.
func validateReload(_ context.Context, cfg *config.Config) error {
	var errs []error
	if err := scheduler.Validate(mapSchedulerConfig(cfg)); err != nil {
		errs = append(errs, err)
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	if _, err := mapServerConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	if _, err := mapGeminiConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// restartOnly lists sections whose clients are built once in New.
var restartOnly = map[string]bool{
	"storage":    true,
	"gemini":     true,
	"image_host": true,
	"youtube":    true,
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	for _, s := range sections {
		if restartOnly[s] {
			a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLogConfig(next))

	wasEnabled := a.sched.Enabled()
	sc := mapSchedulerConfig(next)
	if err := a.sched.Apply(sc); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		switch {
		case wasEnabled && !sc.Enabled:
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = a.sched.Stop(stopCtx)
			cancel()
		case !wasEnabled && sc.Enabled:
			a.log.Info("scheduler enabled via config")
			if err := a.sched.Start(ctx); err != nil {
				a.log.Error("scheduler start failed", logx.Err(err))
			}
		}
	}

	if srv, err := mapServerConfig(next); err != nil {
		a.log.Warn("invalid metrics config; keeping previous", logx.Err(err))
	} else {
		a.ops.Reconfigure(ctx, srv)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
