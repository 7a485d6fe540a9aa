package app

import (
	"github.com/EshelEyni/Chirper-sub001/internal/eventbus"
	"github.com/EshelEyni/Chirper-sub001/internal/runtime/supervisor"
	"github.com/EshelEyni/Chirper-sub001/internal/task/scheduler"
)

// Health is the /healthz body.
type Health struct {
	Status        string                         `json:"status"`
	Scheduler     scheduler.Status               `json:"scheduler"`
	Supervisors   map[string]supervisor.Snapshot `json:"supervisors"`
	EventsDropped uint64                         `json:"events_dropped"`
}

func (a *App) Health() Health {
	h := Health{
		Status:    "ok",
		Scheduler: a.sched.Status(),
		Supervisors: map[string]supervisor.Snapshot{
			"app":       a.sup.Snapshot(),
			"scheduler": a.sched.Goroutines(),
			"ops":       a.ops.Supervisor().Snapshot(),
		},
	}
	if a.Err() != nil {
		h.Status = "degraded"
	}
	if dc, ok := a.bus.(eventbus.DropCounter); ok {
		h.EventsDropped = dc.Dropped()
	}
	return h
}
