// Package metrics turns pipeline lifecycle events into Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EshelEyni/Chirper-sub001/internal/eventbus"
)

const namespace = "botgen"

// Metrics holds the collectors fed from the event bus. Each instance owns
// its registry.
type Metrics struct {
	Registry *prometheus.Registry

	Batches       prometheus.Counter
	BatchItems    *prometheus.CounterVec
	BatchDuration prometheus.Histogram
	LastBatch     prometheus.Gauge

	Posts        *prometheus.CounterVec
	PostDuration *prometheus.HistogramVec
	Fields       *prometheus.CounterVec
	ItemFailures *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Scheduler batches run.",
		}),
		BatchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Scheduler batch items by result.",
		}, []string{"result"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one scheduler batch.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}),
		LastBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_timestamp_seconds",
			Help:      "Unix time the last scheduler batch finished.",
		}),
		Posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_total",
			Help:      "Post iterations by type and result.",
		}, []string{"type", "result"}),
		PostDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "post_duration_seconds",
			Help:      "Time to generate and persist one post.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		Fields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_generations_total",
			Help:      "Content field generations by field and result.",
		}, []string{"field", "result"}),
		ItemFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_failures_total",
			Help:      "Scheduler items that failed, by error kind.",
		}, []string{"kind"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Batches, m.BatchItems, m.BatchDuration, m.LastBatch,
		m.Posts, m.PostDuration, m.Fields, m.ItemFailures,
	)
	return m
}

// WatchDrops exports the bus drop count when the bus tracks it.
func (m *Metrics) WatchDrops(bus eventbus.Bus) {
	dc, ok := bus.(eventbus.DropCounter)
	if !ok {
		return
	}
	m.Registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Lifecycle events not delivered to a slow subscriber.",
	}, func() float64 { return float64(dc.Dropped()) }))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Observe updates collectors for one event. Unknown events are ignored.
func (m *Metrics) Observe(e eventbus.Event) {
	switch d := e.Data.(type) {
	case eventbus.BatchData:
		if e.Type != eventbus.TypeBatchEnd {
			return
		}
		m.Batches.Inc()
		m.BatchItems.WithLabelValues("succeeded").Add(float64(d.Succeeded))
		m.BatchItems.WithLabelValues("failed").Add(float64(d.Failed))
		m.BatchDuration.Observe(d.Duration.Seconds())
		m.LastBatch.Set(float64(e.Time.Unix()))
	case eventbus.PostData:
		if e.Type != eventbus.TypePostEnd {
			return
		}
		m.Posts.WithLabelValues(string(d.PostType), result(d.Err)).Inc()
		m.PostDuration.WithLabelValues(string(d.PostType)).Observe(d.Duration.Seconds())
	case eventbus.FieldData:
		if e.Type != eventbus.TypeFieldEnd {
			return
		}
		m.Fields.WithLabelValues(d.Field, result(d.Err)).Inc()
	case eventbus.ItemFailedData:
		m.ItemFailures.WithLabelValues(d.Kind.String()).Inc()
	}
}

// Run consumes bus events until ctx is done.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(256,
		eventbus.TypeBatchEnd, eventbus.TypePostEnd, eventbus.TypeFieldEnd, eventbus.TypeItemFailed)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			m.Observe(e)
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
