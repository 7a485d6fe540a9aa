package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
	"github.com/EshelEyni/Chirper-sub001/internal/eventbus"
)

func TestObserve(t *testing.T) {
	t.Parallel()

	m := New()
	now := time.Unix(1_800_000_000, 0)
	events := []eventbus.Event{
		{Type: eventbus.TypeBatchStart, Data: eventbus.BatchData{Seq: 1, Size: 3}},
		{Type: eventbus.TypePostEnd, Data: eventbus.PostData{PostType: botgen.PostPoll, Duration: time.Second}},
		{Type: eventbus.TypePostEnd, Data: eventbus.PostData{PostType: botgen.PostPoll, Err: errors.New("x")}},
		{Type: eventbus.TypePostStart, Data: eventbus.PostData{PostType: botgen.PostPoll}},
		{Type: eventbus.TypeFieldEnd, Data: eventbus.FieldData{Field: "poll"}},
		{Type: eventbus.TypeItemFailed, Data: eventbus.ItemFailedData{Kind: botgen.KindMalformedContent}},
		{Type: eventbus.TypeBatchEnd, Time: now, Data: eventbus.BatchData{Seq: 1, Size: 3, Succeeded: 2, Failed: 1, Duration: 3 * time.Second}},
	}
	for _, e := range events {
		m.Observe(e)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"batches", testutil.ToFloat64(m.Batches), 1},
		{"items ok", testutil.ToFloat64(m.BatchItems.WithLabelValues("succeeded")), 2},
		{"items failed", testutil.ToFloat64(m.BatchItems.WithLabelValues("failed")), 1},
		{"last batch", testutil.ToFloat64(m.LastBatch), float64(now.Unix())},
		{"poll ok", testutil.ToFloat64(m.Posts.WithLabelValues("poll", "ok")), 1},
		{"poll error", testutil.ToFloat64(m.Posts.WithLabelValues("poll", "error")), 1},
		{"field", testutil.ToFloat64(m.Fields.WithLabelValues("poll", "ok")), 1},
		{"failure kind", testutil.ToFloat64(m.ItemFailures.WithLabelValues("malformed_content")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Fatalf("%s=%v want %v", c.name, c.got, c.want)
		}
	}
}

func TestRunConsumesBusAndServes(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	m := New()
	m.WatchDrops(bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx, bus)
	}()

	// Run subscribes asynchronously; publish until the counter moves.
	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(m.ItemFailures.WithLabelValues("external")) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("event never observed")
		}
		eventbus.Emit(bus, eventbus.TypeItemFailed, eventbus.ItemFailedData{Kind: botgen.KindExternal})
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"botgen_item_failures_total", "botgen_events_dropped_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Fatalf("missing %s in exposition", name)
		}
	}
}
