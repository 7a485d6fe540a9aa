package gemini

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/time/rate"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen/content"
	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

type capture struct {
	mu     sync.Mutex
	paths  []string
	bodies []string
}

func newServer(t *testing.T, reply string) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.paths = append(c.paths, r.URL.Path)
		c.bodies = append(c.bodies, string(b))
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newClient(t *testing.T, baseURL string, temp *float64) *Client {
	t.Helper()
	c, err := New(context.Background(), Config{APIKey: "test-key", BaseURL: baseURL + "/", Temperature: temp}, logx.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return c
}

const textReply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"  hello bots  "}]}}]}`

func TestCompletePlain(t *testing.T) {
	t.Parallel()

	srv, got := newServer(t, textReply)
	c := newClient(t, srv.URL, nil)

	out, err := c.Complete(context.Background(), "say hi", content.ModePlain)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "hello bots" {
		t.Fatalf("out=%q", out)
	}
	if len(got.paths) != 1 || !strings.HasSuffix(got.paths[0], DefaultTextModel+":generateContent") {
		t.Fatalf("paths=%v", got.paths)
	}
	if !strings.Contains(got.bodies[0], "say hi") || strings.Contains(got.bodies[0], "responseMimeType") {
		t.Fatalf("body=%s", got.bodies[0])
	}
}

func TestCompleteStructuredRequestsJSON(t *testing.T) {
	t.Parallel()

	srv, got := newServer(t, textReply)
	temp := 0.4
	c := newClient(t, srv.URL, &temp)

	if _, err := c.Complete(context.Background(), "poll", content.ModeStructured); err != nil {
		t.Fatalf("complete: %v", err)
	}
	body := got.bodies[0]
	if !strings.Contains(body, `"responseMimeType":"application/json"`) || !strings.Contains(body, `"temperature"`) {
		t.Fatalf("body=%s", body)
	}
}

func TestCompleteServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, nil)
	if _, err := c.Complete(context.Background(), "x", content.ModePlain); err == nil || !strings.Contains(err.Error(), "gemini: generate content") {
		t.Fatalf("err=%v", err)
	}
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{APIKey: " "}, logx.Nop()); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err=%v", err)
	}
}

func TestLimiterCancel(t *testing.T) {
	t.Parallel()

	lim := newLimiter(0.001, 1)
	ctx, cancel := context.WithCancel(context.Background())
	if err := lim.Wait(ctx); err != nil {
		t.Fatalf("first token: %v", err)
	}
	cancel()
	if err := lim.Wait(ctx); err == nil {
		t.Fatalf("expected canceled wait")
	}
	if newLimiter(0, 0).Limit() != rate.Inf {
		t.Fatalf("zero rate should be unlimited")
	}
}
