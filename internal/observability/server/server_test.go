package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

func waitAddr(t *testing.T, s *Service) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a := s.Addr(); a != "" {
			return a
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never bound")
	return ""
}

func get(t *testing.T, url, token string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestServesHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "botgen_batches_total 4\n")
	})
	health := func() any { return map[string]any{"state": "idle", "population": 7} }

	s := New(Config{Enabled: true, Addr: "127.0.0.1:0", Token: "s3cret", Pprof: true}, metrics, health, logx.Nop())
	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)
	base := "http://" + waitAddr(t, s)

	if code, _ := get(t, base+"/healthz", ""); code != http.StatusUnauthorized {
		t.Fatalf("no token: code=%d", code)
	}
	if code, _ := get(t, base+"/healthz?token=wrong", ""); code != http.StatusUnauthorized {
		t.Fatalf("wrong token: code=%d", code)
	}

	code, body := get(t, base+"/healthz", "s3cret")
	if code != http.StatusOK {
		t.Fatalf("healthz code=%d", code)
	}
	var h map[string]any
	if err := json.Unmarshal([]byte(body), &h); err != nil || h["state"] != "idle" {
		t.Fatalf("healthz body=%q err=%v", body, err)
	}

	if code, body := get(t, base+"/metrics?token=s3cret", ""); code != http.StatusOK || body != "botgen_batches_total 4\n" {
		t.Fatalf("metrics code=%d body=%q", code, body)
	}
	if code, _ := get(t, base+"/debug/pprof/cmdline", "s3cret"); code != http.StatusOK {
		t.Fatalf("pprof code=%d", code)
	}
}

func TestReconfigureDisables(t *testing.T) {
	s := New(Config{}, nil, nil, logx.Nop())
	ctx := context.Background()
	s.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})
	base := "http://" + waitAddr(t, s)

	code, body := get(t, base+"/healthz", "")
	if code != http.StatusOK || body != "{\"status\":\"ok\"}\n" {
		t.Fatalf("code=%d body=%q", code, body)
	}
	if code, _ := get(t, base+"/debug/pprof/", ""); code != http.StatusNotFound {
		t.Fatalf("pprof should be off: code=%d", code)
	}

	s.Reconfigure(ctx, Config{Enabled: false})
	if s.Addr() != "" || s.Supervisor() != nil {
		t.Fatalf("server still running at %q", s.Addr())
	}
}

func TestRefusesInsecureBind(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, nil, nil, logx.Nop())
	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	time.Sleep(50 * time.Millisecond)
	if a := s.Addr(); a != "" {
		t.Fatalf("bound to %s without token", a)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"127.0.0.1:9090": true,
		"localhost:80":   true,
		"[::1]:9090":     true,
		":9090":          false,
		"0.0.0.0:9090":   false,
		"10.0.0.5:9090":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
