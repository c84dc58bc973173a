package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dpistack/dpistack/internal/health"
	"github.com/dpistack/dpistack/internal/pktlog"
	"github.com/dpistack/dpistack/internal/proc"
)

type fakeSource struct {
	running  bool
	statsErr error
}

func (f *fakeSource) RunID() string { return "20250101_120000" }
func (f *fakeSource) Running() bool { return f.running }

func (f *fakeSource) Health() health.Snapshot {
	s := health.NewSnapshot()
	s.Set(health.ComponentController, f.running)
	return s
}

func (f *fakeSource) Processes() []proc.Status {
	return []proc.Status{
		{Name: "api", PID: 4242, Running: true, StartedAt: time.Now()},
		{Name: "controller-s1", PID: 4243, Running: true, StartedAt: time.Now()},
	}
}

func (f *fakeSource) Stats(context.Context) (pktlog.Stats, error) {
	if f.statsErr != nil {
		return pktlog.Stats{}, f.statsErr
	}
	return pktlog.Stats{Total: 10, Suspicious: 2, Bytes: 1280}, nil
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	h := NewRouter(&fakeSource{running: true}, "").Handler()
	w := get(t, h, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		RunID   string          `json:"run_id"`
		Running bool            `json:"running"`
		Health  health.Snapshot `json:"health"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RunID != "20250101_120000" || !body.Running {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Health.Components[health.ComponentController] != health.StateRunning {
		t.Fatalf("controller state = %s", body.Health.Components[health.ComponentController])
	}
}

func TestProcessesEndpoint(t *testing.T) {
	h := NewRouter(&fakeSource{}, "").Handler()
	w := get(t, h, "/processes")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var procs []proc.Status
	if err := json.Unmarshal(w.Body.Bytes(), &procs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(procs) != 2 || procs[0].Name != "api" {
		t.Fatalf("unexpected processes: %+v", procs)
	}
}

func TestStatsEndpoint(t *testing.T) {
	h := NewRouter(&fakeSource{}, "").Handler()
	w := get(t, h, "/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var st pktlog.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Total != 10 || st.Suspicious != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestStatsEndpointUnavailable(t *testing.T) {
	h := NewRouter(&fakeSource{statsErr: errors.New("controller not started")}, "").Handler()
	w := get(t, h, "/stats")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(&fakeSource{}, "").Handler()
	w := get(t, h, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestBasePath(t *testing.T) {
	h := NewRouter(&fakeSource{}, "dpistack/").Handler()
	if w := get(t, h, "/dpistack/health"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w := get(t, h, "/health"); w.Code != http.StatusNotFound {
		t.Fatalf("unprefixed path: status = %d, want 404", w.Code)
	}
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"/":          "",
		"dpistack":   "/dpistack",
		"/dpistack/": "/dpistack",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Errorf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}
