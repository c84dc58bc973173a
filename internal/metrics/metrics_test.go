package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	// idempotent: calling again should be no-op
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	ComponentStarted("topology")
	ComponentStarted("topology")
	ComponentFailed("controller-workers")
	ProcessLaunched("api")
	ProcessStopped("api", false)
	ProcessStopped("controller-s1", true)
	MonitorTick()
	ExportRan()
	PacketLogged("tcp")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"dpistack_component_starts_total":   false,
		"dpistack_component_failures_total": false,
		"dpistack_process_launches_total":   false,
		"dpistack_process_stops_total":      false,
		"dpistack_monitor_ticks_total":      false,
		"dpistack_export_runs_total":        false,
		"dpistack_pktlog_packets_total":     false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", n)
			}
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	regOK.Store(false)
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	ComponentStarted("monitoring")

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "dpistack_component_starts_total") {
		t.Fatal("metrics output missing component starts counter")
	}
}

func TestMetricsBeforeRegister(t *testing.T) {
	originalState := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(originalState)

	// no-ops, must not panic
	ComponentStarted("topology")
	ComponentFailed("topology")
	ProcessLaunched("api")
	ProcessStopped("api", true)
	MonitorTick()
	ExportRan()
	PacketLogged("udp")
}

func TestRegisterError(t *testing.T) {
	originalState := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(originalState)

	err := Register(&errorRegisterer{})
	if err == nil {
		t.Fatal("Register should return error from failing registerer")
	}
	if regOK.Load() {
		t.Fatal("regOK must stay false after failed registration")
	}
}

type errorRegisterer struct{}

func (e *errorRegisterer) Register(prometheus.Collector) error {
	return errors.New("test registration error")
}

func (e *errorRegisterer) MustRegister(...prometheus.Collector) {}
func (e *errorRegisterer) Unregister(prometheus.Collector) bool { return false }
