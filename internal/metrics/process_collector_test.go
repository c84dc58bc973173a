package metrics

import (
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type staticLister struct {
	pids map[string]int
}

func (s *staticLister) Pids() map[string]int { return s.pids }

func gatherNamed(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestProcessCollectorReportsLiveProcess(t *testing.T) {
	// the test process itself is guaranteed to be alive
	lister := &staticLister{pids: map[string]int{"self": os.Getpid()}}
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewProcessCollector(lister)); err != nil {
		t.Fatalf("register: %v", err)
	}

	mf := gatherNamed(t, reg, "dpistack_process_up")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("expected one up sample, got %v", mf)
	}
	m := mf.GetMetric()[0]
	if m.GetGauge().GetValue() != 1 {
		t.Fatalf("up = %v, want 1", m.GetGauge().GetValue())
	}
	if m.GetLabel()[0].GetValue() != "self" {
		t.Fatalf("label = %v, want self", m.GetLabel()[0].GetValue())
	}
}

func TestProcessCollectorDeadProcess(t *testing.T) {
	// PID 1<<22+1 is beyond the default pid_max on Linux
	lister := &staticLister{pids: map[string]int{"gone": 1<<22 + 1}}
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewProcessCollector(lister)); err != nil {
		t.Fatalf("register: %v", err)
	}

	mf := gatherNamed(t, reg, "dpistack_process_up")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("expected one up sample, got %v", mf)
	}
	if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 0 {
		t.Fatalf("up = %v, want 0", v)
	}
}

func TestProcessCollectorEmptyLister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewProcessCollector(&staticLister{})); err != nil {
		t.Fatalf("register: %v", err)
	}
	if mf := gatherNamed(t, reg, "dpistack_process_up"); mf != nil {
		t.Fatalf("expected no samples, got %v", mf)
	}
}
