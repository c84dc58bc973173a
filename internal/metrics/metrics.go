package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	componentStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpistack",
			Subsystem: "component",
			Name:      "starts_total",
			Help:      "Number of successful sequenced component starts.",
		}, []string{"component"},
	)
	componentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpistack",
			Subsystem: "component",
			Name:      "failures_total",
			Help:      "Number of sequenced component start failures.",
		}, []string{"component"},
	)
	processLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpistack",
			Subsystem: "process",
			Name:      "launches_total",
			Help:      "Number of external process launches.",
		}, []string{"name"},
	)
	processStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpistack",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of external process terminations by mode (term or kill).",
		}, []string{"name", "mode"},
	)
	monitorTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dpistack",
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Number of completed health monitor ticks.",
		},
	)
	exportRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dpistack",
			Subsystem: "export",
			Name:      "runs_total",
			Help:      "Number of completed delayed export invocations.",
		},
	)
	packetsLogged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpistack",
			Subsystem: "pktlog",
			Name:      "packets_total",
			Help:      "Number of packets recorded per protocol.",
		}, []string{"protocol"},
	)
)

// Register registers all collectors on reg. Safe to call once per process;
// duplicate registration errors are tolerated so embedding apps can share a
// registry.
func Register(reg prometheus.Registerer) error {
	cs := []prometheus.Collector{
		componentStarts, componentFailures, processLaunches, processStops,
		monitorTicks, exportRuns, packetsLogged,
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an HTTP handler for the default Prometheus registry.
func Handler() http.Handler { return promhttp.Handler() }

func ComponentStarted(name string) {
	if regOK.Load() {
		componentStarts.WithLabelValues(name).Inc()
	}
}

func ComponentFailed(name string) {
	if regOK.Load() {
		componentFailures.WithLabelValues(name).Inc()
	}
}

func ProcessLaunched(name string) {
	if regOK.Load() {
		processLaunches.WithLabelValues(name).Inc()
	}
}

func ProcessStopped(name string, killed bool) {
	if !regOK.Load() {
		return
	}
	mode := "term"
	if killed {
		mode = "kill"
	}
	processStops.WithLabelValues(name, mode).Inc()
}

func MonitorTick() {
	if regOK.Load() {
		monitorTicks.Inc()
	}
}

func ExportRan() {
	if regOK.Load() {
		exportRuns.Inc()
	}
}

func PacketLogged(protocol string) {
	if regOK.Load() {
		packetsLogged.WithLabelValues(protocol).Inc()
	}
}
