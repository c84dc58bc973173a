package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	gops "github.com/shirou/gopsutil/v4/process"
)

// ProcessLister yields the PIDs and names of currently tracked processes.
// Implemented by the process registry.
type ProcessLister interface {
	Pids() map[string]int
}

// procCollector exposes live CPU/RSS/liveness gauges for every tracked
// external process. Values are sampled at scrape time via gopsutil.
type procCollector struct {
	lister ProcessLister

	cpuDesc *prometheus.Desc
	rssDesc *prometheus.Desc
	upDesc  *prometheus.Desc
}

// NewProcessCollector builds a prometheus.Collector over lister.
func NewProcessCollector(lister ProcessLister) prometheus.Collector {
	return &procCollector{
		lister: lister,
		cpuDesc: prometheus.NewDesc(
			"dpistack_process_cpu_percent",
			"CPU usage percent of a tracked external process.",
			[]string{"name"}, nil,
		),
		rssDesc: prometheus.NewDesc(
			"dpistack_process_memory_rss_bytes",
			"Resident memory of a tracked external process.",
			[]string{"name"}, nil,
		),
		upDesc: prometheus.NewDesc(
			"dpistack_process_up",
			"1 when the tracked external process is alive.",
			[]string{"name"}, nil,
		),
	}
}

func (c *procCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpuDesc
	ch <- c.rssDesc
	ch <- c.upDesc
}

func (c *procCollector) Collect(ch chan<- prometheus.Metric) {
	for name, pid := range c.lister.Pids() {
		p, err := gops.NewProcess(int32(pid))
		if err != nil {
			ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, 0, name)
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, 1, name)
		if cpu, err := p.CPUPercent(); err == nil {
			ch <- prometheus.MustNewConstMetric(c.cpuDesc, prometheus.GaugeValue, cpu, name)
		}
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			ch <- prometheus.MustNewConstMetric(c.rssDesc, prometheus.GaugeValue, float64(mem.RSS), name)
		}
	}
}
