// Package traffic synthesizes flow records so the pipeline has data to
// inspect even without live hosts behind the emulated network.
package traffic

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/dpistack/dpistack/internal/config"
	"github.com/dpistack/dpistack/internal/pktlog"
)

// Generator cycles through configured traffic profiles and records one
// packet per tick through the packet logger.
type Generator struct {
	profiles []config.TrafficProfile
	interval time.Duration
	log      *pktlog.Logger
	rnd      *rand.Rand
	stopped  atomic.Bool
}

func New(cfg config.Traffic, log *pktlog.Logger) *Generator {
	profiles := cfg.Profiles
	if len(profiles) == 0 {
		profiles = defaultProfiles()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &Generator{
		profiles: profiles,
		interval: interval,
		log:      log,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- synthetic jitter only
	}
}

// Run generates packets until ctx is cancelled or Stop is called. Runtime
// errors stay inside the loop; the packet logger already logs them.
func (g *Generator) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.stopped.Load() {
				return
			}
			g.log.Record(ctx, g.synthesize())
		}
	}
}

// Stop asks the generation loop to exit on its next tick. Idempotent.
func (g *Generator) Stop() { g.stopped.Store(true) }

// Running reports whether Stop has not been called.
func (g *Generator) Running() bool { return !g.stopped.Load() }

func (g *Generator) synthesize() pktlog.Packet {
	p := g.profiles[g.rnd.Intn(len(g.profiles))]
	size := p.SizeBytes
	if size <= 0 {
		size = 64 + g.rnd.Intn(1400)
	}
	return pktlog.Packet{
		Timestamp: time.Now(),
		SrcMAC:    randomMAC(g.rnd),
		DstMAC:    randomMAC(g.rnd),
		SrcIP:     p.SrcIP,
		DstIP:     p.DstIP,
		SrcPort:   1024 + g.rnd.Intn(64000),
		DstPort:   p.DstPort,
		Protocol:  p.Protocol,
		Layer4:    layer4For(p.Protocol),
		Size:      size,
		TTL:       64,
		Suspect:   p.Suspicious,
	}
}

func layer4For(protocol string) string {
	switch protocol {
	case "udp", "dns":
		return "udp"
	case "icmp":
		return "icmp"
	default:
		return "tcp"
	}
}

func randomMAC(rnd *rand.Rand) string {
	return fmt.Sprintf("02:%02x:%02x:%02x:%02x:%02x",
		rnd.Intn(256), rnd.Intn(256), rnd.Intn(256), rnd.Intn(256), rnd.Intn(256))
}

func defaultProfiles() []config.TrafficProfile {
	return []config.TrafficProfile{
		{Name: "web", SrcIP: "10.0.1.1", DstIP: "10.0.2.2", DstPort: 80, Protocol: "tcp"},
		{Name: "tls", SrcIP: "10.0.1.1", DstIP: "10.0.2.2", DstPort: 443, Protocol: "tcp"},
		{Name: "dns", SrcIP: "10.0.1.2", DstIP: "10.0.2.1", DstPort: 53, Protocol: "udp"},
		{Name: "ssh-probe", SrcIP: "10.0.3.9", DstIP: "10.0.2.2", DstPort: 22, Protocol: "tcp", Suspicious: true},
	}
}
