package traffic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dpistack/dpistack/internal/config"
	"github.com/dpistack/dpistack/internal/pktlog"
)

type memStore struct {
	mu      sync.Mutex
	packets []pktlog.Packet
}

func (m *memStore) EnsureSchema(context.Context) error { return nil }

func (m *memStore) Insert(_ context.Context, p pktlog.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, p)
	return nil
}

func (m *memStore) Aggregate(context.Context) (pktlog.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pktlog.Stats{Total: int64(len(m.packets))}, nil
}

func (m *memStore) Recent(context.Context, time.Time, int) ([]pktlog.Packet, error) {
	return nil, nil
}

func (m *memStore) Range(context.Context, time.Time, time.Time, int) ([]pktlog.Packet, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) all() []pktlog.Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pktlog.Packet, len(m.packets))
	copy(out, m.packets)
	return out
}

func newTestGenerator(t *testing.T, cfg config.Traffic, store *memStore) *Generator {
	t.Helper()
	lg, err := pktlog.NewLogger(context.Background(), store)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return New(cfg, lg)
}

func TestGeneratorProducesProfileTraffic(t *testing.T) {
	store := &memStore{}
	g := newTestGenerator(t, config.Traffic{
		Interval: 5 * time.Millisecond,
		Profiles: []config.TrafficProfile{
			{Name: "scan", SrcIP: "10.0.9.9", DstIP: "10.0.2.2", DstPort: 22, Protocol: "tcp", Suspicious: true},
		},
	}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.all()) >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	packets := store.all()
	if len(packets) < 3 {
		t.Fatalf("recorded %d packets, want at least 3", len(packets))
	}
	for _, p := range packets {
		if p.SrcIP != "10.0.9.9" || p.DstPort != 22 || !p.Suspect {
			t.Fatalf("packet does not match profile: %+v", p)
		}
		if p.SrcMAC == "" || p.Timestamp.IsZero() {
			t.Fatalf("packet missing synthesized fields: %+v", p)
		}
		if p.SrcPort < 1024 {
			t.Fatalf("src port %d below ephemeral range", p.SrcPort)
		}
	}
}

func TestGeneratorStop(t *testing.T) {
	store := &memStore{}
	g := newTestGenerator(t, config.Traffic{Interval: 5 * time.Millisecond}, store)

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Run(context.Background())
	}()

	if !g.Running() {
		t.Fatal("expected running before stop")
	}
	g.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not exit after stop")
	}
	if g.Running() {
		t.Fatal("expected not running after stop")
	}
	g.Stop() // idempotent
}

func TestDefaultProfilesUsedWhenUnconfigured(t *testing.T) {
	store := &memStore{}
	g := newTestGenerator(t, config.Traffic{}, store)
	if len(g.profiles) == 0 {
		t.Fatal("expected default profiles")
	}
	if g.interval != time.Second {
		t.Fatalf("interval = %v, want 1s default", g.interval)
	}
}

func TestLayer4Mapping(t *testing.T) {
	cases := map[string]string{
		"tcp":  "tcp",
		"http": "tcp",
		"udp":  "udp",
		"dns":  "udp",
		"icmp": "icmp",
	}
	for proto, want := range cases {
		if got := layer4For(proto); got != want {
			t.Errorf("layer4For(%q) = %q, want %q", proto, got, want)
		}
	}
}
