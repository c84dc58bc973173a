// Package pktlog records packet observations for the current demo run and
// serves aggregate statistics over them. Backends are pluggable; SQLite is
// the default, PostgreSQL and ClickHouse are available for larger setups.
package pktlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/dpistack/dpistack/internal/metrics"
)

// Packet is one recorded observation. Field set mirrors the packets table
// the data-serving API reads.
type Packet struct {
	Timestamp time.Time `json:"timestamp"`
	SrcMAC    string    `json:"src_mac,omitempty"`
	DstMAC    string    `json:"dst_mac,omitempty"`
	SrcIP     string    `json:"src_ip"`
	DstIP     string    `json:"dst_ip"`
	SrcPort   int       `json:"src_port"`
	DstPort   int       `json:"dst_port"`
	Protocol  string    `json:"protocol"`
	Layer4    string    `json:"layer4_protocol"`
	Size      int       `json:"packet_size"`
	TTL       int       `json:"ttl"`
	Suspect   bool      `json:"is_suspicious"`
	Malformed bool      `json:"is_malformed"`
}

// Stats is a per-run aggregate over recorded packets.
type Stats struct {
	Total      int64 `json:"total_packets"`
	Suspicious int64 `json:"suspicious_packets"`
	Malformed  int64 `json:"malformed_packets"`
	Bytes      int64 `json:"total_bytes"`
}

// Store persists packets. Implementations must be safe for concurrent use.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, p Packet) error
	Aggregate(ctx context.Context) (Stats, error)
	Recent(ctx context.Context, since time.Time, limit int) ([]Packet, error)
	Range(ctx context.Context, from, to time.Time, limit int) ([]Packet, error)
	Close() error
}

// Logger is the packet-logging collaborator the orchestrator constructs at
// startup and closes at shutdown. It is a thin recording layer over a Store.
type Logger struct {
	store Store
}

// NewLogger ensures the backing schema and returns a ready Logger.
func NewLogger(ctx context.Context, store Store) (*Logger, error) {
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return &Logger{store: store}, nil
}

// Record persists one packet. Failures are logged, not propagated; a lossy
// packet log must never disturb the traffic loop.
func (l *Logger) Record(ctx context.Context, p Packet) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	if err := l.store.Insert(ctx, p); err != nil {
		slog.Error("packet insert failed", "error", err)
		return
	}
	metrics.PacketLogged(p.Protocol)
}

// Stats returns the current per-run aggregate.
func (l *Logger) Stats(ctx context.Context) (Stats, error) {
	return l.store.Aggregate(ctx)
}

// Close releases the backing store.
func (l *Logger) Close() error { return l.store.Close() }
