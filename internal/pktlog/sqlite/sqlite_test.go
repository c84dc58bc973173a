package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/dpistack/dpistack/internal/pktlog"
)

func openStore(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db
}

func samplePacket(ts time.Time, suspicious bool) pktlog.Packet {
	return pktlog.Packet{
		Timestamp: ts,
		SrcMAC:    "02:00:00:00:00:01",
		DstMAC:    "02:00:00:00:00:02",
		SrcIP:     "10.0.1.1",
		DstIP:     "10.0.2.2",
		SrcPort:   43210,
		DstPort:   80,
		Protocol:  "tcp",
		Layer4:    "tcp",
		Size:      512,
		TTL:       64,
		Suspect:   suspicious,
	}
}

func TestInsertAndAggregate(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		if err := db.Insert(ctx, samplePacket(now, i%2 == 0)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	st, err := db.Aggregate(ctx)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if st.Total != 5 || st.Suspicious != 3 || st.Bytes != 5*512 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestRecentAndRange(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 10; i++ {
		p := samplePacket(base.Add(time.Duration(i)*time.Minute), false)
		if err := db.Insert(ctx, p); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	recent, err := db.Recent(ctx, base.Add(5*time.Minute), 100)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("recent: want 5 packets, got %d", len(recent))
	}

	window, err := db.Range(ctx, base.Add(2*time.Minute), base.Add(5*time.Minute), 100)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("range: want 3 packets, got %d", len(window))
	}
	if !window[0].Timestamp.Before(window[len(window)-1].Timestamp) {
		t.Fatalf("range must be ascending")
	}
	got := window[0]
	if got.SrcIP != "10.0.1.1" || got.DstPort != 80 || got.TTL != 64 {
		t.Fatalf("packet fields lost on roundtrip: %+v", got)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
