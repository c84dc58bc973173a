package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dpistack/dpistack/internal/pktlog"
)

// startPostgresContainer starts a PostgreSQL container and returns a DSN for
// the pgx stdlib driver. It skips the test if Docker is unavailable.
func startPostgresContainer(t *testing.T) (dsn string, terminate func()) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
	)
	if err != nil {
		cancel()
		t.Skipf("Failed to start PostgreSQL container: %v", err)
		return "", nil
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		cancel()
		t.Skipf("Failed to get host info: %v", err)
		return "", nil
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		cancel()
		t.Skipf("Failed to get mapped port: %v", err)
		return "", nil
	}

	// wait for readiness
	deadline := time.Now().Add(time.Minute)
	dsn = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
	for time.Now().Before(deadline) {
		db, err := New(dsn)
		if err == nil {
			if perr := db.db.PingContext(ctx); perr == nil {
				_ = db.Close()
				break
			}
			_ = db.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}

	return dsn, func() {
		_ = container.Terminate(ctx)
		cancel()
	}
}

func TestPostgresStoreRoundtrip(t *testing.T) {
	dsn, terminate := startPostgresContainer(t)
	defer terminate()

	db, err := New(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	now := time.Now()
	for i := 0; i < 4; i++ {
		p := pktlog.Packet{
			Timestamp: now.Add(time.Duration(i) * time.Second),
			SrcIP:     "10.0.1.1",
			DstIP:     "10.0.2.2",
			SrcPort:   40000 + i,
			DstPort:   443,
			Protocol:  "tcp",
			Layer4:    "tcp",
			Size:      100,
			TTL:       64,
			Suspect:   i == 0,
			Malformed: i == 1,
		}
		if err := db.Insert(ctx, p); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	st, err := db.Aggregate(ctx)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if st.Total != 4 || st.Suspicious != 1 || st.Malformed != 1 || st.Bytes != 400 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	window, err := db.Range(ctx, now.Add(time.Second), now.Add(3*time.Second), 10)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("range: want 2 packets, got %d", len(window))
	}
}
