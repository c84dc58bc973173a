package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dpistack/dpistack/internal/pktlog"
)

// DB implements pktlog.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// Path is a filesystem path; use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path, creating parent directories.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	if p != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return nil, err
		}
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS packets(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TIMESTAMP NOT NULL,
			src_mac TEXT,
			dst_mac TEXT,
			src_ip TEXT,
			dst_ip TEXT,
			src_port INTEGER,
			dst_port INTEGER,
			protocol TEXT,
			layer4_protocol TEXT,
			packet_size INTEGER NOT NULL DEFAULT 0,
			ttl INTEGER NOT NULL DEFAULT 0,
			is_suspicious BOOLEAN NOT NULL DEFAULT 0,
			is_malformed BOOLEAN NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_packets_timestamp ON packets(timestamp);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Insert(ctx context.Context, p pktlog.Packet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO packets(timestamp, src_mac, dst_mac, src_ip, dst_ip,
			src_port, dst_port, protocol, layer4_protocol, packet_size, ttl,
			is_suspicious, is_malformed)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		p.Timestamp.UTC(), p.SrcMAC, p.DstMAC, p.SrcIP, p.DstIP,
		p.SrcPort, p.DstPort, p.Protocol, p.Layer4, p.Size, p.TTL,
		p.Suspect, p.Malformed)
	return err
}

func (s *DB) Aggregate(ctx context.Context) (pktlog.Stats, error) {
	var st pktlog.Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(is_suspicious), 0),
			COALESCE(SUM(is_malformed), 0),
			COALESCE(SUM(packet_size), 0)
		FROM packets;`)
	if err := row.Scan(&st.Total, &st.Suspicious, &st.Malformed, &st.Bytes); err != nil {
		return pktlog.Stats{}, err
	}
	return st, nil
}

func (s *DB) Recent(ctx context.Context, since time.Time, limit int) ([]pktlog.Packet, error) {
	rows, err := s.db.QueryContext(ctx, selectCols+`
		WHERE timestamp >= ? ORDER BY timestamp DESC LIMIT ?;`, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return scanPackets(rows)
}

func (s *DB) Range(ctx context.Context, from, to time.Time, limit int) ([]pktlog.Packet, error) {
	rows, err := s.db.QueryContext(ctx, selectCols+`
		WHERE timestamp >= ? AND timestamp < ? ORDER BY timestamp ASC LIMIT ?;`,
		from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return scanPackets(rows)
}

func (s *DB) Close() error { return s.db.Close() }

const selectCols = `
	SELECT timestamp, src_mac, dst_mac, src_ip, dst_ip, src_port, dst_port,
		protocol, layer4_protocol, packet_size, ttl, is_suspicious, is_malformed
	FROM packets`

func scanPackets(rows *sql.Rows) ([]pktlog.Packet, error) {
	defer func() { _ = rows.Close() }()
	var out []pktlog.Packet
	for rows.Next() {
		var p pktlog.Packet
		if err := rows.Scan(&p.Timestamp, &p.SrcMAC, &p.DstMAC, &p.SrcIP, &p.DstIP,
			&p.SrcPort, &p.DstPort, &p.Protocol, &p.Layer4, &p.Size, &p.TTL,
			&p.Suspect, &p.Malformed); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
