package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dpistack/dpistack/internal/pktlog"
)

// DB implements pktlog.Store on PostgreSQL via the pgx stdlib driver.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS packets(
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
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
			is_suspicious BOOLEAN NOT NULL DEFAULT FALSE,
			is_malformed BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_packets_timestamp ON packets(timestamp);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Insert(ctx context.Context, pk pktlog.Packet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO packets(timestamp, src_mac, dst_mac, src_ip, dst_ip,
			src_port, dst_port, protocol, layer4_protocol, packet_size, ttl,
			is_suspicious, is_malformed)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`,
		pk.Timestamp.UTC(), pk.SrcMAC, pk.DstMAC, pk.SrcIP, pk.DstIP,
		pk.SrcPort, pk.DstPort, pk.Protocol, pk.Layer4, pk.Size, pk.TTL,
		pk.Suspect, pk.Malformed)
	return err
}

func (p *DB) Aggregate(ctx context.Context) (pktlog.Stats, error) {
	var st pktlog.Stats
	row := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_suspicious THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_malformed THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(packet_size), 0)
		FROM packets;`)
	if err := row.Scan(&st.Total, &st.Suspicious, &st.Malformed, &st.Bytes); err != nil {
		return pktlog.Stats{}, err
	}
	return st, nil
}

func (p *DB) Recent(ctx context.Context, since time.Time, limit int) ([]pktlog.Packet, error) {
	rows, err := p.db.QueryContext(ctx, selectCols+`
		WHERE timestamp >= $1 ORDER BY timestamp DESC LIMIT $2;`, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return scanPackets(rows)
}

func (p *DB) Range(ctx context.Context, from, to time.Time, limit int) ([]pktlog.Packet, error) {
	rows, err := p.db.QueryContext(ctx, selectCols+`
		WHERE timestamp >= $1 AND timestamp < $2 ORDER BY timestamp ASC LIMIT $3;`,
		from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return scanPackets(rows)
}

func (p *DB) Close() error { return p.db.Close() }

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
