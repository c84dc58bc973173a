package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/dpistack/dpistack/internal/pktlog"
)

// DB implements pktlog.Store on ClickHouse using the official Go client.
// Suited to demo setups that want to run analytics over the recorded flows.
type DB struct {
	conn  driver.Conn
	table string
}

func New(addr string) (*DB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &DB{conn: conn, table: "packets"}, nil
}

func (c *DB) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp DateTime64(3, 'UTC'),
			src_mac String,
			dst_mac String,
			src_ip String,
			dst_ip String,
			src_port Int32,
			dst_port Int32,
			protocol String,
			layer4_protocol String,
			packet_size Int64,
			ttl Int32,
			is_suspicious Bool,
			is_malformed Bool
		) ENGINE = MergeTree()
		ORDER BY timestamp;`, c.table)
	return c.conn.Exec(ctx, q)
}

func (c *DB) Insert(ctx context.Context, p pktlog.Packet) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (timestamp, src_mac, dst_mac, src_ip, dst_ip, src_port,
			dst_port, protocol, layer4_protocol, packet_size, ttl,
			is_suspicious, is_malformed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, c.table)
	return c.conn.Exec(ctx, q,
		p.Timestamp.UTC(), p.SrcMAC, p.DstMAC, p.SrcIP, p.DstIP,
		int32(p.SrcPort), int32(p.DstPort), p.Protocol, p.Layer4,
		int64(p.Size), int32(p.TTL), p.Suspect, p.Malformed)
}

func (c *DB) Aggregate(ctx context.Context) (pktlog.Stats, error) {
	q := fmt.Sprintf(`
		SELECT count(),
			countIf(is_suspicious),
			countIf(is_malformed),
			COALESCE(sum(packet_size), 0)
		FROM %s;`, c.table)
	row := c.conn.QueryRow(ctx, q)
	var total, susp, malf uint64
	var bytes int64
	if err := row.Scan(&total, &susp, &malf, &bytes); err != nil {
		return pktlog.Stats{}, err
	}
	return pktlog.Stats{
		Total:      int64(total),
		Suspicious: int64(susp),
		Malformed:  int64(malf),
		Bytes:      bytes,
	}, nil
}

func (c *DB) Recent(ctx context.Context, since time.Time, limit int) ([]pktlog.Packet, error) {
	q := fmt.Sprintf(selectCols+` WHERE timestamp >= ? ORDER BY timestamp DESC LIMIT %d`, c.table, limit)
	rows, err := c.conn.Query(ctx, q, since.UTC())
	if err != nil {
		return nil, err
	}
	return scanPackets(rows)
}

func (c *DB) Range(ctx context.Context, from, to time.Time, limit int) ([]pktlog.Packet, error) {
	q := fmt.Sprintf(selectCols+` WHERE timestamp >= ? AND timestamp < ? ORDER BY timestamp ASC LIMIT %d`, c.table, limit)
	rows, err := c.conn.Query(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return scanPackets(rows)
}

func (c *DB) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

const selectCols = `
	SELECT timestamp, src_mac, dst_mac, src_ip, dst_ip, src_port, dst_port,
		protocol, layer4_protocol, packet_size, ttl, is_suspicious, is_malformed
	FROM %s`

func scanPackets(rows driver.Rows) ([]pktlog.Packet, error) {
	defer func() { _ = rows.Close() }()
	var out []pktlog.Packet
	for rows.Next() {
		var (
			p                pktlog.Packet
			srcPort, dstPort int32
			size             int64
			ttl              int32
		)
		if err := rows.Scan(&p.Timestamp, &p.SrcMAC, &p.DstMAC, &p.SrcIP, &p.DstIP,
			&srcPort, &dstPort, &p.Protocol, &p.Layer4, &size, &ttl,
			&p.Suspect, &p.Malformed); err != nil {
			return nil, err
		}
		p.SrcPort, p.DstPort = int(srcPort), int(dstPort)
		p.Size, p.TTL = int(size), int(ttl)
		out = append(out, p)
	}
	return out, rows.Err()
}
