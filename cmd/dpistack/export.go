package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dpistack/dpistack/internal/config"
	"github.com/dpistack/dpistack/internal/pktlog"
	"github.com/dpistack/dpistack/internal/pktlog/factory"
)

// newExportCmd dumps the packet store to JSON and CSV snapshots. The
// orchestrator's delayed exporter invokes this same command.
func newExportCmd() *cobra.Command {
	var (
		driver string
		db     string
		out    string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded packets to JSON and CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := factory.New(config.Database{Driver: driver, DSN: db})
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			packets, err := store.Range(ctx, time.Time{}, time.Now().Add(time.Hour), limit)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(out, 0o750); err != nil {
				return err
			}
			stamp := time.Now().Format("20060102_150405")
			jsonPath := filepath.Join(out, fmt.Sprintf("packets_export_%s.json", stamp))
			csvPath := filepath.Join(out, fmt.Sprintf("packets_export_%s.csv", stamp))
			if err := writeJSON(jsonPath, packets); err != nil {
				return err
			}
			if err := writeCSV(csvPath, packets); err != nil {
				return err
			}
			cmd.Printf("exported %d packets to %s\n", len(packets), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "packet store driver")
	cmd.Flags().StringVar(&db, "db", "logs/packets.db", "packet store DSN or path")
	cmd.Flags().StringVar(&out, "out", "logs", "output directory")
	cmd.Flags().IntVar(&limit, "limit", 100000, "maximum packets to export")
	return cmd
}

func writeJSON(path string, packets []pktlog.Packet) error {
	b, err := json.MarshalIndent(packets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func writeCSV(path string, packets []pktlog.Packet) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- operator-chosen output path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	header := []string{
		"timestamp", "src_mac", "dst_mac", "src_ip", "dst_ip", "src_port",
		"dst_port", "protocol", "layer4_protocol", "packet_size", "ttl",
		"is_suspicious", "is_malformed",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, p := range packets {
		rec := []string{
			p.Timestamp.UTC().Format(time.RFC3339Nano),
			p.SrcMAC, p.DstMAC, p.SrcIP, p.DstIP,
			strconv.Itoa(p.SrcPort), strconv.Itoa(p.DstPort),
			p.Protocol, p.Layer4,
			strconv.Itoa(p.Size), strconv.Itoa(p.TTL),
			strconv.FormatBool(p.Suspect), strconv.FormatBool(p.Malformed),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
