// Package exporter schedules the delayed one-shot export that produces a
// fresh snapshot for the current run.
package exporter

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dpistack/dpistack/internal/config"
	"github.com/dpistack/dpistack/internal/metrics"
	"github.com/dpistack/dpistack/internal/task"
)

// MinDelay is the enforced floor for the configured initial delay.
const MinDelay = time.Second

// Exporter fires an external export command once per run after a delay.
type Exporter struct {
	cfg    config.Export
	dbPath string
	outDir string
	fired  atomic.Bool
}

// New builds an exporter for this run. outDir is already namespaced by the
// run identifier.
func New(cfg config.Export, dbPath, outDir string) *Exporter {
	return &Exporter{cfg: cfg, dbPath: dbPath, outDir: outDir}
}

// Schedule launches the one-shot background task. It reports whether the
// task was scheduled; a second call per Exporter is a no-op.
func (e *Exporter) Schedule(ctx context.Context, tasks *task.Registry) bool {
	if !e.fired.CompareAndSwap(false, true) {
		return false
	}
	delay := e.cfg.InitialDelay
	if delay < MinDelay {
		delay = MinDelay
	}
	tasks.Go(ctx, "delayed-export", func(ctx context.Context) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			slog.Debug("delayed export cancelled before firing")
			return
		case <-timer.C:
		}
		e.run(ctx)
	})
	slog.Info("scheduled initial export", "delay", delay, "out", e.outDir)
	return true
}

// run invokes the export command. Fire-and-forget: failure is logged and
// never retried.
func (e *Exporter) run(ctx context.Context) {
	argv := strings.Fields(e.cfg.Command)
	if len(argv) == 0 {
		slog.Warn("no export command configured, skipping initial export")
		return
	}
	argv = append(argv, "--db", e.dbPath, "--out", e.outDir)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) // #nosec G204 -- operator-configured command
	if out, err := cmd.CombinedOutput(); err != nil {
		slog.Error("initial export failed", "error", err, "output", strings.TrimSpace(string(out)))
		return
	}
	metrics.ExportRan()
	slog.Info("initial run export completed", "out", e.outDir)
}
