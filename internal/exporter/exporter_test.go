//go:build !windows

package exporter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dpistack/dpistack/internal/config"
	"github.com/dpistack/dpistack/internal/task"
)

// markerCommand writes a script that appends one line per invocation.
func markerCommand(t *testing.T) (cmd string, marker string) {
	t.Helper()
	dir := t.TempDir()
	marker = filepath.Join(dir, "ran.txt")
	script := filepath.Join(dir, "export.sh")
	body := "#!/bin/sh\necho \"$@\" >> " + marker + "\n"
	if err := os.WriteFile(script, []byte(body), 0o700); err != nil { // #nosec G306
		t.Fatalf("write script: %v", err)
	}
	return script, marker
}

func invocations(t *testing.T, marker string) int {
	t.Helper()
	b, err := os.ReadFile(marker)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}

func TestFiresOnceAfterFloor(t *testing.T) {
	cmd, marker := markerCommand(t)
	// configured below the floor; the floor must win
	e := New(config.Export{Command: cmd, InitialDelay: 10 * time.Millisecond}, "db.sqlite", t.TempDir())
	tasks := task.NewRegistry()

	start := time.Now()
	if !e.Schedule(context.Background(), tasks) {
		t.Fatalf("first schedule must succeed")
	}
	if e.Schedule(context.Background(), tasks) {
		t.Fatalf("second schedule must be a no-op")
	}

	deadline := time.Now().Add(5 * time.Second)
	for invocations(t, marker) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	elapsed := time.Since(start)
	if got := invocations(t, marker); got != 1 {
		t.Fatalf("want exactly 1 export invocation, got %d", got)
	}
	if elapsed < MinDelay {
		t.Fatalf("export fired before the %v floor (after %v)", MinDelay, elapsed)
	}
	// given the double Schedule above, nothing else may fire
	time.Sleep(200 * time.Millisecond)
	if got := invocations(t, marker); got != 1 {
		t.Fatalf("export fired more than once: %d", got)
	}
}

func TestCancelledBeforeDelay(t *testing.T) {
	cmd, marker := markerCommand(t)
	e := New(config.Export{Command: cmd, InitialDelay: 10 * time.Second}, "db.sqlite", t.TempDir())
	tasks := task.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	e.Schedule(ctx, tasks)
	cancel()
	if abandoned := tasks.JoinAll(time.Second); len(abandoned) != 0 {
		t.Fatalf("export task did not exit on cancellation: %v", abandoned)
	}
	if got := invocations(t, marker); got != 0 {
		t.Fatalf("cancelled export still ran %d times", got)
	}
}

func TestExportArgsCarryDBAndOut(t *testing.T) {
	cmd, marker := markerCommand(t)
	out := t.TempDir()
	e := New(config.Export{Command: cmd, InitialDelay: time.Millisecond}, "logs/packets.db", out)
	tasks := task.NewRegistry()
	e.Schedule(context.Background(), tasks)
	tasks.JoinAll(5 * time.Second)

	b, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("export never ran: %v", err)
	}
	line := string(b)
	for _, want := range []string{"--db logs/packets.db", "--out " + out} {
		if !strings.Contains(line, want) {
			t.Fatalf("export args missing %q in %q", want, line)
		}
	}
}
