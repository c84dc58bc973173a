// Package topology drives the network-emulation collaborator at its command
// boundary. The emulated network's internal graph construction is external
// to this repo.
package topology

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/dpistack/dpistack/internal/config"
)

// Network is the emulation collaborator as seen by the orchestrator.
type Network interface {
	// Setup brings the emulated network up. It blocks for the lifetime of
	// the network and is run inside a background task.
	Setup(ctx context.Context) error
	// GenerateTraffic best-effort starts the emulator's built-in host
	// traffic. Non-critical.
	GenerateTraffic(ctx context.Context) error
	// Stop tears the emulated network down.
	Stop() error
}

// CommandNetwork implements Network by shelling out to operator-configured
// commands (typically Mininet scripts).
type CommandNetwork struct {
	cfg config.Topology
}

func New(cfg config.Topology) *CommandNetwork {
	return &CommandNetwork{cfg: cfg}
}

func (n *CommandNetwork) Setup(ctx context.Context) error {
	if strings.TrimSpace(n.cfg.SetupCommand) == "" {
		slog.Warn("no topology setup command configured")
		return nil
	}
	slog.Info("bringing up emulated network", "command", n.cfg.SetupCommand)
	if err := runShell(ctx, n.cfg.SetupCommand); err != nil {
		// context cancellation at shutdown is the expected exit path
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func (n *CommandNetwork) GenerateTraffic(ctx context.Context) error {
	if strings.TrimSpace(n.cfg.TrafficCommand) == "" {
		return nil
	}
	return runShell(ctx, n.cfg.TrafficCommand)
}

func (n *CommandNetwork) Stop() error {
	if strings.TrimSpace(n.cfg.StopCommand) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return runShell(ctx, n.cfg.StopCommand)
}

func runShell(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command) // #nosec G204 -- operator-configured command
	return cmd.Run()
}
