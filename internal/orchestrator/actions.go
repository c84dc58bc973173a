package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dpistack/dpistack/internal/controller"
	"github.com/dpistack/dpistack/internal/health"
	"github.com/dpistack/dpistack/internal/metrics"
	"github.com/dpistack/dpistack/internal/pktlog"
	"github.com/dpistack/dpistack/internal/proc"
	"github.com/dpistack/dpistack/internal/traffic"
)

// startTopology launches the emulated network bring-up as a background task,
// waits for the network to stabilize, then best-effort kicks the emulator's
// built-in traffic. Built-in traffic failure degrades the action but never
// fails it.
func (o *Orchestrator) startTopology(ctx context.Context) Result {
	topo := o.newNetwork(o.cfg.Topology)
	o.mu.Lock()
	o.topo = topo
	o.mu.Unlock()

	o.tasks.Go(o.runCtx, "topology", func(ctx context.Context) {
		if err := topo.Setup(ctx); err != nil {
			slog.Error("topology setup exited with error", "error", err)
		}
	})
	settle(ctx, o.cfg.Topology.SettleDelay)

	if err := topo.GenerateTraffic(ctx); err != nil {
		return Degrade(fmt.Errorf("built-in traffic generation: %w", err))
	}
	return OK()
}

// startControllerWorkers spawns one worker process per configured switch.
// The per-device control client enforces a singleton constraint, so process
// isolation is the only way to drive N devices at once. Success means all
// launches were issued, not that the workers are live.
func (o *Orchestrator) startControllerWorkers(ctx context.Context) Result {
	if len(o.cfg.Switches) == 0 {
		slog.Warn("no switches configured, skipping controller workers")
		return OK()
	}
	for _, sw := range o.cfg.Switches {
		spec := proc.Spec{
			Name:    "controller-" + sw.Name,
			Command: o.cfg.Worker.Command,
			Args: []string{
				"--name", sw.Name,
				"--device-id", strconv.Itoa(sw.DeviceID),
				"--grpc-port", strconv.Itoa(sw.GRPCPort),
				"--p4info", sw.P4InfoFile,
				"--json", sw.RuntimeFile,
			},
			Log: o.cfg.Log,
		}
		h, err := o.procs.Launch(spec)
		if err != nil {
			return Fail(err)
		}
		metrics.ProcessLaunched(spec.Name)
		slog.Info("launched controller worker", "switch", sw.Name, "pid", h.PID())
	}
	settle(ctx, o.cfg.Orchestrator.WorkerSettle)
	return OK()
}

// startPacketLogger constructs the packet-logging collaborator and the
// controller stats collaborator over the same store.
func (o *Orchestrator) startPacketLogger(ctx context.Context) Result {
	store, err := o.newStore(o.cfg.Database)
	if err != nil {
		return Fail(fmt.Errorf("open packet store: %w", err))
	}
	lg, err := pktlog.NewLogger(ctx, store)
	if err != nil {
		_ = store.Close()
		return Fail(fmt.Errorf("packet logger: %w", err))
	}
	o.mu.Lock()
	o.store = store
	o.pktLogger = lg
	o.ctrl = controller.New(store)
	o.mu.Unlock()
	return OK()
}

// startTrafficGenerator launches the synthetic flow loop as a background
// task. Runtime errors inside the loop are logged there and never reach the
// sequencer.
func (o *Orchestrator) startTrafficGenerator(_ context.Context) Result {
	o.mu.Lock()
	lg := o.pktLogger
	o.mu.Unlock()
	if lg == nil {
		return Fail(fmt.Errorf("packet logger not started"))
	}
	gen := traffic.New(o.cfg.Traffic, lg)
	o.mu.Lock()
	o.gen = gen
	o.mu.Unlock()
	o.tasks.Go(o.runCtx, "traffic-generator", gen.Run)
	return OK()
}

// startDataServingAPI spawns the external REST/WebSocket process. The only
// contract here is launch-and-record; its query behavior is its own
// business.
func (o *Orchestrator) startDataServingAPI(_ context.Context) Result {
	spec := proc.Spec{
		Name:    "api",
		Command: o.cfg.API.Command,
		Args: []string{
			"--host", o.cfg.API.Host,
			"--port", strconv.Itoa(o.cfg.API.Port),
		},
		Log: o.cfg.Log,
	}
	h, err := o.procs.Launch(spec)
	if err != nil {
		return Fail(err)
	}
	metrics.ProcessLaunched(spec.Name)
	slog.Info("launched data-serving API", "host", o.cfg.API.Host, "port", o.cfg.API.Port, "pid", h.PID())
	return OK()
}

// startMonitoring launches the health monitor loop.
func (o *Orchestrator) startMonitoring(_ context.Context) Result {
	o.tasks.Go(o.runCtx, "monitoring", o.monitor)
	return OK()
}

// monitor recomputes and persists the health snapshot every tick and logs
// the controller's aggregate statistics. A failed tick is logged and the
// loop continues; monitoring never crashes the run.
func (o *Orchestrator) monitor(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Monitoring.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !o.running.Load() {
				return
			}
			o.monitorTick(ctx)
		}
	}
}

func (o *Orchestrator) monitorTick(ctx context.Context) {
	snap := o.Health()
	if err := health.Write(o.cfg.Monitoring.HealthFile, snap); err != nil {
		slog.Error("writing health snapshot", "error", err)
	}

	o.mu.Lock()
	ctrl := o.ctrl
	o.mu.Unlock()
	if ctrl != nil {
		if stats, err := ctrl.Stats(ctx); err != nil {
			slog.Error("pulling controller statistics", "error", err)
		} else {
			slog.Info("system statistics",
				"packets", stats.Total,
				"suspicious", stats.Suspicious,
				"malformed", stats.Malformed,
				"bytes", stats.Bytes)
		}
	}
	metrics.MonitorTick()
}
