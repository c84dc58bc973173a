// Package orchestrator brings the DPI demo stack into a known-good running
// state, supervises it, and tears it down deterministically: compile the P4
// artifact, start the sequenced components, schedule the delayed export,
// then unwind everything on failure or interrupt without leaking processes,
// goroutines, or file handles.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dpistack/dpistack/internal/compile"
	"github.com/dpistack/dpistack/internal/config"
	"github.com/dpistack/dpistack/internal/controller"
	"github.com/dpistack/dpistack/internal/exporter"
	"github.com/dpistack/dpistack/internal/health"
	"github.com/dpistack/dpistack/internal/metrics"
	"github.com/dpistack/dpistack/internal/pktlog"
	"github.com/dpistack/dpistack/internal/pktlog/factory"
	"github.com/dpistack/dpistack/internal/proc"
	"github.com/dpistack/dpistack/internal/server"
	"github.com/dpistack/dpistack/internal/task"
	"github.com/dpistack/dpistack/internal/topology"
	"github.com/dpistack/dpistack/internal/traffic"
)

// ErrAlreadyRunning is returned when Start is called on a running instance.
var ErrAlreadyRunning = errors.New("orchestrator already running")

// Orchestrator owns the run state: the running flag, the process and task
// registries, and the collaborator references. All mutation happens at
// Start/Stop boundaries; background tasks only read.
type Orchestrator struct {
	cfg   *config.Config
	runID string

	running   atomic.Bool
	runCtx    context.Context
	cancelRun context.CancelFunc

	procs *proc.Registry
	tasks *task.Registry

	mu        sync.Mutex
	store     pktlog.Store
	pktLogger *pktlog.Logger
	ctrl      *controller.Controller
	gen       *traffic.Generator
	topo      topology.Network

	admin *http.Server

	// newNetwork builds the emulation collaborator; swapped in tests.
	newNetwork func(config.Topology) topology.Network
	// newStore builds the packet store; swapped in tests.
	newStore func(config.Database) (pktlog.Store, error)
}

// Option customizes an Orchestrator at construction.
type Option func(*Orchestrator)

// WithNetwork injects a pre-built emulation collaborator.
func WithNetwork(n topology.Network) Option {
	return func(o *Orchestrator) {
		o.newNetwork = func(config.Topology) topology.Network { return n }
	}
}

// WithStore injects a pre-built packet store.
func WithStore(s pktlog.Store) Option {
	return func(o *Orchestrator) {
		o.newStore = func(config.Database) (pktlog.Store, error) { return s, nil }
	}
}

// New builds an orchestrator around cfg. Metrics collectors are registered
// on the default Prometheus registry.
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	cfg.SwitchDefaults()
	o := &Orchestrator{
		cfg:        cfg,
		procs:      proc.NewRegistry(),
		tasks:      task.NewRegistry(),
		newNetwork: func(tc config.Topology) topology.Network { return topology.New(tc) },
		newStore:   func(dc config.Database) (pktlog.Store, error) { return factory.New(dc) },
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		slog.Warn("metrics registration failed", "error", err)
	}
	if err := prometheus.Register(metrics.NewProcessCollector(o.procs)); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			slog.Warn("process collector registration failed", "error", err)
		}
	}
	return o
}

// RunID returns this run's identifier (empty before Start).
func (o *Orchestrator) RunID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runID
}

// Running reports whether the orchestrator is between Start and Stop.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Processes returns statuses of all tracked external processes.
func (o *Orchestrator) Processes() []proc.Status { return o.procs.Snapshot() }

// Stats pulls the controller collaborator's per-run aggregate.
func (o *Orchestrator) Stats(ctx context.Context) (pktlog.Stats, error) {
	o.mu.Lock()
	ctrl := o.ctrl
	o.mu.Unlock()
	if ctrl == nil {
		return pktlog.Stats{}, errors.New("controller not started")
	}
	return ctrl.Stats(ctx)
}

// Start compiles the P4 program and runs the sequenced component startup.
// On failure no rollback happens here; callers must pair a failed Start
// with Stop, which terminates whatever was already recorded.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	o.runCtx, o.cancelRun = context.WithCancel(context.Background())
	o.mu.Lock()
	o.runID = time.Now().Format("20060102_150405")
	runID := o.runID
	o.mu.Unlock()
	slog.Info("starting DPI stack", "run_id", runID)

	if err := compile.Run(ctx, o.cfg.Compiler); err != nil {
		return fmt.Errorf("compile step: %w", err)
	}

	components := []Component{
		{Name: "topology", Start: o.startTopology},
		{Name: "controller-workers", Start: o.startControllerWorkers},
		{Name: "packet-logger", Start: o.startPacketLogger},
		{Name: "traffic-generator", Start: o.startTrafficGenerator},
		{Name: "data-serving-api", Start: o.startDataServingAPI},
		{Name: "monitoring", Start: o.startMonitoring},
	}
	if err := o.runSequence(ctx, components); err != nil {
		return err
	}

	o.scheduleExport()
	o.startAdmin()
	slog.Info("DPI stack started", "run_id", runID)
	return nil
}

// scheduleExport arms the one-shot delayed export, namespaced by run id.
func (o *Orchestrator) scheduleExport() {
	outDir := filepath.Join(o.cfg.Export.OutDir, "run_"+o.RunID())
	exp := exporter.New(o.cfg.Export, o.cfg.Database.DSN, outDir)
	exp.Schedule(o.runCtx, o.tasks)
}

// startAdmin exposes the orchestration state over HTTP when enabled.
func (o *Orchestrator) startAdmin() {
	if !o.cfg.Admin.Enabled {
		return
	}
	srv, err := server.New(o.cfg.Admin.Listen, o.cfg.Admin.BasePath, o)
	if err != nil {
		slog.Warn("admin endpoint failed to start", "error", err)
		return
	}
	o.admin = srv
	slog.Info("admin endpoint listening", "addr", o.cfg.Admin.Listen)
}

// Wait blocks until ctx is cancelled or Stop is called.
func (o *Orchestrator) Wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-o.runCtx.Done():
	}
}

// Run is the convenience entry point: Start, wait for ctx cancellation,
// Stop. A failed Start still runs Stop so partially started components are
// unwound.
func (o *Orchestrator) Run(ctx context.Context) error {
	err := o.Start(ctx)
	if err == nil {
		o.Wait(ctx)
	}
	o.Stop()
	return err
}

// Health recomputes the component snapshot from the collaborator references
// held by the orchestrator. External processes are tracked separately via
// the process registry.
func (o *Orchestrator) Health() health.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := health.NewSnapshot()
	s.Set(health.ComponentController, o.ctrl != nil && o.ctrl.Running())
	s.Set(health.ComponentPacketLogger, o.pktLogger != nil)
	s.Set(health.ComponentTrafficGenerator, o.gen != nil && o.gen.Running())
	s.Set(health.ComponentTopology, o.topo != nil)
	return s
}

// Stop unwinds the run: flag flip first so every loop exits on its next
// check, then best-effort collaborator stops in order, then process
// termination with kill escalation, then bounded joins. Idempotent; every
// step's failure is logged and never blocks the remaining steps.
func (o *Orchestrator) Stop() {
	if !o.running.CompareAndSwap(true, false) {
		return
	}
	slog.Info("stopping DPI stack", "run_id", o.RunID())
	if o.cancelRun != nil {
		o.cancelRun()
	}

	o.mu.Lock()
	gen, ctrl, pl, topo := o.gen, o.ctrl, o.pktLogger, o.topo
	o.gen, o.ctrl, o.pktLogger, o.store, o.topo = nil, nil, nil, nil, nil
	admin := o.admin
	o.admin = nil
	o.mu.Unlock()

	if gen != nil {
		gen.Stop()
	}
	if ctrl != nil {
		ctrl.Stop()
	}
	if pl != nil {
		if err := pl.Close(); err != nil {
			slog.Error("closing packet logger", "error", err)
		}
	}
	if topo != nil {
		if err := topo.Stop(); err != nil {
			slog.Error("stopping topology", "error", err)
		}
	}

	o.procs.StopAll(o.cfg.Orchestrator.StopTimeout)

	if abandoned := o.tasks.JoinAll(o.cfg.Orchestrator.JoinTimeout); len(abandoned) > 0 {
		slog.Warn("background tasks abandoned after join timeout", "tasks", abandoned)
	}

	if admin != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := admin.Shutdown(shCtx); err != nil {
			slog.Error("shutting down admin endpoint", "error", err)
		}
	}
	slog.Info("DPI stack stopped")
}
