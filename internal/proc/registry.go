package proc

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dpistack/dpistack/internal/metrics"
)

// Registry tracks launched processes by logical name. Mutation happens at
// start/stop boundaries only; background readers take snapshots.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Launch starts the process and records its handle under spec.Name.
// A duplicate name is an error to keep ownership unambiguous.
func (r *Registry) Launch(spec Spec) (*Handle, error) {
	r.mu.Lock()
	if _, ok := r.handles[spec.Name]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("process %q already tracked", spec.Name)
	}
	r.mu.Unlock()

	h, err := Launch(spec)
	if err != nil {
		return nil, fmt.Errorf("launch %q: %w", spec.Name, err)
	}
	r.mu.Lock()
	r.handles[spec.Name] = h
	r.mu.Unlock()
	return h, nil
}

// Get returns the handle for name, if tracked.
func (r *Registry) Get(name string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[name]
	return h, ok
}

// Len returns the number of tracked handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Names returns tracked logical names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.handles))
	for n := range r.handles {
		names = append(names, n)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}

// Pids returns the logical name to PID mapping of tracked processes.
func (r *Registry) Pids() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.handles))
	for n, h := range r.handles {
		out[n] = h.PID()
	}
	return out
}

// Snapshot returns statuses of all tracked processes, sorted by name.
func (r *Registry) Snapshot() []Status {
	r.mu.Lock()
	hs := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	out := make([]Status, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StopAll terminates every tracked process with graceful/kill escalation and
// empties the registry. Failures are logged; remaining handles are still
// processed.
func (r *Registry) StopAll(wait time.Duration) {
	r.mu.Lock()
	hs := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		hs = append(hs, h)
	}
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	for _, h := range hs {
		killed := h.Stop(wait)
		metrics.ProcessStopped(h.Name(), killed)
		if killed {
			slog.Warn("process did not exit in time, killed", "name", h.Name(), "pid", h.PID())
		} else {
			slog.Debug("process terminated", "name", h.Name(), "pid", h.PID())
		}
	}
}
