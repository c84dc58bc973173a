// Package task supervises the orchestrator's in-process background work:
// goroutines with an explicit cancellation context and bounded joins. Tasks
// are daemons; a task that outlives its join timeout is abandoned, not
// guaranteed stopped.
package task

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one supervised background goroutine.
type Task struct {
	name string
	done chan struct{}
}

// Name returns the logical name of the task.
func (t *Task) Name() string { return t.name }

// Done reports whether the task function has returned.
func (t *Task) Done() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Join waits up to timeout for the task to finish and reports success.
func (t *Task) Join(timeout time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Registry tracks all background tasks launched during a run.
type Registry struct {
	mu    sync.Mutex
	tasks []*Task
}

func NewRegistry() *Registry { return &Registry{} }

// Go launches fn in a goroutine under ctx and records a handle. A panic in
// fn is recovered and logged so a misbehaving task never takes the
// orchestrator down with it.
func (r *Registry) Go(ctx context.Context, name string, fn func(ctx context.Context)) *Task {
	t := &Task{name: name, done: make(chan struct{})}
	r.mu.Lock()
	r.tasks = append(r.tasks, t)
	r.mu.Unlock()

	go func() {
		defer close(t.done)
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("background task panicked", "task", name, "panic", rec)
			}
		}()
		fn(ctx)
	}()
	return t
}

// Len returns the number of tracked tasks (finished or not).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// JoinAll waits up to timeout per task and returns names of tasks that were
// abandoned. The registry is cleared afterwards.
func (r *Registry) JoinAll(timeout time.Duration) []string {
	r.mu.Lock()
	ts := r.tasks
	r.tasks = nil
	r.mu.Unlock()

	var abandoned []string
	for _, t := range ts {
		if !t.Join(timeout) {
			abandoned = append(abandoned, t.name)
		}
	}
	return abandoned
}
