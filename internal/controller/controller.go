// Package controller holds the orchestrator-side view of the control plane:
// the per-run aggregate statistics the monitor pulls, and the stop signal
// delivered at shutdown. The P4Runtime protocol work itself happens in the
// per-device worker processes.
package controller

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/dpistack/dpistack/internal/pktlog"
)

// ErrStopped is returned for stats pulls after Stop.
var ErrStopped = errors.New("controller stopped")

// Controller aggregates control-plane statistics from the packet store.
type Controller struct {
	store   pktlog.Store
	stopped atomic.Bool
}

func New(store pktlog.Store) *Controller {
	return &Controller{store: store}
}

// Stats returns the current per-run aggregate.
func (c *Controller) Stats(ctx context.Context) (pktlog.Stats, error) {
	if c.stopped.Load() {
		return pktlog.Stats{}, ErrStopped
	}
	return c.store.Aggregate(ctx)
}

// Stop signals the controller to cease serving. Idempotent.
func (c *Controller) Stop() {
	c.stopped.Store(true)
}

// Running reports whether Stop has not been called.
func (c *Controller) Running() bool { return !c.stopped.Load() }
