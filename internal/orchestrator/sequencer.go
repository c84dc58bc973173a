package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dpistack/dpistack/internal/metrics"
)

// Component is one sequenced startup action. Order in the component list is
// a contract: later components assume earlier ones are live.
type Component struct {
	Name  string
	Start func(ctx context.Context) Result
}

// runSequence invokes each component in declared order with a settle delay
// after every success. It stops at the first Fatal result and does not roll
// back components already started; the caller pairs a failed Start with
// Stop.
func (o *Orchestrator) runSequence(ctx context.Context, comps []Component) error {
	for _, c := range comps {
		slog.Info("starting component", "component", c.Name)
		res := c.Start(ctx)
		switch res.Level {
		case Fatal:
			metrics.ComponentFailed(c.Name)
			return fmt.Errorf("start %s: %w", c.Name, res.Err)
		case Degraded:
			slog.Warn("component started with degraded sub-step", "component", c.Name, "error", res.Err)
		}
		metrics.ComponentStarted(c.Name)
		slog.Info("component started", "component", c.Name)
		settle(ctx, o.cfg.Orchestrator.SettleDelay)
	}
	return nil
}

// settle pauses between sequenced components so asynchronous side effects
// (port binding, process spawn) stabilize before the next action assumes
// they are ready.
func settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
