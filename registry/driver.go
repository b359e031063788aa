package registry

import (
	"context"
	"log"
	"time"

	"github.com/voxelmind/reflexcore/reflex"
)

// DefaultTickInterval is the production tick period. It deliberately exceeds
// the world-state cache TTL so each tick performs at most one fetch.
const DefaultTickInterval = 5 * time.Second

// IdleProbe reports why the agent is idle, or "" when it is busy.
type IdleProbe func() string

// Driver runs the registry on a fixed interval. Cancellation is honoured
// between ticks, never mid-evaluation, which keeps the one-enqueue-per-tick
// invariant trivial.
type Driver struct {
	registry *Registry
	interval time.Duration
	idle     IdleProbe
	addTask  reflex.AddTaskFunc
	getTasks reflex.GetTasksFunc
}

// NewDriver wires a tick loop over the registry and its collaborators.
func NewDriver(registry *Registry, interval time.Duration, idle IdleProbe, addTask reflex.AddTaskFunc, getTasks reflex.GetTasksFunc) *Driver {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Driver{
		registry: registry,
		interval: interval,
		idle:     idle,
		addTask:  addTask,
		getTasks: getTasks,
	}
}

// Run blocks, ticking until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	log.Printf("[DRIVER] tick loop started (interval %s)", d.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[DRIVER] tick loop stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick evaluates a single tick. Exposed for externally-driven schedulers.
func (d *Driver) Tick(ctx context.Context) TickResult {
	return d.registry.EvaluateTick(ctx, d.idle(), d.addTask, d.getTasks, false)
}
