// Package registry holds the reflex controllers behind a priority-ordered
// tick evaluator with a strict at-most-one-enqueue-per-tick invariant.
package registry

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/voxelmind/reflexcore/observability"
	"github.com/voxelmind/reflexcore/reflex"
	"github.com/voxelmind/reflexcore/worldstate"
)

// Registry evaluates registered reflexes in priority order each tick.
//
// Guarantees:
//   - at most one task enqueued per tick (first non-null result short-circuits)
//   - fail-closed when the world state is unavailable
//   - stale outstanding tasks do not block new fires
//   - task terminals dispatch by builder name, never by task type
//   - dry runs evaluate without mutating external state or hysteresis
type Registry struct {
	cache      *worldstate.Cache
	reflexes   []reflex.Controller // priority order, insertion order on ties
	limiter    *FireLimiter        // optional
	staleAfter time.Duration
}

// TickResult summarises one evaluateTick call.
type TickResult struct {
	Fired      bool
	ReflexName string
	Outcome    *EnqueueOutcome // nil on dry runs and no-fire ticks
}

// New creates a registry over the given world-state cache.
func New(cache *worldstate.Cache) *Registry {
	return &Registry{cache: cache, staleAfter: DefaultStaleAfter}
}

// SetFireLimiter installs the optional per-reflex storm limiter.
func (r *Registry) SetFireLimiter(l *FireLimiter) { r.limiter = l }

// SetStaleAfter overrides the goal-key guard staleness window.
func (r *Registry) SetStaleAfter(d time.Duration) {
	if d > 0 {
		r.staleAfter = d
	}
}

// Register adds a controller. Controllers are kept sorted by ascending
// priority; ties keep insertion order.
func (r *Registry) Register(c reflex.Controller) {
	r.reflexes = append(r.reflexes, c)
	sort.SliceStable(r.reflexes, func(i, j int) bool {
		return r.reflexes[i].Priority() < r.reflexes[j].Priority()
	})
	log.Printf("[REGISTRY] registered reflex %q (priority %d, preempt=%v)", c.Name(), c.Priority(), c.CanPreempt())
}

// GetRegistered returns the controller names in evaluation order.
func (r *Registry) GetRegistered() []string {
	names := make([]string, 0, len(r.reflexes))
	for _, c := range r.reflexes {
		names = append(names, c.Name())
	}
	return names
}

// EvaluateTick runs one tick: fetch the sample once, visit reflexes in
// priority order, and stop at the first one that fires. idleReason is empty
// when the agent is busy; then only preempt-capable reflexes are evaluated.
func (r *Registry) EvaluateTick(ctx context.Context, idleReason string, addTask reflex.AddTaskFunc, getTasks reflex.GetTasksFunc, dryRun bool) TickResult {
	start := time.Now()
	defer func() {
		observability.TickDuration.Observe(time.Since(start).Seconds())
	}()

	sample := r.cache.Get(ctx)
	if sample == nil {
		observability.TicksTotal.WithLabelValues("state_unavailable").Inc()
		return TickResult{}
	}

	isIdle := idleReason != ""
	for _, c := range r.reflexes {
		if observer, ok := c.(reflex.TickObserver); ok {
			observer.ObserveTick(isIdle)
		}
	}

	for _, c := range r.reflexes {
		if !isIdle && !c.CanPreempt() {
			continue
		}

		// The limiter gates before Evaluate: a suppressed reflex must not
		// commit hysteresis, accumulators or lifecycle events. The token is
		// refunded when the reflex turns out not to fire.
		var refund func()
		if r.limiter != nil {
			ok, cancel := r.limiter.Reserve(c.Name())
			if !ok {
				observability.FireRateLimited.WithLabelValues(c.Name()).Inc()
				log.Printf("[REGISTRY] reflex %q suppressed by fire limiter", c.Name())
				continue
			}
			refund = cancel
		}

		result := safeEvaluate(c, sample, idleReason, dryRun)
		if result == nil {
			if refund != nil {
				refund()
			}
			continue
		}
		observability.ReflexFires.WithLabelValues(c.Name()).Inc()

		if dryRun {
			if refund != nil {
				refund()
			}
			observability.TicksTotal.WithLabelValues("fired").Inc()
			return TickResult{Fired: true, ReflexName: c.Name()}
		}

		outcome := TryEnqueueReflexTask(addTask, result, getTasks, r.staleAfter)
		switch outcome.Kind {
		case OutcomeEnqueued:
			c.OnEnqueued(result.InstanceID, outcome.TaskID, result.GoalID)
		case OutcomeSkipped:
			c.OnSkipped(result.InstanceID, result.GoalID, outcome.Reason, outcome.ExistingTaskID)
		}

		// At most one enqueue attempt per tick, whatever the outcome.
		observability.TicksTotal.WithLabelValues("fired").Inc()
		return TickResult{Fired: true, ReflexName: c.Name(), Outcome: &outcome}
	}

	observability.TicksTotal.WithLabelValues("no_fire").Inc()
	return TickResult{}
}

// OnTaskTerminal routes a finished task back to the controller that built it.
// Tasks without reflex provenance are silently ignored.
func (r *Registry) OnTaskTerminal(task *reflex.Task, after *worldstate.Sample) {
	if task == nil || task.Metadata == nil || task.Metadata.Provenance == nil {
		return
	}
	builder := task.Metadata.Provenance.Builder
	for _, c := range r.reflexes {
		if c.BuilderName() == builder {
			c.OnTaskTerminal(task, after)
			return
		}
	}
}

// safeEvaluate isolates controller contract violations: a panicking evaluate
// is logged and treated as no-fire so the remaining reflexes still run.
func safeEvaluate(c reflex.Controller, sample *worldstate.Sample, idleReason string, dryRun bool) (result *reflex.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.ReflexEvaluatePanics.WithLabelValues(c.Name()).Inc()
			log.Printf("[REGISTRY] reflex %q evaluate panicked: %v", c.Name(), rec)
			result = nil
		}
	}()
	return c.Evaluate(sample, idleReason, dryRun)
}
