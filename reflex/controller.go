// Package reflex implements the short-horizon reflex controllers: hysteresis
// state machines that map a world-state sample to at most one candidate task.
package reflex

import (
	"github.com/voxelmind/reflexcore/worldstate"
)

// Result is a controller's candidate task. The registry enqueues it through
// the goal-key guard; the controller never enqueues directly.
type Result struct {
	GoalKey     string
	GoalID      string
	InstanceID  string // fresh UUID per evaluate-that-fires
	BuilderName string
	TaskData    TaskData
}

// Controller is the contract the registry holds reflexes behind.
//
// Evaluate returns nil when any gate fails (logic-gate failures are silent).
// With dryRun set it must not disarm hysteresis or retain accumulators.
// The terminal bridges (OnEnqueued, OnSkipped, OnTaskTerminal) are driven by
// the registry; a controller never emits task_enqueued or task_enqueue_skipped
// on its own.
type Controller interface {
	Name() string
	Priority() int // lower number = higher priority
	CanPreempt() bool
	BuilderName() string

	Evaluate(sample *worldstate.Sample, idleReason string, dryRun bool) *Result
	OnEnqueued(instanceID, taskID, goalID string)
	OnSkipped(instanceID, goalID, reason, existingTaskID string)
	OnTaskTerminal(task *Task, after *worldstate.Sample)
}

// TickObserver is implemented by controllers that track per-tick state (the
// exploration idle counter). The registry notifies observers once per tick
// before any Evaluate call.
type TickObserver interface {
	ObserveTick(isIdle bool)
}
