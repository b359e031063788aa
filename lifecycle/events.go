// Package lifecycle defines the typed reflex lifecycle event log.
//
// Events for one reflex instance follow the partial order
// goal_formulated -> task_planned -> (task_enqueued | task_enqueue_skipped)
// and later (goal_verified -> goal_closed), or nothing when skipped/evicted.
package lifecycle

import "time"

// EventType labels one lifecycle event variant. Values are stable wire
// identifiers, not free text.
type EventType string

const (
	TypeGoalFormulated     EventType = "goal_formulated"
	TypeTaskPlanned        EventType = "task_planned"
	TypeTaskEnqueued       EventType = "task_enqueued"
	TypeTaskEnqueueSkipped EventType = "task_enqueue_skipped"
	TypeStepCompleted      EventType = "step_completed"
	TypeGoalVerified       EventType = "goal_verified"
	TypeGoalClosed         EventType = "goal_closed"
)

// Event is one entry in the lifecycle log. Type discriminates which payload
// fields are populated. ReflexInstanceID and Timestamp are set on every event.
type Event struct {
	Type             EventType `json:"type"`
	ReflexInstanceID string    `json:"reflex_instance_id"`
	Timestamp        time.Time `json:"timestamp"`

	// goal_formulated / task_planned / goal_verified / goal_closed
	GoalID  string `json:"goal_id,omitempty"`
	GoalKey string `json:"goal_key,omitempty"`

	// task_planned / task_enqueued / step_completed
	TaskID string `json:"task_id,omitempty"`

	// task_enqueue_skipped
	SkipReason     string `json:"skip_reason,omitempty"`
	ExistingTaskID string `json:"existing_task_id,omitempty"`

	// step_completed
	StepID    string `json:"step_id,omitempty"`
	StepLabel string `json:"step_label,omitempty"`

	// goal_verified / goal_closed
	BundleHash string `json:"bundle_hash,omitempty"`
	Success    *bool  `json:"success,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
