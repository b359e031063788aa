package reflex

import (
	"context"
	"time"

	"github.com/voxelmind/reflexcore/proof"
)

// Status is the external task store's status vocabulary.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status ends a task's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Idle reasons passed into Evaluate. Empty string means "not idle".
const (
	IdleNoTasks      = "no_tasks"
	IdleAllInBackoff = "all_in_backoff"
)

// Provenance identifies which controller produced a task. Builder is the
// stable dispatch key for terminal events.
type Provenance struct {
	Builder string `json:"builder"`
	Source  string `json:"source"`
}

// Metadata is the slice of task metadata the core reads and writes. The shape
// is kept minimal so nothing here can leak into the proof identity hash.
type Metadata struct {
	GoalKey          string         `json:"goalKey,omitempty"`
	ReflexInstanceID string         `json:"reflexInstanceId,omitempty"`
	Provenance       *Provenance    `json:"taskProvenance,omitempty"`
	Receipt          *proof.Receipt `json:"executionReceipt,omitempty"`
}

// StepMeta carries the dispatch key and its parameter bag.
type StepMeta struct {
	Leaf       string         `json:"leaf"`
	Args       map[string]any `json:"args,omitempty"`
	Executable bool           `json:"executable,omitempty"`
}

// Step is one unit of work inside an external task.
type Step struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Order int      `json:"order"`
	Done  bool     `json:"done"`
	Meta  StepMeta `json:"meta"`
}

// Task is the external task store entity, seen through its contract only.
type Task struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Metadata  *Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Steps     []Step    `json:"steps,omitempty"`
}

// StepTemplate is the controller-side template for one step.
type StepTemplate struct {
	Label string         `json:"label"`
	Leaf  string         `json:"leaf"`
	Args  map[string]any `json:"args,omitempty"`
}

// TaskData is the template a controller hands to the enqueue helper for Task
// creation.
type TaskData struct {
	Title  string         `json:"title"`
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Steps  []StepTemplate `json:"steps"`
}

// TaskRequest is what the enqueue helper submits: the controller template
// plus the dedup/dispatch metadata.
type TaskRequest struct {
	Data     TaskData `json:"data"`
	Metadata Metadata `json:"metadata"`
}

// AddTaskFunc enqueues a task into the external store. A nil task with a nil
// error means the store declined without failing.
type AddTaskFunc func(req TaskRequest) (*Task, error)

// TaskFilter selects tasks by status; empty means all.
type TaskFilter struct {
	Statuses []Status
}

// GetTasksFunc returns a synchronous snapshot of current tasks.
type GetTasksFunc func(filter TaskFilter) []*Task

// ProofRecorder persists proof bundles durably. Implementations live in the
// recorder package; controllers only see this contract.
type ProofRecorder interface {
	Record(ctx context.Context, runID string, bundle *proof.Bundle) error
}
