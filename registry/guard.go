package registry

import (
	"time"

	"github.com/voxelmind/reflexcore/reflex"
)

// DefaultStaleAfter is how old an outstanding task must be before it stops
// blocking a new reflex fire with the same goal key.
const DefaultStaleAfter = 5 * time.Minute

// GuardKind discriminates the guard outcome.
type GuardKind string

const (
	GuardClear   GuardKind = "clear"
	GuardBlocked GuardKind = "blocked"
)

// GuardOptions tunes the outstanding-goal-key scan.
type GuardOptions struct {
	StaleAfter time.Duration
	// OnStaleEscape fires when a matching task exists but is old enough to
	// be bypassed.
	OnStaleEscape func(taskID string, age time.Duration)
}

// GuardResult is the dedup decision for one goal key.
type GuardResult struct {
	Kind           GuardKind
	ExistingTaskID string
	TaskAge        time.Duration
}

// ScanOutstandingGoalKey checks pending and active tasks for one whose
// metadata carries exactly the given goal key. A fresh match blocks; a stale
// match is escaped (and reported). Tasks without metadata never match:
// matching is by goal key only, never by title or type.
func ScanOutstandingGoalKey(getTasks reflex.GetTasksFunc, goalKey string, opts GuardOptions) GuardResult {
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	tasks := getTasks(reflex.TaskFilter{Statuses: []reflex.Status{reflex.StatusPending, reflex.StatusActive}})
	now := time.Now()

	for _, task := range tasks {
		if task == nil || task.Metadata == nil || task.Metadata.GoalKey != goalKey {
			continue
		}

		ref := task.UpdatedAt
		if ref.IsZero() {
			ref = task.CreatedAt
		}
		age := now.Sub(ref)

		if age < staleAfter {
			return GuardResult{Kind: GuardBlocked, ExistingTaskID: task.ID, TaskAge: age}
		}
		if opts.OnStaleEscape != nil {
			opts.OnStaleEscape(task.ID, age)
		}
	}
	return GuardResult{Kind: GuardClear}
}
