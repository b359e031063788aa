package registry

import (
	"log"
	"time"

	"github.com/voxelmind/reflexcore/observability"
	"github.com/voxelmind/reflexcore/reflex"
)

// OutcomeKind discriminates the enqueue helper result.
type OutcomeKind string

const (
	OutcomeEnqueued OutcomeKind = "enqueued"
	OutcomeSkipped  OutcomeKind = "skipped"
)

// Enqueue skip reasons (stable wire values).
const (
	SkipDedupedExistingTask = "DEDUPED_EXISTING_TASK"
	SkipEnqueueFailed       = "ENQUEUE_FAILED"
	SkipEnqueueReturnedNull = "ENQUEUE_RETURNED_NULL"
)

// EnqueueOutcome is a single tagged value: the caller pattern-matches on Kind
// and structurally cannot emit more than one terminal event per task_planned.
type EnqueueOutcome struct {
	Kind           OutcomeKind
	TaskID         string // enqueued only
	Reason         string // skipped only
	ExistingTaskID string // skipped with DEDUPED_EXISTING_TASK
	Err            error  // skipped with ENQUEUE_FAILED
}

// TryEnqueueReflexTask guards the goal key, then submits the candidate to the
// external task store with dedup/dispatch metadata attached.
func TryEnqueueReflexTask(addTask reflex.AddTaskFunc, result *reflex.Result, getTasks reflex.GetTasksFunc, staleAfter time.Duration) EnqueueOutcome {
	guard := ScanOutstandingGoalKey(getTasks, result.GoalKey, GuardOptions{
		StaleAfter: staleAfter,
		OnStaleEscape: func(taskID string, age time.Duration) {
			log.Printf("[ENQUEUE] stale task %s (age %s) no longer blocks %s", taskID, age.Round(time.Second), result.GoalKey)
		},
	})
	if guard.Kind == GuardBlocked {
		return record(EnqueueOutcome{
			Kind:           OutcomeSkipped,
			Reason:         SkipDedupedExistingTask,
			ExistingTaskID: guard.ExistingTaskID,
		})
	}

	task, err := addTask(reflex.TaskRequest{
		Data: result.TaskData,
		Metadata: reflex.Metadata{
			GoalKey:          result.GoalKey,
			ReflexInstanceID: result.InstanceID,
			Provenance: &reflex.Provenance{
				Builder: result.BuilderName,
				Source:  "autonomous",
			},
		},
	})
	if err != nil {
		return record(EnqueueOutcome{Kind: OutcomeSkipped, Reason: SkipEnqueueFailed, Err: err})
	}
	if task == nil || task.ID == "" {
		return record(EnqueueOutcome{Kind: OutcomeSkipped, Reason: SkipEnqueueReturnedNull})
	}
	return record(EnqueueOutcome{Kind: OutcomeEnqueued, TaskID: task.ID})
}

func record(o EnqueueOutcome) EnqueueOutcome {
	observability.EnqueueOutcomes.WithLabelValues(string(o.Kind), o.Reason).Inc()
	return o
}
