package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/voxelmind/reflexcore/reflex"
)

func wanderResult() *reflex.Result {
	return &reflex.Result{
		GoalKey:     "explore:wander",
		GoalID:      "goal-abc",
		InstanceID:  "instance-1",
		BuilderName: "exploration-reflex",
		TaskData: reflex.TaskData{
			Title: "Wander to a nearby point",
			Type:  "exploration",
		},
	}
}

func noTasks(filter reflex.TaskFilter) []*reflex.Task { return nil }

func TestEnqueueDedupesExistingTask(t *testing.T) {
	existing := &reflex.Task{
		ID:        "task-old",
		Status:    reflex.StatusActive,
		Metadata:  &reflex.Metadata{GoalKey: "explore:wander"},
		UpdatedAt: time.Now(),
	}
	addCalled := false
	addTask := func(req reflex.TaskRequest) (*reflex.Task, error) {
		addCalled = true
		return nil, nil
	}

	got := TryEnqueueReflexTask(addTask, wanderResult(), tasksFunc(existing), DefaultStaleAfter)

	if got.Kind != OutcomeSkipped || got.Reason != SkipDedupedExistingTask {
		t.Fatalf("outcome = %+v, want skipped/DEDUPED_EXISTING_TASK", got)
	}
	if got.ExistingTaskID != "task-old" {
		t.Errorf("existing task = %s, want task-old", got.ExistingTaskID)
	}
	if addCalled {
		t.Error("a blocked guard must not reach the task store")
	}
}

func TestEnqueueStoreErrorIsSkipped(t *testing.T) {
	storeErr := errors.New("store unavailable")
	addTask := func(req reflex.TaskRequest) (*reflex.Task, error) {
		return nil, storeErr
	}

	got := TryEnqueueReflexTask(addTask, wanderResult(), noTasks, DefaultStaleAfter)

	if got.Kind != OutcomeSkipped || got.Reason != SkipEnqueueFailed {
		t.Fatalf("outcome = %+v, want skipped/ENQUEUE_FAILED", got)
	}
	if !errors.Is(got.Err, storeErr) {
		t.Errorf("err = %v, want the store error carried through", got.Err)
	}
}

func TestEnqueueNullTaskIsSkipped(t *testing.T) {
	cases := []struct {
		name string
		task *reflex.Task
	}{
		{"nil task", nil},
		{"empty id", &reflex.Task{}},
	}
	for _, c := range cases {
		addTask := func(req reflex.TaskRequest) (*reflex.Task, error) {
			return c.task, nil
		}
		got := TryEnqueueReflexTask(addTask, wanderResult(), noTasks, DefaultStaleAfter)
		if got.Kind != OutcomeSkipped || got.Reason != SkipEnqueueReturnedNull {
			t.Errorf("%s: outcome = %+v, want skipped/ENQUEUE_RETURNED_NULL", c.name, got)
		}
	}
}

func TestEnqueueAttachesMetadata(t *testing.T) {
	var captured reflex.TaskRequest
	addTask := func(req reflex.TaskRequest) (*reflex.Task, error) {
		captured = req
		return &reflex.Task{ID: "task-new"}, nil
	}

	got := TryEnqueueReflexTask(addTask, wanderResult(), noTasks, DefaultStaleAfter)

	if got.Kind != OutcomeEnqueued || got.TaskID != "task-new" {
		t.Fatalf("outcome = %+v, want enqueued/task-new", got)
	}
	if captured.Metadata.GoalKey != "explore:wander" {
		t.Errorf("goal key = %s", captured.Metadata.GoalKey)
	}
	if captured.Metadata.ReflexInstanceID != "instance-1" {
		t.Errorf("instance = %s", captured.Metadata.ReflexInstanceID)
	}
	prov := captured.Metadata.Provenance
	if prov == nil || prov.Builder != "exploration-reflex" || prov.Source != "autonomous" {
		t.Errorf("provenance = %+v", prov)
	}
	if captured.Data.Title != "Wander to a nearby point" {
		t.Errorf("task data not carried through: %+v", captured.Data)
	}
}
