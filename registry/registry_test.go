package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxelmind/reflexcore/lifecycle"
	"github.com/voxelmind/reflexcore/reflex"
	"github.com/voxelmind/reflexcore/worldstate"
)

// stubReflex is a scriptable controller for registry tests.
type stubReflex struct {
	name     string
	priority int
	preempt  bool
	builder  string

	result    *reflex.Result
	panicOn   bool
	evalCount int

	enqueuedTaskIDs []string
	skippedReasons  []string
	terminalTasks   []*reflex.Task
	observedIdle    []bool
}

func (s *stubReflex) Name() string        { return s.name }
func (s *stubReflex) Priority() int       { return s.priority }
func (s *stubReflex) CanPreempt() bool    { return s.preempt }
func (s *stubReflex) BuilderName() string { return s.builder }

func (s *stubReflex) Evaluate(sample *worldstate.Sample, idleReason string, dryRun bool) *reflex.Result {
	s.evalCount++
	if s.panicOn {
		panic("scripted panic")
	}
	return s.result
}

func (s *stubReflex) OnEnqueued(instanceID, taskID, goalID string) {
	s.enqueuedTaskIDs = append(s.enqueuedTaskIDs, taskID)
}

func (s *stubReflex) OnSkipped(instanceID, goalID, reason, existingTaskID string) {
	s.skippedReasons = append(s.skippedReasons, reason)
}

func (s *stubReflex) OnTaskTerminal(task *reflex.Task, after *worldstate.Sample) {
	s.terminalTasks = append(s.terminalTasks, task)
}

func (s *stubReflex) ObserveTick(isIdle bool) {
	s.observedIdle = append(s.observedIdle, isIdle)
}

func stubResult(name string) *reflex.Result {
	return &reflex.Result{
		GoalKey:     name + ":goal",
		GoalID:      "goal-" + name,
		InstanceID:  "instance-" + name,
		BuilderName: name + "-reflex",
		TaskData:    reflex.TaskData{Title: name},
	}
}

func okCache() *worldstate.Cache {
	return worldstate.NewCache(func(ctx context.Context) (*worldstate.Sample, error) {
		food := 10
		return &worldstate.Sample{Food: &food}, nil
	}, time.Minute)
}

func acceptTasks(req reflex.TaskRequest) (*reflex.Task, error) {
	return &reflex.Task{ID: "task-accepted"}, nil
}

func TestRegistryFailsClosedWithoutSample(t *testing.T) {
	cache := worldstate.NewCache(func(ctx context.Context) (*worldstate.Sample, error) {
		return nil, errors.New("bot offline")
	}, time.Minute)
	r := New(cache)

	stub := &stubReflex{name: "a", priority: 1, preempt: true, result: stubResult("a")}
	r.Register(stub)

	got := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false)

	if got.Fired {
		t.Error("tick must not fire without a sample")
	}
	if stub.evalCount != 0 {
		t.Error("no reflex may be evaluated without a sample")
	}
}

func TestRegistryPriorityShortCircuit(t *testing.T) {
	r := New(okCache())
	low := &stubReflex{name: "low", priority: 30, preempt: true, result: stubResult("low")}
	high := &stubReflex{name: "high", priority: 10, preempt: true, result: stubResult("high")}
	// Registration order must not matter.
	r.Register(low)
	r.Register(high)

	if names := r.GetRegistered(); names[0] != "high" || names[1] != "low" {
		t.Fatalf("evaluation order = %v, want [high low]", names)
	}

	got := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false)

	if !got.Fired || got.ReflexName != "high" {
		t.Fatalf("tick = %+v, want high to fire", got)
	}
	if low.evalCount != 0 {
		t.Error("lower priority reflex must not be evaluated after a fire")
	}
	if len(high.enqueuedTaskIDs) != 1 || high.enqueuedTaskIDs[0] != "task-accepted" {
		t.Errorf("high enqueued = %v", high.enqueuedTaskIDs)
	}
}

func TestRegistryContinuesPastSilentReflex(t *testing.T) {
	r := New(okCache())
	silent := &stubReflex{name: "silent", priority: 10, preempt: true}
	firing := &stubReflex{name: "firing", priority: 20, preempt: true, result: stubResult("firing")}
	r.Register(silent)
	r.Register(firing)

	got := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false)

	if !got.Fired || got.ReflexName != "firing" {
		t.Fatalf("tick = %+v, want firing", got)
	}
	if silent.evalCount != 1 {
		t.Error("silent reflex should have been evaluated first")
	}
}

func TestRegistryBusySkipsNonPreempting(t *testing.T) {
	r := New(okCache())
	passive := &stubReflex{name: "passive", priority: 10, preempt: false, result: stubResult("passive")}
	urgent := &stubReflex{name: "urgent", priority: 20, preempt: true, result: stubResult("urgent")}
	r.Register(passive)
	r.Register(urgent)

	got := r.EvaluateTick(context.Background(), "", acceptTasks, noTasks, false)

	if passive.evalCount != 0 {
		t.Error("non-preempting reflex must not be evaluated while busy")
	}
	if !got.Fired || got.ReflexName != "urgent" {
		t.Errorf("tick = %+v, want urgent to fire while busy", got)
	}
}

func TestRegistryPanicIsolation(t *testing.T) {
	r := New(okCache())
	broken := &stubReflex{name: "broken", priority: 10, preempt: true, panicOn: true}
	healthy := &stubReflex{name: "healthy", priority: 20, preempt: true, result: stubResult("healthy")}
	r.Register(broken)
	r.Register(healthy)

	got := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false)

	if !got.Fired || got.ReflexName != "healthy" {
		t.Errorf("tick = %+v, want healthy to fire past the panic", got)
	}
}

func TestRegistryDryRunDoesNotEnqueue(t *testing.T) {
	r := New(okCache())
	stub := &stubReflex{name: "a", priority: 10, preempt: true, result: stubResult("a")}
	r.Register(stub)

	addCalled := false
	addTask := func(req reflex.TaskRequest) (*reflex.Task, error) {
		addCalled = true
		return &reflex.Task{ID: "x"}, nil
	}

	got := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, addTask, noTasks, true)

	if !got.Fired || got.ReflexName != "a" {
		t.Fatalf("tick = %+v, want dry-run fire", got)
	}
	if got.Outcome != nil {
		t.Error("dry run must not produce an enqueue outcome")
	}
	if addCalled {
		t.Error("dry run must not reach the task store")
	}
	if len(stub.enqueuedTaskIDs) != 0 || len(stub.skippedReasons) != 0 {
		t.Error("dry run must not invoke terminal bridges")
	}
}

func TestRegistrySkipOutcomeReachesController(t *testing.T) {
	r := New(okCache())
	stub := &stubReflex{name: "a", priority: 10, preempt: true, result: stubResult("a")}
	r.Register(stub)

	failing := func(req reflex.TaskRequest) (*reflex.Task, error) {
		return nil, errors.New("store down")
	}

	got := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, failing, noTasks, false)

	if !got.Fired {
		t.Fatal("a fire with a failed enqueue still counts as the tick's fire")
	}
	if got.Outcome == nil || got.Outcome.Kind != OutcomeSkipped {
		t.Fatalf("outcome = %+v, want skipped", got.Outcome)
	}
	if len(stub.skippedReasons) != 1 || stub.skippedReasons[0] != SkipEnqueueFailed {
		t.Errorf("controller saw skips %v, want [ENQUEUE_FAILED]", stub.skippedReasons)
	}
}

func TestRegistryObserveTickFanOut(t *testing.T) {
	r := New(okCache())
	observer := &stubReflex{name: "obs", priority: 10, preempt: false}
	r.Register(observer)

	r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false)
	r.EvaluateTick(context.Background(), "", acceptTasks, noTasks, false)

	// Observers hear every tick, including busy ones where they are not
	// evaluated.
	want := []bool{true, false}
	if len(observer.observedIdle) != len(want) {
		t.Fatalf("observed %v, want %v", observer.observedIdle, want)
	}
	for i := range want {
		if observer.observedIdle[i] != want[i] {
			t.Errorf("tick %d observed idle=%v, want %v", i, observer.observedIdle[i], want[i])
		}
	}
}

func TestRegistryFireLimiterContinuesScan(t *testing.T) {
	r := New(okCache())
	// Burst of one: the second fire in a row is suppressed.
	r.SetFireLimiter(NewFireLimiter(1, 1))

	eager := &stubReflex{name: "eager", priority: 10, preempt: true, result: stubResult("eager")}
	backup := &stubReflex{name: "backup", priority: 20, preempt: true, result: stubResult("backup")}
	r.Register(eager)
	r.Register(backup)

	first := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false)
	if !first.Fired || first.ReflexName != "eager" {
		t.Fatalf("first tick = %+v, want eager", first)
	}

	second := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false)
	if !second.Fired || second.ReflexName != "backup" {
		t.Errorf("second tick = %+v, want limiter to suppress eager and let backup fire", second)
	}
	if eager.evalCount != 1 {
		t.Errorf("eager evaluated %d times, suppression must happen before Evaluate", eager.evalCount)
	}
}

func TestRegistryFireLimiterRefundsNoFire(t *testing.T) {
	r := New(okCache())
	// One token, never refilled.
	r.SetFireLimiter(NewFireLimiter(0, 1))

	stub := &stubReflex{name: "a", priority: 10, preempt: true}
	r.Register(stub)

	// A tick where the reflex declines to fire must hand its token back.
	if got := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false); got.Fired {
		t.Fatalf("tick = %+v, want no fire", got)
	}

	stub.result = stubResult("a")
	if got := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false); !got.Fired {
		t.Error("the refunded token must still admit the real fire")
	}
}

func TestRegistrySuppressedFireCommitsNothing(t *testing.T) {
	food := 5
	cache := worldstate.NewCache(func(ctx context.Context) (*worldstate.Sample, error) {
		f := food
		return &worldstate.Sample{
			Food:      &f,
			Inventory: []worldstate.InventoryItem{{Name: "bread", Count: 5}},
		}, nil
	}, time.Nanosecond)

	r := New(cache)
	r.SetFireLimiter(NewFireLimiter(0, 1)) // a single fire, ever

	emitter := lifecycle.NewRingEmitter(0)
	hunger := reflex.NewHungerReflex(reflex.DefaultHungerConfig(), emitter, nil)
	r.Register(hunger)

	first := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false)
	if !first.Fired {
		t.Fatal("expected the first hungry tick to fire")
	}

	// Recover, then go hungry again: the limiter is exhausted, so the reflex
	// must be passed over without touching its state.
	food = 16
	r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false)
	food = 5
	suppressed := r.EvaluateTick(context.Background(), reflex.IdleNoTasks, acceptTasks, noTasks, false)
	if suppressed.Fired {
		t.Error("exhausted limiter must yield a no-fire tick")
	}

	planned := len(emitter.EventsOfType(lifecycle.TypeTaskPlanned))
	enqueued := len(emitter.EventsOfType(lifecycle.TypeTaskEnqueued))
	skipped := len(emitter.EventsOfType(lifecycle.TypeTaskEnqueueSkipped))
	if planned != enqueued+skipped {
		t.Errorf("planned=%d but enqueued+skipped=%d; every planned task needs a terminal event", planned, enqueued+skipped)
	}
	if planned != 1 {
		t.Errorf("planned=%d, suppressed ticks must not plan tasks", planned)
	}
	if hunger.AccumulatorCount() != 1 {
		t.Errorf("accumulators=%d, want only the in-flight fire retained", hunger.AccumulatorCount())
	}
}

func TestRegistryTerminalDispatchByBuilder(t *testing.T) {
	r := New(okCache())
	a := &stubReflex{name: "a", priority: 10, preempt: true, builder: "a-reflex"}
	b := &stubReflex{name: "b", priority: 20, preempt: true, builder: "b-reflex"}
	r.Register(a)
	r.Register(b)

	task := &reflex.Task{
		ID:     "task-1",
		Status: reflex.StatusCompleted,
		Metadata: &reflex.Metadata{
			ReflexInstanceID: "instance-1",
			Provenance:       &reflex.Provenance{Builder: "b-reflex", Source: "autonomous"},
		},
	}
	r.OnTaskTerminal(task, nil)

	if len(a.terminalTasks) != 0 {
		t.Error("terminal must not reach the wrong builder")
	}
	if len(b.terminalTasks) != 1 || b.terminalTasks[0].ID != "task-1" {
		t.Errorf("b terminals = %v", b.terminalTasks)
	}

	// No provenance: silently ignored.
	r.OnTaskTerminal(&reflex.Task{ID: "task-2", Metadata: &reflex.Metadata{}}, nil)
	if len(a.terminalTasks) != 0 || len(b.terminalTasks) != 1 {
		t.Error("tasks without provenance must be ignored")
	}
}
