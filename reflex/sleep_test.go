package reflex

import (
	"fmt"
	"testing"

	"github.com/voxelmind/reflexcore/lifecycle"
	"github.com/voxelmind/reflexcore/worldstate"
)

func newTestSleep() (*SleepReflex, *lifecycle.RingEmitter) {
	emitter := lifecycle.NewRingEmitter(0)
	s := NewSleepReflex(DefaultSleepConfig(), emitter)
	var seq int
	s.newID = func() string {
		seq++
		return fmt.Sprintf("sleep-%d", seq)
	}
	return s, emitter
}

func nightSample(hostiles int) *worldstate.Sample {
	return &worldstate.Sample{
		TimeOfDay:      intPtr(13000),
		NearbyHostiles: intPtr(hostiles),
	}
}

func daySample() *worldstate.Sample {
	return &worldstate.Sample{
		TimeOfDay:      intPtr(6000),
		NearbyHostiles: intPtr(0),
	}
}

func TestSleepFiresOncePerNight(t *testing.T) {
	s, emitter := newTestSleep()

	result := s.Evaluate(nightSample(0), IdleNoTasks, false)
	if result == nil {
		t.Fatal("expected fire on the first safe night tick")
	}
	if result.GoalKey != SleepGoalKey {
		t.Errorf("goal key = %s, want %s", result.GoalKey, SleepGoalKey)
	}
	if len(result.TaskData.Steps) != 1 || result.TaskData.Steps[0].Leaf != "sleep" {
		t.Errorf("steps = %+v, want one sleep step", result.TaskData.Steps)
	}
	if args := result.TaskData.Steps[0].Args; args["placeBed"] != false || args["searchRadius"] != 16 {
		t.Errorf("sleep args = %v", args)
	}

	// Same night: already fired.
	if s.Evaluate(nightSample(0), IdleNoTasks, false) != nil {
		t.Error("must not fire twice in one night")
	}
	if got := len(emitter.EventsOfType(lifecycle.TypeGoalFormulated)); got != 1 {
		t.Errorf("goal_formulated events = %d, want 1", got)
	}
}

func TestSleepRearmsAfterDawn(t *testing.T) {
	s, _ := newTestSleep()

	if s.Evaluate(nightSample(0), IdleNoTasks, false) == nil {
		t.Fatal("expected first-night fire")
	}

	// Dawn passes, then night falls again.
	if s.Evaluate(daySample(), IdleNoTasks, false) != nil {
		t.Error("daytime must not fire")
	}
	if !s.Armed() {
		t.Error("dawn should re-arm the cycle")
	}
	if s.Evaluate(nightSample(0), IdleNoTasks, false) == nil {
		t.Error("expected a fire on the following night")
	}
}

func TestSleepGates(t *testing.T) {
	s, _ := newTestSleep()

	if s.Evaluate(nightSample(1), IdleNoTasks, false) != nil {
		t.Error("hostiles nearby must not sleep")
	}

	noHostileCount := &worldstate.Sample{TimeOfDay: intPtr(13000)}
	if s.Evaluate(noHostileCount, IdleNoTasks, false) != nil {
		t.Error("unknown hostile count must fail closed")
	}

	if s.Evaluate(nightSample(0), IdleAllInBackoff, false) != nil {
		t.Error("backoff idle must not sleep")
	}
	if s.Evaluate(nightSample(0), "", false) != nil {
		t.Error("busy executor must not sleep")
	}

	if s.Evaluate(&worldstate.Sample{}, IdleNoTasks, false) != nil {
		t.Error("unknown time of day must fail closed")
	}
	if s.Evaluate(nil, IdleNoTasks, false) != nil {
		t.Error("nil sample must fail closed")
	}

	// None of the gate failures consumed the night.
	if s.Evaluate(nightSample(0), IdleNoTasks, false) == nil {
		t.Error("gates alone must not consume the night")
	}
}

func TestSleepDryRunDoesNotConsumeNight(t *testing.T) {
	s, emitter := newTestSleep()

	if s.Evaluate(nightSample(0), IdleNoTasks, true) == nil {
		t.Fatal("dry run should still report the candidate")
	}
	if !s.Armed() {
		t.Error("dry run must not disarm")
	}
	if len(emitter.EventsOfType(lifecycle.TypeTaskPlanned)) != 0 {
		t.Error("dry run must not emit task_planned")
	}

	// The real fire is still available tonight.
	if s.Evaluate(nightSample(0), IdleNoTasks, false) == nil {
		t.Error("dry run must not consume the night")
	}
}

func TestSleepTerminalClosesGoal(t *testing.T) {
	s, emitter := newTestSleep()

	result := s.Evaluate(nightSample(0), IdleNoTasks, false)
	if result == nil {
		t.Fatal("expected fire")
	}

	task := &Task{
		ID:       "task-1",
		Status:   StatusFailed,
		Metadata: &Metadata{ReflexInstanceID: result.InstanceID},
	}
	s.OnTaskTerminal(task, nil)

	closed := emitter.EventsOfType(lifecycle.TypeGoalClosed)
	if len(closed) != 1 {
		t.Fatalf("expected 1 goal_closed, got %d", len(closed))
	}
	if closed[0].Success == nil || *closed[0].Success {
		t.Error("failed sleep should close with success=false")
	}
	if closed[0].Reason != string(StatusFailed) {
		t.Errorf("close reason = %s, want failed", closed[0].Reason)
	}
}
