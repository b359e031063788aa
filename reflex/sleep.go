package reflex

import (
	"sync"

	"github.com/google/uuid"

	"github.com/voxelmind/reflexcore/lifecycle"
	"github.com/voxelmind/reflexcore/proof"
	"github.com/voxelmind/reflexcore/signals"
	"github.com/voxelmind/reflexcore/worldstate"
)

// Stable sleep reflex identifiers.
const (
	SleepGoalKey     = "survival:sleep"
	SleepBuilderName = "sleep-reflex"

	sleepNeedType     = "survival"
	sleepTemplateName = "sleep"
)

// SleepConfig tunes the once-per-night sleep controller.
type SleepConfig struct {
	Priority     int
	MaxHostiles  int
	SearchRadius int // bed search radius passed to the sleep leaf
}

// DefaultSleepConfig returns production thresholds.
func DefaultSleepConfig() SleepConfig {
	return SleepConfig{
		Priority:     20,
		MaxHostiles:  0,
		SearchRadius: 16,
	}
}

// SleepReflex fires at most once per night cycle and re-arms only after
// observing a daytime tick.
type SleepReflex struct {
	cfg     SleepConfig
	emitter lifecycle.Emitter

	mu             sync.Mutex
	armed          bool
	firedThisNight bool
	lastDawnSeen   bool

	newID func() string
}

// NewSleepReflex creates an armed sleep controller.
func NewSleepReflex(cfg SleepConfig, emitter lifecycle.Emitter) *SleepReflex {
	return &SleepReflex{
		cfg:     cfg,
		emitter: emitter,
		armed:   true,
		newID:   uuid.NewString,
	}
}

func (s *SleepReflex) Name() string        { return "sleep" }
func (s *SleepReflex) Priority() int       { return s.cfg.Priority }
func (s *SleepReflex) CanPreempt() bool    { return false }
func (s *SleepReflex) BuilderName() string { return SleepBuilderName }

// Armed reports the night-cycle state.
func (s *SleepReflex) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Evaluate fires a sleep task during the night window, once per night.
// Time-of-day must be present; absence fails closed.
func (s *SleepReflex) Evaluate(sample *worldstate.Sample, idleReason string, dryRun bool) *Result {
	if sample == nil || sample.TimeOfDay == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !signals.IsNight(*sample.TimeOfDay) {
		if s.firedThisNight {
			s.firedThisNight = false
			s.armed = true
		}
		s.lastDawnSeen = true
		return nil
	}

	// Night: a dawn observed since the last fire re-arms the cycle.
	if s.lastDawnSeen {
		s.armed = true
		s.lastDawnSeen = false
	}

	if idleReason != IdleNoTasks {
		return nil
	}
	if sample.NearbyHostiles == nil || *sample.NearbyHostiles > s.cfg.MaxHostiles {
		return nil
	}
	if !s.armed || s.firedThisNight {
		return nil
	}

	instanceID := s.newID()
	goalID := proof.DeriveGoalID(sleepNeedType, sleepTemplateName)

	result := &Result{
		GoalKey:     SleepGoalKey,
		GoalID:      goalID,
		InstanceID:  instanceID,
		BuilderName: SleepBuilderName,
		TaskData: TaskData{
			Title:  "Sleep through the night",
			Type:   "survival",
			Source: "autonomous",
			Steps: []StepTemplate{{
				Label: "sleep in a nearby bed",
				Leaf:  "sleep",
				Args:  map[string]any{"placeBed": false, "searchRadius": s.cfg.SearchRadius},
			}},
		},
	}

	if dryRun {
		s.emitter.Emit(lifecycle.Event{
			Type:             lifecycle.TypeGoalFormulated,
			ReflexInstanceID: instanceID,
			GoalID:           goalID,
			GoalKey:          SleepGoalKey,
		})
		return result
	}

	s.armed = false
	s.firedThisNight = true

	s.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeGoalFormulated,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          SleepGoalKey,
	})
	s.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeTaskPlanned,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          SleepGoalKey,
		TaskID:           "pending-" + shortID(instanceID),
	})
	return result
}

func (s *SleepReflex) OnEnqueued(instanceID, taskID, goalID string) {
	s.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeTaskEnqueued,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          SleepGoalKey,
		TaskID:           taskID,
	})
}

func (s *SleepReflex) OnSkipped(instanceID, goalID, reason, existingTaskID string) {
	s.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeTaskEnqueueSkipped,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          SleepGoalKey,
		SkipReason:       reason,
		ExistingTaskID:   existingTaskID,
	})
}

// OnTaskTerminal closes the sleep goal by task status.
func (s *SleepReflex) OnTaskTerminal(task *Task, after *worldstate.Sample) {
	if task == nil || task.Metadata == nil || task.Metadata.ReflexInstanceID == "" {
		return
	}
	success := task.Status == StatusCompleted
	s.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeGoalClosed,
		ReflexInstanceID: task.Metadata.ReflexInstanceID,
		GoalKey:          SleepGoalKey,
		Success:          &success,
		Reason:           string(task.Status),
	})
}
