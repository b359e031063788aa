package reflex

import (
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxelmind/reflexcore/lifecycle"
	"github.com/voxelmind/reflexcore/proof"
	"github.com/voxelmind/reflexcore/worldstate"
)

// Stable exploration reflex identifiers. The goal key is static: only one
// outstanding wander at a time.
const (
	ExploreGoalKey     = "explore:wander"
	ExploreBuilderName = "exploration-reflex"

	exploreNeedType     = "exploration"
	exploreTemplateName = "wander"
)

// ExploreConfig tunes the idle-triggered wander controller.
type ExploreConfig struct {
	Priority int

	IdleTriggerTicks int           // consecutive idle ticks before firing
	IdleResetTicks   int           // consecutive non-idle ticks that reset the idle counter
	Cooldown         time.Duration // minimum gap between fires

	MinDisplacement float64 // blocks
	MaxDisplacement float64

	MinHealth   float64
	MinFood     int
	MaxHostiles int

	EvidenceTTL time.Duration
	EvidenceCap int
}

// DefaultExploreConfig returns production thresholds (trigger 6 ticks ≈ 30s
// at the default tick interval).
func DefaultExploreConfig() ExploreConfig {
	return ExploreConfig{
		Priority:         30,
		IdleTriggerTicks: 6,
		IdleResetTicks:   3,
		Cooldown:         2 * time.Minute,
		MinDisplacement:  16,
		MaxDisplacement:  48,
		MinHealth:        10,
		MinFood:          8,
		MaxHostiles:      0,
		EvidenceTTL:      DefaultAccumulatorTTL,
		EvidenceCap:      DefaultAccumulatorCap,
	}
}

// wanderEvidence is retained per instance for post-execution recording.
// Targets are random, so exploration is instance-keyed, not content-addressed.
type wanderEvidence struct {
	target  worldstate.Position
	firedAt time.Time
}

// ExploreReflex fires a single move_to wander task after a sustained idle
// window, then cools down.
type ExploreReflex struct {
	cfg     ExploreConfig
	emitter lifecycle.Emitter

	mu                 sync.Mutex
	armed              bool
	lastFiredAt        time.Time
	consecutiveIdle    int
	consecutiveNonIdle int
	evidence           map[string]*wanderEvidence

	rng   *rand.Rand
	now   func() time.Time
	newID func() string
}

// NewExploreReflex creates an armed exploration controller.
func NewExploreReflex(cfg ExploreConfig, emitter lifecycle.Emitter) *ExploreReflex {
	return &ExploreReflex{
		cfg:      cfg,
		emitter:  emitter,
		armed:    true,
		evidence: make(map[string]*wanderEvidence),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (e *ExploreReflex) Name() string        { return "exploration" }
func (e *ExploreReflex) Priority() int       { return e.cfg.Priority }
func (e *ExploreReflex) CanPreempt() bool    { return false }
func (e *ExploreReflex) BuilderName() string { return ExploreBuilderName }

// IdleTicks reports the current consecutive idle count.
func (e *ExploreReflex) IdleTicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consecutiveIdle
}

// Armed reports whether the cooldown has elapsed since the last fire.
func (e *ExploreReflex) Armed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.armed
}

// ObserveTick advances the idle/non-idle counters and re-arms after cooldown.
// Called once per registry tick.
func (e *ExploreReflex) ObserveTick(isIdle bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if isIdle {
		e.consecutiveIdle++
		e.consecutiveNonIdle = 0
	} else {
		e.consecutiveNonIdle++
		if e.consecutiveNonIdle >= e.cfg.IdleResetTicks {
			e.consecutiveIdle = 0
		}
	}

	if !e.armed && e.now().Sub(e.lastFiredAt) >= e.cfg.Cooldown {
		e.armed = true
	}
}

// Evaluate fires a wander task once the bot has been idle long enough and is
// healthy, fed, and unthreatened. Position, health and food must all be
// present; absence fails closed.
func (e *ExploreReflex) Evaluate(sample *worldstate.Sample, idleReason string, dryRun bool) *Result {
	if idleReason != IdleNoTasks {
		return nil
	}
	if sample == nil || sample.Position == nil || sample.Health == nil || sample.Food == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.evictEvidenceLocked()

	if !e.armed || e.consecutiveIdle < e.cfg.IdleTriggerTicks {
		return nil
	}
	if *sample.Health < e.cfg.MinHealth || *sample.Food < e.cfg.MinFood {
		return nil
	}
	if sample.NearbyHostiles == nil || *sample.NearbyHostiles > e.cfg.MaxHostiles {
		return nil
	}

	target := e.pickTarget(*sample.Position)
	instanceID := e.newID()
	goalID := proof.DeriveGoalID(exploreNeedType, exploreTemplateName)

	result := &Result{
		GoalKey:     ExploreGoalKey,
		GoalID:      goalID,
		InstanceID:  instanceID,
		BuilderName: ExploreBuilderName,
		TaskData: TaskData{
			Title:  "Wander to a nearby point",
			Type:   "exploration",
			Source: "autonomous",
			Steps: []StepTemplate{{
				Label: "move to target",
				Leaf:  "move_to",
				Args: map[string]any{
					"pos": map[string]any{"x": target.X, "y": target.Y, "z": target.Z},
				},
			}},
		},
	}

	if dryRun {
		e.emitter.Emit(lifecycle.Event{
			Type:             lifecycle.TypeGoalFormulated,
			ReflexInstanceID: instanceID,
			GoalID:           goalID,
			GoalKey:          ExploreGoalKey,
		})
		return result
	}

	now := e.now()
	e.armed = false
	e.lastFiredAt = now
	if len(e.evidence) >= e.cfg.EvidenceCap {
		e.evictOldestEvidenceLocked()
	}
	e.evidence[instanceID] = &wanderEvidence{target: target, firedAt: now}

	e.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeGoalFormulated,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          ExploreGoalKey,
	})
	e.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeTaskPlanned,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          ExploreGoalKey,
		TaskID:           "pending-" + shortID(instanceID),
	})
	return result
}

// pickTarget chooses a uniform random angle and displacement at current Y.
func (e *ExploreReflex) pickTarget(from worldstate.Position) worldstate.Position {
	angle := e.rng.Float64() * 2 * math.Pi
	dist := e.cfg.MinDisplacement + e.rng.Float64()*(e.cfg.MaxDisplacement-e.cfg.MinDisplacement)
	return worldstate.Position{
		X: math.Round(from.X + math.Cos(angle)*dist),
		Y: from.Y,
		Z: math.Round(from.Z + math.Sin(angle)*dist),
	}
}

func (e *ExploreReflex) OnEnqueued(instanceID, taskID, goalID string) {
	e.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeTaskEnqueued,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          ExploreGoalKey,
		TaskID:           taskID,
	})
}

func (e *ExploreReflex) OnSkipped(instanceID, goalID, reason, existingTaskID string) {
	e.mu.Lock()
	delete(e.evidence, instanceID)
	e.mu.Unlock()

	e.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeTaskEnqueueSkipped,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          ExploreGoalKey,
		SkipReason:       reason,
		ExistingTaskID:   existingTaskID,
	})
}

// OnTaskTerminal closes the wander goal by task status and releases the
// retained evidence.
func (e *ExploreReflex) OnTaskTerminal(task *Task, after *worldstate.Sample) {
	if task == nil || task.Metadata == nil || task.Metadata.ReflexInstanceID == "" {
		return
	}
	instanceID := task.Metadata.ReflexInstanceID

	e.mu.Lock()
	ev, ok := e.evidence[instanceID]
	delete(e.evidence, instanceID)
	e.mu.Unlock()
	if !ok {
		log.Printf("[EXPLORE] terminal for unknown instance %s", shortID(instanceID))
		return
	}

	success := task.Status == StatusCompleted
	e.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeGoalClosed,
		ReflexInstanceID: instanceID,
		GoalKey:          ExploreGoalKey,
		Success:          &success,
		Reason:           string(task.Status),
	})
	log.Printf("[EXPLORE] wander to (%.0f, %.0f, %.0f) closed: %s",
		ev.target.X, ev.target.Y, ev.target.Z, task.Status)
}

func (e *ExploreReflex) evictEvidenceLocked() {
	cutoff := e.now().Add(-e.cfg.EvidenceTTL)
	for id, ev := range e.evidence {
		if ev.firedAt.Before(cutoff) {
			delete(e.evidence, id)
		}
	}
}

func (e *ExploreReflex) evictOldestEvidenceLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, ev := range e.evidence {
		if oldestID == "" || ev.firedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = ev.firedAt
		}
	}
	if oldestID != "" {
		delete(e.evidence, oldestID)
	}
}
