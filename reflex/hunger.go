package reflex

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxelmind/reflexcore/lifecycle"
	"github.com/voxelmind/reflexcore/proof"
	"github.com/voxelmind/reflexcore/signals"
	"github.com/voxelmind/reflexcore/worldstate"
)

// Stable hunger reflex identifiers.
const (
	HungerGoalKey     = "survival:eat"
	HungerBuilderName = "hunger-reflex"

	hungerNeedType     = "survival"
	hungerTemplateName = "eat_immediate"
	hungerDescription  = "Eat available food to restore hunger"

	// Template gate: eat_immediate only matches an urgent deficit.
	eatImmediateUrgency = 0.7
)

// HungerConfig tunes the hunger hysteresis gate over raw food units (0-20).
type HungerConfig struct {
	TriggerThreshold  int // fire at or below, when idle
	ResetThreshold    int // re-arm at or above, once disarmed
	CriticalThreshold int // fire at or below regardless of idle reason

	Priority       int
	AccumulatorTTL time.Duration
	AccumulatorCap int

	// RunID labels recorded proof bundles for this process lifetime.
	RunID string
}

// DefaultHungerConfig returns production thresholds.
func DefaultHungerConfig() HungerConfig {
	return HungerConfig{
		TriggerThreshold:  12,
		ResetThreshold:    16,
		CriticalThreshold: 5,
		Priority:          10,
		AccumulatorTTL:    DefaultAccumulatorTTL,
		AccumulatorCap:    DefaultAccumulatorCap,
	}
}

// HungerReflex is the content-addressed eating controller. Once it fires it
// disarms until food recovers to the reset threshold, preventing oscillation.
type HungerReflex struct {
	cfg      HungerConfig
	emitter  lifecycle.Emitter
	recorder ProofRecorder // optional

	mu           sync.Mutex
	armed        bool
	accumulators *accumulatorMap

	now   func() time.Time
	newID func() string
}

// NewHungerReflex creates an armed hunger controller. recorder may be nil
// when proof persistence is handled elsewhere.
func NewHungerReflex(cfg HungerConfig, emitter lifecycle.Emitter, recorder ProofRecorder) *HungerReflex {
	return &HungerReflex{
		cfg:          cfg,
		emitter:      emitter,
		recorder:     recorder,
		armed:        true,
		accumulators: newAccumulatorMap("hunger", cfg.AccumulatorTTL, cfg.AccumulatorCap),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

func (h *HungerReflex) Name() string        { return "hunger" }
func (h *HungerReflex) Priority() int       { return h.cfg.Priority }
func (h *HungerReflex) CanPreempt() bool    { return true }
func (h *HungerReflex) BuilderName() string { return HungerBuilderName }

// Armed reports the hysteresis state.
func (h *HungerReflex) Armed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.armed
}

// AccumulatorCount reports retained accumulators.
func (h *HungerReflex) AccumulatorCount() int {
	return h.accumulators.len()
}

// Evaluate applies the hunger decision rule. It requires food and inventory
// to be present in the sample; absence is a do-not-act signal.
func (h *HungerReflex) Evaluate(sample *worldstate.Sample, idleReason string, dryRun bool) *Result {
	if sample == nil || sample.Food == nil || sample.Inventory == nil {
		return nil
	}

	now := h.now()
	h.accumulators.evictExpired(now)

	h.mu.Lock()
	defer h.mu.Unlock()

	food := *sample.Food

	// Hysteresis: disarmed until food recovers.
	if !h.armed {
		if food >= h.cfg.ResetThreshold {
			h.armed = true
			log.Printf("[HUNGER] re-armed at food=%d", food)
		}
		return nil
	}

	// Gate: critical bypasses the idle requirement.
	critical := food <= h.cfg.CriticalThreshold
	if !critical && !(food <= h.cfg.TriggerThreshold && idleReason == IdleNoTasks) {
		return nil
	}

	candidates := foodCandidates(sample.Inventory)
	if len(candidates) == 0 {
		return nil
	}

	// Template selection: eat_immediate requires an urgent deficit.
	urgency := signals.HungerUrgency(food)
	if urgency <= eatImmediateUrgency {
		return nil
	}

	// Arbitrary but deterministic across identical inputs: first food stack
	// in inventory order.
	candidate := candidates[0]
	instanceID := h.newID()
	goalID := proof.DeriveGoalID(hungerNeedType, hungerTemplateName)

	result := &Result{
		GoalKey:     HungerGoalKey,
		GoalID:      goalID,
		InstanceID:  instanceID,
		BuilderName: HungerBuilderName,
		TaskData: TaskData{
			Title:  hungerDescription,
			Type:   "survival",
			Source: "autonomous",
			Steps: []StepTemplate{{
				Label: "consume food",
				Leaf:  "consume_food",
				Args:  map[string]any{"food_type": "any", "amount": 1},
			}},
		},
	}

	if dryRun {
		h.emitter.Emit(lifecycle.Event{
			Type:             lifecycle.TypeGoalFormulated,
			ReflexInstanceID: instanceID,
			GoalID:           goalID,
			GoalKey:          HungerGoalKey,
		})
		return result
	}

	homeostasisDigest, err := proof.DigestJSON(signals.Translate(sample))
	if err != nil {
		log.Printf("[HUNGER] homeostasis digest failed: %v", err)
	}
	candidatesDigest, err := proof.DigestJSON(candidateNames(candidates))
	if err != nil {
		log.Printf("[HUNGER] candidates digest failed: %v", err)
	}

	acc := &proof.Accumulator{
		GoalID:            goalID,
		GoalKey:           HungerGoalKey,
		NeedType:          hungerNeedType,
		TemplateName:      hungerTemplateName,
		Description:       hungerDescription,
		FoodItem:          candidate.Name,
		FoodItemCount:     candidate.Count,
		HomeostasisDigest: homeostasisDigest,
		CandidatesDigest:  candidatesDigest,
		HungerValue:       urgency,
		TriggerThreshold:  h.cfg.TriggerThreshold,
		FoodBefore:        food,
		InventoryBefore:   sample.InventoryCounts(),
		Steps: []proof.StepIdentity{{
			Leaf: "consume_food",
			Args: map[string]any{"food_type": "any", "amount": 1},
		}},
		TriggeredAt: now,
	}

	h.armed = false
	acc.GoalFormulatedAt = h.now()
	h.accumulators.put(instanceID, acc)

	h.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeGoalFormulated,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          HungerGoalKey,
	})

	acc.TaskPlannedAt = h.now()
	h.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeTaskPlanned,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          HungerGoalKey,
		TaskID:           "pending-" + shortID(instanceID),
	})
	return result
}

// OnEnqueued bridges the registry's enqueue outcome into the lifecycle log.
func (h *HungerReflex) OnEnqueued(instanceID, taskID, goalID string) {
	h.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeTaskEnqueued,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          HungerGoalKey,
		TaskID:           taskID,
	})
}

// OnSkipped records the skip and evicts the orphaned accumulator.
func (h *HungerReflex) OnSkipped(instanceID, goalID, reason, existingTaskID string) {
	h.accumulators.drop(instanceID)
	h.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeTaskEnqueueSkipped,
		ReflexInstanceID: instanceID,
		GoalID:           goalID,
		GoalKey:          HungerGoalKey,
		SkipReason:       reason,
		ExistingTaskID:   existingTaskID,
	})
}

// OnTaskTerminal builds and records the proof bundle for the finished task,
// then closes the goal.
func (h *HungerReflex) OnTaskTerminal(task *Task, after *worldstate.Sample) {
	if task == nil || task.Metadata == nil || task.Metadata.ReflexInstanceID == "" {
		return
	}
	instanceID := task.Metadata.ReflexInstanceID

	acc, ok := h.accumulators.take(instanceID)
	if !ok {
		log.Printf("[HUNGER] terminal for unknown instance %s (evicted?)", shortID(instanceID))
		return
	}

	exec := proof.Execution{
		Result:  executionResult(task.Status),
		Receipt: task.Metadata.Receipt,
		TaskID:  task.ID,
	}

	bundle, err := proof.Build(acc, exec, after)
	if err != nil {
		log.Printf("[HUNGER] proof build failed for %s: %v", shortID(instanceID), err)
		return
	}

	if h.recorder != nil {
		if err := h.recorder.Record(context.Background(), h.cfg.RunID, bundle); err != nil {
			log.Printf("[HUNGER] proof record failed for %s: %v", bundle.BundleHash, err)
		}
	}

	h.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeGoalVerified,
		ReflexInstanceID: instanceID,
		GoalID:           acc.GoalID,
		GoalKey:          HungerGoalKey,
		BundleHash:       bundle.BundleHash,
		Reason:           string(bundle.Reason),
	})

	success := bundle.Verified
	h.emitter.Emit(lifecycle.Event{
		Type:             lifecycle.TypeGoalClosed,
		ReflexInstanceID: instanceID,
		GoalID:           acc.GoalID,
		GoalKey:          HungerGoalKey,
		BundleHash:       bundle.BundleHash,
		Success:          &success,
		Reason:           string(bundle.Reason),
	})
}

// executionResult maps a terminal task status onto the identity vocabulary.
func executionResult(status Status) string {
	switch status {
	case StatusCompleted:
		return proof.ResultOK
	case StatusCancelled:
		return proof.ResultSkipped
	default:
		return proof.ResultError
	}
}

func foodCandidates(inventory []worldstate.InventoryItem) []worldstate.InventoryItem {
	var out []worldstate.InventoryItem
	for _, item := range inventory {
		if item.Count > 0 && worldstate.IsFood(item.Name) {
			out = append(out, item)
		}
	}
	return out
}

func candidateNames(candidates []worldstate.InventoryItem) []string {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
