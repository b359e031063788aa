package proof

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voxelmind/reflexcore/observability"
	"github.com/voxelmind/reflexcore/worldstate"
)

// Accumulator is the per-instance mutable state the hunger controller retains
// between firing and the task terminal. It carries everything the bundle
// builder needs so the controller can evict it immediately after the build.
type Accumulator struct {
	GoalID            string
	GoalKey           string
	NeedType          string
	TemplateName      string
	Description       string
	FoodItem          string
	FoodItemCount     int
	HomeostasisDigest string
	CandidatesDigest  string
	HungerValue       float64
	TriggerThreshold  int
	FoodBefore        int
	InventoryBefore   map[string]int
	Steps             []StepIdentity

	TriggeredAt      time.Time
	GoalFormulatedAt time.Time
	TaskPlannedAt    time.Time
}

// Execution is the terminal outcome handed back from the task store.
type Execution struct {
	Result  string // ok | error | skipped
	Receipt *Receipt
	TaskID  string
}

// Build assembles a content-addressed bundle from an accumulator, the
// execution outcome and the optional post-execution sample.
//
// Verification failure overrides the executed result to "error" in the
// identity regardless of what the executor reported; the bundle is still
// built and recorded.
func Build(acc *Accumulator, exec Execution, after *worldstate.Sample) (*Bundle, error) {
	verification, reason := verify(acc.FoodBefore, acc.InventoryBefore, exec.Receipt, after)

	result := exec.Result
	if !reason.Verified() {
		result = ResultError
	}

	identity := Identity{
		SchemaVersion: SchemaVersion,
		Trigger: Trigger{
			HungerValue: acc.HungerValue,
			Threshold:   acc.TriggerThreshold,
			FoodLevel:   acc.FoodBefore,
		},
		Preconditions: Preconditions{FoodAvailable: acc.FoodItem != ""},
		Goal: Goal{
			NeedType:     acc.NeedType,
			TemplateName: acc.TemplateName,
			Description:  acc.Description,
		},
		Task:         TaskIdentity{Steps: acc.Steps},
		Execution:    ExecutionIdentity{Result: result},
		Verification: verification,
	}

	hash, err := HashIdentity(identity)
	if err != nil {
		return nil, fmt.Errorf("hash proof identity: %w", err)
	}

	now := time.Now()
	bundle := &Bundle{
		BundleHash: hash,
		Identity:   identity,
		Evidence: Evidence{
			ProofID:                 uuid.NewString(),
			GoalID:                  acc.GoalID,
			TaskID:                  exec.TaskID,
			HomeostasisSampleDigest: acc.HomeostasisDigest,
			CandidatesDigest:        acc.CandidatesDigest,
			ExecutionReceipt:        exec.Receipt,
			CandidateFoodItem:       acc.FoodItem,
			CandidateFoodCount:      acc.FoodItemCount,
			Timing:                  timing(acc, now),
			TriggeredAt:             acc.TriggeredAt,
		},
		Verified: reason.Verified(),
		Reason:   reason,
	}

	verified := "false"
	if bundle.Verified {
		verified = "true"
	}
	observability.ProofBundlesBuilt.WithLabelValues(verified, string(reason)).Inc()
	return bundle, nil
}

func timing(acc *Accumulator, now time.Time) Timing {
	t := Timing{TotalMs: phaseMs(acc.TriggeredAt, now)}
	if !acc.GoalFormulatedAt.IsZero() {
		t.TriggerToGoalMs = phaseMs(acc.TriggeredAt, acc.GoalFormulatedAt)
		if !acc.TaskPlannedAt.IsZero() {
			t.GoalToTaskMs = phaseMs(acc.GoalFormulatedAt, acc.TaskPlannedAt)
			t.TaskToExecutionMs = phaseMs(acc.TaskPlannedAt, now)
		}
	}
	return t
}

func phaseMs(from, to time.Time) int64 {
	if from.IsZero() || to.Before(from) {
		return 0
	}
	return to.Sub(from).Milliseconds()
}
