// Package proof assembles content-addressed proof bundles for the hunger
// reflex.
//
// A bundle splits into an identity record and an evidence record. Only the
// identity participates in the hash: two runs with semantically equivalent
// outcomes share a bundle hash even though their UUIDs, task IDs and timings
// differ. The hasher never reads evidence.
package proof

import "time"

// SchemaVersion is embedded as the leading identity field. The hash function
// choice is fixed for the life of a schema version.
const SchemaVersion = "reflex-proof.v1"

// Execution results (stable wire values).
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Trigger captures the homeostatic condition that fired the reflex.
type Trigger struct {
	HungerValue float64 `json:"hunger_value"`
	Threshold   int     `json:"threshold"`
	FoodLevel   int     `json:"food_level"`
}

// Preconditions captures the gates that held at fire time.
type Preconditions struct {
	FoodAvailable bool `json:"food_available"`
}

// Goal identifies the intent independent of any concrete run.
type Goal struct {
	NeedType     string `json:"need_type"`
	TemplateName string `json:"template_name"`
	Description  string `json:"description"`
}

// StepIdentity is the semantic shape of one task step: dispatch key plus args.
type StepIdentity struct {
	Leaf string         `json:"leaf"`
	Args map[string]any `json:"args"`
}

// TaskIdentity is the semantic shape of the enqueued task.
type TaskIdentity struct {
	Steps []StepIdentity `json:"steps"`
}

// ExecutionIdentity records how the run ended. When verification fails the
// result is overridden to "error" regardless of what the executor reported.
type ExecutionIdentity struct {
	Result string `json:"result"`
}

// Verification is the post-execution consumption check. FoodAfter and Delta
// are nil exactly when the after-state was unavailable; no sentinel values.
type Verification struct {
	FoodBefore    int      `json:"food_before"`
	FoodAfter     *int     `json:"food_after"`
	Delta         *int     `json:"delta"`
	ItemsConsumed []string `json:"items_consumed"` // lexicographically sorted
}

// Identity is the hashed half of a bundle. Field order is part of the
// canonical form; schema_version leads.
type Identity struct {
	SchemaVersion string            `json:"schema_version"`
	Trigger       Trigger           `json:"trigger"`
	Preconditions Preconditions     `json:"preconditions"`
	Goal          Goal              `json:"goal"`
	Task          TaskIdentity      `json:"task"`
	Execution     ExecutionIdentity `json:"execution"`
	Verification  Verification      `json:"verification"`
}

// Receipt is the executor's own account of what was consumed.
type Receipt struct {
	ItemsConsumed int    `json:"items_consumed,omitempty"`
	FoodConsumed  string `json:"food_consumed,omitempty"`
}

// Timing correlates run phases in milliseconds. Evidence only.
type Timing struct {
	TriggerToGoalMs   int64 `json:"trigger_to_goal_ms"`
	GoalToTaskMs      int64 `json:"goal_to_task_ms"`
	TaskToExecutionMs int64 `json:"task_to_execution_ms"`
	TotalMs           int64 `json:"total_ms"`
}

// Evidence is the unhashed half of a bundle: correlation data that varies
// across otherwise identical runs.
type Evidence struct {
	ProofID                 string    `json:"proof_id"`
	GoalID                  string    `json:"goal_id"`
	TaskID                  string    `json:"task_id"`
	HomeostasisSampleDigest string    `json:"homeostasis_sample_digest"`
	CandidatesDigest        string    `json:"candidates_digest"`
	ExecutionReceipt        *Receipt  `json:"execution_receipt,omitempty"`
	CandidateFoodItem       string    `json:"candidate_food_item"`
	CandidateFoodCount      int       `json:"candidate_food_count"`
	Timing                  Timing    `json:"timing"`
	TriggeredAt             time.Time `json:"triggered_at"`
}

// Bundle is an immutable content-addressed proof record.
type Bundle struct {
	BundleHash string   `json:"bundle_hash"`
	Identity   Identity `json:"identity"`
	Evidence   Evidence `json:"evidence"`

	// Verification outcome, surfaced alongside the bundle for goal_closed.
	Verified bool   `json:"verified"`
	Reason   Reason `json:"reason"`
}
