// Package priors implements execution-only credit assignment: clamped EMA
// priors over rule IDs, adjusted solely by execution outcome reports. Plan
// discovery alone never moves a prior.
package priors

import (
	"context"
	"time"
)

// Prior bounds and adjustment steps.
const (
	DefaultPrior = 1.0
	MinPrior     = 0.01
	MaxPrior     = 10.0

	successAdjustment = 0.1
	failureAdjustment = -0.2
)

// Report is one rule's execution outcome inside a request.
type Report struct {
	RuleID        string `json:"rule_id"`
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// AuditEntry records one applied adjustment.
type AuditEntry struct {
	RequestHash string    `json:"request_hash"`
	RuleID      string    `json:"rule_id"`
	Adjustment  float64   `json:"adjustment"`
	PriorBefore float64   `json:"prior_before"`
	PriorAfter  float64   `json:"prior_after"`
	At          time.Time `json:"at"`
}

// Store abstracts the prior backend the way the deployment needs it:
// in-memory by default, Redis or Postgres when priors must outlive the
// process. The clamp invariant holds in every backend.
type Store interface {
	// GetPrior returns the rule's prior, defaulting to DefaultPrior.
	GetPrior(ctx context.Context, ruleID string) (float64, error)

	// ReportExecutionOutcome applies the clamped adjustment for every report
	// and appends audit entries. This is the only write path for priors.
	ReportExecutionOutcome(ctx context.Context, requestHash string, reports []Report) error
}

func adjustmentFor(success bool) float64 {
	if success {
		return successAdjustment
	}
	return failureAdjustment
}

func clampPrior(v float64) float64 {
	if v < MinPrior {
		return MinPrior
	}
	if v > MaxPrior {
		return MaxPrior
	}
	return v
}
