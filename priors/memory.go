package priors

import (
	"context"
	"sync"
	"time"

	"github.com/voxelmind/reflexcore/observability"
)

// MemoryStore is the default in-process prior store.
type MemoryStore struct {
	mu     sync.RWMutex
	priors map[string]float64
	audit  []AuditEntry
}

// NewMemoryStore initializes an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{priors: make(map[string]float64)}
}

func (s *MemoryStore) GetPrior(ctx context.Context, ruleID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if prior, ok := s.priors[ruleID]; ok {
		return prior, nil
	}
	return DefaultPrior, nil
}

func (s *MemoryStore) ReportExecutionOutcome(ctx context.Context, requestHash string, reports []Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, report := range reports {
		before, ok := s.priors[report.RuleID]
		if !ok {
			before = DefaultPrior
		}
		adjustment := adjustmentFor(report.Success)
		after := clampPrior(before + adjustment)
		s.priors[report.RuleID] = after

		s.audit = append(s.audit, AuditEntry{
			RequestHash: requestHash,
			RuleID:      report.RuleID,
			Adjustment:  adjustment,
			PriorBefore: before,
			PriorAfter:  after,
			At:          now,
		})
		observability.PriorAdjustments.WithLabelValues(direction(report.Success)).Inc()
	}
	return nil
}

// AuditLog returns a snapshot copy of the audit trail.
func (s *MemoryStore) AuditLog() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

func direction(success bool) string {
	if success {
		return "up"
	}
	return "down"
}
