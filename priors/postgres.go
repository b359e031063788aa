package priors

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxelmind/reflexcore/observability"
)

// PostgresStore keeps priors and their audit trail durable.
//
// Expected schema:
//
//	CREATE TABLE reflex_priors (
//	    rule_id    TEXT PRIMARY KEY,
//	    prior      DOUBLE PRECISION NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE reflex_prior_audit (
//	    id           BIGSERIAL PRIMARY KEY,
//	    request_hash TEXT NOT NULL,
//	    rule_id      TEXT NOT NULL,
//	    adjustment   DOUBLE PRECISION NOT NULL,
//	    prior_before DOUBLE PRECISION NOT NULL,
//	    prior_after  DOUBLE PRECISION NOT NULL,
//	    at           TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore initializes a PostgresStore with a connection pool.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 10
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) GetPrior(ctx context.Context, ruleID string) (float64, error) {
	var prior float64
	err := s.pool.QueryRow(ctx,
		`SELECT prior FROM reflex_priors WHERE rule_id = $1`, ruleID,
	).Scan(&prior)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultPrior, nil
	}
	if err != nil {
		return 0, err
	}
	return prior, nil
}

func (s *PostgresStore) ReportExecutionOutcome(ctx context.Context, requestHash string, reports []Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	for _, report := range reports {
		adjustment := adjustmentFor(report.Success)

		// Row-locked read, clamp in Go, upsert. The lock keeps concurrent
		// reporters from losing adjustments.
		before := DefaultPrior
		err := tx.QueryRow(ctx,
			`SELECT prior FROM reflex_priors WHERE rule_id = $1 FOR UPDATE`, report.RuleID,
		).Scan(&before)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		after := clampPrior(before + adjustment)

		if _, err := tx.Exec(ctx, `
			INSERT INTO reflex_priors (rule_id, prior, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (rule_id) DO UPDATE SET prior = $2, updated_at = $3
		`, report.RuleID, after, now); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO reflex_prior_audit (request_hash, rule_id, adjustment, prior_before, prior_after, at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, requestHash, report.RuleID, adjustment, before, after, now); err != nil {
			return err
		}
		observability.PriorAdjustments.WithLabelValues(direction(report.Success)).Inc()
	}
	return tx.Commit(ctx)
}
