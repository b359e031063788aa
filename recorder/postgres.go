package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxelmind/reflexcore/observability"
	"github.com/voxelmind/reflexcore/proof"
)

// PostgresRecorder stores bundles durably, one row per (run, bundle hash).
//
// Expected schema:
//
//	CREATE TABLE reflex_proofs (
//	    run_id      TEXT NOT NULL,
//	    bundle_hash TEXT NOT NULL,
//	    verified    BOOLEAN NOT NULL,
//	    reason      TEXT NOT NULL,
//	    bundle      JSONB NOT NULL,
//	    recorded_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (run_id, bundle_hash)
//	);
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder initializes a recorder with a connection pool.
func NewPostgresRecorder(ctx context.Context, connString string) (*PostgresRecorder, error) {
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
	return &PostgresRecorder{pool: pool}, nil
}

// Close closes the connection pool.
func (r *PostgresRecorder) Close() {
	r.pool.Close()
}

func (r *PostgresRecorder) Record(ctx context.Context, runID string, bundle *proof.Bundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		observability.RecorderWrites.WithLabelValues("postgres", "error").Inc()
		return fmt.Errorf("marshal bundle: %w", err)
	}

	// Identical identity re-recorded in the same run updates in place:
	// evidence from the latest run wins, the hash stays the address.
	_, err = r.pool.Exec(ctx, `
		INSERT INTO reflex_proofs (run_id, bundle_hash, verified, reason, bundle, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, bundle_hash) DO UPDATE SET
			verified = EXCLUDED.verified,
			reason = EXCLUDED.reason,
			bundle = EXCLUDED.bundle,
			recorded_at = EXCLUDED.recorded_at
	`, runID, bundle.BundleHash, bundle.Verified, string(bundle.Reason), data, time.Now())
	if err != nil {
		observability.RecorderWrites.WithLabelValues("postgres", "error").Inc()
		return fmt.Errorf("store bundle: %w", err)
	}
	observability.RecorderWrites.WithLabelValues("postgres", "ok").Inc()
	return nil
}
