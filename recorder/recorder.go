// Package recorder persists proof bundles to a durable sink.
package recorder

import (
	"context"
	"encoding/json"
	"log"

	"github.com/voxelmind/reflexcore/observability"
	"github.com/voxelmind/reflexcore/proof"
)

// Recorder is the durable proof-bundle sink contract.
type Recorder interface {
	Record(ctx context.Context, runID string, bundle *proof.Bundle) error
}

// LogRecorder writes bundles to the process log as JSON. Useful as a default
// sink and in development.
type LogRecorder struct {
	logger *log.Logger
}

// NewLogRecorder creates a recorder over the default logger.
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{logger: log.Default()}
}

func (r *LogRecorder) Record(ctx context.Context, runID string, bundle *proof.Bundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		observability.RecorderWrites.WithLabelValues("log", "error").Inc()
		return err
	}
	r.logger.Printf("[PROOF] run=%s hash=%s %s", runID, bundle.BundleHash, string(data))
	observability.RecorderWrites.WithLabelValues("log", "ok").Inc()
	return nil
}
