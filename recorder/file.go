package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/voxelmind/reflexcore/observability"
	"github.com/voxelmind/reflexcore/proof"
)

// FileRecorder appends bundles to one JSONL file per run under a directory.
type FileRecorder struct {
	dir string

	mu    sync.Mutex
	files map[string]*os.File // runID -> open file
}

// NewFileRecorder creates a recorder writing under dir. The directory is
// created on first write.
func NewFileRecorder(dir string) *FileRecorder {
	return &FileRecorder{dir: dir, files: make(map[string]*os.File)}
}

func (r *FileRecorder) Record(ctx context.Context, runID string, bundle *proof.Bundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		observability.RecorderWrites.WithLabelValues("file", "error").Inc()
		return fmt.Errorf("marshal bundle: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.fileLocked(runID)
	if err != nil {
		observability.RecorderWrites.WithLabelValues("file", "error").Inc()
		return err
	}
	if _, err := fmt.Fprintf(f, "%s\n", data); err != nil {
		observability.RecorderWrites.WithLabelValues("file", "error").Inc()
		return fmt.Errorf("append bundle: %w", err)
	}
	observability.RecorderWrites.WithLabelValues("file", "ok").Inc()
	return nil
}

// Close flushes and closes all open run files.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for runID, f := range r.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.files, runID)
	}
	return firstErr
}

func (r *FileRecorder) fileLocked(runID string) (*os.File, error) {
	if runID == "" {
		runID = "default"
	}
	if f, ok := r.files[runID]; ok {
		return f, nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recorder dir: %w", err)
	}
	path := filepath.Join(r.dir, runID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run file: %w", err)
	}
	r.files[runID] = f
	return f, nil
}
