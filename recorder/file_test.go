package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/voxelmind/reflexcore/proof"
)

func testBundle(hash string) *proof.Bundle {
	return &proof.Bundle{
		BundleHash: hash,
		Identity:   proof.Identity{SchemaVersion: proof.SchemaVersion},
		Verified:   true,
		Reason:     proof.ReasonReceiptConfirmsConsumption,
	}
}

func TestFileRecorderAppendsJSONL(t *testing.T) {
	dir := t.TempDir()
	r := NewFileRecorder(dir)
	defer r.Close()

	if err := r.Record(context.Background(), "run-1", testBundle("aaaa111122223333")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := r.Record(context.Background(), "run-1", testBundle("bbbb111122223333")); err != nil {
		t.Fatalf("record: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "run-1.jsonl"))
	if err != nil {
		t.Fatalf("open run file: %v", err)
	}
	defer f.Close()

	var hashes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var b proof.Bundle
		if err := json.Unmarshal(scanner.Bytes(), &b); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		hashes = append(hashes, b.BundleHash)
	}
	if len(hashes) != 2 || hashes[0] != "aaaa111122223333" || hashes[1] != "bbbb111122223333" {
		t.Errorf("recorded hashes = %v", hashes)
	}
}

func TestFileRecorderSeparatesRuns(t *testing.T) {
	dir := t.TempDir()
	r := NewFileRecorder(dir)
	defer r.Close()

	if err := r.Record(context.Background(), "run-a", testBundle("aaaa111122223333")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := r.Record(context.Background(), "run-b", testBundle("bbbb111122223333")); err != nil {
		t.Fatalf("record: %v", err)
	}

	for _, name := range []string{"run-a.jsonl", "run-b.jsonl"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestFileRecorderEmptyRunIDFallsBack(t *testing.T) {
	dir := t.TempDir()
	r := NewFileRecorder(dir)
	defer r.Close()

	if err := r.Record(context.Background(), "", testBundle("cccc111122223333")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "default.jsonl")); err != nil {
		t.Errorf("expected default.jsonl: %v", err)
	}
}
