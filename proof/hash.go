package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Digest16 returns the first 16 hex characters of the SHA-256 of data.
func Digest16(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// DigestJSON canonicalises v via encoding/json (struct fields in declaration
// order, map keys sorted) and digests the bytes.
func DigestJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalise for digest: %w", err)
	}
	return Digest16(data), nil
}

// HashIdentity computes the bundle hash over the canonical identity bytes.
// The identity must already be in canonical form (items_consumed sorted).
func HashIdentity(id Identity) (string, error) {
	return DigestJSON(id)
}

// DeriveGoalID maps a reflex intent onto a stable content-derived goal ID.
// The ID depends only on the need type and template name, never on which
// concrete item or target the controller selected.
func DeriveGoalID(needType, templateName string) string {
	return "goal-" + Digest16([]byte("reflex-goal|v1|"+needType+"|"+templateName))
}
