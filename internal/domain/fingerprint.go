package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint derives the idempotency key for generating content about an
// insight: the same topic, evidence set, and generator version always hash to
// the same value regardless of evidence ordering.
func Fingerprint(topicKey, generatorVersion string, evidenceRefs []string) string {
	refs := make([]string, 0, len(evidenceRefs))
	refs = append(refs, evidenceRefs...)
	sort.Strings(refs)

	h := sha256.New()
	h.Write([]byte(topicKey))
	h.Write([]byte{0})
	h.Write([]byte(generatorVersion))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(refs, "\x1f")))

	return hex.EncodeToString(h.Sum(nil))
}
