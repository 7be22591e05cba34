package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key derives the deterministic cache key for one request.
//
// Normalization is fixed: the text is lowercased and surrounding whitespace
// is trimmed. The key binds endpoint_tag and caller_id so results never
// leak across callers; source_address is deliberately excluded so a caller
// roaming between addresses keeps its hits. Requests without a caller id
// share one anonymous partition. Changing any part of this derivation
// invalidates every existing entry.
func Key(prefix, endpointTag, callerID, text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))

	h := sha256.New()
	h.Write([]byte(endpointTag))
	h.Write([]byte{0x1f})
	h.Write([]byte(callerID))
	h.Write([]byte{0x1f})
	h.Write([]byte(normalized))

	digest := hex.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("%s:cache:%s", prefix, digest[:32])
}
