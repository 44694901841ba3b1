package fetch

import (
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// ContentHash computes a cheap non-cryptographic hash of normalized body
// text (§4.3) — collision risk is acceptable at this scale, and xxhash is
// fast enough to run on every fetch without a budget charge.
func ContentHash(body string) uint64 {
	return xxhash.Sum64String(normalizeForHash(body))
}

func normalizeForHash(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
