package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	entityPrefix    = "eid"
	maxDisplayIDLen = 96
)

// EntityID is the cache key of one display id to entity id mapping:
// eid:<dataset>:<display id>:h=<xxhash64 of dataset and display id>.
// The readable parts are sanitized and may be truncated; the hash keeps keys distinct.
func EntityID(dataset, displayID string) string {
	ds := strings.ToLower(strings.TrimSpace(dataset))
	id := strings.TrimSpace(displayID)

	safe := sanitize(id)
	if len(safe) > maxDisplayIDLen {
		safe = safe[:maxDisplayIDLen]
	}

	h := xxhash.New()
	_, _ = h.WriteString(ds)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(id)

	return fmt.Sprintf("%s:%s:%s:h=%016x", entityPrefix, sanitize(ds), safe, h.Sum64())
}

// EntityIDs returns the keys for displayIDs in input order.
func EntityIDs(dataset string, displayIDs []string) []string {
	out := make([]string, len(displayIDs))
	for i, d := range displayIDs {
		out[i] = EntityID(dataset, d)
	}
	return out
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
