package utils

import (
	"strings"
)

// NormalizePlate canonicalizes a plate reading for registry lookups and
// storage: uppercase, with separators and whitespace stripped. Only
// latin letters and digits survive.
func NormalizePlate(plate string) string {
	var b strings.Builder
	b.Grow(len(plate))
	for _, r := range strings.ToUpper(strings.TrimSpace(plate)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
