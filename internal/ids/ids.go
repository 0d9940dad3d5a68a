// Package ids generates stable identifiers for stored entities.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// NewDependencyID returns a random UUID for a dependency link.
func NewDependencyID() string {
	return uuid.NewString()
}

// Slug converts a human-entered name into a code usable as a directory
// or file name: lowercase, spaces collapsed to hyphens, everything
// outside [a-z0-9-] dropped.
func Slug(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '-' || r == '_':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
