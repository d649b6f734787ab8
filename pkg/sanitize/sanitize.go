// Package sanitize turns arbitrary display text into safe folder names.
package sanitize

import (
	"strings"
	"unicode"
)

// MaxLength is the maximum length of a sanitized name, in runes.
const MaxLength = 80

const reserved = `<>:"/\|?*`

// Name maps s to a name that is safe to use as a single path element on
// common filesystems. It is deterministic and idempotent. The result may be
// empty; callers must supply a fallback.
func Name(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	// Reserved characters become underscores, line breaks and tabs become
	// spaces, other control characters are dropped. Runs of whitespace and
	// of underscores are collapsed as we go.
	var prev rune
	for _, r := range s {
		switch {
		case strings.ContainsRune(reserved, r):
			r = '_'
		case r == '\n' || r == '\r' || r == '\t':
			r = ' '
		case isControl(r):
			continue
		case unicode.IsSpace(r):
			r = ' '
		}
		if (r == ' ' || r == '_') && r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}

	out := truncate(b.String(), MaxLength)
	return strings.Trim(out, " _")
}

// Folder returns the sanitized title, or id when the title sanitizes to
// nothing.
func Folder(title, id string) string {
	if name := Name(title); name != "" {
		return name
	}
	return id
}

func isControl(r rune) bool {
	return r < 0x20 || (r >= 0x7f && r <= 0x9f)
}

func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
