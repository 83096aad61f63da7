package placement

import (
	"strconv"
	"strings"
	"unicode"
)

// Sanitize turns a proposed name into a filesystem-safe base name.
// Every rune that is not a letter, number or underscore becomes "_", then
// leading and trailing underscores are trimmed. Runs are not collapsed.
// An empty result yields fallback.
func Sanitize(name, fallback string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		if r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return fallback
	}
	return out
}

// candidate returns base for attempt 0 and base-N afterwards.
func candidate(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(attempt)
}
