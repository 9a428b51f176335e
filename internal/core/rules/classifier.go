package rules

import (
	"regexp"
	"strings"
)

// Stamp shapes left behind in title blocks after renumbering. Digits are any
// decimal digit, not only ASCII.
var deletePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^C0[0-9]$`),
	regexp.MustCompile(`^-+$`),
	regexp.MustCompile(`^Repl\.$`),
	regexp.MustCompile(`^Зам\.$`),
	regexp.MustCompile(`^\p{Nd}{4,5}-\p{Nd}{2}$`),
	regexp.MustCompile(`^\p{Nd}{2}\.\p{Nd}{2,4}$`),
}

// IsDeleteCandidate reports whether text looks like a stale revision stamp.
// It must be called on the text as read from the document, before any rewrite.
// One trailing newline is tolerated.
func IsDeleteCandidate(text string) bool {
	text = strings.TrimSuffix(text, "\n")
	for _, p := range deletePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
