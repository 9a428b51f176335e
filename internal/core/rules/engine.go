// Package rules holds the fixed identifier rewrite rules and the stale-stamp classifier.
//
// A rule set is an ordered list of (pattern, rewrite) pairs. Apply runs every rule in
// declaration order; a rule whose pattern does not match is skipped, and each rule
// sees the output of the one before it. Rule sets are built once per run from the
// operator's replacement digit and never change afterwards.
package rules

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rewrite produces the replacement for one match. groups[0] is the whole match,
// groups[i] the i-th capture ("" when the group did not participate).
type Rewrite func(groups []string) string

// Boundary marks the ends of a match that must sit on a Unicode word boundary.
type Boundary uint8

const (
	BoundLeft Boundary = 1 << iota
	BoundRight
)

// Rule pairs a matcher with its rewrite.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Rewrite Rewrite
	// Bounds is checked around every match. RE2's \b only knows ASCII word characters.
	Bounds Boundary
}

// Literal rewrites every match to s verbatim; no group expansion.
func Literal(s string) Rewrite {
	return func([]string) string { return s }
}

// Engine applies an immutable rule list.
type Engine struct {
	rules []Rule
}

// NewEngine copies rules so later mutation of the slice cannot leak in.
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// Rules returns a copy of the rule list in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Apply runs every rule in order over text.
func (e *Engine) Apply(text string) string {
	if text == "" || e == nil {
		return text
	}
	for _, r := range e.rules {
		if !r.Pattern.MatchString(text) {
			continue
		}
		if r.Bounds == 0 {
			text = replaceAll(r.Pattern, text, r.Rewrite)
		} else {
			text = replaceBounded(r, text)
		}
	}
	return text
}

// Changed applies the rules and reports whether anything moved.
func (e *Engine) Changed(text string) (string, bool) {
	out := e.Apply(text)
	return out, out != text
}

func replaceAll(re *regexp.Regexp, text string, rw Rewrite) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	groups := make([]string, re.NumSubexp()+1)
	for _, m := range matches {
		for i := range groups {
			groups[i] = ""
			if s, e := m[2*i], m[2*i+1]; s >= 0 {
				groups[i] = text[s:e]
			}
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(rw(groups))
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// replaceBounded is replaceAll for rules with word boundaries. A match rejected by a
// boundary is retried one rune further on, as a backtracking engine would.
func replaceBounded(r Rule, text string) string {
	var (
		b         strings.Builder
		last, pos int
		hit       bool
	)
	groups := make([]string, r.Pattern.NumSubexp()+1)
	for pos <= len(text) {
		m := r.Pattern.FindStringSubmatchIndex(text[pos:])
		if m == nil {
			break
		}
		for i := range m {
			if m[i] >= 0 {
				m[i] += pos
			}
		}
		if !r.Bounds.accepts(text, m[0], m[1]) {
			_, size := utf8.DecodeRuneInString(text[m[0]:])
			if size == 0 {
				break
			}
			pos = m[0] + size
			continue
		}

		for i := range groups {
			groups[i] = ""
			if s, e := m[2*i], m[2*i+1]; s >= 0 {
				groups[i] = text[s:e]
			}
		}
		if !hit {
			b.Grow(len(text))
			hit = true
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(r.Rewrite(groups))
		last, pos = m[1], m[1]
		if m[0] == m[1] {
			_, size := utf8.DecodeRuneInString(text[pos:])
			if size == 0 {
				break
			}
			pos += size
		}
	}
	if !hit {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// accepts reports whether text[start:end] sits on the required word boundaries.
func (bd Boundary) accepts(text string, start, end int) bool {
	if bd&BoundLeft != 0 {
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		first, _ := utf8.DecodeRuneInString(text[start:])
		if isWord(before, start > 0) == isWord(first, start < len(text)) {
			return false
		}
	}
	if bd&BoundRight != 0 {
		lastRune, _ := utf8.DecodeLastRuneInString(text[:end])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if isWord(lastRune, end > 0) == isWord(after, end < len(text)) {
			return false
		}
	}
	return true
}

// isWord matches the word class of Unicode-aware regex engines: letters, numbers, underscore.
func isWord(r rune, present bool) bool {
	return present && (r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r))
}
