// Package name extracts a display name from free-form user text. The
// heuristic is inherently ambiguous (a bare word is indistinguishable from a
// stray greeting), so it lives behind an interface: swapping it for an
// explicit onboarding field later is a drop-in change.
package name

import (
	"regexp"
	"strings"
	"unicode"
)

// Extractor resolves an optional display name from user input.
type Extractor interface {
	// Extract returns the normalized name and true, or "" and false when the
	// text contains no recognizable name.
	Extract(text string) (string, bool)
}

const (
	minLength = 2
	maxLength = 20
)

// Ordered: the first matching pattern wins.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)my\s+name\s+is\s+([a-zA-Z\s]+)`),
	regexp.MustCompile(`(?i)i'?m\s+([a-zA-Z\s]+)`),
	regexp.MustCompile(`(?i)im\s+([a-zA-Z\s]+)`),
	regexp.MustCompile(`(?i)i\s+am\s+([a-zA-Z\s]+)`),
	regexp.MustCompile(`(?i)call\s+me\s+([a-zA-Z\s]+)`),
	regexp.MustCompile(`(?i)this\s+is\s+([a-zA-Z\s]+)`),
	regexp.MustCompile(`(?i)hey\s+it'?s?\s+([a-zA-Z\s]+)`),
	regexp.MustCompile(`(?i)^([a-zA-Z]+)$`),
}

type patternExtractor struct{}

// NewExtractor returns the pattern-based extractor.
func NewExtractor() Extractor {
	return patternExtractor{}
}

// Extract tries each pattern in order and normalizes the first capture:
// non-letters stripped, first whitespace-delimited token only, first letter
// capitalized. Captures outside [2,20] letters are rejected and the next
// pattern is tried.
func (patternExtractor) Extract(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}

	for _, pattern := range patterns {
		match := pattern.FindStringSubmatch(trimmed)
		if len(match) < 2 || match[1] == "" {
			continue
		}

		candidate := normalize(match[1])
		if len(candidate) >= minLength && len(candidate) <= maxLength {
			return candidate, true
		}
	}

	return "", false
}

func normalize(raw string) string {
	var letters strings.Builder
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			letters.WriteRune(r)
		}
	}

	fields := strings.Fields(letters.String())
	if len(fields) == 0 {
		return ""
	}

	first := strings.ToLower(fields[0])
	return strings.ToUpper(first[:1]) + first[1:]
}
