// Package textnorm folds spreadsheet cell text into the lossy comparable form
// used by the classifier and the joiner, and holds the small cell helpers
// shared by the extraction stages.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punctuation = regexp.MustCompile(`[\[\](){},;:"]`)
	dashes      = regexp.MustCompile(`[-–—|/]+`)
	spaces      = regexp.MustCompile(`\s+`)
	digitRuns   = regexp.MustCompile(`\d+`)
	fourDigits  = regexp.MustCompile(`\d{4}`)
)

// Normalize lower-cases s, strips accents, turns brackets and punctuation into
// spaces, folds dash/pipe/slash runs and collapses whitespace. It is
// idempotent and never fails; text it cannot fold is kept as is.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = punctuation.ReplaceAllString(s, " ")
	s = dashes.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// AfterColon returns the trimmed text after the first colon, or the trimmed
// text itself when there is none.
func AfterColon(s string) string {
	if _, after, ok := strings.Cut(s, ":"); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(s)
}

// KeyAfterColon returns the text after the colon of the first cell that has
// one; when no cell does, the non-empty cells joined by a space.
func KeyAfterColon(cells []string) string {
	for _, c := range cells {
		if _, after, ok := strings.Cut(c, ":"); ok {
			return strings.TrimSpace(after)
		}
	}
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		if s := strings.TrimSpace(c); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// DigitRuns returns every maximal run of ASCII digits in s.
func DigitRuns(s string) []string {
	return digitRuns.FindAllString(s, -1)
}

// LastDigitRun returns the last run of digits, or "".
func LastDigitRun(s string) string {
	runs := DigitRuns(s)
	if len(runs) == 0 {
		return ""
	}
	return runs[len(runs)-1]
}

// FirstFourDigits returns the first run of four digits in s, used both for
// exercise years and for numeric region codes.
func FirstFourDigits(s string) string {
	return fourDigits.FindString(s)
}

// CollapseSpaces replaces non-breaking spaces and whitespace runs by a single
// space and trims the result.
func CollapseSpaces(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}
