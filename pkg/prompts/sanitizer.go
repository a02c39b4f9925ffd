// Package prompts builds and guards the instructions sent to the remote
// generation service.
package prompts

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

const (
	// FilteredToken replaces any catalogued injection phrasing.
	FilteredToken = "[filtered]"
	// TruncationMarker is appended when input is cut at the length cap.
	TruncationMarker = "..."
)

//go:embed patterns.yaml
var patternsYAML []byte

// injectionPatterns is the compiled catalogue of instruction-override
// phrasings. Loaded once at package init; a malformed catalogue is a
// programming error, not a runtime condition.
var injectionPatterns = mustLoadPatterns(patternsYAML)

type patternCatalogue struct {
	Patterns []string `yaml:"patterns"`
}

func mustLoadPatterns(raw []byte) []*regexp.Regexp {
	var catalogue patternCatalogue
	if err := yaml.Unmarshal(raw, &catalogue); err != nil {
		panic(fmt.Sprintf("prompts: invalid patterns.yaml: %v", err))
	}

	compiled := make([]*regexp.Regexp, 0, len(catalogue.Patterns))
	for _, p := range catalogue.Patterns {
		compiled = append(compiled, regexp.MustCompile("(?i)"+p))
	}
	return compiled
}

// Sanitize prepares user-authored text for embedding in a generation prompt.
// It truncates to maxLength characters (appending a marker when cut), strips
// non-printable control characters except newline and tab, and replaces every
// catalogued instruction-override phrasing with a neutral token.
//
// Sanitize never fails: empty or whitespace-only input yields "". It must be
// called on every piece of user text sent to the remote service, including
// prior conversation turns re-sent as context.
func Sanitize(text string, maxLength int) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	if maxLength > 0 {
		runes := []rune(text)
		if len(runes) > maxLength {
			text = string(runes[:maxLength]) + TruncationMarker
		}
	}

	text = stripControlChars(text)

	for _, pattern := range injectionPatterns {
		text = pattern.ReplaceAllString(text, FilteredToken)
	}

	return text
}

// stripControlChars removes non-printable control characters, keeping
// newline and tab so paragraph structure survives.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
