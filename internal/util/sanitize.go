package util

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.StrictPolicy()

const (
	maxTextLength     = 255
	maxSanitizePasses = 4
)

// SanitizeText strips HTML and surrounding whitespace from free text.
// Entities are decoded and the result sanitized again until it is stable,
// so entity-encoded markup cannot come out as live tags.
func SanitizeText(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	stable := false
	for i := 0; i < maxSanitizePasses; i++ {
		// Sanitize escapes entities; values are served as JSON, so unescape them again.
		next := html.UnescapeString(htmlPolicy.Sanitize(input))
		if next == input {
			stable = true
			break
		}
		input = next
	}
	if !stable {
		input = htmlPolicy.Sanitize(input)
	}
	input = strings.TrimSpace(input)
	if r := []rune(input); len(r) > maxTextLength {
		input = string(r[:maxTextLength])
	}
	return input
}

// SanitizeOptional sanitizes an optional field. Blank values become nil.
func SanitizeOptional(input *string) *string {
	if input == nil {
		return nil
	}
	v := SanitizeText(*input)
	if v == "" {
		return nil
	}
	return &v
}
