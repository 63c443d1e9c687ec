package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"
)

// MaxContentLength is the maximum post length in runes.
const MaxContentLength = 288

// ValidateContent checks that content is 1 to 288 runes of emoji and nothing
// else. It returns nil when the content is admissible.
//
// The check is grapheme-cluster based so that composed sequences (skin
// tones, flags, keycaps, ZWJ families) count as the single emoji the user
// typed rather than as their component code points.
func ValidateContent(content string) *ValidationError {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Reason: ReasonEmpty}
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return &ValidationError{Reason: ReasonTooLong}
	}

	gr := uniseg.NewGraphemes(content)
	for gr.Next() {
		if !gomoji.ContainsEmoji(gr.Str()) {
			return &ValidationError{Reason: ReasonNotEmoji}
		}
	}
	return nil
}
