// Package tts is the text-to-speech boundary. Synthesizers never fail the
// turn: a failure yields nil audio and the caller skips playback.
package tts

import (
	"context"
	"regexp"
	"strings"
)

// Synthesizer converts reply text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) []byte
}

var (
	markdownLink = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	htmlTag      = regexp.MustCompile(`<[^>]*>`)
	spaces       = regexp.MustCompile(`[ \t]+`)
)

// SpeechText prepares reply text for synthesis: markdown links are reduced
// to their label, HTML tags and asterisks are removed.
func SpeechText(text string) string {
	text = markdownLink.ReplaceAllString(text, "$1")
	text = htmlTag.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "*", "")
	text = spaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
