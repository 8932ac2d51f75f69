package dialogue

import (
	"strings"
	"unicode"

	"github.com/lukasbauer/sahayak/internal/stt"
)

// rule is one deterministic classification rule. Rules are evaluated in
// table order and the first match wins; the fallback classifier only sees
// utterances no rule claimed.
type rule struct {
	name   string
	intent Intent
	// stage restricts the rule to one stage. Empty means any stage.
	stage Stage
	match func(norm string) bool
}

var rules = []rule{
	{name: "null_input", intent: IntentNullInput, match: isNullInput},
	{name: "greeting", intent: IntentGreeting, stage: StageIntro, match: isGreeting},
	{name: "deny", intent: IntentDeny, match: isDenial},
}

// fillerPhrases are transcriptions that carry no content. "..." is the
// placeholder the shell substitutes for empty or failed transcription.
var fillerPhrases = map[string]bool{
	"":              true,
	".":             true,
	"..":            true,
	"...":           true,
	"…":             true,
	"।":             true,
	"hmm":           true,
	"umm":           true,
	"हम्म":          true,
	"उम्म":          true,
	stt.ErrorMarker: true,
}

var greetingTokens = []string{
	"hi", "hello", "hey", "hii", "helo",
	"namaste", "namaskar", "namaskaar", "pranam", "ram ram",
	"नमस्ते", "नमस्कार", "प्रणाम", "राम राम", "हेलो", "हैलो", "हाय", "हलो",
}

var denialTokens = map[string]bool{
	"no": true, "nope": true, "nah": true,
	"nahi": true, "nahin": true, "nai": true, "na": true,
	"नहीं": true, "नही": true, "ना": true, "नहीं जी": true, "जी नहीं": true,
	"नहीं चाहिए": true, "मत करो": true, "nahi chahiye": true,
}

// normalize lowercases, trims whitespace, and trims surrounding punctuation
// (including the Devanagari danda).
func normalize(utterance string) string {
	s := strings.ToLower(strings.TrimSpace(utterance))
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || r == '।' || r == '॥'
	})
}

func isNullInput(norm string) bool {
	return fillerPhrases[norm]
}

// isGreeting matches a bare greeting token, or a token followed by a space and
// more words. A greeting that carries a number ("नमस्ते मेरी उम्र 30 है") is
// left for the fallback so the figure is not lost.
func isGreeting(norm string) bool {
	for _, tok := range greetingTokens {
		if norm == tok {
			return true
		}
		if strings.HasPrefix(norm, tok+" ") && !hasDigit(norm) {
			return true
		}
	}
	return false
}

func isDenial(norm string) bool {
	return denialTokens[norm]
}

// matchRules returns the intent of the first matching rule for the stage.
func matchRules(utterance string, stage Stage) (Intent, string, bool) {
	raw := strings.TrimSpace(utterance)
	norm := normalize(utterance)
	for _, r := range rules {
		if r.stage != "" && r.stage != stage {
			continue
		}
		// Punctuation-only placeholders normalize to "", so the null rule
		// also checks the raw trimmed text.
		if r.match(norm) || (r.intent == IntentNullInput && r.match(raw)) {
			return r.intent, r.name, true
		}
	}
	return "", "", false
}

// hasDigit reports whether s contains a digit in any script.
func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
