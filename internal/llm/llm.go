// Package llm provides fallback intent classifiers backed by hosted language
// models. Both clients implement dialogue.Fallback.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/lukasbauer/sahayak/internal/dialogue"
)

// classification is the JSON object the model is asked to return.
type classification struct {
	Intent     string  `json:"intent"`
	Age        flexInt `json:"age"`
	Income     flexInt `json:"income"`
	SchemeName *string `json:"scheme_name"`
}

// flexInt decodes a JSON number or a numeric string (ASCII or Devanagari
// digits, optional thousands separators). null leaves it unset.
type flexInt struct {
	v *int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		f.v = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, ok := parseNumber(s)
		if !ok {
			// Words like "unknown" mean the model did not find a value.
			f.v = nil
			return nil
		}
		f.v = &n
		return nil
	}
	var x float64
	if err := json.Unmarshal(data, &x); err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	n, ok := roundInt(x)
	if !ok {
		// Out of range; treat as not found.
		f.v = nil
		return nil
	}
	f.v = &n
	return nil
}

// roundInt rounds x to the nearest int. It fails for NaN and values an int
// cannot hold.
func roundInt(x float64) (int, bool) {
	x = math.Round(x)
	if math.IsNaN(x) || x >= math.MaxInt || x < math.MinInt {
		return 0, false
	}
	return int(x), true
}

// numberUnits are the Indian counting words a spoken amount may end with.
var numberUnits = []struct {
	prefix string
	scale  float64
}{
	{"करोड़", 1e7}, {"करोड", 1e7}, {"crore", 1e7},
	{"लाख", 1e5}, {"lakh", 1e5}, {"lac", 1e5},
	{"हज़ार", 1e3}, {"हजार", 1e3}, {"hazar", 1e3}, {"hajar", 1e3}, {"thousand", 1e3},
}

func unitScale(rest string) float64 {
	rest = strings.ToLower(strings.TrimSpace(rest))
	for _, u := range numberUnits {
		if strings.HasPrefix(rest, u.prefix) {
			return u.scale
		}
	}
	return 1
}

// parseNumber reads an integer from s, accepting Devanagari digits and
// ignoring separators and currency marks. A trailing लाख, हज़ार or करोड़
// (or the romanized forms) scales the value; any other trailing word is
// ignored and the fractional part dropped.
func parseNumber(s string) (int, bool) {
	var whole, frac strings.Builder
	neg, inFrac := false, false
	rest := ""
scan:
	for i, r := range s {
		d := rune(-1)
		switch {
		case r >= '0' && r <= '9':
			d = r
		case r >= '०' && r <= '९':
			d = '0' + (r - '०')
		}
		switch {
		case d >= 0 && inFrac:
			frac.WriteRune(d)
		case d >= 0:
			whole.WriteRune(d)
		case r == '.' && whole.Len() > 0 && !inFrac:
			inFrac = true
		case r == ',' || r == '₹' || unicode.IsSpace(r):
		case r == '-' && whole.Len() == 0:
			neg = true
		default:
			if whole.Len() > 0 {
				rest = s[i:]
				break scan
			}
		}
	}
	if whole.Len() == 0 {
		return 0, false
	}

	scale := unitScale(rest)
	if scale == 1 {
		n, err := strconv.Atoi(whole.String())
		if err != nil {
			return 0, false
		}
		if neg {
			n = -n
		}
		return n, true
	}

	num := whole.String()
	if frac.Len() > 0 {
		num += "." + frac.String()
	}
	x, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		x = -x
	}
	return roundInt(x * scale)
}

// stripCodeFence removes a surrounding markdown code block, if any.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// parseResult converts model output to a FallbackResult. Output that is not
// the expected JSON object is reported as dialogue.ErrFallbackMalformed.
func parseResult(content string) (dialogue.FallbackResult, error) {
	content = stripCodeFence(content)
	var c classification
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return dialogue.FallbackResult{}, fmt.Errorf("%w: %v (content: %s)", dialogue.ErrFallbackMalformed, err, content)
	}
	intent := dialogue.Intent(strings.ToLower(strings.TrimSpace(c.Intent)))
	// A named scheme can stand in for the label; the classifier resolves it.
	if intent == "" && (c.SchemeName == nil || strings.TrimSpace(*c.SchemeName) == "") {
		return dialogue.FallbackResult{}, fmt.Errorf("%w: missing intent (content: %s)", dialogue.ErrFallbackMalformed, content)
	}
	res := dialogue.FallbackResult{Intent: intent, Age: c.Age.v, Income: c.Income.v}
	if c.SchemeName != nil {
		res.SchemeName = strings.TrimSpace(*c.SchemeName)
	}
	return res, nil
}
