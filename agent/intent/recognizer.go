package intent

import (
	"regexp"
	"strings"

	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
)

// Recognizer proposes a candidate for one tool from normalized text.
type Recognizer interface {
	Tool() string
	Recognize(text string) (contractx.IntentCandidate, bool)
	Examples() []string
}

// PatternRecognizer owns one tool and an ordered set of patterns with named
// capture groups. Patterns must match the whole input.
type PatternRecognizer struct {
	tool     string
	patterns []*regexp.Regexp
	examples []string
	upper    map[string]bool
}

// NewPatternRecognizer compiles each pattern case-insensitively and anchored
// at both ends. Captures named in upper are upper-cased.
func NewPatternRecognizer(tool string, patterns []string, examples []string, upper ...string) *PatternRecognizer {
	r := &PatternRecognizer{
		tool:     tool,
		examples: examples,
		upper:    map[string]bool{},
	}
	for _, p := range patterns {
		r.patterns = append(r.patterns, regexp.MustCompile(`(?i)^(?:`+p+`)$`))
	}
	for _, name := range upper {
		r.upper[name] = true
	}
	return r
}

func (r *PatternRecognizer) Tool() string {
	return r.tool
}

func (r *PatternRecognizer) Examples() []string {
	return r.examples
}

func (r *PatternRecognizer) Recognize(text string) (contractx.IntentCandidate, bool) {
	for _, re := range r.patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		captures := map[string]string{}
		for i, name := range re.SubexpNames() {
			if name == "" || i >= len(m) {
				continue
			}
			v := strings.TrimSpace(m[i])
			if v == "" {
				continue
			}
			if r.upper[name] {
				v = strings.ToUpper(v)
			}
			captures[name] = v
		}
		return contractx.IntentCandidate{Tool: r.tool, RawCaptures: captures}, true
	}
	return contractx.IntentCandidate{}, false
}

var (
	quoteChars     = strings.NewReplacer(`"`, "", "'", "", "“", "", "”", "", "‘", "", "’", "")
	sentencePunct  = regexp.MustCompile(`[,!?;:]+`)
	trailingPeriod = regexp.MustCompile(`\.+(\s|$)`)
	spaces         = regexp.MustCompile(`\s+`)
)

// Normalize strips sentence punctuation and collapses whitespace. Case is
// preserved so captured names keep their spelling; matching is case-insensitive.
func Normalize(text string) string {
	text = quoteChars.Replace(text)
	text = sentencePunct.ReplaceAllString(text, "")
	text = trailingPeriod.ReplaceAllString(text, "$1")
	text = spaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
