package intent

import (
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	"github.com/tanpawarit/chative-gateway/agent/tool"
)

// Schema resolves a tool name to its definition.
type Schema interface {
	Lookup(name string) (tool.Definition, bool)
}

// Resolver tries recognizers in a fixed priority order; the first one that
// matches with well-typed captures wins.
type Resolver struct {
	recognizers []Recognizer
	schema      Schema
}

var _ contractx.Resolver = (*Resolver)(nil)

// NewResolver keeps only recognizers whose tool is registered in schema.
// With no recognizers the default set is used.
func NewResolver(schema Schema, recognizers ...Recognizer) *Resolver {
	if len(recognizers) == 0 {
		recognizers = DefaultRecognizers()
	}
	r := &Resolver{schema: schema}
	for _, rec := range recognizers {
		if rec == nil {
			continue
		}
		if schema != nil {
			if _, ok := schema.Lookup(rec.Tool()); !ok {
				continue
			}
		}
		r.recognizers = append(r.recognizers, rec)
	}
	return r
}

func (r *Resolver) Resolve(text string) contractx.Resolution {
	res := contractx.Resolution{Text: text}
	normalized := Normalize(text)
	if normalized == "" {
		res.Suggestion = r.suggestion()
		return res
	}

	for i, rec := range r.recognizers {
		cand, ok := rec.Recognize(normalized)
		if !ok || !r.wellTyped(cand) {
			continue
		}
		cand.Confidence = len(r.recognizers) - i
		res.Candidates = []contractx.IntentCandidate{cand}
		return res
	}

	res.Suggestion = r.suggestion()
	return res
}

// Examples lists one or more sample commands per recognizer, in priority order.
func (r *Resolver) Examples() []string {
	var out []string
	for _, rec := range r.recognizers {
		out = append(out, rec.Examples()...)
	}
	return out
}

func (r *Resolver) wellTyped(cand contractx.IntentCandidate) bool {
	if r.schema == nil {
		return true
	}
	def, ok := r.schema.Lookup(cand.Tool)
	if !ok {
		return false
	}
	for name, raw := range cand.RawCaptures {
		p, ok := def.Param(name)
		if !ok || p.Type != tool.TypeInteger {
			continue
		}
		if _, err := strconv.Atoi(raw); err != nil {
			return false
		}
	}
	return true
}

func (r *Resolver) suggestion() string {
	examples := r.Examples()
	if len(examples) == 0 {
		return "I could not understand that request."
	}
	if len(examples) > 4 {
		examples = examples[:4]
	}
	return "Try something like: " + strings.Join(quoteAll(examples), ", ") + "."
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strconv.Quote(s)
	}
	return out
}
