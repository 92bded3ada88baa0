package orchestratornode

import (
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
)

// ResolveIntent runs the resolver and turns its candidates into tool
// requests. A no-match leaves Requests empty.
func ResolveIntent(in *GraphState, resolver contractx.Resolver) (*GraphState, error) {
	if in == nil {
		return nil, errNilState
	}

	in.Resolution = resolver.Resolve(in.Text)
	in.Requests = in.Requests[:0]
	for _, cand := range in.Resolution.Candidates {
		in.Requests = append(in.Requests, cand.Request())
	}
	return in, nil
}
