package orchestratornode

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
)

// DispatchTools executes the resolved requests, or asks the fallback for a
// reply when nothing was resolved.
func DispatchTools(
	ctx context.Context,
	in *GraphState,
	tools contractx.ToolGateway,
	fallback contractx.FallbackResponder,
) (*GraphState, error) {
	if in == nil {
		return nil, errNilState
	}

	if len(in.Requests) > 0 {
		in.Results = tools.Execute(ctx, in.Requests)
		return in, nil
	}

	reply, err := fallback.Respond(ctx, contractx.FallbackRequest{
		Text:       in.Text,
		History:    in.Request.Messages,
		Suggestion: in.Resolution.Suggestion,
	})
	if err != nil {
		log.Warn().Err(err).Msg("fallback responder failed")
	}
	in.FallbackReply = strings.TrimSpace(reply)
	return in, nil
}
