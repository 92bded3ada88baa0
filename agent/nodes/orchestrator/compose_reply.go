package orchestratornode

import (
	"strings"

	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	storex "github.com/tanpawarit/chative-gateway/agent/store"
)

const (
	ActionNoMatch = "no_match"

	defaultNoMatchReply = "Sorry, I didn't understand that request."
	apologyPrefix       = "Sorry, I couldn't complete that. "
)

// ComposeReply renders tool results (or the fallback reply) into the chat
// response. Success is true only when every tool call succeeded.
func ComposeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, errNilState
	}

	if len(in.Results) == 0 {
		reply := in.FallbackReply
		if reply == "" {
			reply = strings.TrimSpace(defaultNoMatchReply + " " + in.Resolution.Suggestion)
		}
		return GraphOutput{Response: contractx.ChatResponse{
			Response:        reply,
			ActionPerformed: ActionNoMatch,
			Success:         false,
		}}, nil
	}

	var lines, actions []string
	var records []storex.Record
	success := true
	for _, r := range in.Results {
		actions = append(actions, r.Action)
		if !r.Success() {
			success = false
			lines = append(lines, apologyPrefix+r.Error)
			continue
		}
		msg := strings.TrimSpace(r.Message)
		if msg == "" {
			msg = "Done."
		}
		lines = append(lines, msg)
		records = append(records, r.Records...)
	}

	return GraphOutput{Response: contractx.ChatResponse{
		Response:        strings.Join(lines, "\n"),
		Products:        records,
		ActionPerformed: strings.Join(actions, ","),
		Success:         success,
	}}, nil
}
