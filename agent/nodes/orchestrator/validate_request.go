package orchestratornode

import (
	"errors"
	"time"

	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
)

var ErrInvalidMessage = contractx.ErrInvalidMessage

type GraphInput struct {
	Request contractx.ChatRequest
}

type GraphOutput struct {
	Response contractx.ChatResponse
}

type GraphState struct {
	Request contractx.ChatRequest
	Text    string
	Now     time.Time

	Resolution contractx.Resolution
	Requests   []contractx.ToolRequest
	Results    []contractx.ToolResult

	FallbackReply string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	text := in.Request.Text()
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		Request: in.Request,
		Text:    text,
		Now:     nowFn().UTC(),
	}, nil
}

var errNilState = errors.New("graph state is nil")
