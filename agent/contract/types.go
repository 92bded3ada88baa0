package contract

import (
	"encoding/json"
	"strings"
	"time"

	storex "github.com/tanpawarit/chative-gateway/agent/store"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id,omitempty"`
	Messages []Turn `json:"messages,omitempty"`
}

// Text returns the message to act on: the explicit message, else the last
// user turn in the history.
func (r ChatRequest) Text() string {
	if text := strings.TrimSpace(r.Message); text != "" {
		return text
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return strings.TrimSpace(r.Messages[i].Content)
		}
	}
	return ""
}

type ChatResponse struct {
	Response        string          `json:"response"`
	Products        []storex.Record `json:"products,omitempty"`
	ActionPerformed string          `json:"action_performed,omitempty"`
	Success         bool            `json:"success"`
}

// ChatResult is ChatResponse without the text, carried beside a streamed body.
type ChatResult struct {
	Products        []storex.Record `json:"products,omitempty"`
	ActionPerformed string          `json:"action_performed,omitempty"`
	Success         bool            `json:"success"`
}

func (r ChatResponse) Result() ChatResult {
	return ChatResult{
		Products:        r.Products,
		ActionPerformed: r.ActionPerformed,
		Success:         r.Success,
	}
}

type IntentCandidate struct {
	Tool        string            `json:"tool"`
	RawCaptures map[string]string `json:"raw_captures,omitempty"`
	Confidence  int               `json:"confidence"`
}

// Resolution is the resolver's verdict for one message. An empty Candidates
// slice is a no-match; Suggestion then carries a clarification hint.
type Resolution struct {
	Text       string            `json:"text"`
	Candidates []IntentCandidate `json:"candidates,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
}

func (r Resolution) NoMatch() bool {
	return len(r.Candidates) == 0
}

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

func (c IntentCandidate) Request() ToolRequest {
	args := make(map[string]any, len(c.RawCaptures))
	for k, v := range c.RawCaptures {
		args[k] = v
	}
	return ToolRequest{Tool: c.Tool, Args: args}
}

type ToolResult struct {
	Tool      string          `json:"tool"`
	Action    string          `json:"action,omitempty"`
	Provider  string          `json:"provider,omitempty"`
	Message   string          `json:"message,omitempty"`
	Records   []storex.Record `json:"records,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind ErrorKind       `json:"error_kind,omitempty"`
}

func (r ToolResult) Success() bool {
	return r.Error == ""
}

type FallbackRequest struct {
	Text       string `json:"text"`
	History    []Turn `json:"history,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type RemoteResult struct {
	Text       string          `json:"text"`
	Structured json.RawMessage `json:"structured,omitempty"`
}

// AuditEntry records one dispatched tool call.
type AuditEntry struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Provider  string         `json:"provider"`
	Args      map[string]any `json:"args,omitempty"`
	Success   bool           `json:"success"`
	ErrorKind ErrorKind      `json:"error_kind,omitempty"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration"`
	At        time.Time      `json:"at"`
}
