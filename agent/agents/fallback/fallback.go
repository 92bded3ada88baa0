package fallback

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	llmx "github.com/tanpawarit/chative-gateway/agent/llm"
	promptx "github.com/tanpawarit/chative-gateway/agent/prompt"
)

const (
	defaultTimeout = 10 * time.Second
	maxHistory     = 10
	staticLead     = "I couldn't match that to anything I can do."
)

type Option func(*Responder)

func WithTimeout(d time.Duration) Option {
	return func(r *Responder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// Responder answers messages the intent resolver could not match. Without a
// model it returns static help built from the known command examples; with a
// model it asks the model and falls back to the static text on any failure.
type Responder struct {
	runner   compose.Runnable[map[string]any, *schema.Message]
	examples []string
	timeout  time.Duration
}

func NewStatic(examples []string) *Responder {
	return &Responder{examples: examples, timeout: defaultTimeout}
}

func New(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	examples []string,
	opts ...Option,
) (*Responder, error) {
	r := NewStatic(examples)
	for _, opt := range opts {
		opt(r)
	}
	if chatModel == nil {
		return r, nil
	}

	runner, err := compileReplyGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	r.runner = runner
	return r, nil
}

// NewFromConfig builds the model-backed responder when cfg carries an API key
// and the static one otherwise.
func NewFromConfig(ctx context.Context, cfg llmx.Config, examples []string) (*Responder, error) {
	if !cfg.Enabled() {
		return NewStatic(examples), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	orCfg := cfg.OpenRouter()
	chatModel, err := orCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create fallback model: %v", contractx.ErrModelInvoke, err)
	}
	return New(ctx, chatModel, promptx.LoadPromptSet().Fallback, examples, WithTimeout(cfg.Timeout))
}

func (r *Responder) Respond(ctx context.Context, req contractx.FallbackRequest) (string, error) {
	static := r.static(req)
	if r.runner == nil {
		return static, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg, err := r.runner.Invoke(ctx, map[string]any{
		keyExamples: r.exampleList(),
		keyHistory:  toMessages(req.History, req.Text),
		keyMessage:  req.Text,
	})
	if err != nil {
		return static, fmt.Errorf("%w: fallback invoke: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		log.Debug().Msg("fallback model returned empty content")
		return static, nil
	}
	return strings.TrimSpace(msg.Content), nil
}

func (r *Responder) static(req contractx.FallbackRequest) string {
	if len(r.examples) == 0 {
		return strings.TrimSpace(staticLead + " " + req.Suggestion)
	}
	return staticLead + " Here is what I understand:\n" + r.exampleList()
}

func (r *Responder) exampleList() string {
	lines := make([]string, 0, len(r.examples))
	for _, ex := range r.examples {
		lines = append(lines, "- "+ex)
	}
	return strings.Join(lines, "\n")
}

// toMessages keeps the most recent turns. The template appends the current
// message itself, so a trailing copy of it is dropped.
func toMessages(history []contractx.Turn, current string) []*schema.Message {
	if n := len(history); n > 0 && history[n-1].Role == contractx.RoleUser &&
		strings.TrimSpace(history[n-1].Content) == current {
		history = history[:len(history)-1]
	}
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	out := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		switch turn.Role {
		case contractx.RoleAssistant:
			out = append(out, schema.AssistantMessage(content, nil))
		default:
			out = append(out, schema.UserMessage(content))
		}
	}
	return out
}
