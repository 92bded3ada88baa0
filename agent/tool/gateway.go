package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	storex "github.com/tanpawarit/chative-gateway/agent/store"
)

const DefaultRemoteTimeout = 25 * time.Second

// GatewayOption customizes Gateway.
type GatewayOption func(*Gateway)

func WithRemoteTimeout(timeout time.Duration) GatewayOption {
	return func(g *Gateway) {
		if timeout > 0 {
			g.remoteTimeout = timeout
		}
	}
}

func WithAlerter(alerter contractx.Alerter) GatewayOption {
	return func(g *Gateway) {
		if alerter != nil {
			g.alerter = alerter
		}
	}
}

func WithAuditSink(sink contractx.AuditSink) GatewayOption {
	return func(g *Gateway) {
		if sink != nil {
			g.audit = sink
		}
	}
}

// Gateway validates tool requests against the registry and runs them on the
// owning provider. Every failure comes back as a ToolResult.
type Gateway struct {
	registry      *Registry
	remoteTimeout time.Duration
	alerter       contractx.Alerter
	audit         contractx.AuditSink
	now           func() time.Time
}

var _ contractx.ToolGateway = (*Gateway)(nil)

func NewGateway(registry *Registry, opts ...GatewayOption) (*Gateway, error) {
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	g := &Gateway{
		registry:      registry,
		remoteTimeout: DefaultRemoteTimeout,
		alerter:       noopAlerter{},
		audit:         noopAudit{},
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Execute runs reqs in order and returns one result per request.
func (g *Gateway) Execute(ctx context.Context, reqs []contractx.ToolRequest) []contractx.ToolResult {
	out := make([]contractx.ToolResult, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, g.execute(ctx, req))
	}
	return out
}

func (g *Gateway) execute(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	started := g.now()

	def, ok := g.registry.Lookup(req.Tool)
	if !ok {
		err := fmt.Errorf("%w: %s", contractx.ErrToolNotFound, req.Tool)
		return g.finish(ctx, req, Definition{Name: req.Tool}, Outcome{}, err, started)
	}

	args, err := Validate(def, req.Args)
	if err != nil {
		return g.finish(ctx, req, def, Outcome{}, err, started)
	}

	outcome, err := g.invoke(ctx, def, args)
	return g.finish(ctx, req, def, outcome, err, started)
}

func (g *Gateway) invoke(ctx context.Context, def Definition, args Args) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("tool", def.Name).
				Interface("panic", r).
				Msg("tool handler panicked")
			outcome = Outcome{}
			err = fmt.Errorf("tool %s panicked: %v", def.Name, r)
		}
	}()

	if def.Provider.Kind != ProviderRemote {
		// Local mutations must complete even if the caller goes away.
		return def.Handler(context.WithoutCancel(ctx), args)
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = g.remoteTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err = def.Handler(callCtx, args)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, contractx.ErrProviderUnavailable) {
		err = fmt.Errorf("%w: %s timed out after %s: %w", contractx.ErrProviderUnavailable, def.Provider.Service, timeout, err)
	}
	return outcome, err
}

func (g *Gateway) finish(
	ctx context.Context,
	req contractx.ToolRequest,
	def Definition,
	outcome Outcome,
	err error,
	started time.Time,
) contractx.ToolResult {
	result := contractx.ToolResult{
		Tool:     def.Name,
		Action:   def.Action,
		Provider: def.Provider.String(),
		Message:  outcome.Message,
		Records:  outcome.Records,
		Data:     outcome.Data,
	}
	if result.Action == "" {
		result.Action = def.Name
	}

	if err != nil {
		result.Message = ""
		result.Records = nil
		result.Data = nil
		result.Error = userMessage(def, err)
		result.ErrorKind = contractx.KindOf(err)
		g.report(ctx, def, err, result.ErrorKind)
	}

	g.audit.Record(contractx.AuditEntry{
		ID:        uuid.NewString(),
		Tool:      req.Tool,
		Provider:  result.Provider,
		Args:      req.Args,
		Success:   result.Success(),
		ErrorKind: result.ErrorKind,
		Error:     result.Error,
		Duration:  g.now().Sub(started),
		At:        started.UTC(),
	})
	return result
}

func (g *Gateway) report(ctx context.Context, def Definition, err error, kind contractx.ErrorKind) {
	event := log.Warn()
	if kind == contractx.KindStorageIO || kind == contractx.KindInternal {
		event = log.Error()
	}
	event.Err(err).
		Str("tool", def.Name).
		Str("provider", def.Provider.String()).
		Str("error_kind", string(kind)).
		Msg("tool call failed")

	if storex.IsIrrecoverable(err) {
		g.alerter.Escalate(ctx, err, map[string]string{
			"tool":       def.Name,
			"error_kind": string(kind),
		})
	}
}

// userMessage renders err as text a chat user can act on.
func userMessage(def Definition, err error) string {
	var (
		userErr  *contractx.UserError
		fieldErr *contractx.FieldError
		remote   *contractx.RemoteError
	)
	switch {
	case errors.As(err, &userErr):
		return userErr.Message
	case errors.As(err, &fieldErr):
		if fieldErr.Reason == "is required" {
			return fmt.Sprintf("Missing required field: %s.", fieldErr.Field)
		}
		return fmt.Sprintf("Invalid value for %s: %s.", fieldErr.Field, fieldErr.Reason)
	case errors.Is(err, storex.ErrInvalidRecord):
		return "The product details are invalid: quantity must not be negative and id and name are required."
	case errors.Is(err, contractx.ErrToolNotFound):
		return fmt.Sprintf("The tool %q is not available.", def.Name)
	case errors.Is(err, contractx.ErrProviderUnavailable):
		return fmt.Sprintf("The %s service is unavailable right now. Please try again later.", def.Provider.Service)
	case errors.Is(err, storex.ErrStorageIO):
		return "The change could not be saved, so nothing was modified."
	case errors.As(err, &remote):
		return remote.Message
	default:
		return fmt.Sprintf("Something went wrong while running %s.", def.Name)
	}
}

type noopAlerter struct{}

func (noopAlerter) Escalate(context.Context, error, map[string]string) {}

type noopAudit struct{}

func (noopAudit) Record(contractx.AuditEntry) {}
