package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	nodex "github.com/tanpawarit/chative-gateway/agent/nodes/orchestrator"
	"github.com/tanpawarit/chative-gateway/agent/stream"
)

var ErrInvalidMessage = nodex.ErrInvalidMessage

const (
	emptyMessageReply = "Please type a message so I can help you."
	internalReply     = "Sorry, something went wrong while handling your request. Please try again."
)

// ResponseSink is a stream.Sink that is told the final response before the
// first chunk, so transports can send metadata ahead of the text.
type ResponseSink interface {
	stream.Sink
	Begin(resp contractx.ChatResponse)
}

type Config struct {
	ChunkSize int
}

// Orchestrator is stateless across turns: everything it needs arrives with
// the request or lives behind the injected collaborators.
type Orchestrator struct {
	resolver contractx.Resolver
	tools    contractx.ToolGateway
	fallback contractx.FallbackResponder

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	chunkSize int
	now       func() time.Time
}

func New(
	resolver contractx.Resolver,
	tools contractx.ToolGateway,
	fallback contractx.FallbackResponder,
	cfg Config,
) (*Orchestrator, error) {
	if resolver == nil {
		return nil, errors.New("intent resolver is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}
	if fallback == nil {
		fallback = suggestionFallback{}
	}

	o := &Orchestrator{
		resolver:  resolver,
		tools:     tools,
		fallback:  fallback,
		chunkSize: cfg.ChunkSize,
		now:       time.Now,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage always returns a well-formed response. A non-nil error is
// informational; the response already carries text for the caller.
func (o *Orchestrator) HandleMessage(ctx context.Context, req contractx.ChatRequest) (contractx.ChatResponse, error) {
	if req.Text() == "" {
		return contractx.ChatResponse{Response: emptyMessageReply, Success: false}, ErrInvalidMessage
	}

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{Request: req})
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("handle message failed")
		return contractx.ChatResponse{Response: internalReply, Success: false}, err
	}
	return out.Response, nil
}

// StreamMessage computes the full response, then delivers its text to sink in
// chunks. The returned response is authoritative only when the error is nil.
func (o *Orchestrator) StreamMessage(
	ctx context.Context,
	req contractx.ChatRequest,
	sink stream.Sink,
) (contractx.ChatResponse, error) {
	resp, err := o.HandleMessage(ctx, req)
	if err != nil && !errors.Is(err, ErrInvalidMessage) {
		log.Debug().Err(err).Msg("streaming failure response")
	}

	if rs, ok := sink.(ResponseSink); ok {
		rs.Begin(resp)
	}

	s := stream.New(o.chunkSize)
	if derr := s.Deliver(ctx, resp.Response, sink); derr != nil {
		log.Info().
			Err(derr).
			Int("chunks_sent", s.Sent()).
			Str("state", s.State().String()).
			Msg("stream aborted")
		return resp, derr
	}
	return resp, nil
}

type suggestionFallback struct{}

func (suggestionFallback) Respond(_ context.Context, req contractx.FallbackRequest) (string, error) {
	return strings.TrimSpace("I'm not sure how to help with that. " + req.Suggestion), nil
}
