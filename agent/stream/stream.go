package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

const DefaultChunkSize = 24

var (
	ErrAborted           = errors.New("stream aborted")
	ErrInvalidTransition = errors.New("invalid stream state transition")
)

type State int

const (
	StateOpen State = iota
	StateStreaming
	StateClosed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateStreaming:
		return "STREAMING"
	case StateClosed:
		return "CLOSED"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sink is the transport side of a stream. WriteChunk must deliver the chunk
// or return an error; a returned error aborts the stream.
type Sink interface {
	WriteChunk(ctx context.Context, chunk string) error
}

type SinkFunc func(ctx context.Context, chunk string) error

func (f SinkFunc) WriteChunk(ctx context.Context, chunk string) error {
	return f(ctx, chunk)
}

// Stream carries one response from the orchestrator to the transport. The
// producer side splits text into chunks and hands them over an unbuffered
// channel; the consumer side writes them to the sink in order.
type Stream struct {
	mu        sync.Mutex
	state     State
	chunkSize int
	sent      int
}

func New(chunkSize int) *Stream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Stream{state: StateOpen, chunkSize: chunkSize}
}

func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sent is the number of chunks the sink accepted.
func (s *Stream) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Deliver streams text to sink. It may be called once. When the sink fails or
// ctx ends before the last chunk, the stream moves to ABORTED and no further
// chunks are produced.
func (s *Stream) Deliver(ctx context.Context, text string, sink Sink) error {
	if err := s.transition(StateOpen, StateStreaming); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan string)
	go func() {
		defer close(chunks)
		for _, c := range Split(text, s.chunkSize) {
			select {
			case chunks <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	for c := range chunks {
		if err := sink.WriteChunk(ctx, c); err != nil {
			cancel()
			s.finish(StateAborted)
			return fmt.Errorf("%w: %w", ErrAborted, err)
		}
		s.mu.Lock()
		s.sent++
		s.mu.Unlock()
	}

	if err := ctx.Err(); err != nil {
		s.finish(StateAborted)
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	s.finish(StateClosed)
	return nil
}

func (s *Stream) transition(from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	return nil
}

func (s *Stream) finish(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStreaming {
		s.state = to
	}
}

// Split cuts text into pieces of at most size runes. Concatenating the pieces
// yields text. Empty text yields no pieces.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if text == "" {
		return nil
	}

	out := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	var b strings.Builder
	n := 0
	for _, r := range text {
		b.WriteRune(r)
		n++
		if n == size {
			out = append(out, b.String())
			b.Reset()
			n = 0
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// Collector is a Sink that buffers everything it receives.
type Collector struct {
	mu     sync.Mutex
	chunks []string
}

func (c *Collector) WriteChunk(_ context.Context, chunk string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, chunk)
	return nil
}

func (c *Collector) Chunks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.chunks))
	copy(out, c.chunks)
	return out
}

func (c *Collector) String() string {
	return strings.Join(c.Chunks(), "")
}
