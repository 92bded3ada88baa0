package stream

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitReassembles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		size int
		want int
	}{
		{text: "", size: 4, want: 0},
		{text: "abc", size: 4, want: 1},
		{text: "abcdefgh", size: 4, want: 2},
		{text: "ශ්‍රී ලංකා Telecom", size: 3, want: 0},
	}

	for _, tt := range tests {
		chunks := Split(tt.text, tt.size)
		if got := strings.Join(chunks, ""); got != tt.text {
			t.Fatalf("Split(%q) joined = %q", tt.text, got)
		}
		if tt.want > 0 && len(chunks) != tt.want {
			t.Fatalf("Split(%q, %d) len = %d, want %d", tt.text, tt.size, len(chunks), tt.want)
		}
		for _, c := range chunks {
			if !utf8.ValidString(c) {
				t.Fatalf("chunk %q is not valid UTF-8", c)
			}
		}
	}
}

func TestDeliverClosesAfterAllChunks(t *testing.T) {
	t.Parallel()

	text := "Successfully updated product SLT001: quantity is now 600."
	s := New(5)
	var sink Collector

	if err := s.Deliver(context.Background(), text, &sink); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("State() = %s, want CLOSED", s.State())
	}
	if sink.String() != text {
		t.Fatalf("collected = %q, want %q", sink.String(), text)
	}
	if s.Sent() != len(Split(text, 5)) {
		t.Fatalf("Sent() = %d", s.Sent())
	}
}

func TestDeliverAbortsOnSinkFailure(t *testing.T) {
	t.Parallel()

	broken := errors.New("connection reset")
	var received []string
	sink := SinkFunc(func(_ context.Context, chunk string) error {
		if len(received) == 2 {
			return broken
		}
		received = append(received, chunk)
		return nil
	})

	s := New(2)
	err := s.Deliver(context.Background(), "abcdefghij", sink)
	if !errors.Is(err, ErrAborted) || !errors.Is(err, broken) {
		t.Fatalf("Deliver() error = %v, want ErrAborted wrapping sink error", err)
	}
	if s.State() != StateAborted {
		t.Fatalf("State() = %s, want ABORTED", s.State())
	}
	if strings.Join(received, "") != "abcd" {
		t.Fatalf("received = %v", received)
	}
	if s.Sent() != 2 {
		t.Fatalf("Sent() = %d, want 2", s.Sent())
	}
}

func TestDeliverAbortsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	sink := SinkFunc(func(ctx context.Context, _ string) error {
		cancel()
		return ctx.Err()
	})

	s := New(1)
	if err := s.Deliver(ctx, "abc", sink); !errors.Is(err, ErrAborted) {
		t.Fatalf("Deliver() error = %v, want ErrAborted", err)
	}
	if s.State() != StateAborted {
		t.Fatalf("State() = %s, want ABORTED", s.State())
	}
}

func TestDeliverTwiceIsRejected(t *testing.T) {
	t.Parallel()

	s := New(4)
	if err := s.Deliver(context.Background(), "hello", &Collector{}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if err := s.Deliver(context.Background(), "again", &Collector{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Deliver() error = %v, want ErrInvalidTransition", err)
	}
}
