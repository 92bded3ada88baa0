package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscalateWithoutDSNOnlyLogs(t *testing.T) {
	t.Parallel()

	a, err := New(Config{})
	require.NoError(t, err)
	assert.Nil(t, a.hub)

	a.Escalate(context.Background(), errors.New("disk full"), map[string]string{"tool": "create_product"})
	a.Flush()
}

func TestEscalateCapturesTaggedEvent(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	a, err := newAlerter(sentry.ClientOptions{
		Dsn: "https://public@sentry.example.com/1",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
			return nil
		},
	}, time.Second)
	require.NoError(t, err)

	a.Escalate(context.Background(), errors.New("read-only file system"), map[string]string{
		"tool":     "update_product",
		"provider": "local",
	})
	a.Escalate(context.Background(), nil, nil)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, sentry.LevelFatal, events[0].Level)
	assert.Equal(t, "update_product", events[0].Tags["tool"])
	assert.Equal(t, "local", events[0].Tags["provider"])
}
