package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DSN          string        `envconfig:"DSN"`
	Environment  string        `split_words:"true" default:"development"`
	Release      string        `split_words:"true"`
	FlushTimeout time.Duration `split_words:"true" default:"2s"`
}

// Alerter escalates process-level faults. Every escalation is logged; it is
// also sent to Sentry when a DSN is configured.
type Alerter struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

func New(cfg Config) (*Alerter, error) {
	if cfg.DSN == "" {
		return &Alerter{flushTimeout: cfg.FlushTimeout}, nil
	}
	return newAlerter(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	}, cfg.FlushTimeout)
}

func newAlerter(opts sentry.ClientOptions, flushTimeout time.Duration) (*Alerter, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("alert: create sentry client: %w", err)
	}
	return &Alerter{
		hub:          sentry.NewHub(client, sentry.NewScope()),
		flushTimeout: flushTimeout,
	}, nil
}

func (a *Alerter) Escalate(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}

	ev := log.Ctx(ctx).Error().Err(err)
	for k, v := range tags {
		ev = ev.Str(k, v)
	}
	ev.Msg("escalating irrecoverable fault")

	if a.hub == nil {
		return
	}
	a.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
		scope.SetTags(tags)
		a.hub.CaptureException(err)
	})
}

// Flush waits for queued events; call it before the process exits.
func (a *Alerter) Flush() {
	if a.hub == nil {
		return
	}
	if !a.hub.Flush(a.flushTimeout) {
		log.Warn().Dur("timeout", a.flushTimeout).Msg("sentry flush timed out")
	}
}
