package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
)

const (
	DriverNone     = "none"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver        string        `split_words:"true" default:"bolt"`
	Path          string        `split_words:"true" default:"data/audit.bolt"`
	DSN           string        `envconfig:"DSN"`
	Buffer        int           `split_words:"true" default:"256"`
	FlushInterval time.Duration `split_words:"true" default:"1s"`
	BatchSize     int           `split_words:"true" default:"64"`
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", DriverNone, DriverBolt, DriverPostgres:
	default:
		return fmt.Errorf("unknown audit driver %q", c.Driver)
	}
	if strings.EqualFold(c.Driver, DriverPostgres) && strings.TrimSpace(c.DSN) == "" {
		return errors.New("audit dsn is required for the postgres driver")
	}
	return nil
}

// Journal persists batches of dispatch entries.
type Journal interface {
	Write(ctx context.Context, entries []contractx.AuditEntry) error
	Close() error
}

// Open builds the journal selected by cfg. A nil journal means auditing is off.
func Open(ctx context.Context, cfg Config) (Journal, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverNone:
		return nil, nil
	case DriverBolt:
		j, err := OpenBolt(cfg.Path)
		if err != nil {
			return nil, err
		}
		return j, nil
	case DriverPostgres:
		j, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
	}
}

// Recorder is an asynchronous contract.AuditSink. Record never blocks the
// dispatch path: when the buffer is full the entry is dropped and counted.
type Recorder struct {
	journal   Journal
	entries   chan contractx.AuditEntry
	batchSize int
	interval  time.Duration

	dropped   atomic.Int64
	closeOnce sync.Once
	done      chan struct{}
}

func NewRecorder(journal Journal, cfg Config) *Recorder {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 256
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}

	r := &Recorder{
		journal:   journal,
		entries:   make(chan contractx.AuditEntry, buffer),
		batchSize: batch,
		interval:  interval,
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) Record(entry contractx.AuditEntry) {
	select {
	case r.entries <- entry:
	default:
		n := r.dropped.Add(1)
		log.Warn().Str("tool", entry.Tool).Int64("dropped_total", n).Msg("audit buffer full, entry dropped")
	}
}

func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains buffered entries, then closes the journal. Record must not be
// called after Close.
func (r *Recorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.entries)
		<-r.done
		err = r.journal.Close()
	})
	return err
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	batch := make([]contractx.AuditEntry, 0, r.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.journal.Write(ctx, batch); err != nil {
			log.Error().Err(err).Int("entries", len(batch)).Msg("audit write failed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-r.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
