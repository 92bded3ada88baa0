package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const DefaultEntityName = "products"

// Store is the record persistence contract used by the tool layer.
type Store interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Update(ctx context.Context, id string, patch Patch) (Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
	Search(ctx context.Context, term string) ([]Record, error)
}

// Option customizes JSONFileStore.
type Option func(*JSONFileStore)

func WithEntityName(name string) Option {
	return func(s *JSONFileStore) {
		trimmed := strings.TrimSpace(name)
		if trimmed != "" {
			s.entity = trimmed
		}
	}
}

// WithSeed initialises a missing data file with the given records.
func WithSeed(records []Record) Option {
	return func(s *JSONFileStore) {
		s.seed = records
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *JSONFileStore) {
		if now != nil {
			s.now = now
		}
	}
}

// JSONFileStore keeps the whole collection in memory and rewrites the backing
// file on every mutation. A mutation is applied to a copy, flushed, and only
// then swapped in, so a failed flush leaves memory and disk in agreement.
type JSONFileStore struct {
	mu     sync.RWMutex
	state  collection
	path   string
	entity string
	seed   []Record
	now    func() time.Time
}

var _ Store = (*JSONFileStore)(nil)

type collection struct {
	byID  map[string]Record
	order []string
}

func (c collection) clone() collection {
	cp := collection{
		byID:  make(map[string]Record, len(c.byID)),
		order: make([]string, len(c.order)),
	}
	copy(cp.order, c.order)
	for id, rec := range c.byID {
		cp.byID[id] = rec.clone()
	}
	return cp
}

func (c collection) records() []Record {
	out := make([]Record, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].clone())
	}
	return out
}

// Open loads path into memory. A missing file starts empty, or seeded when
// WithSeed was given. An unreadable or malformed file is an error.
func Open(path string, opts ...Option) (*JSONFileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("data file path is required")
	}

	s := &JSONFileStore{
		state:  collection{byID: map[string]Record{}},
		path:   path,
		entity: DefaultEntityName,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if len(s.seed) == 0 {
			return s, nil
		}
		next := collection{byID: map[string]Record{}}
		for _, rec := range s.seed {
			if err := next.insert(rec); err != nil {
				return nil, fmt.Errorf("seed record %q: %w", rec.ID, err)
			}
		}
		if err := s.flush(next); err != nil {
			return nil, err
		}
		s.state = next
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read data file: %w", err)
	}

	loaded, err := s.decode(raw)
	if err != nil {
		return nil, err
	}
	s.state = loaded
	return s, nil
}

func (s *JSONFileStore) Path() string {
	return s.path
}

func (s *JSONFileStore) Create(_ context.Context, rec Record) (Record, error) {
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	rec.UpdatedAt = nil

	var created Record
	err := s.commit(func(next *collection) error {
		if err := next.insert(rec); err != nil {
			return err
		}
		created = next.byID[rec.ID].clone()
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return created, nil
}

func (s *JSONFileStore) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.state.byID[strings.TrimSpace(id)]
	if !ok {
		return Record{}, fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}
	return rec.clone(), nil
}

// Update merges patch into the record. Quantity deltas are resolved against
// the committed value under the write lock.
func (s *JSONFileStore) Update(_ context.Context, id string, patch Patch) (Record, error) {
	id = strings.TrimSpace(id)
	if patch.IsEmpty() {
		return Record{}, fmt.Errorf("%w: no fields to update", ErrInvalidRecord)
	}

	var updated Record
	err := s.commit(func(next *collection) error {
		rec, ok := next.byID[id]
		if !ok {
			return fmt.Errorf("%w: id=%s", ErrNotFound, id)
		}

		if patch.Name != nil {
			rec.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Category != nil {
			rec.Category = strings.TrimSpace(*patch.Category)
		}
		if patch.Quantity != nil {
			rec.Quantity = *patch.Quantity
		}
		if patch.QuantityDelta != nil {
			rec.Quantity += *patch.QuantityDelta
		}
		if err := rec.validate(); err != nil {
			return err
		}

		stamp := s.nextStamp(rec.UpdatedAt, rec.CreatedAt)
		rec.UpdatedAt = &stamp
		next.byID[id] = rec
		updated = rec.clone()
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return updated, nil
}

// Delete reports false without error when id is absent.
func (s *JSONFileStore) Delete(_ context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)

	var removed bool
	err := s.commit(func(next *collection) error {
		if _, ok := next.byID[id]; !ok {
			return errNoChange
		}
		delete(next.byID, id)
		for i, existing := range next.order {
			if existing == id {
				next.order = append(next.order[:i], next.order[i+1:]...)
				break
			}
		}
		removed = true
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (s *JSONFileStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.state.order))
	for _, id := range s.state.order {
		rec := s.state.byID[id]
		if filter.matches(rec) {
			out = append(out, rec.clone())
		}
	}
	return out, nil
}

func (s *JSONFileStore) Search(ctx context.Context, term string) ([]Record, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is empty", ErrInvalidRecord)
	}
	return s.List(ctx, Filter{Search: term})
}

var errNoChange = errors.New("no change")

// commit runs fn against a copy of the collection, flushes the copy and swaps
// it in. No context is consulted here; a started mutation either lands on
// disk or is discarded whole.
func (s *JSONFileStore) commit(fn func(next *collection) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.flush(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *JSONFileStore) nextStamp(prev *time.Time, floor time.Time) time.Time {
	now := s.now().UTC()
	last := floor
	if prev != nil {
		last = *prev
	}
	if !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	return now
}

func (c *collection) insert(rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	if _, exists := c.byID[rec.ID]; exists {
		return fmt.Errorf("%w: id=%s", ErrDuplicateKey, rec.ID)
	}
	c.byID[rec.ID] = rec.clone()
	c.order = append(c.order, rec.ID)
	return nil
}

func (r Record) validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	case r.Quantity < 0:
		return fmt.Errorf("%w: quantity must be >= 0, got %d", ErrInvalidRecord, r.Quantity)
	}
	return nil
}

func (s *JSONFileStore) decode(raw []byte) (collection, error) {
	out := collection{byID: map[string]Record{}}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return out, nil
	}

	var doc map[string][]Record
	if err := json.Unmarshal(raw, &doc); err != nil {
		return collection{}, fmt.Errorf("decode data file %s: %w", s.path, err)
	}
	for _, rec := range doc[s.entity] {
		if err := out.insert(rec); err != nil {
			return collection{}, fmt.Errorf("load data file %s: %w", s.path, err)
		}
	}
	return out, nil
}

// flush writes the collection to a temp file beside the target and renames it
// into place, so readers of the file see either the old or the new content.
func (s *JSONFileStore) flush(c collection) error {
	payload, err := json.MarshalIndent(map[string][]Record{s.entity: c.records()}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStorageIO, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrStorageIO, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(append(payload, '\n')); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write temp file: %w", ErrStorageIO, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync temp file: %w", ErrStorageIO, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close temp file: %w", ErrStorageIO, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: rename temp file: %w", ErrStorageIO, err)
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
