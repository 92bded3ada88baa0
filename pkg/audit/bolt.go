package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	bolt "go.etcd.io/bbolt"
)

var dispatchBucket = []byte("dispatch")

// BoltJournal keeps dispatch entries in a local bbolt file, keyed by time so a
// cursor walks them in order.
type BoltJournal struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create journal dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("audit: open journal: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(dispatchBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: create bucket: %w", err)
	}
	return &BoltJournal{db: db}, nil
}

func (j *BoltJournal) Write(_ context.Context, entries []contractx.AuditEntry) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(dispatchBucket)
		for _, e := range entries {
			enc, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("audit: encode entry %s: %w", e.ID, err)
			}
			if err := b.Put(entryKey(e), enc); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to n entries, newest first.
func (j *BoltJournal) Recent(n int) ([]contractx.AuditEntry, error) {
	out := make([]contractx.AuditEntry, 0, n)
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(dispatchBucket).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var e contractx.AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (j *BoltJournal) Close() error {
	return j.db.Close()
}

func entryKey(e contractx.AuditEntry) []byte {
	return []byte(e.At.UTC().Format("20060102T150405.000000000Z") + "/" + e.ID)
}
