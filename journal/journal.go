// Package journal records raw received datagrams in a Pebble key/value store
// so a contest can be re-ingested or inspected after the fact. The journal is
// optional and strictly additive: a journal failure is counted and logged but
// never blocks the pipeline. Keys sort by arrival time, which makes retention
// pruning a single range delete.
package journal

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
)

// keyLen is 8 bytes of unix nanoseconds plus a 4-byte sequence that keeps
// same-nanosecond arrivals distinct.
const keyLen = 12

// Journal appends raw payloads keyed by arrival time.
type Journal struct {
	db        *pebble.DB
	seq       atomic.Uint32
	retention time.Duration
	shutdown  chan struct{}
	stopOnce  sync.Once
}

// Open creates or opens the journal at path. Retention <= 0 disables pruning.
func Open(path string, retention time.Duration) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &Journal{
		db:        db,
		retention: retention,
		shutdown:  make(chan struct{}),
	}, nil
}

// Start launches the retention pruning loop.
func (j *Journal) Start() {
	if j.retention <= 0 {
		return
	}
	go j.pruneLoop()
}

// Close stops pruning and closes the store.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.stopOnce.Do(func() { close(j.shutdown) })
	return j.db.Close()
}

// Append records one payload with the current arrival time. Writes are
// unsynced; the journal trades durability of the last instants for not
// stalling ingestion.
func (j *Journal) Append(payload []byte) error {
	key := j.keyAt(time.Now().UTC())
	if err := j.db.Set(key, payload, pebble.NoSync); err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	return nil
}

// Range calls fn for every payload recorded in [from, to), oldest first,
// until fn returns false.
func (j *Journal) Range(from, to time.Time, fn func(at time.Time, payload []byte) bool) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: timeKey(from, 0),
		UpperBound: timeKey(to, 0),
	})
	if err != nil {
		return fmt.Errorf("journal: iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != keyLen {
			continue
		}
		at := time.Unix(0, int64(binary.BigEndian.Uint64(key[:8]))).UTC()
		payload := append([]byte(nil), iter.Value()...)
		if !fn(at, payload) {
			break
		}
	}
	return iter.Error()
}

// Count returns the number of recorded payloads. Intended for tests and the
// status endpoint, not the hot path.
func (j *Journal) Count() (int, error) {
	iter, err := j.db.NewIter(nil)
	if err != nil {
		return 0, fmt.Errorf("journal: iterator: %w", err)
	}
	defer iter.Close()
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, iter.Error()
}

func (j *Journal) keyAt(at time.Time) []byte {
	return timeKey(at, j.seq.Add(1))
}

func timeKey(at time.Time, seq uint32) []byte {
	key := make([]byte, keyLen)
	binary.BigEndian.PutUint64(key[:8], uint64(at.UnixNano()))
	binary.BigEndian.PutUint32(key[8:], seq)
	return key
}

func (j *Journal) pruneLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-j.shutdown:
			return
		case <-ticker.C:
			if err := j.pruneBefore(time.Now().UTC().Add(-j.retention)); err != nil {
				log.Printf("Journal: prune failed: %v", err)
			}
		}
	}
}

// pruneBefore drops every payload older than the cutoff.
func (j *Journal) pruneBefore(cutoff time.Time) error {
	start := timeKey(time.Unix(0, 0), 0)
	end := timeKey(cutoff, 0)
	if err := j.db.DeleteRange(start, end, pebble.NoSync); err != nil {
		return fmt.Errorf("journal: delete range: %w", err)
	}
	return nil
}
