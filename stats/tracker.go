// Package stats tracks ingestion counters for periodic console output and
// the diagnostics status endpoint. Counters are atomics so the consumer's hot
// path never takes a lock to increment.
package stats

import (
	"sync/atomic"
	"time"
)

// Tracker accumulates pipeline counters for one collector run.
type Tracker struct {
	start atomic.Int64

	received      atomic.Uint64
	unrecognized  atomic.Uint64
	informational atomic.Uint64
	applied       atomic.Uint64
	replaced      atomic.Uint64
	duplicates    atomic.Uint64
	rejected      atomic.Uint64
	deleted       atomic.Uint64
	deleteMisses  atomic.Uint64
	persistErrors atomic.Uint64
	journalErrors atomic.Uint64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Uptime        time.Duration `json:"-"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Received      uint64        `json:"received"`
	Unrecognized  uint64        `json:"unrecognized"`
	Informational uint64        `json:"informational"`
	Applied       uint64        `json:"applied"`
	Replaced      uint64        `json:"replaced"`
	Duplicates    uint64        `json:"duplicates"`
	Rejected      uint64        `json:"rejected"`
	Deleted       uint64        `json:"deleted"`
	DeleteMisses  uint64        `json:"delete_misses"`
	PersistErrors uint64        `json:"persist_errors"`
	JournalErrors uint64        `json:"journal_errors"`
}

// NewTracker creates a tracker with the clock started.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

func (t *Tracker) IncrementReceived()      { t.received.Add(1) }
func (t *Tracker) IncrementUnrecognized()  { t.unrecognized.Add(1) }
func (t *Tracker) IncrementInformational() { t.informational.Add(1) }
func (t *Tracker) IncrementApplied()       { t.applied.Add(1) }
func (t *Tracker) IncrementReplaced()      { t.replaced.Add(1) }
func (t *Tracker) IncrementDuplicates()    { t.duplicates.Add(1) }
func (t *Tracker) IncrementRejected()      { t.rejected.Add(1) }
func (t *Tracker) IncrementDeleted()       { t.deleted.Add(1) }
func (t *Tracker) IncrementDeleteMisses()  { t.deleteMisses.Add(1) }
func (t *Tracker) IncrementPersistErrors() { t.persistErrors.Add(1) }
func (t *Tracker) IncrementJournalErrors() { t.journalErrors.Add(1) }

// Snapshot returns a consistent-enough copy for display; individual counters
// are read atomically.
func (t *Tracker) Snapshot() Snapshot {
	uptime := time.Since(time.Unix(0, t.start.Load()))
	return Snapshot{
		Uptime:        uptime,
		UptimeSeconds: int64(uptime.Seconds()),
		Received:      t.received.Load(),
		Unrecognized:  t.unrecognized.Load(),
		Informational: t.informational.Load(),
		Applied:       t.applied.Load(),
		Replaced:      t.replaced.Load(),
		Duplicates:    t.duplicates.Load(),
		Rejected:      t.rejected.Load(),
		Deleted:       t.deleted.Load(),
		DeleteMisses:  t.deleteMisses.Load(),
		PersistErrors: t.persistErrors.Load(),
		JournalErrors: t.journalErrors.Load(),
	}
}
