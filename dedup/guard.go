// Package dedup implements the seen-set guard that suppresses re-processing
// of events already applied. Broadcasts can be retransmitted or re-delivered;
// the guard rejects literal re-delivery of the same logical event, not
// legitimate corrections (those arrive as replace messages and share the
// original's key on purpose — the persistence layer upserts them).
//
// Membership is keyed by a 64-bit hash of the idempotency key and stored in a
// shard-locked map with optional time-windowed eviction so the footprint
// stays bounded on long runs. A zero window keeps keys for the process
// lifetime, which is acceptable for a multi-hour contest.
package dedup

import (
	"log"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

// shardCount must remain a power of two so shard selection is a bit mask.
const shardCount = 16

// Guard tracks applied idempotency keys.
type Guard struct {
	window          time.Duration
	shards          []shard
	cleanupInterval time.Duration
	shutdown        chan struct{}
	stopOnce        sync.Once
}

type shard struct {
	mu         sync.Mutex
	seen       map[uint64]time.Time
	checked    uint64
	suppressed uint64
}

// NewGuard creates a guard with the given eviction window. A zero or negative
// window disables eviction.
func NewGuard(window time.Duration) *Guard {
	shards := make([]shard, shardCount)
	for i := range shards {
		shards[i].seen = make(map[uint64]time.Time)
	}
	return &Guard{
		window:          window,
		shards:          shards,
		cleanupInterval: 60 * time.Second,
		shutdown:        make(chan struct{}),
	}
}

// Start launches the background eviction loop when a window is configured.
func (g *Guard) Start() {
	if g.window <= 0 {
		return
	}
	go g.cleanupLoop()
}

// Stop terminates the eviction loop. Safe to call more than once.
func (g *Guard) Stop() {
	g.stopOnce.Do(func() { close(g.shutdown) })
}

// ShouldApply reports whether an event with this key still needs processing.
// It must be paired with MarkApplied after a confirmed successful write; a
// failed write leaves the key unmarked so a future legitimate resend can
// still succeed.
func (g *Guard) ShouldApply(key string) bool {
	h := xxh3.HashString(key)
	s := g.shardFor(h)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked++
	if _, ok := s.seen[h]; ok {
		s.suppressed++
		return false
	}
	return true
}

// MarkApplied records the key as applied. Called by the single consumer only
// after persistence succeeded, so a fast retransmit arriving next in the
// queue is evaluated against the updated set.
func (g *Guard) MarkApplied(key string) {
	h := xxh3.HashString(key)
	s := g.shardFor(h)
	s.mu.Lock()
	s.seen[h] = time.Now().UTC()
	s.mu.Unlock()
}

// Forget removes a key, used when a stored event is deleted so a later
// re-create with the same key is not suppressed.
func (g *Guard) Forget(key string) {
	h := xxh3.HashString(key)
	s := g.shardFor(h)
	s.mu.Lock()
	delete(s.seen, h)
	s.mu.Unlock()
}

// Stats returns cumulative counts and the current seen-set size.
func (g *Guard) Stats() (checked, suppressed uint64, size int) {
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.Lock()
		checked += s.checked
		suppressed += s.suppressed
		size += len(s.seen)
		s.mu.Unlock()
	}
	return checked, suppressed, size
}

func (g *Guard) shardFor(h uint64) *shard {
	return &g.shards[h&(shardCount-1)]
}

func (g *Guard) cleanupLoop() {
	ticker := time.NewTicker(g.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-g.shutdown:
			return
		case <-ticker.C:
			if removed := g.evictExpired(time.Now().UTC()); removed > 0 {
				log.Printf("Dedup: evicted %d expired keys", removed)
			}
		}
	}
}

func (g *Guard) evictExpired(now time.Time) int {
	removed := 0
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.Lock()
		for h, when := range s.seen {
			if now.Sub(when) > g.window {
				delete(s.seen, h)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
