// Package pipeline wires the ingestion flow: receiver -> bounded queue ->
// consumer worker (decode, resolve, dedup, persist). The coordinator owns the
// lifecycle of both ends: startup, queue wiring, graceful shutdown with a
// bounded grace period, and abandonment of a worker that does not exit in
// time.
//
// Concurrency model: exactly two units of execution share exactly one
// structure. The receiver goroutine writes raw payloads into the bounded
// queue; the worker goroutine reads them. The store, identity caches, dedup
// guard, and journal are all touched only by the worker, so no further
// synchronization exists or is needed.
package pipeline

import (
	"log"
	"net"
	"sync/atomic"
	"time"

	"qsolog/decoder"
	"qsolog/dedup"
	"qsolog/metrics"
	"qsolog/qso"
	"qsolog/receiver"
	"qsolog/stats"
)

// EventStore is the persistence surface the worker drives. *store.Store
// implements it; tests substitute an in-memory fake.
type EventStore interface {
	Apply(q *qso.QSO) error
	DeleteByKey(key string) (int64, error)
	DeleteByCallTimestamp(call string, ts time.Time) (int64, error)
}

// Journaler records raw payloads before decoding. Optional.
type Journaler interface {
	Append(payload []byte) error
}

// State is the coordinator lifecycle state.
type State int32

const (
	Idle State = iota
	Starting
	Running
	Draining
	Stopped
)

// stateBox holds the lifecycle state for concurrent readers (status endpoint,
// tests) while Start/Stop run on the main goroutine.
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) store(s State) { b.v.Store(int32(s)) }
func (b *stateBox) load() State   { return State(b.v.Load()) }

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Options configures a Coordinator. Store, Guard, and Tracker are required;
// Journal is optional.
type Options struct {
	Port             int
	ReadTimeout      time.Duration
	MaxDatagramBytes int
	QueueSize        int
	GracePeriod      time.Duration

	Store   EventStore
	Guard   *dedup.Guard
	Journal Journaler // nil disables journaling
	Tracker *stats.Tracker
}

// Coordinator runs the receiver and the consumer worker.
type Coordinator struct {
	opts       Options
	queue      chan []byte
	recv       *receiver.Receiver
	workerDone chan struct{}
	state      stateBox
}

// New creates an idle coordinator. Start binds the socket and launches the
// worker.
func New(opts Options) *Coordinator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4096
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 30 * time.Second
	}
	return &Coordinator{
		opts:       opts,
		workerDone: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return c.state.load()
}

// QueueDepth returns the current backlog between receiver and worker.
func (c *Coordinator) QueueDepth() int {
	if c.queue == nil {
		return 0
	}
	return len(c.queue)
}

// Addr returns the receiver's bound address once started.
func (c *Coordinator) Addr() net.Addr {
	if c.recv == nil {
		return nil
	}
	return c.recv.Addr()
}

// Received returns the receiver's datagram count.
func (c *Coordinator) Received() uint64 {
	if c.recv == nil {
		return 0
	}
	return c.recv.Received()
}

// Start binds the UDP socket and launches the receiver and worker. A bind
// failure is returned to the caller and is fatal.
func (c *Coordinator) Start() error {
	c.state.store(Starting)
	c.queue = make(chan []byte, c.opts.QueueSize)

	recv, err := receiver.New(c.opts.Port, c.opts.ReadTimeout, c.opts.MaxDatagramBytes, c.queue)
	if err != nil {
		c.state.store(Stopped)
		return err
	}
	c.recv = recv

	go c.workerLoop()
	recv.Start()
	c.state.store(Running)
	return nil
}

// Stop drains the pipeline: the receiver stops pulling from the socket, the
// queue is closed so the worker finishes queued work, and the coordinator
// waits up to the grace period. A worker that does not exit in time is
// abandoned with a warning; callers then release resources regardless.
func (c *Coordinator) Stop() {
	c.state.store(Draining)
	log.Println("Pipeline: draining...")

	// Stop feeding the queue first. Stop returns only after the receive loop
	// has exited, so closing the queue afterwards cannot race a send.
	c.recv.Stop()
	close(c.queue)

	select {
	case <-c.workerDone:
		log.Println("Pipeline: worker drained cleanly")
	case <-time.After(c.opts.GracePeriod):
		log.Printf("Warning: worker did not drain within %s; abandoning it", c.opts.GracePeriod)
	}
	c.state.store(Stopped)
}

// workerLoop is the single consumer. It exits when the queue is closed and
// empty, never mid-item.
func (c *Coordinator) workerLoop() {
	defer close(c.workerDone)
	for payload := range c.queue {
		c.process(payload)
		metrics.QueueDepth.Set(float64(len(c.queue)))
	}
}

func (c *Coordinator) process(payload []byte) {
	t := c.opts.Tracker
	t.IncrementReceived()
	metrics.DatagramsReceived.Inc()

	if c.opts.Journal != nil {
		if err := c.opts.Journal.Append(payload); err != nil {
			t.IncrementJournalErrors()
			log.Printf("Warning: journal append failed: %v", err)
		}
	}

	ev := decoder.Decode(payload)
	switch ev.Kind {
	case decoder.ContactCreateOrReplace:
		c.applyContact(ev)
	case decoder.ContactDelete:
		c.applyDelete(ev.Delete)
	case decoder.Informational:
		t.IncrementInformational()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomeInformational).Inc()
	default:
		t.IncrementUnrecognized()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomeUnrecognized).Inc()
		log.Printf("Decoder: unrecognized message (root=%q, %d bytes), ignoring", ev.Root, len(payload))
	}

	if c.opts.Guard != nil {
		_, _, size := c.opts.Guard.Stats()
		metrics.SeenSetSize.Set(float64(size))
	}
}

// applyContact handles create and replace events. Creates are checked against
// the seen-set so a literal retransmit is suppressed; replace events bypass
// the check because they legitimately reuse the original's key and the store
// applies them as upserts. Either way the key is marked applied only after a
// confirmed successful write, so a failed write leaves the key eligible for a
// future resend.
func (c *Coordinator) applyContact(ev decoder.Event) {
	t := c.opts.Tracker
	q := ev.QSO

	if !ev.Replace && !c.opts.Guard.ShouldApply(q.Key) {
		t.IncrementDuplicates()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		return
	}

	if err := q.Validate(); err != nil {
		t.IncrementRejected()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomeRejected).Inc()
		log.Printf("Warning: rejecting event %s: %v", q.Key, err)
		return
	}

	if err := c.opts.Store.Apply(q); err != nil {
		// Not marked applied: the event is dropped, but a legitimate resend
		// can still succeed later.
		t.IncrementPersistErrors()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomePersistError).Inc()
		log.Printf("Error: persisting event %s: %v", q.Key, err)
		return
	}
	c.opts.Guard.MarkApplied(q.Key)

	if ev.Replace {
		t.IncrementReplaced()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomeReplaced).Inc()
		log.Printf("QSO replaced: %s", q)
	} else {
		t.IncrementApplied()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomeApplied).Inc()
		log.Printf("QSO: %s", q)
	}
}

func (c *Coordinator) applyDelete(ref *decoder.DeleteRef) {
	t := c.opts.Tracker

	var (
		n   int64
		err error
	)
	if ref.Key != "" {
		n, err = c.opts.Store.DeleteByKey(ref.Key)
		if err == nil {
			// A later re-create with the same key must not be suppressed.
			c.opts.Guard.Forget(ref.Key)
		}
	} else {
		ts := qso.ParseTimestamp(ref.Timestamp)
		if ref.Call == "" || ts.IsZero() {
			t.IncrementDeleteMisses()
			metrics.EventsProcessed.WithLabelValues(metrics.OutcomeDeleteMiss).Inc()
			log.Printf("Warning: delete without key or usable call/timestamp, ignoring")
			return
		}
		n, err = c.opts.Store.DeleteByCallTimestamp(ref.Call, ts)
	}
	if err != nil {
		t.IncrementPersistErrors()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomePersistError).Inc()
		log.Printf("Error: delete failed (key=%q call=%q): %v", ref.Key, ref.Call, err)
		return
	}

	switch {
	case n == 1:
		t.IncrementDeleted()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomeDeleted).Inc()
		log.Printf("QSO deleted: key=%q call=%q", ref.Key, ref.Call)
	case n == 0:
		// Deleting an absent contact is a no-op, not an error.
		t.IncrementDeleteMisses()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomeDeleteMiss).Inc()
		log.Printf("Delete matched no rows (key=%q call=%q)", ref.Key, ref.Call)
	default:
		// The fallback composite match can over-delete; log it.
		t.IncrementDeleted()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomeDeleted).Inc()
		log.Printf("Warning: delete matched %d rows (call=%q %s)", n, ref.Call, ref.Timestamp)
	}
}
