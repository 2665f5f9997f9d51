package pipeline

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"qsolog/dedup"
	"qsolog/qso"
	"qsolog/stats"
)

// fakeStore is an in-memory EventStore. A non-nil gate stalls Apply until the
// gate channel is closed, which lets tests hold the consumer mid-item.
type fakeStore struct {
	mu      sync.Mutex
	gate    chan struct{}
	applied map[string]*qso.QSO
}

func newFakeStore(gate chan struct{}) *fakeStore {
	return &fakeStore{gate: gate, applied: make(map[string]*qso.QSO)}
}

func (s *fakeStore) Apply(q *qso.QSO) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied[q.Key] = q
	return nil
}

func (s *fakeStore) DeleteByKey(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applied[key]; !ok {
		return 0, nil
	}
	delete(s.applied, key)
	return 1, nil
}

func (s *fakeStore) DeleteByCallTimestamp(call string, ts time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, q := range s.applied {
		if q.Call == call && q.Timestamp.Equal(ts) {
			delete(s.applied, k)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.applied)
}

func (s *fakeStore) get(key string) *qso.QSO {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied[key]
}

func startPipeline(t *testing.T, store *fakeStore, queueSize int, grace time.Duration) (*Coordinator, *stats.Tracker, *net.UDPConn) {
	t.Helper()
	tracker := stats.NewTracker()
	c := New(Options{
		Port:        0,
		ReadTimeout: 50 * time.Millisecond,
		QueueSize:   queueSize,
		GracePeriod: grace,
		Store:       store,
		Guard:       dedup.NewGuard(0),
		Tracker:     tracker,
	})
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{
		IP:   net.IPv4(127, 0, 0, 1),
		Port: c.Addr().(*net.UDPAddr).Port,
	})
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return c, tracker, conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func contactPayload(root, id, call, comment string) []byte {
	return []byte(fmt.Sprintf(`<%s><app>N1MM</app><timestamp>2024-06-22 18:01:02</timestamp>`+
		`<mycall>N1ABC</mycall><band>14</band><mode>CW</mode><operator>W1AW</operator>`+
		`<netbiosname>STN-ONE</netbiosname><rxfreq>1403512</rxfreq><txfreq>1403512</txfreq>`+
		`<call>%s</call><snt>599</snt><rcv>599</rcv><exchange1>3A</exchange1>`+
		`<section>CT</section><comment>%s</comment><id>%s</id></%s>`,
		root, call, comment, id, root))
}

func deletePayload(id string) []byte {
	return []byte(fmt.Sprintf(`<contactdelete><timestamp>2024-06-22 18:01:02</timestamp>`+
		`<call>K3XYZ</call><id>%s</id></contactdelete>`, id))
}

func send(t *testing.T, conn *net.UDPConn, payload []byte) {
	t.Helper()
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestPipelineAppliesDeduplicatesReplacesAndDeletes(t *testing.T) {
	store := newFakeStore(nil)
	c, tracker, conn := startPipeline(t, store, 64, 5*time.Second)

	send(t, conn, contactPayload("contactinfo", "AAAA1111", "K3XYZ", "FIRST"))
	waitFor(t, "first apply", func() bool { return tracker.Snapshot().Applied == 1 })

	// Literal retransmit: same key, must be suppressed.
	send(t, conn, contactPayload("contactinfo", "AAAA1111", "K3XYZ", "FIRST"))
	waitFor(t, "duplicate", func() bool { return tracker.Snapshot().Duplicates == 1 })
	if store.len() != 1 {
		t.Fatalf("store has %d contacts after retransmit, want 1", store.len())
	}

	// Replace reuses the key and must go through despite the seen-set.
	send(t, conn, contactPayload("contactreplace", "AAAA1111", "K3XYZ", "CORRECTED"))
	waitFor(t, "replace", func() bool { return tracker.Snapshot().Replaced == 1 })
	if got := store.get("AAAA1111"); got == nil || got.Comment != "CORRECTED" {
		t.Fatalf("replace did not converge: %+v", got)
	}

	send(t, conn, contactPayload("contactinfo", "BBBB2222", "W9XYZ", "SECOND"))
	waitFor(t, "second apply", func() bool { return tracker.Snapshot().Applied == 2 })

	send(t, conn, deletePayload("BBBB2222"))
	waitFor(t, "delete", func() bool { return tracker.Snapshot().Deleted == 1 })
	if store.len() != 1 || store.get("AAAA1111") == nil {
		t.Fatalf("store after delete: %d contacts", store.len())
	}

	// Deleting the same contact again is a counted no-op.
	send(t, conn, deletePayload("BBBB2222"))
	waitFor(t, "delete miss", func() bool { return tracker.Snapshot().DeleteMisses == 1 })

	c.Stop()
	if c.State() != Stopped {
		t.Fatalf("state after Stop = %v, want stopped", c.State())
	}
}

func TestPipelineCountsInformationalAndUnrecognized(t *testing.T) {
	store := newFakeStore(nil)
	c, tracker, conn := startPipeline(t, store, 64, 5*time.Second)
	defer c.Stop()

	send(t, conn, []byte(`<RadioInfo><Freq>1403512</Freq></RadioInfo>`))
	waitFor(t, "informational", func() bool { return tracker.Snapshot().Informational == 1 })

	send(t, conn, []byte(`not markup at all`))
	waitFor(t, "unrecognized", func() bool { return tracker.Snapshot().Unrecognized == 1 })

	if store.len() != 0 {
		t.Fatalf("non-contact traffic reached the store: %d entries", store.len())
	}
}

func TestPipelineBackpressureDeliversEverything(t *testing.T) {
	gate := make(chan struct{})
	store := newFakeStore(gate)
	c, _, conn := startPipeline(t, store, 4, 10*time.Second)

	const total = 10
	for i := 0; i < total; i++ {
		send(t, conn, contactPayload("contactinfo", fmt.Sprintf("CAFE%04d", i), "K3XYZ", "X"))
	}

	// Worker is stalled inside Apply on the first payload; the queue fills and
	// the receiver blocks rather than dropping. Nothing may reach the store.
	waitFor(t, "queue to fill", func() bool { return c.QueueDepth() == 4 })
	if store.len() != 0 {
		t.Fatalf("store has %d contacts while consumer is stalled, want 0", store.len())
	}

	close(gate)
	waitFor(t, "all contacts stored", func() bool { return store.len() == total })

	c.Stop()
	if got := c.Received(); got != total {
		t.Fatalf("receiver counted %d datagrams, want %d", got, total)
	}
}

func TestPipelineStopDrainsQueuedWork(t *testing.T) {
	gate := make(chan struct{})
	store := newFakeStore(gate)
	c, _, conn := startPipeline(t, store, 64, 10*time.Second)

	const total = 20
	for i := 0; i < total; i++ {
		send(t, conn, contactPayload("contactinfo", fmt.Sprintf("DEAD%04d", i), "K3XYZ", "X"))
	}
	// One payload held by the stalled worker, the rest queued.
	waitFor(t, "backlog to build", func() bool { return c.QueueDepth() == total-1 })

	close(gate)
	c.Stop()

	if store.len() != total {
		t.Fatalf("store has %d contacts after Stop, want %d (queued work must drain)", store.len(), total)
	}
	if c.State() != Stopped {
		t.Fatalf("state after Stop = %v, want stopped", c.State())
	}
}

func TestPipelineAbandonsWorkerAfterGrace(t *testing.T) {
	gate := make(chan struct{})
	store := newFakeStore(gate)
	// Gate is never released before Stop, so the worker cannot drain.
	c, _, conn := startPipeline(t, store, 8, 200*time.Millisecond)
	t.Cleanup(func() { close(gate) })

	send(t, conn, contactPayload("contactinfo", "FEED0001", "K3XYZ", "X"))
	waitFor(t, "worker to pick up the payload", func() bool { return c.Received() == 1 })

	started := time.Now()
	c.Stop()
	elapsed := time.Since(started)

	if elapsed < 200*time.Millisecond {
		t.Fatalf("Stop returned after %v, before the grace period", elapsed)
	}
	if elapsed > 3*time.Second {
		t.Fatalf("Stop took %v, abandonment did not bound the wait", elapsed)
	}
	if c.State() != Stopped {
		t.Fatalf("state after abandoning worker = %v, want stopped", c.State())
	}
}

func TestPipelineStartFailsWhenPortTaken(t *testing.T) {
	occupier, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		t.Fatalf("occupy port: %v", err)
	}
	defer occupier.Close()

	c := New(Options{
		Port:    occupier.LocalAddr().(*net.UDPAddr).Port,
		Store:   newFakeStore(nil),
		Guard:   dedup.NewGuard(0),
		Tracker: stats.NewTracker(),
	})
	if err := c.Start(); err == nil {
		t.Fatal("Start succeeded on an occupied port")
	}
	if c.State() != Stopped {
		t.Fatalf("state after failed Start = %v, want stopped", c.State())
	}
}
