package dedup

import (
	"testing"
	"time"
)

func TestGuardSuppressesOnlyAfterMark(t *testing.T) {
	g := NewGuard(0)

	if !g.ShouldApply("K1") {
		t.Fatal("fresh key should apply")
	}
	// A failed write never marks; the key must still be applicable.
	if !g.ShouldApply("K1") {
		t.Fatal("unmarked key must remain applicable after a failed write")
	}

	g.MarkApplied("K1")
	if g.ShouldApply("K1") {
		t.Fatal("marked key must be suppressed")
	}
	if !g.ShouldApply("K2") {
		t.Fatal("unrelated key should apply")
	}
}

func TestGuardForget(t *testing.T) {
	g := NewGuard(0)
	g.MarkApplied("K1")
	g.Forget("K1")
	if !g.ShouldApply("K1") {
		t.Fatal("forgotten key should apply again")
	}
}

func TestGuardStats(t *testing.T) {
	g := NewGuard(0)
	g.MarkApplied("A")
	g.ShouldApply("A")
	g.ShouldApply("B")

	checked, suppressed, size := g.Stats()
	if checked != 2 {
		t.Errorf("checked = %d, want 2", checked)
	}
	if suppressed != 1 {
		t.Errorf("suppressed = %d, want 1", suppressed)
	}
	if size != 1 {
		t.Errorf("size = %d, want 1", size)
	}
}

func TestGuardWindowedEviction(t *testing.T) {
	g := NewGuard(time.Minute)
	g.MarkApplied("OLD")
	g.MarkApplied("NEW")

	removed := g.evictExpired(time.Now().UTC().Add(2 * time.Minute))
	if removed != 2 {
		t.Fatalf("evictExpired removed %d, want 2 (both outside window)", removed)
	}
	if !g.ShouldApply("OLD") || !g.ShouldApply("NEW") {
		t.Fatal("evicted keys should apply again")
	}
}

func TestGuardZeroWindowNeverEvicts(t *testing.T) {
	g := NewGuard(0)
	g.Start() // no-op with zero window
	defer g.Stop()

	g.MarkApplied("K")
	if g.ShouldApply("K") {
		t.Fatal("zero-window guard must keep keys for the process lifetime")
	}
}
