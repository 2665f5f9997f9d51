package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal"), 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalAppendAndRange(t *testing.T) {
	j := openTestJournal(t)

	payloads := []string{"<contactinfo/>", "<contactreplace/>", "<contactdelete/>"}
	before := time.Now().UTC().Add(-time.Second)
	for _, p := range payloads {
		if err := j.Append([]byte(p)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	after := time.Now().UTC().Add(time.Second)

	var got []string
	err := j.Range(before, after, func(at time.Time, payload []byte) bool {
		if at.Before(before) || at.After(after) {
			t.Errorf("recorded time %v outside window", at)
		}
		got = append(got, string(payload))
		return true
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != len(payloads) {
		t.Fatalf("ranged %d payloads, want %d", len(got), len(payloads))
	}
	for i, want := range payloads {
		if got[i] != want {
			t.Errorf("payload %d = %q, want %q (arrival order)", i, got[i], want)
		}
	}
}

func TestJournalRangeStopsWhenFnReturnsFalse(t *testing.T) {
	j := openTestJournal(t)
	for i := 0; i < 5; i++ {
		if err := j.Append([]byte{byte('a' + i)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	seen := 0
	err := j.Range(time.Unix(0, 0), time.Now().Add(time.Hour), func(time.Time, []byte) bool {
		seen++
		return seen < 2
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if seen != 2 {
		t.Fatalf("callback ran %d times, want 2", seen)
	}
}

func TestJournalPruneBefore(t *testing.T) {
	j := openTestJournal(t)
	for i := 0; i < 3; i++ {
		if err := j.Append([]byte("old")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	cutoff := time.Now().UTC().Add(time.Second)
	if err := j.pruneBefore(cutoff); err != nil {
		t.Fatalf("pruneBefore: %v", err)
	}
	n, err := j.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("count after prune = %d, want 0", n)
	}
}
