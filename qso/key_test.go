package qso

import "testing"

func TestKeyFromIDStripsSeparators(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"d5a9e234-3f60-4ebf-9b2a-93a6ac70c102", "D5A9E2343F604EBF9B2A93A6AC70C102"},
		{"{D5A9E234-3F60-4EBF-9B2A-93A6AC70C102}", "D5A9E2343F604EBF9B2A93A6AC70C102"},
		{"  ", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := KeyFromID(tc.in); got != tc.want {
			t.Errorf("KeyFromID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDeriveKeyStableAcrossResends(t *testing.T) {
	a := DeriveKey("2017-06-24 18:01:02", "STATION-1", "42", "W1AW")
	b := DeriveKey("2017-06-24 18:01:02", "STATION-1", "42", "W1AW")
	if a != b {
		t.Fatalf("identical inputs produced different keys: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex digits, got %q", a)
	}
}

func TestDeriveKeyIgnoresCaseAndPadding(t *testing.T) {
	a := DeriveKey("2017-06-24 18:01:02", "station-1", "42", "w1aw")
	b := DeriveKey("2017-06-24 18:01:02", " STATION-1 ", "42", "W1AW ")
	if a != b {
		t.Fatalf("case/padding variants should share a key: %s vs %s", a, b)
	}
}

func TestDeriveKeyDistinguishesContacts(t *testing.T) {
	a := DeriveKey("2017-06-24 18:01:02", "STATION-1", "42", "W1AW")
	b := DeriveKey("2017-06-24 18:01:03", "STATION-1", "42", "W1AW")
	c := DeriveKey("2017-06-24 18:01:02", "STATION-1", "42", "K1ABC")
	if a == b || a == c {
		t.Fatal("different contacts must not collide on derived keys")
	}
}
