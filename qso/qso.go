// Package qso defines the canonical contact record and helpers used across the
// collector pipeline: band/mode tables, idempotency key derivation, and basic
// validation.
package qso

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the wire timestamp format used by the logging program.
// All timestamps are interpreted as UTC.
const TimestampLayout = "2006-01-02 15:04:05"

// QSO represents one logged contact in canonical form. Text fields are
// uppercased at decode time so grouping downstream is consistent.
type QSO struct {
	Key       string    // idempotency key, stable across retransmits
	Timestamp time.Time // UTC, second precision
	MyCall    string    // own station callsign
	Band      string    // band label as transmitted (e.g. "14")
	Mode      string    // mode label as transmitted (e.g. "CW")
	Operator  string    // operator name/callsign at the station
	Station   string    // logging computer name
	RxFreqHz  int64     // receive frequency in Hz
	TxFreqHz  int64     // transmit frequency in Hz
	Call      string    // remote station callsign
	RSTSent   string
	RSTRecv   string
	Exchange  string
	Section   string
	Comment   string
	ContestNr string // contest serial carried by the message, used for fallback keys
}

// Validate reports whether the record can be durably stored. Band and mode
// must resolve to table entries; callsign and timestamp must be present.
// Everything else is optional per the protocol (missing fields decode to
// empty values).
func (q *QSO) Validate() error {
	if q.Call == "" {
		return fmt.Errorf("qso: missing callsign")
	}
	if q.Timestamp.IsZero() {
		return fmt.Errorf("qso: missing timestamp")
	}
	if _, ok := BandNumber(q.Band); !ok {
		return fmt.Errorf("qso: unresolvable band %q", q.Band)
	}
	if _, ok := ModeNumber(q.Mode); !ok {
		return fmt.Errorf("qso: unresolvable mode %q", q.Mode)
	}
	return nil
}

// String returns a single-line summary in the collector's log format.
func (q *QSO) String() string {
	return fmt.Sprintf("%s %6s %4s %-6s %-12s %-12s %10d %10d %-6s %3s %3s %4s %-4s %s",
		q.Timestamp.UTC().Format(TimestampLayout),
		q.MyCall, q.Band, q.Mode, q.Operator, q.Station,
		q.RxFreqHz, q.TxFreqHz, q.Call, q.RSTSent, q.RSTRecv,
		q.Exchange, q.Section, q.Comment)
}

// ParseTimestamp parses a wire timestamp as UTC. Returns the zero time on
// malformed input so one bad field does not discard the whole message.
func ParseTimestamp(s string) time.Time {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
