package qso

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// KeyFromID normalizes an explicit message identifier into an idempotency
// key: separators stripped, uppercased. Returns "" when the identifier is
// empty after stripping.
func KeyFromID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
		case c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
			b.WriteByte(c)
		}
		// '-', '{', '}' and other separators dropped
	}
	return b.String()
}

// DeriveKey computes the fallback idempotency key for protocol variants that
// carry no explicit identifier. The hash covers timestamp, station name,
// contest serial, and remote callsign, so a logically identical resend maps
// to the same key while a different contact never does. Fields that may vary
// between resends (comment, reports) are deliberately excluded.
func DeriveKey(timestamp, station, contestNr, call string) string {
	payload := strings.ToUpper(strings.TrimSpace(timestamp)) + "|" +
		strings.ToUpper(strings.TrimSpace(station)) + "|" +
		strings.TrimSpace(contestNr) + "|" +
		strings.ToUpper(strings.TrimSpace(call))
	return fmt.Sprintf("%016x", xxh3.HashString(payload))
}
