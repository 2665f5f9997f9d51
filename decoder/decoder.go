// Package decoder converts raw broadcast payloads into typed event records.
// The wire format is a loosely-structured markup message: one outer element
// naming the message type and flat child elements for fields. Nesting beyond
// one level is not used by the protocol, so decoding is a single forward scan
// over the payload rather than a general tree parse. Decoding is defensive
// throughout: malformed or truncated input yields Unrecognized, and a
// malformed field yields an empty value without discarding the message.
package decoder

import (
	"strconv"
	"strings"

	"qsolog/qso"
)

// Kind classifies a decoded broadcast.
type Kind int

const (
	// Unrecognized covers malformed payloads and unknown message types.
	Unrecognized Kind = iota
	// ContactCreateOrReplace is a logged or corrected contact.
	ContactCreateOrReplace
	// ContactDelete removes a previously logged contact.
	ContactDelete
	// Informational covers radio-status and score broadcasts, which the
	// collector ignores.
	Informational
)

// Event is the result of decoding one datagram.
type Event struct {
	Kind    Kind
	Root    string // outer element name, lowercased
	Replace bool   // true when the message is a contactreplace
	QSO     *qso.QSO
	Delete  *DeleteRef
}

// DeleteRef identifies the contact a delete message targets. Key is empty for
// protocol variants that do not broadcast the contact identifier; callers
// then fall back to the (Call, Timestamp) composite match.
type DeleteRef struct {
	Key       string
	Call      string
	Timestamp string // wire format, kept verbatim for the fallback match
}

// Roots of broadcasts the logging program emits that carry no contact data.
var informationalRoots = map[string]struct{}{
	"radioinfo":      {},
	"dynamicresults": {},
	"appinfo":        {},
	"spot":           {},
	"lookupinfo":     {},
}

// Decode classifies and extracts one raw payload. It never panics on
// malformed input.
func Decode(payload []byte) Event {
	fields, root := scan(payload)
	switch root {
	case "contactinfo":
		return Event{Kind: ContactCreateOrReplace, Root: root, QSO: buildQSO(fields)}
	case "contactreplace":
		return Event{Kind: ContactCreateOrReplace, Root: root, Replace: true, QSO: buildQSO(fields)}
	case "contactdelete":
		return Event{Kind: ContactDelete, Root: root, Delete: buildDelete(fields)}
	case "":
		return Event{Kind: Unrecognized}
	}
	if _, ok := informationalRoots[root]; ok {
		return Event{Kind: Informational, Root: root}
	}
	return Event{Kind: Unrecognized, Root: root}
}

// buildQSO maps extracted fields onto the canonical record. Every field is
// independently optional; missing or malformed values decode to zero values.
// Frequencies arrive in tens of Hz and are scaled to Hz. Text fields are
// uppercased for consistent grouping downstream.
func buildQSO(fields map[string]string) *qso.QSO {
	q := &qso.QSO{
		Timestamp: qso.ParseTimestamp(fields["timestamp"]),
		MyCall:    strings.ToUpper(fields["mycall"]),
		Band:      fields["band"],
		Mode:      strings.ToUpper(fields["mode"]),
		Operator:  strings.ToUpper(fields["operator"]),
		Station:   strings.ToUpper(fields["netbiosname"]),
		RxFreqHz:  parseFreqHz(fields["rxfreq"]),
		TxFreqHz:  parseFreqHz(fields["txfreq"]),
		Call:      strings.ToUpper(fields["call"]),
		RSTSent:   fields["snt"],
		RSTRecv:   fields["rcv"],
		Exchange:  strings.ToUpper(fields["exchange1"]),
		Section:   strings.ToUpper(fields["section"]),
		Comment:   fields["comment"],
		ContestNr: fields["contestnr"],
	}
	if key := qso.KeyFromID(fields["id"]); key != "" {
		q.Key = key
	} else {
		q.Key = qso.DeriveKey(fields["timestamp"], q.Station, q.ContestNr, q.Call)
	}
	return q
}

func buildDelete(fields map[string]string) *DeleteRef {
	return &DeleteRef{
		Key:       qso.KeyFromID(fields["id"]),
		Call:      strings.ToUpper(fields["call"]),
		Timestamp: fields["timestamp"],
	}
}

// parseFreqHz scales the wire value (tens of Hz) to Hz. Malformed values
// decode to zero rather than failing the message.
func parseFreqHz(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v * 10
}

// scan performs the single forward pass: it finds the outer element name and
// collects the text content of its direct children. Prologs, comments, and
// attributes are skipped; unterminated elements end the scan without error.
func scan(payload []byte) (map[string]string, string) {
	fields := make(map[string]string)
	root := ""
	i := 0
	n := len(payload)
	for i < n {
		open := indexFrom(payload, i, '<')
		if open < 0 {
			break
		}
		i = open + 1
		if i >= n {
			break
		}
		switch payload[i] {
		case '?', '!':
			// prolog or comment; skip to the closing '>'
			end := indexFrom(payload, i, '>')
			if end < 0 {
				return fields, root
			}
			i = end + 1
			continue
		case '/':
			// close tag; only the root's matters and the loop ends naturally
			end := indexFrom(payload, i, '>')
			if end < 0 {
				return fields, root
			}
			i = end + 1
			continue
		}
		end := indexFrom(payload, i, '>')
		if end < 0 {
			return fields, root
		}
		name := tagName(payload[i:end])
		selfClosing := end > open && payload[end-1] == '/'
		i = end + 1
		if name == "" {
			continue
		}
		if root == "" {
			root = name
			continue
		}
		if selfClosing {
			fields[name] = ""
			continue
		}
		// capture text up to the next tag; the protocol has no nested
		// elements below the root, so this is the element's full content
		next := indexFrom(payload, i, '<')
		if next < 0 {
			fields[name] = normalizeText(payload[i:])
			return fields, root
		}
		fields[name] = normalizeText(payload[i:next])
		i = next
	}
	return fields, root
}

func indexFrom(b []byte, start int, c byte) int {
	for i := start; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// tagName extracts the lowercased element name, dropping attributes and a
// trailing '/'.
func tagName(tag []byte) string {
	end := len(tag)
	for i, c := range tag {
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '/' {
			end = i
			break
		}
	}
	return strings.ToLower(string(tag[:end]))
}

// normalizeText collapses redundant whitespace/newline padding that the
// source broadcaster inserts around values, and resolves the standard
// character entities.
func normalizeText(b []byte) string {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "\t\n\r") {
		s = strings.Join(strings.Fields(s), " ")
	}
	if strings.ContainsRune(s, '&') {
		s = unescapeEntities(s)
	}
	return s
}

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

func unescapeEntities(s string) string {
	return entityReplacer.Replace(s)
}
