package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"qsolog/qso"
)

// Read-only query surface for the presentation layer. The collector makes no
// assumptions about how often these run; the boundary is purely the persisted
// store.

// NameCount pairs an identity name with its contact count.
type NameCount struct {
	Name  string
	Count int64
}

// LastQSO describes the most recent stored contact.
type LastQSO struct {
	Timestamp time.Time
	Call      string
	Exchange  string
	Section   string
	Operator  string
	BandID    int
}

// QSOCount returns the total number of stored contacts.
func (s *Store) QSOCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow("select count(*) from qso_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count qsos: %w", err)
	}
	return n, nil
}

// LatestQSO returns the most recent contact, or (nil, nil) when the log is
// empty.
func (s *Store) LatestQSO() (*LastQSO, error) {
	row := s.db.QueryRow(`
		select qso_log.timestamp, callsign, exchange, section, operator.name, band_id
		from qso_log join operator on operator.id = operator_id
		order by qso_log.timestamp desc limit 1`)
	var last LastQSO
	var ts int64
	err := row.Scan(&ts, &last.Call, &last.Exchange, &last.Section, &last.Operator, &last.BandID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: last qso: %w", err)
	}
	last.Timestamp = time.Unix(ts, 0).UTC()
	return &last, nil
}

// QSOsByOperator returns contact counts per operator, busiest first.
func (s *Store) QSOsByOperator() ([]NameCount, error) {
	return s.nameCounts(`
		select name, count(operator_id) as qso_count
		from qso_log join operator on operator.id = operator_id
		group by operator_id order by qso_count desc`)
}

// QSOsByStation returns contact counts per logging station.
func (s *Store) QSOsByStation() ([]NameCount, error) {
	return s.nameCounts(`
		select name, count(station_id) as qso_count
		from qso_log join station on station.id = station_id
		group by station_id order by qso_count desc`)
}

// QSOsBySection returns contact counts per contest section code.
func (s *Store) QSOsBySection() (map[string]int64, error) {
	rows, err := s.db.Query("select section, count(section) from qso_log group by section")
	if err != nil {
		return nil, fmt.Errorf("store: qsos by section: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var section string
		var n int64
		if err := rows.Scan(&section, &n); err != nil {
			return nil, fmt.Errorf("store: scan section row: %w", err)
		}
		counts[section] = n
	}
	return counts, rows.Err()
}

// BandModeCounts returns a band-indexed table of counts per simple mode
// group (CW / phone / data).
func (s *Store) BandModeCounts() ([][4]int64, error) {
	rows, err := s.db.Query("select count(*), band_id, mode_id from qso_log group by band_id, mode_id")
	if err != nil {
		return nil, fmt.Errorf("store: band/mode counts: %w", err)
	}
	defer rows.Close()

	table := make([][4]int64, qso.BandCount())
	for rows.Next() {
		var n int64
		var bandID, modeID int
		if err := rows.Scan(&n, &bandID, &modeID); err != nil {
			return nil, fmt.Errorf("store: scan band/mode row: %w", err)
		}
		if bandID < 0 || bandID >= len(table) {
			continue
		}
		table[bandID][qso.SimpleModeFor(modeID)] = n
	}
	return table, rows.Err()
}

// OperatorRates returns per-operator contact counts inside the window ending
// at the given instant, scaled to an hourly rate.
func (s *Store) OperatorRates(end time.Time, window time.Duration) ([]NameCount, error) {
	if window <= 0 {
		window = 15 * time.Minute
	}
	start := end.Add(-window)
	rows, err := s.db.Query(`
		select operator.name, count(operator_id) as qso_count
		from qso_log join operator on operator.id = operator_id
		where qso_log.timestamp >= ? and qso_log.timestamp <= ?
		group by operator_id order by qso_count desc limit 10`,
		start.UTC().Unix(), end.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("store: operator rates: %w", err)
	}
	defer rows.Close()

	perHour := int64(time.Hour / window)
	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, fmt.Errorf("store: scan rate row: %w", err)
		}
		nc.Count *= perHour
		out = append(out, nc)
	}
	return out, rows.Err()
}

func (s *Store) nameCounts(query string) ([]NameCount, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("store: name counts: %w", err)
	}
	defer rows.Close()

	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, fmt.Errorf("store: scan name count: %w", err)
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}
