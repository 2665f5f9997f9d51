package store

import (
	"fmt"
	"time"

	"qsolog/qso"
)

// Apply validates, resolves identities, and upserts one contact keyed by its
// idempotency key. A later event with the same key replaces the stored row in
// place; it never duplicates it. The statement is a single atomic upsert, so
// a retransmit racing a correction cannot leave a partial row.
//
// Identity creation happens before the event write. If the event write then
// fails, the created identity row stays behind — that is safe: identity
// creation is idempotent and the cache still matches the store.
func (s *Store) Apply(q *qso.QSO) error {
	if err := q.Validate(); err != nil {
		return err
	}
	bandID, _ := qso.BandNumber(q.Band)
	modeID, _ := qso.ModeNumber(q.Mode)
	operatorID, err := s.ResolveOperator(q.Operator)
	if err != nil {
		return err
	}
	stationID, err := s.ResolveStation(q.Station)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		insert into qso_log
			(qso_key, timestamp, mycall, band_id, mode_id, operator_id, station_id,
			 rx_freq, tx_freq, callsign, rst_sent, rst_recv, exchange, section, comment)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		on conflict(qso_key) do update set
			timestamp = excluded.timestamp,
			mycall = excluded.mycall,
			band_id = excluded.band_id,
			mode_id = excluded.mode_id,
			operator_id = excluded.operator_id,
			station_id = excluded.station_id,
			rx_freq = excluded.rx_freq,
			tx_freq = excluded.tx_freq,
			callsign = excluded.callsign,
			rst_sent = excluded.rst_sent,
			rst_recv = excluded.rst_recv,
			exchange = excluded.exchange,
			section = excluded.section,
			comment = excluded.comment`,
		q.Key, q.Timestamp.UTC().Unix(), q.MyCall, bandID, modeID, operatorID, stationID,
		q.RxFreqHz, q.TxFreqHz, q.Call, q.RSTSent, q.RSTRecv, q.Exchange, q.Section, q.Comment)
	if err != nil {
		return fmt.Errorf("store: upsert %s: %w", q.Key, err)
	}
	return nil
}

// DeleteByKey removes the contact matching the idempotency key. Returns the
// number of rows removed; deleting an absent key is a no-op, not an error.
func (s *Store) DeleteByKey(key string) (int64, error) {
	res, err := s.db.Exec("delete from qso_log where qso_key = ?", key)
	if err != nil {
		return 0, fmt.Errorf("store: delete %s: %w", key, err)
	}
	return res.RowsAffected()
}

// DeleteByCallTimestamp is the fallback match for protocol variants whose
// delete messages carry no identifier. It is inherently weaker: duplicate
// callsign+timestamp pairs make it under- or over-delete, which callers log
// but do not treat as fatal.
func (s *Store) DeleteByCallTimestamp(call string, ts time.Time) (int64, error) {
	res, err := s.db.Exec("delete from qso_log where callsign = ? and timestamp = ?",
		call, ts.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("store: delete %s@%d: %w", call, ts.UTC().Unix(), err)
	}
	return res.RowsAffected()
}

// CountByKey reports how many rows carry the given key. Used by callers that
// need to verify upsert semantics; the schema guarantees 0 or 1.
func (s *Store) CountByKey(key string) (int64, error) {
	var n int64
	err := s.db.QueryRow("select count(*) from qso_log where qso_key = ?", key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count %s: %w", key, err)
	}
	return n, nil
}
