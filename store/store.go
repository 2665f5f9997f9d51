// Package store persists the deduplicated QSO log to SQLite and owns the
// operator/station identity caches. The database handle and both caches are
// owned exclusively by the single consumer goroutine; nothing here is safe
// for concurrent writers, and nothing needs to be — the queue in front of the
// consumer is the pipeline's only synchronization point.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"qsolog/config"
	"qsolog/sqliteutil"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database plus the in-process identity caches.
type Store struct {
	db        *sql.DB
	operators *identityCache
	stations  *identityCache
	preflight sqliteutil.Result
}

// Open runs the preflight check, opens the database, ensures the schema, and
// loads the identity caches. Any failure here is a fatal startup error for
// the collector; no partial startup is allowed.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir: %w", err)
	}
	preflightTimeout := time.Duration(cfg.PreflightTimeoutMS) * time.Millisecond
	preflight, err := sqliteutil.Preflight(cfg.Path, "qso", preflightTimeout, nil)
	if err != nil {
		return nil, fmt.Errorf("store: preflight: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	// Single consumer; keep the pool at one connection so writes serialize.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	pragmas := fmt.Sprintf("pragma journal_mode=WAL; pragma synchronous=NORMAL; pragma busy_timeout=%d", cfg.BusyTimeoutMS)
	if _, err := db.Exec(pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pragmas: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	operators, err := loadIdentityCache(db, "operator")
	if err != nil {
		db.Close()
		return nil, err
	}
	stations, err := loadIdentityCache(db, "station")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, operators: operators, stations: stations, preflight: preflight}, nil
}

// PreflightResult reports what the startup integrity check did, for the
// diagnostics surface.
func (s *Store) PreflightResult() sqliteutil.Result {
	return s.preflight
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureSchema(db *sql.DB) error {
	schema := `
	create table if not exists operator (
		id integer primary key not null,
		name text not null unique
	);
	create table if not exists station (
		id integer primary key not null,
		name text not null unique
	);
	create table if not exists qso_log (
		qso_key text primary key not null,
		timestamp integer not null,
		mycall text not null,
		band_id integer not null,
		mode_id integer not null,
		operator_id integer not null,
		station_id integer not null,
		rx_freq integer not null,
		tx_freq integer not null,
		callsign text not null,
		rst_sent text,
		rst_recv text,
		exchange text,
		section text,
		comment text
	);
	create index if not exists qso_log_timestamp on qso_log(timestamp);
	create index if not exists qso_log_band_id on qso_log(band_id);
	create index if not exists qso_log_mode_id on qso_log(mode_id);
	create index if not exists qso_log_operator_id on qso_log(operator_id);
	create index if not exists qso_log_station_id on qso_log(station_id);
	create index if not exists qso_log_section on qso_log(section);
	create index if not exists qso_log_call_ts on qso_log(callsign, timestamp);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("store: schema: %w", err)
	}
	return nil
}
