// Package sqliteutil provides a bounded health check for SQLite files before
// the main open path. A database left behind by a crash can stall or corrupt
// startup; the preflight runs a WAL checkpoint and quick_check under a
// timeout and quarantines the file when either fails, so the collector can
// continue with a fresh database instead of refusing to start mid-contest.
package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Result reports the outcome of a preflight check.
type Result struct {
	Healthy        bool
	Quarantined    bool
	QuarantinePath string
	Elapsed        time.Duration
}

// Preflight checks the database at path. role is used in log lines only. On
// corruption it renames the database and its sidecar files to a timestamped
// quarantine path and reports Quarantined; the caller proceeds with a fresh
// file. A timeout is returned as an error because a wedged file would stall
// every later open as well.
func Preflight(path, role string, timeout time.Duration, logf func(string, ...any)) (Result, error) {
	if logf == nil {
		logf = log.Printf
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	res := Result{}
	if strings.TrimSpace(path) == "" {
		return res, errors.New("preflight: empty path")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Nothing to check; the schema setup will create it.
		res.Healthy = true
		return res, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("preflight: ensure dir: %w", err)
	}

	start := time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return res, fmt.Errorf("preflight: open %s db: %w", role, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, checkpointErr := db.ExecContext(ctx, "pragma wal_checkpoint(TRUNCATE)")
	checkErr := quickCheck(ctx, db)
	res.Elapsed = time.Since(start)

	if checkpointErr == nil && checkErr == nil {
		res.Healthy = true
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("preflight: %s db timed out after %s", role, timeout)
	}

	_ = db.Close()
	quarantinePath, err := quarantine(path)
	if err != nil {
		return res, fmt.Errorf("preflight: %s db quarantine failed: %w (checkpoint=%v, quick_check=%v)",
			role, err, checkpointErr, checkErr)
	}
	res.Quarantined = true
	res.QuarantinePath = quarantinePath
	logf("%s db preflight failed (checkpoint=%v, quick_check=%v); quarantined to %s",
		role, checkpointErr, checkErr, quarantinePath)
	return res, nil
}

func quickCheck(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("quick_check reported %q", status)
		}
	}
	return rows.Err()
}

// quarantine renames the main file and any sidecars out of the way.
func quarantine(path string) (string, error) {
	ts := time.Now().UTC().Format("20060102T150405Z")
	dest := fmt.Sprintf("%s.bad-%s", path, ts)
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := os.Rename(p, p+".bad-"+ts); err != nil {
			return "", err
		}
	}
	return dest, nil
}
