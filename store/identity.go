package store

import (
	"database/sql"
	"fmt"
)

// identityCache maps normalized names to their surrogate ids for one of the
// identity tables. The mapping is append-only during a run: once assigned, an
// id is never reused or changed, and rows are never deleted. Mutated only by
// the single consumer goroutine that owns the Store.
type identityCache struct {
	table string
	ids   map[string]int64
}

// loadIdentityCache reads the persisted table into memory at startup.
func loadIdentityCache(db *sql.DB, table string) (*identityCache, error) {
	rows, err := db.Query("select id, name from " + table)
	if err != nil {
		return nil, fmt.Errorf("store: load %s cache: %w", table, err)
	}
	defer rows.Close()

	cache := &identityCache{table: table, ids: make(map[string]int64)}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("store: scan %s row: %w", table, err)
		}
		cache.ids[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate %s rows: %w", table, err)
	}
	return cache, nil
}

// resolve returns the id for a name, creating the identity row on first
// sight. A persistence failure propagates as a hard failure for the enclosing
// event; the event cannot be safely stored without a valid identity. Identity
// creation is idempotent across retries (the name column is unique).
func (c *identityCache) resolve(db *sql.DB, name string) (int64, error) {
	if id, ok := c.ids[name]; ok {
		return id, nil
	}
	res, err := db.Exec("insert into "+c.table+" (name) values (?)", name)
	if err != nil {
		return 0, fmt.Errorf("store: create %s %q: %w", c.table, name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: %s id for %q: %w", c.table, name, err)
	}
	c.ids[name] = id
	return id, nil
}

// ResolveOperator maps an operator name to its stable id, creating it if
// needed.
func (s *Store) ResolveOperator(name string) (int64, error) {
	return s.operators.resolve(s.db, name)
}

// ResolveStation maps a station name to its stable id, creating it if needed.
func (s *Store) ResolveStation(name string) (int64, error) {
	return s.stations.resolve(s.db, name)
}
