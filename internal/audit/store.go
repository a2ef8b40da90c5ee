// Package audit persists MAC discovery/eviction/cycle-size-change
// history to an embedded SQLite database, and high-frequency tick
// firings to an embedded Pebble LSM store. Both stores are optional and
// nil-safe: a failing write is logged and dropped, never propagated to
// the MAC core (spec.md §7's "no condition raises to the caller as a
// fault" applies equally to this supplemental persistence layer).
package audit

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// EventKind distinguishes the row kinds stored in the history table.
type EventKind string

const (
	EventDiscovery   EventKind = "discovery"
	EventEviction    EventKind = "eviction"
	EventCycleChange EventKind = "cycle_change"
)

// Store persists discovery/eviction/cycle-size-change history to an
// embedded SQLite database, grounded on peer/topology.go's
// openTopologyStore/schema pattern.
type Store struct {
	db        *sql.DB
	retention time.Duration
	logger    *log.Logger
}

// OpenStore opens (creating if needed) a SQLite-backed audit store at path.
func OpenStore(path string, retention time.Duration, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "audit: mkdir %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "audit: open %s", path)
	}
	if _, err := db.Exec(`pragma journal_mode=WAL;`); err != nil {
		return nil, errors.Wrap(err, "audit: set WAL mode")
	}
	if err := ensureHistorySchema(db); err != nil {
		return nil, errors.Wrap(err, "audit: schema")
	}
	return &Store{db: db, retention: retention, logger: logger}, nil
}

func ensureHistorySchema(db *sql.DB) error {
	schema := `
	create table if not exists mac_history (
		id integer primary key autoincrement,
		kind text not null,
		src integer not null,
		cycle_length integer not null,
		slot_count integer not null,
		at integer not null
	);
	create index if not exists idx_mac_history_at on mac_history(at);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordDiscovery implements mac.AuditSink.
func (s *Store) RecordDiscovery(src int, at time.Time) {
	s.insert(EventDiscovery, src, 0, 0, at)
}

// RecordEviction implements mac.AuditSink.
func (s *Store) RecordEviction(src int, at time.Time) {
	s.insert(EventEviction, src, 0, 0, at)
}

// RecordCycleChange implements mac.AuditSink.
func (s *Store) RecordCycleChange(cycleLength, slotCount int, at time.Time) {
	s.insert(EventCycleChange, 0, cycleLength, slotCount, at)
}

func (s *Store) insert(kind EventKind, src, cycleLength, slotCount int, at time.Time) {
	if s == nil || s.db == nil {
		return
	}
	_, err := s.db.Exec(
		`insert into mac_history(kind, src, cycle_length, slot_count, at) values(?,?,?,?,?)`,
		string(kind), src, cycleLength, slotCount, at.UTC().Unix(),
	)
	if err != nil {
		s.logger.Printf("audit: insert %s failed: %v", kind, err)
	}
}

// HistoryRow is one row returned by History.
type HistoryRow struct {
	Kind       EventKind
	Src        int
	CycleLen   int
	SlotCount  int
	At         time.Time
}

// History returns audit rows at or after since, most recent last.
func (s *Store) History(since time.Time) ([]HistoryRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.Query(
		`select kind, src, cycle_length, slot_count, at from mac_history where at >= ? order by at asc`,
		since.UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var kind string
		var r HistoryRow
		var at int64
		if err := rows.Scan(&kind, &r.Src, &r.CycleLen, &r.SlotCount, &at); err != nil {
			return nil, err
		}
		r.Kind = EventKind(kind)
		r.At = time.Unix(at, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes rows older than the store's retention window.
func (s *Store) Prune(now time.Time) {
	if s == nil || s.db == nil || s.retention <= 0 {
		return
	}
	cutoff := now.Add(-s.retention).UTC().Unix()
	if _, err := s.db.Exec(`delete from mac_history where at < ?`, cutoff); err != nil {
		s.logger.Printf("audit: prune failed: %v", err)
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
