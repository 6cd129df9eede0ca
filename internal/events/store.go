// Package events persists the durable, deduplicated log of delivered alerts
// in sqlite. The schema is managed by embedded migrations; stores created
// before the uniqueness constraint existed are collapsed once on open and
// constrained from then on.
package events

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// TimestampFormat is how event timestamps are stored: UTC ISO-8601 at second
// precision, which sorts lexicographically.
const TimestampFormat = "2006-01-02T15:04:05Z07:00"

// Event is one persisted alert. Immutable after insertion. Deduplication
// identity is (Timestamp, ClassName, FrameNumber, Zone).
type Event struct {
	ID           int64   `json:"id"`
	Timestamp    string  `json:"timestamp"`
	ClassName    string  `json:"class_name"`
	Confidence   float64 `json:"confidence"`
	FrameNumber  int64   `json:"frame_number"`
	Zone         string  `json:"zone"`
	SnapshotPath string  `json:"snapshot_path,omitempty"`
}

// Store is the sqlite-backed event log. The internal mutex serializes writes
// from the dispatch worker pool.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) the event store at path and brings its
// schema up to date. The parent directory is created when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate runs all pending embedded migrations.
func (s *Store) migrate() error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger routes golang-migrate output through the standard logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Insert appends an event. A duplicate of an existing
// (timestamp, class_name, frame_number, zone) tuple is an expected idempotent
// no-op: inserted is false and no error is returned. An empty timestamp is
// stamped with the current UTC time.
func (s *Store) Insert(e Event) (id int64, inserted bool, err error) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(TimestampFormat)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO events (timestamp, class_name, confidence, frame_number, zone, snapshot_path)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.ClassName, e.Confidence, e.FrameNumber, e.Zone, e.SnapshotPath,
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	id, err = res.LastInsertId()
	return id, true, err
}

// Recent returns the most recent events, newest first, capped at limit.
func (s *Store) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, timestamp, class_name, confidence, frame_number,
		        COALESCE(zone, ''), COALESCE(snapshot_path, '')
		 FROM events ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ClassName, &e.Confidence,
			&e.FrameNumber, &e.Zone, &e.SnapshotPath); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneOlderThan deletes events older than the given number of days and
// returns how many rows were removed.
func (s *Store) PruneOlderThan(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(TimestampFormat)
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Count returns the total number of stored events.
func (s *Store) Count() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}
