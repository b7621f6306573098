package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"haven-hq/warden/pkg/audit"
)

// schema is the index table layout. The checksum column is unique: a
// rebuild over an unchanged log is idempotent. ts_unix carries the
// timestamp as Unix nanoseconds for range comparisons; the RFC 3339
// text would compare lexicographically, which misorders fractional
// seconds against whole ones. NULL marks an unparsable timestamp,
// which time-bounded queries exclude just as the file scan does.
const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	checksum          TEXT PRIMARY KEY,
	previous_checksum TEXT NOT NULL,
	timestamp         TEXT NOT NULL,
	ts_unix           INTEGER,
	event_type        TEXT NOT NULL,
	session_id        TEXT NOT NULL DEFAULT '',
	device_id         TEXT NOT NULL,
	details           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_events_session ON audit_events(session_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_ts_unix ON audit_events(ts_unix);
`

// SQLite is a rebuildable SQLite mirror of the audit log.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the index database at path and ensures the schema
// exists.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("index: open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: create schema: %w", err)
	}

	s := &SQLite{
		db:     db,
		logger: slog.Default().With("component", "audit.index"),
	}
	s.logger.Info("audit index opened", "path", path)
	return s, nil
}

// Insert mirrors a single event into the index. It implements
// audit.Indexer. Duplicate checksums are ignored so rebuilds and
// insert-on-append can coexist.
func (s *SQLite) Insert(event *audit.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("index: marshal details: %w", err)
	}

	var tsUnix any
	if ts, err := time.Parse(time.RFC3339Nano, event.Timestamp); err == nil {
		tsUnix = ts.UnixNano()
	}

	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO audit_events
			(checksum, previous_checksum, timestamp, ts_unix, event_type, session_id, device_id, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Checksum, event.PrevChecksum, event.Timestamp, tsUnix,
		event.EventType, event.SessionID, event.DeviceID, string(details),
	)
	if err != nil {
		return fmt.Errorf("index: insert event: %w", err)
	}
	return nil
}

// Rebuild drops the index contents and repopulates them from the log file.
func (s *SQLite) Rebuild(l *audit.Log) (int, error) {
	if _, err := s.db.Exec("DELETE FROM audit_events"); err != nil {
		return 0, fmt.Errorf("index: clear for rebuild: %w", err)
	}

	events, err := l.Query(audit.Filter{Limit: int(^uint(0) >> 1)})
	if err != nil {
		return 0, err
	}
	for _, event := range events {
		if err := s.Insert(event); err != nil {
			return 0, err
		}
	}

	s.logger.Info("audit index rebuilt", "events", len(events))
	return len(events), nil
}

// Query returns indexed events matching the filter, ordered by insertion.
func (s *SQLite) Query(filter audit.Filter) ([]*audit.Event, error) {
	var (
		where []string
		args  []any
	)

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "event_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if !filter.From.IsZero() {
		where = append(where, "ts_unix >= ?")
		args = append(args, filter.From.UnixNano())
	}
	if !filter.To.IsZero() {
		where = append(where, "ts_unix <= ?")
		args = append(args, filter.To.UnixNano())
	}

	query := "SELECT checksum, previous_checksum, timestamp, event_type, session_id, device_id, details FROM audit_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"

	limit := filter.Limit
	if limit <= 0 {
		limit = audit.DefaultQueryLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query events: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var (
			event   audit.Event
			details string
		)
		if err := rows.Scan(&event.Checksum, &event.PrevChecksum, &event.Timestamp,
			&event.EventType, &event.SessionID, &event.DeviceID, &details); err != nil {
			return nil, fmt.Errorf("index: scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &event.Details); err != nil {
			return nil, fmt.Errorf("index: unmarshal details: %w", err)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// Count returns the number of indexed events.
func (s *SQLite) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM audit_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count events: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
