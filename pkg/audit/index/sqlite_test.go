package index

import (
	"path/filepath"
	"testing"
	"time"

	"haven-hq/warden/pkg/audit"
)

func openTestIndex(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndQuery(t *testing.T) {
	s := openTestIndex(t)

	events := []*audit.Event{
		{
			Timestamp: "2026-08-28T10:00:00Z", EventType: "query",
			SessionID: "sess-1", DeviceID: "dev",
			Details:  map[string]any{"query": "hello"},
			Checksum: "aaaa000000000001", PrevChecksum: "genesis",
		},
		{
			Timestamp: "2026-08-28T10:01:00Z", EventType: "mode_change",
			SessionID: "sess-1", DeviceID: "dev",
			Details:  map[string]any{"to": "open"},
			Checksum: "aaaa000000000002", PrevChecksum: "aaaa000000000001",
		},
		{
			Timestamp: "2026-08-28T10:02:00Z", EventType: "query",
			SessionID: "sess-2", DeviceID: "dev",
			Details:  map[string]any{"query": "next"},
			Checksum: "aaaa000000000003", PrevChecksum: "aaaa000000000002",
		},
	}
	for _, e := range events {
		if err := s.Insert(e); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter audit.Filter
		want   int
	}{
		{"all", audit.Filter{}, 3},
		{"by type", audit.Filter{Types: []audit.EventType{"query"}}, 2},
		{"by session", audit.Filter{SessionID: "sess-2"}, 1},
		{"limit", audit.Filter{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(tt.filter)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Query() returned %d events, want %d", len(got), tt.want)
			}
		})
	}

	got, err := s.Query(audit.Filter{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got[0].Details["query"] != "hello" {
		t.Errorf("Details round trip = %v", got[0].Details)
	}
}

func TestQueryTimeRangeFractionalSeconds(t *testing.T) {
	s := openTestIndex(t)

	// The fractional-second timestamp sorts after the whole second as
	// text, so a text comparison would let it through a To bound of the
	// whole second.
	events := []*audit.Event{
		{
			Timestamp: "2026-08-28T10:00:00Z", EventType: "query",
			DeviceID: "dev", Details: map[string]any{},
			Checksum: "cccc000000000001", PrevChecksum: "genesis",
		},
		{
			Timestamp: "2026-08-28T10:00:00.5Z", EventType: "query",
			DeviceID: "dev", Details: map[string]any{},
			Checksum: "cccc000000000002", PrevChecksum: "cccc000000000001",
		},
		{
			Timestamp: "not-a-timestamp", EventType: "query",
			DeviceID: "dev", Details: map[string]any{},
			Checksum: "cccc000000000003", PrevChecksum: "cccc000000000002",
		},
	}
	for _, e := range events {
		if err := s.Insert(e); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	bound := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	got, err := s.Query(audit.Filter{To: bound})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0].Checksum != "cccc000000000001" {
		t.Errorf("Query(To=whole second) = %d events, want only the whole-second event", len(got))
	}

	got, err = s.Query(audit.Filter{From: bound.Add(100 * time.Millisecond)})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0].Checksum != "cccc000000000002" {
		t.Errorf("Query(From=+100ms) = %d events, want only the fractional-second event", len(got))
	}

	// Events with unparsable timestamps never match a time-bounded
	// query, same as the file scan.
	got, err = s.Query(audit.Filter{From: bound.Add(-time.Hour), To: bound.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Query(wide range) = %d events, want 2", len(got))
	}
}

func TestInsertDuplicateIgnored(t *testing.T) {
	s := openTestIndex(t)

	event := &audit.Event{
		Timestamp: "2026-08-28T10:00:00Z", EventType: "startup",
		DeviceID: "dev", Details: map[string]any{},
		Checksum: "bbbb000000000001", PrevChecksum: "genesis",
	}
	if err := s.Insert(event); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := s.Insert(event); err != nil {
		t.Fatalf("duplicate Insert() error = %v", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestRebuildFromLog(t *testing.T) {
	l, err := audit.Open(audit.Config{
		Path:     filepath.Join(t.TempDir(), "audit.jsonl"),
		DeviceID: "dev",
	})
	if err != nil {
		t.Fatalf("audit.Open() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := l.Append(audit.EventQuery, map[string]any{"n": i}, ""); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	s := openTestIndex(t)
	n, err := s.Rebuild(l)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Rebuild() = %d, want 5", n)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 5 {
		t.Errorf("Count() = %d, want 5", count)
	}

	// A second rebuild over the same log lands on the same contents.
	if _, err := s.Rebuild(l); err != nil {
		t.Fatalf("second Rebuild() error = %v", err)
	}
	count, _ = s.Count()
	if count != 5 {
		t.Errorf("Count() after second rebuild = %d, want 5", count)
	}
}
