package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	// DefaultQueryLimit caps query results when the filter does not set one.
	DefaultQueryLimit = 1000

	// maxLineBytes bounds a single log line for the scanner. Strict
	// redaction keeps lines small; this is headroom for none-level logs.
	maxLineBytes = 4 * 1024 * 1024
)

// Query scans the log and returns events matching the filter, in the
// file's natural (append) order, stopping once the limit is reached.
// Unparsable lines are skipped; VerifyIntegrity is the tool that reports
// them.
func (l *Log) Query(filter Filter) ([]*Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: open log for query: %w", err)
	}
	defer f.Close()

	var results []*Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if len(results) >= limit {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}

		if !matches(&event, &filter) {
			continue
		}
		e := event
		results = append(results, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan log for query: %w", err)
	}

	return results, nil
}

// matches reports whether an event passes every set filter field.
func matches(event *Event, filter *Filter) bool {
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if event.EventType == string(t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.SessionID != "" && event.SessionID != filter.SessionID {
		return false
	}

	if !filter.From.IsZero() || !filter.To.IsZero() {
		ts, err := time.Parse(time.RFC3339Nano, event.Timestamp)
		if err != nil {
			return false
		}
		if !filter.From.IsZero() && ts.Before(filter.From) {
			return false
		}
		if !filter.To.IsZero() && ts.After(filter.To) {
			return false
		}
	}

	return true
}

// Stats walks the log once and summarizes it, including a full integrity
// verification pass.
func (l *Log) Stats() (*Stats, error) {
	stats := &Stats{ByType: map[string]int{}}

	info, err := os.Stat(l.path)
	if os.IsNotExist(err) {
		stats.IntegrityOK = true
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: stat log: %w", err)
	}
	stats.SizeBytes = info.Size()

	events, err := l.Query(Filter{Limit: int(^uint(0) >> 1)})
	if err != nil {
		return nil, err
	}
	for _, event := range events {
		stats.ByType[event.EventType]++
		stats.Events++
	}

	ok, _, err := l.VerifyIntegrity()
	if err != nil {
		return nil, err
	}
	stats.IntegrityOK = ok

	return stats, nil
}
