package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"haven-hq/warden/pkg/audit"
)

// Exporter writes audit events to a destination in a concrete format.
type Exporter interface {
	Export(events []*audit.Event, w io.Writer) error
}

// JSONL exports events as newline-delimited JSON, the same record shape
// the log itself uses.
type JSONL struct{}

// Export writes one JSON object per line.
func (JSONL) Export(events []*audit.Event, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("export: encode event: %w", err)
		}
	}
	return nil
}

// WriteFile queries the log with the given filter and writes the matching
// events to path using the exporter. It returns the number of events
// written.
func WriteFile(l *audit.Log, path string, filter audit.Filter, e Exporter) (int, error) {
	if filter.Limit <= 0 {
		// Exports default to everything in range, not the query default.
		filter.Limit = int(^uint(0) >> 1)
	}

	events, err := l.Query(filter)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	if err := e.Export(events, f); err != nil {
		return 0, err
	}
	return len(events), nil
}
