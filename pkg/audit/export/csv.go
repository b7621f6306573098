package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"haven-hq/warden/pkg/audit"
)

// CSV exports events as comma-separated values with a header row.
// The details map is serialized as a JSON string in a single column.
type CSV struct{}

// csvHeader is the fixed column order for CSV exports.
var csvHeader = []string{
	"timestamp",
	"event_type",
	"session_id",
	"device_id",
	"details",
	"checksum",
	"previous_checksum",
}

// Export writes the header row followed by one row per event.
func (CSV) Export(events []*audit.Event, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}

	for _, event := range events {
		details, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("export: marshal details: %w", err)
		}
		row := []string{
			event.Timestamp,
			event.EventType,
			event.SessionID,
			event.DeviceID,
			string(details),
			event.Checksum,
			event.PrevChecksum,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
