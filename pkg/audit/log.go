package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// GenesisChecksum is the predecessor marker for the first record.
	GenesisChecksum = "genesis"

	// ChecksumLength is the number of hex characters kept from the SHA-256
	// digest for the chain checksum.
	ChecksumLength = 16
)

// Indexer receives every appended event. Implementations mirror the chain
// log into a secondary store for fast filtered queries; the JSONL file
// remains the source of truth for the chain.
type Indexer interface {
	Insert(event *Event) error
}

// Config contains configuration for the audit log.
type Config struct {
	// Path is the backing JSONL file.
	Path string

	// DeviceID stamps every event with the appliance identity.
	DeviceID string

	// Redaction is the redaction level applied to event details.
	Redaction RedactionLevel

	// Indexer, if set, receives a copy of every appended event.
	// Index failures are logged, never surfaced to the append caller.
	Indexer Indexer
}

// Log is the append-only, hash-chained audit log. It owns exclusive write
// access to its backing file; concurrent writers serialize on an internal
// lock so the checksum chain is never interleaved.
type Log struct {
	mu       sync.Mutex
	path     string
	deviceID string
	level    RedactionLevel
	indexer  Indexer
	head     string
	count    int
	logger   *slog.Logger
}

// Open creates or reopens an audit log at cfg.Path. For an existing log
// the chain head is recovered from the last record so new appends continue
// the same chain; a missing or empty log starts from the genesis marker.
func Open(cfg Config) (*Log, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit: log path is required")
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = "unknown"
	}
	if cfg.Redaction == "" {
		cfg.Redaction = RedactionStandard
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("audit: create log directory: %w", err)
		}
	}

	l := &Log{
		path:     cfg.Path,
		deviceID: cfg.DeviceID,
		level:    cfg.Redaction,
		indexer:  cfg.Indexer,
		head:     GenesisChecksum,
		logger:   slog.Default().With("component", "audit.log"),
	}

	if err := l.recoverHead(); err != nil {
		return nil, err
	}

	l.logger.Info("audit log opened",
		"path", cfg.Path,
		"redaction", cfg.Redaction,
		"chain_head", l.head,
	)

	return l, nil
}

// recoverHead reads the last record of an existing log file and adopts its
// checksum as the chain head. Unparsable trailing content leaves the head
// at genesis; verification will report the damage explicitly.
func (l *Log) recoverHead() error {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("audit: open log for head recovery: %w", err)
	}
	defer f.Close()

	var lastLine []byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			lastLine = append(lastLine[:0], scanner.Bytes()...)
			l.count++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("audit: scan log for head recovery: %w", err)
	}

	if len(lastLine) == 0 {
		return nil
	}

	var last Event
	if err := json.Unmarshal(lastLine, &last); err != nil {
		l.logger.Warn("last audit record unparsable, chain head reset to genesis",
			"error", err,
		)
		return nil
	}
	if last.Checksum != "" {
		l.head = last.Checksum
	}
	return nil
}

// Append records a single audit event. It redacts the details, stamps a
// UTC timestamp, chains the checksum to the current head, writes one JSON
// line, and advances the head. The whole sequence is one critical section
// shared by all writers.
//
// A write failure is returned to the caller: a silently lost record would
// defeat the tamper-evidence guarantee.
func (l *Log) Append(eventType EventType, details map[string]any, sessionID string) (*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if details == nil {
		details = map[string]any{}
	}

	event := &Event{
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		EventType:    string(eventType),
		SessionID:    sessionID,
		DeviceID:     l.deviceID,
		Details:      redactDetails(details, l.level),
		PrevChecksum: l.head,
	}

	// Canonicalize the details through a JSON round trip so the checksum
	// computed now matches a recomputation from the parsed record later.
	canonical, err := canonicalDetails(event.Details)
	if err != nil {
		return nil, fmt.Errorf("audit: canonicalize details: %w", err)
	}
	event.Details = canonical

	checksum, err := computeChecksum(event)
	if err != nil {
		return nil, fmt.Errorf("audit: compute checksum: %w", err)
	}
	event.Checksum = checksum

	line, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal event: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("audit: open log for append: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return nil, fmt.Errorf("audit: write event: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("audit: close log after append: %w", err)
	}

	l.head = event.Checksum
	l.count++

	if l.indexer != nil {
		if err := l.indexer.Insert(event); err != nil {
			l.logger.Warn("audit index insert failed",
				"event_type", event.EventType,
				"error", err,
			)
		}
	}

	return event, nil
}

// Head returns the current chain head checksum.
func (l *Log) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

// Path returns the backing file path.
func (l *Log) Path() string {
	return l.path
}

// AppendFunc returns a callback bound to this log for components that take
// a pluggable audit hook. Append errors are logged; hook call sites treat
// auditing as fire-and-forget while the primary Append path still surfaces
// failures to direct callers.
func (l *Log) AppendFunc(sessionID string) func(eventType EventType, details map[string]any) {
	return func(eventType EventType, details map[string]any) {
		if _, err := l.Append(eventType, details, sessionID); err != nil {
			l.logger.Error("audit append failed",
				"event_type", eventType,
				"error", err,
			)
		}
	}
}

// computeChecksum hashes the canonical serialization of the event minus
// its own checksum, concatenated with the previous checksum.
func computeChecksum(event *Event) (string, error) {
	canonical, err := canonicalEventBytes(event)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(append(canonical, []byte(event.PrevChecksum)...))
	return hex.EncodeToString(sum[:])[:ChecksumLength], nil
}

// canonicalEventBytes serializes every event field except the checksum as
// a JSON object with lexically sorted keys.
func canonicalEventBytes(event *Event) ([]byte, error) {
	// encoding/json sorts map keys, which gives the canonical ordering.
	return json.Marshal(map[string]any{
		"timestamp":         event.Timestamp,
		"event_type":        event.EventType,
		"session_id":        event.SessionID,
		"device_id":         event.DeviceID,
		"details":           event.Details,
		"previous_checksum": event.PrevChecksum,
	})
}

// canonicalDetails round-trips the details through JSON so that numeric
// and nested values take the exact representation they will have when the
// record is parsed back from the log.
func canonicalDetails(details map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
