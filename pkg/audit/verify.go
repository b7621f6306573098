package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyIntegrity replays the entire log from genesis and checks, for
// every record, that its previous_checksum links to the prior record and
// that its stored checksum matches a fresh recomputation. It never aborts
// early: a corrupted or hand-edited log yields an ordered list of
// line-numbered issues, one per discrepancy.
//
// A missing or empty log is trivially valid.
func (l *Log) VerifyIntegrity() (bool, []Issue, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return true, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("audit: open log for verification: %w", err)
	}
	defer f.Close()

	var issues []Issue
	prev := GenesisChecksum
	lineNo := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lineNo++

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			issues = append(issues, Issue{
				Line:    lineNo,
				Kind:    IssueUnparsable,
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			// The chain cannot be followed through an unparsable record;
			// subsequent records are checked against an unknown head and
			// will report broken links, which is the desired signal.
			prev = ""
			continue
		}

		if event.PrevChecksum != prev {
			issues = append(issues, Issue{
				Line:    lineNo,
				Kind:    IssueBrokenChain,
				Message: fmt.Sprintf("previous_checksum %q does not match prior record checksum %q", event.PrevChecksum, prev),
			})
		}

		computed, err := computeChecksum(&event)
		if err != nil {
			issues = append(issues, Issue{
				Line:    lineNo,
				Kind:    IssueChecksumMismatch,
				Message: fmt.Sprintf("checksum recomputation failed: %v", err),
			})
		} else if computed != event.Checksum {
			issues = append(issues, Issue{
				Line:    lineNo,
				Kind:    IssueChecksumMismatch,
				Message: fmt.Sprintf("stored checksum %q does not match recomputed %q", event.Checksum, computed),
			})
		}

		prev = event.Checksum
	}
	if err := scanner.Err(); err != nil {
		return false, issues, fmt.Errorf("audit: scan log for verification: %w", err)
	}

	return len(issues) == 0, issues, nil
}
