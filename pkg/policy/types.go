package policy

import "fmt"

// Mode is the operating mode of the appliance.
type Mode string

const (
	ModeEducation Mode = "education"
	ModeEmergency Mode = "emergency"
	ModeHybrid    Mode = "hybrid"
)

func modeNames() []string {
	return []string{string(ModeEducation), string(ModeEmergency), string(ModeHybrid)}
}

// ParseMode converts a string into a Mode, rejecting unknown values.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeEducation, ModeEmergency, ModeHybrid:
		return Mode(s), nil
	}
	return "", fmt.Errorf("policy: unknown mode %q", s)
}

// ReadingLevel is the audience level responses are adapted to.
type ReadingLevel string

const (
	ReadingChild     ReadingLevel = "child"
	ReadingTeen      ReadingLevel = "teen"
	ReadingGeneral   ReadingLevel = "general"
	ReadingTechnical ReadingLevel = "technical"
	ReadingExpert    ReadingLevel = "expert"
)

func readingLevelNames() []string {
	return []string{
		string(ReadingChild), string(ReadingTeen), string(ReadingGeneral),
		string(ReadingTechnical), string(ReadingExpert),
	}
}

func validReadingLevel(s string) bool {
	for _, name := range readingLevelNames() {
		if s == name {
			return true
		}
	}
	return false
}

// Violation severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Violation is one schema discrepancy found during validation.
type Violation struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Evaluation answers a capability question: whether the action is
// allowed, and if so whether an override key is needed and for which
// scope.
type Evaluation struct {
	Allowed     bool
	RequiresKey bool
	KeyScope    string
	Reason      string
	Warnings    []string
}

// DefaultSkipAuditorConfidence is the worker confidence a draft must
// exceed for the auditor pass to be skipped when the policy does not
// require one.
const DefaultSkipAuditorConfidence = 0.9
