package triage

import (
	"fmt"
	"strings"

	"triage-kiosk/pkg"
)

// Classifier assigns a risk level to one visit's vital signs and symptoms.
type Classifier interface {
	// Classify evaluates a completed reading and returns a risk level, or a
	// *MalformedReadingError when a required vital is missing.
	Classify(reading *pkg.VitalSignsReading) (pkg.RiskLevel, error)
}

// MalformedReadingError reports a classification attempt on an incomplete
// reading. The state machine enforces completeness before classifying, so
// seeing this error means a contract violation, not a user mistake.
type MalformedReadingError struct {
	Missing []string
}

func (e *MalformedReadingError) Error() string {
	return fmt.Sprintf("malformed reading: missing %s", strings.Join(e.Missing, ", "))
}
