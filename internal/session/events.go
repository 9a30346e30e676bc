package session

import (
	"time"

	"triage-kiosk/internal/sensor"
	"triage-kiosk/pkg"
)

// Snapshot is the externally visible session context handed to the
// presentation layer with every state change.
type Snapshot struct {
	State     State                 `json:"state"`
	Scanning  bool                  `json:"scanning,omitempty"`
	Measuring bool                  `json:"measuring,omitempty"`
	VisitID   string                `json:"visit_id,omitempty"`
	Person    *pkg.Person           `json:"person,omitempty"`
	Reading   pkg.VitalSignsReading `json:"reading"`
	Risk      pkg.RiskLevel         `json:"risk_level,omitempty"`
}

// Events is implemented by the presentation layer. Callbacks are invoked
// while the machine holds its lock, so implementations must not call back
// into the machine; they should record or forward and return.
type Events interface {
	StateChanged(snap Snapshot)
	// ValidationError carries a transient operator-facing message. An empty
	// message clears the previous one.
	ValidationError(message string)
	MeasurementRecorded(kind sensor.Kind, value string)
	ClassificationReady(level pkg.RiskLevel, color string)
}

// Scheduler defers work without the machine owning timers directly, so tests
// can drive delays by hand.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timerScheduler struct{}

// NewTimerScheduler returns a Scheduler backed by time.AfterFunc.
func NewTimerScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}
