package sensor

import (
	"context"
	"fmt"

	"triage-kiosk/pkg"
)

// Kind names one of the three measurements a source can take.
type Kind string

const (
	KindTemperature Kind = "temperature"
	KindSaturation  Kind = "saturation"
	KindPressure    Kind = "pressure"
)

// Source supplies vital-sign readings. Each call blocks until the reading is
// available, the context is done, or the device fails; implementations can
// take seconds (simulated) to minutes (live instrument) to answer.
type Source interface {
	ReadTemperature(ctx context.Context) (float64, error)
	ReadSaturation(ctx context.Context) (int, error)
	ReadPressure(ctx context.Context) (pkg.BloodPressure, error)
}

// Error wraps a device or timeout failure for one measurement kind. The
// session keeps the operator on the same screen so the measurement can be
// retried.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s sensor: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
