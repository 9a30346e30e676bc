package sensor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"triage-kiosk/pkg"
)

// SimulatedSource produces randomized but plausible readings after a short
// delay, standing in for the kiosk's instruments during development and
// demos.
type SimulatedSource struct {
	mu       sync.Mutex
	rng      *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration
}

// NewSimulatedSource creates a simulated source seeded with seed. Readings
// complete after a uniform delay in [minDelay, maxDelay].
func NewSimulatedSource(seed int64, minDelay, maxDelay time.Duration) *SimulatedSource {
	if minDelay <= 0 {
		minDelay = 3 * time.Second
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimulatedSource{
		rng:      rand.New(rand.NewSource(seed)),
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (s *SimulatedSource) ReadTemperature(ctx context.Context) (float64, error) {
	if err := s.wait(ctx, KindTemperature); err != nil {
		return 0, err
	}
	s.mu.Lock()
	// 35.0–39.9 °C, one decimal place like a clinical thermometer.
	v := 35.0 + float64(s.rng.Intn(50))/10.0
	s.mu.Unlock()
	return v, nil
}

func (s *SimulatedSource) ReadSaturation(ctx context.Context) (int, error) {
	if err := s.wait(ctx, KindSaturation); err != nil {
		return 0, err
	}
	s.mu.Lock()
	v := 90 + s.rng.Intn(11) // 90–100%
	s.mu.Unlock()
	return v, nil
}

func (s *SimulatedSource) ReadPressure(ctx context.Context) (pkg.BloodPressure, error) {
	if err := s.wait(ctx, KindPressure); err != nil {
		return pkg.BloodPressure{}, err
	}
	s.mu.Lock()
	bp := pkg.BloodPressure{
		Systolic:  100 + s.rng.Intn(61), // 100–160
		Diastolic: 60 + s.rng.Intn(41),  // 60–100
	}
	s.mu.Unlock()
	return bp, nil
}

func (s *SimulatedSource) wait(ctx context.Context, kind Kind) error {
	s.mu.Lock()
	d := s.minDelay
	if span := s.maxDelay - s.minDelay; span > 0 {
		d += time.Duration(s.rng.Int63n(int64(span)))
	}
	s.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return &Error{Kind: kind, Err: ctx.Err()}
	}
}
