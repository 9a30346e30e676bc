package sensor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSimulatedReadingsStayInRange(t *testing.T) {
	src := NewSimulatedSource(1, time.Millisecond, 2*time.Millisecond)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		temp, err := src.ReadTemperature(ctx)
		if err != nil {
			t.Fatalf("ReadTemperature: %v", err)
		}
		if temp < 35.0 || temp >= 40.0 {
			t.Errorf("temperature %.1f outside simulated range", temp)
		}
		sat, err := src.ReadSaturation(ctx)
		if err != nil {
			t.Fatalf("ReadSaturation: %v", err)
		}
		if sat < 90 || sat > 100 {
			t.Errorf("saturation %d outside simulated range", sat)
		}
		bp, err := src.ReadPressure(ctx)
		if err != nil {
			t.Fatalf("ReadPressure: %v", err)
		}
		if bp.Systolic < 100 || bp.Systolic > 160 || bp.Diastolic < 60 || bp.Diastolic > 100 {
			t.Errorf("pressure %s outside simulated range", bp)
		}
	}
}

func TestSimulatedHonorsCancellation(t *testing.T) {
	src := NewSimulatedSource(1, time.Minute, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.ReadTemperature(ctx)
	var sensorErr *Error
	if !errors.As(err, &sensorErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if sensorErr.Kind != KindTemperature {
		t.Errorf("kind = %q, want temperature", sensorErr.Kind)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cause = %v, want context.Canceled", err)
	}
}
