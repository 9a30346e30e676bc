package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"triage-kiosk/pkg"
)

// SerialSource reads vitals from a line-oriented instrument attached to a
// serial device. The instrument emits readings as KEY=VALUE lines, e.g.
// "TEMP=36.5", "SPO2=98", "BP=120/80"; a read waits for the first line
// carrying the requested key.
type SerialSource struct {
	DevicePath string

	// Open overrides how the device is opened; tests substitute an in-memory
	// stream. Nil means open DevicePath directly.
	Open func(path string) (io.ReadCloser, error)
}

// NewSerialSource creates a source reading from the device at path.
func NewSerialSource(path string) *SerialSource {
	return &SerialSource{DevicePath: path}
}

func (s *SerialSource) ReadTemperature(ctx context.Context) (float64, error) {
	raw, err := s.readValue(ctx, KindTemperature, "TEMP")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &Error{Kind: KindTemperature, Err: fmt.Errorf("bad value %q: %w", raw, err)}
	}
	return v, nil
}

func (s *SerialSource) ReadSaturation(ctx context.Context) (int, error) {
	raw, err := s.readValue(ctx, KindSaturation, "SPO2")
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &Error{Kind: KindSaturation, Err: fmt.Errorf("bad value %q: %w", raw, err)}
	}
	return v, nil
}

func (s *SerialSource) ReadPressure(ctx context.Context) (pkg.BloodPressure, error) {
	raw, err := s.readValue(ctx, KindPressure, "BP")
	if err != nil {
		return pkg.BloodPressure{}, err
	}
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return pkg.BloodPressure{}, &Error{Kind: KindPressure, Err: fmt.Errorf("bad value %q", raw)}
	}
	sys, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return pkg.BloodPressure{}, &Error{Kind: KindPressure, Err: fmt.Errorf("bad value %q: %w", raw, err)}
	}
	dia, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return pkg.BloodPressure{}, &Error{Kind: KindPressure, Err: fmt.Errorf("bad value %q: %w", raw, err)}
	}
	return pkg.BloodPressure{Systolic: sys, Diastolic: dia}, nil
}

// readValue opens the device and scans lines until one carries key. The scan
// runs in its own goroutine so a stalled device honors ctx cancellation; the
// device is closed either way, which also unblocks the scanner.
func (s *SerialSource) readValue(ctx context.Context, kind Kind, key string) (string, error) {
	open := s.Open
	if open == nil {
		open = func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		}
	}
	dev, err := open(s.DevicePath)
	if err != nil {
		return "", &Error{Kind: kind, Err: err}
	}

	type result struct {
		value string
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		defer dev.Close()
		scanner := bufio.NewScanner(dev)
		prefix := key + "="
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if strings.HasPrefix(line, prefix) {
				ch <- result{value: strings.TrimPrefix(line, prefix)}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{err: io.EOF}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", &Error{Kind: kind, Err: r.err}
		}
		return r.value, nil
	case <-ctx.Done():
		dev.Close()
		return "", &Error{Kind: kind, Err: ctx.Err()}
	}
}
