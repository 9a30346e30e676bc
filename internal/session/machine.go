package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"triage-kiosk/internal/clock"
	"triage-kiosk/internal/core"
	"triage-kiosk/internal/db"
	"triage-kiosk/internal/sensor"
	"triage-kiosk/internal/triage"
	"triage-kiosk/pkg"
)

// State names one screen of the kiosk flow.
type State string

const (
	StateIdle        State = "idle"
	StateIdentify    State = "identify"
	StateBiometric   State = "biometric"
	StateTemperature State = "temperature"
	StateSaturation  State = "saturation"
	StatePressure    State = "pressure"
	StateSymptoms    State = "symptoms"
	StateClassified  State = "classified"
)

// ErrInvalidTransition is returned when a callback does not apply to the
// current state, e.g. confirming symptoms from the temperature screen.
var ErrInvalidTransition = errors.New("action not valid in current state")

// measureState maps a measurement kind to the state that collects it.
var measureState = map[sensor.Kind]State{
	sensor.KindTemperature: StateTemperature,
	sensor.KindSaturation:  StateSaturation,
	sensor.KindPressure:    StatePressure,
}

// nextMeasureState is the forward transition taken after a successful
// measurement.
var nextMeasureState = map[State]State{
	StateTemperature: StateSaturation,
	StateSaturation:  StatePressure,
	StatePressure:    StateSymptoms,
}

// Store is the slice of the persistence layer the session needs.
type Store interface {
	FindPersonByNationalID(ctx context.Context, nationalID string) (*pkg.Person, error)
	UpsertPatientRecord(ctx context.Context, rec *pkg.PatientRecord) error
}

// Config wires a Machine's collaborators and timing. Zero durations select
// the kiosk defaults.
type Config struct {
	Sensors    sensor.Source
	Classifier triage.Classifier
	Store      Store
	Events     Events
	Clock      clock.Clock
	Scheduler  Scheduler

	SensorTimeout   time.Duration // per sensor read, default 120s
	ScanDelay       time.Duration // biometric scan animation, default 3s
	AdvanceDelay    time.Duration // pause after a recorded measurement, default 2s
	ErrorClearDelay time.Duration // transient validation messages, default 2s
	StoreTimeout    time.Duration // per persistence call, default 10s
	UpsertAttempts  int           // bounded retries for record persistence, default 3
	RetryBackoff    time.Duration // delay between persistence retries, default 5s
}

// Machine sequences one kiosk session through the fixed screen order
// Idle → Identify → Biometric → Temperature → Saturation → Pressure →
// Symptoms → Classified, owning the person reference and the accumulating
// reading so nothing session-scoped lives in a global.
//
// All mutation happens under one mutex. Sensor reads run on their own
// goroutine and re-enter through completeMeasure, which re-acquires the lock
// and checks the session epoch: back-navigation and restart bump the epoch,
// so a completion from an abandoned read can never touch the session.
type Machine struct {
	mu  sync.Mutex
	cfg Config

	state      State
	epoch      uint64
	errSeq     uint64
	scanning   bool
	measuring  bool
	cancelRead context.CancelFunc

	visitID string
	person  *pkg.Person
	reading pkg.VitalSignsReading
	risk    pkg.RiskLevel
}

// New creates a Machine in the Idle state.
func New(cfg Config) *Machine {
	if cfg.SensorTimeout == 0 {
		cfg.SensorTimeout = 120 * time.Second
	}
	if cfg.ScanDelay == 0 {
		cfg.ScanDelay = 3 * time.Second
	}
	if cfg.AdvanceDelay == 0 {
		cfg.AdvanceDelay = 2 * time.Second
	}
	if cfg.ErrorClearDelay == 0 {
		cfg.ErrorClearDelay = 2 * time.Second
	}
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	if cfg.UpsertAttempts == 0 {
		cfg.UpsertAttempts = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewTimerScheduler()
	}
	return &Machine{cfg: cfg, state: StateIdle}
}

// Snapshot returns the current session context.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:     m.state,
		Scanning:  m.scanning,
		Measuring: m.measuring,
		VisitID:   m.visitID,
		Person:    m.person,
		Reading:   m.reading,
		Risk:      m.risk,
	}
}

// Begin starts a new visit, moving from Idle to Identify.
func (m *Machine) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return ErrInvalidTransition
	}
	m.visitID = uuid.New().String()
	m.state = StateIdentify
	m.cfg.Events.StateChanged(m.snapshotLocked())
	return nil
}

// IdentifySubmit normalizes the raw national ID and looks the person up.
// Format and lookup failures are reported as transient validation errors and
// leave the session in Identify.
func (m *Machine) IdentifySubmit(ctx context.Context, rawID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdentify {
		return ErrInvalidTransition
	}
	id, err := pkg.NormalizeNationalID(rawID)
	if err != nil {
		m.transientErrorLocked("CPF inválido! Deve conter 11 dígitos.")
		return nil
	}
	person, err := m.cfg.Store.FindPersonByNationalID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrPersonNotFound) {
			m.transientErrorLocked("CPF não encontrado!")
			return nil
		}
		log.Printf("person lookup failed: %v", err)
		m.transientErrorLocked(fmt.Sprintf("Erro de conexão: %v", err))
		return nil
	}
	m.person = person
	m.reading = pkg.VitalSignsReading{}
	m.risk = 0
	m.state = StateBiometric
	m.cfg.Events.StateChanged(m.snapshotLocked())
	return nil
}

// BiometricConfirm starts the scripted verification scan. After the scan
// delay the session advances to Temperature; no actual comparison happens,
// matching the kiosk hardware currently deployed.
func (m *Machine) BiometricConfirm() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateBiometric || m.scanning {
		return ErrInvalidTransition
	}
	m.scanning = true
	m.cfg.Events.StateChanged(m.snapshotLocked())
	epoch := m.epoch
	m.cfg.Scheduler.AfterFunc(m.cfg.ScanDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch != epoch || m.state != StateBiometric || !m.scanning {
			return
		}
		m.scanning = false
		m.state = StateTemperature
		m.cfg.Events.StateChanged(m.snapshotLocked())
	})
	return nil
}

// MeasureTrigger starts the sensor read for the current measurement screen.
// The read runs on its own goroutine; on success the value is recorded and
// the session auto-advances, on failure the session stays put for a retry.
func (m *Machine) MeasureTrigger(kind sensor.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	want, ok := measureState[kind]
	if !ok || m.state != want || m.measuring {
		return ErrInvalidTransition
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SensorTimeout)
	m.cancelRead = cancel
	m.measuring = true
	m.cfg.Events.StateChanged(m.snapshotLocked())
	go m.measure(ctx, cancel, m.epoch, kind)
	return nil
}

func (m *Machine) measure(ctx context.Context, cancel context.CancelFunc, epoch uint64, kind sensor.Kind) {
	defer cancel()
	var (
		display string
		apply   func(r *pkg.VitalSignsReading)
		err     error
	)
	switch kind {
	case sensor.KindTemperature:
		var v float64
		if v, err = m.cfg.Sensors.ReadTemperature(ctx); err == nil {
			display = fmt.Sprintf("%.1f°C", v)
			apply = func(r *pkg.VitalSignsReading) { r.Temperature = &v }
		}
	case sensor.KindSaturation:
		var v int
		if v, err = m.cfg.Sensors.ReadSaturation(ctx); err == nil {
			display = fmt.Sprintf("%d%%", v)
			apply = func(r *pkg.VitalSignsReading) { r.Saturation = &v }
		}
	case sensor.KindPressure:
		var v pkg.BloodPressure
		if v, err = m.cfg.Sensors.ReadPressure(ctx); err == nil {
			display = v.String()
			apply = func(r *pkg.VitalSignsReading) { r.Pressure = &v }
		}
	}
	m.completeMeasure(epoch, kind, display, apply, err)
}

// completeMeasure marshals a sensor completion back into the session. A
// stale epoch means the operator navigated away while the read was in
// flight; the result is dropped.
func (m *Machine) completeMeasure(epoch uint64, kind sensor.Kind, display string, apply func(r *pkg.VitalSignsReading), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return
	}
	m.measuring = false
	m.cancelRead = nil
	if err != nil {
		log.Printf("sensor read failed: %v", err)
		m.transientErrorLocked(fmt.Sprintf("Falha na medição: %v", err))
		return
	}
	apply(&m.reading)
	m.cfg.Events.MeasurementRecorded(kind, display)
	cur := m.state
	next := nextMeasureState[cur]
	m.cfg.Scheduler.AfterFunc(m.cfg.AdvanceDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch != epoch || m.state != cur {
			return
		}
		m.state = next
		m.cfg.Events.StateChanged(m.snapshotLocked())
	})
}

// SymptomsConfirm captures the selected symptoms, runs the classifier
// exactly once and, on success, moves to Classified and hands the record to
// the store. A classification failure is a contract violation: it is
// surfaced and returned, and nothing is persisted.
func (m *Machine) SymptomsConfirm(selected []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSymptoms {
		return ErrInvalidTransition
	}
	symptoms := make([]string, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, s := range selected {
		if !pkg.KnownSymptom(s) {
			m.transientErrorLocked(fmt.Sprintf("Sintoma desconhecido: %s", s))
			return nil
		}
		if !seen[s] {
			seen[s] = true
			symptoms = append(symptoms, s)
		}
	}
	m.reading.Symptoms = symptoms

	level, err := m.cfg.Classifier.Classify(&m.reading)
	if err != nil {
		log.Printf("classifier rejected reading for visit %s: %v", m.visitID, err)
		m.transientErrorLocked(err.Error())
		return err
	}
	m.risk = level
	m.state = StateClassified
	m.cfg.Events.StateChanged(m.snapshotLocked())
	m.cfg.Events.ClassificationReady(level, level.Color())

	now := m.cfg.Clock.Now()
	rec := pkg.PatientRecord{
		PersonID:    m.person.ID,
		Description: core.DescribeVisit(&m.reading),
		Temperature: *m.reading.Temperature,
		Saturation:  *m.reading.Saturation,
		Pressure:    *m.reading.Pressure,
		RiskLevel:   level,
		VisitDate:   now,
		VisitTime:   now,
	}
	go m.persistRecord(rec, 0)
	return nil
}

// persistRecord upserts the patient record with bounded retries. Persistence
// never blocks or cancels the operator-facing classification, but a failure
// is retried rather than dropped.
func (m *Machine) persistRecord(rec pkg.PatientRecord, attempt int) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StoreTimeout)
	defer cancel()
	err := m.cfg.Store.UpsertPatientRecord(ctx, &rec)
	if err == nil {
		return
	}
	if attempt+1 < m.cfg.UpsertAttempts {
		log.Printf("patient record upsert failed (attempt %d/%d): %v", attempt+1, m.cfg.UpsertAttempts, err)
		m.cfg.Scheduler.AfterFunc(m.cfg.RetryBackoff, func() {
			m.persistRecord(rec, attempt+1)
		})
		return
	}
	log.Printf("patient record upsert dropped after %d attempts: %v", m.cfg.UpsertAttempts, err)
}

// Back returns to the immediately preceding screen. The datum the re-entered
// screen collects is cleared so it is measured again, keeping the invariant
// that Classified is only reachable with a complete, current reading. Any
// in-flight sensor read is stopped.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateIdentify:
		m.clearVisitLocked()
		m.state = StateIdle
	case StateBiometric:
		m.person = nil
		m.state = StateIdentify
	case StateTemperature:
		m.state = StateBiometric
	case StateSaturation:
		m.reading.Temperature = nil
		m.state = StateTemperature
	case StatePressure:
		m.reading.Saturation = nil
		m.state = StateSaturation
	case StateSymptoms:
		m.reading.Pressure = nil
		m.state = StatePressure
	default:
		return ErrInvalidTransition
	}
	m.invalidateLocked()
	m.cfg.Events.StateChanged(m.snapshotLocked())
	return nil
}

// Restart aborts the session from any state and returns to Idle, clearing
// everything session-scoped so a stale reading cannot leak into the next
// visit.
func (m *Machine) Restart() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateLocked()
	m.clearVisitLocked()
	m.state = StateIdle
	m.cfg.Events.StateChanged(m.snapshotLocked())
	return nil
}

// invalidateLocked bumps the epoch and stops in-flight work so pending
// completions and scheduled advances become no-ops.
func (m *Machine) invalidateLocked() {
	m.epoch++
	if m.cancelRead != nil {
		m.cancelRead()
		m.cancelRead = nil
	}
	m.measuring = false
	m.scanning = false
}

func (m *Machine) clearVisitLocked() {
	m.visitID = ""
	m.person = nil
	m.reading = pkg.VitalSignsReading{}
	m.risk = 0
}

// transientErrorLocked emits a validation message and schedules it to clear,
// unless a newer message has replaced it in the meantime.
func (m *Machine) transientErrorLocked(msg string) {
	m.errSeq++
	seq := m.errSeq
	m.cfg.Events.ValidationError(msg)
	m.cfg.Scheduler.AfterFunc(m.cfg.ErrorClearDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.errSeq == seq {
			m.cfg.Events.ValidationError("")
		}
	})
}
