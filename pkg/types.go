package pkg

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// RiskLevel is the ordinal outcome of triage. The odd numbering (1/3/5)
// reserves 2 and 4 for a finer scale that is not currently used.
type RiskLevel int

const (
	RiskGreen  RiskLevel = 1
	RiskYellow RiskLevel = 3
	RiskRed    RiskLevel = 5
)

// Color returns the operator-facing color for a risk level.
func (r RiskLevel) Color() string {
	switch r {
	case RiskGreen:
		return "green"
	case RiskYellow:
		return "yellow"
	case RiskRed:
		return "red"
	}
	return "unknown"
}

func (r RiskLevel) String() string {
	return fmt.Sprintf("%s(%d)", r.Color(), int(r))
}

// The fixed symptom catalog presented on the symptoms screen. The catalog is
// closed: selections outside it are rejected before classification.
const (
	SymptomFever           = "Febre"
	SymptomCough           = "Tosse"
	SymptomHeadache        = "Dor de cabeça"
	SymptomShortnessBreath = "Falta de ar"
	SymptomFatigue         = "Cansaço"
	SymptomBodyAche        = "Dor no corpo"
	SymptomNausea          = "Náusea"
)

// SymptomCatalog lists the seven selectable symptoms in display order.
var SymptomCatalog = []string{
	SymptomFever,
	SymptomCough,
	SymptomHeadache,
	SymptomShortnessBreath,
	SymptomFatigue,
	SymptomBodyAche,
	SymptomNausea,
}

// KnownSymptom reports whether label belongs to the catalog.
func KnownSymptom(label string) bool {
	for _, s := range SymptomCatalog {
		if s == label {
			return true
		}
	}
	return false
}

// Person is an identity record created by an external registration process.
// The session flow looks people up by national ID and never mutates them.
type Person struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	NationalID string    `json:"national_id"`
	BirthDate  time.Time `json:"birth_date"`
	Sex        string    `json:"sex"`
	CardNumber string    `json:"card_number"`
}

// BloodPressure is an ordered systolic/diastolic pair in mmHg.
type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

func (p BloodPressure) String() string {
	return fmt.Sprintf("%d/%d", p.Systolic, p.Diastolic)
}

// VitalSignsReading accumulates the four triage inputs for one visit. Vital
// fields are pointers so an unmeasured value is distinguishable from zero.
type VitalSignsReading struct {
	Temperature *float64       `json:"temperature,omitempty"`
	Saturation  *int           `json:"saturation,omitempty"`
	Pressure    *BloodPressure `json:"pressure,omitempty"`
	Symptoms    []string       `json:"symptoms,omitempty"`
}

// Complete reports whether every measured vital has been recorded. Symptoms
// may legitimately be empty, so they do not count toward completeness.
func (r *VitalSignsReading) Complete() bool {
	return r.Temperature != nil && r.Saturation != nil && r.Pressure != nil
}

// PatientRecord is the persisted outcome of one classification. At most one
// record exists per person; a later visit overwrites it in place.
type PatientRecord struct {
	PersonID    int64         `json:"person_id"`
	Description string        `json:"description"`
	Temperature float64       `json:"temperature"`
	Saturation  int           `json:"saturation"`
	Pressure    BloodPressure `json:"pressure"`
	RiskLevel   RiskLevel     `json:"risk_level"`
	VisitDate   time.Time     `json:"visit_date"`
	VisitTime   time.Time     `json:"visit_time"`
}

// ErrInvalidNationalID is returned when a raw identifier does not contain
// exactly 11 digits after normalization.
var ErrInvalidNationalID = errors.New("national ID must contain exactly 11 digits")

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeNationalID strips formatting characters from a raw national ID and
// validates its length, so "529.982.247-25" and "52998224725" resolve to the
// same lookup key.
func NormalizeNationalID(raw string) (string, error) {
	id := nonDigits.ReplaceAllString(raw, "")
	if len(id) != 11 {
		return "", ErrInvalidNationalID
	}
	return id, nil
}
