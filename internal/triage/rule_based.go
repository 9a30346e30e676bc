package triage

import (
	"triage-kiosk/pkg"
)

// Config carries the vital-sign thresholds used by the rule-based
// classifier. Zero values select the clinical defaults.
type Config struct {
	MinTemperature float64 // below this is critical
	MaxTemperature float64 // at or above this is critical
	MinSaturation  int     // below this is critical
	MinSystolic    int
	MaxSystolic    int
	MinDiastolic   int
	MaxDiastolic   int
}

// severeSymptoms are the symptoms that count double toward escalation. All
// three together form the critical combination.
var severeSymptoms = []string{
	pkg.SymptomShortnessBreath,
	pkg.SymptomFever,
	pkg.SymptomFatigue,
}

// RuleBasedClassifier implements Classifier with an ordered rule list:
// critical symptom combination, then critical vital thresholds, then the
// moderate-severity symptom count, then green. The first matching rule wins.
type RuleBasedClassifier struct {
	cfg Config
}

// NewRuleBasedClassifier creates a classifier, filling unset thresholds with
// the defaults.
func NewRuleBasedClassifier(cfg Config) *RuleBasedClassifier {
	if cfg.MinTemperature == 0 {
		cfg.MinTemperature = 34.0
	}
	if cfg.MaxTemperature == 0 {
		cfg.MaxTemperature = 40.0
	}
	if cfg.MinSaturation == 0 {
		cfg.MinSaturation = 95
	}
	if cfg.MinSystolic == 0 {
		cfg.MinSystolic = 90
	}
	if cfg.MaxSystolic == 0 {
		cfg.MaxSystolic = 180
	}
	if cfg.MinDiastolic == 0 {
		cfg.MinDiastolic = 60
	}
	if cfg.MaxDiastolic == 0 {
		cfg.MaxDiastolic = 120
	}
	return &RuleBasedClassifier{cfg: cfg}
}

// Classify implements the Classifier interface. It is pure: the same reading
// always yields the same level, and symptom selection order is irrelevant.
func (c *RuleBasedClassifier) Classify(reading *pkg.VitalSignsReading) (pkg.RiskLevel, error) {
	var missing []string
	if reading.Temperature == nil {
		missing = append(missing, "temperature")
	}
	if reading.Saturation == nil {
		missing = append(missing, "saturation")
	}
	if reading.Pressure == nil {
		missing = append(missing, "pressure")
	}
	if len(missing) > 0 {
		return 0, &MalformedReadingError{Missing: missing}
	}

	selected := make(map[string]bool, len(reading.Symptoms))
	for _, s := range reading.Symptoms {
		selected[s] = true
	}

	severeCount := 0
	for _, s := range severeSymptoms {
		if selected[s] {
			severeCount++
		}
	}

	// All three severe symptoms at once is critical regardless of vitals.
	if severeCount == len(severeSymptoms) {
		return pkg.RiskRed, nil
	}

	temp := *reading.Temperature
	sat := *reading.Saturation
	bp := *reading.Pressure
	switch {
	case temp < c.cfg.MinTemperature || temp >= c.cfg.MaxTemperature:
		return pkg.RiskRed, nil
	case sat < c.cfg.MinSaturation:
		return pkg.RiskRed, nil
	case bp.Systolic < c.cfg.MinSystolic || bp.Systolic > c.cfg.MaxSystolic:
		return pkg.RiskRed, nil
	case bp.Diastolic < c.cfg.MinDiastolic || bp.Diastolic > c.cfg.MaxDiastolic:
		return pkg.RiskRed, nil
	}

	if severeCount >= 2 || len(selected) >= 4 {
		return pkg.RiskYellow, nil
	}
	return pkg.RiskGreen, nil
}
