package core

import (
	"context"
	"fmt"
	"strings"

	"triage-kiosk/internal/llm"
	"triage-kiosk/pkg"
)

// DescribeVisit builds the deterministic description persisted with a
// patient record. It is what the record carries when no LLM is configured or
// reachable.
func DescribeVisit(r *pkg.VitalSignsReading) string {
	var b strings.Builder
	if len(r.Symptoms) == 0 {
		b.WriteString("Sem sintomas relatados. ")
	} else {
		fmt.Fprintf(&b, "Sintomas: %s. ", strings.Join(r.Symptoms, ", "))
	}
	fmt.Fprintf(&b, "Temperatura %.1f°C, saturação %d%%, pressão %s.",
		*r.Temperature, *r.Saturation, r.Pressure)
	return b.String()
}

// Summarizer produces the description text for a visit, refining the
// deterministic summary through an LLM when one is available. It never fails
// the caller: any LLM error falls back to DescribeVisit.
type Summarizer struct {
	LLM llm.Client
}

// NewSummarizer constructs a Summarizer. A nil client disables refinement.
func NewSummarizer(client llm.Client) *Summarizer {
	return &Summarizer{LLM: client}
}

// Describe returns the visit description for the record. The refined text
// must stay faithful to the measured values, so the prompt carries only the
// deterministic summary and the assigned risk color.
func (s *Summarizer) Describe(ctx context.Context, person *pkg.Person, reading *pkg.VitalSignsReading, level pkg.RiskLevel) (string, error) {
	base := DescribeVisit(reading)
	if s.LLM == nil {
		return base, nil
	}
	prompt := fmt.Sprintf("Paciente: %s. Classificação: %s. %s", person.Name, level.Color(), base)
	refined, err := s.LLM.Summarize(ctx, DescriptionInstruction, prompt)
	if err != nil || strings.TrimSpace(refined) == "" {
		return base, err
	}
	return refined, nil
}
