package garage

import (
	"context"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/ai"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/maintenance"
	log "github.com/sirupsen/logrus"
)

// Diagnosis is the advisor's assessment. Fallback is set when the advisor could not answer
// and Text holds a stock message instead.
type Diagnosis struct {
	Text     string `json:"diagnosis"`
	Fallback bool   `json:"fallback"`
}

// Diagnose asks the advisor to assess the current maintenance state. Advisor failures are
// reported through Diagnosis.Fallback, not as errors.
func (s *Service) Diagnose(ctx context.Context) (*Diagnosis, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	if s.advisor == nil {
		return s.fallbackDiagnosis(), nil
	}

	text, err := s.advisor.Diagnose(ctx, ai.DiagnosisInput{
		Mileage:        d.Vehicle.Mileage,
		TaskStatus:     maintenance.StatusLines(d.Tasks, s.language),
		InspectionDate: d.Vehicle.Details.NextTechnicalInspection,
	})
	if err != nil {
		log.WithError(err).Warn("Diagnosis failed, returning fallback")
		return s.fallbackDiagnosis(), nil
	}
	return &Diagnosis{Text: text}, nil
}

func (s *Service) fallbackDiagnosis() *Diagnosis {
	text := "The expert assistant ran into a technical problem. Please check your data manually."
	if maintenance.IsFrench(s.language) {
		text = "L'assistant expert a rencontré une difficulté technique. Veuillez vérifier vos données manuellement."
	}
	return &Diagnosis{Text: text, Fallback: true}
}

// SpokenSummary returns the text read out by SpeakAlerts.
func (s *Service) SpokenSummary(ctx context.Context) (string, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return "", err
	}
	return maintenance.SpokenSummary(s.owner, d.Vehicle.Mileage, d.Tasks, s.language), nil
}

// SpeakAlerts synthesizes the spoken summary and returns it as a WAV file.
func (s *Service) SpeakAlerts(ctx context.Context) ([]byte, error) {
	if s.advisor == nil {
		return nil, ErrAdvisorUnavailable
	}
	text, err := s.SpokenSummary(ctx)
	if err != nil {
		return nil, err
	}
	return s.advisor.Speak(ctx, text)
}
