package garage

import (
	"context"
	"errors"
	"testing"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/ai"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func stubDashboard(f *fixture, ctx context.Context, km int) {
	f.vehicles.On("FindVehicle", ctx, "primary").Return(storedVehicle(km), nil)
	f.tasks.On("FindTasks", ctx).Return(testCatalog(), nil)
	f.history.On("FindHistory", ctx).Return([]models.ServiceRecord{
		models.NewServiceRecord("service_a", 25000, refNow),
	}, nil)
}

func TestDiagnose(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	stubDashboard(f, ctx, 47713)
	f.advisor.On("Diagnose", ctx, mock.MatchedBy(func(in ai.DiagnosisInput) bool {
		return in.Mileage == 47713 && in.InspectionDate == "2026-12-26" &&
			in.TaskStatus == "- Plaquettes Avant : -2 713 km restants (OVERDUE, prévu vers 19 octobre 2026)\n"+
				"- Service A (Petit) : 2 287 km restants (OK, prévu vers 29 novembre 2026)"
	})).Return("Plaquettes à remplacer. ✨", nil)

	d, err := f.service.Diagnose(ctx)

	require.NoError(t, err)
	assert.False(t, d.Fallback)
	assert.Equal(t, "Plaquettes à remplacer. ✨", d.Text)
}

func TestDiagnose_FallbackOnAdvisorError(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	stubDashboard(f, ctx, 47713)
	f.advisor.On("Diagnose", ctx, mock.Anything).Return("", errors.New("quota exceeded"))

	d, err := f.service.Diagnose(ctx)

	require.NoError(t, err)
	assert.True(t, d.Fallback)
	assert.Contains(t, d.Text, "difficulté technique")
}

func TestSpeakAlerts(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	stubDashboard(f, ctx, 47713)
	wav := []byte("RIFF....WAVE")
	f.advisor.On("Speak", ctx, "Bonjour Pilote. Votre véhicule affiche 47 713 km. Attention, vous avez 1 entretien prioritaire : Plaquettes Avant. Veuillez consulter votre garage prochainement.").
		Return(wav, nil)

	audio, err := f.service.SpeakAlerts(ctx)

	require.NoError(t, err)
	assert.Equal(t, wav, audio)
}

func TestSpeakAlerts_NoAdvisor(t *testing.T) {
	f := newFixture(false)

	_, err := f.service.SpeakAlerts(context.Background())

	assert.ErrorIs(t, err, ErrAdvisorUnavailable)
	assert.Equal(t, apperr.CodeAIServiceUnavailable, apperr.CodeOf(err))
}
