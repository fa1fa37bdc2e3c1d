package garage

import (
	"context"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/ai"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/stretchr/testify/mock"
)

type mockVehicles struct{ mock.Mock }

func (m *mockVehicles) FindVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *mockVehicles) SaveVehicle(ctx context.Context, vehicle models.Vehicle) error {
	return m.Called(ctx, vehicle).Error(0)
}

type mockTasks struct{ mock.Mock }

func (m *mockTasks) FindTasks(ctx context.Context) ([]models.MaintenanceTask, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.MaintenanceTask), args.Error(1)
}

func (m *mockTasks) FindTask(ctx context.Context, id string) (*models.MaintenanceTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MaintenanceTask), args.Error(1)
}

func (m *mockTasks) UpsertTask(ctx context.Context, task models.MaintenanceTask) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockTasks) DeleteTask(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTasks) CountTasks(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTasks) InsertTasks(ctx context.Context, tasks []models.MaintenanceTask) error {
	return m.Called(ctx, tasks).Error(0)
}

type mockHistory struct{ mock.Mock }

func (m *mockHistory) FindHistory(ctx context.Context) ([]models.ServiceRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.ServiceRecord), args.Error(1)
}

func (m *mockHistory) UpsertRecord(ctx context.Context, record models.ServiceRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

type mockInvoices struct{ mock.Mock }

func (m *mockInvoices) InsertInvoice(ctx context.Context, invoice *models.Invoice) error {
	return m.Called(ctx, invoice).Error(0)
}

func (m *mockInvoices) FindInvoices(ctx context.Context) ([]models.Invoice, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Invoice), args.Error(1)
}

type mockAdvisor struct{ mock.Mock }

func (m *mockAdvisor) Diagnose(ctx context.Context, input ai.DiagnosisInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

func (m *mockAdvisor) AnalyzeInvoice(ctx context.Context, data []byte, mimeType string) (*models.InvoiceAnalysis, error) {
	args := m.Called(ctx, data, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InvoiceAnalysis), args.Error(1)
}

func (m *mockAdvisor) Speak(ctx context.Context, text string) ([]byte, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

var refNow = time.Date(2026, time.October, 19, 15, 30, 0, 0, time.UTC)

type fixture struct {
	vehicles *mockVehicles
	tasks    *mockTasks
	history  *mockHistory
	invoices *mockInvoices
	advisor  *mockAdvisor
	service  *Service
}

func newFixture(withAdvisor bool) *fixture {
	f := &fixture{
		vehicles: new(mockVehicles),
		tasks:    new(mockTasks),
		history:  new(mockHistory),
		invoices: new(mockInvoices),
		advisor:  new(mockAdvisor),
	}
	deps := Deps{Vehicles: f.vehicles, Tasks: f.tasks, History: f.history, Invoices: f.invoices}
	if withAdvisor {
		deps.Advisor = f.advisor
	}
	f.service = NewService(deps, Options{
		VehicleID: "primary",
		Language:  "fr",
		OwnerName: "Pilote",
		Now:       func() time.Time { return refNow },
	})
	return f
}

func storedVehicle(km int) *models.Vehicle {
	return &models.Vehicle{
		ID:      "primary",
		Make:    "Mercedes-Benz",
		Model:   "E 200 d",
		Mileage: km,
		Details: models.DefaultCarDetails(),
	}
}

func testCatalog() []models.MaintenanceTask {
	return []models.MaintenanceTask{
		{ID: "service_a", Name: "Service A (Petit)", Interval: 25000},
		{ID: "brakes_av", Name: "Plaquettes Avant", Interval: 45000},
	}
}
