package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/db"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/garage"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/maintenance"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/metrics"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockGarage struct {
	mock.Mock
}

func (m *MockGarage) Dashboard(ctx context.Context) (*garage.Dashboard, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*garage.Dashboard), args.Error(1)
}

func (m *MockGarage) Tasks(ctx context.Context) ([]models.MaintenanceTask, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.MaintenanceTask), args.Error(1)
}

func (m *MockGarage) UpsertTask(ctx context.Context, task models.MaintenanceTask) (*models.MaintenanceTask, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MaintenanceTask), args.Error(1)
}

func (m *MockGarage) DeleteTask(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockGarage) MarkDone(ctx context.Context, taskID string) (*models.ServiceRecord, bool, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.ServiceRecord), args.Bool(1), args.Error(2)
}

func (m *MockGarage) Vehicle(ctx context.Context) (*models.Vehicle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockGarage) UpdateMileage(ctx context.Context, km int) (*models.Vehicle, error) {
	args := m.Called(ctx, km)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockGarage) UpdateDetails(ctx context.Context, details models.CarDetails) (*models.Vehicle, error) {
	args := m.Called(ctx, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockGarage) SaveCarData(ctx context.Context, update garage.CarDataUpdate) (*garage.CarDataResult, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*garage.CarDataResult), args.Error(1)
}

func (m *MockGarage) MaintenanceHistory(ctx context.Context) ([]models.MaintenanceEntry, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.MaintenanceEntry), args.Error(1)
}

func (m *MockGarage) SyncHistory(ctx context.Context, history map[string]int) (int, error) {
	args := m.Called(ctx, history)
	return args.Int(0), args.Error(1)
}

func (m *MockGarage) Expenses(ctx context.Context) ([]models.Invoice, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *MockGarage) SaveInvoice(ctx context.Context, analysis models.InvoiceAnalysis) (*models.Invoice, error) {
	args := m.Called(ctx, analysis)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockGarage) ScanInvoice(ctx context.Context, data []byte, mimeType string) (*models.Invoice, error) {
	args := m.Called(ctx, data, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockGarage) Diagnose(ctx context.Context) (*garage.Diagnosis, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*garage.Diagnosis), args.Error(1)
}

func (m *MockGarage) Alerts(ctx context.Context) ([]maintenance.Alert, error) {
	args := m.Called(ctx)
	return args.Get(0).([]maintenance.Alert), args.Error(1)
}

func (m *MockGarage) SpeakAlerts(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type apiFixture struct {
	garage  *MockGarage
	users   *MockUserCollection
	router  http.Handler
	tokens  map[models.Role]string
	pingErr error
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	authService := newAuthService()
	f := &apiFixture{garage: new(MockGarage), users: new(MockUserCollection), tokens: map[models.Role]string{}}
	f.router = NewRouter(RouterDeps{
		Garage:  f.garage,
		Auth:    authService,
		Users:   f.users,
		Metrics: metrics.NewCollector(prometheus.NewRegistry()),
		Ping:    func(ctx context.Context) error { return f.pingErr },
	})
	for _, role := range []models.Role{models.RoleOwner, models.RoleMechanic, models.RoleViewer} {
		token, err := authService.GenerateToken(&models.User{ID: primitive.NewObjectID(), Username: string(role), Role: role})
		require.NoError(t, err)
		f.tokens[role] = token
	}
	return f
}

func (f *apiFixture) do(role models.Role, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reader = &bytes.Buffer{}
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewBuffer(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+f.tokens[role])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	f := newAPI(t)

	w := f.do("", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	f.pingErr = errors.New("no primary")
	w = f.do("", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newAPI(t)

	w := f.do("", http.MethodGet, "/api/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do("", http.MethodPost, "/api/auth/register", models.RegisterRequest{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(models.RoleMechanic, http.MethodPost, "/api/auth/register", models.RegisterRequest{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	f.garage.AssertExpectations(t)
}

func TestRouter_LoginAndRefreshShareRateLimit(t *testing.T) {
	f := newAPI(t)
	f.users.On("FindUserByUsername", mock.Anything, "ghost").Return(nil, db.ErrNotFound)
	f.users.On("FindUserByRefreshToken", mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)

	for i := 0; i < 5; i++ {
		w := f.do("", http.MethodPost, "/api/auth/login", models.LoginRequest{Username: "ghost", Password: "x"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
		w = f.do("", http.MethodPost, "/api/auth/refresh", models.RefreshRequest{RefreshToken: "guess"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := f.do("", http.MethodPost, "/api/auth/refresh", models.RefreshRequest{RefreshToken: "guess"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_Dashboard(t *testing.T) {
	f := newAPI(t)
	f.garage.On("Dashboard", mock.Anything).Return(&garage.Dashboard{
		Vehicle: models.Vehicle{ID: "primary", Mileage: 47713},
		Tasks: []maintenance.TaskStatus{{
			Task:   models.MaintenanceTask{ID: "brakes_av", Name: "Plaquettes Avant", Interval: 45000},
			Status: maintenance.Status{Remaining: -2713, Level: maintenance.LevelOverdue},
		}},
	}, nil)

	w := f.do(models.RoleViewer, http.MethodGet, "/api/dashboard", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"OVERDUE"`)
	assert.Contains(t, w.Body.String(), `"mileage":47713`)
}

func TestRouter_UpdateMileage(t *testing.T) {
	f := newAPI(t)
	f.garage.On("UpdateMileage", mock.Anything, 48000).Return(&models.Vehicle{ID: "primary", Mileage: 48000}, nil)
	f.garage.On("UpdateMileage", mock.Anything, 40000).Return(nil, garage.ErrMileageRollback)

	w := f.do(models.RoleMechanic, http.MethodPut, "/api/vehicle/mileage", map[string]int{"mileage": 48000})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(models.RoleMechanic, http.MethodPut, "/api/vehicle/mileage", map[string]int{"mileage": 40000})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, w))

	w = f.do(models.RoleMechanic, http.MethodPut, "/api/vehicle/mileage", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(models.RoleViewer, http.MethodPut, "/api/vehicle/mileage", map[string]int{"mileage": 48000})
	assert.Equal(t, http.StatusForbidden, w.Code)
	f.garage.AssertNumberOfCalls(t, "UpdateMileage", 2)
}

func TestRouter_SaveVehicle(t *testing.T) {
	f := newAPI(t)
	update := garage.CarDataUpdate{Mileage: 47713, History: map[string]int{"service_a": 25000}}
	f.garage.On("SaveCarData", mock.Anything, update).Return(&garage.CarDataResult{VehicleUpdated: true, HistoryCreated: 1}, nil)

	w := f.do(models.RoleOwner, http.MethodPut, "/api/vehicle", update)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"history_created":1`)
}

func TestRouter_Tasks(t *testing.T) {
	f := newAPI(t)
	task := models.MaintenanceTask{ID: "tires", Name: "Pneus", Interval: 40000}
	f.garage.On("UpsertTask", mock.Anything, task).Return(&task, nil)
	f.garage.On("DeleteTask", mock.Anything, "ghost").Return(garage.ErrUnknownTask)
	f.garage.On("MarkDone", mock.Anything, "service_a").
		Return(&models.ServiceRecord{ID: "service_a@47713", TaskID: "service_a", Mileage: 47713}, true, nil).Once()
	f.garage.On("MarkDone", mock.Anything, "service_a").
		Return(&models.ServiceRecord{ID: "service_a@47713", TaskID: "service_a", Mileage: 47713}, false, nil).Once()

	w := f.do(models.RoleOwner, http.MethodPut, "/api/tasks/tires", models.MaintenanceTask{Name: "Pneus", Interval: 40000})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(models.RoleOwner, http.MethodPut, "/api/tasks/tires", models.MaintenanceTask{ID: "bva", Name: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(models.RoleMechanic, http.MethodPut, "/api/tasks/tires", task)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(models.RoleOwner, http.MethodDelete, "/api/tasks/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(models.RoleMechanic, http.MethodPost, "/api/tasks/service_a/done", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = f.do(models.RoleMechanic, http.MethodPost, "/api/tasks/service_a/done", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_SyncHistory(t *testing.T) {
	f := newAPI(t)
	f.garage.On("SyncHistory", mock.Anything, map[string]int{"bva": 60000, "service_a": 0}).Return(1, nil)

	w := f.do(models.RoleMechanic, http.MethodPut, "/api/history", map[string]interface{}{
		"history": map[string]int{"bva": 60000, "service_a": 0},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"created":1}`, w.Body.String())
}

func TestRouter_ScanInvoice_DataURI(t *testing.T) {
	f := newAPI(t)
	pdf := []byte("%PDF-1.7 facture")
	f.garage.On("ScanInvoice", mock.Anything, pdf, "application/pdf").
		Return(&models.Invoice{Label: "Entretien", Amount: 219.9, Type: models.ExpenseMaintenance}, nil)

	w := f.do(models.RoleMechanic, http.MethodPost, "/api/invoices/scan", map[string]string{
		"image": "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"label":"Entretien"`)

	w = f.do(models.RoleMechanic, http.MethodPost, "/api/invoices/scan", map[string]string{"image": "not a data uri"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ScanInvoice_Multipart(t *testing.T) {
	f := newAPI(t)
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}
	f.garage.On("ScanInvoice", mock.Anything, jpeg, "image/jpeg").Return(&models.Invoice{Label: "Pneus"}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="facture.jpg"`)
	partHeader.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(partHeader)
	require.NoError(t, err)
	_, err = part.Write(jpeg)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/invoices/scan", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+f.tokens[models.RoleOwner])
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	f.garage.AssertExpectations(t)
}

func TestRouter_Diagnosis(t *testing.T) {
	f := newAPI(t)
	f.garage.On("Diagnose", mock.Anything).Return(&garage.Diagnosis{Text: "Tout va bien.", Fallback: false}, nil)

	w := f.do(models.RoleOwner, http.MethodPost, "/api/diagnosis", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"diagnosis":"Tout va bien.","fallback":false}`, w.Body.String())

	w = f.do(models.RoleMechanic, http.MethodPost, "/api/diagnosis", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_SpeakAlerts(t *testing.T) {
	f := newAPI(t)
	f.garage.On("SpeakAlerts", mock.Anything).Return([]byte("RIFF\x00\x00\x00\x00WAVE"), nil).Once()
	f.garage.On("SpeakAlerts", mock.Anything).Return(nil, garage.ErrAdvisorUnavailable).Once()

	w := f.do(models.RoleOwner, http.MethodPost, "/api/alerts/speech", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/wav", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "RIFF"))

	w = f.do(models.RoleOwner, http.MethodPost, "/api/alerts/speech", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "AI_SERVICE_UNAVAILABLE", errorCode(t, w))
}

func TestRouter_ListEndpoints(t *testing.T) {
	f := newAPI(t)
	f.garage.On("Tasks", mock.Anything).Return([]models.MaintenanceTask{{ID: "service_a"}}, nil)
	f.garage.On("MaintenanceHistory", mock.Anything).Return([]models.MaintenanceEntry{{TaskID: "service_a", TaskName: "Tâche inconnue"}}, nil)
	f.garage.On("Expenses", mock.Anything).Return([]models.Invoice{}, nil)
	f.garage.On("Alerts", mock.Anything).Return([]maintenance.Alert{}, nil)
	f.garage.On("Vehicle", mock.Anything).Return(&models.Vehicle{ID: "primary"}, nil)

	for _, path := range []string{"/api/tasks", "/api/history", "/api/invoices", "/api/alerts", "/api/vehicle"} {
		w := f.do(models.RoleViewer, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
	f.garage.AssertExpectations(t)
}

func TestRouter_StoreFailureIsInternal(t *testing.T) {
	f := newAPI(t)
	f.garage.On("Expenses", mock.Anything).Return([]models.Invoice(nil), errors.New("socket closed"))

	w := f.do(models.RoleOwner, http.MethodGet, "/api/invoices", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "socket closed")
}
