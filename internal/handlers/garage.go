package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/ai"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/garage"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/maintenance"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/validation"
)

// maxScanBody covers a 10 MB document once base64 encoded or wrapped in a multipart form.
const maxScanBody = 15 << 20

// Garage is the service the HTTP API drives. *garage.Service implements it.
type Garage interface {
	Dashboard(ctx context.Context) (*garage.Dashboard, error)
	Tasks(ctx context.Context) ([]models.MaintenanceTask, error)
	UpsertTask(ctx context.Context, task models.MaintenanceTask) (*models.MaintenanceTask, error)
	DeleteTask(ctx context.Context, id string) error
	MarkDone(ctx context.Context, taskID string) (*models.ServiceRecord, bool, error)
	Vehicle(ctx context.Context) (*models.Vehicle, error)
	UpdateMileage(ctx context.Context, km int) (*models.Vehicle, error)
	UpdateDetails(ctx context.Context, details models.CarDetails) (*models.Vehicle, error)
	SaveCarData(ctx context.Context, update garage.CarDataUpdate) (*garage.CarDataResult, error)
	MaintenanceHistory(ctx context.Context) ([]models.MaintenanceEntry, error)
	SyncHistory(ctx context.Context, history map[string]int) (int, error)
	Expenses(ctx context.Context) ([]models.Invoice, error)
	SaveInvoice(ctx context.Context, analysis models.InvoiceAnalysis) (*models.Invoice, error)
	ScanInvoice(ctx context.Context, data []byte, mimeType string) (*models.Invoice, error)
	Diagnose(ctx context.Context) (*garage.Diagnosis, error)
	Alerts(ctx context.Context) ([]maintenance.Alert, error)
	SpeakAlerts(ctx context.Context) ([]byte, error)
}

// GarageHandler serves the maintenance book.
type GarageHandler struct {
	garage Garage
}

// NewGarageHandler creates a GarageHandler.
func NewGarageHandler(g Garage) *GarageHandler {
	return &GarageHandler{garage: g}
}

type mileageRequest struct {
	Mileage *int `json:"mileage" validate:"required"`
}

type historyRequest struct {
	History map[string]int `json:"history" validate:"required"`
}

type scanRequest struct {
	Image string `json:"image" validate:"required"`
}

// Dashboard returns vehicle, statuses sorted by urgency and alerts.
func (h *GarageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.garage.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListTasks returns the maintenance catalog.
func (h *GarageHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.garage.Tasks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// PutTask creates or replaces the task named by the path.
func (h *GarageHandler) PutTask(w http.ResponseWriter, r *http.Request) {
	var task models.MaintenanceTask
	if err := decodeJSON(w, r, maxJSONBody, &task); err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if task.ID != "" && task.ID != id {
		writeError(w, r, apperr.InvalidInput("task id does not match the path", nil))
		return
	}
	task.ID = id

	saved, err := h.garage.UpsertTask(r.Context(), task)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// DeleteTask removes the task named by the path.
func (h *GarageHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.garage.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkDone records the task as completed at the current mileage. 201 means a new record,
// 200 that the same completion was already stored.
func (h *GarageHandler) MarkDone(w http.ResponseWriter, r *http.Request) {
	record, created, err := h.garage.MarkDone(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, record)
}

// GetVehicle returns the tracked vehicle.
func (h *GarageHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.garage.Vehicle(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// SaveVehicle applies mileage, history and details in one call.
func (h *GarageHandler) SaveVehicle(w http.ResponseWriter, r *http.Request) {
	var update garage.CarDataUpdate
	if err := decodeJSON(w, r, maxJSONBody, &update); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.garage.SaveCarData(r.Context(), update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// UpdateMileage records a new odometer reading.
func (h *GarageHandler) UpdateMileage(w http.ResponseWriter, r *http.Request) {
	var req mileageRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.garage.UpdateMileage(r.Context(), *req.Mileage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// UpdateDetails replaces the technical sheet.
func (h *GarageHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	var details models.CarDetails
	if err := decodeJSON(w, r, maxJSONBody, &details); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.garage.UpdateDetails(r.Context(), details)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ListHistory returns completed services, highest mileage first.
func (h *GarageHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.garage.MaintenanceHistory(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// SyncHistory stores a task id to mileage map.
func (h *GarageHandler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.garage.SyncHistory(r.Context(), req.History)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

// ListInvoices returns stored expenses, newest first.
func (h *GarageHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.garage.Expenses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// CreateInvoice stores an invoice analysis entered by hand.
func (h *GarageHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var analysis models.InvoiceAnalysis
	if err := decodeJSON(w, r, maxJSONBody, &analysis); err != nil {
		writeError(w, r, err)
		return
	}
	invoice, err := h.garage.SaveInvoice(r.Context(), analysis)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

// ScanInvoice accepts a multipart "file" field or a JSON {"image": "data:..."} body.
func (h *GarageHandler) ScanInvoice(w http.ResponseWriter, r *http.Request) {
	data, mimeType, err := readDocument(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	invoice, err := h.garage.ScanInvoice(r.Context(), data, mimeType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

func readDocument(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req scanRequest
		if err := decodeJSON(w, r, maxScanBody, &req); err != nil {
			return nil, "", err
		}
		if err := validation.Struct(req); err != nil {
			return nil, "", err
		}
		return ai.ParseDataURI(req.Image)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxScanBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", garage.ErrInvoiceTooLarge
		}
		return nil, "", apperr.InvalidInput("multipart field \"file\" is required", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, garage.MaxInvoiceBytes+1))
	if err != nil {
		return nil, "", apperr.InvalidInput("failed to read uploaded file", err)
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return data, mimeType, nil
}

// Diagnose asks the AI advisor for an assessment. Advisor failures come back as a fallback
// text with 200.
func (h *GarageHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	d, err := h.garage.Diagnose(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListAlerts returns the tasks that need attention.
func (h *GarageHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.garage.Alerts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// SpeakAlerts returns the spoken alert summary as audio/wav.
func (h *GarageHandler) SpeakAlerts(w http.ResponseWriter, r *http.Request) {
	audio, err := h.garage.SpeakAlerts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}
