package db

import (
	"context"
	"errors"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("document not found")
	// ErrNilCollection is returned when a collection wrapper was built without a collection.
	ErrNilCollection = errors.New("mongo collection is nil")
	// ErrStaleMileage is returned when a vehicle write carries a lower mileage than the stored one.
	ErrStaleMileage = errors.New("stored mileage is higher")
)

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	FindVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	// SaveVehicle writes the vehicle unless the stored mileage is higher, in which case it
	// returns ErrStaleMileage and leaves the document untouched.
	SaveVehicle(ctx context.Context, vehicle models.Vehicle) error
}

// TaskCollection defines the interface for maintenance catalog operations.
type TaskCollection interface {
	FindTasks(ctx context.Context) ([]models.MaintenanceTask, error)
	FindTask(ctx context.Context, id string) (*models.MaintenanceTask, error)
	UpsertTask(ctx context.Context, task models.MaintenanceTask) error
	DeleteTask(ctx context.Context, id string) error
	CountTasks(ctx context.Context) (int64, error)
	InsertTasks(ctx context.Context, tasks []models.MaintenanceTask) error
}

// HistoryCollection defines the interface for completed-service records.
type HistoryCollection interface {
	FindHistory(ctx context.Context) ([]models.ServiceRecord, error)
	// UpsertRecord stores the record unless the same (task, mileage) fact exists and
	// reports whether a new document was created.
	UpsertRecord(ctx context.Context, record models.ServiceRecord) (bool, error)
}

// InvoiceCollection defines the interface for expense documents.
type InvoiceCollection interface {
	InsertInvoice(ctx context.Context, invoice *models.Invoice) error
	FindInvoices(ctx context.Context) ([]models.Invoice, error)
}
