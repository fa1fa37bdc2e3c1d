// Package garage owns the vehicle state: mileage, maintenance catalog, service history and
// expenses. Every transport (HTTP, MQTT, CLI) goes through Service.
package garage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/ai"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/db"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/maintenance"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/metrics"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/validation"
	log "github.com/sirupsen/logrus"
)

// MaxMileage is the highest odometer value accepted.
const MaxMileage = 1000000

// Advisor is the AI side of the service. *ai.Client implements it.
type Advisor interface {
	Diagnose(ctx context.Context, input ai.DiagnosisInput) (string, error)
	AnalyzeInvoice(ctx context.Context, data []byte, mimeType string) (*models.InvoiceAnalysis, error)
	Speak(ctx context.Context, text string) ([]byte, error)
}

// Deps are the collaborators of Service. Advisor and Metrics may be nil.
type Deps struct {
	Vehicles db.VehicleCollection
	Tasks    db.TaskCollection
	History  db.HistoryCollection
	Invoices db.InvoiceCollection
	Advisor  Advisor
	Metrics  *metrics.Collector
}

// Options describe the tracked vehicle and how results are presented.
type Options struct {
	VehicleID string
	Language  string
	OwnerName string
	Now       func() time.Time
}

// Service implements the maintenance book operations.
type Service struct {
	// vehicleMu serializes read-modify-write cycles on the vehicle document.
	vehicleMu sync.Mutex

	vehicles  db.VehicleCollection
	tasks     db.TaskCollection
	history   db.HistoryCollection
	invoices  db.InvoiceCollection
	advisor   Advisor
	metrics   *metrics.Collector
	vehicleID string
	language  string
	owner     string
	now       func() time.Time
	projector maintenance.Projector
}

// NewService creates a Service.
func NewService(deps Deps, opts Options) *Service {
	if opts.VehicleID == "" {
		opts.VehicleID = "primary"
	}
	if opts.Language == "" {
		opts.Language = "fr"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		vehicles:  deps.Vehicles,
		tasks:     deps.Tasks,
		history:   deps.History,
		invoices:  deps.Invoices,
		advisor:   deps.Advisor,
		metrics:   deps.Metrics,
		vehicleID: opts.VehicleID,
		language:  opts.Language,
		owner:     opts.OwnerName,
		now:       opts.Now,
		projector: maintenance.Projector{Now: opts.Now, Language: opts.Language},
	}
}

// Language returns the display language.
func (s *Service) Language() string {
	return s.language
}

// vehicle loads the tracked vehicle. A vehicle that was never saved is returned with default
// details and found set to false.
func (s *Service) vehicle(ctx context.Context) (v models.Vehicle, found bool, err error) {
	stored, err := s.vehicles.FindVehicle(ctx, s.vehicleID)
	if errors.Is(err, db.ErrNotFound) {
		return models.Vehicle{
			ID:      s.vehicleID,
			Make:    "Mercedes-Benz",
			Model:   "E 200 d",
			Year:    2018,
			Details: models.DefaultCarDetails(),
		}, false, nil
	}
	if err != nil {
		return models.Vehicle{}, false, fmt.Errorf("load vehicle: %w", err)
	}
	return *stored, true, nil
}

// Vehicle returns the tracked vehicle.
func (s *Service) Vehicle(ctx context.Context) (*models.Vehicle, error) {
	v, _, err := s.vehicle(ctx)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Service) saveVehicle(ctx context.Context, v models.Vehicle, found bool) error {
	now := s.now()
	if !found {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	if err := s.vehicles.SaveVehicle(ctx, v); err != nil {
		if errors.Is(err, db.ErrStaleMileage) {
			return ErrMileageRollback.WithMessage(fmt.Sprintf(
				"%d km is below the mileage recorded meanwhile", v.Mileage))
		}
		return fmt.Errorf("save vehicle: %w", err)
	}
	s.metrics.SetMileage(v.Mileage)
	return nil
}

func checkMileage(km int) error {
	if err := validation.Var("mileage", km, "gte=0,lte=1000000"); err != nil {
		return ErrMileageOutOfRange.WithMessage(fmt.Sprintf(
			"mileage must be between 0 and %d km, got %d", MaxMileage, km))
	}
	return nil
}

// applyMileage sets km on v. Decreases are rejected.
func (s *Service) applyMileage(v *models.Vehicle, km int) error {
	if err := checkMileage(km); err != nil {
		return err
	}
	if km < v.Mileage {
		return ErrMileageRollback.WithMessage(fmt.Sprintf(
			"mileage cannot decrease: %d km is below the recorded %d km", km, v.Mileage))
	}
	if km != v.Mileage {
		v.Mileage = km
		v.MileageUpdatedAt = s.now()
	}
	return nil
}

// UpdateMileage records a new odometer reading.
func (s *Service) UpdateMileage(ctx context.Context, km int) (*models.Vehicle, error) {
	s.vehicleMu.Lock()
	defer s.vehicleMu.Unlock()

	v, found, err := s.vehicle(ctx)
	if err != nil {
		return nil, err
	}
	before := v
	if err := s.applyMileage(&v, km); err != nil {
		return nil, err
	}
	if found && v.SameState(before) {
		return &v, nil
	}
	if err := s.saveVehicle(ctx, v, found); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"vehicle_id": v.ID,
		"from":       before.Mileage,
		"to":         v.Mileage,
	}).Info("Mileage updated")
	return &v, nil
}

// UpdateDetails replaces the technical sheet of the vehicle.
func (s *Service) UpdateDetails(ctx context.Context, details models.CarDetails) (*models.Vehicle, error) {
	if err := validation.Struct(details); err != nil {
		return nil, err
	}
	s.vehicleMu.Lock()
	defer s.vehicleMu.Unlock()

	v, found, err := s.vehicle(ctx)
	if err != nil {
		return nil, err
	}
	if found && v.Details == details {
		return &v, nil
	}
	v.Details = details
	if err := s.saveVehicle(ctx, v, found); err != nil {
		return nil, err
	}
	return &v, nil
}

// CarDataUpdate is a combined save of mileage, history and optionally details.
type CarDataUpdate struct {
	Mileage int                `json:"mileage" validate:"gte=0,lte=1000000"`
	History map[string]int     `json:"history" validate:"dive,keys,required,max=64,endkeys,gte=0"`
	Details *models.CarDetails `json:"details,omitempty"`
}

// CarDataResult reports what SaveCarData changed.
type CarDataResult struct {
	Vehicle        models.Vehicle `json:"vehicle"`
	VehicleUpdated bool           `json:"vehicle_updated"`
	HistoryCreated int            `json:"history_created"`
}

// SaveCarData applies an update in one call: the vehicle document is written only when it
// changed, then every history pair is synchronized.
func (s *Service) SaveCarData(ctx context.Context, update CarDataUpdate) (*CarDataResult, error) {
	if err := validation.Struct(update); err != nil {
		return nil, err
	}
	if update.Details != nil {
		if err := validation.Struct(*update.Details); err != nil {
			return nil, err
		}
	}

	result, err := s.saveCarVehicle(ctx, update)
	if err != nil {
		return nil, err
	}

	created, err := s.SyncHistory(ctx, update.History)
	if err != nil {
		return nil, err
	}
	result.HistoryCreated = created
	return result, nil
}

func (s *Service) saveCarVehicle(ctx context.Context, update CarDataUpdate) (*CarDataResult, error) {
	s.vehicleMu.Lock()
	defer s.vehicleMu.Unlock()

	v, found, err := s.vehicle(ctx)
	if err != nil {
		return nil, err
	}
	before := v
	if err := s.applyMileage(&v, update.Mileage); err != nil {
		return nil, err
	}
	if update.Details != nil {
		v.Details = *update.Details
	}

	result := &CarDataResult{Vehicle: v}
	if !found || !v.SameState(before) {
		if err := s.saveVehicle(ctx, v, found); err != nil {
			return nil, err
		}
		result.VehicleUpdated = true
	}
	return result, nil
}
