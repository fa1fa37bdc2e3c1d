package garage

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/db"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/maintenance"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/validation"
	log "github.com/sirupsen/logrus"
)

// Tasks returns the catalog. An empty catalog yields a single placeholder task so the
// problem is visible on the dashboard.
func (s *Service) Tasks(ctx context.Context) ([]models.MaintenanceTask, error) {
	tasks, err := s.tasks.FindTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	if len(tasks) == 0 {
		name := "No tasks found"
		if maintenance.IsFrench(s.language) {
			name = "Aucune tâche trouvée"
		}
		return []models.MaintenanceTask{{ID: models.PlaceholderTaskID, Name: name}}, nil
	}
	return tasks, nil
}

// UpsertTask creates or replaces a catalog entry.
func (s *Service) UpsertTask(ctx context.Context, task models.MaintenanceTask) (*models.MaintenanceTask, error) {
	if err := validation.Struct(task); err != nil {
		return nil, err
	}
	if task.ID == models.PlaceholderTaskID {
		return nil, ErrReservedTask
	}
	if err := s.tasks.UpsertTask(ctx, task); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"task_id": task.ID, "interval": task.Interval}).Info("Task saved")
	return &task, nil
}

// DeleteTask removes a catalog entry. Its history is kept.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	err := s.tasks.DeleteTask(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return err
}

func (s *Service) serviceHistory(ctx context.Context) (models.ServiceHistory, []models.ServiceRecord, error) {
	records, err := s.history.FindHistory(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	return models.HistoryFromRecords(records), records, nil
}

// History returns the latest completion mileage per task.
func (s *Service) History(ctx context.Context) (models.ServiceHistory, error) {
	history, _, err := s.serviceHistory(ctx)
	return history, err
}

// MarkDone records taskID as completed at the current mileage.
func (s *Service) MarkDone(ctx context.Context, taskID string) (*models.ServiceRecord, bool, error) {
	if _, err := s.tasks.FindTask(ctx, taskID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
		}
		return nil, false, err
	}
	v, _, err := s.vehicle(ctx)
	if err != nil {
		return nil, false, err
	}
	if v.Mileage <= 0 {
		return nil, false, ErrMileageUnknown
	}

	record := models.NewServiceRecord(taskID, v.Mileage, s.now())
	created, err := s.history.UpsertRecord(ctx, record)
	if err != nil {
		return nil, false, err
	}
	s.metrics.RecordHistoryUpsert(created)
	log.WithFields(log.Fields{"task_id": taskID, "mileage": v.Mileage, "created": created}).Info("Task marked done")
	return &record, created, nil
}

// SyncHistory stores every (task, mileage) pair of history. Pairs already stored are left
// untouched and zero mileages mean "never done". It returns the number of new records.
func (s *Service) SyncHistory(ctx context.Context, history map[string]int) (int, error) {
	if err := validation.Var("history", history, "dive,keys,required,max=64,endkeys,gte=0"); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(history))
	for id := range history {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	created := 0
	now := s.now()
	for _, id := range ids {
		km := history[id]
		if km <= 0 {
			continue
		}
		ok, err := s.history.UpsertRecord(ctx, models.NewServiceRecord(id, km, now))
		if err != nil {
			return created, fmt.Errorf("sync history %s: %w", id, err)
		}
		s.metrics.RecordHistoryUpsert(ok)
		if ok {
			created++
		}
	}
	if created > 0 {
		log.WithField("created", created).Info("History synchronized")
	}
	return created, nil
}

// MaintenanceHistory returns every record joined with its task name, highest mileage first.
func (s *Service) MaintenanceHistory(ctx context.Context) ([]models.MaintenanceEntry, error) {
	_, records, err := s.serviceHistory(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.FindTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	names := make(map[string]string, len(tasks))
	for _, t := range tasks {
		names[t.ID] = t.Name
	}
	unknown := "Unknown task"
	if maintenance.IsFrench(s.language) {
		unknown = "Tâche inconnue"
	}

	entries := make([]models.MaintenanceEntry, 0, len(records))
	for _, r := range records {
		name, ok := names[r.TaskID]
		if !ok {
			name = unknown
		}
		entries = append(entries, models.MaintenanceEntry{
			ID:       r.ID,
			TaskID:   r.TaskID,
			TaskName: name,
			Mileage:  r.Mileage,
			Date:     r.Date,
		})
	}
	slices.SortStableFunc(entries, func(a, b models.MaintenanceEntry) int {
		return b.Mileage - a.Mileage
	})
	return entries, nil
}

// Dashboard is the full maintenance picture of the vehicle.
type Dashboard struct {
	Vehicle     models.Vehicle            `json:"vehicle"`
	History     models.ServiceHistory     `json:"history"`
	Tasks       []maintenance.TaskStatus  `json:"tasks"`
	Alerts      []maintenance.Alert       `json:"alerts"`
	Counts      map[maintenance.Level]int `json:"counts"`
	GeneratedAt string                    `json:"generated_at"`
}

// Dashboard evaluates every task against the current mileage, most urgent first.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	v, _, err := s.vehicle(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.History(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	statuses := s.projector.Evaluate(tasks, history, v.Mileage)
	counts := maintenance.Counts(statuses)
	s.metrics.SetMileage(v.Mileage)
	s.metrics.SetTaskCounts(counts)

	return &Dashboard{
		Vehicle:     v,
		History:     history,
		Tasks:       statuses,
		Alerts:      maintenance.Alerts(statuses, v.Details.NextTechnicalInspection, now, s.language),
		Counts:      counts,
		GeneratedAt: maintenance.FormatLongDate(now, s.language),
	}, nil
}

// Alerts returns the tasks that need attention.
func (s *Service) Alerts(ctx context.Context) ([]maintenance.Alert, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	return d.Alerts, nil
}

