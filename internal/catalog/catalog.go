// Package catalog loads the maintenance task catalog and seeds it into the store.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/db"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/validation"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed default_tasks.yaml
var defaultCatalog []byte

type file struct {
	Tasks []entry `yaml:"tasks"`
}

type entry struct {
	ID               string  `yaml:"id"`
	Name             string  `yaml:"name"`
	Interval         int     `yaml:"interval"`
	PriceIndependent float64 `yaml:"price_independent"`
	PriceDealer      float64 `yaml:"price_dealer"`
	Description      string  `yaml:"description"`
}

// Default returns the built-in catalog.
func Default() []models.MaintenanceTask {
	tasks, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return tasks
}

// Load reads the catalog at path, or the built-in one when path is empty.
func Load(path string) ([]models.MaintenanceTask, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	tasks, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return tasks, nil
}

// Parse decodes a YAML catalog and validates every task. Ids must be unique.
func Parse(data []byte) ([]models.MaintenanceTask, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Tasks))
	tasks := make([]models.MaintenanceTask, 0, len(f.Tasks))
	for i, e := range f.Tasks {
		task := models.MaintenanceTask{
			ID:               e.ID,
			Name:             e.Name,
			Interval:         e.Interval,
			PriceIndependent: e.PriceIndependent,
			PriceDealer:      e.PriceDealer,
			Description:      e.Description,
		}
		if err := validation.Struct(task); err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		if seen[task.ID] {
			return nil, fmt.Errorf("task %d: duplicate id %q", i, task.ID)
		}
		seen[task.ID] = true
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Seed inserts tasks when the catalog collection is empty and returns how many were inserted.
func Seed(ctx context.Context, collection db.TaskCollection, tasks []models.MaintenanceTask) (int, error) {
	count, err := collection.CountTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	if count > 0 {
		log.WithField("tasks", count).Debug("Catalog already populated, skipping seed")
		return 0, nil
	}
	if err := collection.InsertTasks(ctx, tasks); err != nil {
		return 0, err
	}
	log.WithField("tasks", len(tasks)).Info("Seeded maintenance catalog")
	return len(tasks), nil
}
