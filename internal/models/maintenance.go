package models

import (
	"strconv"
	"time"
)

// PlaceholderTaskID identifies the synthetic task returned when the catalog is empty.
const PlaceholderTaskID = "no_tasks_found"

// MaintenanceTask is a recurring maintenance action with a distance-based interval.
type MaintenanceTask struct {
	ID               string    `json:"id" bson:"_id" validate:"required,max=64"`
	Name             string    `json:"name" bson:"name" validate:"required,max=120"`
	Interval         int       `json:"interval" bson:"interval" validate:"gte=0"` // in kilometers
	PriceIndependent float64   `json:"price_independent" bson:"price_independent" validate:"gte=0"`
	PriceDealer      float64   `json:"price_dealer" bson:"price_dealer" validate:"gte=0"`
	Description      string    `json:"description" bson:"description"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at"`
}

// ServiceRecord is one completed service: task TaskID was performed at Mileage.
type ServiceRecord struct {
	ID        string    `json:"id" bson:"_id"`
	TaskID    string    `json:"task_id" bson:"task_id"`
	Mileage   int       `json:"mileage" bson:"mileage"` // in kilometers
	Date      time.Time `json:"date" bson:"date"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// ServiceRecordID returns the document id of the (task, mileage) fact. Two writes of the
// same fact always target the same document.
func ServiceRecordID(taskID string, mileage int) string {
	return taskID + "@" + strconv.Itoa(mileage)
}

// NewServiceRecord builds the record for taskID done at mileage.
func NewServiceRecord(taskID string, mileage int, at time.Time) ServiceRecord {
	return ServiceRecord{
		ID:        ServiceRecordID(taskID, mileage),
		TaskID:    taskID,
		Mileage:   mileage,
		Date:      at,
		CreatedAt: at,
	}
}

// ServiceHistory maps a task id to the highest mileage at which it was completed.
type ServiceHistory map[string]int

// HistoryFromRecords folds records into a ServiceHistory, keeping the highest mileage per task.
func HistoryFromRecords(records []ServiceRecord) ServiceHistory {
	history := make(ServiceHistory, len(records))
	for _, r := range records {
		history.Record(r.TaskID, r.Mileage)
	}
	return history
}

// Record stores mileage for taskID unless a higher value is already known.
func (h ServiceHistory) Record(taskID string, mileage int) {
	if taskID == "" || mileage <= 0 {
		return
	}
	if current, ok := h[taskID]; !ok || mileage > current {
		h[taskID] = mileage
	}
}

// LastDone returns the mileage at which taskID was last completed, 0 if never.
func (h ServiceHistory) LastDone(taskID string) int {
	return h[taskID]
}

// MaintenanceEntry is a history record joined with the task it refers to.
type MaintenanceEntry struct {
	ID       string    `json:"id"`
	TaskID   string    `json:"task_id"`
	TaskName string    `json:"task_name"`
	Mileage  int       `json:"mileage"`
	Date     time.Time `json:"date,omitempty"`
}
