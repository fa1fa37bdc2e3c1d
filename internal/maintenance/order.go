package maintenance

import (
	"cmp"
	"slices"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
)

// TaskStatus is a task resolved against the current odometer.
type TaskStatus struct {
	Task     models.MaintenanceTask `json:"task"`
	LastDone int                    `json:"last_done"`
	Status
}

// Compare orders a before b when it is more urgent: by level rank, then by remaining distance.
func Compare(a, b TaskStatus) int {
	if c := cmp.Compare(a.Level.Rank(), b.Level.Rank()); c != 0 {
		return c
	}
	return cmp.Compare(a.Remaining, b.Remaining)
}

// Sort orders statuses by urgency in place. Equal elements keep their relative order.
func Sort(statuses []TaskStatus) {
	slices.SortStableFunc(statuses, Compare)
}

// Evaluate resolves every task against history and mileage and returns them sorted by urgency.
func (p Projector) Evaluate(tasks []models.MaintenanceTask, history models.ServiceHistory, mileage int) []TaskStatus {
	now := p.today()
	statuses := make([]TaskStatus, 0, len(tasks))
	for _, task := range tasks {
		lastDone := history.LastDone(task.ID)
		statuses = append(statuses, TaskStatus{
			Task:     task,
			LastDone: lastDone,
			Status:   Project(lastDone, task.Interval, mileage, now, p.Language),
		})
	}
	Sort(statuses)
	return statuses
}

// Counts returns how many statuses fall in each level.
func Counts(statuses []TaskStatus) map[Level]int {
	counts := map[Level]int{LevelOverdue: 0, LevelDueSoon: 0, LevelOK: 0}
	for _, s := range statuses {
		counts[s.Level]++
	}
	return counts
}
