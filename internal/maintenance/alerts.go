package maintenance

import (
	"math"
	"time"
)

// InspectionTaskID identifies the technical inspection alert.
const InspectionTaskID = "technical_inspection"

// inspectionWindowDays is how far ahead the technical inspection starts raising an alert.
const inspectionWindowDays = 30

// Alert is a task that needs attention.
type Alert struct {
	TaskID        string `json:"task_id"`
	Name          string `json:"name"`
	Level         Level  `json:"status"`
	Remaining     int    `json:"remaining"`
	Unit          string `json:"unit"` // "km" or "days"
	EstimatedDate string `json:"estimated_date"`
	Inspection    bool   `json:"inspection,omitempty"`
}

// Alerts returns every status that is not OK, in the order given, preceded by the technical
// inspection when it is due within 30 days. An empty or malformed inspection date is ignored.
func Alerts(statuses []TaskStatus, inspectionDate string, now time.Time, lang string) []Alert {
	alerts := make([]Alert, 0, len(statuses)+1)

	if a, ok := inspectionAlert(inspectionDate, now, lang); ok {
		alerts = append(alerts, a)
	}

	for _, s := range statuses {
		if s.Level == LevelOK {
			continue
		}
		alerts = append(alerts, Alert{
			TaskID:        s.Task.ID,
			Name:          s.Task.Name,
			Level:         s.Level,
			Remaining:     s.Remaining,
			Unit:          "km",
			EstimatedDate: s.EstimatedDate,
		})
	}
	return alerts
}

func inspectionAlert(date string, now time.Time, lang string) (Alert, bool) {
	if date == "" {
		return Alert{}, false
	}
	due, err := time.ParseInLocation("2006-01-02", date, now.Location())
	if err != nil {
		return Alert{}, false
	}

	days := int(math.Ceil(due.Sub(now).Hours() / 24))
	if days > inspectionWindowDays {
		return Alert{}, false
	}

	level := LevelDueSoon
	if days <= 0 {
		level = LevelOverdue
	}
	name := "Technical inspection"
	if IsFrench(lang) {
		name = "Contrôle technique"
	}
	return Alert{
		TaskID:        InspectionTaskID,
		Name:          name,
		Level:         level,
		Remaining:     days,
		Unit:          "days",
		EstimatedDate: FormatLongDate(due, lang),
		Inspection:    true,
	}, true
}
