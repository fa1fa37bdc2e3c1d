// Package maintenance classifies maintenance tasks against the odometer and
// projects when each one falls due.
package maintenance

import (
	"time"
)

// Level is the urgency of a maintenance task.
type Level string

const (
	LevelOverdue Level = "OVERDUE"
	LevelDueSoon Level = "DUE_SOON"
	LevelOK      Level = "OK"
)

const (
	// DueSoonThreshold is the remaining distance (km) at or below which a task is due soon.
	DueSoonThreshold = 2000

	// Average usage assumed for date projection: 20000 km per 365 days.
	yearlyDistance = 20000.0
	daysPerYear    = 365.0
)

// KmPerDay is the fixed usage rate used to turn remaining distance into days.
const KmPerDay = yearlyDistance / daysPerYear

// Rank orders levels from most to least urgent.
func (l Level) Rank() int {
	switch l {
	case LevelOverdue:
		return 0
	case LevelDueSoon:
		return 1
	default:
		return 2
	}
}

// Status is the derived state of one task at a given odometer reading.
type Status struct {
	Remaining     int       `json:"remaining"`
	Level         Level     `json:"status"`
	NextDue       int       `json:"next_due"`
	DaysRemaining float64   `json:"days_remaining"`
	EstimatedOn   time.Time `json:"estimated_on"`
	EstimatedDate string    `json:"estimated_date"`
	// Rollback is set when the odometer is below the last service mileage.
	Rollback bool `json:"rollback,omitempty"`
}

// Classify maps a remaining distance to a level.
func Classify(remaining int) Level {
	switch {
	case remaining <= 0:
		return LevelOverdue
	case remaining <= DueSoonThreshold:
		return LevelDueSoon
	default:
		return LevelOK
	}
}

// Project computes the status of a task last done at lastDone, recurring every interval km,
// for the odometer reading current, as seen on day now. Dates are labelled in lang.
//
// A zero interval is not special-cased: the task is overdue as soon as the odometer moves.
// An odometer below lastDone is accepted and flagged through Status.Rollback.
func Project(lastDone, interval, current int, now time.Time, lang string) Status {
	nextDue := lastDone + interval
	remaining := nextDue - current

	days := float64(remaining) / KmPerDay
	if days < 0 {
		days = 0
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	estimated := today.AddDate(0, 0, int(days))

	return Status{
		Remaining:     remaining,
		Level:         Classify(remaining),
		NextDue:       nextDue,
		DaysRemaining: days,
		EstimatedOn:   estimated,
		EstimatedDate: FormatLongDate(estimated, lang),
		Rollback:      current < lastDone,
	}
}

// Projector binds Project to a clock and a display language.
type Projector struct {
	Now      func() time.Time
	Language string
}

// NewProjector returns a projector using the wall clock.
func NewProjector(lang string) Projector {
	return Projector{Now: time.Now, Language: lang}
}

// Project is Project evaluated at p.Now().
func (p Projector) Project(lastDone, interval, current int) Status {
	return Project(lastDone, interval, current, p.today(), p.Language)
}

func (p Projector) today() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
