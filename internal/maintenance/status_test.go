package maintenance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var refDay = time.Date(2026, time.October, 19, 15, 30, 0, 0, time.UTC)

func TestProject_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		lastDone  int
		interval  int
		current   int
		remaining int
		level     Level
		nextDue   int
	}{
		{"overdue by 1000 km", 0, 25000, 26000, -1000, LevelOverdue, 25000},
		{"due soon with 1500 km left", 0, 25000, 23500, 1500, LevelDueSoon, 25000},
		{"ok with 15000 km left", 0, 25000, 10000, 15000, LevelOK, 25000},
		{"exactly at due mileage", 25000, 25000, 50000, 0, LevelOverdue, 50000},
		{"exactly at threshold", 25000, 25000, 48000, 2000, LevelDueSoon, 50000},
		{"one km past threshold", 25000, 25000, 47999, 2001, LevelOK, 50000},
		{"zero interval placeholder", 0, 0, 47713, -47713, LevelOverdue, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Project(tt.lastDone, tt.interval, tt.current, refDay, "fr")
			assert.Equal(t, tt.remaining, s.Remaining)
			assert.Equal(t, tt.level, s.Level)
			assert.Equal(t, tt.nextDue, s.NextDue)
			assert.False(t, s.Rollback)
		})
	}
}

func TestProject_ClassificationProperties(t *testing.T) {
	for _, interval := range []int{1, 500, 2000, 2001, 25000, 60000} {
		for _, lastDone := range []int{0, 1234, 47713} {
			due := lastDone + interval
			for current := lastDone; current <= due+3000; current += 97 {
				s := Project(lastDone, interval, current, refDay, "en")
				switch {
				case current >= due:
					assert.Equal(t, LevelOverdue, s.Level, "interval=%d lastDone=%d current=%d", interval, lastDone, current)
					assert.LessOrEqual(t, s.Remaining, 0)
				case current >= due-DueSoonThreshold:
					assert.Equal(t, LevelDueSoon, s.Level, "interval=%d lastDone=%d current=%d", interval, lastDone, current)
				default:
					assert.Equal(t, LevelOK, s.Level, "interval=%d lastDone=%d current=%d", interval, lastDone, current)
				}
			}
		}
	}
}

func TestProject_EstimatedDateNeverInThePast(t *testing.T) {
	today := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	for _, current := range []int{0, 10000, 25000, 26000, 90000} {
		s := Project(0, 25000, current, refDay, "en")
		assert.False(t, s.EstimatedOn.Before(today), "current=%d", current)
		assert.GreaterOrEqual(t, s.DaysRemaining, 0.0)
	}
}

func TestProject_EstimatedDate(t *testing.T) {
	// 15000 km at 20000 km/year is 273.75 days, truncated to 273.
	s := Project(0, 25000, 10000, refDay, "fr")
	assert.Equal(t, time.Date(2027, time.July, 19, 0, 0, 0, 0, time.UTC), s.EstimatedOn)
	assert.Equal(t, "19 juillet 2027", s.EstimatedDate)
	assert.InDelta(t, 273.75, s.DaysRemaining, 0.001)

	s = Project(0, 25000, 23500, refDay, "en")
	assert.Equal(t, "November 15, 2026", s.EstimatedDate)

	s = Project(0, 25000, 26000, refDay, "en")
	assert.Equal(t, "October 19, 2026", s.EstimatedDate)
	assert.Equal(t, 0.0, s.DaysRemaining)
}

func TestProject_RollbackIsFlaggedNotRejected(t *testing.T) {
	s := Project(50000, 25000, 40000, refDay, "en")
	assert.Equal(t, 35000, s.Remaining)
	assert.Equal(t, LevelOK, s.Level)
	assert.True(t, s.Rollback)
}

func TestProjector_UsesClock(t *testing.T) {
	p := Projector{Now: func() time.Time { return refDay }, Language: "fr"}
	assert.Equal(t, Project(0, 25000, 23500, refDay, "fr"), p.Project(0, 25000, 23500))
}

func TestFormatMileage(t *testing.T) {
	assert.Equal(t, "47 713 km", FormatMileage(47713, "fr-BE"))
	assert.Equal(t, "47,713 km", FormatMileage(47713, "en"))
	assert.Equal(t, "123,456 km", FormatMileage(123456, "en"))
	assert.Equal(t, "950 km", FormatMileage(950, "fr"))
	assert.Equal(t, "-1 000 km", FormatMileage(-1000, "fr"))
	assert.Equal(t, "1,000,000 km", FormatMileage(1000000, "en"))
}

func TestFormatLongDate(t *testing.T) {
	d := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "1 août 2026", FormatLongDate(d, "fr"))
	assert.Equal(t, "August 1, 2026", FormatLongDate(d, "en"))
}
