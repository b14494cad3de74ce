package schedule

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used throughout the schedule store.
const DateLayout = "2006-01-02"

// Weekday tags as stored on medicines with a SpecificDays pattern.
var weekdayTags = map[time.Weekday]string{
	time.Sunday:    "Sun",
	time.Monday:    "Mon",
	time.Tuesday:   "Tue",
	time.Wednesday: "Wed",
	time.Thursday:  "Thu",
	time.Friday:    "Fri",
	time.Saturday:  "Sat",
}

// WeekdayTag returns the three-letter tag for a calendar date.
func WeekdayTag(t time.Time) string {
	return weekdayTags[t.Weekday()]
}

// DosePattern is the closed set of intake frequency variants. Each variant
// carries its own parameters and knows how to expand itself into the ordered
// list of calendar dates the medicine is active on.
type DosePattern interface {
	// Dates returns the active calendar dates, formatted DateLayout, starting
	// from the calendar day of start. The time-of-day component of start is
	// ignored.
	Dates(start time.Time) []string

	isDosePattern()
}

// Daily activates the medicine every day for DurationDays consecutive days.
type Daily struct {
	DurationDays int
}

func (d Daily) isDosePattern() {}

func (d Daily) Dates(start time.Time) []string {
	day := truncateToDay(start)
	dates := make([]string, 0, d.DurationDays)
	for i := 0; i < d.DurationDays; i++ {
		dates = append(dates, day.AddDate(0, 0, i).Format(DateLayout))
	}
	return dates
}

// AlternateDays activates the medicine every other day. The sequence length
// is DoseCount, not the course duration.
type AlternateDays struct {
	DoseCount int
}

func (a AlternateDays) isDosePattern() {}

func (a AlternateDays) Dates(start time.Time) []string {
	day := truncateToDay(start)
	dates := make([]string, 0, a.DoseCount)
	for i := 0; i < a.DoseCount; i++ {
		dates = append(dates, day.AddDate(0, 0, 2*i).Format(DateLayout))
	}
	return dates
}

// SpecificDays walks DurationDays consecutive days and keeps only the dates
// falling on one of the listed weekday tags.
type SpecificDays struct {
	DurationDays int
	Days         []string
}

func (s SpecificDays) isDosePattern() {}

func (s SpecificDays) Dates(start time.Time) []string {
	allowed := make(map[string]bool, len(s.Days))
	for _, d := range s.Days {
		allowed[d] = true
	}

	day := truncateToDay(start)
	var dates []string
	for i := 0; i < s.DurationDays; i++ {
		date := day.AddDate(0, 0, i)
		if allowed[WeekdayTag(date)] {
			dates = append(dates, date.Format(DateLayout))
		}
	}
	return dates
}

// ActiveDates expands a dose pattern into its calendar-date sequence.
func ActiveDates(p DosePattern, start time.Time) []string {
	return p.Dates(start)
}

// Frequency names as supplied by callers and stored on medicine records.
const (
	FrequencyDaily         = "Daily"
	FrequencyAlternateDays = "Alternate Days"
	FrequencySpecificDays  = "Specific Days"
)

// PatternFor builds the dose pattern variant for a medicine record, enforcing
// the record invariants: days are required exactly when the frequency is
// SpecificDays, and duration/dose counts are at least 1.
func PatternFor(m *Medicine) (DosePattern, error) {
	switch m.Frequency {
	case FrequencyDaily:
		if m.DurationDays < 1 {
			return nil, fmt.Errorf("medicine %s: durationDays must be >= 1", m.ID)
		}
		return Daily{DurationDays: m.DurationDays}, nil
	case FrequencyAlternateDays:
		if m.DoseCount < 1 {
			return nil, fmt.Errorf("medicine %s: doseCount must be >= 1", m.ID)
		}
		return AlternateDays{DoseCount: m.DoseCount}, nil
	case FrequencySpecificDays:
		if m.DurationDays < 1 {
			return nil, fmt.Errorf("medicine %s: durationDays must be >= 1", m.ID)
		}
		if len(m.Days) == 0 {
			return nil, fmt.Errorf("medicine %s: days required for %s", m.ID, FrequencySpecificDays)
		}
		return SpecificDays{DurationDays: m.DurationDays, Days: m.Days}, nil
	default:
		return nil, fmt.Errorf("medicine %s: unknown frequency %q", m.ID, m.Frequency)
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
