package schedule

import "time"

// Medicine is a prescribed medicine record. Frequency, Days, DurationDays and
// DoseCount together describe the intake pattern (see PatternFor); AlarmKeys
// lists every alarm code the medicine is attached to, custom codes included.
type Medicine struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patient_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Frequency    string    `json:"frequency"`
	Days         []string  `json:"days,omitempty"`
	DurationDays int       `json:"duration_days"`
	DoseCount    int       `json:"dose_count"`
	IsCritical   bool      `json:"is_critical"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	AlarmKeys    []int     `json:"alarm_keys"`
	Taken        int       `json:"taken"`
	Missed       int       `json:"missed"`
	Delayed      int       `json:"delayed"`
	CreatedAt    time.Time `json:"created_at"`
}

// AlarmMedicine is one medicine attached to an alarm, with the calendar dates
// it is active on and the joined detail the presentation layer needs.
type AlarmMedicine struct {
	MedicineID   string   `json:"id"`
	ActiveDates  []string `json:"active_dates"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	DoseCount    int      `json:"dose_count"`
	DurationDays int      `json:"duration_days"`
	IsCritical   bool     `json:"is_critical"`
}

// ActiveOn reports whether the medicine is scheduled for the given date.
func (am AlarmMedicine) ActiveOn(date string) bool {
	for _, d := range am.ActiveDates {
		if d == date {
			return true
		}
	}
	return false
}

// Alarm is the central schedule record. Within one patient, one alarm code
// identifies exactly one fired time and one set of attached medicines; the
// (PatientID, AlarmCode) pair is unique in storage. Time and IsCustom are
// fixed at creation and never re-resolved (first-writer-wins).
type Alarm struct {
	ID        string          `json:"alarm_id"`
	PatientID string          `json:"patient_id"`
	AlarmCode int             `json:"alarm_code"`
	Time      string          `json:"time"`
	IsCustom  bool            `json:"is_custom"`
	Medicines []AlarmMedicine `json:"medicines"`
}

// AdherenceStatus records how a patient responded to a fired alarm.
type AdherenceStatus string

const (
	AdherenceTaken   AdherenceStatus = "taken"
	AdherenceMissed  AdherenceStatus = "missed"
	AdherenceDelayed AdherenceStatus = "delayed"
)

// Valid reports whether the status is one of the three known values.
func (s AdherenceStatus) Valid() bool {
	switch s {
	case AdherenceTaken, AdherenceMissed, AdherenceDelayed:
		return true
	}
	return false
}
