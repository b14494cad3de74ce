package schedule

import "context"

// AlarmInsert carries the scheduling metadata applied only when an upsert
// creates the alarm. An existing alarm keeps its original time and custom
// flag untouched.
type AlarmInsert struct {
	Time     string
	IsCustom bool
}

// MedicineAttachment is the medicine entry merged into an alarm's medicine
// list. The merge is set-like on MedicineID: re-attaching the same medicine
// replaces its date list and never duplicates the entry.
type MedicineAttachment struct {
	MedicineID  string
	ActiveDates []string
}

// Store is the persistence collaborator for the schedule engine.
//
// UpsertAlarm is the concurrency primitive of the whole schedule: it must be
// atomic per (patientID, alarmCode) so that two attach calls racing on the
// same key both end up in the medicine list with no lost update. Backends
// enforce a unique constraint on the pair and use a native
// insert-or-merge operation or an equivalent per-key lock.
type Store interface {
	// FindPatient returns the patient's meal schedule, or ErrPatientNotFound.
	FindPatient(ctx context.Context, patientID string) (MealTimes, error)

	// CreateMedicine persists a new medicine record.
	CreateMedicine(ctx context.Context, m *Medicine) error

	// FindMedicine returns a medicine record, or ErrMedicineNotFound.
	FindMedicine(ctx context.Context, medicineID string) (*Medicine, error)

	// UpsertAlarm atomically creates-or-updates the alarm for
	// (patientID, code) and merges the medicine attachment into it. onInsert
	// applies only when the alarm does not exist yet. Returns the alarm with
	// its full medicine list.
	UpsertAlarm(ctx context.Context, patientID string, code int, onInsert AlarmInsert, attach MedicineAttachment) (*Alarm, error)

	// FindAlarms returns all alarms for a patient with medicine detail joined.
	FindAlarms(ctx context.Context, patientID string) ([]Alarm, error)

	// AddAlarmKeys appends custom alarm codes discovered during attachment to
	// the medicine's alarm key list.
	AddAlarmKeys(ctx context.Context, medicineID string, codes []int) error

	// RecordAdherence increments the medicine's counter for the given status
	// and returns the updated record. A missed dose of a critical medicine
	// also enqueues a caretaker alert in the same storage transaction.
	RecordAdherence(ctx context.Context, patientID, medicineID string, status AdherenceStatus) (*Medicine, error)
}
