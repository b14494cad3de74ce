package schedule

import "errors"

var (
	// ErrMalformedTime indicates a time string that could not be parsed
	// as either "HH:MM" or "H:MM AM/PM".
	ErrMalformedTime = errors.New("malformed time string")

	// ErrUnknownIntakeSlot indicates an intake label outside the closed
	// meal-relative enumeration.
	ErrUnknownIntakeSlot = errors.New("unknown intake slot")

	// ErrInvalidAlarmCode indicates a meal-relative resolution attempt for a
	// code outside 1-6. Custom codes carry their own literal time and must
	// never reach the resolver.
	ErrInvalidAlarmCode = errors.New("invalid alarm code")

	// ErrMealTimeMissing indicates the patient record lacks one of the three
	// meal entries needed to resolve a meal-relative alarm.
	ErrMealTimeMissing = errors.New("meal time missing")

	ErrPatientNotFound  = errors.New("patient not found")
	ErrMedicineNotFound = errors.New("medicine not found")
	ErrAlarmNotFound    = errors.New("alarm not found")
)
