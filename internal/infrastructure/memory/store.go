// Package memory provides an in-process implementation of the schedule
// store, used by tests and local development. The per-(patient, alarm code)
// upsert is serialized under a single mutex, the lock-based equivalent of the
// database's native insert-or-merge.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/SaurabhShahane30/codecrew-khacks/internal/domain/schedule"
)

type alarmKey struct {
	patientID string
	code      int
}

// Store is an in-memory schedule.Store.
type Store struct {
	mu        sync.Mutex
	patients  map[string]schedule.MealTimes
	medicines map[string]*schedule.Medicine
	alarms    map[alarmKey]*schedule.Alarm
	alerts    []Alert
}

// Alert is a caretaker alert captured in place of the outbox.
type Alert struct {
	PatientID  string
	MedicineID string
	Kind       string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		patients:  make(map[string]schedule.MealTimes),
		medicines: make(map[string]*schedule.Medicine),
		alarms:    make(map[alarmKey]*schedule.Alarm),
	}
}

// AddPatient registers a patient with the given meal schedule.
func (s *Store) AddPatient(patientID string, meals schedule.MealTimes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[patientID] = meals
}

// UpdateMealTimes replaces the patient's meal schedule.
func (s *Store) UpdateMealTimes(_ context.Context, patientID string, meals schedule.MealTimes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patients[patientID]; !ok {
		return schedule.ErrPatientNotFound
	}
	s.patients[patientID] = meals
	return nil
}

func (s *Store) FindPatient(_ context.Context, patientID string) (schedule.MealTimes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meals, ok := s.patients[patientID]
	if !ok {
		return nil, schedule.ErrPatientNotFound
	}
	return meals, nil
}

func (s *Store) CreateMedicine(_ context.Context, m *schedule.Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *m
	s.medicines[m.ID] = &clone
	return nil
}

func (s *Store) FindMedicine(_ context.Context, medicineID string) (*schedule.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.medicines[medicineID]
	if !ok {
		return nil, schedule.ErrMedicineNotFound
	}
	clone := *m
	return &clone, nil
}

func (s *Store) UpsertAlarm(_ context.Context, patientID string, code int, onInsert schedule.AlarmInsert, attach schedule.MedicineAttachment) (*schedule.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := alarmKey{patientID: patientID, code: code}
	alarm, ok := s.alarms[key]
	if !ok {
		alarm = &schedule.Alarm{
			ID:        uuid.New().String(),
			PatientID: patientID,
			AlarmCode: code,
			Time:      onInsert.Time,
			IsCustom:  onInsert.IsCustom,
		}
		s.alarms[key] = alarm
	}

	merged := false
	for i := range alarm.Medicines {
		if alarm.Medicines[i].MedicineID == attach.MedicineID {
			alarm.Medicines[i].ActiveDates = append([]string(nil), attach.ActiveDates...)
			merged = true
			break
		}
	}
	if !merged {
		alarm.Medicines = append(alarm.Medicines, s.attachedMedicine(attach))
	}

	return s.cloneAlarm(alarm), nil
}

func (s *Store) FindAlarms(_ context.Context, patientID string) ([]schedule.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var alarms []schedule.Alarm
	for key, alarm := range s.alarms {
		if key.patientID == patientID {
			alarms = append(alarms, *s.cloneAlarm(alarm))
		}
	}
	return alarms, nil
}

func (s *Store) AddAlarmKeys(_ context.Context, medicineID string, codes []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.medicines[medicineID]
	if !ok {
		return schedule.ErrMedicineNotFound
	}

	for _, code := range codes {
		present := false
		for _, existing := range m.AlarmKeys {
			if existing == code {
				present = true
				break
			}
		}
		if !present {
			m.AlarmKeys = append(m.AlarmKeys, code)
		}
	}
	return nil
}

func (s *Store) RecordAdherence(_ context.Context, patientID, medicineID string, status schedule.AdherenceStatus) (*schedule.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.medicines[medicineID]
	if !ok || m.PatientID != patientID {
		return nil, schedule.ErrMedicineNotFound
	}

	switch status {
	case schedule.AdherenceTaken:
		m.Taken++
	case schedule.AdherenceMissed:
		m.Missed++
	case schedule.AdherenceDelayed:
		m.Delayed++
	default:
		return nil, fmt.Errorf("unknown adherence status %q", status)
	}

	if status == schedule.AdherenceMissed && m.IsCritical {
		s.alerts = append(s.alerts, Alert{
			PatientID:  patientID,
			MedicineID: medicineID,
			Kind:       "dose.missed",
		})
	}

	clone := *m
	return &clone, nil
}

// Alerts returns the caretaker alerts captured so far.
func (s *Store) Alerts() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.alerts...)
}

func (s *Store) attachedMedicine(attach schedule.MedicineAttachment) schedule.AlarmMedicine {
	am := schedule.AlarmMedicine{
		MedicineID:  attach.MedicineID,
		ActiveDates: append([]string(nil), attach.ActiveDates...),
	}
	if m, ok := s.medicines[attach.MedicineID]; ok {
		am.Name = m.Name
		am.Type = m.Type
		am.DoseCount = m.DoseCount
		am.DurationDays = m.DurationDays
		am.IsCritical = m.IsCritical
	}
	return am
}

func (s *Store) cloneAlarm(a *schedule.Alarm) *schedule.Alarm {
	clone := *a
	clone.Medicines = make([]schedule.AlarmMedicine, len(a.Medicines))
	for i, med := range a.Medicines {
		clone.Medicines[i] = med
		clone.Medicines[i].ActiveDates = append([]string(nil), med.ActiveDates...)
	}
	return &clone
}
