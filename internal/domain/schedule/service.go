package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MedicineDescriptor is the caller-facing shape of a new medicine: the
// intake pattern plus the requested intake slots.
type MedicineDescriptor struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	IntakeTimes  []string `json:"intake_times"`
	CustomTimes  []string `json:"custom_times,omitempty"`
	Frequency    string   `json:"frequency"`
	Days         []string `json:"days,omitempty"`
	DurationDays int      `json:"duration_days"`
	DoseCount    int      `json:"dose_count"`
	IsCritical   bool     `json:"is_critical"`
	PhotoURL     string   `json:"photo_url,omitempty"`
}

// Scheduler is the schedule derivation engine. All operations take their
// reference time as an explicit parameter; the engine never reads the wall
// clock itself.
type Scheduler struct {
	store  Store
	logger *zap.Logger
	tracer trace.Tracer
}

// NewScheduler creates a scheduler backed by the given store.
func NewScheduler(store Store, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("schedule"),
	}
}

// AddMedicineSchedule creates a medicine from its descriptor and attaches it
// to the patient's alarm schedule. Unknown intake labels reject the whole
// request before anything is persisted. now fixes the start of the
// active-date sequence; backdating is not supported.
func (s *Scheduler) AddMedicineSchedule(ctx context.Context, patientID string, desc MedicineDescriptor, now time.Time) (*Medicine, []Alarm, error) {
	ctx, span := s.tracer.Start(ctx, "add_medicine_schedule",
		trace.WithAttributes(attribute.String("patient_id", patientID)))
	defer span.End()

	codes, err := SlotCodes(desc.IntakeTimes)
	if err != nil {
		return nil, nil, err
	}

	med := &Medicine{
		ID:           uuid.New().String(),
		PatientID:    patientID,
		Name:         desc.Name,
		Type:         desc.Type,
		Frequency:    desc.Frequency,
		Days:         desc.Days,
		DurationDays: desc.DurationDays,
		DoseCount:    desc.DoseCount,
		IsCritical:   desc.IsCritical,
		PhotoURL:     desc.PhotoURL,
		AlarmKeys:    append([]int(nil), codes...),
		CreatedAt:    now,
	}

	// Validate the intake pattern before touching storage.
	if _, err := PatternFor(med); err != nil {
		return nil, nil, err
	}

	if err := s.store.CreateMedicine(ctx, med); err != nil {
		return nil, nil, fmt.Errorf("create medicine: %w", err)
	}

	s.logger.Info("medicine created",
		zap.String("medicine_id", med.ID),
		zap.String("patient_id", patientID),
		zap.String("frequency", med.Frequency))

	alarms, err := s.Attach(ctx, patientID, med, codes, desc.CustomTimes)
	if err != nil {
		return med, alarms, err
	}
	return med, alarms, nil
}

// Attach upserts the medicine into the alarm record of every requested slot.
// Meal-relative codes are processed in caller order, then custom times.
//
// Attach is not all-or-nothing across codes: each (patient, code) upsert is
// an independent atomic unit, and a failure on one code does not roll back
// upserts already issued. The only full abort is a missing patient, detected
// before any upsert begins. The returned alarms are those successfully
// attached; err reports the first per-code failure, if any.
func (s *Scheduler) Attach(ctx context.Context, patientID string, med *Medicine, alarmCodes []int, customTimes []string) ([]Alarm, error) {
	ctx, span := s.tracer.Start(ctx, "attach_alarms",
		trace.WithAttributes(
			attribute.String("patient_id", patientID),
			attribute.String("medicine_id", med.ID),
			attribute.Int("meal_codes", len(alarmCodes)),
			attribute.Int("custom_times", len(customTimes)),
		))
	defer span.End()

	meals, err := s.store.FindPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	pattern, err := PatternFor(med)
	if err != nil {
		return nil, err
	}
	attachment := MedicineAttachment{
		MedicineID:  med.ID,
		ActiveDates: ActiveDates(pattern, med.CreatedAt),
	}

	var (
		alarms   []Alarm
		firstErr error
	)

	for _, code := range alarmCodes {
		resolved, err := ResolveAlarmTime(code, meals)
		if err != nil {
			s.logger.Error("alarm time resolution failed",
				zap.Int("alarm_code", code),
				zap.String("patient_id", patientID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		alarm, err := s.store.UpsertAlarm(ctx, patientID, code,
			AlarmInsert{Time: resolved, IsCustom: false}, attachment)
		if err != nil {
			s.logger.Error("alarm upsert failed",
				zap.Int("alarm_code", code),
				zap.String("patient_id", patientID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("upsert alarm %d: %w", code, err)
			}
			continue
		}
		alarms = append(alarms, *alarm)
	}

	var customCodes []int
	for _, t := range customTimes {
		code, normalized, err := CustomAlarmCode(t)
		if err != nil {
			s.logger.Error("custom time rejected",
				zap.String("time", t),
				zap.String("patient_id", patientID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		alarm, err := s.store.UpsertAlarm(ctx, patientID, code,
			AlarmInsert{Time: normalized, IsCustom: true}, attachment)
		if err != nil {
			s.logger.Error("alarm upsert failed",
				zap.Int("alarm_code", code),
				zap.String("patient_id", patientID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("upsert alarm %d: %w", code, err)
			}
			continue
		}
		alarms = append(alarms, *alarm)
		customCodes = append(customCodes, code)
	}

	if len(customCodes) > 0 {
		if err := s.store.AddAlarmKeys(ctx, med.ID, customCodes); err != nil {
			s.logger.Error("recording custom alarm keys failed",
				zap.String("medicine_id", med.ID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("add alarm keys: %w", err)
			}
		} else {
			med.AlarmKeys = append(med.AlarmKeys, customCodes...)
		}
	}

	span.SetAttributes(attribute.Int("alarms_attached", len(alarms)))
	return alarms, firstErr
}

// Upcoming returns the alarms still ahead of now today, each carrying only
// the medicines active on today's date. Alarms whose time has already passed
// are excluded outright; "upcoming" never looks ahead to tomorrow. Results
// are ordered by fire time ascending.
func (s *Scheduler) Upcoming(ctx context.Context, patientID string, now time.Time) ([]Alarm, error) {
	ctx, span := s.tracer.Start(ctx, "upcoming_alarms",
		trace.WithAttributes(attribute.String("patient_id", patientID)))
	defer span.End()

	alarms, err := s.store.FindAlarms(ctx, patientID)
	if err != nil {
		return nil, err
	}

	currentMinutes := now.Hour()*60 + now.Minute()
	today := now.Format(DateLayout)

	type ranked struct {
		alarm   Alarm
		minutes int
	}
	var upcoming []ranked

	for _, alarm := range alarms {
		alarmMinutes, err := ParseToMinutes(alarm.Time)
		if err != nil {
			s.logger.Warn("skipping alarm with unparseable time",
				zap.String("alarm_id", alarm.ID),
				zap.String("time", alarm.Time))
			continue
		}
		if alarmMinutes <= currentMinutes {
			continue
		}

		var active []AlarmMedicine
		for _, med := range alarm.Medicines {
			if med.ActiveOn(today) {
				active = append(active, med)
			}
		}
		if len(active) == 0 {
			continue
		}

		alarm.Medicines = active
		upcoming = append(upcoming, ranked{alarm: alarm, minutes: alarmMinutes})
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].minutes < upcoming[j].minutes
	})

	result := make([]Alarm, 0, len(upcoming))
	for _, r := range upcoming {
		result = append(result, r.alarm)
	}
	span.SetAttributes(attribute.Int("alarm_count", len(result)))
	return result, nil
}

// ActiveOn returns the flat, deduplicated list of medicines scheduled on an
// arbitrary calendar date, regardless of alarm time.
func (s *Scheduler) ActiveOn(ctx context.Context, patientID string, date time.Time) ([]AlarmMedicine, error) {
	ctx, span := s.tracer.Start(ctx, "active_on_date",
		trace.WithAttributes(attribute.String("patient_id", patientID)))
	defer span.End()

	alarms, err := s.store.FindAlarms(ctx, patientID)
	if err != nil {
		return nil, err
	}

	day := date.Format(DateLayout)
	seen := make(map[string]bool)
	var medicines []AlarmMedicine

	for _, alarm := range alarms {
		for _, med := range alarm.Medicines {
			if seen[med.MedicineID] || !med.ActiveOn(day) {
				continue
			}
			seen[med.MedicineID] = true
			medicines = append(medicines, med)
		}
	}

	return medicines, nil
}

// RecordAdherence records a taken/missed/delayed response for a medicine.
func (s *Scheduler) RecordAdherence(ctx context.Context, patientID, medicineID string, status AdherenceStatus) (*Medicine, error) {
	ctx, span := s.tracer.Start(ctx, "record_adherence",
		trace.WithAttributes(
			attribute.String("patient_id", patientID),
			attribute.String("medicine_id", medicineID),
			attribute.String("status", string(status)),
		))
	defer span.End()

	if !status.Valid() {
		return nil, fmt.Errorf("unknown adherence status %q", status)
	}

	med, err := s.store.RecordAdherence(ctx, patientID, medicineID, status)
	if err != nil {
		return nil, err
	}

	s.logger.Info("adherence recorded",
		zap.String("medicine_id", medicineID),
		zap.String("patient_id", patientID),
		zap.String("status", string(status)))
	return med, nil
}
