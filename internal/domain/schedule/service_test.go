package schedule_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SaurabhShahane30/codecrew-khacks/internal/domain/schedule"
	"github.com/SaurabhShahane30/codecrew-khacks/internal/infrastructure/memory"
)

const patientID = "patient-1"

// fixedNow is a Monday at 10:00.
var fixedNow = time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T) (*schedule.Scheduler, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.AddPatient(patientID, schedule.DefaultMealTimes())
	return schedule.NewScheduler(store, zap.NewNop()), store
}

func descriptor() schedule.MedicineDescriptor {
	return schedule.MedicineDescriptor{
		Name:         "Paracetamol",
		Type:         "tablet",
		IntakeTimes:  []string{"Before Breakfast", "After Dinner"},
		Frequency:    schedule.FrequencyDaily,
		DurationDays: 3,
		DoseCount:    1,
	}
}

func TestAddMedicineScheduleAttachesMealAlarms(t *testing.T) {
	sched, _ := newScheduler(t)

	med, alarms, err := sched.AddMedicineSchedule(context.Background(), patientID, descriptor(), fixedNow)
	if err != nil {
		t.Fatalf("AddMedicineSchedule() error = %v", err)
	}

	if len(alarms) != 2 {
		t.Fatalf("got %d alarms, want 2", len(alarms))
	}
	// Caller-supplied order: before breakfast first.
	if alarms[0].AlarmCode != 1 || alarms[0].Time != "08:45 AM" {
		t.Errorf("alarm[0] = code %d time %q, want code 1 time 08:45 AM", alarms[0].AlarmCode, alarms[0].Time)
	}
	if alarms[1].AlarmCode != 6 || alarms[1].Time != "09:30 PM" {
		t.Errorf("alarm[1] = code %d time %q, want code 6 time 09:30 PM", alarms[1].AlarmCode, alarms[1].Time)
	}
	for _, alarm := range alarms {
		if alarm.IsCustom {
			t.Errorf("alarm %d flagged custom", alarm.AlarmCode)
		}
		if len(alarm.Medicines) != 1 || alarm.Medicines[0].MedicineID != med.ID {
			t.Errorf("alarm %d medicines = %v, want only %s", alarm.AlarmCode, alarm.Medicines, med.ID)
		}
		wantDates := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
		gotDates := alarm.Medicines[0].ActiveDates
		if len(gotDates) != len(wantDates) {
			t.Fatalf("active dates = %v, want %v", gotDates, wantDates)
		}
		for i := range wantDates {
			if gotDates[i] != wantDates[i] {
				t.Errorf("active dates = %v, want %v", gotDates, wantDates)
				break
			}
		}
	}
}

func TestAddMedicineScheduleCustomTime(t *testing.T) {
	sched, store := newScheduler(t)

	desc := descriptor()
	desc.IntakeTimes = nil
	desc.CustomTimes = []string{"21:15"}

	med, alarms, err := sched.AddMedicineSchedule(context.Background(), patientID, desc, fixedNow)
	if err != nil {
		t.Fatalf("AddMedicineSchedule() error = %v", err)
	}
	if len(alarms) != 1 {
		t.Fatalf("got %d alarms, want 1", len(alarms))
	}

	alarm := alarms[0]
	if !alarm.IsCustom {
		t.Error("custom alarm not flagged custom")
	}
	if alarm.Time != "09:15 PM" {
		t.Errorf("custom alarm time = %q, want normalized 09:15 PM", alarm.Time)
	}
	if alarm.AlarmCode >= 1 && alarm.AlarmCode <= 6 {
		t.Errorf("custom alarm code %d collides with the reserved range", alarm.AlarmCode)
	}

	// The hashed code is written back onto the medicine's alarm keys.
	stored, err := store.FindMedicine(context.Background(), med.ID)
	if err != nil {
		t.Fatalf("FindMedicine() error = %v", err)
	}
	found := false
	for _, key := range stored.AlarmKeys {
		if key == alarm.AlarmCode {
			found = true
		}
	}
	if !found {
		t.Errorf("alarm keys %v missing custom code %d", stored.AlarmKeys, alarm.AlarmCode)
	}
}

func TestAddMedicineScheduleUnknownSlotRejected(t *testing.T) {
	sched, store := newScheduler(t)

	desc := descriptor()
	desc.IntakeTimes = []string{"Second Breakfast"}

	_, _, err := sched.AddMedicineSchedule(context.Background(), patientID, desc, fixedNow)
	if !errors.Is(err, schedule.ErrUnknownIntakeSlot) {
		t.Fatalf("error = %v, want ErrUnknownIntakeSlot", err)
	}

	// Nothing persisted.
	alarms, _ := store.FindAlarms(context.Background(), patientID)
	if len(alarms) != 0 {
		t.Errorf("got %d alarms persisted after rejected request", len(alarms))
	}
}

func TestAttachPatientNotFound(t *testing.T) {
	sched, _ := newScheduler(t)

	_, _, err := sched.AddMedicineSchedule(context.Background(), "nobody", descriptor(), fixedNow)
	if !errors.Is(err, schedule.ErrPatientNotFound) {
		t.Fatalf("error = %v, want ErrPatientNotFound", err)
	}
}

func TestAttachIdempotent(t *testing.T) {
	sched, store := newScheduler(t)

	med, _, err := sched.AddMedicineSchedule(context.Background(), patientID, descriptor(), fixedNow)
	if err != nil {
		t.Fatalf("AddMedicineSchedule() error = %v", err)
	}

	// Retry the attachment with the same medicine and codes.
	if _, err := sched.Attach(context.Background(), patientID, med, []int{1, 6}, nil); err != nil {
		t.Fatalf("Attach() retry error = %v", err)
	}

	alarms, _ := store.FindAlarms(context.Background(), patientID)
	if len(alarms) != 2 {
		t.Fatalf("got %d alarms after retry, want 2", len(alarms))
	}
	for _, alarm := range alarms {
		if len(alarm.Medicines) != 1 {
			t.Errorf("alarm %d has %d medicine entries after retry, want 1", alarm.AlarmCode, len(alarm.Medicines))
		}
	}
}

func TestAttachSharedSlotKeepsBothMedicines(t *testing.T) {
	sched, store := newScheduler(t)

	first, _, err := sched.AddMedicineSchedule(context.Background(), patientID, descriptor(), fixedNow)
	if err != nil {
		t.Fatalf("first AddMedicineSchedule() error = %v", err)
	}

	second := descriptor()
	second.Name = "Ibuprofen"
	second.IntakeTimes = []string{"Before Breakfast"}
	secondMed, _, err := sched.AddMedicineSchedule(context.Background(), patientID, second, fixedNow)
	if err != nil {
		t.Fatalf("second AddMedicineSchedule() error = %v", err)
	}

	alarms, _ := store.FindAlarms(context.Background(), patientID)
	var shared *schedule.Alarm
	for i := range alarms {
		if alarms[i].AlarmCode == 1 {
			shared = &alarms[i]
		}
	}
	if shared == nil {
		t.Fatal("no alarm with code 1")
	}
	if len(shared.Medicines) != 2 {
		t.Fatalf("shared alarm has %d medicines, want 2", len(shared.Medicines))
	}

	ids := map[string]bool{}
	for _, m := range shared.Medicines {
		ids[m.MedicineID] = true
		if len(m.ActiveDates) == 0 {
			t.Errorf("medicine %s lost its active dates", m.MedicineID)
		}
	}
	if !ids[first.ID] || !ids[secondMed.ID] {
		t.Errorf("shared alarm medicines = %v, want both %s and %s", ids, first.ID, secondMed.ID)
	}
}

func TestAttachConcurrentSameSlot(t *testing.T) {
	sched, store := newScheduler(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	meds := make([]*schedule.Medicine, 8)
	for i := range meds {
		desc := descriptor()
		desc.IntakeTimes = []string{"After Lunch"}
		med, _, err := sched.AddMedicineSchedule(ctx, patientID, desc, fixedNow)
		if err != nil {
			t.Fatalf("AddMedicineSchedule() error = %v", err)
		}
		meds[i] = med
	}

	// Re-attach all medicines concurrently against the same slot.
	for _, med := range meds {
		wg.Add(1)
		go func(m *schedule.Medicine) {
			defer wg.Done()
			if _, err := sched.Attach(ctx, patientID, m, []int{4}, nil); err != nil {
				t.Errorf("Attach() error = %v", err)
			}
		}(med)
	}
	wg.Wait()

	alarms, _ := store.FindAlarms(ctx, patientID)
	if len(alarms) != 1 {
		t.Fatalf("got %d alarms, want 1", len(alarms))
	}
	if len(alarms[0].Medicines) != len(meds) {
		t.Errorf("alarm has %d medicines, want %d (lost update)", len(alarms[0].Medicines), len(meds))
	}
}

func TestUpcomingExcludesPastAndSorts(t *testing.T) {
	sched, _ := newScheduler(t)
	ctx := context.Background()

	desc := descriptor()
	desc.IntakeTimes = []string{"Before Breakfast", "After Lunch", "After Dinner"}
	if _, _, err := sched.AddMedicineSchedule(ctx, patientID, desc, fixedNow); err != nil {
		t.Fatalf("AddMedicineSchedule() error = %v", err)
	}

	// 14:00: breakfast (08:45) is gone; lunch +30 (14:30) and dinner +30
	// (21:30) remain, in that order.
	now := time.Date(2024, time.January, 1, 14, 0, 0, 0, time.UTC)
	upcoming, err := sched.Upcoming(ctx, patientID, now)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}

	if len(upcoming) != 2 {
		t.Fatalf("got %d upcoming alarms, want 2", len(upcoming))
	}
	if upcoming[0].Time != "02:30 PM" || upcoming[1].Time != "09:30 PM" {
		t.Errorf("upcoming order = %q, %q, want 02:30 PM then 09:30 PM", upcoming[0].Time, upcoming[1].Time)
	}
}

func TestUpcomingBoundaryIsExclusive(t *testing.T) {
	sched, _ := newScheduler(t)
	ctx := context.Background()

	desc := descriptor()
	desc.IntakeTimes = nil
	desc.CustomTimes = []string{"01:59 PM"}
	if _, _, err := sched.AddMedicineSchedule(ctx, patientID, desc, fixedNow); err != nil {
		t.Fatalf("AddMedicineSchedule() error = %v", err)
	}

	// An alarm at 13:59 must never appear at now = 14:00.
	now := time.Date(2024, time.January, 1, 14, 0, 0, 0, time.UTC)
	upcoming, err := sched.Upcoming(ctx, patientID, now)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	if len(upcoming) != 0 {
		t.Errorf("got %d upcoming alarms, want 0", len(upcoming))
	}

	// The exact alarm minute is excluded too.
	atAlarm := time.Date(2024, time.January, 1, 13, 59, 0, 0, time.UTC)
	upcoming, _ = sched.Upcoming(ctx, patientID, atAlarm)
	if len(upcoming) != 0 {
		t.Errorf("alarm minute itself included, want excluded")
	}
}

func TestUpcomingFiltersInactiveToday(t *testing.T) {
	sched, _ := newScheduler(t)
	ctx := context.Background()

	// Active Mondays only; query on a Tuesday.
	desc := descriptor()
	desc.IntakeTimes = []string{"After Dinner"}
	desc.Frequency = schedule.FrequencySpecificDays
	desc.DurationDays = 14
	desc.Days = []string{"Mon"}
	if _, _, err := sched.AddMedicineSchedule(ctx, patientID, desc, fixedNow); err != nil {
		t.Fatalf("AddMedicineSchedule() error = %v", err)
	}

	tuesday := time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)
	upcoming, err := sched.Upcoming(ctx, patientID, tuesday)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	if len(upcoming) != 0 {
		t.Errorf("zero-medicine alarm returned: %v", upcoming)
	}

	monday := time.Date(2024, time.January, 8, 10, 0, 0, 0, time.UTC)
	upcoming, _ = sched.Upcoming(ctx, patientID, monday)
	if len(upcoming) != 1 {
		t.Errorf("got %d upcoming alarms on an active Monday, want 1", len(upcoming))
	}
}

func TestActiveOn(t *testing.T) {
	sched, _ := newScheduler(t)
	ctx := context.Background()

	// Two slots, one medicine: ActiveOn must deduplicate.
	med, _, err := sched.AddMedicineSchedule(ctx, patientID, descriptor(), fixedNow)
	if err != nil {
		t.Fatalf("AddMedicineSchedule() error = %v", err)
	}

	active, err := sched.ActiveOn(ctx, patientID, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ActiveOn() error = %v", err)
	}
	if len(active) != 1 || active[0].MedicineID != med.ID {
		t.Errorf("ActiveOn() = %v, want single entry for %s", active, med.ID)
	}

	// Past the course end.
	active, _ = sched.ActiveOn(ctx, patientID, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))
	if len(active) != 0 {
		t.Errorf("ActiveOn() after course end = %v, want empty", active)
	}
}

func TestRecordAdherence(t *testing.T) {
	sched, store := newScheduler(t)
	ctx := context.Background()

	desc := descriptor()
	desc.IsCritical = true
	med, _, err := sched.AddMedicineSchedule(ctx, patientID, desc, fixedNow)
	if err != nil {
		t.Fatalf("AddMedicineSchedule() error = %v", err)
	}

	updated, err := sched.RecordAdherence(ctx, patientID, med.ID, schedule.AdherenceTaken)
	if err != nil {
		t.Fatalf("RecordAdherence(taken) error = %v", err)
	}
	if updated.Taken != 1 {
		t.Errorf("taken = %d, want 1", updated.Taken)
	}

	updated, err = sched.RecordAdherence(ctx, patientID, med.ID, schedule.AdherenceMissed)
	if err != nil {
		t.Fatalf("RecordAdherence(missed) error = %v", err)
	}
	if updated.Missed != 1 {
		t.Errorf("missed = %d, want 1", updated.Missed)
	}

	// A missed dose of a critical medicine raises a caretaker alert.
	alerts := store.Alerts()
	if len(alerts) != 1 || alerts[0].MedicineID != med.ID {
		t.Errorf("alerts = %v, want one for %s", alerts, med.ID)
	}

	if _, err := sched.RecordAdherence(ctx, patientID, med.ID, "snoozed"); err == nil {
		t.Error("RecordAdherence(snoozed) error = nil, want error")
	}
}
