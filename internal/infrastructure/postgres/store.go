// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/SaurabhShahane30/codecrew-khacks/internal/domain/schedule"
	"github.com/SaurabhShahane30/codecrew-khacks/internal/infrastructure/redpanda"
)

// Store implements schedule.Store on PostgreSQL. The unique constraint on
// (patient_id, alarm_code) plus INSERT ... ON CONFLICT makes the alarm upsert
// atomic per key: concurrent attaches for the same slot cannot lose a
// medicine attachment.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore creates a store backed by the given pool.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// FindPatient returns the patient's meal schedule.
func (s *Store) FindPatient(ctx context.Context, patientID string) (schedule.MealTimes, error) {
	query := `SELECT meal_times FROM patients WHERE id = $1`

	var raw []byte
	err := s.pool.QueryRow(ctx, query, patientID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedule.ErrPatientNotFound
		}
		return nil, fmt.Errorf("find patient: %w", err)
	}

	var meals schedule.MealTimes
	if err := json.Unmarshal(raw, &meals); err != nil {
		return nil, fmt.Errorf("decode meal times: %w", err)
	}
	return meals, nil
}

// CreatePatient persists a new patient. Patients without an explicit meal
// schedule get the default one.
func (s *Store) CreatePatient(ctx context.Context, patientID, name string, meals schedule.MealTimes) error {
	if len(meals) == 0 {
		meals = schedule.DefaultMealTimes()
	}
	raw, err := json.Marshal(meals)
	if err != nil {
		return fmt.Errorf("encode meal times: %w", err)
	}

	query := `INSERT INTO patients (id, name, meal_times) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, query, patientID, name, raw); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

// UpdateMealTimes replaces the patient's meal schedule. Existing alarms keep
// the times they were created with; only future attachments see the change.
func (s *Store) UpdateMealTimes(ctx context.Context, patientID string, meals schedule.MealTimes) error {
	raw, err := json.Marshal(meals)
	if err != nil {
		return fmt.Errorf("encode meal times: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `UPDATE patients SET meal_times = $1, updated_at = NOW() WHERE id = $2`, raw, patientID)
	if err != nil {
		return fmt.Errorf("update meal times: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrPatientNotFound
	}
	return nil
}

// CreateMedicine persists a new medicine record and enqueues a
// medicine.created event in the same transaction.
func (s *Store) CreateMedicine(ctx context.Context, m *schedule.Medicine) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO medicines
		(id, patient_id, name, type, frequency, days, duration_days, dose_count,
		 is_critical, photo_url, alarm_keys, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = tx.Exec(ctx, query,
		m.ID, m.PatientID, m.Name, m.Type, m.Frequency, m.Days,
		m.DurationDays, m.DoseCount, m.IsCritical, m.PhotoURL,
		intsToInt64(m.AlarmKeys), m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert medicine: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"medicine_id": m.ID,
		"patient_id":  m.PatientID,
		"name":        m.Name,
		"frequency":   m.Frequency,
		"is_critical": m.IsCritical,
		"created_at":  m.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	entry := &OutboxEntry{
		AggregateID:   m.ID,
		AggregateType: "Medicine",
		EventType:     "MedicineCreated",
		Payload:       payload,
		KafkaTopic:    redpanda.TopicMedicineCreated,
		KafkaKey:      m.PatientID,
	}
	if err := WriteEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FindMedicine returns a medicine record by id.
func (s *Store) FindMedicine(ctx context.Context, medicineID string) (*schedule.Medicine, error) {
	query := `
		SELECT id, patient_id, name, type, frequency, days, duration_days,
		       dose_count, is_critical, photo_url, alarm_keys,
		       taken, missed, delayed, created_at
		FROM medicines
		WHERE id = $1
	`

	m := &schedule.Medicine{}
	var keys []int64
	err := s.pool.QueryRow(ctx, query, medicineID).Scan(
		&m.ID, &m.PatientID, &m.Name, &m.Type, &m.Frequency, &m.Days,
		&m.DurationDays, &m.DoseCount, &m.IsCritical, &m.PhotoURL, &keys,
		&m.Taken, &m.Missed, &m.Delayed, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedule.ErrMedicineNotFound
		}
		return nil, fmt.Errorf("find medicine: %w", err)
	}
	m.AlarmKeys = int64sToInt(keys)
	return m, nil
}

// UpsertAlarm creates-or-updates the alarm for (patientID, code) and merges
// the medicine attachment, all in one transaction. On conflict the alarm's
// time and custom flag stay untouched (first-writer-wins); the medicine
// merge is keyed on (alarm_id, medicine_id) so a retry replaces the date
// list instead of duplicating the entry.
func (s *Store) UpsertAlarm(ctx context.Context, patientID string, code int, onInsert schedule.AlarmInsert, attach schedule.MedicineAttachment) (*schedule.Alarm, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO alarms (id, patient_id, alarm_code, time, is_custom)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id, alarm_code) DO UPDATE SET updated_at = NOW()
		RETURNING id, time, is_custom
	`

	alarm := &schedule.Alarm{PatientID: patientID, AlarmCode: code}
	err = tx.QueryRow(ctx, upsert,
		uuid.New().String(), patientID, code, onInsert.Time, onInsert.IsCustom,
	).Scan(&alarm.ID, &alarm.Time, &alarm.IsCustom)
	if err != nil {
		return nil, fmt.Errorf("upsert alarm: %w", err)
	}

	merge := `
		INSERT INTO alarm_medicines (alarm_id, medicine_id, active_dates)
		VALUES ($1, $2, $3)
		ON CONFLICT (alarm_id, medicine_id) DO UPDATE SET active_dates = EXCLUDED.active_dates
	`
	if _, err := tx.Exec(ctx, merge, alarm.ID, attach.MedicineID, attach.ActiveDates); err != nil {
		return nil, fmt.Errorf("merge medicine: %w", err)
	}

	medicines, err := s.alarmMedicines(ctx, tx, alarm.ID)
	if err != nil {
		return nil, err
	}
	alarm.Medicines = medicines

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return alarm, nil
}

// FindAlarms returns all alarms for a patient with medicine detail joined.
func (s *Store) FindAlarms(ctx context.Context, patientID string) ([]schedule.Alarm, error) {
	query := `
		SELECT a.id, a.alarm_code, a.time, a.is_custom,
		       am.medicine_id, am.active_dates,
		       m.name, m.type, m.dose_count, m.duration_days, m.is_critical
		FROM alarms a
		JOIN alarm_medicines am ON am.alarm_id = a.id
		JOIN medicines m ON m.id = am.medicine_id
		WHERE a.patient_id = $1
		ORDER BY a.alarm_code, m.created_at
	`

	rows, err := s.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("find alarms: %w", err)
	}
	defer rows.Close()

	var (
		alarms []schedule.Alarm
		index  = map[string]int{}
	)
	for rows.Next() {
		var (
			alarm schedule.Alarm
			med   schedule.AlarmMedicine
		)
		err := rows.Scan(
			&alarm.ID, &alarm.AlarmCode, &alarm.Time, &alarm.IsCustom,
			&med.MedicineID, &med.ActiveDates,
			&med.Name, &med.Type, &med.DoseCount, &med.DurationDays, &med.IsCritical,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}

		if i, ok := index[alarm.ID]; ok {
			alarms[i].Medicines = append(alarms[i].Medicines, med)
			continue
		}
		alarm.PatientID = patientID
		alarm.Medicines = []schedule.AlarmMedicine{med}
		index[alarm.ID] = len(alarms)
		alarms = append(alarms, alarm)
	}
	return alarms, rows.Err()
}

// AddAlarmKeys appends custom alarm codes to a medicine's key list without
// duplicating codes already present.
func (s *Store) AddAlarmKeys(ctx context.Context, medicineID string, codes []int) error {
	query := `
		UPDATE medicines
		SET alarm_keys = (
			SELECT array_agg(DISTINCT k) FROM unnest(alarm_keys || $1::bigint[]) AS k
		)
		WHERE id = $2
	`

	tag, err := s.pool.Exec(ctx, query, intsToInt64(codes), medicineID)
	if err != nil {
		return fmt.Errorf("add alarm keys: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrMedicineNotFound
	}
	return nil
}

// RecordAdherence increments the medicine's counter for the given status.
// A missed dose of a critical medicine also writes a caretaker alert to the
// outbox inside the same transaction, so the alert cannot be lost between
// the counter update and publication.
func (s *Store) RecordAdherence(ctx context.Context, patientID, medicineID string, status schedule.AdherenceStatus) (*schedule.Medicine, error) {
	var column string
	switch status {
	case schedule.AdherenceTaken:
		column = "taken"
	case schedule.AdherenceMissed:
		column = "missed"
	case schedule.AdherenceDelayed:
		column = "delayed"
	default:
		return nil, fmt.Errorf("unknown adherence status %q", status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE medicines
		SET %s = %s + 1, updated_at = NOW()
		WHERE id = $1 AND patient_id = $2
		RETURNING id, patient_id, name, type, frequency, days, duration_days,
		          dose_count, is_critical, photo_url, alarm_keys,
		          taken, missed, delayed, created_at
	`, column, column)

	m := &schedule.Medicine{}
	var keys []int64
	err = tx.QueryRow(ctx, query, medicineID, patientID).Scan(
		&m.ID, &m.PatientID, &m.Name, &m.Type, &m.Frequency, &m.Days,
		&m.DurationDays, &m.DoseCount, &m.IsCritical, &m.PhotoURL, &keys,
		&m.Taken, &m.Missed, &m.Delayed, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedule.ErrMedicineNotFound
		}
		return nil, fmt.Errorf("record adherence: %w", err)
	}
	m.AlarmKeys = int64sToInt(keys)

	if status == schedule.AdherenceMissed && m.IsCritical {
		payload, err := json.Marshal(MissedDoseEvent{
			PatientID:    patientID,
			MedicineID:   medicineID,
			MedicineName: m.Name,
			MissedCount:  m.Missed,
			OccurredAt:   time.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("encode alert: %w", err)
		}

		entry := &OutboxEntry{
			AggregateID:   medicineID,
			AggregateType: "Medicine",
			EventType:     "DoseMissed",
			Payload:       payload,
			KafkaTopic:    redpanda.TopicDoseMissed,
			KafkaKey:      patientID,
		}
		if err := WriteEntry(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

// MissedDoseEvent is the caretaker alert payload published when a critical
// medicine is marked missed.
type MissedDoseEvent struct {
	PatientID    string    `json:"patient_id"`
	MedicineID   string    `json:"medicine_id"`
	MedicineName string    `json:"medicine_name"`
	MissedCount  int       `json:"missed_count"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// CaretakerAlert is a stored alert row, written by the alerts consumer and
// read by the caretaker API.
type CaretakerAlert struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patient_id"`
	MedicineID   string    `json:"medicine_id"`
	MedicineName string    `json:"medicine_name"`
	Kind         string    `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
	Acknowledged bool      `json:"acknowledged"`
}

// InsertAlert stores a caretaker alert.
func (s *Store) InsertAlert(ctx context.Context, alert *CaretakerAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	query := `
		INSERT INTO caretaker_alerts (id, patient_id, medicine_id, medicine_name, kind)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, alert.ID, alert.PatientID, alert.MedicineID, alert.MedicineName, alert.Kind); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ListAlerts returns the unacknowledged alerts for a patient, newest first.
func (s *Store) ListAlerts(ctx context.Context, patientID string) ([]CaretakerAlert, error) {
	query := `
		SELECT id, patient_id, medicine_id, medicine_name, kind, created_at, acknowledged
		FROM caretaker_alerts
		WHERE patient_id = $1 AND NOT acknowledged
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []CaretakerAlert
	for rows.Next() {
		var a CaretakerAlert
		err := rows.Scan(&a.ID, &a.PatientID, &a.MedicineID, &a.MedicineName, &a.Kind, &a.CreatedAt, &a.Acknowledged)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *Store) alarmMedicines(ctx context.Context, tx pgx.Tx, alarmID string) ([]schedule.AlarmMedicine, error) {
	query := `
		SELECT am.medicine_id, am.active_dates,
		       m.name, m.type, m.dose_count, m.duration_days, m.is_critical
		FROM alarm_medicines am
		JOIN medicines m ON m.id = am.medicine_id
		WHERE am.alarm_id = $1
		ORDER BY m.created_at
	`

	rows, err := tx.Query(ctx, query, alarmID)
	if err != nil {
		return nil, fmt.Errorf("load alarm medicines: %w", err)
	}
	defer rows.Close()

	var medicines []schedule.AlarmMedicine
	for rows.Next() {
		var med schedule.AlarmMedicine
		err := rows.Scan(&med.MedicineID, &med.ActiveDates, &med.Name, &med.Type, &med.DoseCount, &med.DurationDays, &med.IsCritical)
		if err != nil {
			return nil, fmt.Errorf("scan alarm medicine: %w", err)
		}
		medicines = append(medicines, med)
	}
	return medicines, rows.Err()
}

func intsToInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func int64sToInt(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
