package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/appointments"
	"github.com/clinicore/clinicore/internal/inventory"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/httpx"
)

// TxStore groups the writes that make up one consultation. All methods run on
// the same transaction; the embedded ledger gives the caller FEFO allocation
// against the same rows.
type TxStore interface {
	InsertRecord(ctx context.Context, record MedicalRecord) (int64, error)
	InsertPrescription(ctx context.Context, recordID int64, line PrescriptionDetail) (int64, error)
	InsertAllocation(ctx context.Context, prescriptionID int64, alloc BatchAllocation) error
	MarkAppointmentExamined(ctx context.Context, patientID int64, date time.Time) error
	Ledger() inventory.TxRepository
}

// RepositoryPort defines persistence for medical records.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, store TxStore) error) error
	GetRecord(ctx context.Context, id int64) (*MedicalRecord, error)
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]MedicalRecord, int, error)
}

// Repository implements RepositoryPort on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, store TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) InsertRecord(ctx context.Context, record MedicalRecord) (int64, error) {
	const query = `
INSERT INTO medical_records (patient_id, doctor_id, disease_id, symptoms, diagnosis, record_date, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, NOW(), NOW())
RETURNING id`

	var id int64
	err := s.tx.QueryRow(ctx, query,
		record.PatientID, record.DoctorID, record.DiseaseID, record.Symptoms, record.Diagnosis, record.RecordDate,
	).Scan(&id)
	return id, err
}

func (s *txStore) InsertPrescription(ctx context.Context, recordID int64, line PrescriptionDetail) (int64, error) {
	const query = `
INSERT INTO prescription_details (medical_record_id, medicine_id, usage_method_id, quantity, dosage)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))
RETURNING id`

	var id int64
	err := s.tx.QueryRow(ctx, query,
		recordID, line.MedicineID, line.UsageMethodID, line.Quantity, line.Dosage,
	).Scan(&id)
	return id, err
}

func (s *txStore) InsertAllocation(ctx context.Context, prescriptionID int64, alloc BatchAllocation) error {
	_, err := s.tx.Exec(ctx,
		`INSERT INTO prescription_allocations (prescription_detail_id, batch_id, quantity) VALUES ($1, $2, $3)`,
		prescriptionID, alloc.BatchID, alloc.Quantity)
	return err
}

func (s *txStore) MarkAppointmentExamined(ctx context.Context, patientID int64, date time.Time) error {
	return appointments.MarkExaminedTx(ctx, s.tx, patientID, date)
}

func (s *txStore) Ledger() inventory.TxRepository {
	return inventory.NewTxLedger(s.tx)
}

const recordColumns = `
r.id, r.patient_id, p.full_name, r.doctor_id, r.disease_id,
COALESCE(r.symptoms, ''), COALESCE(r.diagnosis, ''), r.record_date, r.created_at, r.updated_at`

// GetRecord loads a record with its prescription lines and allocations.
func (r *Repository) GetRecord(ctx context.Context, id int64) (*MedicalRecord, error) {
	const query = `
SELECT ` + recordColumns + `
FROM medical_records r
JOIN patients p ON p.id = r.patient_id
WHERE r.id = $1`

	var record MedicalRecord
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&record.ID, &record.PatientID, &record.PatientName, &record.DoctorID, &record.DiseaseID,
		&record.Symptoms, &record.Diagnosis, &record.RecordDate, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("medical record %d: %w", id, httpx.ErrNotFound)
		}
		return nil, err
	}

	prescriptions, err := r.loadPrescriptions(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Prescriptions = prescriptions
	return &record, nil
}

// ListByPatient returns a patient's records, newest first, without
// prescription details.
func (r *Repository) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]MedicalRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_records WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `
SELECT ` + recordColumns + `
FROM medical_records r
JOIN patients p ON p.id = r.patient_id
WHERE r.patient_id = $1
ORDER BY r.record_date DESC, r.id DESC
LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []MedicalRecord
	for rows.Next() {
		var record MedicalRecord
		if err := rows.Scan(
			&record.ID, &record.PatientID, &record.PatientName, &record.DoctorID, &record.DiseaseID,
			&record.Symptoms, &record.Diagnosis, &record.RecordDate, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, record)
	}
	return list, total, rows.Err()
}

func (r *Repository) loadPrescriptions(ctx context.Context, recordID int64) ([]PrescriptionDetail, error) {
	const query = `
SELECT d.id, d.medicine_id, m.name, d.usage_method_id, d.quantity, COALESCE(d.dosage, '')
FROM prescription_details d
JOIN medicines m ON m.id = d.medicine_id
WHERE d.medical_record_id = $1
ORDER BY d.id ASC`

	rows, err := r.pool.Query(ctx, query, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []PrescriptionDetail
	for rows.Next() {
		var d PrescriptionDetail
		if err := rows.Scan(&d.ID, &d.MedicineID, &d.MedicineName, &d.UsageMethodID, &d.Quantity, &d.Dosage); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range details {
		allocs, err := r.loadAllocations(ctx, details[i].ID)
		if err != nil {
			return nil, err
		}
		details[i].Allocations = allocs
	}
	return details, nil
}

func (r *Repository) loadAllocations(ctx context.Context, prescriptionID int64) ([]BatchAllocation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT batch_id, quantity FROM prescription_allocations WHERE prescription_detail_id = $1 ORDER BY batch_id`,
		prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocs []BatchAllocation
	for rows.Next() {
		var a BatchAllocation
		if err := rows.Scan(&a.BatchID, &a.Quantity); err != nil {
			return nil, err
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}
