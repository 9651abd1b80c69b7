package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateAppointment queues a patient for the given day. The order number is
// assigned inside the insert so two concurrent check-ins cannot collide.
func (r *Repository) CreateAppointment(ctx context.Context, patientID int64, date time.Time) (*Appointment, error) {
	const query = `
INSERT INTO daily_appointments (patient_id, appointment_date, order_number, status, created_at, updated_at)
SELECT $1, $2, COALESCE(MAX(order_number), 0) + 1, 'waiting', $3, $3
FROM daily_appointments
WHERE appointment_date = $2
RETURNING id, order_number`

	var appt Appointment
	appt.PatientID = patientID
	appt.AppointmentDate = date
	appt.Status = StatusWaiting
	err := r.pool.QueryRow(ctx, query, patientID, date, time.Now().UTC()).Scan(&appt.ID, &appt.OrderNumber)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return nil, fmt.Errorf("patient %d already queued on %s: %w", patientID, date.Format("2006-01-02"), httpx.ErrDuplicate)
			case "23503":
				return nil, fmt.Errorf("patient %d: %w", patientID, httpx.ErrNotFound)
			}
		}
		return nil, err
	}
	return &appt, nil
}

// ListByDate returns the queue for one day ordered by check-in.
func (r *Repository) ListByDate(ctx context.Context, date time.Time) ([]Appointment, error) {
	const query = `
SELECT a.id, a.patient_id, p.full_name, a.appointment_date, a.order_number, a.status, a.created_at, a.updated_at
FROM daily_appointments a
JOIN patients p ON p.id = a.patient_id
WHERE a.appointment_date = $1
ORDER BY a.order_number ASC`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.PatientName, &a.AppointmentDate, &a.OrderNumber, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// Get returns one appointment.
func (r *Repository) Get(ctx context.Context, id int64) (*Appointment, error) {
	const query = `
SELECT a.id, a.patient_id, p.full_name, a.appointment_date, a.order_number, a.status, a.created_at, a.updated_at
FROM daily_appointments a
JOIN patients p ON p.id = a.patient_id
WHERE a.id = $1`

	var a Appointment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.PatientID, &a.PatientName, &a.AppointmentDate, &a.OrderNumber, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("appointment %d: %w", id, httpx.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

// UpdateStatus transitions an appointment out of the waiting state.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE daily_appointments SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// MarkExaminedTx flips the patient's waiting appointment for the given day
// inside an existing transaction. Missing appointments are not an error; a
// walk-in consultation has no queue entry.
func MarkExaminedTx(ctx context.Context, tx pgx.Tx, patientID int64, date time.Time) error {
	_, err := tx.Exec(ctx, `
UPDATE daily_appointments
SET status = 'examined', updated_at = $3
WHERE patient_id = $1 AND appointment_date = $2 AND status = 'waiting'`,
		patientID, date, time.Now().UTC())
	return err
}
