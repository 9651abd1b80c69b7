package patients

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPatients returns a page of patients, optionally filtered by name or phone.
func (r *Repository) ListPatients(ctx context.Context, search string, page shared.Pagination) ([]Patient, int, error) {
	query := `
SELECT id, full_name, COALESCE(gender, ''), date_of_birth, COALESCE(phone, ''), COALESCE(address, ''), created_at, updated_at
FROM patients WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patients WHERE 1=1`
	args := []any{}
	argCount := 0

	if search != "" {
		argCount++
		clause := ` AND (full_name ILIKE $` + strconv.Itoa(argCount) + ` OR phone LIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	argCount++
	query += ` ORDER BY full_name ASC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, page.PerPage)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.FullName, &p.Gender, &p.DateOfBirth, &p.Phone, &p.Address, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

// GetPatient fetches a single patient by ID.
func (r *Repository) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	const query = `
SELECT id, full_name, COALESCE(gender, ''), date_of_birth, COALESCE(phone, ''), COALESCE(address, ''), created_at, updated_at
FROM patients WHERE id = $1`

	var p Patient
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.FullName, &p.Gender, &p.DateOfBirth, &p.Phone, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("patient %d: %w", id, httpx.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// CreatePatient inserts a patient and returns its ID.
func (r *Repository) CreatePatient(ctx context.Context, p Patient) (int64, error) {
	const query = `
INSERT INTO patients (full_name, gender, date_of_birth, phone, address, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6, $6)
RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		p.FullName, p.Gender, p.DateOfBirth, p.Phone, p.Address, time.Now().UTC()).Scan(&id)
	return id, err
}

// UpdatePatient rewrites all mutable fields.
func (r *Repository) UpdatePatient(ctx context.Context, id int64, p Patient) error {
	const query = `
UPDATE patients
SET full_name = $2, gender = NULLIF($3, ''), date_of_birth = $4, phone = NULLIF($5, ''), address = NULLIF($6, ''), updated_at = $7
WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		id, p.FullName, p.Gender, p.DateOfBirth, p.Phone, p.Address, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patient %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}
