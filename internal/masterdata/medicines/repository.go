package medicines

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/masterdata/shared"
	"github.com/clinicore/clinicore/internal/platform/httpx"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Medicine, int, error)
	Get(ctx context.Context, id int64) (Medicine, error)
	Create(ctx context.Context, medicine Medicine) (Medicine, error)
	Update(ctx context.Context, id int64, medicine Medicine) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectColumns = `
m.id, m.name, m.unit_id, COALESCE(u.name, ''), COALESCE(m.description, ''),
m.is_active, m.total_quantity, m.created_at, m.updated_at`

// List filters by the folded search column so diacritics never affect matches.
func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Medicine, int, error) {
	query := `SELECT ` + selectColumns + ` FROM medicines m LEFT JOIN units u ON u.id = m.unit_id WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM medicines m WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND m.search_name LIKE $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, "%"+FoldName(filters.Search)+"%")
	}
	if filters.IsActive != nil {
		argCount++
		clause := ` AND m.is_active = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var medicines []Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, 0, err
		}
		medicines = append(medicines, m)
	}
	return medicines, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Medicine, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM medicines m LEFT JOIN units u ON u.id = m.unit_id WHERE m.id = $1`, id)
	m, err := scanMedicine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Medicine{}, fmt.Errorf("medicine %d: %w", id, httpx.ErrNotFound)
		}
		return Medicine{}, err
	}
	return m, nil
}

func (r *repository) Create(ctx context.Context, medicine Medicine) (Medicine, error) {
	const query = `
INSERT INTO medicines (name, search_name, unit_id, description, is_active, total_quantity, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), TRUE, 0, $5, $5)
RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		medicine.Name, FoldName(medicine.Name), medicine.UnitID, medicine.Description, time.Now().UTC(),
	).Scan(&medicine.ID)
	if err != nil {
		return Medicine{}, classifyWriteError(err, medicine)
	}
	return r.Get(ctx, medicine.ID)
}

// Update never touches total_quantity; stock changes flow through the
// inventory ledger only.
func (r *repository) Update(ctx context.Context, id int64, medicine Medicine) error {
	const query = `
UPDATE medicines
SET name = $2, search_name = $3, unit_id = $4, description = NULLIF($5, ''), updated_at = $6
WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		id, medicine.Name, FoldName(medicine.Name), medicine.UnitID, medicine.Description, time.Now().UTC())
	if err != nil {
		return classifyWriteError(err, medicine)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("medicine %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE medicines SET is_active = $2, updated_at = $3 WHERE id = $1`,
		id, active, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("medicine %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func scanMedicine(row pgx.Row) (Medicine, error) {
	var m Medicine
	err := row.Scan(
		&m.ID, &m.Name, &m.UnitID, &m.UnitName, &m.Description,
		&m.IsActive, &m.TotalQuantity, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func classifyWriteError(err error, medicine Medicine) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("medicine %q: %w", medicine.Name, httpx.ErrDuplicate)
		case "23503":
			return fmt.Errorf("unit %d: %w", medicine.UnitID, httpx.ErrNotFound)
		}
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "id":
		return "m.id " + dir
	case "stock":
		return "m.total_quantity " + dir
	default:
		return "m.search_name " + dir
	}
}
