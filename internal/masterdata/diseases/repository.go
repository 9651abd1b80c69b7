package diseases

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
	List(ctx context.Context, filters shared.ListFilters) ([]Disease, int, error)
	Get(ctx context.Context, id int64) (Disease, error)
	Create(ctx context.Context, disease Disease) (Disease, error)
	Update(ctx context.Context, id int64, disease Disease) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Disease, int, error) {
	query := `SELECT id, name, COALESCE(description, '') FROM diseases WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM diseases WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND name ILIKE $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
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

	var diseases []Disease
	for rows.Next() {
		var d Disease
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, 0, err
		}
		diseases = append(diseases, d)
	}
	return diseases, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Disease, error) {
	var d Disease
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(description, '') FROM diseases WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Disease{}, fmt.Errorf("disease %d: %w", id, httpx.ErrNotFound)
		}
		return Disease{}, err
	}
	return d, nil
}

func (r *repository) Create(ctx context.Context, disease Disease) (Disease, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO diseases (name, description, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), $3, $3) RETURNING id`,
		disease.Name, disease.Description, time.Now().UTC()).Scan(&disease.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Disease{}, fmt.Errorf("disease %q: %w", disease.Name, httpx.ErrDuplicate)
		}
		return Disease{}, err
	}
	return disease, nil
}

func (r *repository) Update(ctx context.Context, id int64, disease Disease) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE diseases SET name = $2, description = NULLIF($3, ''), updated_at = $4 WHERE id = $1`,
		id, disease.Name, disease.Description, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("disease %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM diseases WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("disease %d is still referenced by medical records: %w", id, httpx.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("disease %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}
