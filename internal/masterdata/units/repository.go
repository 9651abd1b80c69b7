package units

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
	List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error)
	Get(ctx context.Context, id int64) (Unit, error)
	Create(ctx context.Context, unit Unit) (Unit, error)
	Update(ctx context.Context, id int64, unit Unit) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error) {
	query := `SELECT id, name FROM units WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM units WHERE 1=1`
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

	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, 0, err
		}
		units = append(units, u)
	}
	return units, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Unit, error) {
	var u Unit
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM units WHERE id = $1`, id).Scan(&u.ID, &u.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Unit{}, fmt.Errorf("unit %d: %w", id, httpx.ErrNotFound)
		}
		return Unit{}, err
	}
	return u, nil
}

func (r *repository) Create(ctx context.Context, unit Unit) (Unit, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO units (name, created_at, updated_at) VALUES ($1, $2, $2) RETURNING id`,
		unit.Name, time.Now().UTC()).Scan(&unit.ID)
	if err != nil {
		return Unit{}, wrapDuplicate(err, unit.Name)
	}
	return unit, nil
}

func (r *repository) Update(ctx context.Context, id int64, unit Unit) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE units SET name = $2, updated_at = $3 WHERE id = $1`,
		id, unit.Name, time.Now().UTC())
	if err != nil {
		return wrapDuplicate(err, unit.Name)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("unit %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM units WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("unit %d is still referenced by medicines: %w", id, httpx.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("unit %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func wrapDuplicate(err error, name string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("unit %q: %w", name, httpx.ErrDuplicate)
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
		return "id " + dir
	default:
		return "name " + dir
	}
}
