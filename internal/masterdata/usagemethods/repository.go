package usagemethods

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
	List(ctx context.Context, filters shared.ListFilters) ([]UsageMethod, int, error)
	Get(ctx context.Context, id int64) (UsageMethod, error)
	Create(ctx context.Context, method UsageMethod) (UsageMethod, error)
	Update(ctx context.Context, id int64, method UsageMethod) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]UsageMethod, int, error) {
	query := `SELECT id, name FROM usage_methods WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM usage_methods WHERE 1=1`
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

	var methods []UsageMethod
	for rows.Next() {
		var m UsageMethod
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, 0, err
		}
		methods = append(methods, m)
	}
	return methods, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (UsageMethod, error) {
	var m UsageMethod
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM usage_methods WHERE id = $1`, id).Scan(&m.ID, &m.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UsageMethod{}, fmt.Errorf("usage method %d: %w", id, httpx.ErrNotFound)
		}
		return UsageMethod{}, err
	}
	return m, nil
}

func (r *repository) Create(ctx context.Context, method UsageMethod) (UsageMethod, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO usage_methods (name, created_at, updated_at) VALUES ($1, $2, $2) RETURNING id`,
		method.Name, time.Now().UTC()).Scan(&method.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return UsageMethod{}, fmt.Errorf("usage method %q: %w", method.Name, httpx.ErrDuplicate)
		}
		return UsageMethod{}, err
	}
	return method, nil
}

func (r *repository) Update(ctx context.Context, id int64, method UsageMethod) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE usage_methods SET name = $2, updated_at = $3 WHERE id = $1`,
		id, method.Name, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("usage method %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM usage_methods WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("usage method %d is still referenced by prescriptions: %w", id, httpx.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("usage method %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}
