package units

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinicore/clinicore/internal/masterdata/shared"
	"github.com/clinicore/clinicore/internal/platform/httpx"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Unit, error) {
	if id <= 0 {
		return Unit{}, fmt.Errorf("unit id must be positive: %w", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, unit Unit) (Unit, error) {
	unit.Name = strings.TrimSpace(unit.Name)
	if unit.Name == "" {
		return Unit{}, fmt.Errorf("unit name is required: %w", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, unit)
}

func (s *Service) Update(ctx context.Context, id int64, unit Unit) error {
	if id <= 0 {
		return fmt.Errorf("unit id must be positive: %w", httpx.ErrValidation)
	}
	unit.Name = strings.TrimSpace(unit.Name)
	if unit.Name == "" {
		return fmt.Errorf("unit name is required: %w", httpx.ErrValidation)
	}
	return s.repo.Update(ctx, id, unit)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("unit id must be positive: %w", httpx.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
