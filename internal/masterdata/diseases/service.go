package diseases

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Disease, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Disease, error) {
	if id <= 0 {
		return Disease{}, fmt.Errorf("disease id must be positive: %w", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, disease Disease) (Disease, error) {
	disease.Name = strings.TrimSpace(disease.Name)
	if disease.Name == "" {
		return Disease{}, fmt.Errorf("disease name is required: %w", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, disease)
}

func (s *Service) Update(ctx context.Context, id int64, disease Disease) error {
	if id <= 0 {
		return fmt.Errorf("disease id must be positive: %w", httpx.ErrValidation)
	}
	disease.Name = strings.TrimSpace(disease.Name)
	if disease.Name == "" {
		return fmt.Errorf("disease name is required: %w", httpx.ErrValidation)
	}
	return s.repo.Update(ctx, id, disease)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("disease id must be positive: %w", httpx.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
