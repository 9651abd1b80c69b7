package usagemethods

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]UsageMethod, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (UsageMethod, error) {
	if id <= 0 {
		return UsageMethod{}, fmt.Errorf("usage method id must be positive: %w", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, method UsageMethod) (UsageMethod, error) {
	method.Name = strings.TrimSpace(method.Name)
	if method.Name == "" {
		return UsageMethod{}, fmt.Errorf("usage method name is required: %w", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, method)
}

func (s *Service) Update(ctx context.Context, id int64, method UsageMethod) error {
	if id <= 0 {
		return fmt.Errorf("usage method id must be positive: %w", httpx.ErrValidation)
	}
	method.Name = strings.TrimSpace(method.Name)
	if method.Name == "" {
		return fmt.Errorf("usage method name is required: %w", httpx.ErrValidation)
	}
	return s.repo.Update(ctx, id, method)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("usage method id must be positive: %w", httpx.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
