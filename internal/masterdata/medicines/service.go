package medicines

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Medicine, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Medicine, error) {
	if id <= 0 {
		return Medicine{}, fmt.Errorf("medicine id must be positive: %w", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, medicine Medicine) (Medicine, error) {
	if err := s.validate(&medicine); err != nil {
		return Medicine{}, err
	}
	return s.repo.Create(ctx, medicine)
}

func (s *Service) Update(ctx context.Context, id int64, medicine Medicine) (Medicine, error) {
	if id <= 0 {
		return Medicine{}, fmt.Errorf("medicine id must be positive: %w", httpx.ErrValidation)
	}
	if err := s.validate(&medicine); err != nil {
		return Medicine{}, err
	}
	if err := s.repo.Update(ctx, id, medicine); err != nil {
		return Medicine{}, err
	}
	return s.repo.Get(ctx, id)
}

// Deactivate hides a medicine from new receipts and prescriptions without
// touching its batch history.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("medicine id must be positive: %w", httpx.ErrValidation)
	}
	return s.repo.SetActive(ctx, id, false)
}

func (s *Service) Activate(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("medicine id must be positive: %w", httpx.ErrValidation)
	}
	return s.repo.SetActive(ctx, id, true)
}

func (s *Service) validate(medicine *Medicine) error {
	medicine.Name = strings.TrimSpace(medicine.Name)
	if medicine.Name == "" {
		return fmt.Errorf("medicine name is required: %w", httpx.ErrValidation)
	}
	if medicine.UnitID <= 0 {
		return fmt.Errorf("unit id must be positive: %w", httpx.ErrValidation)
	}
	return nil
}
