package patients

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/shared"
)

// RepositoryPort defines data access methods for patients.
type RepositoryPort interface {
	ListPatients(ctx context.Context, search string, page shared.Pagination) ([]Patient, int, error)
	GetPatient(ctx context.Context, id int64) (*Patient, error)
	CreatePatient(ctx context.Context, p Patient) (int64, error)
	UpdatePatient(ctx context.Context, id int64, p Patient) error
}

// Service handles patient business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListPatients returns a filtered page of patients with pagination metadata.
func (s *Service) ListPatients(ctx context.Context, search string, page, perPage int) ([]Patient, shared.Pagination, error) {
	pagination := shared.NewPagination(page, perPage, 0)
	list, total, err := s.repo.ListPatients(ctx, strings.TrimSpace(search), pagination)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page, perPage, total), nil
}

// GetPatient returns one patient.
func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetPatient(ctx, id)
}

// CreatePatient validates and inserts a patient.
func (s *Service) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	if err := validate(&p); err != nil {
		return nil, err
	}
	id, err := s.repo.CreatePatient(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.repo.GetPatient(ctx, id)
}

// UpdatePatient validates and rewrites a patient.
func (s *Service) UpdatePatient(ctx context.Context, id int64, p Patient) (*Patient, error) {
	if err := validate(&p); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePatient(ctx, id, p); err != nil {
		return nil, err
	}
	return s.repo.GetPatient(ctx, id)
}

func validate(p *Patient) error {
	p.FullName = strings.TrimSpace(p.FullName)
	if p.FullName == "" {
		return fmt.Errorf("patient name is required: %w", httpx.ErrValidation)
	}
	switch p.Gender {
	case "", "male", "female", "other":
	default:
		return fmt.Errorf("gender must be male, female, or other: %w", httpx.ErrValidation)
	}
	return nil
}
