package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicore/clinicore/internal/platform/httpx"
)

// RepositoryPort defines data access methods for appointments.
type RepositoryPort interface {
	CreateAppointment(ctx context.Context, patientID int64, date time.Time) (*Appointment, error)
	ListByDate(ctx context.Context, date time.Time) ([]Appointment, error)
	Get(ctx context.Context, id int64) (*Appointment, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// Service handles the daily queue logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CheckIn queues a patient for the given day and assigns the next order number.
func (s *Service) CheckIn(ctx context.Context, patientID int64, date time.Time) (*Appointment, error) {
	if patientID <= 0 {
		return nil, fmt.Errorf("patient id must be positive: %w", httpx.ErrValidation)
	}
	return s.repo.CreateAppointment(ctx, patientID, date)
}

// Queue lists the appointments for one day in check-in order.
func (s *Service) Queue(ctx context.Context, date time.Time) ([]Appointment, error) {
	return s.repo.ListByDate(ctx, date)
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	return s.repo.Get(ctx, id)
}

// Cancel removes a waiting appointment from the queue. Examined entries stay
// as history.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if appt.Status != StatusWaiting {
		return fmt.Errorf("appointment %d is %s: %w", id, appt.Status, httpx.ErrConflict)
	}
	return s.repo.UpdateStatus(ctx, id, StatusCanceled)
}
