package appointments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/internal/platform/httpx"
)

type memoryRepo struct {
	nextID int64
	appts  map[int64]*Appointment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, appts: make(map[int64]*Appointment)}
}

func (m *memoryRepo) CreateAppointment(_ context.Context, patientID int64, date time.Time) (*Appointment, error) {
	order := 1
	for _, a := range m.appts {
		if a.AppointmentDate.Equal(date) {
			if a.PatientID == patientID {
				return nil, fmt.Errorf("patient %d already queued: %w", patientID, httpx.ErrDuplicate)
			}
			if a.OrderNumber >= order {
				order = a.OrderNumber + 1
			}
		}
	}
	appt := &Appointment{
		ID:              m.nextID,
		PatientID:       patientID,
		AppointmentDate: date,
		OrderNumber:     order,
		Status:          StatusWaiting,
	}
	m.appts[m.nextID] = appt
	m.nextID++
	return appt, nil
}

func (m *memoryRepo) ListByDate(_ context.Context, date time.Time) ([]Appointment, error) {
	var out []Appointment
	for _, a := range m.appts {
		if a.AppointmentDate.Equal(date) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, fmt.Errorf("appointment %d: %w", id, httpx.ErrNotFound)
	}
	clone := *a
	return &clone, nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, status string) error {
	a, ok := m.appts[id]
	if !ok {
		return fmt.Errorf("appointment %d: %w", id, httpx.ErrNotFound)
	}
	a.Status = status
	return nil
}

func TestCheckInAssignsSequentialOrder(t *testing.T) {
	svc := NewService(newMemoryRepo())
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	first, err := svc.CheckIn(context.Background(), 1, date)
	require.NoError(t, err)
	require.Equal(t, 1, first.OrderNumber)

	second, err := svc.CheckIn(context.Background(), 2, date)
	require.NoError(t, err)
	require.Equal(t, 2, second.OrderNumber)
}

func TestCheckInRejectsDoubleQueueing(t *testing.T) {
	svc := NewService(newMemoryRepo())
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.CheckIn(context.Background(), 1, date)
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), 1, date)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCancelOnlyWaiting(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	appt, err := svc.CheckIn(context.Background(), 1, date)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), appt.ID))

	got, err := svc.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, got.Status)

	err = svc.Cancel(context.Background(), appt.ID)
	require.ErrorIs(t, err, httpx.ErrConflict)
}
