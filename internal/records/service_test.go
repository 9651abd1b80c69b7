package records

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/internal/inventory"
	"github.com/clinicore/clinicore/internal/platform/httpx"
)

func day(offset int) time.Time {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func dayPtr(offset int) *time.Time {
	d := day(offset)
	return &d
}

func seedTwoBatches(repo *memoryRepo) {
	// Batch 1 expires first and must drain before batch 2.
	repo.addBatch(inventory.Batch{
		ID: 1, MedicineID: 10, ReceiptID: 1, Code: "B1",
		ManufactureDate: day(-60), ExpiryDate: dayPtr(30),
		Quantity: 10, Remaining: 10,
	}, day(-30))
	repo.addBatch(inventory.Batch{
		ID: 2, MedicineID: 10, ReceiptID: 2, Code: "B2",
		ManufactureDate: day(-40), ExpiryDate: dayPtr(90),
		Quantity: 10, Remaining: 10,
	}, day(-20))
}

func validInput(quantity int64) CreateRecordInput {
	return CreateRecordInput{
		PatientID:  1,
		DoctorID:   7,
		Symptoms:   "fever",
		Diagnosis:  "flu",
		RecordDate: day(0),
		Prescriptions: []PrescriptionInput{
			{MedicineID: 10, UsageMethodID: 1, Quantity: quantity},
		},
	}
}

func TestCreateRecordDispensesAcrossBatches(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	svc := NewService(repo, nil)

	record, err := svc.CreateRecord(context.Background(), validInput(15))
	require.NoError(t, err)
	require.Len(t, record.Prescriptions, 1)

	allocs := record.Prescriptions[0].Allocations
	require.Equal(t, []BatchAllocation{
		{BatchID: 1, Quantity: 10},
		{BatchID: 2, Quantity: 5},
	}, allocs)

	require.Equal(t, int64(0), repo.batches[0].Remaining)
	require.Equal(t, int64(5), repo.batches[1].Remaining)
	require.Equal(t, int64(5), repo.stock[10])
}

func TestCreateRecordInsufficientStockRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	repo.appointments[repo.queueKey(1, day(0))] = "waiting"
	svc := NewService(repo, nil)

	_, err := svc.CreateRecord(context.Background(), validInput(25))
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	require.Empty(t, repo.records)
	require.Equal(t, int64(10), repo.batches[0].Remaining)
	require.Equal(t, int64(10), repo.batches[1].Remaining)
	require.Equal(t, int64(20), repo.stock[10])
	require.Equal(t, "waiting", repo.appointments[repo.queueKey(1, day(0))])
}

func TestCreateRecordMarksAppointmentExamined(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	repo.appointments[repo.queueKey(1, day(0))] = "waiting"
	svc := NewService(repo, nil)

	_, err := svc.CreateRecord(context.Background(), validInput(5))
	require.NoError(t, err)
	require.Equal(t, "examined", repo.appointments[repo.queueKey(1, day(0))])
}

func TestCreateRecordWithoutPrescriptions(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	input := validInput(0)
	input.Prescriptions = nil

	record, err := svc.CreateRecord(context.Background(), input)
	require.NoError(t, err)
	require.Empty(t, record.Prescriptions)
}

func TestCreateRecordValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	cases := map[string]func(*CreateRecordInput){
		"missing patient":      func(in *CreateRecordInput) { in.PatientID = 0 },
		"missing doctor":       func(in *CreateRecordInput) { in.DoctorID = 0 },
		"zero record date":     func(in *CreateRecordInput) { in.RecordDate = time.Time{} },
		"zero quantity":        func(in *CreateRecordInput) { in.Prescriptions[0].Quantity = 0 },
		"missing usage method": func(in *CreateRecordInput) { in.Prescriptions[0].UsageMethodID = 0 },
	}
	for name, mutate := range cases {
		input := validInput(5)
		mutate(&input)
		_, err := svc.CreateRecord(context.Background(), input)
		require.ErrorIs(t, err, httpx.ErrValidation, name)
	}
}

func TestListByPatientPaginates(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoBatches(repo)
	svc := NewService(repo, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateRecord(context.Background(), validInput(1))
		require.NoError(t, err)
	}

	list, pagination, err := svc.ListByPatient(context.Background(), 1, 1, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 3, pagination.Total)
	require.Equal(t, 2, pagination.TotalPages)
}
