package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(offset int) time.Time {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func dayPtr(offset int) *time.Time {
	d := day(offset)
	return &d
}

func requireInvariant(t *testing.T, repo *memoryRepo) {
	t.Helper()
	for medicineID, total := range repo.medicines {
		var sum int64
		for _, b := range repo.batches {
			if b.MedicineID == medicineID {
				require.GreaterOrEqual(t, b.Remaining, int64(0))
				require.LessOrEqual(t, b.Remaining, b.Quantity)
				sum += b.Remaining
			}
		}
		require.Equalf(t, sum, total, "medicine %d aggregate drifted", medicineID)
	}
}

func TestCreateReceiptComputesTotal(t *testing.T) {
	repo := newMemoryRepo(1, 2)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	receiptID, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		Supplier: "Duoc Hau Giang",
		Date:     day(0),
		UserID:   7,
		Lines: []ReceiptLine{
			{MedicineID: 1, BatchCode: "L001", ManufactureDate: day(-30), ExpiryDate: dayPtr(365), Quantity: 10, UnitPrice: 100},
			{MedicineID: 2, BatchCode: "L002", ManufactureDate: day(-30), ExpiryDate: dayPtr(365), Quantity: 5, UnitPrice: 200},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, receiptID)

	receipt, batches, err := svc.GetReceipt(ctx, receiptID)
	require.NoError(t, err)
	require.InDelta(t, 2000.0, receipt.TotalAmount, 0.001)
	require.Len(t, batches, 2)
	require.Equal(t, int64(10), repo.medicines[1])
	require.Equal(t, int64(5), repo.medicines[2])
	requireInvariant(t, repo)
}

func TestCreateReceiptValidation(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateReceipt(ctx, CreateReceiptInput{Supplier: "", Date: day(0), Lines: []ReceiptLine{{MedicineID: 1, BatchCode: "A", Quantity: 1}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateReceipt(ctx, CreateReceiptInput{Supplier: "S", Date: day(0)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateReceipt(ctx, CreateReceiptInput{Supplier: "S", Date: day(0), Lines: []ReceiptLine{{MedicineID: 1, BatchCode: "A", Quantity: 0}}})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateReceipt(ctx, CreateReceiptInput{Supplier: "S", Date: day(0), Lines: []ReceiptLine{{MedicineID: 1, BatchCode: "A", Quantity: 1, UnitPrice: -5}}})
	require.ErrorIs(t, err, ErrInvalidUnitPrice)

	require.Empty(t, repo.receipts)
	require.Empty(t, repo.batches)
}

func TestCreateReceiptUnknownMedicineRollsBack(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		Supplier: "ACME",
		Date:     day(0),
		Lines: []ReceiptLine{
			{MedicineID: 1, BatchCode: "A", ManufactureDate: day(-1), Quantity: 3, UnitPrice: 10},
			{MedicineID: 99, BatchCode: "B", ManufactureDate: day(-1), Quantity: 3, UnitPrice: 10},
		},
	})
	require.ErrorIs(t, err, ErrMedicineNotFound)
	require.Empty(t, repo.receipts)
	require.Empty(t, repo.batches)
	require.Equal(t, int64(0), repo.medicines[1])
}

func TestDeleteReceiptRestoresAggregates(t *testing.T) {
	repo := newMemoryRepo(1, 2)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		Supplier: "Base",
		Date:     day(0),
		Lines:    []ReceiptLine{{MedicineID: 1, BatchCode: "BASE", ManufactureDate: day(-10), Quantity: 4, UnitPrice: 1}},
	})
	require.NoError(t, err)
	before1, before2 := repo.medicines[1], repo.medicines[2]

	receiptID, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		Supplier: "Extra",
		Date:     day(1),
		Lines: []ReceiptLine{
			{MedicineID: 1, BatchCode: "X1", ManufactureDate: day(-5), Quantity: 10, UnitPrice: 100},
			{MedicineID: 2, BatchCode: "X2", ManufactureDate: day(-5), Quantity: 5, UnitPrice: 200},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReceipt(ctx, receiptID, 0))
	require.Equal(t, before1, repo.medicines[1])
	require.Equal(t, before2, repo.medicines[2])
	requireInvariant(t, repo)

	require.ErrorIs(t, svc.DeleteReceipt(ctx, receiptID, 0), ErrReceiptNotFound)
}

func TestDeleteReceiptAfterPartialConsumption(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	first, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		Supplier: "First",
		Date:     day(0),
		Lines:    []ReceiptLine{{MedicineID: 1, BatchCode: "F", ManufactureDate: day(-10), ExpiryDate: dayPtr(30), Quantity: 10, UnitPrice: 1}},
	})
	require.NoError(t, err)
	_, err = svc.CreateReceipt(ctx, CreateReceiptInput{
		Supplier: "Second",
		Date:     day(1),
		Lines:    []ReceiptLine{{MedicineID: 1, BatchCode: "S", ManufactureDate: day(-10), ExpiryDate: dayPtr(60), Quantity: 10, UnitPrice: 1}},
	})
	require.NoError(t, err)

	// Consumes 6 from the first batch (earliest expiry).
	_, err = svc.Allocate(ctx, 1, 6)
	require.NoError(t, err)
	require.Equal(t, int64(14), repo.medicines[1])
	require.Len(t, repo.dispensed, 1)

	// Deleting the first receipt gives back its remaining 4, not the
	// original 10 — and must succeed even though dispensing rows still
	// reference its batch; those rows go away with the batch.
	require.NoError(t, svc.DeleteReceipt(ctx, first, 0))
	require.Equal(t, int64(10), repo.medicines[1])
	require.Empty(t, repo.dispensed)
	requireInvariant(t, repo)
}

func TestReplaceReceiptMatchesRecreate(t *testing.T) {
	ctx := context.Background()

	build := func() (*memoryRepo, *Service, int64) {
		repo := newMemoryRepo(1, 2)
		svc := NewService(repo, nil, nil)
		_, err := svc.CreateReceipt(ctx, CreateReceiptInput{
			Supplier: "Other",
			Date:     day(0),
			Lines:    []ReceiptLine{{MedicineID: 1, BatchCode: "OTHER", ManufactureDate: day(-20), Quantity: 7, UnitPrice: 2}},
		})
		require.NoError(t, err)
		target, err := svc.CreateReceipt(ctx, CreateReceiptInput{
			Supplier: "Target",
			Date:     day(1),
			Lines: []ReceiptLine{
				{MedicineID: 1, BatchCode: "T1", ManufactureDate: day(-10), Quantity: 10, UnitPrice: 3},
				{MedicineID: 2, BatchCode: "T2", ManufactureDate: day(-10), Quantity: 4, UnitPrice: 5},
			},
		})
		require.NoError(t, err)
		return repo, svc, target
	}

	newLines := []ReceiptLine{
		{MedicineID: 1, BatchCode: "N1", ManufactureDate: day(-3), Quantity: 2, UnitPrice: 9},
	}

	replacedRepo, replacedSvc, target := build()
	require.NoError(t, replacedSvc.ReplaceReceipt(ctx, target, ReplaceReceiptInput{Supplier: "Target v2", Date: day(2), Lines: newLines}))

	recreatedRepo, recreatedSvc, target2 := build()
	require.NoError(t, recreatedSvc.DeleteReceipt(ctx, target2, 0))
	_, err := recreatedSvc.CreateReceipt(ctx, CreateReceiptInput{Supplier: "Target v2", Date: day(2), Lines: newLines})
	require.NoError(t, err)

	require.Equal(t, recreatedRepo.medicines[1], replacedRepo.medicines[1])
	require.Equal(t, recreatedRepo.medicines[2], replacedRepo.medicines[2])
	requireInvariant(t, replacedRepo)

	receipt, batches, err := replacedSvc.GetReceipt(ctx, target)
	require.NoError(t, err)
	require.Equal(t, "Target v2", receipt.SupplierName)
	require.InDelta(t, 18.0, receipt.TotalAmount, 0.001)
	require.Len(t, batches, 1)
}

func TestReplaceReceiptNotFound(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil)

	err := svc.ReplaceReceipt(context.Background(), 42, ReplaceReceiptInput{
		Supplier: "S",
		Date:     day(0),
		Lines:    []ReceiptLine{{MedicineID: 1, BatchCode: "A", ManufactureDate: day(-1), Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestAggregateInvariantAcrossMixedOperations(t *testing.T) {
	repo := newMemoryRepo(1, 2, 3)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	r1, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		Supplier: "A", Date: day(0),
		Lines: []ReceiptLine{
			{MedicineID: 1, BatchCode: "A1", ManufactureDate: day(-5), ExpiryDate: dayPtr(10), Quantity: 8, UnitPrice: 1},
			{MedicineID: 2, BatchCode: "A2", ManufactureDate: day(-5), Quantity: 6, UnitPrice: 1},
		},
	})
	require.NoError(t, err)
	_, err = svc.CreateReceipt(ctx, CreateReceiptInput{
		Supplier: "B", Date: day(1),
		Lines: []ReceiptLine{
			{MedicineID: 1, BatchCode: "B1", ManufactureDate: day(-4), ExpiryDate: dayPtr(20), Quantity: 5, UnitPrice: 2},
			{MedicineID: 3, BatchCode: "B2", ManufactureDate: day(-4), ExpiryDate: dayPtr(15), Quantity: 9, UnitPrice: 2},
		},
	})
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, 1, 9)
	require.NoError(t, err)
	requireInvariant(t, repo)

	require.NoError(t, svc.ReplaceReceipt(ctx, r1, ReplaceReceiptInput{
		Supplier: "A v2", Date: day(2),
		Lines: []ReceiptLine{
			{MedicineID: 2, BatchCode: "A3", ManufactureDate: day(-2), Quantity: 3, UnitPrice: 4},
		},
	}))
	requireInvariant(t, repo)

	_, err = svc.Allocate(ctx, 3, 4)
	require.NoError(t, err)
	requireInvariant(t, repo)
}

type capturingNotifier struct {
	receipts []ReceiptPostedEvent
}

func (n *capturingNotifier) ReceiptPosted(event ReceiptPostedEvent) {
	n.receipts = append(n.receipts, event)
}

func (n *capturingNotifier) StockAllocated(StockAllocatedEvent) {}

func TestReceiptMutationsCarryActor(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil)
	notifier := &capturingNotifier{}
	svc.SetNotifier(notifier)
	ctx := context.Background()

	receiptID, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		Supplier: "Acme",
		Date:     day(0),
		UserID:   7,
		Lines:    []ReceiptLine{{MedicineID: 1, BatchCode: "A", ManufactureDate: day(-1), Quantity: 4, UnitPrice: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReplaceReceipt(ctx, receiptID, ReplaceReceiptInput{
		Supplier: "Acme v2",
		Date:     day(1),
		UserID:   7,
		Lines:    []ReceiptLine{{MedicineID: 1, BatchCode: "B", ManufactureDate: day(-1), Quantity: 2, UnitPrice: 1}},
	}))
	require.NoError(t, svc.DeleteReceipt(ctx, receiptID, 7))

	require.Len(t, notifier.receipts, 3)
	for _, event := range notifier.receipts {
		require.Equalf(t, int64(7), event.ActorID, "%s event lost the actor", event.Action)
	}
}
