package inventory

import (
	"context"
	"fmt"
)

// AllocateFEFO deducts quantity from the medicine's batches in
// first-expire-first-out order: earliest expiry first, null expiry last, ties
// broken by receipt date then batch id. It must run inside the caller's
// transaction; on ErrInsufficientStock the caller rolls back, so no partial
// deduction survives.
//
// The batch rows are locked by SelectBatchesForAllocation before any
// deduction, which serialises concurrent allocations against the same
// medicine.
func AllocateFEFO(ctx context.Context, ledger TxRepository, medicineID, quantity int64) ([]Allocation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	batches, err := ledger.SelectBatchesForAllocation(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	needed := quantity
	allocations := make([]Allocation, 0, len(batches))
	for _, batch := range batches {
		if needed == 0 {
			break
		}
		take := batch.Remaining
		if take > needed {
			take = needed
		}
		if take <= 0 {
			continue
		}
		if err := ledger.DeductBatch(ctx, batch.ID, take); err != nil {
			return nil, fmt.Errorf("deduct batch %d: %w", batch.ID, err)
		}
		allocations = append(allocations, Allocation{BatchID: batch.ID, Deducted: take})
		needed -= take
	}

	if needed > 0 {
		return nil, fmt.Errorf("medicine %d short by %d: %w", medicineID, needed, ErrInsufficientStock)
	}

	if err := ledger.RecomputeMedicineStock(ctx, medicineID); err != nil {
		return nil, err
	}

	return allocations, nil
}
