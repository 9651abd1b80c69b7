package inventory

import (
	"context"
	"sort"
	"time"
)

// memoryRepo is an in-memory RepositoryPort used by the service and allocator
// tests. WithTx snapshots state before the callback and restores it on error,
// mirroring the rollback guarantee of the real repository. dispensed mirrors
// the prescription_allocations rows keyed by batch, including their ON DELETE
// CASCADE: deleting a batch removes its dispensing breakdown.
type memoryRepo struct {
	medicines     map[int64]int64
	receipts      map[int64]ImportReceipt
	batches       map[int64]Batch
	dispensed     map[int64]int64
	nextReceiptID int64
	nextBatchID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo(medicineIDs ...int64) *memoryRepo {
	repo := &memoryRepo{
		medicines: make(map[int64]int64),
		receipts:  make(map[int64]ImportReceipt),
		batches:   make(map[int64]Batch),
		dispensed: make(map[int64]int64),
	}
	for _, id := range medicineIDs {
		repo.medicines[id] = 0
	}
	return repo
}

func (r *memoryRepo) snapshot() *memoryRepo {
	clone := &memoryRepo{
		medicines:     make(map[int64]int64, len(r.medicines)),
		receipts:      make(map[int64]ImportReceipt, len(r.receipts)),
		batches:       make(map[int64]Batch, len(r.batches)),
		dispensed:     make(map[int64]int64, len(r.dispensed)),
		nextReceiptID: r.nextReceiptID,
		nextBatchID:   r.nextBatchID,
	}
	for k, v := range r.medicines {
		clone.medicines[k] = v
	}
	for k, v := range r.receipts {
		clone.receipts[k] = v
	}
	for k, v := range r.batches {
		clone.batches[k] = v
	}
	for k, v := range r.dispensed {
		clone.dispensed[k] = v
	}
	return clone
}

func (r *memoryRepo) restore(saved *memoryRepo) {
	r.medicines = saved.medicines
	r.receipts = saved.receipts
	r.batches = saved.batches
	r.dispensed = saved.dispensed
	r.nextReceiptID = saved.nextReceiptID
	r.nextBatchID = saved.nextBatchID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.restore(saved)
		return err
	}
	return nil
}

func (r *memoryRepo) GetReceipt(ctx context.Context, id int64) (ImportReceipt, []Batch, error) {
	receipt, ok := r.receipts[id]
	if !ok {
		return ImportReceipt{}, nil, ErrReceiptNotFound
	}
	batches := r.receiptBatches(id)
	return receipt, batches, nil
}

func (r *memoryRepo) ListReceipts(ctx context.Context, limit, offset int) ([]ImportReceipt, int, error) {
	all := make([]ImportReceipt, 0, len(r.receipts))
	for _, receipt := range r.receipts {
		all = append(all, receipt)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return all, len(all), nil
}

func (r *memoryRepo) ListBatchesByMedicine(ctx context.Context, medicineID int64, onlyWithStock bool) ([]Batch, error) {
	result := []Batch{}
	for _, b := range r.batches {
		if b.MedicineID != medicineID {
			continue
		}
		if onlyWithStock && b.Remaining <= 0 {
			continue
		}
		result = append(result, b)
	}
	r.sortFEFO(result)
	return result, nil
}

func (r *memoryRepo) ListExpiring(ctx context.Context, before time.Time) ([]Batch, error) {
	result := []Batch{}
	for _, b := range r.batches {
		if b.Remaining > 0 && b.ExpiryDate != nil && b.ExpiryDate.Before(before) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiryDate.Before(*result[j].ExpiryDate) })
	return result, nil
}

func (r *memoryRepo) receiptBatches(receiptID int64) []Batch {
	result := []Batch{}
	for _, b := range r.batches {
		if b.ReceiptID == receiptID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *memoryRepo) sortFEFO(batches []Batch) {
	sort.Slice(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		ra := r.receipts[a.ReceiptID].ReceiptDate
		rb := r.receipts[b.ReceiptID].ReceiptDate
		if !ra.Equal(rb) {
			return ra.Before(rb)
		}
		return a.ID < b.ID
	})
}

func (tx *memoryTx) InsertReceipt(ctx context.Context, receipt ImportReceipt) (int64, error) {
	tx.repo.nextReceiptID++
	receipt.ID = tx.repo.nextReceiptID
	receipt.CreatedAt = time.Now()
	receipt.UpdatedAt = receipt.CreatedAt
	tx.repo.receipts[receipt.ID] = receipt
	return receipt.ID, nil
}

func (tx *memoryTx) GetReceiptForUpdate(ctx context.Context, id int64) (ImportReceipt, error) {
	receipt, ok := tx.repo.receipts[id]
	if !ok {
		return ImportReceipt{}, ErrReceiptNotFound
	}
	return receipt, nil
}

func (tx *memoryTx) UpdateReceiptHeader(ctx context.Context, id int64, supplier string, date time.Time, total float64) error {
	receipt, ok := tx.repo.receipts[id]
	if !ok {
		return ErrReceiptNotFound
	}
	receipt.SupplierName = supplier
	receipt.ReceiptDate = date
	receipt.TotalAmount = total
	receipt.UpdatedAt = time.Now()
	tx.repo.receipts[id] = receipt
	return nil
}

func (tx *memoryTx) DeleteReceipt(ctx context.Context, id int64) error {
	if _, ok := tx.repo.receipts[id]; !ok {
		return ErrReceiptNotFound
	}
	delete(tx.repo.receipts, id)
	return nil
}

func (tx *memoryTx) InsertBatch(ctx context.Context, batch Batch) (int64, error) {
	tx.repo.nextBatchID++
	batch.ID = tx.repo.nextBatchID
	batch.Remaining = batch.Quantity
	tx.repo.batches[batch.ID] = batch
	return batch.ID, nil
}

func (tx *memoryTx) ListBatchesByReceipt(ctx context.Context, receiptID int64) ([]Batch, error) {
	return tx.repo.receiptBatches(receiptID), nil
}

func (tx *memoryTx) DeleteBatchesByReceipt(ctx context.Context, receiptID int64) error {
	for id, b := range tx.repo.batches {
		if b.ReceiptID == receiptID {
			delete(tx.repo.batches, id)
			delete(tx.repo.dispensed, id)
		}
	}
	return nil
}

func (tx *memoryTx) SelectBatchesForAllocation(ctx context.Context, medicineID int64) ([]Batch, error) {
	return tx.repo.ListBatchesByMedicine(ctx, medicineID, true)
}

func (tx *memoryTx) DeductBatch(ctx context.Context, batchID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidQuantity
	}
	batch, ok := tx.repo.batches[batchID]
	if !ok || batch.Remaining < amount {
		return ErrInvalidDeduction
	}
	batch.Remaining -= amount
	tx.repo.batches[batchID] = batch
	tx.repo.dispensed[batchID] += amount
	return nil
}

func (tx *memoryTx) RecomputeMedicineStock(ctx context.Context, medicineID int64) error {
	if _, ok := tx.repo.medicines[medicineID]; !ok {
		return ErrMedicineNotFound
	}
	var sum int64
	for _, b := range tx.repo.batches {
		if b.MedicineID == medicineID {
			sum += b.Remaining
		}
	}
	tx.repo.medicines[medicineID] = sum
	return nil
}

func (tx *memoryTx) MedicineExists(ctx context.Context, medicineID int64) (bool, error) {
	_, ok := tx.repo.medicines[medicineID]
	return ok, nil
}
