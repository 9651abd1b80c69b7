package inventory

import (
	"errors"
	"time"
)

// Batch is one received lot of a medicine. It is owned by exactly one import
// receipt and keeps its own expiry date and unconsumed quantity.
type Batch struct {
	ID              int64
	MedicineID      int64
	ReceiptID       int64
	Code            string
	ManufactureDate time.Time
	ExpiryDate      *time.Time
	Quantity        int64
	UnitPrice       float64
	Remaining       int64
}

// IsExpired reports whether the batch expiry has passed. Batches without an
// expiry date never expire.
func (b Batch) IsExpired(now time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(now)
}

// ImportReceipt records one supplier delivery owning one or more batches.
// TotalAmount is always computed server-side from the receipt's batches.
type ImportReceipt struct {
	ID           int64
	SupplierName string
	ReceiptDate  time.Time
	CreatedBy    int64
	TotalAmount  float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReceiptLine describes one batch to be created under a receipt.
type ReceiptLine struct {
	MedicineID      int64
	BatchCode       string
	ManufactureDate time.Time
	ExpiryDate      *time.Time
	Quantity        int64
	UnitPrice       float64
}

// Allocation records a deduction taken from a single batch.
type Allocation struct {
	BatchID  int64
	Deducted int64
}

// TotalAmount sums quantity times unit price over the given lines.
func TotalAmount(lines []ReceiptLine) float64 {
	var total float64
	for _, line := range lines {
		total += float64(line.Quantity) * line.UnitPrice
	}
	return total
}

// ErrInsufficientStock is returned when FEFO allocation cannot satisfy the
// requested quantity. The enclosing transaction must roll back so no partial
// deduction is retained.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrInvalidDeduction guards against deducting more than a batch holds. It
// signals a logic error upstream and is fatal to the transaction.
var ErrInvalidDeduction = errors.New("inventory: deduction exceeds remaining quantity")

// ErrValidation flags malformed input rejected before any transaction opens.
var ErrValidation = errors.New("inventory: invalid input")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidUnitPrice indicates a negative unit price.
var ErrInvalidUnitPrice = errors.New("inventory: unit price must be >= 0")

// ErrMedicineNotFound indicates an unknown medicine reference.
var ErrMedicineNotFound = errors.New("inventory: medicine not found")

// ErrReceiptNotFound indicates an unknown import receipt.
var ErrReceiptNotFound = errors.New("inventory: import receipt not found")
