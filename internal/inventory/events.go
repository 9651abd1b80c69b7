package inventory

import "time"

// ReceiptPostedEvent is emitted after a receipt mutation commits.
type ReceiptPostedEvent struct {
	ReceiptID   int64
	Action      string // created, replaced, deleted
	ActorID     int64
	TotalAmount float64
	PostedAt    time.Time
}

// StockAllocatedEvent is emitted after a standalone allocation commits.
type StockAllocatedEvent struct {
	MedicineID  int64
	Quantity    int64
	Allocations []Allocation
	PostedAt    time.Time
}

// Notifier receives committed inventory events. Implementations must not
// block; they run on the request path.
type Notifier interface {
	ReceiptPosted(ReceiptPostedEvent)
	StockAllocated(StockAllocatedEvent)
}
