package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReceipt(ctx context.Context, id int64) (ImportReceipt, []Batch, error)
	ListReceipts(ctx context.Context, limit, offset int) ([]ImportReceipt, int, error)
	ListBatchesByMedicine(ctx context.Context, medicineID int64, onlyWithStock bool) ([]Batch, error)
	ListExpiring(ctx context.Context, before time.Time) ([]Batch, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates receipt transactions and stock allocation.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	notifier    Notifier
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem}
}

// SetNotifier attaches an event sink for committed mutations.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) notifyReceipt(event ReceiptPostedEvent) {
	if s.notifier != nil {
		event.PostedAt = time.Now().UTC()
		s.notifier.ReceiptPosted(event)
	}
}

// CreateReceiptInput describes a receipt creation request.
type CreateReceiptInput struct {
	Supplier       string
	Date           time.Time
	UserID         int64
	IdempotencyKey string
	Lines          []ReceiptLine
}

// ReplaceReceiptInput describes a wholesale receipt replacement.
type ReplaceReceiptInput struct {
	Supplier string
	Date     time.Time
	UserID   int64
	Lines    []ReceiptLine
}

func validateHeader(supplier string, date time.Time) error {
	if strings.TrimSpace(supplier) == "" {
		return fmt.Errorf("supplier name required: %w", ErrValidation)
	}
	if date.IsZero() {
		return fmt.Errorf("receipt date required: %w", ErrValidation)
	}
	return nil
}

func validateLines(lines []ReceiptLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("at least one receipt line required: %w", ErrValidation)
	}
	for i, line := range lines {
		if line.MedicineID <= 0 {
			return fmt.Errorf("line %d: medicine id required: %w", i, ErrValidation)
		}
		if strings.TrimSpace(line.BatchCode) == "" {
			return fmt.Errorf("line %d: batch code required: %w", i, ErrValidation)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("line %d: %w", i, ErrInvalidQuantity)
		}
		if line.UnitPrice < 0 {
			return fmt.Errorf("line %d: %w", i, ErrInvalidUnitPrice)
		}
	}
	return nil
}

func distinctMedicines(lines []ReceiptLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.MedicineID]; ok {
			continue
		}
		seen[line.MedicineID] = struct{}{}
		ids = append(ids, line.MedicineID)
	}
	return ids
}

func distinctBatchMedicines(batches []Batch) []int64 {
	seen := make(map[int64]struct{}, len(batches))
	ids := make([]int64, 0, len(batches))
	for _, batch := range batches {
		if _, ok := seen[batch.MedicineID]; ok {
			continue
		}
		seen[batch.MedicineID] = struct{}{}
		ids = append(ids, batch.MedicineID)
	}
	return ids
}

// CreateReceipt creates an import receipt and its batches in one transaction.
// The receipt total is always computed from the lines; client-supplied totals
// are never trusted.
func (s *Service) CreateReceipt(ctx context.Context, input CreateReceiptInput) (int64, error) {
	if err := validateHeader(input.Supplier, input.Date); err != nil {
		return 0, err
	}
	if err := validateLines(input.Lines); err != nil {
		return 0, err
	}

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return 0, err
		}
		insertedKey = true
	}

	var receiptID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, medicineID := range distinctMedicines(input.Lines) {
			ok, err := tx.MedicineExists(ctx, medicineID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("medicine %d: %w", medicineID, ErrMedicineNotFound)
			}
		}

		id, err := tx.InsertReceipt(ctx, ImportReceipt{
			SupplierName: strings.TrimSpace(input.Supplier),
			ReceiptDate:  input.Date,
			CreatedBy:    input.UserID,
			TotalAmount:  TotalAmount(input.Lines),
		})
		if err != nil {
			return err
		}
		receiptID = id

		for _, line := range input.Lines {
			if _, err := tx.InsertBatch(ctx, Batch{
				MedicineID:      line.MedicineID,
				ReceiptID:       id,
				Code:            line.BatchCode,
				ManufactureDate: line.ManufactureDate,
				ExpiryDate:      line.ExpiryDate,
				Quantity:        line.Quantity,
				UnitPrice:       line.UnitPrice,
			}); err != nil {
				return err
			}
		}

		for _, medicineID := range distinctMedicines(input.Lines) {
			if err := tx.RecomputeMedicineStock(ctx, medicineID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return 0, err
	}

	s.auditReceipt(ctx, receiptID, "created", input.UserID, TotalAmount(input.Lines))
	s.notifyReceipt(ReceiptPostedEvent{ReceiptID: receiptID, Action: "created", ActorID: input.UserID, TotalAmount: TotalAmount(input.Lines)})
	return receiptID, nil
}

// ReplaceReceipt swaps a receipt's batches wholesale. The net effect equals
// deleting the receipt and creating it again with the new lines; aggregates
// are recomputed after the removal and again after the insert so the batch
// rows stay the single source of truth throughout.
func (s *Service) ReplaceReceipt(ctx context.Context, id int64, input ReplaceReceiptInput) error {
	if err := validateHeader(input.Supplier, input.Date); err != nil {
		return err
	}
	if err := validateLines(input.Lines); err != nil {
		return err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetReceiptForUpdate(ctx, id); err != nil {
			return err
		}

		oldBatches, err := tx.ListBatchesByReceipt(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteBatchesByReceipt(ctx, id); err != nil {
			return err
		}
		for _, medicineID := range distinctBatchMedicines(oldBatches) {
			if err := tx.RecomputeMedicineStock(ctx, medicineID); err != nil {
				return err
			}
		}

		for _, medicineID := range distinctMedicines(input.Lines) {
			ok, err := tx.MedicineExists(ctx, medicineID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("medicine %d: %w", medicineID, ErrMedicineNotFound)
			}
		}
		for _, line := range input.Lines {
			if _, err := tx.InsertBatch(ctx, Batch{
				MedicineID:      line.MedicineID,
				ReceiptID:       id,
				Code:            line.BatchCode,
				ManufactureDate: line.ManufactureDate,
				ExpiryDate:      line.ExpiryDate,
				Quantity:        line.Quantity,
				UnitPrice:       line.UnitPrice,
			}); err != nil {
				return err
			}
		}
		for _, medicineID := range distinctMedicines(input.Lines) {
			if err := tx.RecomputeMedicineStock(ctx, medicineID); err != nil {
				return err
			}
		}

		return tx.UpdateReceiptHeader(ctx, id, strings.TrimSpace(input.Supplier), input.Date, TotalAmount(input.Lines))
	})
	if err != nil {
		return err
	}

	s.auditReceipt(ctx, id, "replaced", input.UserID, TotalAmount(input.Lines))
	s.notifyReceipt(ReceiptPostedEvent{ReceiptID: id, Action: "replaced", ActorID: input.UserID, TotalAmount: TotalAmount(input.Lines)})
	return nil
}

// DeleteReceipt removes a receipt and its batches. Stock already consumed
// from the receipt's batches stays consumed: the aggregates are recomputed
// from the surviving batch rows, which reverses each deleted batch by its
// remaining quantity, not its original quantity.
func (s *Service) DeleteReceipt(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetReceiptForUpdate(ctx, id); err != nil {
			return err
		}
		batches, err := tx.ListBatchesByReceipt(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteBatchesByReceipt(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteReceipt(ctx, id); err != nil {
			return err
		}
		for _, medicineID := range distinctBatchMedicines(batches) {
			if err := tx.RecomputeMedicineStock(ctx, medicineID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.auditReceipt(ctx, id, "deleted", actorID, 0)
	s.notifyReceipt(ReceiptPostedEvent{ReceiptID: id, Action: "deleted", ActorID: actorID})
	return nil
}

// Allocate satisfies a standalone dispense request in its own transaction.
func (s *Service) Allocate(ctx context.Context, medicineID, quantity int64) ([]Allocation, error) {
	if medicineID <= 0 {
		return nil, fmt.Errorf("medicine %d: %w", medicineID, ErrMedicineNotFound)
	}
	var allocations []Allocation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.MedicineExists(ctx, medicineID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("medicine %d: %w", medicineID, ErrMedicineNotFound)
		}
		allocations, err = AllocateFEFO(ctx, tx, medicineID, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "inventory:allocate",
			Entity:   "medicine",
			EntityID: fmt.Sprintf("%d", medicineID),
			Meta: map[string]any{
				"quantity": quantity,
				"batches":  len(allocations),
			},
		})
	}
	if s.notifier != nil {
		s.notifier.StockAllocated(StockAllocatedEvent{
			MedicineID:  medicineID,
			Quantity:    quantity,
			Allocations: allocations,
			PostedAt:    time.Now().UTC(),
		})
	}
	return allocations, nil
}

// GetReceipt returns a receipt with its batches.
func (s *Service) GetReceipt(ctx context.Context, id int64) (ImportReceipt, []Batch, error) {
	if id <= 0 {
		return ImportReceipt{}, nil, ErrReceiptNotFound
	}
	return s.repo.GetReceipt(ctx, id)
}

// ListReceipts returns receipt headers with a total count for pagination.
func (s *Service) ListReceipts(ctx context.Context, limit, offset int) ([]ImportReceipt, int, error) {
	return s.repo.ListReceipts(ctx, limit, offset)
}

// ListBatches returns a medicine's batches in FEFO order.
func (s *Service) ListBatches(ctx context.Context, medicineID int64, onlyWithStock bool) ([]Batch, error) {
	if medicineID <= 0 {
		return nil, fmt.Errorf("medicine %d: %w", medicineID, ErrMedicineNotFound)
	}
	return s.repo.ListBatchesByMedicine(ctx, medicineID, onlyWithStock)
}

// ListExpiring returns stocked batches expiring within the horizon.
func (s *Service) ListExpiring(ctx context.Context, horizon time.Duration) ([]Batch, error) {
	return s.repo.ListExpiring(ctx, time.Now().Add(horizon))
}

func (s *Service) auditReceipt(ctx context.Context, receiptID int64, action string, actorID int64, total float64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "inventory:receipt:" + action,
		Entity:   "import_receipt",
		EntityID: fmt.Sprintf("%d", receiptID),
		Meta: map[string]any{
			"total_amount": total,
		},
	})
}
