package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

// Repository persists the batch ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the ledger operations that must run inside one
// transaction. Implementations are bound to an open pgx.Tx; nothing here
// commits or rolls back.
type TxRepository interface {
	InsertReceipt(ctx context.Context, receipt ImportReceipt) (int64, error)
	GetReceiptForUpdate(ctx context.Context, id int64) (ImportReceipt, error)
	UpdateReceiptHeader(ctx context.Context, id int64, supplier string, date time.Time, total float64) error
	DeleteReceipt(ctx context.Context, id int64) error

	InsertBatch(ctx context.Context, batch Batch) (int64, error)
	ListBatchesByReceipt(ctx context.Context, receiptID int64) ([]Batch, error)
	DeleteBatchesByReceipt(ctx context.Context, receiptID int64) error

	// SelectBatchesForAllocation returns the batches of a medicine with
	// remaining stock, in first-expire-first-out order, with their rows
	// locked for the duration of the transaction.
	SelectBatchesForAllocation(ctx context.Context, medicineID int64) ([]Batch, error)

	// DeductBatch decrements remaining_quantity atomically. The update is
	// conditional on the batch still holding at least amount units; a miss
	// surfaces ErrInvalidDeduction, never a negative row.
	DeductBatch(ctx context.Context, batchID, amount int64) error

	// RecomputeMedicineStock sets medicines.total_quantity to the sum of
	// remaining quantities over the medicine's batches. This is the only
	// write path for the aggregate.
	RecomputeMedicineStock(ctx context.Context, medicineID int64) error

	MedicineExists(ctx context.Context, medicineID int64) (bool, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxLedger wraps an already-open transaction with the ledger operations so
// callers owning a larger transaction (prescription creation) can allocate
// stock inside it.
func NewTxLedger(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction. The
// shared helper guarantees rollback on every exit path, panics included.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const receiptColumns = `id, supplier_name, receipt_date, user_id, total_amount, created_at, updated_at`

// GetReceipt loads a receipt header and its batches outside any transaction.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (ImportReceipt, []Batch, error) {
	var receipt ImportReceipt
	err := r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM import_receipts WHERE id=$1`, id).
		Scan(&receipt.ID, &receipt.SupplierName, &receipt.ReceiptDate, &receipt.CreatedBy, &receipt.TotalAmount, &receipt.CreatedAt, &receipt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ImportReceipt{}, nil, ErrReceiptNotFound
		}
		return ImportReceipt{}, nil, err
	}
	rows, err := r.pool.Query(ctx, batchSelect+` WHERE b.import_receipt_id=$1 ORDER BY b.id ASC`, id)
	if err != nil {
		return ImportReceipt{}, nil, err
	}
	batches, err := scanBatches(rows)
	if err != nil {
		return ImportReceipt{}, nil, err
	}
	return receipt, batches, nil
}

// ListReceipts returns receipt headers ordered by receipt date descending.
func (r *Repository) ListReceipts(ctx context.Context, limit, offset int) ([]ImportReceipt, int, error) {
	if limit <= 0 {
		limit = 20
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM import_receipts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+receiptColumns+` FROM import_receipts ORDER BY receipt_date DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	receipts := []ImportReceipt{}
	for rows.Next() {
		var receipt ImportReceipt
		if err := rows.Scan(&receipt.ID, &receipt.SupplierName, &receipt.ReceiptDate, &receipt.CreatedBy, &receipt.TotalAmount, &receipt.CreatedAt, &receipt.UpdatedAt); err != nil {
			return nil, 0, err
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}

// ListBatchesByMedicine returns a medicine's batches, optionally only those
// still holding stock, in FEFO order.
func (r *Repository) ListBatchesByMedicine(ctx context.Context, medicineID int64, onlyWithStock bool) ([]Batch, error) {
	query := batchSelect + ` JOIN import_receipts ir ON ir.id = b.import_receipt_id WHERE b.medicine_id=$1`
	if onlyWithStock {
		query += ` AND b.remaining_quantity > 0`
	}
	query += ` ORDER BY b.expiry_date ASC NULLS LAST, ir.receipt_date ASC, b.id ASC`
	rows, err := r.pool.Query(ctx, query, medicineID)
	if err != nil {
		return nil, err
	}
	return scanBatches(rows)
}

// ListExpiring returns batches with stock whose expiry falls before the cutoff.
func (r *Repository) ListExpiring(ctx context.Context, before time.Time) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, batchSelect+` WHERE b.remaining_quantity > 0 AND b.expiry_date IS NOT NULL AND b.expiry_date < $1 ORDER BY b.expiry_date ASC, b.id ASC`, before)
	if err != nil {
		return nil, err
	}
	return scanBatches(rows)
}

const batchSelect = `SELECT b.id, b.medicine_id, b.import_receipt_id, b.batch_code, b.manufacture_date, b.expiry_date, b.quantity, b.unit_price, b.remaining_quantity
FROM batches b`

func scanBatches(rows pgx.Rows) ([]Batch, error) {
	defer rows.Close()
	batches := []Batch{}
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.MedicineID, &b.ReceiptID, &b.Code, &b.ManufactureDate, &b.ExpiryDate, &b.Quantity, &b.UnitPrice, &b.Remaining); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *txRepository) InsertReceipt(ctx context.Context, receipt ImportReceipt) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO import_receipts (supplier_name, receipt_date, user_id, total_amount, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id`, receipt.SupplierName, receipt.ReceiptDate, receipt.CreatedBy, receipt.TotalAmount).Scan(&id)
	return id, err
}

func (r *txRepository) GetReceiptForUpdate(ctx context.Context, id int64) (ImportReceipt, error) {
	var receipt ImportReceipt
	err := r.tx.QueryRow(ctx, `SELECT `+receiptColumns+` FROM import_receipts WHERE id=$1 FOR UPDATE`, id).
		Scan(&receipt.ID, &receipt.SupplierName, &receipt.ReceiptDate, &receipt.CreatedBy, &receipt.TotalAmount, &receipt.CreatedAt, &receipt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ImportReceipt{}, ErrReceiptNotFound
		}
		return ImportReceipt{}, err
	}
	return receipt, nil
}

func (r *txRepository) UpdateReceiptHeader(ctx context.Context, id int64, supplier string, date time.Time, total float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE import_receipts SET supplier_name=$2, receipt_date=$3, total_amount=$4, updated_at=NOW() WHERE id=$1`, id, supplier, date, total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

func (r *txRepository) DeleteReceipt(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM import_receipts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

func (r *txRepository) InsertBatch(ctx context.Context, batch Batch) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO batches (medicine_id, import_receipt_id, batch_code, manufacture_date, expiry_date, quantity, unit_price, remaining_quantity)
VALUES ($1,$2,$3,$4,$5,$6,$7,$6) RETURNING id`,
		batch.MedicineID, batch.ReceiptID, batch.Code, batch.ManufactureDate, batch.ExpiryDate, batch.Quantity, batch.UnitPrice).Scan(&id)
	return id, err
}

func (r *txRepository) ListBatchesByReceipt(ctx context.Context, receiptID int64) ([]Batch, error) {
	rows, err := r.tx.Query(ctx, batchSelect+` WHERE b.import_receipt_id=$1 ORDER BY b.id ASC FOR UPDATE`, receiptID)
	if err != nil {
		return nil, err
	}
	return scanBatches(rows)
}

func (r *txRepository) DeleteBatchesByReceipt(ctx context.Context, receiptID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM batches WHERE import_receipt_id=$1`, receiptID)
	return err
}

func (r *txRepository) SelectBatchesForAllocation(ctx context.Context, medicineID int64) ([]Batch, error) {
	rows, err := r.tx.Query(ctx, batchSelect+`
JOIN import_receipts ir ON ir.id = b.import_receipt_id
WHERE b.medicine_id=$1 AND b.remaining_quantity > 0
ORDER BY b.expiry_date ASC NULLS LAST, ir.receipt_date ASC, b.id ASC
FOR UPDATE OF b`, medicineID)
	if err != nil {
		return nil, err
	}
	return scanBatches(rows)
}

func (r *txRepository) DeductBatch(ctx context.Context, batchID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidQuantity
	}
	tag, err := r.tx.Exec(ctx, `UPDATE batches SET remaining_quantity = remaining_quantity - $2 WHERE id=$1 AND remaining_quantity >= $2`, batchID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidDeduction
	}
	return nil
}

func (r *txRepository) RecomputeMedicineStock(ctx context.Context, medicineID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE medicines
SET total_quantity = (SELECT COALESCE(SUM(remaining_quantity), 0) FROM batches WHERE medicine_id=$1), updated_at=NOW()
WHERE id=$1`, medicineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMedicineNotFound
	}
	return nil
}

func (r *txRepository) MedicineExists(ctx context.Context, medicineID int64) (bool, error) {
	var exists bool
	if err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM medicines WHERE id=$1)`, medicineID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
