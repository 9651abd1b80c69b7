package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/clinicore/clinicore/internal/inventory"
	"github.com/clinicore/clinicore/internal/platform/httpx"
)

// memoryRepo is an in-memory RepositoryPort. WithTx snapshots all state and
// restores it when the callback fails, mirroring a database rollback.
type memoryRepo struct {
	nextRecordID       int64
	nextPrescriptionID int64
	records            map[int64]*MedicalRecord
	prescriptions      map[int64][]PrescriptionDetail
	appointments       map[string]string

	batches      []inventory.Batch
	receiptDates map[int64]time.Time
	stock        map[int64]int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextRecordID:       1,
		nextPrescriptionID: 1,
		records:            make(map[int64]*MedicalRecord),
		prescriptions:      make(map[int64][]PrescriptionDetail),
		appointments:       make(map[string]string),
		receiptDates:       make(map[int64]time.Time),
		stock:              make(map[int64]int64),
	}
}

func (m *memoryRepo) addBatch(b inventory.Batch, receiptDate time.Time) {
	m.batches = append(m.batches, b)
	m.receiptDates[b.ReceiptID] = receiptDate
	if _, ok := m.stock[b.MedicineID]; !ok {
		m.stock[b.MedicineID] = 0
	}
	m.stock[b.MedicineID] += b.Remaining
}

func (m *memoryRepo) queueKey(patientID int64, date time.Time) string {
	return fmt.Sprintf("%d@%s", patientID, date.Format("2006-01-02"))
}

func (m *memoryRepo) snapshot() *memoryRepo {
	clone := newMemoryRepo()
	clone.nextRecordID = m.nextRecordID
	clone.nextPrescriptionID = m.nextPrescriptionID
	for id, rec := range m.records {
		c := *rec
		clone.records[id] = &c
	}
	for id, lines := range m.prescriptions {
		clone.prescriptions[id] = append([]PrescriptionDetail(nil), lines...)
	}
	for k, v := range m.appointments {
		clone.appointments[k] = v
	}
	clone.batches = append([]inventory.Batch(nil), m.batches...)
	for k, v := range m.receiptDates {
		clone.receiptDates[k] = v
	}
	for k, v := range m.stock {
		clone.stock[k] = v
	}
	return clone
}

func (m *memoryRepo) restore(snap *memoryRepo) {
	*m = *snap
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context, store TxStore) error) error {
	snap := m.snapshot()
	if err := fn(ctx, &memoryTxStore{repo: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memoryRepo) GetRecord(_ context.Context, id int64) (*MedicalRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("medical record %d: %w", id, httpx.ErrNotFound)
	}
	clone := *rec
	clone.Prescriptions = append([]PrescriptionDetail(nil), m.prescriptions[id]...)
	return &clone, nil
}

func (m *memoryRepo) ListByPatient(_ context.Context, patientID int64, limit, offset int) ([]MedicalRecord, int, error) {
	var list []MedicalRecord
	for _, rec := range m.records {
		if rec.PatientID == patientID {
			list = append(list, *rec)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	total := len(list)
	if offset > len(list) {
		offset = len(list)
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, total, nil
}

type memoryTxStore struct {
	repo *memoryRepo
}

func (s *memoryTxStore) InsertRecord(_ context.Context, record MedicalRecord) (int64, error) {
	id := s.repo.nextRecordID
	s.repo.nextRecordID++
	record.ID = id
	s.repo.records[id] = &record
	return id, nil
}

func (s *memoryTxStore) InsertPrescription(_ context.Context, recordID int64, line PrescriptionDetail) (int64, error) {
	if _, ok := s.repo.records[recordID]; !ok {
		return 0, fmt.Errorf("medical record %d: %w", recordID, httpx.ErrNotFound)
	}
	line.ID = s.repo.nextPrescriptionID
	s.repo.nextPrescriptionID++
	s.repo.prescriptions[recordID] = append(s.repo.prescriptions[recordID], line)
	return line.ID, nil
}

func (s *memoryTxStore) InsertAllocation(_ context.Context, prescriptionID int64, alloc BatchAllocation) error {
	for recordID, lines := range s.repo.prescriptions {
		for i := range lines {
			if lines[i].ID == prescriptionID {
				s.repo.prescriptions[recordID][i].Allocations = append(s.repo.prescriptions[recordID][i].Allocations, alloc)
				return nil
			}
		}
	}
	return fmt.Errorf("prescription %d: %w", prescriptionID, httpx.ErrNotFound)
}

func (s *memoryTxStore) MarkAppointmentExamined(_ context.Context, patientID int64, date time.Time) error {
	key := s.repo.queueKey(patientID, date)
	if s.repo.appointments[key] == "waiting" {
		s.repo.appointments[key] = "examined"
	}
	return nil
}

func (s *memoryTxStore) Ledger() inventory.TxRepository {
	return &memoryLedger{repo: s.repo}
}

// memoryLedger implements the subset of the inventory transaction surface that
// allocation exercises.
type memoryLedger struct {
	repo *memoryRepo
}

var errLedgerUnsupported = errors.New("operation not supported by test ledger")

func (l *memoryLedger) SelectBatchesForAllocation(_ context.Context, medicineID int64) ([]inventory.Batch, error) {
	var out []inventory.Batch
	for _, b := range l.repo.batches {
		if b.MedicineID == medicineID && b.Remaining > 0 {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := out[i], out[j]
		switch {
		case bi.ExpiryDate == nil && bj.ExpiryDate == nil:
		case bi.ExpiryDate == nil:
			return false
		case bj.ExpiryDate == nil:
			return true
		case !bi.ExpiryDate.Equal(*bj.ExpiryDate):
			return bi.ExpiryDate.Before(*bj.ExpiryDate)
		}
		ri, rj := l.repo.receiptDates[bi.ReceiptID], l.repo.receiptDates[bj.ReceiptID]
		if !ri.Equal(rj) {
			return ri.Before(rj)
		}
		return bi.ID < bj.ID
	})
	return out, nil
}

func (l *memoryLedger) DeductBatch(_ context.Context, batchID, amount int64) error {
	if amount <= 0 {
		return inventory.ErrInvalidQuantity
	}
	for i := range l.repo.batches {
		if l.repo.batches[i].ID == batchID {
			if l.repo.batches[i].Remaining < amount {
				return inventory.ErrInvalidDeduction
			}
			l.repo.batches[i].Remaining -= amount
			return nil
		}
	}
	return inventory.ErrInvalidDeduction
}

func (l *memoryLedger) RecomputeMedicineStock(_ context.Context, medicineID int64) error {
	if _, ok := l.repo.stock[medicineID]; !ok {
		return inventory.ErrMedicineNotFound
	}
	var sum int64
	for _, b := range l.repo.batches {
		if b.MedicineID == medicineID {
			sum += b.Remaining
		}
	}
	l.repo.stock[medicineID] = sum
	return nil
}

func (l *memoryLedger) MedicineExists(_ context.Context, medicineID int64) (bool, error) {
	_, ok := l.repo.stock[medicineID]
	return ok, nil
}

func (l *memoryLedger) InsertReceipt(context.Context, inventory.ImportReceipt) (int64, error) {
	return 0, errLedgerUnsupported
}

func (l *memoryLedger) GetReceiptForUpdate(context.Context, int64) (inventory.ImportReceipt, error) {
	return inventory.ImportReceipt{}, errLedgerUnsupported
}

func (l *memoryLedger) UpdateReceiptHeader(context.Context, int64, string, time.Time, float64) error {
	return errLedgerUnsupported
}

func (l *memoryLedger) DeleteReceipt(context.Context, int64) error {
	return errLedgerUnsupported
}

func (l *memoryLedger) InsertBatch(context.Context, inventory.Batch) (int64, error) {
	return 0, errLedgerUnsupported
}

func (l *memoryLedger) ListBatchesByReceipt(context.Context, int64) ([]inventory.Batch, error) {
	return nil, errLedgerUnsupported
}

func (l *memoryLedger) DeleteBatchesByReceipt(context.Context, int64) error {
	return errLedgerUnsupported
}
