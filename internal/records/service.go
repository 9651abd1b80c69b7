package records

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/clinicore/clinicore/internal/inventory"
	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service creates and reads medical records. Record creation dispenses stock:
// every prescription line is allocated first-expire-first-out inside the same
// transaction that writes the record, so a shortage rolls everything back.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// PrescriptionInput is one requested medicine line.
type PrescriptionInput struct {
	MedicineID    int64
	UsageMethodID int64
	Quantity      int64
	Dosage        string
}

// CreateRecordInput describes a consultation to persist.
type CreateRecordInput struct {
	PatientID     int64
	DoctorID      int64
	DiseaseID     *int64
	Symptoms      string
	Diagnosis     string
	RecordDate    time.Time
	Prescriptions []PrescriptionInput
}

func (in CreateRecordInput) validate() error {
	if in.PatientID <= 0 {
		return fmt.Errorf("patient id must be positive: %w", httpx.ErrValidation)
	}
	if in.DoctorID <= 0 {
		return fmt.Errorf("doctor id must be positive: %w", httpx.ErrValidation)
	}
	if in.RecordDate.IsZero() {
		return fmt.Errorf("record date is required: %w", httpx.ErrValidation)
	}
	for i, line := range in.Prescriptions {
		if line.MedicineID <= 0 {
			return fmt.Errorf("prescription %d: medicine id must be positive: %w", i+1, httpx.ErrValidation)
		}
		if line.UsageMethodID <= 0 {
			return fmt.Errorf("prescription %d: usage method id must be positive: %w", i+1, httpx.ErrValidation)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("prescription %d: quantity must be positive: %w", i+1, httpx.ErrValidation)
		}
	}
	return nil
}

// CreateRecord persists the record, dispenses every prescription line, and
// flips the patient's waiting appointment. All of it commits or none of it
// does.
func (s *Service) CreateRecord(ctx context.Context, input CreateRecordInput) (*MedicalRecord, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var recordID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		id, err := store.InsertRecord(ctx, MedicalRecord{
			PatientID:  input.PatientID,
			DoctorID:   input.DoctorID,
			DiseaseID:  input.DiseaseID,
			Symptoms:   input.Symptoms,
			Diagnosis:  input.Diagnosis,
			RecordDate: input.RecordDate,
		})
		if err != nil {
			return err
		}
		recordID = id

		ledger := store.Ledger()
		for _, line := range input.Prescriptions {
			allocations, err := inventory.AllocateFEFO(ctx, ledger, line.MedicineID, line.Quantity)
			if err != nil {
				return fmt.Errorf("dispense medicine %d: %w", line.MedicineID, err)
			}
			prescriptionID, err := store.InsertPrescription(ctx, id, PrescriptionDetail{
				MedicineID:    line.MedicineID,
				UsageMethodID: line.UsageMethodID,
				Quantity:      line.Quantity,
				Dosage:        line.Dosage,
			})
			if err != nil {
				return err
			}
			for _, alloc := range allocations {
				if err := store.InsertAllocation(ctx, prescriptionID, BatchAllocation{
					BatchID:  alloc.BatchID,
					Quantity: alloc.Deducted,
				}); err != nil {
					return err
				}
			}
		}

		return store.MarkAppointmentExamined(ctx, input.PatientID, input.RecordDate)
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.DoctorID,
			Action:   "record.create",
			Entity:   "medical_record",
			EntityID: strconv.FormatInt(recordID, 10),
			Meta: map[string]any{
				"patient_id":    input.PatientID,
				"prescriptions": len(input.Prescriptions),
			},
			At: time.Now().UTC(),
		})
	}

	return s.repo.GetRecord(ctx, recordID)
}

// GetRecord returns one record with prescriptions and allocations.
func (s *Service) GetRecord(ctx context.Context, id int64) (*MedicalRecord, error) {
	return s.repo.GetRecord(ctx, id)
}

// ListByPatient returns a patient's consultation history.
func (s *Service) ListByPatient(ctx context.Context, patientID int64, page, perPage int) ([]MedicalRecord, shared.Pagination, error) {
	pagination := shared.NewPagination(page, perPage, 0)
	list, total, err := s.repo.ListByPatient(ctx, patientID, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page, perPage, total), nil
}
