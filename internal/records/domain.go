package records

import "time"

// PrescriptionDetail is one medicine line on a medical record. Allocations
// trace which batches covered the dispensed quantity.
type PrescriptionDetail struct {
	ID            int64             `json:"id"`
	MedicineID    int64             `json:"medicine_id"`
	MedicineName  string            `json:"medicine_name,omitempty"`
	UsageMethodID int64             `json:"usage_method_id"`
	Quantity      int64             `json:"quantity"`
	Dosage        string            `json:"dosage,omitempty"`
	Allocations   []BatchAllocation `json:"allocations,omitempty"`
}

// BatchAllocation records how much of a line came out of one batch.
type BatchAllocation struct {
	BatchID  int64 `json:"batch_id"`
	Quantity int64 `json:"quantity"`
}

// MedicalRecord represents one consultation with its prescriptions.
type MedicalRecord struct {
	ID            int64                `json:"id"`
	PatientID     int64                `json:"patient_id"`
	PatientName   string               `json:"patient_name,omitempty"`
	DoctorID      int64                `json:"doctor_id"`
	DiseaseID     *int64               `json:"disease_id,omitempty"`
	Symptoms      string               `json:"symptoms,omitempty"`
	Diagnosis     string               `json:"diagnosis,omitempty"`
	RecordDate    time.Time            `json:"record_date"`
	Prescriptions []PrescriptionDetail `json:"prescriptions"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}
