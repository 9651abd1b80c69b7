package appointments

import "time"

// Appointment statuses.
const (
	StatusWaiting  = "waiting"
	StatusExamined = "examined"
	StatusCanceled = "canceled"
)

// Appointment represents one entry in the daily examination queue.
type Appointment struct {
	ID              int64     `json:"id"`
	PatientID       int64     `json:"patient_id"`
	PatientName     string    `json:"patient_name,omitempty"`
	AppointmentDate time.Time `json:"appointment_date"`
	OrderNumber     int       `json:"order_number"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
