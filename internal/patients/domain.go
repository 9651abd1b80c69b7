package patients

import "time"

// Patient represents a registered clinic patient.
type Patient struct {
	ID          int64      `json:"id"`
	FullName    string     `json:"full_name"`
	Gender      string     `json:"gender,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Address     string     `json:"address,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
