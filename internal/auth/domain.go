package auth

import "time"

// User represents an authenticated staff account.
type User struct {
	ID           int64
	Username     string
	FullName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
