package medicines

import "time"

// Medicine represents a sellable drug. TotalQuantity is derived from batch
// stock and is never written through this package.
type Medicine struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	UnitID        int64     `json:"unit_id"`
	UnitName      string    `json:"unit_name,omitempty"`
	Description   string    `json:"description,omitempty"`
	IsActive      bool      `json:"is_active"`
	TotalQuantity int64     `json:"total_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
