package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Item is one vaccine batch on the shelf. ExpiryDate is YYYY-MM-DD.
type Item struct {
	ID           uuid.UUID `db:"id" json:"id"`
	VaccineName  string    `db:"vaccine_name" json:"vaccine_name"`
	Manufacturer string    `db:"manufacturer" json:"manufacturer"`
	BatchNumber  string    `db:"batch_number" json:"batch_number"`
	Quantity     int       `db:"quantity" json:"quantity"`
	ExpiryDate   *string   `db:"expiry_date" json:"expiry_date,omitempty"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Expired reports whether the batch expired before day.
func (i *Item) Expired(day time.Time) bool {
	if i.ExpiryDate == nil {
		return false
	}
	exp, err := time.Parse("2006-01-02", *i.ExpiryDate)
	if err != nil {
		return false
	}
	y, m, d := day.Date()
	return exp.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// Filter narrows item listings.
type Filter struct {
	// Search matches vaccine name, manufacturer or batch, case-insensitively.
	Search string
	// MaxQuantity, when set, keeps items at or below this stock level.
	MaxQuantity *int
}
