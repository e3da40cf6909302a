package scheduling

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Appointment books one template slot with one vaccinator. Date is a
// calendar date (YYYY-MM-DD) and Slot a template time (HH:MM).
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	VaccinatorID    uuid.UUID  `db:"vaccinator_id" json:"vaccinator_id"`
	InventoryItemID *uuid.UUID `db:"inventory_item_id" json:"inventory_item_id,omitempty"`
	Date            string     `db:"date" json:"date"`
	Slot            string     `db:"slot" json:"slot"`
	Status          string     `db:"status" json:"status"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CancelReason    *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// NewAppointment is the validated input of Create.
type NewAppointment struct {
	PatientID       uuid.UUID
	VaccinatorID    uuid.UUID
	InventoryItemID *uuid.UUID
	Date            time.Time
	Slot            string
	Notes           *string
}

// ListFilter narrows appointment listings. Zero values match all.
type ListFilter struct {
	PatientID    *uuid.UUID
	VaccinatorID *uuid.UUID
	Status       string
	From         *time.Time
	To           *time.Time
}

// Availability is the free-slot answer for one vaccinator and day.
type Availability struct {
	VaccinatorID uuid.UUID `json:"vaccinator_id"`
	Date         string    `json:"date"`
	Slots        []string  `json:"slots"`
}
