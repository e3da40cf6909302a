package immunization

import (
	"time"

	"github.com/google/uuid"
)

// Record is one administered dose.
type Record struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	VaccinatorID    uuid.UUID  `db:"vaccinator_id" json:"vaccinator_id"`
	InventoryItemID uuid.UUID  `db:"inventory_item_id" json:"inventory_item_id"`
	AppointmentID   *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	VaccineName     string     `db:"vaccine_name" json:"vaccine_name"`
	DoseNumber      int        `db:"dose_number" json:"dose_number"`
	LotNumber       *string    `db:"lot_number" json:"lot_number,omitempty"`
	Site            *string    `db:"site" json:"site,omitempty"`
	AdministeredAt  time.Time  `db:"administered_at" json:"administered_at"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// NewRecord is the input to Service.Record. Zero values of VaccineName,
// DoseNumber, LotNumber and AdministeredAt are filled in from the stock
// item, the clinic defaults and the clock.
type NewRecord struct {
	PatientID       uuid.UUID
	VaccinatorID    uuid.UUID
	InventoryItemID uuid.UUID
	AppointmentID   *uuid.UUID
	VaccineName     string
	DoseNumber      int
	LotNumber       *string
	Site            *string
	AdministeredAt  time.Time
	Notes           *string
}

type ListFilter struct {
	PatientID    *uuid.UUID
	VaccinatorID *uuid.UUID
	From         *time.Time
	To           *time.Time
}
