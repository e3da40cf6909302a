package dashboard

import (
	"time"

	"github.com/google/uuid"
)

// Stock colour bands.
const (
	BandRed    = "red"
	BandYellow = "yellow"
	BandGreen  = "green"
)

// Activity kinds.
const (
	ActivityVaccination = "vaccination"
	ActivityBooking     = "booking"
)

type Stats struct {
	AsOf                     time.Time    `json:"as_of"`
	TotalAdministered        int          `json:"total_administered"`
	ActiveDoctorCount        int          `json:"active_doctor_count"`
	UpcomingAppointmentCount int          `json:"upcoming_appointment_count"`
	StockAlertCount          int          `json:"stock_alert_count"`
	StockLevels              []StockLevel `json:"stock_levels"`
	RecentActivity           []Activity   `json:"recent_activity"`
}

type StockLevel struct {
	ItemID      uuid.UUID `json:"item_id"`
	VaccineName string    `json:"vaccine_name"`
	BatchNumber string    `json:"batch_number"`
	Quantity    int       `json:"quantity"`
	Percent     float64   `json:"percent"`
	Band        string    `json:"band"`
}

// StockRow is a raw inventory reading before it is scored.
type StockRow struct {
	ItemID      uuid.UUID
	VaccineName string
	BatchNumber string
	Quantity    int
}

type Activity struct {
	Kind        string    `json:"kind"`
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Summary     string    `json:"summary"`
	OccurredAt  time.Time `json:"occurred_at"`
}
