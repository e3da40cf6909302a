package config

import "time"

// Business defaults. Every optional-field fallback the services apply lives
// here so there is exactly one place to change them.
const (
	DefaultStockCapacity       = 100
	DefaultStockRedBelow       = 30
	DefaultStockYellowBelow    = 60
	DefaultUpcomingWindow      = 7 * 24 * time.Hour
	DefaultRecentActivityLimit = 10
	DefaultDepartment          = "Immunization"
	DefaultVaccinatorRole      = "doctor"
	DefaultDoseNumber          = 1
	DefaultExportMaxRows       = 10000
)

// Clinic carries the business defaults handed to services at startup.
type Clinic struct {
	StockCapacity       int
	StockRedBelow       float64
	StockYellowBelow    float64
	UpcomingWindow      time.Duration
	RecentActivityLimit int
	Department          string
	VaccinatorRole      string
	DoseNumber          int
	ExportMaxRows       int
}

// DefaultClinic returns the clinic defaults.
func DefaultClinic() Clinic {
	return Clinic{
		StockCapacity:       DefaultStockCapacity,
		StockRedBelow:       DefaultStockRedBelow,
		StockYellowBelow:    DefaultStockYellowBelow,
		UpcomingWindow:      DefaultUpcomingWindow,
		RecentActivityLimit: DefaultRecentActivityLimit,
		Department:          DefaultDepartment,
		VaccinatorRole:      DefaultVaccinatorRole,
		DoseNumber:          DefaultDoseNumber,
		ExportMaxRows:       DefaultExportMaxRows,
	}
}
