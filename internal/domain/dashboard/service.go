package dashboard

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaxclinic/vaxclinic/internal/config"
)

type Service struct {
	source Source
	clinic config.Clinic
	logger zerolog.Logger
}

func NewService(source Source, clinic config.Clinic, logger zerolog.Logger) *Service {
	return &Service{source: source, clinic: clinic, logger: logger.With().Str("component", "dashboard").Logger()}
}

// ComputeStats never fails. Every field is read on its own and falls back to
// zero or an empty list when its read fails.
func (s *Service) ComputeStats(ctx context.Context, asOf time.Time) Stats {
	stats := Stats{AsOf: asOf}

	n, err := s.source.CountAdministered(ctx)
	stats.TotalAdministered = s.orZero("total_administered", n, err)

	n, err = s.source.CountActiveDoctors(ctx)
	stats.ActiveDoctorCount = s.orZero("active_doctor_count", n, err)

	n, err = s.source.CountScheduledBetween(ctx, asOf, asOf.Add(s.clinic.UpcomingWindow))
	stats.UpcomingAppointmentCount = s.orZero("upcoming_appointment_count", n, err)

	stats.StockLevels = []StockLevel{}
	rows, err := s.source.StockRows(ctx)
	if err != nil {
		s.warn("stock_levels", err)
	} else {
		for _, r := range rows {
			lvl := s.level(r)
			if lvl.Band == BandRed {
				stats.StockAlertCount++
			}
			stats.StockLevels = append(stats.StockLevels, lvl)
		}
	}

	stats.RecentActivity = s.recentActivity(ctx)
	return stats
}

func (s *Service) level(r StockRow) StockLevel {
	pct := StockPercent(r.Quantity, s.clinic.StockCapacity)
	return StockLevel{
		ItemID:      r.ItemID,
		VaccineName: r.VaccineName,
		BatchNumber: r.BatchNumber,
		Quantity:    r.Quantity,
		Percent:     pct,
		Band:        BandFor(pct, s.clinic),
	}
}

func (s *Service) recentActivity(ctx context.Context) []Activity {
	limit := s.clinic.RecentActivityLimit
	out := []Activity{}

	vacc, err := s.source.RecentVaccinations(ctx, limit)
	if err != nil {
		s.warn("recent_activity.vaccinations", err)
	}
	out = append(out, vacc...)

	booked, err := s.source.RecentBookings(ctx, limit)
	if err != nil {
		s.warn("recent_activity.bookings", err)
	}
	out = append(out, booked...)

	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Service) orZero(field string, n int, err error) int {
	if err != nil {
		s.warn(field, err)
		return 0
	}
	return n
}

func (s *Service) warn(field string, err error) {
	s.logger.Warn().Err(err).Str("field", field).Msg("dashboard read failed, using fallback")
}

// StockPercent is quantity as a share of capacity, capped at 100.
func StockPercent(quantity, capacity int) float64 {
	if capacity <= 0 {
		capacity = config.DefaultStockCapacity
	}
	if quantity <= 0 {
		return 0
	}
	return math.Min(float64(quantity*100)/float64(capacity), 100)
}

// BandFor buckets a stock percentage into red, yellow or green.
func BandFor(percent float64, c config.Clinic) string {
	switch {
	case percent < c.StockRedBelow:
		return BandRed
	case percent < c.StockYellowBelow:
		return BandYellow
	default:
		return BandGreen
	}
}
