package dashboard

import (
	"context"
	"time"
)

// Source answers the independent reads the dashboard is built from.
type Source interface {
	CountAdministered(ctx context.Context) (int, error)
	CountActiveDoctors(ctx context.Context) (int, error)
	// CountScheduledBetween counts scheduled appointments whose slot starts
	// in [from, to).
	CountScheduledBetween(ctx context.Context, from, to time.Time) (int, error)
	StockRows(ctx context.Context) ([]StockRow, error)
	RecentVaccinations(ctx context.Context, limit int) ([]Activity, error)
	RecentBookings(ctx context.Context, limit int) ([]Activity, error)
}
