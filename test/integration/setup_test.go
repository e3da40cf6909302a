// Package integration runs the Postgres repositories against a real server.
// Set TEST_DATABASE_URL to use an existing database; otherwise a
// postgres:16-alpine container is started with Docker. Without either the
// tests are skipped.
package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/vaxclinic/vaxclinic/internal/config"
	"github.com/vaxclinic/vaxclinic/internal/domain/identity"
	"github.com/vaxclinic/vaxclinic/internal/domain/inventory"
	"github.com/vaxclinic/vaxclinic/internal/platform/db"
	"github.com/vaxclinic/vaxclinic/migrations"
)

type testDB struct {
	Pool    *pgxpool.Pool
	ConnStr string
}

var (
	globalDB *testDB
	setupErr error
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupPostgres(ctx)
	if err != nil {
		setupErr = err
		fmt.Fprintf(os.Stderr, "integration: no database, tests will be skipped: %v\n", err)
		os.Exit(m.Run())
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupPostgres(ctx context.Context) (*testDB, func(), error) {
	connStr := os.Getenv("TEST_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("start postgres container: %w", err)
		}
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		cleanup()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return &testDB{Pool: pool, ConnStr: connStr}, func() {
		pool.Close()
		cleanup()
	}, nil
}

// newSchemaPool creates a private schema, migrates it with the embedded
// migrations and returns a pool whose connections only see that schema.
// The schema is dropped when the test ends.
func newSchemaPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if setupErr != nil {
		t.Skipf("integration database unavailable: %v", setupErr)
	}
	ctx := context.Background()

	schema := "it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if _, err := globalDB.Pool.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema %s: %v", schema, err)
	}

	cfg, err := pgxpool.ParseConfig(globalDB.ConnStr)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 8
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("schema pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if _, err := globalDB.Pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("warning: drop schema %s: %v", schema, err)
		}
	})

	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx); err != nil {
		t.Fatalf("migrate %s: %v", schema, err)
	}
	return pool
}

// newIdentityService wires the identity lookups scheduling and immunization
// depend on. Sign-up is not used, so there is no auth provider.
func newIdentityService(pool *pgxpool.Pool) *identity.Service {
	return identity.NewService(
		identity.NewPatientRepo(pool),
		identity.NewVaccinatorRepo(pool),
		identity.NewAccountRepo(pool),
		nil,
		db.NewTxRunner(pool),
		config.DefaultClinic(),
		zerolog.Nop(),
	)
}

func createTestPatient(t *testing.T, ctx context.Context, pool *pgxpool.Pool, first, last string) *identity.Patient {
	t.Helper()
	p := &identity.Patient{
		IdentityID: uuid.NewString(),
		FirstName:  first,
		LastName:   last,
		Email:      strings.ToLower(first) + "@example.com",
		Phone:      "+15550100",
	}
	if err := identity.NewPatientRepo(pool).Create(ctx, p); err != nil {
		t.Fatalf("create test patient: %v", err)
	}
	return p
}

func createTestVaccinator(t *testing.T, ctx context.Context, pool *pgxpool.Pool, name, role, status string) *identity.Vaccinator {
	t.Helper()
	v := &identity.Vaccinator{
		IdentityID:    uuid.NewString(),
		Name:          name,
		LicenseNumber: "LIC-" + uuid.NewString()[:8],
		Department:    config.DefaultDepartment,
		Role:          role,
		Status:        status,
		Email:         strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@clinic.example",
	}
	if err := identity.NewVaccinatorRepo(pool).Create(ctx, v); err != nil {
		t.Fatalf("create test vaccinator: %v", err)
	}
	return v
}

func createTestItem(t *testing.T, ctx context.Context, pool *pgxpool.Pool, vaccine string, quantity int) *inventory.Item {
	t.Helper()
	item := &inventory.Item{
		VaccineName:  vaccine,
		Manufacturer: "Test Pharma",
		BatchNumber:  vaccine + "-" + uuid.NewString()[:6],
		Quantity:     quantity,
	}
	if err := inventory.NewRepo(pool).Create(ctx, item); err != nil {
		t.Fatalf("create test item: %v", err)
	}
	return item
}

// futureDay is a calendar day far enough ahead that no template slot has
// started.
func futureDay(days int) time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

func ptrStr(s string) *string { return &s }

func ptrUUID(u uuid.UUID) *uuid.UUID { return &u }
