// README: Fleet service tests against a real database (FLEETOPS_TEST_DSN).
package fleet

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"fleetops/internal/events"
	"fleetops/internal/modules/audit"
	"fleetops/internal/types"
)

func setupService(t *testing.T) *Service {
	t.Helper()

	dsn := os.Getenv("FLEETOPS_TEST_DSN")
	if dsn == "" {
		t.Skip("FLEETOPS_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := applyInitMigration(ctx, pool); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE TABLE audit_entries, fuel_expenses, maintenance_logs, trips, drivers, vehicles CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	rec := audit.NewRecorder(audit.NewStore(pool), zerolog.Nop())
	return NewService(NewStore(pool), rec, events.Discard{}, zerolog.Nop())
}

func TestSetVehicleStatusToggles(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	v, err := svc.CreateVehicle(ctx, CreateVehicleCommand{Name: "box van", LicensePlate: "TOGGLE-01"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.SetVehicleStatus(ctx, v.ID, VehicleOutOfService, "tester")
	if err != nil {
		t.Fatalf("take out of service: %v", err)
	}
	if got.Status != VehicleOutOfService {
		t.Fatalf("status = %s, want %s", got.Status, VehicleOutOfService)
	}

	got, err = svc.SetVehicleStatus(ctx, v.ID, VehicleAvailable, "tester")
	if err != nil {
		t.Fatalf("return to service: %v", err)
	}
	if got.Status != VehicleAvailable {
		t.Fatalf("status = %s, want %s", got.Status, VehicleAvailable)
	}

	got, err = svc.SetVehicleStatus(ctx, v.ID, VehicleRetired, "tester")
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if got.Status != VehicleRetired {
		t.Fatalf("status = %s, want %s", got.Status, VehicleRetired)
	}
	// Retirement is final.
	if _, err := svc.SetVehicleStatus(ctx, v.ID, VehicleAvailable, "tester"); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("unretire: expected ErrStatusConflict, got %v", err)
	}
}

func TestSetVehicleStatusRejectsAllocatorStatuses(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	v, err := svc.CreateVehicle(ctx, CreateVehicleCommand{Name: "box van", LicensePlate: "TOGGLE-02"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, to := range []VehicleStatus{VehicleOnTrip, VehicleInShop} {
		if _, err := svc.SetVehicleStatus(ctx, v.ID, to, "tester"); !errors.Is(err, ErrBadRequest) {
			t.Fatalf("set %s: expected ErrBadRequest, got %v", to, err)
		}
	}

	// A busy vehicle cannot be toggled out from under its trip.
	if err := svc.Store().TransitionVehicleStatus(ctx, v.ID, VehicleOnTrip, VehicleAvailable); err != nil {
		t.Fatalf("seize: %v", err)
	}
	if _, err := svc.SetVehicleStatus(ctx, v.ID, VehicleOutOfService, "tester"); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("toggle on-trip vehicle: expected ErrStatusConflict, got %v", err)
	}
}

func TestSetDriverStatusToggles(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	d, err := svc.CreateDriver(ctx, CreateDriverCommand{
		Name:          "toggle driver",
		LicenseNumber: "LIC-TOGGLE-01",
		LicenseExpiry: time.Now().AddDate(1, 0, 0),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.SetDriverStatus(ctx, d.ID, DriverSuspended, "tester")
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if got.Status != DriverSuspended {
		t.Fatalf("status = %s, want %s", got.Status, DriverSuspended)
	}

	got, err = svc.SetDriverStatus(ctx, d.ID, DriverOffDuty, "tester")
	if err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	if got.Status != DriverOffDuty {
		t.Fatalf("status = %s, want %s", got.Status, DriverOffDuty)
	}

	// on_duty is set only by dispatch.
	if _, err := svc.SetDriverStatus(ctx, d.ID, DriverOnDuty, "tester"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("set on_duty: expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.SetDriverStatus(ctx, types.NewID(), DriverSuspended, "tester"); !errors.Is(err, ErrDriverNotFound) {
		t.Fatalf("unknown driver: expected ErrDriverNotFound, got %v", err)
	}
}

func TestSetDriverStatusRejectsBusyDriver(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	d, err := svc.CreateDriver(ctx, CreateDriverCommand{
		Name:          "busy driver",
		LicenseNumber: "LIC-TOGGLE-02",
		LicenseExpiry: time.Now().AddDate(1, 0, 0),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Store().TransitionDriverStatus(ctx, d.ID, DriverOnDuty, nil, DriverOffDuty); err != nil {
		t.Fatalf("put on duty: %v", err)
	}

	if _, err := svc.SetDriverStatus(ctx, d.ID, DriverSuspended, "tester"); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("suspend on-duty driver: expected ErrStatusConflict, got %v", err)
	}
}
