// README: Trip lifecycle tests against a real database (FLEETOPS_TEST_DSN).
package trip

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"fleetops/internal/events"
	"fleetops/internal/infra"
	"fleetops/internal/modules/audit"
	"fleetops/internal/modules/expense"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/types"
)

// captureBus records published events so tests can assert on fan-out.
type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Publish(e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *captureBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Name)
	}
	return out
}

func (b *captureBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type harness struct {
	svc      *Service
	fleet    *fleet.Store
	expenses *expense.Store
	audits   *audit.Store
	bus      *captureBus
	pool     *pgxpool.Pool
}

func setupTest(t *testing.T) *harness {
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

	if err := applyMigrations(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE TABLE audit_entries, fuel_expenses, maintenance_logs, trips, drivers, vehicles CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	auditStore := audit.NewStore(pool)
	recorder := audit.NewRecorder(auditStore, zerolog.Nop())
	fleetStore := fleet.NewStore(pool)
	expenseStore := expense.NewStore(pool)
	uow := infra.NewUnitOfWork(pool)
	refs := NewRefCodeSource(nil, zerolog.Nop())

	bus := &captureBus{}
	svc := NewService(NewStore(pool), fleetStore, expenseStore, uow, refs, recorder, bus, zerolog.Nop())
	return &harness{svc: svc, fleet: fleetStore, expenses: expenseStore, audits: auditStore, bus: bus, pool: pool}
}

func (h *harness) mustVehicle(t *testing.T, plate string, maxLoad float64) *fleet.Vehicle {
	t.Helper()
	v := &fleet.Vehicle{
		ID:           types.NewID(),
		Name:         "test vehicle " + plate,
		Type:         fleet.TypeTruck,
		LicensePlate: plate,
		MaxLoadKg:    maxLoad,
		OdometerKm:   1000,
		Status:       fleet.VehicleAvailable,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.fleet.CreateVehicle(context.Background(), v); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	return v
}

func (h *harness) mustDriver(t *testing.T, license string) *fleet.Driver {
	t.Helper()
	d := &fleet.Driver{
		ID:            types.NewID(),
		Name:          "test driver " + license,
		LicenseNumber: license,
		LicenseExpiry: time.Now().AddDate(1, 0, 0),
		Categories:    []fleet.VehicleType{fleet.TypeTruck},
		Status:        fleet.DriverOffDuty,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.fleet.CreateDriver(context.Background(), d); err != nil {
		t.Fatalf("create driver: %v", err)
	}
	return d
}

func (h *harness) mustTrip(t *testing.T, v *fleet.Vehicle, d *fleet.Driver) *Trip {
	t.Helper()
	tr, err := h.svc.Create(context.Background(), CreateCommand{
		Origin:        types.Place{Address: "Warehouse A"},
		Destination:   types.Place{Address: "Depot B"},
		CargoWeightKg: 500,
		VehicleID:     v.ID,
		DriverID:      d.ID,
		ActorID:       "tester",
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return tr
}

func (h *harness) assertVehicleStatus(t *testing.T, id types.ID, want fleet.VehicleStatus) {
	t.Helper()
	v, err := h.fleet.GetVehicle(context.Background(), id)
	if err != nil {
		t.Fatalf("get vehicle: %v", err)
	}
	if v.Status != want {
		t.Fatalf("vehicle status = %s, want %s", v.Status, want)
	}
}

func (h *harness) assertDriverStatus(t *testing.T, id types.ID, want fleet.DriverStatus) {
	t.Helper()
	d, err := h.fleet.GetDriver(context.Background(), id)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	if d.Status != want {
		t.Fatalf("driver status = %s, want %s", d.Status, want)
	}
}

func TestTripHappyPath(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()

	v := h.mustVehicle(t, "HAPPY-01", 1000)
	d := h.mustDriver(t, "LIC-HAPPY-01")
	tr := h.mustTrip(t, v, d)

	if tr.Status != StatusDraft {
		t.Fatalf("new trip status = %s, want %s", tr.Status, StatusDraft)
	}
	if !strings.HasPrefix(tr.RefCode, "TRP-") {
		t.Fatalf("unexpected ref code %q", tr.RefCode)
	}
	// Drafts hold nothing.
	h.assertVehicleStatus(t, v.ID, fleet.VehicleAvailable)

	tr, err := h.svc.Dispatch(ctx, tr.ID, "tester")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if tr.Status != StatusDispatched || tr.DispatchedAt == nil {
		t.Fatalf("dispatch did not move trip: %+v", tr)
	}
	if tr.StartOdometer != 1000 {
		t.Fatalf("start odometer = %v, want 1000", tr.StartOdometer)
	}
	h.assertVehicleStatus(t, v.ID, fleet.VehicleOnTrip)
	h.assertDriverStatus(t, d.ID, fleet.DriverOnDuty)

	got, err := h.fleet.GetDriver(ctx, d.ID)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	if got.AssignedVehicle == nil || *got.AssignedVehicle != v.ID {
		t.Fatalf("driver back-reference not set: %+v", got.AssignedVehicle)
	}

	liters := 40.0
	tr, err = h.svc.Complete(ctx, CompleteCommand{
		TripID:      tr.ID,
		EndOdometer: 1250,
		Revenue:     900,
		Notes:       "smooth run",
		FuelLiters:  &liters,
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if tr.Status != StatusCompleted || tr.CompletedAt == nil {
		t.Fatalf("complete did not move trip: %+v", tr)
	}
	if tr.EndOdometer == nil || *tr.EndOdometer != 1250 {
		t.Fatalf("end odometer not recorded: %+v", tr.EndOdometer)
	}

	h.assertVehicleStatus(t, v.ID, fleet.VehicleAvailable)
	h.assertDriverStatus(t, d.ID, fleet.DriverOffDuty)

	vAfter, err := h.fleet.GetVehicle(ctx, v.ID)
	if err != nil {
		t.Fatalf("get vehicle: %v", err)
	}
	if vAfter.OdometerKm != 1250 {
		t.Fatalf("vehicle odometer = %v, want 1250", vAfter.OdometerKm)
	}

	// Fuel spent during the trip landed as a linked expense.
	exps, err := h.expenses.List(ctx, expense.Filter{TripID: tr.ID})
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(exps) != 1 || exps[0].Liters != 40 {
		t.Fatalf("expected one 40L expense, got %+v", exps)
	}
}

func TestTripEligibilityRejection(t *testing.T) {
	h := setupTest(t)

	v := h.mustVehicle(t, "SMALL-01", 100)
	d := h.mustDriver(t, "LIC-SMALL-01")

	_, err := h.svc.Create(context.Background(), CreateCommand{
		Origin:        types.Place{Address: "A"},
		Destination:   types.Place{Address: "B"},
		CargoWeightKg: 500,
		VehicleID:     v.ID,
		DriverID:      d.ID,
	})
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	if rej.Rule != RuleCapacity {
		t.Fatalf("rule = %s, want %s", rej.Rule, RuleCapacity)
	}
}

func TestTripCancelDraft(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()

	v := h.mustVehicle(t, "CANCEL-01", 1000)
	d := h.mustDriver(t, "LIC-CANCEL-01")
	tr := h.mustTrip(t, v, d)

	tr, err := h.svc.Cancel(ctx, tr.ID, "customer withdrew", "tester")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if tr.Status != StatusCancelled || tr.CancelledAt == nil {
		t.Fatalf("cancel did not move trip: %+v", tr)
	}
	// Nothing was held, nothing changes.
	h.assertVehicleStatus(t, v.ID, fleet.VehicleAvailable)
	h.assertDriverStatus(t, d.ID, fleet.DriverOffDuty)
}

func TestTripCancelDispatchedReleasesResources(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()

	v := h.mustVehicle(t, "CANCEL-02", 1000)
	d := h.mustDriver(t, "LIC-CANCEL-02")
	tr := h.mustTrip(t, v, d)

	if _, err := h.svc.Dispatch(ctx, tr.ID, "tester"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	h.assertVehicleStatus(t, v.ID, fleet.VehicleOnTrip)

	if _, err := h.svc.Cancel(ctx, tr.ID, "road closed", "tester"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	h.assertVehicleStatus(t, v.ID, fleet.VehicleAvailable)
	h.assertDriverStatus(t, d.ID, fleet.DriverOffDuty)

	vAfter, err := h.fleet.GetVehicle(ctx, v.ID)
	if err != nil {
		t.Fatalf("get vehicle: %v", err)
	}
	if vAfter.OdometerKm != 1000 {
		t.Fatalf("cancel must not touch the odometer, got %v", vAfter.OdometerKm)
	}
}

func TestTripTerminalStatesAreImmutable(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()

	v := h.mustVehicle(t, "TERM-01", 1000)
	d := h.mustDriver(t, "LIC-TERM-01")
	tr := h.mustTrip(t, v, d)

	if _, err := h.svc.Cancel(ctx, tr.ID, "", "tester"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := h.svc.Dispatch(ctx, tr.ID, "tester"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("dispatch cancelled: expected ErrInvalidState, got %v", err)
	}
	if _, err := h.svc.Complete(ctx, CompleteCommand{TripID: tr.ID, EndOdometer: 1100}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("complete cancelled: expected ErrInvalidState, got %v", err)
	}
	if _, err := h.svc.Cancel(ctx, tr.ID, "", "tester"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("cancel cancelled: expected ErrInvalidState, got %v", err)
	}
}

func TestTripCompleteRequiresDispatch(t *testing.T) {
	h := setupTest(t)

	v := h.mustVehicle(t, "NODISP-01", 1000)
	d := h.mustDriver(t, "LIC-NODISP-01")
	tr := h.mustTrip(t, v, d)

	_, err := h.svc.Complete(context.Background(), CompleteCommand{TripID: tr.ID, EndOdometer: 1100})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestTripCompleteRejectsBackwardOdometer(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()

	v := h.mustVehicle(t, "ODO-01", 1000)
	d := h.mustDriver(t, "LIC-ODO-01")
	tr := h.mustTrip(t, v, d)

	if _, err := h.svc.Dispatch(ctx, tr.ID, "tester"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	_, err := h.svc.Complete(ctx, CompleteCommand{TripID: tr.ID, EndOdometer: 900})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	// The failed completion must leave everything held.
	h.assertVehicleStatus(t, v.ID, fleet.VehicleOnTrip)
}

// Two trips on the same vehicle: only one dispatch may win.
func TestTripDoubleDispatchRace(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()

	v := h.mustVehicle(t, "RACE-01", 1000)
	d1 := h.mustDriver(t, "LIC-RACE-01")
	d2 := h.mustDriver(t, "LIC-RACE-02")
	t1 := h.mustTrip(t, v, d1)
	t2 := h.mustTrip(t, v, d2)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	start := make(chan struct{})
	for _, id := range []types.ID{t1.ID, t2.ID} {
		wg.Add(1)
		go func(id types.ID) {
			defer wg.Done()
			<-start
			_, err := h.svc.Dispatch(ctx, id, "tester")
			errs <- err
		}(id)
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		var rej *RejectionError
		switch {
		case errors.As(err, &rej):
		case errors.Is(err, fleet.ErrStatusConflict):
		case errors.Is(err, infra.ErrTxConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful dispatch, got %d", success)
	}
	h.assertVehicleStatus(t, v.ID, fleet.VehicleOnTrip)
}

// A failed dispatch must not leave a half-seized vehicle behind.
func TestTripDispatchAtomicity(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()

	v := h.mustVehicle(t, "ATOM-01", 1000)
	d := h.mustDriver(t, "LIC-ATOM-01")
	tr := h.mustTrip(t, v, d)

	// Suspend the driver between create and dispatch.
	if err := h.fleet.TransitionDriverStatus(ctx, d.ID, fleet.DriverSuspended, nil, fleet.DriverOffDuty); err != nil {
		t.Fatalf("suspend driver: %v", err)
	}

	_, err := h.svc.Dispatch(ctx, tr.ID, "tester")
	var rej *RejectionError
	if !errors.As(err, &rej) || rej.Rule != RuleDriverSuspended {
		t.Fatalf("expected suspended rejection, got %v", err)
	}

	h.assertVehicleStatus(t, v.ID, fleet.VehicleAvailable)
	got, err := h.svc.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if got.Status != StatusDraft {
		t.Fatalf("trip status = %s, want %s", got.Status, StatusDraft)
	}
}

func TestTripListFilters(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()

	v := h.mustVehicle(t, "LIST-01", 1000)
	d := h.mustDriver(t, "LIC-LIST-01")
	t1 := h.mustTrip(t, v, d)
	h.mustTrip(t, v, d)

	if _, err := h.svc.Dispatch(ctx, t1.ID, "tester"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	trips, total, err := h.svc.List(ctx, Filter{Status: StatusDraft})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(trips) != 1 {
		t.Fatalf("draft filter: total=%d len=%d, want 1/1", total, len(trips))
	}

	trips, total, err = h.svc.List(ctx, Filter{VehicleID: v.ID, Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(trips) != 1 {
		t.Fatalf("paginated vehicle filter: total=%d len=%d, want 2/1", total, len(trips))
	}
}

func TestTripAuditTrail(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()

	v := h.mustVehicle(t, "AUDIT-01", 1000)
	d := h.mustDriver(t, "LIC-AUDIT-01")
	tr := h.mustTrip(t, v, d)
	if _, err := h.svc.Dispatch(ctx, tr.ID, "operator-7"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	entries, err := h.audits.List(ctx, audit.Filter{Entity: "trip", EntityID: tr.ID.String()})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Action != audit.ActionTripDispatched || entries[0].ActorID != "operator-7" {
		t.Fatalf("unexpected head entry: %+v", entries[0])
	}
}

func TestTripLifecyclePublishesResourceEvents(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()

	v := h.mustVehicle(t, "EVT-01", 1000)
	d := h.mustDriver(t, "LIC-EVT-01")
	tr := h.mustTrip(t, v, d)

	h.bus.reset()
	if _, err := h.svc.Dispatch(ctx, tr.ID, "tester"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	// Dispatch seizes the vehicle and driver, so clients watching those
	// entities need their own update events alongside the trip event.
	assertEventNames(t, h.bus.names(), events.TripDispatched, events.VehicleUpdated, events.DriverUpdated)

	h.bus.reset()
	if _, err := h.svc.Complete(ctx, CompleteCommand{TripID: tr.ID, EndOdometer: 1100, ActorID: "tester"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	assertEventNames(t, h.bus.names(), events.TripCompleted, events.VehicleUpdated, events.DriverUpdated)
}

func TestTripCancelPublishesTripEventOnly(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()

	v := h.mustVehicle(t, "EVT-02", 1000)
	d := h.mustDriver(t, "LIC-EVT-02")
	tr := h.mustTrip(t, v, d)

	h.bus.reset()
	if _, err := h.svc.Cancel(ctx, tr.ID, "customer withdrew", "tester"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got := h.bus.names()
	if len(got) != 1 || got[0] != events.TripCancelled {
		t.Fatalf("cancel events = %v, want [%s]", got, events.TripCancelled)
	}
}

func assertEventNames(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("published %v, want %v", got, want)
		}
	}
}

func TestTripCreateAcceptsZeroCargo(t *testing.T) {
	h := setupTest(t)

	v := h.mustVehicle(t, "ZERO-01", 1000)
	d := h.mustDriver(t, "LIC-ZERO-01")

	// An empty repositioning run is a legal trip.
	tr, err := h.svc.Create(context.Background(), CreateCommand{
		Origin:        types.Place{Address: "Depot B"},
		Destination:   types.Place{Address: "Warehouse A"},
		CargoWeightKg: 0,
		VehicleID:     v.ID,
		DriverID:      d.ID,
		ActorID:       "tester",
	})
	if err != nil {
		t.Fatalf("create zero-cargo trip: %v", err)
	}
	if tr.CargoWeightKg != 0 {
		t.Fatalf("cargo weight = %v, want 0", tr.CargoWeightKg)
	}

	_, err = h.svc.Create(context.Background(), CreateCommand{
		Origin:        types.Place{Address: "A"},
		Destination:   types.Place{Address: "B"},
		CargoWeightKg: -1,
		VehicleID:     v.ID,
		DriverID:      d.ID,
	})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("negative cargo: expected ErrBadRequest, got %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, defaultPageSize},
		{-5, defaultPageSize},
		{7, 7},
		{maxPageSize, maxPageSize},
		{maxPageSize + 300, maxPageSize},
	}
	for _, tc := range cases {
		if got := clampLimit(tc.in); got != tc.want {
			t.Fatalf("clampLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	for _, name := range []string{"0001_init.sql"} {
		content, err := os.ReadFile(filepath.Join(root, "migrations", name))
		if err != nil {
			return err
		}
		for _, stmt := range splitSQL(stripSQLComments(string(content))) {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
