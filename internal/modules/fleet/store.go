// README: Vehicle/Driver store backed by PostgreSQL; guarded status transitions.
package fleet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fleetops/internal/infra"
	"fleetops/internal/types"
)

var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrDriverNotFound  = errors.New("driver not found")
	ErrDuplicatePlate  = errors.New("license plate already registered")
	ErrDuplicateLicense = errors.New("license number already registered")
	// ErrStatusConflict means a guarded transition matched no row: the entity
	// exists but its current status does not permit the change.
	ErrStatusConflict = errors.New("status conflict")
)

type Store struct {
	q infra.Querier
}

func NewStore(q infra.Querier) *Store {
	return &Store{q: q}
}

// WithTx returns a view of the store bound to an open transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{q: tx}
}

const vehicleCols = `id, name, model, type, license_plate, max_load_kg, odometer_km, status, acquisition_cost, created_at, updated_at`

func (s *Store) CreateVehicle(ctx context.Context, v *Vehicle) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO vehicles (id, name, model, type, license_plate, max_load_kg, odometer_km, status, acquisition_cost, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		v.ID.String(), v.Name, v.Model, string(v.Type), v.LicensePlate,
		v.MaxLoadKg, v.OdometerKm, string(v.Status), v.AcquisitionCost, v.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicatePlate
	}
	return err
}

func (s *Store) GetVehicle(ctx context.Context, id types.ID) (*Vehicle, error) {
	row := s.q.QueryRow(ctx, `SELECT `+vehicleCols+` FROM vehicles WHERE id = $1`, id.String())
	return scanVehicle(row)
}

func (s *Store) ListVehicles(ctx context.Context, status VehicleStatus) ([]*Vehicle, error) {
	q := `SELECT ` + vehicleCols + ` FROM vehicles`
	args := []any{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateVehicleMeta updates descriptive fields only. Status and odometer have
// dedicated, guarded paths.
func (s *Store) UpdateVehicleMeta(ctx context.Context, id types.ID, name, model string, acquisitionCost float64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE vehicles SET name = $2, model = $3, acquisition_cost = $4, updated_at = NOW()
		WHERE id = $1`,
		id.String(), name, model, acquisitionCost,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

// CorrectOdometer overwrites the odometer outside of trip flows. The caller
// records an audit entry; this is the only path that may move it backwards.
func (s *Store) CorrectOdometer(ctx context.Context, id types.ID, odometerKm float64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE vehicles SET odometer_km = $2, updated_at = NOW() WHERE id = $1`,
		id.String(), odometerKm,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

// TransitionVehicleStatus moves a vehicle to the target status only if its
// current status is one of from. A miss on a live row is a status conflict.
func (s *Store) TransitionVehicleStatus(ctx context.Context, id types.ID, to VehicleStatus, from ...VehicleStatus) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE vehicles SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)`,
		id.String(), string(to), statusStrings(from),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.vehicleTransitionMiss(ctx, id)
	}
	return nil
}

// SetVehicleOdometerAndStatus advances the odometer and status together, as
// trip completion does. The odometer can only move forward on this path.
func (s *Store) SetVehicleOdometerAndStatus(ctx context.Context, id types.ID, odometerKm float64, to VehicleStatus, from ...VehicleStatus) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE vehicles SET odometer_km = $2, status = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($4) AND odometer_km <= $2`,
		id.String(), odometerKm, string(to), statusStrings(from),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.vehicleTransitionMiss(ctx, id)
	}
	return nil
}

func (s *Store) vehicleTransitionMiss(ctx context.Context, id types.ID) error {
	var status string
	err := s.q.QueryRow(ctx, `SELECT status FROM vehicles WHERE id = $1`, id.String()).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVehicleNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: vehicle is %q", ErrStatusConflict, status)
}

const driverCols = `id, name, license_number, license_expiry, categories, status, assigned_vehicle, created_at, updated_at`

func (s *Store) CreateDriver(ctx context.Context, d *Driver) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO drivers (id, name, license_number, license_expiry, categories, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		d.ID.String(), d.Name, d.LicenseNumber, d.LicenseExpiry,
		categoryStrings(d.Categories), string(d.Status), d.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateLicense
	}
	return err
}

func (s *Store) GetDriver(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.q.QueryRow(ctx, `SELECT `+driverCols+` FROM drivers WHERE id = $1`, id.String())
	return scanDriver(row)
}

func (s *Store) ListDrivers(ctx context.Context, status DriverStatus) ([]*Driver, error) {
	q := `SELECT ` + driverCols + ` FROM drivers`
	args := []any{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TransitionDriverStatus moves a driver to the target status and sets or
// clears the vehicle back-reference in the same statement. assignedVehicle nil
// clears the reference.
func (s *Store) TransitionDriverStatus(ctx context.Context, id types.ID, to DriverStatus, assignedVehicle *types.ID, from ...DriverStatus) error {
	var vehicle *string
	if assignedVehicle != nil {
		v := assignedVehicle.String()
		vehicle = &v
	}
	tag, err := s.q.Exec(ctx, `
		UPDATE drivers SET status = $2, assigned_vehicle = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)`,
		id.String(), string(to), vehicle, driverStatusStrings(from),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := s.q.QueryRow(ctx, `SELECT status FROM drivers WHERE id = $1`, id.String()).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDriverNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: driver is %q", ErrStatusConflict, status)
	}
	return nil
}

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	var v Vehicle
	var id, typ, status string
	err := row.Scan(&id, &v.Name, &v.Model, &typ, &v.LicensePlate,
		&v.MaxLoadKg, &v.OdometerKm, &status, &v.AcquisitionCost, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVehicleNotFound
	}
	if err != nil {
		return nil, err
	}
	v.ID = types.ID(id)
	v.Type = VehicleType(typ)
	v.Status = VehicleStatus(status)
	return &v, nil
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var id, status string
	var categories []string
	var assigned *string
	err := row.Scan(&id, &d.Name, &d.LicenseNumber, &d.LicenseExpiry,
		&categories, &status, &assigned, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, err
	}
	d.ID = types.ID(id)
	d.Status = DriverStatus(status)
	d.Categories = make([]VehicleType, 0, len(categories))
	for _, c := range categories {
		d.Categories = append(d.Categories, VehicleType(c))
	}
	if assigned != nil {
		v := types.ID(*assigned)
		d.AssignedVehicle = &v
	}
	return &d, nil
}

func statusStrings(in []VehicleStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func driverStatusStrings(in []DriverStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func categoryStrings(in []VehicleType) []string {
	out := make([]string, len(in))
	for i, c := range in {
		out[i] = string(c)
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
