// README: Trip store backed by PostgreSQL; status moves are guarded UPDATEs.
package trip

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"fleetops/internal/infra"
	"fleetops/internal/types"
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

const tripCols = `id, ref_code, origin_address, origin_lat, origin_lng,
	dest_address, dest_lat, dest_lng, cargo_weight_kg, vehicle_id, driver_id,
	status, created_at, dispatched_at, completed_at, cancelled_at,
	start_odometer, end_odometer, revenue, notes`

func (s *Store) Create(ctx context.Context, t *Trip) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO trips (id, ref_code, origin_address, origin_lat, origin_lng,
			dest_address, dest_lat, dest_lng, cargo_weight_kg, vehicle_id, driver_id,
			status, created_at, start_odometer, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID.String(), t.RefCode,
		t.Origin.Address, t.Origin.Coord.Lat, t.Origin.Coord.Lng,
		t.Destination.Address, t.Destination.Coord.Lat, t.Destination.Coord.Lng,
		t.CargoWeightKg, t.VehicleID.String(), t.DriverID.String(),
		string(t.Status), t.CreatedAt, t.StartOdometer, t.Notes,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.q.QueryRow(ctx, `SELECT `+tripCols+` FROM trips WHERE id = $1`, id.String())
	return scanTrip(row)
}

func (s *Store) GetByRefCode(ctx context.Context, refCode string) (*Trip, error) {
	row := s.q.QueryRow(ctx, `SELECT `+tripCols+` FROM trips WHERE ref_code = $1`, refCode)
	return scanTrip(row)
}

type Filter struct {
	Status    Status
	VehicleID types.ID
	DriverID  types.ID
	Limit     int
	Offset    int
}

// List returns a page of trips plus the unpaginated total for the filter.
func (s *Store) List(ctx context.Context, f Filter) ([]*Trip, int, error) {
	where := ``
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		p := "$" + strconv.Itoa(len(args))
		if where == "" {
			where = ` WHERE ` + cond + p
		} else {
			where += ` AND ` + cond + p
		}
	}
	if f.Status != "" {
		add(`status = `, string(f.Status))
	}
	if f.VehicleID != "" {
		add(`vehicle_id = `, f.VehicleID.String())
	}
	if f.DriverID != "" {
		add(`driver_id = `, f.DriverID.String())
	}

	var total int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM trips`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + tripCols + ` FROM trips` + where + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// MarkDispatched moves a draft trip to dispatched. A miss on a live row means
// a concurrent caller won the transition.
func (s *Store) MarkDispatched(ctx context.Context, id types.ID, startOdometer float64, at time.Time) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE trips SET status = $2, dispatched_at = $3, start_odometer = $4
		WHERE id = $1 AND status = $5`,
		id.String(), string(StatusDispatched), at, startOdometer, string(StatusDraft),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.transitionMiss(ctx, id, "dispatch")
	}
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, id types.ID, endOdometer, revenue float64, notes string, at time.Time) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE trips SET status = $2, completed_at = $3, end_odometer = $4, revenue = $5,
			notes = CASE WHEN $6 = '' THEN notes ELSE $6 END
		WHERE id = $1 AND status = $7`,
		id.String(), string(StatusCompleted), at, endOdometer, revenue, notes, string(StatusDispatched),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.transitionMiss(ctx, id, "complete")
	}
	return nil
}

// MarkCancelled cancels a trip the caller has already read in the same
// transaction; from guards against the row having moved since the read.
func (s *Store) MarkCancelled(ctx context.Context, id types.ID, reason string, at time.Time, from Status) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE trips SET status = $2, cancelled_at = $3,
			notes = CASE WHEN $4 = '' THEN notes ELSE $4 END
		WHERE id = $1 AND status = $5`,
		id.String(), string(StatusCancelled), at, reason, string(from),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.transitionMiss(ctx, id, "cancel")
	}
	return nil
}

func (s *Store) transitionMiss(ctx context.Context, id types.ID, op string) error {
	var status string
	err := s.q.QueryRow(ctx, `SELECT status FROM trips WHERE id = $1`, id.String()).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return &StateError{Op: op, Current: Status(status)}
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var t Trip
	var id, vehicleID, driverID, status string
	err := row.Scan(&id, &t.RefCode,
		&t.Origin.Address, &t.Origin.Coord.Lat, &t.Origin.Coord.Lng,
		&t.Destination.Address, &t.Destination.Coord.Lat, &t.Destination.Coord.Lng,
		&t.CargoWeightKg, &vehicleID, &driverID, &status,
		&t.CreatedAt, &t.DispatchedAt, &t.CompletedAt, &t.CancelledAt,
		&t.StartOdometer, &t.EndOdometer, &t.Revenue, &t.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.ID = types.ID(id)
	t.VehicleID = types.ID(vehicleID)
	t.DriverID = types.ID(driverID)
	t.Status = Status(status)
	return &t, nil
}
