// README: Fuel expense store backed by PostgreSQL.
package expense

import (
	"context"

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

func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{q: tx}
}

func (s *Store) Create(ctx context.Context, e *FuelExpense) error {
	var trip *string
	if e.TripID != nil {
		v := e.TripID.String()
		trip = &v
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO fuel_expenses (id, vehicle_id, trip_id, liters, cost, spent_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID.String(), e.VehicleID.String(), trip, e.Liters, e.Cost, e.SpentAt, e.CreatedBy, e.CreatedAt,
	)
	return err
}

type Filter struct {
	VehicleID types.ID
	TripID    types.ID
}

func (s *Store) List(ctx context.Context, f Filter) ([]*FuelExpense, error) {
	q := `SELECT id, vehicle_id, trip_id, liters, cost, spent_at, created_by, created_at FROM fuel_expenses`
	args := []any{}
	switch {
	case f.VehicleID != "":
		q += ` WHERE vehicle_id = $1`
		args = append(args, f.VehicleID.String())
	case f.TripID != "":
		q += ` WHERE trip_id = $1`
		args = append(args, f.TripID.String())
	}
	q += ` ORDER BY spent_at DESC`

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FuelExpense
	for rows.Next() {
		var e FuelExpense
		var id, vehicleID string
		var tripID *string
		if err := rows.Scan(&id, &vehicleID, &tripID, &e.Liters, &e.Cost, &e.SpentAt, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = types.ID(id)
		e.VehicleID = types.ID(vehicleID)
		if tripID != nil {
			t := types.ID(*tripID)
			e.TripID = &t
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
