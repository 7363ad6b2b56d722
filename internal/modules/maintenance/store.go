// README: Maintenance log store backed by PostgreSQL.
package maintenance

import (
	"context"
	"errors"

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

const logCols = `id, vehicle_id, kind, provider, cost, logged_at, resolved, created_by, created_at`

func (s *Store) Create(ctx context.Context, l *Log) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO maintenance_logs (id, vehicle_id, kind, provider, cost, logged_at, resolved, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID.String(), l.VehicleID.String(), string(l.Kind), l.Provider,
		l.Cost, l.LoggedAt, l.Resolved, l.CreatedBy, l.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Log, error) {
	row := s.q.QueryRow(ctx, `SELECT `+logCols+` FROM maintenance_logs WHERE id = $1`, id.String())
	return scanLog(row)
}

// MarkResolved flips an open entry. A miss on a live row means it was already
// resolved.
func (s *Store) MarkResolved(ctx context.Context, id types.ID) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE maintenance_logs SET resolved = TRUE WHERE id = $1 AND resolved = FALSE`,
		id.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var resolved bool
		err := s.q.QueryRow(ctx, `SELECT resolved FROM maintenance_logs WHERE id = $1`, id.String()).Scan(&resolved)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrResolved
	}
	return nil
}

// List returns maintenance logs, optionally limited to one vehicle.
func (s *Store) List(ctx context.Context, vehicleID types.ID) ([]*Log, error) {
	q := `SELECT ` + logCols + ` FROM maintenance_logs`
	args := []any{}
	if vehicleID != "" {
		q += ` WHERE vehicle_id = $1`
		args = append(args, vehicleID.String())
	}
	q += ` ORDER BY logged_at DESC`

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CountOpen reports open entries for a vehicle; the vehicle leaves the shop
// only when this reaches zero.
func (s *Store) CountOpen(ctx context.Context, vehicleID types.ID) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM maintenance_logs WHERE vehicle_id = $1 AND resolved = FALSE`,
		vehicleID.String(),
	).Scan(&n)
	return n, err
}

func scanLog(row pgx.Row) (*Log, error) {
	var l Log
	var id, vehicleID, kind string
	err := row.Scan(&id, &vehicleID, &kind, &l.Provider, &l.Cost,
		&l.LoggedAt, &l.Resolved, &l.CreatedBy, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.ID = types.ID(id)
	l.VehicleID = types.ID(vehicleID)
	l.Kind = Kind(kind)
	return &l, nil
}
