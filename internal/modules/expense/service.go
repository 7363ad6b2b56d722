// README: Standalone fuel expense entry (trip-linked expenses come from trip completion).
package expense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetops/internal/modules/audit"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/types"
)

var ErrBadRequest = errors.New("bad request")

type Service struct {
	store *Store
	fleet *fleet.Store
	audit *audit.Recorder
}

func NewService(store *Store, fleetStore *fleet.Store, rec *audit.Recorder) *Service {
	return &Service{store: store, fleet: fleetStore, audit: rec}
}

type CreateCommand struct {
	VehicleID types.ID
	Liters    float64
	Cost      float64
	SpentAt   time.Time
	ActorID   string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*FuelExpense, error) {
	if cmd.Liters < 0 || cmd.Cost < 0 {
		return nil, fmt.Errorf("%w: liters and cost must be >= 0", ErrBadRequest)
	}
	if cmd.Liters == 0 && cmd.Cost == 0 {
		return nil, fmt.Errorf("%w: either liters or cost must be set", ErrBadRequest)
	}
	if _, err := s.fleet.GetVehicle(ctx, cmd.VehicleID); err != nil {
		return nil, err
	}

	spentAt := cmd.SpentAt
	if spentAt.IsZero() {
		spentAt = time.Now().UTC()
	}
	e := &FuelExpense{
		ID:        types.NewID(),
		VehicleID: cmd.VehicleID,
		Liters:    cmd.Liters,
		Cost:      cmd.Cost,
		SpentAt:   spentAt,
		CreatedBy: cmd.ActorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionExpenseCreated,
		Entity:   "expense",
		EntityID: e.ID.String(),
		ActorID:  cmd.ActorID,
		Details:  map[string]any{"vehicleId": e.VehicleID.String(), "cost": e.Cost},
	})
	return e, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]*FuelExpense, error) {
	return s.store.List(ctx, f)
}
