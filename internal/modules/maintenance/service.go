// README: Maintenance service; opening an entry pulls the vehicle into the shop.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"fleetops/internal/events"
	"fleetops/internal/infra"
	"fleetops/internal/modules/audit"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/types"
)

type Service struct {
	store *Store
	fleet *fleet.Store
	uow   *infra.UnitOfWork
	audit *audit.Recorder
	bus   events.Publisher
	log   zerolog.Logger
}

func NewService(store *Store, fleetStore *fleet.Store, uow *infra.UnitOfWork,
	rec *audit.Recorder, bus events.Publisher, log zerolog.Logger) *Service {
	return &Service{store: store, fleet: fleetStore, uow: uow, audit: rec, bus: bus, log: log}
}

type OpenCommand struct {
	VehicleID types.ID
	Kind      Kind
	Provider  string
	Cost      float64
	LoggedAt  time.Time
	ActorID   string
}

// Open records a maintenance entry and moves the vehicle into the shop in the
// same transaction. A vehicle on a trip cannot be pulled in; the trip must end
// first.
func (s *Service) Open(ctx context.Context, cmd OpenCommand) (*Log, error) {
	if cmd.Kind == "" {
		cmd.Kind = KindService
	}
	if !ValidKind(cmd.Kind) {
		return nil, fmt.Errorf("%w: unknown maintenance kind %q", ErrBadRequest, cmd.Kind)
	}
	if cmd.Cost < 0 {
		return nil, fmt.Errorf("%w: cost must be >= 0", ErrBadRequest)
	}

	now := time.Now().UTC()
	loggedAt := cmd.LoggedAt
	if loggedAt.IsZero() {
		loggedAt = now
	}
	l := &Log{
		ID:        types.NewID(),
		VehicleID: cmd.VehicleID,
		Kind:      cmd.Kind,
		Provider:  cmd.Provider,
		Cost:      cmd.Cost,
		LoggedAt:  loggedAt,
		CreatedBy: cmd.ActorID,
		CreatedAt: now,
	}

	err := s.uow.Run(ctx, func(tx pgx.Tx) error {
		fleetTx := s.fleet.WithTx(tx)
		v, err := fleetTx.GetVehicle(ctx, cmd.VehicleID)
		if err != nil {
			return err
		}
		// Idempotent on status: a vehicle already in the shop takes another
		// entry without a transition.
		if v.Status != fleet.VehicleInShop {
			if err := fleetTx.TransitionVehicleStatus(ctx, cmd.VehicleID,
				fleet.VehicleInShop, fleet.VehicleAvailable, fleet.VehicleOutOfService); err != nil {
				return err
			}
		}
		return s.store.WithTx(tx).Create(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionMaintenanceOpened,
		Entity:   "maintenance",
		EntityID: l.ID.String(),
		ActorID:  cmd.ActorID,
		Details:  map[string]any{"vehicleId": l.VehicleID.String(), "kind": string(l.Kind)},
	})
	s.bus.Publish(events.Event{Name: events.MaintenanceCreated, Entity: "maintenance", EntityID: l.ID.String(), Data: l})
	return l, nil
}

// Resolve closes an entry; the vehicle returns to available once no open
// entries remain.
func (s *Service) Resolve(ctx context.Context, id types.ID, actorID string) (*Log, error) {
	var out *Log

	err := s.uow.Run(ctx, func(tx pgx.Tx) error {
		storeTx := s.store.WithTx(tx)
		l, err := storeTx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := storeTx.MarkResolved(ctx, id); err != nil {
			return err
		}
		open, err := storeTx.CountOpen(ctx, l.VehicleID)
		if err != nil {
			return err
		}
		if open == 0 {
			if err := s.fleet.WithTx(tx).TransitionVehicleStatus(ctx, l.VehicleID,
				fleet.VehicleAvailable, fleet.VehicleInShop); err != nil {
				return err
			}
		}
		out, err = storeTx.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionMaintenanceResolved,
		Entity:   "maintenance",
		EntityID: id.String(),
		ActorID:  actorID,
		Details:  map[string]any{"vehicleId": out.VehicleID.String()},
	})
	return out, nil
}

func (s *Service) List(ctx context.Context, vehicleID types.ID) ([]*Log, error) {
	return s.store.List(ctx, vehicleID)
}
