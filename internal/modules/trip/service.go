// README: Trip lifecycle service; every transition runs inside one unit of work.
package trip

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"fleetops/internal/events"
	"fleetops/internal/infra"
	"fleetops/internal/modules/audit"
	"fleetops/internal/modules/expense"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/types"
)

type Service struct {
	store    *Store
	fleet    *fleet.Store
	expenses *expense.Store
	uow      *infra.UnitOfWork
	refs     *RefCodeSource
	audit    *audit.Recorder
	bus      events.Publisher
	log      zerolog.Logger
}

func NewService(store *Store, fleetStore *fleet.Store, expenseStore *expense.Store,
	uow *infra.UnitOfWork, refs *RefCodeSource, rec *audit.Recorder,
	bus events.Publisher, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		fleet:    fleetStore,
		expenses: expenseStore,
		uow:      uow,
		refs:     refs,
		audit:    rec,
		bus:      bus,
		log:      log,
	}
}

type CreateCommand struct {
	Origin        types.Place
	Destination   types.Place
	CargoWeightKg float64
	VehicleID     types.ID
	DriverID      types.ID
	Notes         string
	ActorID       string
}

// Create validates the pair against the eligibility rules and records a draft.
// A draft holds no resources; the vehicle stays available until dispatch.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Trip, error) {
	if cmd.Origin.Address == "" || cmd.Destination.Address == "" {
		return nil, fmt.Errorf("%w: origin and destination addresses are required", ErrBadRequest)
	}
	if cmd.CargoWeightKg < 0 {
		return nil, fmt.Errorf("%w: cargoWeightKg must be >= 0", ErrBadRequest)
	}
	if !cmd.VehicleID.Valid() || !cmd.DriverID.Valid() {
		return nil, fmt.Errorf("%w: vehicleId and driverId are required", ErrBadRequest)
	}

	now := time.Now().UTC()
	t := &Trip{
		ID:            types.NewID(),
		RefCode:       s.refs.Next(ctx, now),
		Origin:        cmd.Origin,
		Destination:   cmd.Destination,
		CargoWeightKg: cmd.CargoWeightKg,
		VehicleID:     cmd.VehicleID,
		DriverID:      cmd.DriverID,
		Status:        StatusDraft,
		CreatedAt:     now,
		Notes:         cmd.Notes,
	}

	err := s.uow.Run(ctx, func(tx pgx.Tx) error {
		fleetTx := s.fleet.WithTx(tx)
		v, err := fleetTx.GetVehicle(ctx, cmd.VehicleID)
		if err != nil {
			return err
		}
		d, err := fleetTx.GetDriver(ctx, cmd.DriverID)
		if err != nil {
			return err
		}
		if err := CheckEligibility(v, d, cmd.CargoWeightKg, now); err != nil {
			return err
		}
		t.StartOdometer = v.OdometerKm
		return s.store.WithTx(tx).Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionTripCreated,
		Entity:   "trip",
		EntityID: t.ID.String(),
		ActorID:  cmd.ActorID,
		Details: map[string]any{
			"refCode":   t.RefCode,
			"vehicleId": t.VehicleID.String(),
			"driverId":  t.DriverID.String(),
		},
	})
	s.bus.Publish(events.Event{Name: events.TripCreated, Entity: "trip", EntityID: t.ID.String(), Data: t})
	return t, nil
}

// Dispatch promotes a draft and seizes its resources in the same transaction:
// the vehicle goes on_trip, the driver on_duty with the vehicle back-reference
// set. Eligibility is re-checked because the world may have moved since create.
func (s *Service) Dispatch(ctx context.Context, id types.ID, actorID string) (*Trip, error) {
	now := time.Now().UTC()
	var out *Trip
	var outVehicle *fleet.Vehicle
	var outDriver *fleet.Driver

	err := s.uow.Run(ctx, func(tx pgx.Tx) error {
		tripTx := s.store.WithTx(tx)
		fleetTx := s.fleet.WithTx(tx)

		t, err := tripTx.Get(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != StatusDraft {
			return &StateError{Op: "dispatch", Current: t.Status}
		}
		v, err := fleetTx.GetVehicle(ctx, t.VehicleID)
		if err != nil {
			return err
		}
		d, err := fleetTx.GetDriver(ctx, t.DriverID)
		if err != nil {
			return err
		}
		if err := CheckEligibility(v, d, t.CargoWeightKg, now); err != nil {
			return err
		}

		if err := tripTx.MarkDispatched(ctx, id, v.OdometerKm, now); err != nil {
			return err
		}
		if err := fleetTx.TransitionVehicleStatus(ctx, t.VehicleID, fleet.VehicleOnTrip, fleet.VehicleAvailable); err != nil {
			return err
		}
		if err := fleetTx.TransitionDriverStatus(ctx, t.DriverID, fleet.DriverOnDuty, &t.VehicleID,
			fleet.DriverOffDuty, fleet.DriverOnDuty); err != nil {
			return err
		}

		if outVehicle, err = fleetTx.GetVehicle(ctx, t.VehicleID); err != nil {
			return err
		}
		if outDriver, err = fleetTx.GetDriver(ctx, t.DriverID); err != nil {
			return err
		}
		out, err = tripTx.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionTripDispatched,
		Entity:   "trip",
		EntityID: id.String(),
		ActorID:  actorID,
		Details:  map[string]any{"vehicleId": out.VehicleID.String(), "driverId": out.DriverID.String()},
	})
	// One event per entity the transaction touched.
	s.bus.Publish(events.Event{Name: events.TripDispatched, Entity: "trip", EntityID: id.String(), Data: out})
	s.bus.Publish(events.Event{Name: events.VehicleUpdated, Entity: "vehicle", EntityID: out.VehicleID.String(), Data: outVehicle})
	s.bus.Publish(events.Event{Name: events.DriverUpdated, Entity: "driver", EntityID: out.DriverID.String(), Data: outDriver})
	return out, nil
}

type CompleteCommand struct {
	TripID      types.ID
	EndOdometer float64
	Revenue     float64
	Notes       string
	// Optional fuel spent on the trip; recorded as an expense in the same
	// transaction when either value is positive.
	FuelLiters *float64
	FuelCost   *float64
	ActorID    string
}

// Complete closes a dispatched trip and releases its resources. The vehicle
// odometer advances to the end reading, never backwards.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Trip, error) {
	if cmd.Revenue < 0 {
		return nil, fmt.Errorf("%w: revenue must be >= 0", ErrBadRequest)
	}
	fuelLiters := optional(cmd.FuelLiters)
	fuelCost := optional(cmd.FuelCost)
	if fuelLiters < 0 || fuelCost < 0 {
		return nil, fmt.Errorf("%w: fuel values must be >= 0", ErrBadRequest)
	}

	now := time.Now().UTC()
	var out *Trip
	var outVehicle *fleet.Vehicle
	var outDriver *fleet.Driver

	err := s.uow.Run(ctx, func(tx pgx.Tx) error {
		tripTx := s.store.WithTx(tx)
		fleetTx := s.fleet.WithTx(tx)

		t, err := tripTx.Get(ctx, cmd.TripID)
		if err != nil {
			return err
		}
		if t.Status != StatusDispatched {
			return &StateError{Op: "complete", Current: t.Status}
		}
		if cmd.EndOdometer < t.StartOdometer {
			return fmt.Errorf("%w: endOdometer %.1f below start %.1f", ErrBadRequest, cmd.EndOdometer, t.StartOdometer)
		}

		if err := tripTx.MarkCompleted(ctx, cmd.TripID, cmd.EndOdometer, cmd.Revenue, cmd.Notes, now); err != nil {
			return err
		}
		if err := fleetTx.SetVehicleOdometerAndStatus(ctx, t.VehicleID, cmd.EndOdometer,
			fleet.VehicleAvailable, fleet.VehicleOnTrip); err != nil {
			return err
		}
		if err := fleetTx.TransitionDriverStatus(ctx, t.DriverID, fleet.DriverOffDuty, nil,
			fleet.DriverOnDuty); err != nil {
			return err
		}

		if fuelLiters > 0 || fuelCost > 0 {
			tripID := t.ID
			e := &expense.FuelExpense{
				ID:        types.NewID(),
				VehicleID: t.VehicleID,
				TripID:    &tripID,
				Liters:    fuelLiters,
				Cost:      fuelCost,
				SpentAt:   now,
				CreatedBy: cmd.ActorID,
				CreatedAt: now,
			}
			if err := s.expenses.WithTx(tx).Create(ctx, e); err != nil {
				return err
			}
		}

		if outVehicle, err = fleetTx.GetVehicle(ctx, t.VehicleID); err != nil {
			return err
		}
		if outDriver, err = fleetTx.GetDriver(ctx, t.DriverID); err != nil {
			return err
		}
		out, err = tripTx.Get(ctx, cmd.TripID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionTripCompleted,
		Entity:   "trip",
		EntityID: cmd.TripID.String(),
		ActorID:  cmd.ActorID,
		Details:  map[string]any{"endOdometer": cmd.EndOdometer, "revenue": cmd.Revenue},
	})
	s.bus.Publish(events.Event{Name: events.TripCompleted, Entity: "trip", EntityID: cmd.TripID.String(), Data: out})
	s.bus.Publish(events.Event{Name: events.VehicleUpdated, Entity: "vehicle", EntityID: out.VehicleID.String(), Data: outVehicle})
	s.bus.Publish(events.Event{Name: events.DriverUpdated, Entity: "driver", EntityID: out.DriverID.String(), Data: outDriver})
	return out, nil
}

// Cancel works from either non-terminal status. Cancelling a dispatched trip
// releases the vehicle and driver; a draft holds nothing to release.
func (s *Service) Cancel(ctx context.Context, id types.ID, reason, actorID string) (*Trip, error) {
	now := time.Now().UTC()
	var out *Trip
	var wasDispatched bool

	err := s.uow.Run(ctx, func(tx pgx.Tx) error {
		tripTx := s.store.WithTx(tx)

		t, err := tripTx.Get(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(t.Status, StatusCancelled) {
			return &StateError{Op: "cancel", Current: t.Status}
		}
		if err := tripTx.MarkCancelled(ctx, id, reason, now, t.Status); err != nil {
			return err
		}
		if t.Status == StatusDispatched {
			wasDispatched = true
			fleetTx := s.fleet.WithTx(tx)
			if err := fleetTx.TransitionVehicleStatus(ctx, t.VehicleID, fleet.VehicleAvailable, fleet.VehicleOnTrip); err != nil {
				return err
			}
			if err := fleetTx.TransitionDriverStatus(ctx, t.DriverID, fleet.DriverOffDuty, nil,
				fleet.DriverOnDuty); err != nil {
				return err
			}
		}

		out, err = tripTx.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionTripCancelled,
		Entity:   "trip",
		EntityID: id.String(),
		ActorID:  actorID,
		Details:  map[string]any{"reason": reason, "releasedResources": wasDispatched},
	})
	s.bus.Publish(events.Event{Name: events.TripCancelled, Entity: "trip", EntityID: id.String(), Data: out})
	return out, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetByRefCode(ctx context.Context, refCode string) (*Trip, error) {
	return s.store.GetByRefCode(ctx, refCode)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Trip, int, error) {
	f.Limit = clampLimit(f.Limit)
	return s.store.List(ctx, f)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	}
	return n
}

func optional(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
