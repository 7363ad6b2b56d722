// README: Fleet registry service; vehicle/driver records and their boundary API.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fleetops/internal/events"
	"fleetops/internal/modules/audit"
	"fleetops/internal/types"
)

var ErrBadRequest = errors.New("bad request")

// Busy statuses (on_trip, in_shop, on_duty) move only inside allocator
// transactions; this service covers record keeping and the idle-side toggles.
type Service struct {
	store *Store
	audit *audit.Recorder
	bus   events.Publisher
	log   zerolog.Logger
}

func NewService(store *Store, rec *audit.Recorder, bus events.Publisher, log zerolog.Logger) *Service {
	return &Service{store: store, audit: rec, bus: bus, log: log}
}

func (s *Service) Store() *Store { return s.store }

type CreateVehicleCommand struct {
	Name            string
	Model           string
	Type            VehicleType
	LicensePlate    string
	MaxLoadKg       float64
	OdometerKm      float64
	AcquisitionCost float64
	ActorID         string
}

func (s *Service) CreateVehicle(ctx context.Context, cmd CreateVehicleCommand) (*Vehicle, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	if cmd.LicensePlate == "" {
		return nil, fmt.Errorf("%w: licensePlate is required", ErrBadRequest)
	}
	if cmd.Type == "" {
		cmd.Type = TypeVan
	}
	if !ValidVehicleType(cmd.Type) {
		return nil, fmt.Errorf("%w: unknown vehicle type %q", ErrBadRequest, cmd.Type)
	}
	if cmd.MaxLoadKg < 0 {
		return nil, fmt.Errorf("%w: maxLoadKg must be >= 0", ErrBadRequest)
	}
	if cmd.OdometerKm < 0 {
		return nil, fmt.Errorf("%w: odometerKm must be >= 0", ErrBadRequest)
	}

	v := &Vehicle{
		ID:              types.NewID(),
		Name:            cmd.Name,
		Model:           cmd.Model,
		Type:            cmd.Type,
		LicensePlate:    cmd.LicensePlate,
		MaxLoadKg:       cmd.MaxLoadKg,
		OdometerKm:      cmd.OdometerKm,
		Status:          VehicleAvailable,
		AcquisitionCost: cmd.AcquisitionCost,
		CreatedAt:       time.Now().UTC(),
	}
	v.UpdatedAt = v.CreatedAt
	if err := s.store.CreateVehicle(ctx, v); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionVehicleCreated,
		Entity:   "vehicle",
		EntityID: v.ID.String(),
		ActorID:  cmd.ActorID,
		Details:  map[string]any{"licensePlate": v.LicensePlate, "type": string(v.Type)},
	})
	s.bus.Publish(events.Event{Name: events.VehicleUpdated, Entity: "vehicle", EntityID: v.ID.String(), Data: v})
	return v, nil
}

type UpdateVehicleCommand struct {
	VehicleID       types.ID
	Name            string
	Model           string
	AcquisitionCost float64
	ActorID         string
}

func (s *Service) UpdateVehicle(ctx context.Context, cmd UpdateVehicleCommand) (*Vehicle, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	if err := s.store.UpdateVehicleMeta(ctx, cmd.VehicleID, cmd.Name, cmd.Model, cmd.AcquisitionCost); err != nil {
		return nil, err
	}
	v, err := s.store.GetVehicle(ctx, cmd.VehicleID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionVehicleUpdated,
		Entity:   "vehicle",
		EntityID: v.ID.String(),
		ActorID:  cmd.ActorID,
	})
	s.bus.Publish(events.Event{Name: events.VehicleUpdated, Entity: "vehicle", EntityID: v.ID.String(), Data: v})
	return v, nil
}

// CorrectOdometer is the operator escape hatch for a mis-entered odometer.
// It bypasses the forward-only rule, so the old and new readings are audited.
func (s *Service) CorrectOdometer(ctx context.Context, id types.ID, odometerKm float64, actorID string) (*Vehicle, error) {
	if odometerKm < 0 {
		return nil, fmt.Errorf("%w: odometerKm must be >= 0", ErrBadRequest)
	}
	before, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.CorrectOdometer(ctx, id, odometerKm); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionOdometerCorrected,
		Entity:   "vehicle",
		EntityID: id.String(),
		ActorID:  actorID,
		Details:  map[string]any{"from": before.OdometerKm, "to": odometerKm},
	})
	after, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(events.Event{Name: events.VehicleUpdated, Entity: "vehicle", EntityID: id.String(), Data: after})
	return after, nil
}

// Operator status toggles. On-trip and in-shop statuses are owned by the trip
// and maintenance flows; only the idle-side statuses are settable here, and
// each target has a fixed set of source statuses.
var vehicleStatusToggles = map[VehicleStatus][]VehicleStatus{
	VehicleAvailable:    {VehicleOutOfService},
	VehicleOutOfService: {VehicleAvailable},
	VehicleRetired:      {VehicleAvailable, VehicleOutOfService},
}

func (s *Service) SetVehicleStatus(ctx context.Context, id types.ID, to VehicleStatus, actorID string) (*Vehicle, error) {
	from, ok := vehicleStatusToggles[to]
	if !ok {
		return nil, fmt.Errorf("%w: status %q cannot be set directly", ErrBadRequest, to)
	}
	before, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.TransitionVehicleStatus(ctx, id, to, from...); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionVehicleStatusChanged,
		Entity:   "vehicle",
		EntityID: id.String(),
		ActorID:  actorID,
		Details:  map[string]any{"from": string(before.Status), "to": string(to)},
	})
	after, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(events.Event{Name: events.VehicleUpdated, Entity: "vehicle", EntityID: id.String(), Data: after})
	return after, nil
}

var driverStatusToggles = map[DriverStatus][]DriverStatus{
	DriverSuspended: {DriverOffDuty},
	DriverOffDuty:   {DriverSuspended},
}

// SetDriverStatus suspends or reinstates a driver. Drivers on duty finish or
// cancel their trip first; on_duty itself is set only by dispatch.
func (s *Service) SetDriverStatus(ctx context.Context, id types.ID, to DriverStatus, actorID string) (*Driver, error) {
	from, ok := driverStatusToggles[to]
	if !ok {
		return nil, fmt.Errorf("%w: status %q cannot be set directly", ErrBadRequest, to)
	}
	before, err := s.store.GetDriver(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.TransitionDriverStatus(ctx, id, to, nil, from...); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionDriverStatusChanged,
		Entity:   "driver",
		EntityID: id.String(),
		ActorID:  actorID,
		Details:  map[string]any{"from": string(before.Status), "to": string(to)},
	})
	after, err := s.store.GetDriver(ctx, id)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(events.Event{Name: events.DriverUpdated, Entity: "driver", EntityID: id.String(), Data: after})
	return after, nil
}

func (s *Service) GetVehicle(ctx context.Context, id types.ID) (*Vehicle, error) {
	return s.store.GetVehicle(ctx, id)
}

func (s *Service) ListVehicles(ctx context.Context, status VehicleStatus) ([]*Vehicle, error) {
	return s.store.ListVehicles(ctx, status)
}

type CreateDriverCommand struct {
	Name          string
	LicenseNumber string
	LicenseExpiry time.Time
	Categories    []VehicleType
	ActorID       string
}

func (s *Service) CreateDriver(ctx context.Context, cmd CreateDriverCommand) (*Driver, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	if cmd.LicenseNumber == "" {
		return nil, fmt.Errorf("%w: licenseNumber is required", ErrBadRequest)
	}
	if cmd.LicenseExpiry.IsZero() {
		return nil, fmt.Errorf("%w: licenseExpiry is required", ErrBadRequest)
	}
	for _, c := range cmd.Categories {
		if !ValidVehicleType(c) {
			return nil, fmt.Errorf("%w: unknown category %q", ErrBadRequest, c)
		}
	}

	d := &Driver{
		ID:            types.NewID(),
		Name:          cmd.Name,
		LicenseNumber: cmd.LicenseNumber,
		LicenseExpiry: cmd.LicenseExpiry,
		Categories:    cmd.Categories,
		Status:        DriverOffDuty,
		CreatedAt:     time.Now().UTC(),
	}
	d.UpdatedAt = d.CreatedAt
	if err := s.store.CreateDriver(ctx, d); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:   audit.ActionDriverCreated,
		Entity:   "driver",
		EntityID: d.ID.String(),
		ActorID:  cmd.ActorID,
		Details:  map[string]any{"licenseNumber": d.LicenseNumber},
	})
	s.bus.Publish(events.Event{Name: events.DriverUpdated, Entity: "driver", EntityID: d.ID.String(), Data: d})
	return d, nil
}

func (s *Service) GetDriver(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.GetDriver(ctx, id)
}

func (s *Service) ListDrivers(ctx context.Context, status DriverStatus) ([]*Driver, error) {
	return s.store.ListDrivers(ctx, status)
}
