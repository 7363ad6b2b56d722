// README: Trip aggregate, status definitions and the lifecycle transition table.
package trip

import (
	"errors"
	"fmt"
	"time"

	"fleetops/internal/types"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusDispatched Status = "dispatched"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllowedTransitions represents the trip lifecycle as code. Completed and
// cancelled are terminal: no outgoing edges.
var AllowedTransitions = map[Status][]Status{
	StatusDraft:      {StatusDispatched, StatusCancelled},
	StatusDispatched: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Trip struct {
	ID            types.ID    `json:"id"`
	RefCode       string      `json:"refCode"`
	Origin        types.Place `json:"origin"`
	Destination   types.Place `json:"destination"`
	CargoWeightKg float64     `json:"cargoWeightKg"`
	// Vehicle and driver references are fixed at creation; there is no
	// reassignment, only cancel-and-recreate.
	VehicleID     types.ID   `json:"vehicleId"`
	DriverID      types.ID   `json:"driverId"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	DispatchedAt  *time.Time `json:"dispatchedAt"`
	CompletedAt   *time.Time `json:"completedAt"`
	CancelledAt   *time.Time `json:"cancelledAt"`
	StartOdometer float64    `json:"startOdometer"`
	EndOdometer   *float64   `json:"endOdometer"`
	Revenue       float64    `json:"revenue"`
	Notes         string     `json:"notes"`
}

var (
	ErrNotFound     = errors.New("trip not found")
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidState = errors.New("invalid state transition")
	// ErrConflict marks a transition that lost a race: the trip was in the
	// right state when read but a concurrent caller moved it first.
	ErrConflict = errors.New("trip state conflict")
)

// StateError reports the state that blocked an operation, so callers can see
// current vs. required without re-deriving it.
type StateError struct {
	Op      string
	Current Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s trip with status %q", e.Op, e.Current)
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}
