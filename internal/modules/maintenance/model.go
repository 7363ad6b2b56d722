// README: Maintenance log entries; an open entry keeps the vehicle in the shop.
package maintenance

import (
	"errors"
	"time"

	"fleetops/internal/types"
)

type Kind string

const (
	KindService    Kind = "service"
	KindRepair     Kind = "repair"
	KindInspection Kind = "inspection"
)

func ValidKind(k Kind) bool {
	switch k {
	case KindService, KindRepair, KindInspection:
		return true
	}
	return false
}

type Log struct {
	ID        types.ID  `json:"id"`
	VehicleID types.ID  `json:"vehicleId"`
	Kind      Kind      `json:"kind"`
	Provider  string    `json:"provider"`
	Cost      float64   `json:"cost"`
	LoggedAt  time.Time `json:"loggedAt"`
	Resolved  bool      `json:"resolved"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	ErrNotFound   = errors.New("maintenance log not found")
	ErrBadRequest = errors.New("bad request")
	ErrResolved   = errors.New("maintenance log already resolved")
)
