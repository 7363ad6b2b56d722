// README: Fuel expense records, optionally linked to the trip that produced them.
package expense

import (
	"time"

	"fleetops/internal/types"
)

type FuelExpense struct {
	ID        types.ID  `json:"id"`
	VehicleID types.ID  `json:"vehicleId"`
	TripID    *types.ID `json:"tripId"`
	Liters    float64   `json:"liters"`
	Cost      float64   `json:"cost"`
	SpentAt   time.Time `json:"spentAt"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}
