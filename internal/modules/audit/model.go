// README: Append-only audit entries; who performed which transition on which entity.
package audit

import "time"

const (
	ActionTripCreated          = "trip_created"
	ActionTripDispatched       = "trip_dispatched"
	ActionTripCompleted        = "trip_completed"
	ActionTripCancelled        = "trip_cancelled"
	ActionVehicleCreated       = "vehicle_created"
	ActionVehicleUpdated       = "vehicle_updated"
	ActionVehicleStatusChanged = "vehicle_status_changed"
	ActionOdometerCorrected    = "vehicle_odometer_corrected"
	ActionDriverCreated        = "driver_created"
	ActionDriverStatusChanged  = "driver_status_changed"
	ActionExpenseCreated       = "expense_created"
	ActionMaintenanceOpened    = "maintenance_opened"
	ActionMaintenanceResolved  = "maintenance_resolved"
)

type Entry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entityId"`
	ActorID   string         `json:"actorId"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"createdAt"`
}
