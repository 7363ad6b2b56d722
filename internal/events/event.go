// README: Event envelope published to subscribers after a transaction commits.
package events

// Event names mirror the operations that produce them.
const (
	TripCreated        = "trip:created"
	TripDispatched     = "trip:dispatched"
	TripCompleted      = "trip:completed"
	TripCancelled      = "trip:cancelled"
	VehicleUpdated     = "vehicle:update"
	DriverUpdated      = "driver:update"
	MaintenanceCreated = "maintenance:created"
)

type Event struct {
	Name     string `json:"event"`
	Entity   string `json:"entity"`
	EntityID string `json:"entityId"`
	Data     any    `json:"data,omitempty"`
}

// Publisher delivers events to whoever is listening right now. Delivery is
// at-most-once; there is no replay for observers that were not connected.
type Publisher interface {
	Publish(e Event)
}

// Discard is a Publisher that drops everything. Used in tests and tools.
type Discard struct{}

func (Discard) Publish(Event) {}
