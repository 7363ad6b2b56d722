// README: Shared value types used across modules.
package types

import "github.com/google/uuid"

// ID identifies an entity. IDs are UUID strings; the zero value means "unset".
type ID string

// NewID returns a fresh random ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// Valid reports whether the ID parses as a UUID.
func (id ID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

func (id ID) String() string { return string(id) }

// GeoPoint is an optional coordinate pair attached to an address.
// Zero values mean the coordinate was not supplied.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is a human-entered address with an optional coordinate.
type Place struct {
	Address string   `json:"address"`
	Coord   GeoPoint `json:"coord"`
}
