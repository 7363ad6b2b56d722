// README: Vehicle and Driver aggregates with their status enums.
package fleet

import (
	"time"

	"fleetops/internal/types"
)

type VehicleType string

const (
	TypeVan   VehicleType = "van"
	TypeTruck VehicleType = "truck"
	TypeBike  VehicleType = "bike"
	TypeCar   VehicleType = "car"
	TypeOther VehicleType = "other"
)

func ValidVehicleType(t VehicleType) bool {
	switch t {
	case TypeVan, TypeTruck, TypeBike, TypeCar, TypeOther:
		return true
	}
	return false
}

type VehicleStatus string

const (
	VehicleAvailable    VehicleStatus = "available"
	VehicleOnTrip       VehicleStatus = "on_trip"
	VehicleInShop       VehicleStatus = "in_shop"
	VehicleRetired      VehicleStatus = "retired"
	VehicleOutOfService VehicleStatus = "out_of_service"
)

type DriverStatus string

const (
	DriverOnDuty    DriverStatus = "on_duty"
	DriverOffDuty   DriverStatus = "off_duty"
	DriverSuspended DriverStatus = "suspended"
)

type Vehicle struct {
	ID              types.ID      `json:"id"`
	Name            string        `json:"name"`
	Model           string        `json:"model"`
	Type            VehicleType   `json:"type"`
	LicensePlate    string        `json:"licensePlate"`
	MaxLoadKg       float64       `json:"maxLoadKg"`
	OdometerKm      float64       `json:"odometerKm"`
	Status          VehicleStatus `json:"status"`
	AcquisitionCost float64       `json:"acquisitionCost"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

type Driver struct {
	ID            types.ID     `json:"id"`
	Name          string       `json:"name"`
	LicenseNumber string       `json:"licenseNumber"`
	LicenseExpiry time.Time    `json:"licenseExpiry"`
	// Certified vehicle types. Empty means unrestricted.
	Categories      []VehicleType `json:"categories"`
	Status          DriverStatus  `json:"status"`
	AssignedVehicle *types.ID     `json:"assignedVehicle"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// CertifiedFor reports whether the driver may operate the given vehicle type.
func (d *Driver) CertifiedFor(t VehicleType) bool {
	if len(d.Categories) == 0 {
		return true
	}
	for _, c := range d.Categories {
		if c == t {
			return true
		}
	}
	return false
}
