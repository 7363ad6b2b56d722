// README: ordered eligibility rules a vehicle/driver pair must pass before a trip exists.
package trip

import (
	"fmt"
	"time"

	"fleetops/internal/modules/fleet"
)

// Rule identifiers, in evaluation order. Checks short-circuit on the first
// failure so a response carries exactly one rejection.
const (
	RuleCapacity        = "capacity"
	RuleLicenseExpiry   = "license_expiry"
	RuleCategory        = "category"
	RuleVehicleStatus   = "vehicle_status"
	RuleDriverSuspended = "driver_suspended"
)

// RejectionError is a business outcome, not a failure: the pair is simply not
// allowed to take this trip.
type RejectionError struct {
	Rule   string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("eligibility rejected (%s): %s", e.Rule, e.Reason)
}

// CheckEligibility evaluates the rules against a candidate pair at a given
// instant. The clock is a parameter so license expiry is testable.
func CheckEligibility(v *fleet.Vehicle, d *fleet.Driver, cargoWeightKg float64, now time.Time) error {
	if cargoWeightKg > v.MaxLoadKg {
		return &RejectionError{
			Rule:   RuleCapacity,
			Reason: fmt.Sprintf("cargo %.1fkg exceeds vehicle max load %.1fkg", cargoWeightKg, v.MaxLoadKg),
		}
	}
	if !d.LicenseExpiry.After(now) {
		return &RejectionError{
			Rule:   RuleLicenseExpiry,
			Reason: fmt.Sprintf("driver license expired on %s", d.LicenseExpiry.Format("2006-01-02")),
		}
	}
	if !d.CertifiedFor(v.Type) {
		return &RejectionError{
			Rule:   RuleCategory,
			Reason: fmt.Sprintf("driver not certified for vehicle type %q", v.Type),
		}
	}
	if v.Status != fleet.VehicleAvailable {
		return &RejectionError{
			Rule:   RuleVehicleStatus,
			Reason: fmt.Sprintf("vehicle is %q, must be available", v.Status),
		}
	}
	if d.Status == fleet.DriverSuspended {
		return &RejectionError{
			Rule:   RuleDriverSuspended,
			Reason: "driver is suspended",
		}
	}
	return nil
}
