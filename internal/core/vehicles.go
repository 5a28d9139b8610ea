package core

import (
	"context"
	"fmt"
	"time"
)

// Vehicle is a read model from the vehicle registry. Only the technical
// attributes feed the rating engine; the rest is carried for display.
type Vehicle struct {
	ID                string    `json:"id"`
	Registration      string    `json:"registration"`
	Make              string    `json:"make"`
	Model             string    `json:"model"`
	EngineCapacityCCM int       `json:"engine_capacity_ccm"`
	EnginePowerKW     int       `json:"engine_power_kw"`
	FirstRegistration time.Time `json:"first_registration"`
}

func (v Vehicle) Validate() error {
	if v.EngineCapacityCCM <= 0 {
		return fmt.Errorf("%w: engine capacity must be > 0", ErrValidation)
	}
	if v.EnginePowerKW <= 0 {
		return fmt.Errorf("%w: engine power must be > 0", ErrValidation)
	}
	if v.FirstRegistration.IsZero() {
		return fmt.Errorf("%w: missing first registration date", ErrValidation)
	}
	return nil
}

// AgeYears returns whole years between first registration and asOf,
// never negative.
func (v Vehicle) AgeYears(asOf time.Time) int {
	from := DateOnly(v.FirstRegistration)
	at := DateOnly(asOf)
	if at.Before(from) {
		return 0
	}
	years := at.Year() - from.Year()
	if at.Month() < from.Month() ||
		(at.Month() == from.Month() && at.Day() < from.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

type VehicleRepo interface {
	Get(ctx context.Context, id string) (Vehicle, error)
	Put(ctx context.Context, v Vehicle) error
}

var ErrVehicleNotFound = fmt.Errorf("%w: vehicle not found", ErrNotFound)
