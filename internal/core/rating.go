package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Rating factor key namespaces. Vehicle-age keys are built as
// VEHICLE_AGE_<years> with years clamped to the configured cap.
const (
	FactorVehicleAgePrefix = "VEHICLE_AGE_"

	FactorEngineSmall  = "ENGINE_SMALL"
	FactorEngineMedium = "ENGINE_MEDIUM"
	FactorEngineLarge  = "ENGINE_LARGE"
	FactorEngineXLarge = "ENGINE_XLARGE"

	FactorPowerLow      = "POWER_LOW"
	FactorPowerMedium   = "POWER_MEDIUM"
	FactorPowerHigh     = "POWER_HIGH"
	FactorPowerVeryHigh = "POWER_VERY_HIGH"

	FactorCoverageStandard = "COVERAGE_STANDARD"
)

// RatingFactor is one row of the versioned rating table: a multiplier for a
// (category, factor key) pair, valid over an inclusive date interval. A nil
// ValidTo means the row is open-ended.
type RatingFactor struct {
	ID         string            `json:"id"`
	Category   InsuranceCategory `json:"category"`
	FactorKey  string            `json:"factor_key"`
	Multiplier decimal.Decimal   `json:"multiplier"`
	ValidFrom  time.Time         `json:"valid_from"`
	ValidTo    *time.Time        `json:"valid_to,omitempty"`
}

func (f RatingFactor) Validate() error {
	if !f.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, f.Category)
	}
	if f.FactorKey == "" {
		return fmt.Errorf("%w: missing factor key", ErrValidation)
	}
	if !f.Multiplier.IsPositive() {
		return fmt.Errorf("%w: multiplier must be > 0", ErrValidation)
	}
	if f.ValidFrom.IsZero() {
		return fmt.Errorf("%w: missing valid_from", ErrValidation)
	}
	if f.ValidTo != nil && f.ValidTo.Before(f.ValidFrom) {
		return fmt.Errorf("%w: valid_to before valid_from", ErrValidation)
	}
	return nil
}

// Covers reports whether the row's validity interval contains asOf.
// Both bounds are inclusive.
func (f RatingFactor) Covers(asOf time.Time) bool {
	day := DateOnly(asOf)
	if day.Before(DateOnly(f.ValidFrom)) {
		return false
	}
	if f.ValidTo != nil && day.After(DateOnly(*f.ValidTo)) {
		return false
	}
	return true
}

// RatingRepo is the read side of the rating table. Lookup returns the
// multiplier of any row matching (category, key) whose interval contains
// asOf; the second return is false when no row matches, which callers treat
// as the neutral multiplier 1. When several rows match, implementations pick
// one deterministically; callers must not depend on which.
type RatingRepo interface {
	Lookup(ctx context.Context, category InsuranceCategory, key string, asOf time.Time) (decimal.Decimal, bool, error)

	// Put and Retire exist for the rating-table administration surface
	// (seeding, back-office edits). The rating engine never writes.
	Put(ctx context.Context, f RatingFactor) error
	Retire(ctx context.Context, id string, validTo time.Time) error
}

// DateOnly strips the time-of-day component; all policy and rating dates are
// calendar dates compared at UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
