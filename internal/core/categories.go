package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InsuranceCategory is the product line a policy is issued under.
type InsuranceCategory string

const (
	CategoryOC  InsuranceCategory = "OC"  // third-party liability
	CategoryAC  InsuranceCategory = "AC"  // comprehensive
	CategoryNNW InsuranceCategory = "NNW" // personal accident
)

// Categories lists every supported insurance category.
func Categories() []InsuranceCategory {
	return []InsuranceCategory{CategoryOC, CategoryAC, CategoryNNW}
}

// Valid reports whether c is one of the supported categories.
func (c InsuranceCategory) Valid() bool {
	switch c {
	case CategoryOC, CategoryAC, CategoryNNW:
		return true
	}
	return false
}

// EngineBucket maps a technical reading (displacement, power) to a rating
// factor key. Max is inclusive; the last bucket of a list is selected with
// Max ignored.
type EngineBucket struct {
	Max int
	Key string
}

// RatingConfig carries the static pricing table the rating engine is built
// with. It is passed in explicitly so tests can swap pricing without touching
// globals.
type RatingConfig struct {
	// BasePremiums holds the annual base premium per category.
	BasePremiums map[InsuranceCategory]decimal.Decimal
	// DefaultBasePremium applies to any category missing from BasePremiums.
	DefaultBasePremium decimal.Decimal

	// MaxVehicleAgeBucket caps the vehicle-age factor key; older vehicles
	// share the cap bucket.
	MaxVehicleAgeBucket int

	// DisplacementBuckets and PowerBuckets are ordered by ascending Max.
	DisplacementBuckets []EngineBucket
	PowerBuckets        []EngineBucket

	// CoverageFactorKeys names the baseline coverage factor per category.
	CoverageFactorKeys map[InsuranceCategory]string
}

// DefaultRatingConfig returns the production pricing table.
func DefaultRatingConfig() RatingConfig {
	return RatingConfig{
		BasePremiums: map[InsuranceCategory]decimal.Decimal{
			CategoryOC:  decimal.NewFromInt(800),
			CategoryAC:  decimal.NewFromInt(1200),
			CategoryNNW: decimal.NewFromInt(300),
		},
		DefaultBasePremium:  decimal.NewFromInt(1000),
		MaxVehicleAgeBucket: 10,
		DisplacementBuckets: []EngineBucket{
			{Max: 1000, Key: FactorEngineSmall},
			{Max: 1600, Key: FactorEngineMedium},
			{Max: 2500, Key: FactorEngineLarge},
			{Key: FactorEngineXLarge},
		},
		PowerBuckets: []EngineBucket{
			{Max: 70, Key: FactorPowerLow},
			{Max: 150, Key: FactorPowerMedium},
			{Max: 250, Key: FactorPowerHigh},
			{Key: FactorPowerVeryHigh},
		},
		CoverageFactorKeys: map[InsuranceCategory]string{
			CategoryOC:  FactorCoverageStandard,
			CategoryAC:  FactorCoverageStandard,
			CategoryNNW: FactorCoverageStandard,
		},
	}
}

// BasePremium resolves the base premium for a category, falling back to the
// documented default for categories outside the table.
func (c RatingConfig) BasePremium(cat InsuranceCategory) decimal.Decimal {
	if base, ok := c.BasePremiums[cat]; ok {
		return base
	}
	return c.DefaultBasePremium
}

func (c RatingConfig) Validate() error {
	if c.MaxVehicleAgeBucket <= 0 {
		return fmt.Errorf("%w: vehicle age bucket cap must be > 0", ErrValidation)
	}
	if len(c.DisplacementBuckets) == 0 || len(c.PowerBuckets) == 0 {
		return fmt.Errorf("%w: engine bucket tables must not be empty", ErrValidation)
	}
	for cat, base := range c.BasePremiums {
		if base.IsNegative() {
			return fmt.Errorf("%w: negative base premium for category %s", ErrValidation, cat)
		}
	}
	return nil
}
