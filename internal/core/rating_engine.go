package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PremiumBreakdown exposes the rating engine's work for transparency:
// the category base premium, every derived factor with its resolved
// multiplier, and the final rounded premium.
type PremiumBreakdown struct {
	Category    InsuranceCategory          `json:"category"`
	BasePremium decimal.Decimal            `json:"base_premium"`
	Factors     map[string]decimal.Decimal `json:"factors"`
	Premium     decimal.Decimal            `json:"premium"`
}

// RatingEngine prices a policy for a category, a vehicle's technical
// attributes and an effective date.
type RatingEngine interface {
	CalculatePremium(ctx context.Context, category InsuranceCategory, vehicle Vehicle, effectiveDate time.Time) (decimal.Decimal, error)
	CalculatePremiumBreakdown(ctx context.Context, category InsuranceCategory, vehicle Vehicle, effectiveDate time.Time) (PremiumBreakdown, error)
}

type ratingEngine struct {
	cfg    RatingConfig
	rating RatingRepo
}

func NewRatingEngine(cfg RatingConfig, rating RatingRepo) (RatingEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rating config: %w", err)
	}
	if rating == nil {
		return nil, fmt.Errorf("%w: missing rating repo", ErrValidation)
	}
	return &ratingEngine{cfg: cfg, rating: rating}, nil
}

func (e *ratingEngine) CalculatePremium(ctx context.Context, category InsuranceCategory, vehicle Vehicle, effectiveDate time.Time) (decimal.Decimal, error) {
	breakdown, err := e.CalculatePremiumBreakdown(ctx, category, vehicle, effectiveDate)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return breakdown.Premium, nil
}

func (e *ratingEngine) CalculatePremiumBreakdown(ctx context.Context, category InsuranceCategory, vehicle Vehicle, effectiveDate time.Time) (PremiumBreakdown, error) {
	// Validate everything up front; no lookup happens on bad input.
	if !category.Valid() {
		return PremiumBreakdown{}, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}
	if err := vehicle.Validate(); err != nil {
		return PremiumBreakdown{}, err
	}
	if effectiveDate.IsZero() {
		return PremiumBreakdown{}, fmt.Errorf("%w: missing effective date", ErrValidation)
	}

	base := e.cfg.BasePremium(category)
	keys := e.factorKeys(category, vehicle, effectiveDate)

	factors := make(map[string]decimal.Decimal, len(keys))
	premium := base
	for _, key := range keys {
		mult, ok, err := e.rating.Lookup(ctx, category, key, effectiveDate)
		if err != nil {
			return PremiumBreakdown{}, fmt.Errorf("%w: category %s: lookup %s: %v", ErrCalculation, category, key, err)
		}
		if !ok {
			// Missing coverage is not an error; the neutral multiplier
			// leaves the premium untouched.
			mult = decimal.NewFromInt(1)
		}
		factors[key] = mult
		premium = premium.Mul(mult)
	}

	// Round half away from zero to cents.
	premium = premium.Round(2)

	return PremiumBreakdown{
		Category:    category,
		BasePremium: base,
		Factors:     factors,
		Premium:     premium,
	}, nil
}

// factorKeys derives the fixed set of rating-factor keys for a calculation.
// Multiplication is commutative, so the order carries no meaning.
func (e *ratingEngine) factorKeys(category InsuranceCategory, vehicle Vehicle, effectiveDate time.Time) []string {
	age := vehicle.AgeYears(effectiveDate)
	if age > e.cfg.MaxVehicleAgeBucket {
		age = e.cfg.MaxVehicleAgeBucket
	}

	keys := []string{
		fmt.Sprintf("%s%d", FactorVehicleAgePrefix, age),
		bucketKey(e.cfg.DisplacementBuckets, vehicle.EngineCapacityCCM),
		bucketKey(e.cfg.PowerBuckets, vehicle.EnginePowerKW),
	}
	if coverage, ok := e.cfg.CoverageFactorKeys[category]; ok {
		keys = append(keys, coverage)
	}
	return keys
}

// bucketKey selects the first bucket whose inclusive Max covers the value;
// the last bucket is the unbounded catch-all.
func bucketKey(buckets []EngineBucket, value int) string {
	for i, b := range buckets {
		if i == len(buckets)-1 || value <= b.Max {
			return b.Key
		}
	}
	return ""
}
