package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRatingRepo is an in-memory rating table for tests; first matching row
// wins, mirroring the deterministic-but-unspecified pick of the real stores.
type memRatingRepo struct {
	mu      sync.RWMutex
	factors []RatingFactor
}

func (r *memRatingRepo) Lookup(_ context.Context, category InsuranceCategory, key string, asOf time.Time) (decimal.Decimal, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.factors {
		if f.Category == category && f.FactorKey == key && f.Covers(asOf) {
			return f.Multiplier, true, nil
		}
	}
	return decimal.Decimal{}, false, nil
}

func (r *memRatingRepo) Put(_ context.Context, f RatingFactor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factors = append(r.factors, f)
	return nil
}

func (r *memRatingRepo) Retire(_ context.Context, id string, validTo time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.factors {
		if r.factors[i].ID == id {
			to := validTo
			r.factors[i].ValidTo = &to
			return nil
		}
	}
	return ErrNotFound
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func testVehicle() Vehicle {
	return Vehicle{
		ID:                "vehicle-1",
		Registration:      "WA 12345",
		EngineCapacityCCM: 1500,
		EnginePowerKW:     140,
		FirstRegistration: date(2018, 2, 1),
	}
}

func openEnded(cat InsuranceCategory, key, mult string, from time.Time) RatingFactor {
	return RatingFactor{
		ID:         string(cat) + "-" + key,
		Category:   cat,
		FactorKey:  key,
		Multiplier: decimal.RequireFromString(mult),
		ValidFrom:  from,
	}
}

func newTestEngine(t *testing.T, factors ...RatingFactor) RatingEngine {
	t.Helper()
	repo := &memRatingRepo{factors: factors}
	engine, err := NewRatingEngine(DefaultRatingConfig(), repo)
	require.NoError(t, err)
	return engine
}

func TestCalculatePremiumExampleScenario(t *testing.T) {
	from := date(2024, 1, 1)
	engine := newTestEngine(t,
		openEnded(CategoryOC, "VEHICLE_AGE_6", "1.20", from),
		openEnded(CategoryOC, FactorEngineMedium, "1.00", from),
		openEnded(CategoryOC, FactorPowerMedium, "1.00", from),
		openEnded(CategoryOC, FactorCoverageStandard, "1.00", from),
	)

	// OC base 800.00, vehicle registered 2018-02-01, effective 2024-02-01:
	// age bucket 6 at 1.20, everything else neutral.
	premium, err := engine.CalculatePremium(context.Background(), CategoryOC, testVehicle(), date(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, mustDec(t, "960.00").Equal(premium), "got %s", premium)
}

func TestCalculatePremiumBreakdown(t *testing.T) {
	from := date(2024, 1, 1)
	engine := newTestEngine(t,
		openEnded(CategoryOC, "VEHICLE_AGE_6", "1.20", from),
		openEnded(CategoryOC, FactorPowerMedium, "1.10", from),
	)

	breakdown, err := engine.CalculatePremiumBreakdown(context.Background(), CategoryOC, testVehicle(), date(2024, 2, 1))
	require.NoError(t, err)

	assert.Equal(t, CategoryOC, breakdown.Category)
	assert.True(t, mustDec(t, "800").Equal(breakdown.BasePremium))
	assert.Len(t, breakdown.Factors, 4)
	assert.True(t, mustDec(t, "1.20").Equal(breakdown.Factors["VEHICLE_AGE_6"]))
	assert.True(t, mustDec(t, "1.10").Equal(breakdown.Factors[FactorPowerMedium]))
	// Unmatched keys resolve to the neutral multiplier.
	assert.True(t, mustDec(t, "1").Equal(breakdown.Factors[FactorEngineMedium]))
	assert.True(t, mustDec(t, "1").Equal(breakdown.Factors[FactorCoverageStandard]))
	// 800 * 1.20 * 1.10 = 1056.00
	assert.True(t, mustDec(t, "1056.00").Equal(breakdown.Premium), "got %s", breakdown.Premium)
}

func TestCalculatePremiumNoMatchingFactorsEqualsBase(t *testing.T) {
	engine := newTestEngine(t) // empty table

	premium, err := engine.CalculatePremium(context.Background(), CategoryAC, testVehicle(), date(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, mustDec(t, "1200.00").Equal(premium), "got %s", premium)
}

func TestCalculatePremiumPerCategoryBase(t *testing.T) {
	engine := newTestEngine(t)

	for cat, want := range map[InsuranceCategory]string{
		CategoryOC:  "800.00",
		CategoryAC:  "1200.00",
		CategoryNNW: "300.00",
	} {
		premium, err := engine.CalculatePremium(context.Background(), cat, testVehicle(), date(2024, 2, 1))
		require.NoError(t, err)
		assert.True(t, mustDec(t, want).Equal(premium), "category %s: got %s", cat, premium)
	}
}

func TestCalculatePremiumOrderIndependent(t *testing.T) {
	from := date(2024, 1, 1)
	rows := []RatingFactor{
		openEnded(CategoryOC, "VEHICLE_AGE_6", "1.23", from),
		openEnded(CategoryOC, FactorEngineMedium, "0.97", from),
		openEnded(CategoryOC, FactorPowerMedium, "1.08", from),
		openEnded(CategoryOC, FactorCoverageStandard, "1.02", from),
	}
	permuted := []RatingFactor{rows[2], rows[0], rows[3], rows[1]}

	a := newTestEngine(t, rows...)
	b := newTestEngine(t, permuted...)

	pa, err := a.CalculatePremium(context.Background(), CategoryOC, testVehicle(), date(2024, 2, 1))
	require.NoError(t, err)
	pb, err := b.CalculatePremium(context.Background(), CategoryOC, testVehicle(), date(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, pa.Equal(pb), "%s != %s", pa, pb)
}

func TestCalculatePremiumDeterministic(t *testing.T) {
	from := date(2024, 1, 1)
	engine := newTestEngine(t,
		openEnded(CategoryOC, "VEHICLE_AGE_6", "1.17", from),
		openEnded(CategoryOC, FactorEngineMedium, "1.03", from),
	)

	first, err := engine.CalculatePremium(context.Background(), CategoryOC, testVehicle(), date(2024, 2, 1))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := engine.CalculatePremium(context.Background(), CategoryOC, testVehicle(), date(2024, 2, 1))
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
}

func TestCalculatePremiumTemporalValidity(t *testing.T) {
	old := RatingFactor{
		ID: "old", Category: CategoryOC, FactorKey: "VEHICLE_AGE_6",
		Multiplier: decimal.RequireFromString("1.50"),
		ValidFrom:  date(2020, 1, 1),
	}
	retired := date(2023, 12, 31)
	old.ValidTo = &retired

	current := openEnded(CategoryOC, "VEHICLE_AGE_6", "1.20", date(2024, 1, 1))

	engine := newTestEngine(t, old, current)

	// Effective inside the retired window picks the old multiplier.
	premium, err := engine.CalculatePremium(context.Background(), CategoryOC, Vehicle{
		EngineCapacityCCM: 1500, EnginePowerKW: 140,
		FirstRegistration: date(2017, 6, 1),
	}, date(2023, 6, 1))
	require.NoError(t, err)
	assert.True(t, mustDec(t, "1200.00").Equal(premium), "got %s", premium)

	// Effective after retirement picks the current one.
	premium, err = engine.CalculatePremium(context.Background(), CategoryOC, testVehicle(), date(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, mustDec(t, "960.00").Equal(premium), "got %s", premium)
}

func TestCalculatePremiumRoundsHalfUp(t *testing.T) {
	from := date(2024, 1, 1)
	engine := newTestEngine(t,
		openEnded(CategoryOC, "VEHICLE_AGE_6", "1.0000156", from),
	)

	// 800 * 1.0000156 = 800.01248 -> 800.01
	premium, err := engine.CalculatePremium(context.Background(), CategoryOC, testVehicle(), date(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, mustDec(t, "800.01").Equal(premium), "got %s", premium)

	engine = newTestEngine(t,
		openEnded(CategoryOC, "VEHICLE_AGE_6", "1.00001875", from),
	)
	// 800 * 1.00001875 = 800.015 -> half-up -> 800.02
	premium, err = engine.CalculatePremium(context.Background(), CategoryOC, testVehicle(), date(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, mustDec(t, "800.02").Equal(premium), "got %s", premium)
}

func TestCalculatePremiumValidation(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.CalculatePremium(context.Background(), "XX", testVehicle(), date(2024, 2, 1))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = engine.CalculatePremium(context.Background(), CategoryOC, Vehicle{}, date(2024, 2, 1))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = engine.CalculatePremium(context.Background(), CategoryOC, testVehicle(), time.Time{})
	assert.ErrorIs(t, err, ErrValidation)
}

type failingRatingRepo struct{ memRatingRepo }

func (r *failingRatingRepo) Lookup(context.Context, InsuranceCategory, string, time.Time) (decimal.Decimal, bool, error) {
	return decimal.Decimal{}, false, context.DeadlineExceeded
}

func TestCalculatePremiumWrapsLookupFailures(t *testing.T) {
	engine, err := NewRatingEngine(DefaultRatingConfig(), &failingRatingRepo{})
	require.NoError(t, err)

	_, err = engine.CalculatePremium(context.Background(), CategoryOC, testVehicle(), date(2024, 2, 1))
	require.ErrorIs(t, err, ErrCalculation)
	assert.Contains(t, err.Error(), "OC")
}

func TestVehicleAgeBucketCap(t *testing.T) {
	from := date(2024, 1, 1)
	engine := newTestEngine(t,
		openEnded(CategoryOC, "VEHICLE_AGE_10", "2.00", from),
	)

	// 25-year-old vehicle shares the capped bucket.
	premium, err := engine.CalculatePremium(context.Background(), CategoryOC, Vehicle{
		EngineCapacityCCM: 1500, EnginePowerKW: 140,
		FirstRegistration: date(1999, 2, 1),
	}, date(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, mustDec(t, "1600.00").Equal(premium), "got %s", premium)
}

func TestEngineBucketEdges(t *testing.T) {
	cfg := DefaultRatingConfig()

	cases := []struct {
		value int
		table []EngineBucket
		want  string
	}{
		{1000, cfg.DisplacementBuckets, FactorEngineSmall},
		{1001, cfg.DisplacementBuckets, FactorEngineMedium},
		{1600, cfg.DisplacementBuckets, FactorEngineMedium},
		{2500, cfg.DisplacementBuckets, FactorEngineLarge},
		{2501, cfg.DisplacementBuckets, FactorEngineXLarge},
		{70, cfg.PowerBuckets, FactorPowerLow},
		{150, cfg.PowerBuckets, FactorPowerMedium},
		{250, cfg.PowerBuckets, FactorPowerHigh},
		{251, cfg.PowerBuckets, FactorPowerVeryHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, bucketKey(tc.table, tc.value), "value %d", tc.value)
	}
}
