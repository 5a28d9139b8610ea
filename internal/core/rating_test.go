package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRatingFactorCovers(t *testing.T) {
	to := date(2024, 6, 30)
	row := RatingFactor{
		Category:   CategoryOC,
		FactorKey:  FactorEngineMedium,
		Multiplier: decimal.RequireFromString("1.05"),
		ValidFrom:  date(2024, 1, 1),
		ValidTo:    &to,
	}

	assert.False(t, row.Covers(date(2023, 12, 31)))
	assert.True(t, row.Covers(date(2024, 1, 1)))
	assert.True(t, row.Covers(date(2024, 6, 30)))
	assert.False(t, row.Covers(date(2024, 7, 1)))

	// Time of day never matters.
	assert.True(t, row.Covers(time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)))

	row.ValidTo = nil
	assert.True(t, row.Covers(date(2030, 1, 1)))
}

func TestRatingFactorValidate(t *testing.T) {
	valid := RatingFactor{
		Category:   CategoryAC,
		FactorKey:  FactorPowerHigh,
		Multiplier: decimal.RequireFromString("1.20"),
		ValidFrom:  date(2024, 1, 1),
	}
	assert.NoError(t, valid.Validate())

	cases := map[string]func(*RatingFactor){
		"bad category":        func(f *RatingFactor) { f.Category = "XX" },
		"missing key":         func(f *RatingFactor) { f.FactorKey = "" },
		"zero multiplier":     func(f *RatingFactor) { f.Multiplier = decimal.Zero },
		"negative multiplier": func(f *RatingFactor) { f.Multiplier = decimal.RequireFromString("-1") },
		"missing valid_from":  func(f *RatingFactor) { f.ValidFrom = time.Time{} },
		"inverted interval":   func(f *RatingFactor) { to := date(2023, 1, 1); f.ValidTo = &to },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := valid
			mutate(&f)
			assert.ErrorIs(t, f.Validate(), ErrValidation)
		})
	}
}

func TestDateOnly(t *testing.T) {
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	// 00:30 local on July 1st is still June 30th in UTC.
	local := time.Date(2024, 7, 1, 0, 30, 0, 0, warsaw)
	assert.True(t, DateOnly(local).Equal(date(2024, 6, 30)))

	assert.True(t, DateOnly(date(2024, 7, 1)).Equal(date(2024, 7, 1)))
}
