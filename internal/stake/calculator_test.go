package stake_test

import (
	"testing"

	"github.com/hoopsight/bankguard/internal/domain"
	"github.com/hoopsight/bankguard/internal/stake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_CapBinds(t *testing.T) {
	// p=0.9, o=2.0 -> f* = 0.8; quarter kelly -> 0.2 of bankroll = 200,
	// but the 5% cap limits the stake to 50.
	res, err := stake.Calculate(0.9, 2.0, 0.25, 1000, stake.DefaultConfig())
	require.NoError(t, err)

	assert.InDelta(t, 0.8, res.FullKelly, 1e-9)
	assert.InDelta(t, 0.2, res.AppliedFraction, 1e-9)
	assert.InDelta(t, 50, res.StakeUnits, 1e-9)
	assert.True(t, res.Capped)
	assert.False(t, res.Zeroed)
}

func TestCalculate_UnderCap(t *testing.T) {
	// p=0.6, o=1.9 -> f* = (0.14)/(0.9) ~ 0.1556; quarter kelly ~ 3.89%.
	res, err := stake.Calculate(0.6, 1.9, 0.25, 1000, stake.DefaultConfig())
	require.NoError(t, err)

	assert.False(t, res.Capped)
	assert.Greater(t, res.StakeUnits, 0.0)
	assert.Less(t, res.StakeUnits, 50.0)
	assert.InDelta(t, 38.88, res.StakeUnits, 0.02)
}

func TestCalculate_InvalidOdds(t *testing.T) {
	_, err := stake.Calculate(0.6, 1.0, 0.25, 1000, stake.DefaultConfig())
	assert.ErrorIs(t, err, domain.ErrInvalidOdds)

	_, err = stake.Calculate(0.6, 0.5, 0.25, 1000, stake.DefaultConfig())
	assert.ErrorIs(t, err, domain.ErrInvalidOdds)
}

func TestCalculate_NegativeEdgeZeroes(t *testing.T) {
	// p*o < 1 -> f* clamps to 0 -> stake 0, reported as zeroed.
	res, err := stake.Calculate(0.4, 2.0, 0.25, 1000, stake.DefaultConfig())
	require.NoError(t, err)

	assert.Zero(t, res.FullKelly)
	assert.Zero(t, res.StakeUnits)
	assert.True(t, res.Zeroed)
}

func TestCalculate_FloorsToMinimumUnit(t *testing.T) {
	res, err := stake.Calculate(0.9, 2.0, 0.25, 1000, stake.Config{MaxStakePct: 0.05, MinUnit: 7})
	require.NoError(t, err)

	// Cap gives 50; flooring to units of 7 gives 49.
	assert.InDelta(t, 49, res.StakeUnits, 1e-9)
}

func TestCalculate_TinyBankrollZeroes(t *testing.T) {
	res, err := stake.Calculate(0.6, 1.9, 0.25, 0.1, stake.DefaultConfig())
	require.NoError(t, err)

	assert.Zero(t, res.StakeUnits)
	assert.True(t, res.Zeroed)
}

func TestCalculate_FullKellyClampedToOne(t *testing.T) {
	// Certain win at long odds would exceed the whole bankroll without
	// the [0,1] clamp.
	res, err := stake.Calculate(1.0, 10.0, 1.0, 1000, stake.Config{MaxStakePct: 2, MinUnit: 0.01})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, res.FullKelly, 1e-9)
	assert.InDelta(t, 1000, res.StakeUnits, 1e-9)
}
