package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- PegRegistry ---

func TestPegRegistry_ExplicitPairsOnly(t *testing.T) {
	r := NewPegRegistry([2]string{"USDC", "USDT"})
	assert.True(t, r.Pegged("usdt", "USDC"))
	assert.True(t, r.Pegged("SUI", "sui"))
	assert.False(t, r.Pegged("WUSDC", "USDC"), "suffix match is not a peg")
	assert.False(t, r.Pegged("SUI", "USDC"))
}

func TestPegRegistry_NilOnlySelf(t *testing.T) {
	var r *PegRegistry
	assert.True(t, r.Pegged("X", "x"))
	assert.False(t, r.Pegged("X", "Y"))
}

// --- incentive math ---

func TestTheoreticalIncentive_Daily(t *testing.T) {
	// 3.65M * 10% / 365
	v, err := TheoreticalIncentive(3_650_000, 1_000, PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), v)
}

func TestTheoreticalIncentive_Weekly(t *testing.T) {
	v, err := TheoreticalIncentive(5_200_000, 10_000, PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), v)
}

func TestTranche(t *testing.T) {
	v, err := Tranche(1_000, 250, 1_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), v)

	v, err = Tranche(1_000, 2_000, 1_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), v)

	v, err = Tranche(1_000, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestCapGrant_TakesTheSmallest(t *testing.T) {
	assert.Equal(t, uint64(300), CapGrant(1_000, 300, 500))
	assert.Equal(t, uint64(500), CapGrant(1_000, 3_000, 500))
	assert.Equal(t, uint64(100), CapGrant(100, 3_000, 500))
}

func TestFixedIncentiveAvailable(t *testing.T) {
	assert.Equal(t, uint64(50), FixedIncentiveAvailable(100, 50))
	assert.Equal(t, uint64(100), FixedIncentiveAvailable(100, 500))
}

func TestIncentiveGrant_Net(t *testing.T) {
	g := IncentiveGrant{Token: "USDC", Amount: 100, Fee: 10, FixedToken: "DEEP", FixedAmount: 5, FixedFee: 5}
	assert.Equal(t, []TokenAmount{{Token: "USDC", Amount: 90}}, g.Net())
}
