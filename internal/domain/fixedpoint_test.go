package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDiv_WideIntermediate(t *testing.T) {
	v, err := MulDiv(math.MaxUint64, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/2), v)
}

func TestMulDiv_Overflow(t *testing.T) {
	_, err := MulDiv(math.MaxUint64, 2, 1)
	assert.ErrorIs(t, err, ErrOverflow)
	_, err = MulDiv(1, 1, 0)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestSignedMulDiv_TruncatesTowardZero(t *testing.T) {
	v, err := SignedMulDiv(-7, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), v)

	v, err = SignedMulDiv(7, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestPow10(t *testing.T) {
	v, err := Pow10(19)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000_000_000_000_000), v)
	_, err = Pow10(20)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestScaleDecimals(t *testing.T) {
	v, err := ScaleDecimals(1_234_567, 6, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_234), v)
	v, err = ScaleDecimals(5, 6, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), v)
}

func TestAddChecks(t *testing.T) {
	_, err := AddUint64(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrOverflow)
	_, err = AddInt64(math.MinInt64, -1)
	assert.ErrorIs(t, err, ErrOverflow)
	v, err := AddInt64(-5, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), v)
}

func TestApplySign_MinInt64(t *testing.T) {
	assert.Equal(t, uint64(1)<<63, AbsInt64(math.MinInt64))
	v, err := applySign(uint64(1)<<63, true)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v)
}

func TestVaultError_Unwraps(t *testing.T) {
	err := &VaultError{Index: 4, Op: "settle", Err: ErrNotYetExpired}
	assert.True(t, errors.Is(err, ErrNotYetExpired))
	assert.Equal(t, "vault 4: settle: not yet expired", err.Error())
	assert.True(t, IsSequencing(err))
	assert.False(t, IsInvariant(err))
}
