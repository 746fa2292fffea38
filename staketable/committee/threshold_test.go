package committee

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedFormSuccess(t *testing.T, n *uint256.Int) *uint256.Int {
	t.Helper()
	half := new(uint256.Int).Rsh(maxU256(), 1)
	if n.Lt(half) {
		return new(uint256.Int).Add(new(uint256.Int).Div(new(uint256.Int).Mul(n, uint256.NewInt(2)), uint256.NewInt(3)), uint256.NewInt(1))
	}
	return new(uint256.Int).Add(new(uint256.Int).Mul(new(uint256.Int).Div(n, uint256.NewInt(3)), uint256.NewInt(2)), uint256.NewInt(2))
}

func TestSuccessThreshold_NeverOverflows(t *testing.T) {
	max := maxU256()
	values := []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(1),
		uint256.NewInt(3),
		new(uint256.Int).Lsh(uint256.NewInt(3), 254),
		max,
	}
	for _, n := range values {
		got, err := SuccessThreshold(n)
		require.NoError(t, err)
		assert.Equal(t, closedFormSuccess(t, n), got, "n=%s", n.Hex())
	}
}

func TestFailureThreshold(t *testing.T) {
	got, err := FailureThreshold(uint256.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(4), got) // 10/3+1 == 4
}

func TestUpgradeThreshold_AtLeastSuccess(t *testing.T) {
	n := uint256.NewInt(1000)
	success, err := SuccessThreshold(n)
	require.NoError(t, err)
	upgrade, err := UpgradeThreshold(n)
	require.NoError(t, err)
	assert.True(t, upgrade.Cmp(success) >= 0)
}

func TestUpgradeThreshold_NeverOverflows(t *testing.T) {
	for _, n := range []*uint256.Int{uint256.NewInt(0), uint256.NewInt(1), maxU256()} {
		_, err := UpgradeThreshold(n)
		require.NoError(t, err)
	}
}

func TestDASuccessThreshold_MatchesSuccessThreshold(t *testing.T) {
	n := uint256.NewInt(777)
	success, err := SuccessThreshold(n)
	require.NoError(t, err)
	da, err := DASuccessThreshold(n)
	require.NoError(t, err)
	assert.Equal(t, success, da)
}
