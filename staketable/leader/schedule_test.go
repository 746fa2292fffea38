package leader

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sequencer-systems/staketable-core/staketable"
	"github.com/sequencer-systems/staketable-core/staketable/committee"
)

type fakeAuth struct{}

func (fakeAuth) AuthenticateRegistration(e staketable.RegisterV2Event) error { return nil }
func (fakeAuth) AuthenticateKeyUpdate(e staketable.KeyUpdateV2Event) error   { return nil }

func blsKey(b byte) staketable.BLSPubKey {
	var k staketable.BLSPubKey
	k[0] = b
	return k
}

func threeValidators(t *testing.T) *staketable.ValidatorMap {
	t.Helper()
	events := []staketable.Event{
		staketable.RegisterEvent{Account: common.Address{1}, BLSVK: blsKey(1)},
		staketable.RegisterEvent{Account: common.Address{2}, BLSVK: blsKey(2)},
		staketable.RegisterEvent{Account: common.Address{3}, BLSVK: blsKey(3)},
		staketable.DelegateEvent{Delegator: common.Address{9}, Validator: common.Address{1}, Amount: uint256.NewInt(10)},
		staketable.DelegateEvent{Delegator: common.Address{9}, Validator: common.Address{2}, Amount: uint256.NewInt(20)},
		staketable.DelegateEvent{Delegator: common.Address{9}, Validator: common.Address{3}, Amount: uint256.NewInt(70)},
	}
	validators, err := staketable.FoldEvents(events, fakeAuth{})
	require.NoError(t, err)
	return validators
}

func TestLookupLeader_NonEpochModuloSelection(t *testing.T) {
	cache := committee.NewCache()
	cache.Update(nil, threeValidators(t), nil)
	schedule := NewSchedule(cache)

	leader, err := schedule.LookupLeader(0, nil)
	require.NoError(t, err)
	assert.Equal(t, blsKey(1), leader)

	leader, err = schedule.LookupLeader(1, nil)
	require.NoError(t, err)
	assert.Equal(t, blsKey(2), leader)

	leader, err = schedule.LookupLeader(3, nil) // wraps: 3 mod 3 == 0
	require.NoError(t, err)
	assert.Equal(t, blsKey(1), leader)
}

func TestSetFirstEpoch_SeedsBothEpochs(t *testing.T) {
	cache := committee.NewCache()
	cache.Update(nil, threeValidators(t), nil)
	schedule := NewSchedule(cache)

	require.NoError(t, schedule.SetFirstEpoch(10, [32]byte{1, 2, 3}))

	epoch10 := uint64(10)
	_, err := schedule.LookupLeader(0, &epoch10)
	require.NoError(t, err)

	epoch11 := uint64(11)
	_, err = schedule.LookupLeader(0, &epoch11)
	require.NoError(t, err)
}

func TestLookupLeader_EpochBeforeFirstEpochIsError(t *testing.T) {
	cache := committee.NewCache()
	cache.Update(nil, threeValidators(t), nil)
	schedule := NewSchedule(cache)
	require.NoError(t, schedule.SetFirstEpoch(10, [32]byte{1}))

	epoch := uint64(5)
	_, err := schedule.LookupLeader(0, &epoch)
	var lookupErr *LeaderLookupError
	require.ErrorAs(t, err, &lookupErr)
}

func TestLookupLeader_InconsistentCombinationIsError(t *testing.T) {
	cache := committee.NewCache()
	cache.Update(nil, threeValidators(t), nil)
	schedule := NewSchedule(cache)
	require.NoError(t, schedule.SetFirstEpoch(10, [32]byte{1}))

	_, err := schedule.LookupLeader(0, nil)
	var lookupErr *LeaderLookupError
	require.ErrorAs(t, err, &lookupErr)
}

func TestAddDRBResult_MissingCommitteeLogsAndReturns(t *testing.T) {
	cache := committee.NewCache()
	schedule := NewSchedule(cache)
	schedule.AddDRBResult(99, [32]byte{1}) // must not panic; committee doesn't exist
}

func TestAddDRBResult_BuildsDeterministicCDF(t *testing.T) {
	cache := committee.NewCache()
	epoch := uint64(1)
	cache.Update(&epoch, threeValidators(t), nil)
	schedule := NewSchedule(cache)
	schedule.AddDRBResult(epoch, [32]byte{7, 7, 7})
	schedule.firstEpoch = &epoch

	leaderA, errA := schedule.LookupLeader(42, &epoch)
	leaderB, errB := schedule.LookupLeader(42, &epoch)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, leaderA, leaderB, "same DRB and view must select the same leader")
}
