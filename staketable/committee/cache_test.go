package committee

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sequencer-systems/staketable-core/staketable"
	"github.com/sequencer-systems/staketable-core/staketable/fetcher"
)

// fakePersistence is a minimal fetcher.Persistence stub exercising only the
// warm-start path (LoadLatestStake); the other methods are never called by
// Cache.WarmStart.
type fakePersistence struct {
	stakes []fetcher.EpochStake
	err    error
}

func (p *fakePersistence) LoadEvents(ctx context.Context, toBlock uint64) (*fetcher.ReadOffset, []staketable.KeyedEvent, error) {
	panic("not used by WarmStart")
}
func (p *fakePersistence) StoreEvents(ctx context.Context, toBlock uint64, events []staketable.KeyedEvent) error {
	panic("not used by WarmStart")
}
func (p *fakePersistence) StoreStake(ctx context.Context, epoch uint64, validators *staketable.ValidatorMap) error {
	panic("not used by WarmStart")
}
func (p *fakePersistence) LoadLatestStake(ctx context.Context, limit int) ([]fetcher.EpochStake, error) {
	return p.stakes, p.err
}

func buildValidators(t *testing.T, events []staketable.Event) *staketable.ValidatorMap {
	t.Helper()
	validators, err := staketable.FoldEvents(events, fakeAuth{})
	require.NoError(t, err)
	return validators
}

type fakeAuth struct{}

func (fakeAuth) AuthenticateRegistration(e staketable.RegisterV2Event) error { return nil }
func (fakeAuth) AuthenticateKeyUpdate(e staketable.KeyUpdateV2Event) error   { return nil }

func blsKey(b byte) staketable.BLSPubKey {
	var k staketable.BLSPubKey
	k[0] = b
	return k
}

func TestCache_UpdateAndQueryEpoch(t *testing.T) {
	account := common.Address{1}
	events := []staketable.Event{
		staketable.RegisterEvent{Account: account, BLSVK: blsKey(1), Commission: 0},
		staketable.DelegateEvent{Delegator: common.Address{9}, Validator: account, Amount: uint256.NewInt(5)},
	}
	validators := buildValidators(t, events)

	cache := NewCache()
	epoch := uint64(3)
	cache.Update(&epoch, validators, nil)

	got, err := cache.Validators(&epoch)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	stakeTable, err := cache.StakeTable(&epoch)
	require.NoError(t, err)
	assert.Equal(t, 1, stakeTable.Len())

	resolved, err := cache.Address(&epoch, blsKey(1))
	require.NoError(t, err)
	assert.Equal(t, account, resolved)

	cfg, err := cache.ValidatorConfig(&epoch, blsKey(1))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(5), cfg.Entry.Stake)
}

func TestCache_UnknownEpoch(t *testing.T) {
	cache := NewCache()
	epoch := uint64(1)
	_, err := cache.Validators(&epoch)
	var unknownEpoch *UnknownEpochError
	require.ErrorAs(t, err, &unknownEpoch)
}

func TestCache_NonEpochBootstrap(t *testing.T) {
	account := common.Address{2}
	validators := buildValidators(t, []staketable.Event{
		staketable.RegisterEvent{Account: account, BLSVK: blsKey(2)},
	})
	cache := NewCache()
	cache.Update(nil, validators, nil)

	got, err := cache.Validators(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestCache_BlockRewardUpdatedOnlyWhenPresent(t *testing.T) {
	cache := NewCache()
	epoch := uint64(1)
	validators := staketable.NewValidatorMap()

	cache.Update(&epoch, validators, uint256.NewInt(42))
	assert.Equal(t, uint256.NewInt(42), cache.BlockReward())

	cache.Update(&epoch, validators, nil)
	assert.Equal(t, uint256.NewInt(42), cache.BlockReward(), "block reward must not reset when absent")
}

func TestCache_ReloadStakeRequiresExistingEpoch(t *testing.T) {
	cache := NewCache()
	epoch := uint64(5)
	err := cache.ReloadStake(&epoch, staketable.NewValidatorMap())
	var unknownEpoch *UnknownEpochError
	require.ErrorAs(t, err, &unknownEpoch)

	cache.Update(&epoch, staketable.NewValidatorMap(), nil)
	require.NoError(t, cache.ReloadStake(&epoch, staketable.NewValidatorMap()))
}

func TestCache_WarmStartSeedsEmptyCacheFromPersistence(t *testing.T) {
	account := common.Address{3}
	validators := buildValidators(t, []staketable.Event{
		staketable.RegisterEvent{Account: account, BLSVK: blsKey(3)},
	})
	persistence := &fakePersistence{stakes: []fetcher.EpochStake{
		{Epoch: 7, Validators: validators},
	}}

	cache := NewCache()
	epoch := uint64(7)

	_, err := cache.Validators(&epoch)
	var unknownEpoch *UnknownEpochError
	require.ErrorAs(t, err, &unknownEpoch, "cache must start empty")

	require.NoError(t, cache.WarmStart(context.Background(), persistence, 10))

	got, err := cache.Validators(&epoch)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	// ReloadStake, previously unusable against an empty cache, now works
	// against the epoch WarmStart installed.
	require.NoError(t, cache.ReloadStake(&epoch, validators))
}

func TestCache_WarmStartPropagatesPersistenceError(t *testing.T) {
	persistence := &fakePersistence{err: assert.AnError}
	cache := NewCache()
	err := cache.WarmStart(context.Background(), persistence, 10)
	require.ErrorIs(t, err, assert.AnError)
}
