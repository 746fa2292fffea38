// Package committee holds the epoch-indexed snapshots the consensus layer
// queries for membership, stake, and threshold decisions (spec.md §4.5).
// The cache is a read-write-locked, size-bounded epoch cache, grounded on
// the teacher's bft.Engine and chain.Repository: read for every query, write
// only for Update/ReloadStake (WarmStart writes through Update). The DRB
// and first-epoch state live on leader.Schedule under its own lock.
package committee

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"

	"github.com/sequencer-systems/staketable-core/staketable"
	"github.com/sequencer-systems/staketable-core/staketable/fetcher"
)

var logger = log.New("pkg", "committee")

// defaultEpochRetention bounds how many epoch snapshots the cache keeps
// in memory at once, the same bounded-cache idiom the teacher uses for
// block-quality bookkeeping in bft/engine.go; epochs evicted here are
// expected to still be recoverable from Persistence.LoadLatestStake via
// WarmStart.
const defaultEpochRetention = 256

// StakeEntry is one eligible leader's weight.
type StakeEntry struct {
	Key   staketable.BLSPubKey
	Stake *uint256.Int
}

// PeerConfig is the per-validator record the stake-table index stores,
// carrying everything consensus needs to address and weigh a peer.
type PeerConfig struct {
	Entry      StakeEntry
	StateVerKey staketable.SchnorrPubKey
}

// StakeTableIndex maps a BLS public key to its PeerConfig, preserving the
// insertion order of the validator map it was built from (spec.md §4.5).
// Hand-rolled for the same reason as staketable.ValidatorMap: no
// ordered-map library appears anywhere in the retrieval pack.
type StakeTableIndex struct {
	order []staketable.BLSPubKey
	byKey map[staketable.BLSPubKey]PeerConfig
}

func newStakeTableIndex() *StakeTableIndex {
	return &StakeTableIndex{byKey: make(map[staketable.BLSPubKey]PeerConfig)}
}

func (s *StakeTableIndex) insert(key staketable.BLSPubKey, cfg PeerConfig) {
	if _, ok := s.byKey[key]; !ok {
		s.order = append(s.order, key)
	}
	s.byKey[key] = cfg
}

// Get returns the PeerConfig for key, if present.
func (s *StakeTableIndex) Get(key staketable.BLSPubKey) (PeerConfig, bool) {
	cfg, ok := s.byKey[key]
	return cfg, ok
}

// Len reports the number of entries.
func (s *StakeTableIndex) Len() int { return len(s.order) }

// Range iterates entries in insertion order, stopping early if fn returns
// false.
func (s *StakeTableIndex) Range(fn func(key staketable.BLSPubKey, cfg PeerConfig) bool) {
	for _, k := range s.order {
		if !fn(k, s.byKey[k]) {
			return
		}
	}
}

// Keys returns the insertion-ordered list of BLS keys, i.e. the epoch's
// eligible-leader list (spec.md §3's EpochCommittee.eligible_leaders).
func (s *StakeTableIndex) Keys() []staketable.BLSPubKey {
	out := make([]staketable.BLSPubKey, len(s.order))
	copy(out, s.order)
	return out
}

// EpochCommittee is the per-epoch snapshot described in spec.md §3.
type EpochCommittee struct {
	Validators      *staketable.ValidatorMap
	StakeTable      *StakeTableIndex
	EligibleLeaders []staketable.BLSPubKey
	AddressMapping  map[staketable.BLSPubKey]common.Address
}

// Cache is the epoch-indexed committee cache. The zero value is not usable;
// construct with NewCache.
type Cache struct {
	mu sync.RWMutex

	byEpoch     *lru.Cache
	nonEpoch    *EpochCommittee
	blockReward *uint256.Int
}

// NewCache returns an empty cache holding no epochs and no bootstrap
// snapshot, retaining at most defaultEpochRetention epoch snapshots.
func NewCache() *Cache {
	byEpoch, err := lru.New(defaultEpochRetention)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// defaultEpochRetention never is.
		panic(err)
	}
	return &Cache{byEpoch: byEpoch}
}

func buildCommittee(validators *staketable.ValidatorMap) *EpochCommittee {
	index := newStakeTableIndex()
	addresses := make(map[staketable.BLSPubKey]common.Address)

	validators.Range(func(v *staketable.Validator) bool {
		index.insert(v.BLSVK, PeerConfig{
			Entry:       StakeEntry{Key: v.BLSVK, Stake: new(uint256.Int).Set(v.Stake)},
			StateVerKey: v.SchnorrVK,
		})
		addresses[v.BLSVK] = v.Account
		return true
	})

	return &EpochCommittee{
		Validators:      validators,
		StakeTable:      index,
		EligibleLeaders: index.Keys(),
		AddressMapping:  addresses,
	}
}

// Update installs (or replaces) the snapshot for epoch — nil epoch means
// the bootstrap, non-epoch committee — and, if maybeBlockReward is
// non-nil, updates the single global block reward value (spec.md §4.5).
func (c *Cache) Update(epoch *uint64, validators *staketable.ValidatorMap, maybeBlockReward *uint256.Int) {
	committee := buildCommittee(validators)

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch == nil {
		c.nonEpoch = committee
		logger.Info("updated non-epoch committee", "validators", validators.Len())
	} else {
		c.byEpoch.Add(*epoch, committee)
		logger.Info("updated epoch committee", "epoch", *epoch, "validators", validators.Len())
	}

	if maybeBlockReward != nil {
		c.blockReward = new(uint256.Int).Set(maybeBlockReward)
	}
}

// ReloadStake replaces an already-cached epoch's validator map and derived
// index wholesale, e.g. after a late correction to a persisted stake table.
// It is an error to reload an epoch that was never installed via Update or
// WarmStart.
func (c *Cache) ReloadStake(epoch *uint64, validators *staketable.ValidatorMap) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch == nil {
		if c.nonEpoch == nil {
			return &NoNonEpochCommitteeError{}
		}
		c.nonEpoch = buildCommittee(validators)
		return nil
	}

	if _, ok := c.byEpoch.Get(*epoch); !ok {
		return &UnknownEpochError{Epoch: *epoch}
	}
	c.byEpoch.Add(*epoch, buildCommittee(validators))
	return nil
}

// WarmStart seeds a freshly constructed, empty Cache from persisted epoch
// snapshots so a restarted process can answer committee queries for epochs
// it already persisted without refetching or refolding L1 history
// (SPEC_FULL.md §D.1). It loads persistence's most recent entries and
// installs each via Update, the same path a live fetch uses — ReloadStake
// only ever replaces an epoch Update already installed, so it cannot
// bootstrap an empty cache on its own.
func (c *Cache) WarmStart(ctx context.Context, persistence fetcher.Persistence, limit int) error {
	stakes, err := persistence.LoadLatestStake(ctx, limit)
	if err != nil {
		return err
	}

	for _, s := range stakes {
		epoch := s.Epoch
		c.Update(&epoch, s.Validators, nil)
	}
	logger.Info("warm-started committee cache from persisted stakes", "epochs", len(stakes))
	return nil
}

func (c *Cache) lookup(epoch *uint64) (*EpochCommittee, error) {
	if epoch == nil {
		if c.nonEpoch == nil {
			return nil, &NoNonEpochCommitteeError{}
		}
		return c.nonEpoch, nil
	}
	v, ok := c.byEpoch.Get(*epoch)
	if !ok {
		return nil, &UnknownEpochError{Epoch: *epoch}
	}
	return v.(*EpochCommittee), nil
}

// StakeTable returns the stake-table index for epoch.
func (c *Cache) StakeTable(epoch *uint64) (*StakeTableIndex, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	committee, err := c.lookup(epoch)
	if err != nil {
		return nil, err
	}
	return committee.StakeTable, nil
}

// Validators returns the validator map for epoch.
func (c *Cache) Validators(epoch *uint64) (*staketable.ValidatorMap, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	committee, err := c.lookup(epoch)
	if err != nil {
		return nil, err
	}
	return committee.Validators, nil
}

// Address resolves a BLS key to its account within epoch.
func (c *Cache) Address(epoch *uint64, blsKey staketable.BLSPubKey) (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	committee, err := c.lookup(epoch)
	if err != nil {
		return common.Address{}, err
	}
	account, ok := committee.AddressMapping[blsKey]
	if !ok {
		return common.Address{}, &UnknownValidatorError{BLSKey: blsKey}
	}
	return account, nil
}

// ValidatorConfig resolves a BLS key to its PeerConfig within epoch.
func (c *Cache) ValidatorConfig(epoch *uint64, blsKey staketable.BLSPubKey) (PeerConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	committee, err := c.lookup(epoch)
	if err != nil {
		return PeerConfig{}, err
	}
	cfg, ok := committee.StakeTable.Get(blsKey)
	if !ok {
		return PeerConfig{}, &UnknownValidatorError{BLSKey: blsKey}
	}
	return cfg, nil
}

// BlockReward returns the most recently installed global block reward, or
// nil if none has ever been set.
func (c *Cache) BlockReward() *uint256.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.blockReward == nil {
		return nil
	}
	return new(uint256.Int).Set(c.blockReward)
}
