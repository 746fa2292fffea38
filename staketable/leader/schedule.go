package leader

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/sequencer-systems/staketable-core/staketable"
	"github.com/sequencer-systems/staketable-core/staketable/committee"
)

var logger = log.New("pkg", "leader")

// Schedule answers leader(view, epoch) queries, backed by a committee
// cache it never mutates and its own epoch-keyed map of derived CDFs
// (spec.md §4.6). A *committee.Cache handle flows in one direction, from
// Schedule to Cache — Cache has no knowledge of Schedule.
type Schedule struct {
	cache *committee.Cache

	mu         sync.RWMutex
	firstEpoch *uint64
	// committees is keyed by epoch; the reference implementation uses a
	// BTreeMap purely to make epoch pruning and debug dumps ordered, a
	// property this map doesn't need since every access here is by exact
	// epoch key.
	committees map[uint64]*RandomizedCommittee
}

// NewSchedule returns a Schedule with no epochs seeded yet; call
// SetFirstEpoch before any epoch-scoped lookup.
func NewSchedule(cache *committee.Cache) *Schedule {
	return &Schedule{cache: cache, committees: make(map[uint64]*RandomizedCommittee)}
}

// AddDRBResult builds the stake-weighted CDF for epoch from its committee
// and the freshly revealed DRB result. If the epoch's committee does not
// yet exist in the cache, this logs a warning and returns without error —
// the producing side is expected to retry once the committee catches up
// (spec.md §4.6).
func (s *Schedule) AddDRBResult(epoch uint64, drb [32]byte) {
	index, err := s.cache.StakeTable(&epoch)
	if err != nil {
		logger.Warn("add_drb_result: committee does not exist yet", "epoch", epoch, "err", err)
		return
	}

	committeeCDF := buildRandomizedCommittee(index, drb)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.committees[epoch] = committeeCDF
}

// SetFirstEpoch seeds the schedule at epoch and epoch+1 from the
// bootstrap (non-epoch) committee snapshot, installing initialDRB for
// both (spec.md §4.6).
func (s *Schedule) SetFirstEpoch(epoch uint64, initialDRB [32]byte) error {
	index, err := s.cache.StakeTable(nil)
	if err != nil {
		return err
	}

	committeeCDF := buildRandomizedCommittee(index, initialDRB)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.firstEpoch = &epoch
	s.committees[epoch] = committeeCDF
	s.committees[epoch+1] = committeeCDF
	return nil
}

// LookupLeader resolves the leader BLS key for view within epoch
// (spec.md §4.6). epoch == nil means the bootstrap, non-randomized
// schedule; any other combination of (firstEpoch set, epoch set) besides
// "both absent" or "both present" is an error.
func (s *Schedule) LookupLeader(view uint64, epoch *uint64) (staketable.BLSPubKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.firstEpoch == nil && epoch == nil {
		index, err := s.cache.StakeTable(nil)
		if err != nil {
			return staketable.BLSPubKey{}, lookupErr("no non-epoch committee installed: %v", err)
		}
		leaders := index.Keys()
		if len(leaders) == 0 {
			return staketable.BLSPubKey{}, &NoEligibleLeadersError{}
		}
		return leaders[view%uint64(len(leaders))], nil
	}

	if s.firstEpoch != nil && epoch != nil {
		if *epoch < *s.firstEpoch {
			return staketable.BLSPubKey{}, lookupErr("epoch %d precedes first epoch %d", *epoch, *s.firstEpoch)
		}
		committeeCDF, ok := s.committees[*epoch]
		if !ok {
			return staketable.BLSPubKey{}, lookupErr("no randomized committee for epoch %d", *epoch)
		}
		return committeeCDF.selectLeader(view)
	}

	return staketable.BLSPubKey{}, lookupErr("inconsistent schedule state: first_epoch set=%v, epoch set=%v", s.firstEpoch != nil, epoch != nil)
}
