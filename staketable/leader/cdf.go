// Package leader derives a stake-weighted cumulative distribution over an
// epoch's eligible leaders from its DRB (distributed random beacon) result,
// and answers leader(view, epoch) lookups (spec.md §4.6). It depends on
// committee one-directionally — for Cache, PeerConfig and StakeTableIndex —
// never the reverse, so no cycle exists between the two packages (Design
// Notes §9).
package leader

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/holiman/uint256"

	"github.com/sequencer-systems/staketable-core/staketable"
	"github.com/sequencer-systems/staketable-core/staketable/committee"
)

// RandomizedCommittee is a stake-weighted CDF over an epoch's eligible
// leaders, plus the DRB result it was built from (spec.md §3).
type RandomizedCommittee struct {
	leaders    []staketable.BLSPubKey
	cumulative []*uint256.Int
	total      *uint256.Int
	drb        [32]byte
}

// buildRandomizedCommittee constructs the CDF by walking index in its
// preserved insertion order, accumulating each entry's stake.
func buildRandomizedCommittee(index *committee.StakeTableIndex, drb [32]byte) *RandomizedCommittee {
	total := uint256.NewInt(0)
	var leaders []staketable.BLSPubKey
	var cumulative []*uint256.Int

	index.Range(func(key staketable.BLSPubKey, cfg committee.PeerConfig) bool {
		total = new(uint256.Int).Add(total, cfg.Entry.Stake)
		leaders = append(leaders, key)
		cumulative = append(cumulative, new(uint256.Int).Set(total))
		return true
	})

	return &RandomizedCommittee{leaders: leaders, cumulative: cumulative, total: total, drb: drb}
}

// seededTarget derives a deterministic target in [0, total) from the DRB
// bytes and the requested view, the way a VRF-free leader schedule draws a
// uniform sample: hash the seed material, then reduce mod total.
func seededTarget(drb [32]byte, view uint64, total *uint256.Int) *uint256.Int {
	h := sha256.New()
	h.Write(drb[:])
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], view)
	h.Write(buf[:])

	raw := new(uint256.Int).SetBytes(h.Sum(nil))
	return new(uint256.Int).Mod(raw, total)
}

// selectLeader picks the eligible leader whose cumulative-stake band
// contains the view's seeded target.
func (c *RandomizedCommittee) selectLeader(view uint64) (staketable.BLSPubKey, error) {
	if len(c.leaders) == 0 || c.total.IsZero() {
		return staketable.BLSPubKey{}, &NoEligibleLeadersError{}
	}

	target := seededTarget(c.drb, view, c.total)
	idx := sort.Search(len(c.cumulative), func(i int) bool {
		return c.cumulative[i].Gt(target)
	})
	if idx == len(c.leaders) {
		idx = len(c.leaders) - 1
	}
	return c.leaders[idx], nil
}
