package staketable

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// VIDTargetTotalStake is the divisor used to derive the minimum surviving
// stake from the maximum stake during active-set selection (spec.md §6).
const VIDTargetTotalStake = 100

// ActiveSetCap is the maximum number of validators retained by selection.
const ActiveSetCap = 100

// SelectActiveValidatorSet prunes stakeless/delegator-less validators, then
// keeps the (at most ActiveSetCap) highest-staked validators whose stake is
// at least max_stake/VIDTargetTotalStake (spec.md §4.3). Survivors stay in
// their original insertion order; the stake ordering only decides who
// survives. It mutates validators in place and also returns it for
// convenience.
func SelectActiveValidatorSet(validators *ValidatorMap) (*ValidatorMap, error) {
	totalBefore := validators.Len()

	var toDrop []common.Address
	validators.Range(func(v *Validator) bool {
		if len(v.Delegators) == 0 || v.Stake.IsZero() {
			toDrop = append(toDrop, v.Account)
		}
		return true
	})
	for _, addr := range toDrop {
		validators.remove(addr)
	}

	logger.Debug("filtered out invalid validators", "total", totalBefore, "filtered", validators.Len())

	if validators.Len() == 0 {
		logger.Warn("validator selection failed: no validators passed minimum criteria")
		return validators, fatal(&NoValidValidatorsError{})
	}

	var maxStake *uint256.Int
	validators.Range(func(v *Validator) bool {
		if maxStake == nil || v.Stake.Cmp(maxStake) > 0 {
			maxStake = v.Stake
		}
		return true
	})
	if maxStake == nil {
		logger.Error("could not compute maximum stake from filtered validators")
		return validators, fatal(&MissingMaximumStakeError{})
	}

	divisor := uint256.NewInt(VIDTargetTotalStake)
	if divisor.IsZero() {
		logger.Error("overflow while calculating minimum stake threshold")
		return validators, fatal(&MinimumStakeOverflowError{})
	}
	minStake := new(uint256.Int).Div(maxStake, divisor)

	type stakedAddr struct {
		addr  common.Address
		stake *uint256.Int
	}
	var candidates []stakedAddr
	validators.Range(func(v *Validator) bool {
		if v.Stake.Cmp(minStake) >= 0 {
			candidates = append(candidates, stakedAddr{v.Account, v.Stake})
		}
		return true
	})

	logger.Info("validators above minimum stake threshold", "count", len(candidates))

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].stake.Cmp(candidates[j].stake) > 0
	})

	if len(candidates) > ActiveSetCap {
		candidates = candidates[:ActiveSetCap]
	}

	selected := make(map[common.Address]struct{}, len(candidates))
	for _, c := range candidates {
		selected[c.addr] = struct{}{}
	}

	// retain, not reorder: walk the map's own insertion order and filter to
	// the selected set, so surviving validators keep their original
	// first-registration order (spec.md §4.3 step 6) rather than the
	// stake-sorted order used only to pick who survives.
	var keep []common.Address
	for _, addr := range validators.Addresses() {
		if _, ok := selected[addr]; ok {
			keep = append(keep, addr)
		}
	}
	validators.retainOrdered(keep)

	logger.Info("selected active validator set", "final_count", validators.Len())
	return validators, nil
}

// ActiveValidatorSetFromEvents folds events into a validator map, then
// applies selection, matching spec.md §4.3's
// active_validator_set_from_l1_events.
func ActiveValidatorSetFromEvents(events []Event, auth Authenticator) (*ValidatorMap, error) {
	validators, err := FoldEvents(events, auth)
	if err != nil {
		return validators, err
	}
	return SelectActiveValidatorSet(validators)
}
