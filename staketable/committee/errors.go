package committee

import (
	"errors"
	"fmt"

	"github.com/sequencer-systems/staketable-core/staketable"
)

var errThresholdOverflow = errors.New("threshold computation overflowed u256")

// UnknownEpochError reports a query against an epoch the cache has never
// been updated for.
type UnknownEpochError struct{ Epoch uint64 }

func (e *UnknownEpochError) Error() string {
	return fmt.Sprintf("unknown epoch %d", e.Epoch)
}

// UnknownValidatorError reports a stake-table-index lookup for a BLS key
// that is not a member of the queried epoch.
type UnknownValidatorError struct{ BLSKey staketable.BLSPubKey }

func (e *UnknownValidatorError) Error() string {
	return fmt.Sprintf("unknown validator with BLS key %x", e.BLSKey)
}

// NoNonEpochCommitteeError reports a query for the bootstrap (non-epoch)
// snapshot before the cache has ever been updated with one.
type NoNonEpochCommitteeError struct{}

func (e *NoNonEpochCommitteeError) Error() string {
	return "no non-epoch committee has been installed"
}
