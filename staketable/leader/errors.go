package leader

import "fmt"

// LeaderLookupError is the error surfaced to the consensus caller when
// LookupLeader cannot resolve a committee: unknown epoch, missing DRB
// result, or an inconsistent first-epoch/epoch combination (spec.md §7).
// A committee that resolves but has no stake-weighted entries yields
// NoEligibleLeadersError instead.
type LeaderLookupError struct{ reason string }

func (e *LeaderLookupError) Error() string { return "leader lookup failed: " + e.reason }

func lookupErr(format string, args ...any) error {
	return &LeaderLookupError{reason: fmt.Sprintf(format, args...)}
}

// NoEligibleLeadersError reports a committee with no stake-weighted
// entries to select from.
type NoEligibleLeadersError struct{}

func (e *NoEligibleLeadersError) Error() string { return "committee has no eligible leaders" }
