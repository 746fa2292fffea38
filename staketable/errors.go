package staketable

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// FatalError wraps a cause that violates an invariant the staking contract
// should itself have prevented. Folding must abort and propagate it.
type FatalError struct {
	cause error
}

func (e *FatalError) Error() string { return e.cause.Error() }
func (e *FatalError) Unwrap() error { return e.cause }

func fatal(cause error) error { return &FatalError{cause: cause} }

// ExpectedError wraps a cause that the contract permits but that leaves a
// visible trace (today: a colliding Schnorr key). Folding logs it and
// continues.
type ExpectedError struct {
	cause error
}

func (e *ExpectedError) Error() string { return e.cause.Error() }
func (e *ExpectedError) Unwrap() error { return e.cause }

func expected(cause error) error { return &ExpectedError{cause: cause} }

// Concrete fatal causes, one per spec.md §4.2/§8 rule.

type AlreadyRegisteredError struct{ Account common.Address }

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("validator %s is already registered", e.Account)
}

type BLSKeyAlreadyUsedError struct{ Key BLSPubKey }

func (e *BLSKeyAlreadyUsedError) Error() string {
	return fmt.Sprintf("BLS key %x is already in use", e.Key)
}

type ValidatorNotFoundError struct{ Account common.Address }

func (e *ValidatorNotFoundError) Error() string {
	return fmt.Sprintf("validator %s not found", e.Account)
}

type ZeroDelegatorStakeError struct{ Delegator common.Address }

func (e *ZeroDelegatorStakeError) Error() string {
	return fmt.Sprintf("delegator %s attempted to delegate zero stake", e.Delegator)
}

type InsufficientStakeError struct{}

func (e *InsufficientStakeError) Error() string { return "insufficient stake for undelegation" }

type DelegatorNotFoundError struct{ Delegator common.Address }

func (e *DelegatorNotFoundError) Error() string {
	return fmt.Sprintf("delegator %s not found", e.Delegator)
}

type AuthenticationFailedError struct{ cause error }

func (e *AuthenticationFailedError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.cause)
}
func (e *AuthenticationFailedError) Unwrap() error { return e.cause }

type MissingMaximumStakeError struct{}

func (e *MissingMaximumStakeError) Error() string {
	return "could not compute maximum stake from filtered validators"
}

type MinimumStakeOverflowError struct{}

func (e *MinimumStakeOverflowError) Error() string {
	return "overflow while calculating minimum stake threshold"
}

type NoValidValidatorsError struct{}

func (e *NoValidValidatorsError) Error() string {
	return "no validators passed minimum selection criteria"
}

// Concrete expected cause.

type SchnorrKeyAlreadyUsedError struct{ Key SchnorrPubKey }

func (e *SchnorrKeyAlreadyUsedError) Error() string {
	return fmt.Sprintf("schnorr key %x is already in use", e.Key)
}

// AsFatal reports whether err is (or wraps) a FatalError, returning the
// unwrapped FatalError for inspection.
func AsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	ok := errors.As(err, &fe)
	return fe, ok
}

// AsExpected reports whether err is (or wraps) an ExpectedError.
func AsExpected(err error) (*ExpectedError, bool) {
	var ee *ExpectedError
	ok := errors.As(err, &ee)
	return ee, ok
}
