package staketable

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

var logger = log.New("pkg", "staketable")

// StakeTableState is the authoritative view folded from an ordered event
// stream: an insertion-ordered validator map plus the two globally one-shot
// key sets (spec.md §3).
type StakeTableState struct {
	validators      *ValidatorMap
	usedBLSKeys     map[BLSPubKey]struct{}
	usedSchnorrKeys map[SchnorrPubKey]struct{}
}

// NewState returns an empty state, as at contract genesis.
func NewState() *StakeTableState {
	return &StakeTableState{
		validators:      NewValidatorMap(),
		usedBLSKeys:     make(map[BLSPubKey]struct{}),
		usedSchnorrKeys: make(map[SchnorrPubKey]struct{}),
	}
}

// Validators returns the live validator map. Callers that want to keep
// folding should Clone it first.
func (s *StakeTableState) Validators() *ValidatorMap { return s.validators }

// ApplyEvent folds a single event into the state.
//
// The return value is nil on success, an *ExpectedError the caller should
// log and continue past, or an *FatalError the caller must abort on. This
// collapses spec.md §4.2's `Result<Result<(), Expected>, Fatal>` into Go's
// ordinary single error return plus errors.As-based classification, which is
// the idiom the rest of this module's error handling already follows (see
// errors.go).
func (s *StakeTableState) ApplyEvent(event Event, auth Authenticator) error {
	switch e := event.(type) {
	case RegisterEvent:
		return s.register(e.Account, e.BLSVK, e.SchnorrVK, e.Commission)

	case RegisterV2Event:
		if err := auth.AuthenticateRegistration(e); err != nil {
			return fatal(&AuthenticationFailedError{cause: err})
		}
		return s.register(e.Account, e.BLSVK, e.SchnorrVK, e.Commission)

	case DeregisterEvent:
		if !s.validators.remove(e.Validator) {
			return fatal(&ValidatorNotFoundError{Account: e.Validator})
		}
		return nil

	case DelegateEvent:
		return s.delegate(e.Delegator, e.Validator, e.Amount)

	case UndelegateEvent:
		return s.undelegate(e.Delegator, e.Validator, e.Amount)

	case KeyUpdateEvent:
		return s.updateKeys(e.Account, e.BLSVK, e.SchnorrVK)

	case KeyUpdateV2Event:
		if err := auth.AuthenticateKeyUpdate(e); err != nil {
			return fatal(&AuthenticationFailedError{cause: err})
		}
		return s.updateKeys(e.Account, e.BLSVK, e.SchnorrVK)

	default:
		return fatal(errUnknownEventType)
	}
}

var errUnknownEventType = &unknownEventTypeError{}

type unknownEventTypeError struct{}

func (*unknownEventTypeError) Error() string { return "unknown stake table event type" }

func (s *StakeTableState) register(account common.Address, bls BLSPubKey, schnorr SchnorrPubKey, commission uint16) error {
	if s.validators.Contains(account) {
		return fatal(&AlreadyRegisteredError{Account: account})
	}

	if _, used := s.usedBLSKeys[bls]; used {
		return fatal(&BLSKeyAlreadyUsedError{Key: bls})
	}
	s.usedBLSKeys[bls] = struct{}{}

	if _, used := s.usedSchnorrKeys[schnorr]; used {
		// The validator is NOT inserted: the BLS key above is still consumed
		// (the contract enforces BLS one-shot use unconditionally), but the
		// Schnorr collision blocks registration itself.
		return expected(&SchnorrKeyAlreadyUsedError{Key: schnorr})
	}
	s.usedSchnorrKeys[schnorr] = struct{}{}

	s.validators.insert(newValidator(account, bls, schnorr, commission))
	return nil
}

func (s *StakeTableState) delegate(delegator, validatorAddr common.Address, amount *uint256.Int) error {
	v, ok := s.validators.Get(validatorAddr)
	if !ok {
		return fatal(&ValidatorNotFoundError{Account: validatorAddr})
	}
	if amount.IsZero() {
		return fatal(&ZeroDelegatorStakeError{Delegator: delegator})
	}

	v.Stake = new(uint256.Int).Add(v.Stake, amount)
	if existing, ok := v.Delegators[delegator]; ok {
		v.Delegators[delegator] = new(uint256.Int).Add(existing, amount)
	} else {
		v.Delegators[delegator] = new(uint256.Int).Set(amount)
	}
	return nil
}

func (s *StakeTableState) undelegate(delegator, validatorAddr common.Address, amount *uint256.Int) error {
	v, ok := s.validators.Get(validatorAddr)
	if !ok {
		return fatal(&ValidatorNotFoundError{Account: validatorAddr})
	}

	newStake, overflow := new(uint256.Int).SubOverflow(v.Stake, amount)
	if overflow {
		return fatal(&InsufficientStakeError{})
	}

	delegatorStake, ok := v.Delegators[delegator]
	if !ok {
		return fatal(&DelegatorNotFoundError{Delegator: delegator})
	}
	newDelegatorStake, overflow := new(uint256.Int).SubOverflow(delegatorStake, amount)
	if overflow {
		return fatal(&InsufficientStakeError{})
	}

	v.Stake = newStake
	if newDelegatorStake.IsZero() {
		delete(v.Delegators, delegator)
	} else {
		v.Delegators[delegator] = newDelegatorStake
	}
	return nil
}

// updateKeys implements the key-rotation rule, including the open question
// documented in spec.md §9 and DESIGN.md: the BLS key change is committed
// before the Schnorr collision is evaluated, and is never rolled back even
// when the Schnorr check reports an expected error.
func (s *StakeTableState) updateKeys(account common.Address, bls BLSPubKey, schnorr SchnorrPubKey) error {
	v, ok := s.validators.Get(account)
	if !ok {
		return fatal(&ValidatorNotFoundError{Account: account})
	}

	if _, used := s.usedBLSKeys[bls]; used {
		return fatal(&BLSKeyAlreadyUsedError{Key: bls})
	}
	s.usedBLSKeys[bls] = struct{}{}

	var expectedErr error
	if _, used := s.usedSchnorrKeys[schnorr]; used {
		expectedErr = expected(&SchnorrKeyAlreadyUsedError{Key: schnorr})
	} else {
		s.usedSchnorrKeys[schnorr] = struct{}{}
	}

	v.BLSVK = bls
	v.SchnorrVK = schnorr

	return expectedErr
}

// FoldEvents applies an ordered sequence of events to a fresh state,
// logging expected errors and returning the validator map assembled so far
// on the first fatal error.
func FoldEvents(events []Event, auth Authenticator) (*ValidatorMap, error) {
	state := NewState()
	for _, event := range events {
		err := state.ApplyEvent(event, auth)
		switch {
		case err == nil:
			// applied
		case isExpected(err):
			logger.Warn("expected error while applying event", "event", eventKind(event), "error", err)
		default:
			logger.Error("fatal error applying event", "event", eventKind(event), "error", err)
			return state.Validators(), err
		}
	}
	return state.Validators(), nil
}

func isExpected(err error) bool {
	_, ok := err.(*ExpectedError)
	return ok
}
