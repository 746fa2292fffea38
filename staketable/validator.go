package staketable

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BLSPubKey is a validator's BLS consensus-verification key. The actual BLS
// curve arithmetic and signature verification are external collaborators
// (see Authenticator); the core only ever stores, compares, and hashes the
// compressed point.
type BLSPubKey [96]byte

func (k BLSPubKey) IsZero() bool { return k == BLSPubKey{} }

// SchnorrPubKey is a validator's Schnorr state-verification key.
type SchnorrPubKey [32]byte

func (k SchnorrPubKey) IsZero() bool { return k == SchnorrPubKey{} }

// MaxCommissionBasisPoints is the exclusive upper bound on Validator.Commission.
const MaxCommissionBasisPoints = 10_000

// Validator is the reconstructed view of a single on-chain validator account.
type Validator struct {
	Account     common.Address
	BLSVK       BLSPubKey
	SchnorrVK   SchnorrPubKey
	Commission  uint16 // basis points, in [0, MaxCommissionBasisPoints)
	Stake       *uint256.Int
	Delegators  map[common.Address]*uint256.Int
}

func newValidator(account common.Address, bls BLSPubKey, schnorr SchnorrPubKey, commission uint16) *Validator {
	return &Validator{
		Account:    account,
		BLSVK:      bls,
		SchnorrVK:  schnorr,
		Commission: commission,
		Stake:      uint256.NewInt(0),
		Delegators: make(map[common.Address]*uint256.Int),
	}
}

// Clone returns a deep copy so callers may hand out validator views without
// the recipient mutating shared state.
func (v *Validator) Clone() *Validator {
	clone := &Validator{
		Account:    v.Account,
		BLSVK:      v.BLSVK,
		SchnorrVK:  v.SchnorrVK,
		Commission: v.Commission,
		Stake:      new(uint256.Int).Set(v.Stake),
		Delegators: make(map[common.Address]*uint256.Int, len(v.Delegators)),
	}
	for addr, amt := range v.Delegators {
		clone.Delegators[addr] = new(uint256.Int).Set(amt)
	}
	return clone
}

// ValidatorMap is an insertion-ordered account -> Validator mapping. Go's
// built-in map has no iteration order guarantee, so a small ordered-map
// wrapper is used to preserve "insertion order of first registration" as
// required by the state machine's invariants; no third-party ordered-map
// library appears anywhere in the retrieval pack, so this ~40-line structure
// is hand-rolled rather than imported (see DESIGN.md).
type ValidatorMap struct {
	order []common.Address
	byKey map[common.Address]*Validator
}

// NewValidatorMap returns an empty, insertion-ordered validator map.
func NewValidatorMap() *ValidatorMap {
	return &ValidatorMap{byKey: make(map[common.Address]*Validator)}
}

// Get returns the validator for account, if present.
func (m *ValidatorMap) Get(account common.Address) (*Validator, bool) {
	v, ok := m.byKey[account]
	return v, ok
}

// Contains reports whether account is present.
func (m *ValidatorMap) Contains(account common.Address) bool {
	_, ok := m.byKey[account]
	return ok
}

// insert adds a brand new validator, appending it to the insertion order.
// Callers must check Contains first; insert does not overwrite.
func (m *ValidatorMap) insert(v *Validator) {
	m.order = append(m.order, v.Account)
	m.byKey[v.Account] = v
}

// remove deletes account, preserving the relative order of survivors.
func (m *ValidatorMap) remove(account common.Address) bool {
	if _, ok := m.byKey[account]; !ok {
		return false
	}
	delete(m.byKey, account)
	for i, a := range m.order {
		if a == account {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of validators currently tracked.
func (m *ValidatorMap) Len() int { return len(m.order) }

// Range calls fn for every validator in insertion order, stopping early if
// fn returns false.
func (m *ValidatorMap) Range(fn func(*Validator) bool) {
	for _, addr := range m.order {
		if !fn(m.byKey[addr]) {
			return
		}
	}
}

// Addresses returns the accounts currently tracked, in insertion order.
func (m *ValidatorMap) Addresses() []common.Address {
	out := make([]common.Address, len(m.order))
	copy(out, m.order)
	return out
}

// retainOrdered rebuilds the map keeping only the accounts in keep, in the
// order keep lists them. Used by active-set selection (spec.md §4.3 step 6).
func (m *ValidatorMap) retainOrdered(keep []common.Address) {
	byKey := make(map[common.Address]*Validator, len(keep))
	for _, addr := range keep {
		byKey[addr] = m.byKey[addr]
	}
	m.order = keep
	m.byKey = byKey
}

// Clone returns a deep copy of the map and every validator inside it.
func (m *ValidatorMap) Clone() *ValidatorMap {
	out := &ValidatorMap{
		order: append([]common.Address(nil), m.order...),
		byKey: make(map[common.Address]*Validator, len(m.byKey)),
	}
	for addr, v := range m.byKey {
		out.byKey[addr] = v.Clone()
	}
	return out
}
