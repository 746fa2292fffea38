package staketable

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventKey is the canonical, totally-ordered locator of an on-chain stake
// event: (block_number, log_index), compared lexicographically.
type EventKey struct {
	BlockNumber uint64
	LogIndex    uint64
}

// Less reports whether k sorts strictly before other.
func (k EventKey) Less(other EventKey) bool {
	if k.BlockNumber != other.BlockNumber {
		return k.BlockNumber < other.BlockNumber
	}
	return k.LogIndex < other.LogIndex
}

func (k EventKey) String() string {
	return fmt.Sprintf("(block=%d, log_index=%d)", k.BlockNumber, k.LogIndex)
}

// Event is the tagged union of staking-contract events the core folds into
// a StakeTableState. Implementations are value types defined in this file.
type Event interface {
	isEvent()
}

// RegisterEvent is the v1 validator registration event.
type RegisterEvent struct {
	Account    common.Address
	BLSVK      BLSPubKey
	SchnorrVK  SchnorrPubKey
	Commission uint16
}

// RegisterV2Event is the authenticated v2 registration event: the same
// payload plus BLS/Schnorr signatures over the declared account.
type RegisterV2Event struct {
	Account    common.Address
	BLSVK      BLSPubKey
	SchnorrVK  SchnorrPubKey
	Commission uint16
	BLSSig     []byte
	SchnorrSig []byte
}

// DeregisterEvent removes a validator.
type DeregisterEvent struct {
	Validator common.Address
}

// DelegateEvent adds delegated stake to a validator.
type DelegateEvent struct {
	Delegator common.Address
	Validator common.Address
	Amount    *uint256.Int
}

// UndelegateEvent withdraws delegated stake from a validator.
type UndelegateEvent struct {
	Delegator common.Address
	Validator common.Address
	Amount    *uint256.Int
}

// KeyUpdateEvent rotates a validator's consensus keys (v1, unauthenticated).
type KeyUpdateEvent struct {
	Account   common.Address
	BLSVK     BLSPubKey
	SchnorrVK SchnorrPubKey
}

// KeyUpdateV2Event is the authenticated key-rotation event.
type KeyUpdateV2Event struct {
	Account    common.Address
	BLSVK      BLSPubKey
	SchnorrVK  SchnorrPubKey
	BLSSig     []byte
	SchnorrSig []byte
}

func (RegisterEvent) isEvent()     {}
func (RegisterV2Event) isEvent()   {}
func (DeregisterEvent) isEvent()   {}
func (DelegateEvent) isEvent()     {}
func (UndelegateEvent) isEvent()   {}
func (KeyUpdateEvent) isEvent()    {}
func (KeyUpdateV2Event) isEvent()  {}

// eventKind names the variant of e ("Register", "KeyUpdateV2", …) for
// warn/error log lines, so a log line carries the event kind rather than a
// Go struct dump.
func eventKind(e Event) string {
	switch e.(type) {
	case RegisterEvent:
		return "Register"
	case RegisterV2Event:
		return "RegisterV2"
	case DeregisterEvent:
		return "Deregister"
	case DelegateEvent:
		return "Delegate"
	case UndelegateEvent:
		return "Undelegate"
	case KeyUpdateEvent:
		return "KeyUpdate"
	case KeyUpdateV2Event:
		return "KeyUpdateV2"
	default:
		return "Unknown"
	}
}
