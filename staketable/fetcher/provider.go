// Package fetcher pulls stake-table events from an L1 provider in bounded
// chunks, merges them with whatever persistence already has, and derives
// the one-time per-block issuance from the token contract's initialization
// event (spec.md §4.4).
package fetcher

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/sequencer-systems/staketable-core/staketable"
)

// EventLog is the on-chain locator of a single log entry. BlockNumber and
// LogIndex are pointers because an RPC response can in principle omit
// either (a pending/unconfirmed log); the fetcher treats either being nil
// as a fatal EventSortingError rather than guessing.
type EventLog struct {
	BlockNumber *uint64
	LogIndex    *uint64
	TxHash      common.Hash
}

// String renders the log the same way the reference implementation does,
// so warn-level authentication-failure lines are easy to find in an
// explorer: "Log(block=…,index=…,transaction_hash=…)".
func (l EventLog) String() string {
	var block, index uint64
	if l.BlockNumber != nil {
		block = *l.BlockNumber
	}
	if l.LogIndex != nil {
		index = *l.LogIndex
	}
	return fmt.Sprintf("Log(block=%d,index=%d,transaction_hash=%s)", block, index, l.TxHash.Hex())
}

// Key builds the canonical EventKey for this log entry. The caller must
// have already rejected a log with a nil BlockNumber or LogIndex.
func (l EventLog) Key() staketable.EventKey {
	return staketable.EventKey{BlockNumber: *l.BlockNumber, LogIndex: *l.LogIndex}
}

// LoggedEvent pairs a decoded event with the log entry that emitted it.
type LoggedEvent[T any] struct {
	Event T
	Log   EventLog
}

// MintTransfer is the decoded ERC20 Transfer log the core expects to find in
// the token contract's initialization transaction.
type MintTransfer struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
}

// L1Provider is the narrow chain-RPC transport capability the core depends
// on. The concrete client (subscription management, retries at the
// transport level, ABI binding) is an external collaborator (spec.md §1);
// fetcher only ever calls these methods, each bounded by an explicit block
// range where relevant.
type L1Provider interface {
	// InitializedAtBlock returns the stake-table contract's
	// initializedAtBlock() value.
	InitializedAtBlock(ctx context.Context, contract common.Address) (uint64, error)

	FilterRegistered(ctx context.Context, contract common.Address, from, to uint64) ([]LoggedEvent[staketable.RegisterEvent], error)
	FilterRegisteredV2(ctx context.Context, contract common.Address, from, to uint64) ([]LoggedEvent[staketable.RegisterV2Event], error)
	FilterDeregistered(ctx context.Context, contract common.Address, from, to uint64) ([]LoggedEvent[staketable.DeregisterEvent], error)
	FilterDelegated(ctx context.Context, contract common.Address, from, to uint64) ([]LoggedEvent[staketable.DelegateEvent], error)
	FilterUndelegated(ctx context.Context, contract common.Address, from, to uint64) ([]LoggedEvent[staketable.UndelegateEvent], error)
	FilterKeyUpdated(ctx context.Context, contract common.Address, from, to uint64) ([]LoggedEvent[staketable.KeyUpdateEvent], error)
	FilterKeyUpdatedV2(ctx context.Context, contract common.Address, from, to uint64) ([]LoggedEvent[staketable.KeyUpdateV2Event], error)

	// TokenAddress reads the ESP-token address out of the stake-table
	// contract.
	TokenAddress(ctx context.Context, stakeTableContract common.Address) (common.Address, error)

	// FilterTokenInitialized queries the token contract's one-time
	// Initialized event. from == nil means "query the full history".
	FilterTokenInitialized(ctx context.Context, token common.Address, from *uint64, to uint64) ([]EventLog, error)

	// MintTransferInTransaction fetches the transaction receipt for txHash
	// and decodes its ERC20 Transfer log.
	MintTransferInTransaction(ctx context.Context, txHash common.Hash) (*MintTransfer, error)
}
