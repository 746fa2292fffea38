package fetcher

import (
	"context"

	"github.com/sequencer-systems/staketable-core/staketable"
)

// ReadOffsetKind distinguishes a partial read from one that already covers
// the requested range.
type ReadOffsetKind uint8

const (
	// UntilL1Block means persistence holds events up to (and including)
	// Block; the fetcher must still pull [Block+1, to_block] from L1.
	UntilL1Block ReadOffsetKind = iota
	// Complete means persistence already holds everything up to the
	// requested to_block; no L1 call is needed.
	Complete
)

// ReadOffset reports how far persistence's event log already extends.
type ReadOffset struct {
	Kind  ReadOffsetKind
	Block uint64 // meaningful only when Kind == UntilL1Block
}

// EpochStake is a persisted (epoch, validator map) pair, as returned by
// LoadLatestStake.
type EpochStake struct {
	Epoch      uint64
	Validators *staketable.ValidatorMap
}

// Persistence is the narrow capability the core uses to durably store and
// recall the events it has already ingested and the stake tables it has
// already derived. The actual store (embedded KV, SQL, …) is an external
// collaborator per spec.md §1.
type Persistence interface {
	// LoadEvents returns how far the event log already extends (nil offset
	// means nothing persisted yet) and whatever events are persisted up to
	// toBlock.
	LoadEvents(ctx context.Context, toBlock uint64) (*ReadOffset, []staketable.KeyedEvent, error)
	// StoreEvents durably records events as the complete, deduplicated
	// event log up to toBlock. The write is atomic: a reader never
	// observes a partial update.
	StoreEvents(ctx context.Context, toBlock uint64, events []staketable.KeyedEvent) error
	// StoreStake persists the derived validator map for epoch.
	StoreStake(ctx context.Context, epoch uint64, validators *staketable.ValidatorMap) error
	// LoadLatestStake returns up to limit of the most recently persisted
	// (epoch, validators) pairs, most recent first, or nil if none exist.
	LoadLatestStake(ctx context.Context, limit int) ([]EpochStake, error)
}
