package fetcher

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ChainConfig carries the handful of consensus-wide options the core reads
// from the L1 client (spec.md §6). Loading it from flags/files is an
// external collaborator's job; the core only ever receives one.
type ChainConfig struct {
	// Commit identifies this configuration value for the staleness check in
	// Fetcher.ChainConfig (see SPEC_FULL.md §D.3).
	Commit common.Hash
	// StakeTableContract is nil until the chain has upgraded to a version
	// that carries one.
	StakeTableContract *common.Address
}

// L1FinalizedInfo is the minimal view of L1 finality the update loop needs.
type L1FinalizedInfo struct {
	Number uint64
}

// Leaf is the minimal view of a consensus leaf the core needs out of the
// peer catch-up service: the finalized L1 info embedded in its header, and
// (for DRB bootstrap) the next epoch's DRB result. The full leaf/header
// types are external collaborators per spec.md §1.
type Leaf struct {
	L1Finalized    *L1FinalizedInfo
	NextDRBResult  *[32]byte
	ChainConfig    ChainConfig
}

// StateCatchup is the narrow peer-catch-up capability consumed by the core
// (spec.md §6).
type StateCatchup interface {
	FetchChainConfig(ctx context.Context, commit common.Hash) (ChainConfig, error)
	FetchLeaf(ctx context.Context, height uint64, stakeTable StakeTableSnapshot, threshold *uint256.Int) (Leaf, error)
	TryFetchLeaf(ctx context.Context, attempts int, height uint64, stakeTable StakeTableSnapshot, threshold *uint256.Int) (Leaf, error)
}

// StakeTableSnapshot is the opaque stake-table view passed to peers when
// asking them to vouch for a leaf; the core treats it as a value to pass
// through, never inspecting its contents itself.
type StakeTableSnapshot interface{}

// ChainConfigSource reports the current chain configuration, as maintained
// by whatever component tracks on-chain upgrades.
type ChainConfigSource interface {
	ChainConfig(ctx context.Context) (ChainConfig, error)
}

// L1StateSource reports the L1 client's view of finality.
type L1StateSource interface {
	LastFinalized(ctx context.Context) (*L1FinalizedInfo, error)
}
