package fetcher

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SpawnUpdateLoop starts the background loop that keeps the locally
// persisted event log current with L1 finality, mirroring the reference
// implementation's Fetcher::spawn_update_loop/update_loop placement: the
// loop lives on the Fetcher itself rather than a separate scheduler type,
// since it only ever touches the Fetcher's own state (spec.md §4.7,
// Design Notes §9).
//
// Calling SpawnUpdateLoop a second time on the same Fetcher is a no-op: the
// guard is a single slot owned by this Fetcher instance, not a
// process-global, so independent Fetchers (e.g. in tests) never contend
// with one another.
func (f *Fetcher) SpawnUpdateLoop(ctx context.Context) {
	f.updateLoopMu.Lock()
	if f.updateLoopStarted {
		f.updateLoopMu.Unlock()
		return
	}
	f.updateLoopStarted = true
	f.updateLoopMu.Unlock()

	go f.updateLoop(ctx)
}

func (f *Fetcher) updateLoop(ctx context.Context) {
	contract, ok := f.awaitStakeTableContract(ctx)
	if !ok {
		logger.Info("update loop stopping", "reason", ctx.Err())
		return
	}

	for {
		finalized, ok := f.awaitFinalized(ctx)
		if !ok {
			logger.Info("update loop stopping", "reason", ctx.Err())
			return
		}

		if _, err := f.FetchAndStore(ctx, contract, finalized.Number); err != nil {
			logger.Warn("update loop: fetch-and-store failed, retrying same block", "to_block", finalized.Number, "err", err)
			if !sleep(ctx, f.opts.retryDelay()) {
				return
			}
			continue
		}

		if !sleep(ctx, f.updateInterval()) {
			return
		}
	}
}

func (f *Fetcher) updateInterval() time.Duration {
	if f.opts.StakeTableUpdateInterval <= 0 {
		return time.Minute
	}
	return f.opts.StakeTableUpdateInterval
}

// awaitStakeTableContract blocks, polling at l1_retry_delay, until the chain
// config carries a stake-table contract address (spec.md §4.7 step 1): the
// contract doesn't exist until the chain upgrades to the version that
// introduces it.
func (f *Fetcher) awaitStakeTableContract(ctx context.Context) (common.Address, bool) {
	for {
		cfg, err := f.chainConfig.ChainConfig(ctx)
		if err != nil {
			logger.Warn("update loop: failed to read chain config", "err", err)
		} else if cfg.StakeTableContract != nil {
			return *cfg.StakeTableContract, true
		}

		if !sleep(ctx, f.opts.retryDelay()) {
			return common.Address{}, false
		}
	}
}

// awaitFinalized blocks, polling at l1_retry_delay, until the L1 client
// reports a finalized block (spec.md §4.7 step 2).
func (f *Fetcher) awaitFinalized(ctx context.Context) (*L1FinalizedInfo, bool) {
	for {
		finalized, err := f.l1State.LastFinalized(ctx)
		if err != nil {
			logger.Warn("update loop: failed to read L1 finality", "err", err)
		} else if finalized != nil {
			return finalized, true
		}

		if !sleep(ctx, f.opts.retryDelay()) {
			return nil, false
		}
	}
}

// sleep waits for d or ctx cancellation, reporting which happened first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
