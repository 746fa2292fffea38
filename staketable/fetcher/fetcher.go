package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sequencer-systems/staketable-core/staketable"
)

var logger = log.New("pkg", "fetcher")

// DefaultL1EventsMaxBlockRange is the chunk width used when no override is
// configured (spec.md §6).
const DefaultL1EventsMaxBlockRange = 10_000

// Options carries the tunables the core reads from the L1 client
// configuration (spec.md §6). Loading these from flags/env is an external
// collaborator's job.
type Options struct {
	L1RetryDelay             time.Duration
	StakeTableUpdateInterval time.Duration
	L1EventsMaxBlockRange    uint64
}

func (o Options) chunkSize() uint64 {
	if o.L1EventsMaxBlockRange == 0 {
		return DefaultL1EventsMaxBlockRange
	}
	return o.L1EventsMaxBlockRange
}

func (o Options) retryDelay() time.Duration {
	if o.L1RetryDelay <= 0 {
		return 5 * time.Second
	}
	return o.L1RetryDelay
}

// Fetcher owns its L1 client, persistence, and peer-catch-up handles
// outright (spec.md §9: no cyclic ownership — the committee cache merely
// holds a shared handle to the fetcher, never the reverse).
type Fetcher struct {
	provider    L1Provider
	persistence Persistence
	peers       StateCatchup
	chainConfig ChainConfigSource
	l1State     L1StateSource
	auth        staketable.Authenticator
	opts        Options

	updateLoopMu      sync.Mutex
	updateLoopStarted bool

	fetchGroup singleflight.Group
}

// New constructs a Fetcher. auth authenticates V2 events at fetch time
// (spec.md §4.1); it is re-checked again when the state machine applies
// them (spec.md §4.2).
func New(provider L1Provider, persistence Persistence, peers StateCatchup, chainConfig ChainConfigSource, l1State L1StateSource, auth staketable.Authenticator, opts Options) *Fetcher {
	return &Fetcher{
		provider:    provider,
		persistence: persistence,
		peers:       peers,
		chainConfig: chainConfig,
		l1State:     l1State,
		auth:        auth,
		opts:        opts,
	}
}

// FetchEvents implements spec.md §4.4's fetch_events: ask persistence how
// far it already got, and only hit L1 for the remainder.
func (f *Fetcher) FetchEvents(ctx context.Context, contract common.Address, toBlock uint64) ([]staketable.KeyedEvent, error) {
	offset, persisted, err := f.persistence.LoadEvents(ctx, toBlock)
	if err != nil {
		return nil, errors.Wrap(err, "loading persisted events")
	}
	logger.Info("loaded events from storage", "to_block", toBlock)

	if offset != nil && offset.Kind == Complete {
		return persisted, nil
	}

	var fromBlock *uint64
	if offset != nil {
		b := offset.Block + 1
		fromBlock = &b
	}

	if fromBlock != nil && *fromBlock > toBlock {
		return nil, errors.Errorf("to_block %d is less than from_block %d", toBlock, *fromBlock)
	}

	logger.Info("fetching events from contract", "to_block", toBlock, "from_block", fromBlock)
	fetched, err := f.fetchEventsFromContract(ctx, contract, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}

	var merged []staketable.KeyedEvent
	if fromBlock != nil {
		merged = append(append(merged, persisted...), fetched...)
	} else {
		merged = fetched
	}

	return staketable.SortAndDedup(merged), nil
}

// FetchAndStore calls FetchEvents then writes the result back to
// persistence before returning it. Concurrent calls for the same contract
// and to_block collapse into a single in-flight round via singleflight, the
// same golang.org/x/sync family the teacher reaches for around its p2p
// fan-out.
func (f *Fetcher) FetchAndStore(ctx context.Context, contract common.Address, toBlock uint64) ([]staketable.KeyedEvent, error) {
	key := fmt.Sprintf("%s:%d", contract.Hex(), toBlock)
	v, err, _ := f.fetchGroup.Do(key, func() (interface{}, error) {
		events, err := f.FetchEvents(ctx, contract, toBlock)
		if err != nil {
			return nil, err
		}

		logger.Info("storing events", "to_block", toBlock, "count", len(events))
		if err := f.persistence.StoreEvents(ctx, toBlock, events); err != nil {
			return nil, errors.Wrap(err, "storing fetched events")
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]staketable.KeyedEvent), nil
}

// FetchAllValidatorsFromContract scans the full contract history and folds
// it without touching persistence at all — a convenience entry point for
// callers without a Persistence implementation (SPEC_FULL.md §D.2).
func FetchAllValidatorsFromContract(ctx context.Context, provider L1Provider, auth staketable.Authenticator, opts Options, contract common.Address, toBlock uint64) (*staketable.ValidatorMap, error) {
	f := &Fetcher{provider: provider, auth: auth, opts: opts}
	events, err := f.fetchEventsFromContract(ctx, contract, nil, toBlock)
	if err != nil {
		return nil, err
	}
	plain := make([]staketable.Event, len(events))
	for i, e := range events {
		plain[i] = e.Event
	}
	return staketable.FoldEvents(plain, auth)
}

// ChainConfig returns the chain configuration for headerCommit, refetching
// from peers only when the cached value's commitment no longer matches (the
// staleness short-circuit described in SPEC_FULL.md §D.3).
func (f *Fetcher) ChainConfig(ctx context.Context, headerCommit common.Hash, resolved *ChainConfig) (ChainConfig, error) {
	cached, err := f.chainConfig.ChainConfig(ctx)
	if err != nil {
		return ChainConfig{}, errors.Wrap(err, "loading cached chain config")
	}
	if cached.Commit == headerCommit {
		return cached, nil
	}
	if resolved != nil {
		return *resolved, nil
	}
	cfg, err := f.peers.FetchChainConfig(ctx, headerCommit)
	if err != nil {
		return ChainConfig{}, errors.Wrap(err, "fetching chain config from peers")
	}
	return cfg, nil
}

// blockRange is a chunk [From, To] with both ends inclusive.
type blockRange struct {
	From, To uint64
}

func chunkRanges(from, to, size uint64) []blockRange {
	if size == 0 || from > to {
		return nil
	}
	var ranges []blockRange
	for start := from; start <= to; start += size {
		end := start + size - 1
		if end > to {
			end = to
		}
		ranges = append(ranges, blockRange{From: start, To: end})
		if end == to {
			break
		}
	}
	return ranges
}

// fetchChunked drives a single event kind's filter call across chunks
// sequentially, retrying each chunk indefinitely with a fixed delay on
// error (spec.md §4.4: no maximum retry count for L1 RPC failures).
func fetchChunked[T any](ctx context.Context, ranges []blockRange, retryDelay time.Duration, kind string, call func(ctx context.Context, from, to uint64) ([]LoggedEvent[T], error)) ([]LoggedEvent[T], error) {
	var out []LoggedEvent[T]
	for _, r := range ranges {
		for {
			events, err := call(ctx, r.From, r.To)
			if err == nil {
				out = append(out, events...)
				break
			}
			logger.Warn("L1 fetch failed, retrying", "kind", kind, "from", r.From, "to", r.To, "err", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return out, nil
}

// authenticateV2 drops any logged V2 event failing check, logging a warning
// for each rather than aborting the fetch (spec.md §4.1/§4.4: V2 event
// batches are filtered at fetch time through authenticate; failures are
// logged and dropped). Re-authentication happens again when the state
// machine folds the event (spec.md §4.2), so a dropped entry here is simply
// never offered to the fold.
func authenticateV2[T staketable.Event](kind string, logged []LoggedEvent[T], check func(T) error) []LoggedEvent[T] {
	out := make([]LoggedEvent[T], 0, len(logged))
	for _, le := range logged {
		if err := check(le.Event); err != nil {
			logger.Warn("dropping unauthenticated V2 event", "kind", kind, "log", le.Log.String(), "err", err)
			continue
		}
		out = append(out, le)
	}
	return out
}

// annotate converts a kind's raw logs into the core's KeyedEvent
// representation, failing fatally on any log missing a block number or log
// index (spec.md §4.1).
func annotate[T staketable.Event](logged []LoggedEvent[T]) ([]staketable.KeyedEvent, error) {
	out := make([]staketable.KeyedEvent, 0, len(logged))
	for _, le := range logged {
		if le.Log.BlockNumber == nil {
			return nil, missingBlockNumber(le.Log)
		}
		if le.Log.LogIndex == nil {
			return nil, missingLogIndex(le.Log)
		}
		out = append(out, staketable.KeyedEvent{Key: le.Log.Key(), Event: le.Event})
	}
	return out, nil
}

// fetchEventsFromContract fetches all seven event kinds over [from, to]
// (from == nil means "from the contract's initialization block") and
// returns them flattened into KeyedEvents, unsorted. The seven kinds run
// concurrently; within a kind, chunks are processed in order since later
// chunks' events must append after earlier ones for a stable merge.
func (f *Fetcher) fetchEventsFromContract(ctx context.Context, contract common.Address, from *uint64, to uint64) ([]staketable.KeyedEvent, error) {
	start := uint64(0)
	if from != nil {
		start = *from
	} else {
		initialized, err := f.provider.InitializedAtBlock(ctx, contract)
		if err != nil {
			return nil, errors.Wrap(err, "reading stake table contract initialization block")
		}
		start = initialized
	}

	if start > to {
		return nil, nil
	}
	ranges := chunkRanges(start, to, f.opts.chunkSize())
	delay := f.opts.retryDelay()

	var (
		registered   []LoggedEvent[staketable.RegisterEvent]
		registeredV2 []LoggedEvent[staketable.RegisterV2Event]
		deregistered []LoggedEvent[staketable.DeregisterEvent]
		delegated    []LoggedEvent[staketable.DelegateEvent]
		undelegated  []LoggedEvent[staketable.UndelegateEvent]
		keyUpdated   []LoggedEvent[staketable.KeyUpdateEvent]
		keyUpdatedV2 []LoggedEvent[staketable.KeyUpdateV2Event]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		registered, err = fetchChunked(gctx, ranges, delay, "registered", func(ctx context.Context, a, b uint64) ([]LoggedEvent[staketable.RegisterEvent], error) {
			return f.provider.FilterRegistered(ctx, contract, a, b)
		})
		return err
	})
	g.Go(func() (err error) {
		registeredV2, err = fetchChunked(gctx, ranges, delay, "registered_v2", func(ctx context.Context, a, b uint64) ([]LoggedEvent[staketable.RegisterV2Event], error) {
			return f.provider.FilterRegisteredV2(ctx, contract, a, b)
		})
		return err
	})
	g.Go(func() (err error) {
		deregistered, err = fetchChunked(gctx, ranges, delay, "deregistered", func(ctx context.Context, a, b uint64) ([]LoggedEvent[staketable.DeregisterEvent], error) {
			return f.provider.FilterDeregistered(ctx, contract, a, b)
		})
		return err
	})
	g.Go(func() (err error) {
		delegated, err = fetchChunked(gctx, ranges, delay, "delegated", func(ctx context.Context, a, b uint64) ([]LoggedEvent[staketable.DelegateEvent], error) {
			return f.provider.FilterDelegated(ctx, contract, a, b)
		})
		return err
	})
	g.Go(func() (err error) {
		undelegated, err = fetchChunked(gctx, ranges, delay, "undelegated", func(ctx context.Context, a, b uint64) ([]LoggedEvent[staketable.UndelegateEvent], error) {
			return f.provider.FilterUndelegated(ctx, contract, a, b)
		})
		return err
	})
	g.Go(func() (err error) {
		keyUpdated, err = fetchChunked(gctx, ranges, delay, "key_updated", func(ctx context.Context, a, b uint64) ([]LoggedEvent[staketable.KeyUpdateEvent], error) {
			return f.provider.FilterKeyUpdated(ctx, contract, a, b)
		})
		return err
	})
	g.Go(func() (err error) {
		keyUpdatedV2, err = fetchChunked(gctx, ranges, delay, "key_updated_v2", func(ctx context.Context, a, b uint64) ([]LoggedEvent[staketable.KeyUpdateV2Event], error) {
			return f.provider.FilterKeyUpdatedV2(ctx, contract, a, b)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	registeredV2 = authenticateV2("registered_v2", registeredV2, func(e staketable.RegisterV2Event) error {
		return f.auth.AuthenticateRegistration(e)
	})
	keyUpdatedV2 = authenticateV2("key_updated_v2", keyUpdatedV2, func(e staketable.KeyUpdateV2Event) error {
		return f.auth.AuthenticateKeyUpdate(e)
	})

	annotated := make([]staketable.KeyedEvent, 0,
		len(registered)+len(registeredV2)+len(deregistered)+len(delegated)+len(undelegated)+len(keyUpdated)+len(keyUpdatedV2))
	for _, kind := range []struct {
		name string
		fn   func() ([]staketable.KeyedEvent, error)
	}{
		{"registered", func() ([]staketable.KeyedEvent, error) { return annotate(registered) }},
		{"registered_v2", func() ([]staketable.KeyedEvent, error) { return annotate(registeredV2) }},
		{"deregistered", func() ([]staketable.KeyedEvent, error) { return annotate(deregistered) }},
		{"delegated", func() ([]staketable.KeyedEvent, error) { return annotate(delegated) }},
		{"undelegated", func() ([]staketable.KeyedEvent, error) { return annotate(undelegated) }},
		{"key_updated", func() ([]staketable.KeyedEvent, error) { return annotate(keyUpdated) }},
		{"key_updated_v2", func() ([]staketable.KeyedEvent, error) { return annotate(keyUpdatedV2) }},
	} {
		events, err := kind.fn()
		if err != nil {
			return nil, errors.Wrapf(err, "annotating %s events", kind.name)
		}
		annotated = append(annotated, events...)
	}

	return annotated, nil
}
