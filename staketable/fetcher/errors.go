package fetcher

import "fmt"

// EventSortingError is fatal to the fetch that produced it; the update loop
// simply retries the whole cycle on the next iteration.
type EventSortingError struct {
	cause string
	log   EventLog
}

func (e *EventSortingError) Error() string {
	return fmt.Sprintf("%s: %s", e.cause, e.log.String())
}

func missingBlockNumber(log EventLog) error {
	return &EventSortingError{cause: "missing block number", log: log}
}

func missingLogIndex(log EventLog) error {
	return &EventSortingError{cause: "missing log index", log: log}
}

// FetchRewardError covers every way block-reward derivation
// (Fetcher.FetchBlockReward) can fail. It is fatal to the caller that
// requested a reward (typically the next epoch-root update) but never to
// the process: the surrounding update cycle simply retries later.
type FetchRewardError struct {
	cause error
}

func (e *FetchRewardError) Error() string { return e.cause.Error() }
func (e *FetchRewardError) Unwrap() error { return e.cause }

func rewardErr(cause error) error { return &FetchRewardError{cause: cause} }

type missingStakeTableContractError struct{}

func (missingStakeTableContractError) Error() string { return "no stake table contract configured" }

type missingInitializedEventError struct{}

func (missingInitializedEventError) Error() string {
	return "token Initialized event logs are empty"
}

type missingTransactionHashError struct{ log EventLog }

func (e missingTransactionHashError) Error() string {
	return fmt.Sprintf("Initialized event log is missing a transaction hash: %s", e.log.String())
}

type invalidMintFromAddressError struct{}

func (invalidMintFromAddressError) Error() string {
	return "initial mint transfer did not originate from the zero address"
}

type divisionByZeroError struct{}

func (divisionByZeroError) Error() string { return "division by zero while computing block reward" }

type exceededMaxScanRangeError struct{ blocks uint64 }

func (e exceededMaxScanRangeError) Error() string {
	return fmt.Sprintf("exceeded maximum scan range of %d blocks while searching for token Initialized event", e.blocks)
}
