// Package staketable reconstructs an authoritative validator set from an
// append-only log of staking-contract events.
//
// It is the event model, the authenticator, the fold ("state machine"), and
// the active-set selector described by the enclosing repository's epoch
// stake-table core. Everything that talks to L1, to persistence, or to peers
// lives one level down in sibling packages (fetcher, committee, leader) and
// reaches this package only through plain Go values.
package staketable
