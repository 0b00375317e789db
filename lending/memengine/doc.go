// Package memengine is an in-process implementation of lending.Store.
//
// Every transaction buffers its writes and applies them in one step on commit, so readers outside
// the transaction only ever see committed state. Rows are protected by per-key locks (one per item,
// borrow record and item waitlist) that a transaction acquires on first use and holds until it
// ends. There is no store-wide lock around a unit of work: claims on different items, closes of
// different records and drains of different waitlists run in parallel.
//
// Lock order is borrow record before item and item before waitlist, so transactions never wait on
// each other in a cycle. Waiting for a lock honours context cancellation.
package memengine
