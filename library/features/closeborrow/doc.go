// Package closeborrow implements the Close Borrow (return) use case.
//
// The handler locks the borrow record, checks ownership and the AlreadyReturned guard, writes
// the RETURNED patch and releases the copy, all in one transaction. The guard makes sure the
// copy is released exactly once per borrow even when two returns of the same record race.
//
// After the transaction committed, the handler tells an ItemAvailabilityNotifier that the item
// has a free copy again. Notification is best effort: it never fails or rolls back the return.
package closeborrow
