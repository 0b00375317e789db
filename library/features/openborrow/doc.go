// Package openborrow implements the Open Borrow use case.
//
// A user borrows one copy of an item until a due date. The handler claims a free copy through
// the allocator and inserts the ACTIVE borrow record in the same transaction, so either both
// happen or neither does. Storage contention is retried with exponential backoff; business
// errors (ErrNotFound, ErrUnavailable, ErrInvalidDueDate) fail fast.
package openborrow
