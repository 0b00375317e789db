// Package lending holds the core model of the library lending system: items with a finite pool of
// lendable copies, borrow records that track each allocation, and waitlist entries for users who
// want to be told when an exhausted item becomes available again.
//
// The package is storage agnostic. Persistence is expressed through the Store and Tx interfaces,
// which are implemented by the postgresengine (PostgreSQL via pgx.Pool, sql.DB or sqlx.DB) and the
// memengine (in-process, used for tests and simulations) packages.
//
// Concurrency guarantees are the responsibility of the Tx implementation:
//
//   - ClaimCopy decrements an item's available count and flips one copy to BORROWED indivisibly
//     with respect to other claims on the same item.
//   - ReleaseCopy is the only way to put a copy back, and never lets the available count exceed
//     the total count.
//   - LockBorrowRecord serializes concurrent closes of the same record.
//   - DrainWaitlist reads and deletes the entries for an item atomically, so overlapping drains
//     of the same item never return the same entry twice.
//
// Observability is optional and dependency free: Logger, ContextualLogger, MetricsCollector and
// TracingCollector can be backed by log/slog, OpenTelemetry (see package oteladapters) or anything
// else that satisfies the interfaces.
package lending
