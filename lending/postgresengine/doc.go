// Package postgresengine implements lending.Store on PostgreSQL.
//
// The store works with pgxpool.Pool, sql.DB (lib/pq) or sqlx.DB. All statements are built with
// goqu and run inside read-committed transactions. Concurrency is handled by the database:
//
//   - claims use a conditional decrement (available_copies > 0) and flip one AVAILABLE copy picked
//     with FOR UPDATE SKIP LOCKED
//   - releases increment only while available_copies < total_copies
//   - closing a borrow record reads it with FOR UPDATE and updates it only while returned_at IS NULL
//   - waitlist registration reads the item with FOR SHARE, so a concurrent release waits for it
//   - waitlist drains use DELETE ... RETURNING, so overlapping drains never see the same entry
//
// Serialization failures and deadlocks are reported as lending.ErrConcurrencyConflict so callers
// can retry the whole unit of work. The schema is created by Migrate from embedded goose migrations.
package postgresengine
