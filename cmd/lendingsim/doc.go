// Command lendingsim runs concurrent readers against the lending service and checks the
// inventory invariants afterward.
//
// Every reader is an actor that borrows random items, returns them after a while, and joins the
// waitlist when an item is exhausted. A share of the readers keeps a live channel open in the
// connection registry and counts the item_available notifications it receives.
//
// Usage:
//
//	go run ./cmd/lendingsim -engine=memory -duration=10s
//	LENDING_PG_DSN=postgres://... go run ./cmd/lendingsim -engine=postgres -observability
//
// The PostgreSQL adapter is selected with LENDING_PG_ADAPTER (pgx.pool, sql.db or sqlx.db).
// The schema is migrated with goose before the simulation starts.
//
// The process exits with status 1 when an invariant is violated.
package main
