// Package adapters provides database adapter implementations for the PostgreSQL lending store.
//
// Three PostgreSQL client libraries are supported: pgxpool.Pool, sql.DB and sqlx.DB. Each adapter
// offers plain statement execution and read-committed transactions through the DBAdapter and DBTx
// interfaces, so the store code is written once against those interfaces.
package adapters
