// Package postgreswrapper runs the PostgreSQL store tests against pgx.Pool, sql.DB or sqlx.DB.
//
// The database is taken from LENDING_TEST_PG_DSN, tests are skipped when it is unset. The adapter
// is selected with ADAPTER_TYPE (pgx.pool, sql.db or sqlx.db; pgx.pool when empty), so the same
// suite covers all three adapters in CI:
//
//	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
//	defer wrapper.Close()
//	postgreswrapper.CleanUp(t, wrapper)
//	store := wrapper.GetStore()
package postgreswrapper
