package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
	"github.com/AntonStoeckl/library-lending-go/library/shared/config"
)

const (
	envTestDSN     = "LENDING_TEST_PG_DSN"
	envAdapterType = "ADAPTER_TYPE"

	truncateAll = "TRUNCATE TABLE waitlist_entries, borrow_records, copies, items"
)

// Wrapper abstracts over the engine types.
type Wrapper interface {
	GetStore() *postgresengine.Store
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool  *pgxpool.Pool
	store *postgresengine.Store
}

func (w *PGXPoolWrapper) GetStore() *postgresengine.Store {
	return w.store
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db    *sql.DB
	store *postgresengine.Store
}

func (w *SQLDBWrapper) GetStore() *postgresengine.Store {
	return w.store
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // makes no sense to handle this
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db    *sqlx.DB
	store *postgresengine.Store
}

func (w *SQLXWrapper) GetStore() *postgresengine.Store {
	return w.store
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // makes no sense to handle this
}

// TestConfig returns the database config for tests and skips the test when no DSN is set.
func TestConfig(t testing.TB) config.PostgresConfig {
	t.Helper()

	dsn := os.Getenv(envTestDSN)
	if dsn == "" {
		t.Skipf("%s is not set, skipping PostgreSQL test", envTestDSN)
	}

	var cfg config.PostgresConfig
	require.NoError(t, config.Load(&cfg), "error loading postgres config")

	cfg.DSN = dsn
	cfg.AdapterType = os.Getenv(envAdapterType)

	return cfg
}

// CreateWrapperWithTestConfig connects with the adapter from ADAPTER_TYPE and migrates the schema.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	cfg := TestConfig(t)
	ctx := context.Background()

	adapterType, err := cfg.NormalizedAdapterType()
	require.NoError(t, err)

	switch adapterType {
	case config.AdapterPGXPool:
		pool, err := config.NewPGXPool(ctx, cfg)
		require.NoError(t, err, "error connecting to DB pool in test setup")
		require.NoError(t, postgresengine.MigrateFromPGXPool(ctx, pool, cfg.MigrationsTable, nil))

		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating store")

		return &PGXPoolWrapper{pool: pool, store: store}

	case config.AdapterSQLDB:
		db, err := config.NewSQLDB(ctx, cfg)
		require.NoError(t, err, "error connecting to DB in test setup")
		require.NoError(t, postgresengine.Migrate(ctx, db, cfg.MigrationsTable, nil))

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating store")

		return &SQLDBWrapper{db: db, store: store}

	case config.AdapterSQLXDB:
		db, err := config.NewSQLX(ctx, cfg)
		require.NoError(t, err, "error connecting to DB in test setup")
		require.NoError(t, postgresengine.Migrate(ctx, db.DB, cfg.MigrationsTable, nil))

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		require.NoError(t, err, "error creating store")

		return &SQLXWrapper{db: db, store: store}

	default:
		panic(fmt.Sprintf("unsupported adapter type: %s", adapterType))
	}
}

// CleanUp empties all lending tables for the given wrapper.
func CleanUp(t testing.TB, wrapper Wrapper) {
	t.Helper()

	var err error

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		_, err = w.pool.Exec(context.Background(), truncateAll)

	case *SQLDBWrapper:
		_, err = w.db.Exec(truncateAll)

	case *SQLXWrapper:
		_, err = w.db.Exec(truncateAll)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}

	require.NoError(t, err, "error cleaning up the lending tables")
}
