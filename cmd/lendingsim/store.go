package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/memengine"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
	"github.com/AntonStoeckl/library-lending-go/library/shared/config"
)

// openStore creates the configured engine. The returned function closes its connections.
func openStore(ctx context.Context, cfg Config, logger *slog.Logger, obs observability) (lending.Store, func(), error) {
	if cfg.Engine == engineMemory {
		store, err := memengine.NewStore(memengine.WithLogger(logger))
		return store, func() {}, err
	}

	options := obs.storeOptions(logger)

	adapterType, err := cfg.Postgres.NormalizedAdapterType()
	if err != nil {
		return nil, nil, err
	}

	logger.Info("connecting to postgres", "adapter", adapterType)

	switch adapterType {
	case config.AdapterSQLDB:
		db, err := config.NewSQLDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}

		closeDB := func() { _ = db.Close() }

		if err := postgresengine.Migrate(ctx, db, cfg.Postgres.MigrationsTable, logger); err != nil {
			closeDB()
			return nil, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		if err != nil {
			closeDB()
			return nil, nil, err
		}

		return store, closeDB, nil

	case config.AdapterSQLXDB:
		db, err := config.NewSQLX(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}

		closeDB := func() { _ = db.Close() }

		if err := postgresengine.Migrate(ctx, db.DB, cfg.Postgres.MigrationsTable, logger); err != nil {
			closeDB()
			return nil, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		if err != nil {
			closeDB()
			return nil, nil, err
		}

		return store, closeDB, nil

	case config.AdapterPGXPool:
		pool, err := config.NewPGXPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}

		if err := postgresengine.MigrateFromPGXPool(ctx, pool, cfg.Postgres.MigrationsTable, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}

		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}

		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", config.ErrUnknownAdapterType, adapterType)
	}
}
