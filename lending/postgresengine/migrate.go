package postgresengine

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	DefaultMigrationsTable = "lending_schema_migrations"
	migrationsDir          = "migrations"
	gooseDialect           = "postgres"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrMigrationFailed is returned when the schema could not be brought up to date.
var ErrMigrationFailed = errors.New("failed to apply database migrations")

// MigrateFromPGXPool applies the embedded migrations through a database/sql view of the pool.
func MigrateFromPGXPool(ctx context.Context, pool *pgxpool.Pool, migrationsTable string, logger lending.Logger) error {
	if pool == nil {
		return lending.ErrNilDatabaseConnection
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	return Migrate(ctx, db, migrationsTable, logger)
}

// Migrate applies all pending embedded migrations. goose keeps its configuration in package
// state, so concurrent calls with different tables are not supported.
func Migrate(ctx context.Context, db *sql.DB, migrationsTable string, logger lending.Logger) error {
	if db == nil {
		return lending.ErrNilDatabaseConnection
	}

	if migrationsTable == "" {
		return lending.ErrEmptyTableName
	}

	goose.SetBaseFS(migrations)
	goose.SetTableName(migrationsTable)
	goose.SetLogger(gooseLogger{logger: logger})

	if err := goose.SetDialect(gooseDialect); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	return nil
}

// gooseLogger routes goose output into a lending.Logger.
type gooseLogger struct {
	logger lending.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	if l.logger != nil {
		l.logger.Info(fmt.Sprintf(format, v...))
	}
}

// Fatalf must not exit the process, the error is returned by goose as well.
func (l gooseLogger) Fatalf(format string, v ...any) {
	if l.logger != nil {
		l.logger.Error(fmt.Sprintf(format, v...))
	}
}
