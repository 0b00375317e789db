package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine/internal/adapters"
)

const (
	logMsgBeginTxFailed       = "failed to begin transaction"
	logMsgCommitFailed        = "failed to commit transaction"
	logMsgRollbackFailed      = "failed to roll back transaction"
	logMsgBuildQueryFailed    = "failed to build query"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgDBExecFailed        = "database statement execution failed"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgRowsAffectedFailed  = "failed to get rows affected count"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgTxCommitted         = "transaction committed"
	logMsgTxRolledBack        = "transaction rolled back"
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "lending store operation: "
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrDurationMS         = "duration_ms"
	logAttrStatements         = "statements"
	logAttrRowsAffected       = "rows_affected"
	logActionTx               = "transaction"
)

// Store is a lending.Store backed by PostgreSQL.
type Store struct {
	db               adapters.DBAdapter
	logger           lending.Logger
	contextualLogger lending.ContextualLogger
	metricsCollector lending.MetricsCollector
	tracingCollector lending.TracingCollector
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	s := &Store{db: db}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// WithinTx runs fn in a read-committed transaction. See lending.Store for the contract.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx lending.Tx) error) error {
	start := time.Now()
	tracer, ctx := s.startTxTracing(ctx)

	dbTx, err := s.db.BeginTx(ctx)
	if err != nil {
		s.logError(ctx, logMsgBeginTxFailed, err)
		s.recordErrorMetrics(ctx, logActionTx, errorTypeBeginTx)
		tracer.finishError(errorTypeBeginTx, time.Since(start))

		return wrapDBError(lending.ErrBeginTxFailed, err)
	}

	t := &tx{store: s, db: dbTx}

	finished := false
	defer func() {
		if finished {
			return
		}

		// reached on error and on panic
		if rollbackErr := dbTx.Rollback(context.WithoutCancel(ctx)); rollbackErr != nil {
			s.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}
	}()

	if err := fn(ctx, t); err != nil {
		duration := time.Since(start)
		s.logDebug(ctx, logMsgTxRolledBack, logAttrError, err.Error(), logAttrDurationMS, toMilliseconds(duration))
		s.recordTxDuration(ctx, duration, statusError)
		tracer.finishError(errorTypeOf(err), duration)

		return err
	}

	finished = true
	if err := dbTx.Commit(ctx); err != nil {
		duration := time.Since(start)
		s.logError(ctx, logMsgCommitFailed, err)
		s.recordErrorMetrics(ctx, logActionTx, errorTypeCommit)
		s.recordTxDuration(ctx, duration, statusError)
		tracer.finishError(errorTypeCommit, duration)

		return wrapDBError(lending.ErrCommitFailed, err)
	}

	duration := time.Since(start)
	s.logInfo(ctx, logMsgTxCommitted, logAttrStatements, t.statements, logAttrDurationMS, toMilliseconds(duration))
	s.recordTxDuration(ctx, duration, statusSuccess)
	tracer.finishSuccess(t.statements, duration)

	return nil
}

// errorTypeOf reduces an error to a low-cardinality label.
func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, lending.ErrConcurrencyConflict):
		return errorTypeConcurrencyConflict
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeTimeout
	case errors.Is(err, lending.ErrQueryingFailed),
		errors.Is(err, lending.ErrScanningDBRowFailed),
		errors.Is(err, lending.ErrBuildingQueryFailed):
		return errorTypeDatabase
	default:
		return errorTypeBusiness
	}
}

func formatCount(n int) string {
	return strconv.Itoa(n)
}
