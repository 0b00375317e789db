package postgresengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	metricTxDuration           = "lending_store_tx_duration_seconds"
	metricStatementDuration    = "lending_store_statement_duration_seconds"
	metricDatabaseErrors       = "lending_store_database_errors_total"
	metricConcurrencyConflicts = "lending_store_concurrency_conflicts_total"

	spanNameTx           = "lending_store.transaction"
	spanAttrOperation    = "operation"
	spanAttrStatements   = "statements"
	spanAttrDurationMS   = "duration_ms"
	spanAttrErrorType    = "error_type"
	labelStatus          = "status"
	labelConflictType    = "conflict_type"
	statusSuccess        = "success"
	statusError          = "error"
	conflictSerializable = "serialization"

	errorTypeBeginTx             = "begin_tx_error"
	errorTypeCommit              = "commit_error"
	errorTypeBuildQuery          = "build_query_error"
	errorTypeQuery               = "query_error"
	errorTypeExec                = "exec_error"
	errorTypeScan                = "row_scan_error"
	errorTypeRowsAffected        = "rows_affected_error"
	errorTypeConcurrencyConflict = "concurrency_conflict"
	errorTypeCanceled            = "canceled"
	errorTypeTimeout             = "timeout"
	errorTypeDatabase            = "database"
	errorTypeBusiness            = "business"
)

/***** logging *****/

func (s *Store) logDebug(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Store) logInfo(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Store) logWarn(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// logError logs error information at the error level, the error goes first.
func (s *Store) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if s.logger != nil {
		s.logger.Error(msg, allArgs...)
	}
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s *Store) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	s.logDebug(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

/***** metrics *****/

func (s *Store) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metric, duration, labels)
}

func (s *Store) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metric, labels)
}

func (s *Store) recordTxDuration(ctx context.Context, duration time.Duration, status string) {
	s.recordDuration(ctx, metricTxDuration, duration, map[string]string{
		spanAttrOperation: logActionTx,
		labelStatus:       status,
	})
}

func (s *Store) recordStatementDuration(ctx context.Context, action string, duration time.Duration) {
	s.recordDuration(ctx, metricStatementDuration, duration, map[string]string{
		spanAttrOperation: action,
		labelStatus:       statusSuccess,
	})
}

func (s *Store) recordErrorMetrics(ctx context.Context, action, errorType string) {
	s.incrementCounter(ctx, metricDatabaseErrors, map[string]string{
		spanAttrOperation: action,
		labelStatus:       statusError,
		spanAttrErrorType: errorType,
	})
}

func (s *Store) recordConcurrencyConflict(ctx context.Context, action string) {
	s.logInfo(ctx, logMsgConcurrencyConflict, spanAttrOperation, action)
	s.incrementCounter(ctx, metricConcurrencyConflicts, map[string]string{
		spanAttrOperation: action,
		labelConflictType: conflictSerializable,
	})
}

/***** tracing *****/

// txTracingObserver encapsulates the span lifecycle of one transaction.
type txTracingObserver struct {
	store *Store
	span  lending.SpanContext
}

func (s *Store) startTxTracing(ctx context.Context) (*txTracingObserver, context.Context) {
	observer := &txTracingObserver{store: s}

	if s.tracingCollector == nil {
		return observer, ctx
	}

	newCtx, span := s.tracingCollector.StartSpan(ctx, spanNameTx, map[string]string{
		spanAttrOperation: logActionTx,
	})
	observer.span = span

	return observer, newCtx
}

func (o *txTracingObserver) finishSuccess(statements int, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.span.SetStatus(statusSuccess)
	o.store.tracingCollector.FinishSpan(o.span, statusSuccess, map[string]string{
		spanAttrStatements: formatCount(statements),
		spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration)),
	})
}

func (o *txTracingObserver) finishError(errorType string, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.span.SetStatus(statusError)
	o.store.tracingCollector.FinishSpan(o.span, statusError, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration)),
	})
}
