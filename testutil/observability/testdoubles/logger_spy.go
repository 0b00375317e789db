package testdoubles

import (
	"context"
	"slices"
	"sync"
)

// LoggerSpy implements both lending.Logger and lending.ContextualLogger.
type LoggerSpy struct {
	records     []SpyLogRecord
	mu          sync.Mutex
	recordCalls bool
}

// SpyLogRecord represents a recorded log call. Non-contextual calls record context.Background().
type SpyLogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context
}

// NewLoggerSpy creates a new LoggerSpy instance.
func NewLoggerSpy(recordCalls bool) *LoggerSpy {
	return &LoggerSpy{recordCalls: recordCalls}
}

func (s *LoggerSpy) record(ctx context.Context, level, msg string, args []any) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpyLogRecord{
		Level:   level,
		Message: msg,
		Args:    slices.Clone(args),
		Context: ctx,
	})
}

func (s *LoggerSpy) Debug(msg string, args ...any) { s.record(context.Background(), "debug", msg, args) }
func (s *LoggerSpy) Info(msg string, args ...any)  { s.record(context.Background(), "info", msg, args) }
func (s *LoggerSpy) Warn(msg string, args ...any)  { s.record(context.Background(), "warn", msg, args) }
func (s *LoggerSpy) Error(msg string, args ...any) { s.record(context.Background(), "error", msg, args) }

func (s *LoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "debug", msg, args)
}

func (s *LoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "info", msg, args)
}

func (s *LoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "warn", msg, args)
}

func (s *LoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "error", msg, args)
}

// Records returns a copy of all records of the given level, or of all levels for "".
func (s *LoggerSpy) Records(level string) []SpyLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []SpyLogRecord
	for _, record := range s.records {
		if level == "" || record.Level == level {
			out = append(out, record)
		}
	}

	return out
}

// HasLog checks if a log with the given level and message exists.
func (s *LoggerSpy) HasLog(level, message string) bool {
	for _, record := range s.Records(level) {
		if record.Message == message {
			return true
		}
	}

	return false
}

// Reset clears all recorded log calls.
func (s *LoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
}
