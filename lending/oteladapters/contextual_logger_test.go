package oteladapters_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"

	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
)

// recordingLogger is an OpenTelemetry log.Logger that keeps emitted records in memory.
type recordingLogger struct {
	embedded.Logger

	mu      sync.Mutex
	records []log.Record
}

func (l *recordingLogger) Emit(_ context.Context, record log.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, record)
}

func (l *recordingLogger) Enabled(context.Context, log.EnabledParameters) bool {
	return true
}

func attributesOf(record log.Record) map[string]log.Value {
	attrs := make(map[string]log.Value)
	record.WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})

	return attrs
}

func Test_SlogBridgeLoggerWithHandler_AllLevels(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "copy claimed", "item_id", "i-1")
	logger.InfoContext(ctx, "borrow opened")
	logger.WarnContext(ctx, "rollback failed")
	logger.ErrorContext(ctx, "dispatch failed")

	// assert
	output := buf.String()
	assert.Contains(t, output, `"level":"DEBUG","msg":"copy claimed","item_id":"i-1"`)
	assert.Contains(t, output, `"msg":"borrow opened"`)
	assert.Contains(t, output, `"level":"WARN"`)
	assert.Contains(t, output, `"level":"ERROR"`)
}

func Test_SlogBridgeLogger_DoesNotPanicWithoutProvider(t *testing.T) {
	logger := oteladapters.NewSlogBridgeLogger("library-lending")

	assert.NotPanics(t, func() {
		logger.InfoContext(context.Background(), "waitlist dispatched", "drained", 3)
	})
}

func Test_OTelLogger_EmitsTypedAttributes(t *testing.T) {
	// arrange
	recorder := &recordingLogger{}
	logger := oteladapters.NewOTelLogger(recorder)

	// act
	logger.InfoContext(context.Background(), "waitlist dispatched",
		"item_id", "i-1",
		"drained", 3,
		"idempotent", true,
		"duration_ms", 1.5,
		"dangling",
	)
	logger.ErrorContext(context.Background(), "dispatch failed")

	// assert
	require.Len(t, recorder.records, 2)

	info := recorder.records[0]
	assert.Equal(t, log.SeverityInfo, info.Severity())
	assert.Equal(t, "waitlist dispatched", info.Body().AsString())

	attrs := attributesOf(info)
	assert.Len(t, attrs, 4)
	assert.Equal(t, "i-1", attrs["item_id"].AsString())
	assert.Equal(t, int64(3), attrs["drained"].AsInt64())
	assert.True(t, attrs["idempotent"].AsBool())
	assert.InDelta(t, 1.5, attrs["duration_ms"].AsFloat64(), 0.0001)

	assert.Equal(t, log.SeverityError, recorder.records[1].Severity())
}
