// Package oteladapters implements the lending observability interfaces on top of OpenTelemetry.
//
// Wire them into the store and the service like any other implementation:
//
//	logger := oteladapters.NewSlogBridgeLogger("library-lending")
//	metrics := oteladapters.NewMetricsCollector(meterProvider.Meter("library-lending"))
//	tracing := oteladapters.NewTracingCollector(tracerProvider.Tracer("library-lending"))
//
//	store, err := postgresengine.NewStoreFromPGXPool(pool,
//		postgresengine.WithContextualLogger(logger),
//		postgresengine.WithMetrics(metrics),
//		postgresengine.WithTracing(tracing),
//	)
//
// The slog bridge logger correlates every record with the span in its context.
package oteladapters
