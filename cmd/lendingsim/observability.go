package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
	"github.com/AntonStoeckl/library-lending-go/library"
	"github.com/AntonStoeckl/library-lending-go/library/shared/shell"
)

const instrumentationName = "library-lending-simulation"

// observability holds the OpenTelemetry providers of one run. The zero value is disabled.
type observability struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	reader         *sdkmetric.ManualReader

	logger  lending.ContextualLogger
	metrics lending.MetricsCollector
	tracing lending.TracingCollector
}

// setupObservability creates SDK providers and registers them globally. Metrics are read by a
// manual reader at the end of the run so the summary can print the command outcomes.
func setupObservability(ctx context.Context, enabled bool, logger *slog.Logger) (observability, error) {
	if !enabled {
		return observability{}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", instrumentationName)))
	if err != nil {
		return observability{}, err
	}

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return observability{
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		reader:         reader,
		logger:         oteladapters.NewSlogBridgeLoggerWithHandler(logger.Handler()),
		metrics:        oteladapters.NewMetricsCollector(meterProvider.Meter(instrumentationName)),
		tracing:        oteladapters.NewTracingCollector(tracerProvider.Tracer(instrumentationName)),
	}, nil
}

func (o observability) enabled() bool {
	return o.meterProvider != nil
}

func (o observability) storeOptions(logger *slog.Logger) []postgresengine.Option {
	if !o.enabled() {
		return []postgresengine.Option{postgresengine.WithLogger(logger)}
	}

	return []postgresengine.Option{
		postgresengine.WithContextualLogger(o.logger),
		postgresengine.WithMetrics(o.metrics),
		postgresengine.WithTracing(o.tracing),
	}
}

func (o observability) serviceOptions(logger *slog.Logger) []library.Option {
	if !o.enabled() {
		return []library.Option{library.WithLogger(logger)}
	}

	return []library.Option{
		library.WithContextualLogger(o.logger),
		library.WithMetrics(o.metrics),
		library.WithTracing(o.tracing),
	}
}

// commandCalls sums the command handler calls per command type and status.
func (o observability) commandCalls(ctx context.Context) (map[string]int64, error) {
	calls := make(map[string]int64)
	if !o.enabled() {
		return calls, nil
	}

	var resourceMetrics metricdata.ResourceMetrics
	if err := o.reader.Collect(ctx, &resourceMetrics); err != nil {
		return nil, err
	}

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name != shell.CommandHandlerCallsMetric {
				continue
			}

			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			for _, dp := range sum.DataPoints {
				commandType, _ := dp.Attributes.Value(attribute.Key(shell.LogAttrCommandType))
				status, _ := dp.Attributes.Value(attribute.Key(shell.LogAttrStatus))
				calls[commandType.AsString()+"/"+status.AsString()] += dp.Value
			}
		}
	}

	return calls, nil
}

func (o observability) shutdown() error {
	if !o.enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return errors.Join(o.tracerProvider.Shutdown(ctx), o.meterProvider.Shutdown(ctx))
}
