package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
)

func newMetricsCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	return resourceMetrics
}

func findMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m
			}
		}
	}

	t.Fatalf("metric %s not found", name)

	return metricdata.Metrics{}
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// arrange
	collector, reader := newMetricsCollector()
	labels := map[string]string{"operation": "transaction", "status": "success"}

	// act
	collector.RecordDuration("lending_store_tx_duration_seconds", 150*time.Millisecond, labels)
	collector.RecordDurationContext(context.Background(), "lending_store_tx_duration_seconds", 50*time.Millisecond, labels)

	// assert
	m := findMetric(t, collect(t, reader), "lending_store_tx_duration_seconds")
	assert.Equal(t, "s", m.Unit)

	histogram, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected a float64 histogram")
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(2), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.2, histogram.DataPoints[0].Sum, 0.001)

	status, found := histogram.DataPoints[0].Attributes.Value(attribute.Key("status"))
	assert.True(t, found)
	assert.Equal(t, "success", status.AsString())
}

func Test_MetricsCollector_IncrementCounter_PerLabelSet(t *testing.T) {
	// arrange
	collector, reader := newMetricsCollector()

	// act
	collector.IncrementCounter("notification_deliveries_total", map[string]string{"status": "delivered"})
	collector.IncrementCounterContext(context.Background(), "notification_deliveries_total", map[string]string{"status": "delivered"})
	collector.IncrementCounter("notification_deliveries_total", map[string]string{"status": "failed"})

	// assert
	sum, ok := findMetric(t, collect(t, reader), "notification_deliveries_total").Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum")
	assert.True(t, sum.IsMonotonic)

	values := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		values[status.AsString()] = dp.Value
	}

	assert.Equal(t, map[string]int64{"delivered": 2, "failed": 1}, values)
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	// arrange
	collector, reader := newMetricsCollector()

	// act
	collector.RecordValue("lending_connected_users", 3, nil)
	collector.RecordValueContext(context.Background(), "lending_connected_users", 5, nil)

	// assert
	gauge, ok := findMetric(t, collect(t, reader), "lending_connected_users").Data.(metricdata.Gauge[float64])
	require.True(t, ok, "expected a float64 gauge")
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 5.0, gauge.DataPoints[0].Value, 0.0001)
}

func Test_MetricsCollector_ConcurrentUse(t *testing.T) {
	// arrange
	collector, reader := newMetricsCollector()

	var wg sync.WaitGroup

	// act
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			collector.IncrementCounter("commandhandler_handle_calls_total", map[string]string{"command_type": "OpenBorrow"})
		}()
	}

	wg.Wait()

	// assert
	sum, ok := findMetric(t, collect(t, reader), "commandhandler_handle_calls_total").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(50), sum.DataPoints[0].Value)
}
