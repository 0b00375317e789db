package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	defaultDeliveryTimeout = 2 * time.Second

	metricDeliveries       = "notification_deliveries_total"
	metricDispatchDuration = "notification_dispatch_duration_seconds"
	labelStatus            = "status"
	statusDelivered        = "delivered"
	statusFailed           = "failed"
	statusSuccess          = "success"
	statusError            = "error"

	logMsgDispatched     = "waitlist dispatched"
	logMsgDeliveryFailed = "notification not delivered"
	logMsgDispatchFailed = "waitlist dispatch failed"
	logAttrItemID        = "item_id"
	logAttrDrained       = "drained"
	logAttrDelivered     = "delivered"
	logAttrFailed        = "failed"
)

var (
	// ErrNilStore is returned by NewDispatcher without a store.
	ErrNilStore = errors.New("store must not be nil")

	// ErrNilDeliverer is returned by NewDispatcher without a deliverer.
	ErrNilDeliverer = errors.New("deliverer must not be nil")

	// ErrInvalidDeliveryTimeout is returned for a delivery timeout that is not positive.
	ErrInvalidDeliveryTimeout = errors.New("delivery timeout must be positive")
)

// Report summarizes one dispatch.
type Report struct {
	Drained   int
	Delivered int
	Failed    int
}

// Dispatcher drains waitlists and delivers the item_available messages.
type Dispatcher struct {
	store            lending.Store
	deliverer        Deliverer
	deliveryTimeout  time.Duration
	logger           lending.Logger
	contextualLogger lending.ContextualLogger
	metricsCollector lending.MetricsCollector
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher) error

// WithDeliveryTimeout bounds each single delivery attempt.
func WithDeliveryTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) error {
		if timeout <= 0 {
			return ErrInvalidDeliveryTimeout
		}

		d.deliveryTimeout = timeout

		return nil
	}
}

// WithLogger sets a basic logger.
func WithLogger(logger lending.Logger) DispatcherOption {
	return func(d *Dispatcher) error {
		d.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, it takes precedence over WithLogger.
func WithContextualLogger(logger lending.ContextualLogger) DispatcherOption {
	return func(d *Dispatcher) error {
		d.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector lending.MetricsCollector) DispatcherOption {
	return func(d *Dispatcher) error {
		d.metricsCollector = collector
		return nil
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store lending.Store, deliverer Deliverer, opts ...DispatcherOption) (*Dispatcher, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	if deliverer == nil {
		return nil, ErrNilDeliverer
	}

	d := &Dispatcher{
		store:           store,
		deliverer:       deliverer,
		deliveryTimeout: defaultDeliveryTimeout,
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Dispatch drains the waitlist of the item and delivers one message per drained entry.
// The drain is atomic per item: entries taken by one dispatch are invisible to any other.
// Failed deliveries are counted in the report and never re-queued.
func (d *Dispatcher) Dispatch(ctx context.Context, itemID uuid.UUID) (Report, error) {
	start := time.Now()

	var (
		item    lending.Item
		entries []lending.WaitlistEntry
	)

	err := d.store.WithinTx(ctx, func(ctx context.Context, tx lending.Tx) error {
		var err error
		if item, err = tx.GetItem(ctx, itemID); err != nil {
			return err
		}

		entries, err = tx.DrainWaitlist(ctx, itemID)

		return err
	})
	if err != nil {
		d.recordDuration(ctx, statusError, time.Since(start))
		return Report{}, err
	}

	report := Report{Drained: len(entries)}
	msg := NewItemAvailableMessage(item)

	for _, entry := range entries {
		if d.deliver(ctx, entry, msg) {
			report.Delivered++
			d.incrementDeliveries(ctx, statusDelivered)
			continue
		}

		report.Failed++
		d.incrementDeliveries(ctx, statusFailed)
		d.logInfo(ctx, logMsgDeliveryFailed, logAttrUserID, entry.UserID.String(), logAttrItemID, itemID.String())
	}

	d.recordDuration(ctx, statusSuccess, time.Since(start))
	d.logInfo(
		ctx, logMsgDispatched,
		logAttrItemID, itemID.String(),
		logAttrDrained, report.Drained,
		logAttrDelivered, report.Delivered,
		logAttrFailed, report.Failed,
	)

	return report, nil
}

// OnItemAvailable dispatches after a successful return. It runs detached from the caller's
// cancellation because the return has already committed; errors are logged and swallowed.
func (d *Dispatcher) OnItemAvailable(ctx context.Context, itemID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)

	if _, err := d.Dispatch(ctx, itemID); err != nil {
		d.logError(ctx, logMsgDispatchFailed, logAttrItemID, itemID.String(), logAttrError, err.Error())
	}
}

func (d *Dispatcher) deliver(ctx context.Context, entry lending.WaitlistEntry, msg Message) bool {
	deliveryCtx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	defer cancel()

	return d.deliverer.Deliver(deliveryCtx, entry.UserID, msg)
}

/***** observability *****/

func (d *Dispatcher) logInfo(ctx context.Context, msg string, args ...any) {
	if d.contextualLogger != nil {
		d.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Dispatcher) logError(ctx context.Context, msg string, args ...any) {
	if d.contextualLogger != nil {
		d.contextualLogger.ErrorContext(ctx, msg, args...)
		return
	}

	if d.logger != nil {
		d.logger.Error(msg, args...)
	}
}

func (d *Dispatcher) incrementDeliveries(ctx context.Context, status string) {
	if d.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelStatus: status}

	if contextualCollector, ok := d.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricDeliveries, labels)
		return
	}

	d.metricsCollector.IncrementCounter(metricDeliveries, labels)
}

func (d *Dispatcher) recordDuration(ctx context.Context, status string, duration time.Duration) {
	if d.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelStatus: status}

	if contextualCollector, ok := d.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricDispatchDuration, duration, labels)
		return
	}

	d.metricsCollector.RecordDuration(metricDispatchDuration, duration, labels)
}
