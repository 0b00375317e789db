package library

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/library/features/borrowhistory"
	"github.com/AntonStoeckl/library-lending-go/library/features/closeborrow"
	"github.com/AntonStoeckl/library-lending-go/library/features/openborrow"
	"github.com/AntonStoeckl/library-lending-go/library/features/registerwaitlist"
	"github.com/AntonStoeckl/library-lending-go/library/notification"
	"github.com/AntonStoeckl/library-lending-go/library/shared/config"
	"github.com/AntonStoeckl/library-lending-go/library/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/library/shared/shell/observable"
)

const defaultLoanPeriod = 14 * 24 * time.Hour

// Service is the entry point of the request layer.
type Service struct {
	store      lending.Store
	dispatcher *notification.Dispatcher

	openBorrow       shell.CoreCommandHandler[openborrow.Command, lending.BorrowRecord]
	closeBorrow      shell.CoreCommandHandler[closeborrow.Command, lending.BorrowRecord]
	registerWaitlist shell.CoreCommandHandler[registerwaitlist.Command, registerwaitlist.Outcome]
	borrowHistory    shell.CoreQueryHandler[borrowhistory.Query, lending.HistoryPage]

	now          func() time.Time
	cfg          config.ServiceConfig
	retryOptions []shell.RetryOption

	logger           lending.Logger
	contextualLogger lending.ContextualLogger
	metricsCollector lending.MetricsCollector
	tracingCollector lending.TracingCollector
}

// NewService wires the features and the dispatcher on top of the store.
// The deliverer is usually a *notification.ConnectionRegistry.
func NewService(store lending.Store, deliverer notification.Deliverer, opts ...Option) (*Service, error) {
	s := &Service{
		store: store,
		now:   time.Now,
		cfg:   config.ServiceConfig{DefaultLoanPeriod: defaultLoanPeriod},
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	dispatcher, err := notification.NewDispatcher(store, deliverer, s.dispatcherOptions()...)
	if err != nil {
		return nil, err
	}

	s.dispatcher = dispatcher

	if err := s.wireHandlers(); err != nil {
		return nil, err
	}

	return s, nil
}

/***** commands *****/

// OpenBorrow claims a copy of the item for the user and returns the new ACTIVE record.
// It fails with lending.ErrInvalidDueDate, lending.ErrNotFound or lending.ErrUnavailable.
func (s *Service) OpenBorrow(ctx context.Context, userID, itemID uuid.UUID, dueAt time.Time) (lending.BorrowRecord, error) {
	record, _, err := s.openBorrow.Handle(ctx, openborrow.BuildCommand(userID, itemID, dueAt, s.now()))

	return record, err
}

// CloseBorrow returns the copy of the record and notifies the waitlist of its item.
// It fails with lending.ErrNotFound, lending.ErrForbidden or lending.ErrAlreadyReturned.
func (s *Service) CloseBorrow(ctx context.Context, borrowID uuid.UUID, actor lending.Actor) (lending.BorrowRecord, error) {
	record, _, err := s.closeBorrow.Handle(ctx, closeborrow.BuildCommand(borrowID, actor, s.now()))

	return record, err
}

// RegisterWaitlist puts the user on the waitlist of an exhausted item.
// AlreadyAvailable and AlreadyRegistered come back as outcomes with a nil error.
func (s *Service) RegisterWaitlist(
	ctx context.Context,
	userID uuid.UUID,
	itemID uuid.UUID,
	channelID string,
) (registerwaitlist.Outcome, error) {

	outcome, _, err := s.registerWaitlist.Handle(ctx, registerwaitlist.BuildCommand(userID, itemID, channelID, s.now()))

	return outcome, err
}

// AddInventory registers a new item with the given number of copies.
func (s *Service) AddInventory(ctx context.Context, title string, copies int) (lending.Item, error) {
	var item lending.Item

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx lending.Tx) error {
		itemID := uuid.New()

		if _, err := tx.AddItem(ctx, itemID, title); err != nil {
			return err
		}

		if _, err := tx.AddCopies(ctx, itemID, copies); err != nil {
			return err
		}

		var err error
		item, err = tx.GetItem(ctx, itemID)

		return err
	})
	if err != nil {
		return lending.Item{}, err
	}

	return item, nil
}

/***** queries *****/

// DescribeBorrow derives the view of a record as of now.
func (s *Service) DescribeBorrow(record lending.BorrowRecord) lending.BorrowView {
	return lending.Describe(record, s.now())
}

// GetBorrow reads one record with its view. Actors only see their own records unless privileged.
func (s *Service) GetBorrow(ctx context.Context, actor lending.Actor, borrowID uuid.UUID) (lending.DescribedBorrow, error) {
	var record lending.BorrowRecord

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx lending.Tx) error {
		var err error
		record, err = tx.GetBorrowRecord(ctx, borrowID)

		return err
	})
	if err != nil {
		return lending.DescribedBorrow{}, err
	}

	if !actor.MayAccess(record.UserID) {
		return lending.DescribedBorrow{}, lending.ErrForbidden
	}

	return lending.DescribedBorrow{Record: record, View: s.DescribeBorrow(record)}, nil
}

// HistoryQuery starts a borrow history query for the actor, evaluated as of now.
func (s *Service) HistoryQuery(actor lending.Actor) borrowhistory.Query {
	return borrowhistory.BuildQuery(actor, s.now())
}

// BorrowHistory returns one page of borrow records.
func (s *Service) BorrowHistory(ctx context.Context, query borrowhistory.Query) (lending.HistoryPage, error) {
	return s.borrowHistory.Handle(ctx, query)
}

// DefaultDueAt returns now plus the configured loan period.
func (s *Service) DefaultDueAt() time.Time {
	return s.now().Add(s.cfg.DefaultLoanPeriod)
}

// Dispatcher exposes the dispatcher, e.g. to trigger a dispatch after restocking.
func (s *Service) Dispatcher() *notification.Dispatcher {
	return s.dispatcher
}

/***** wiring *****/

func (s *Service) dispatcherOptions() []notification.DispatcherOption {
	var opts []notification.DispatcherOption

	if s.cfg.DeliveryTimeout > 0 {
		opts = append(opts, notification.WithDeliveryTimeout(s.cfg.DeliveryTimeout))
	}

	if s.logger != nil {
		opts = append(opts, notification.WithLogger(s.logger))
	}

	if s.contextualLogger != nil {
		opts = append(opts, notification.WithContextualLogger(s.contextualLogger))
	}

	if s.metricsCollector != nil {
		opts = append(opts, notification.WithMetrics(s.metricsCollector))
	}

	return opts
}

func (s *Service) wireHandlers() error {
	var err error

	s.openBorrow, err = observable.NewCommandWrapper[openborrow.Command, lending.BorrowRecord](
		openborrow.NewCommandHandler(s.store, openborrow.WithRetryOptions(s.retryOptions...)),
		commandOptions[openborrow.Command, lending.BorrowRecord](s)...,
	)
	if err != nil {
		return err
	}

	s.closeBorrow, err = observable.NewCommandWrapper[closeborrow.Command, lending.BorrowRecord](
		closeborrow.NewCommandHandler(
			s.store,
			closeborrow.WithRetryOptions(s.retryOptions...),
			closeborrow.WithNotifier(s.dispatcher),
		),
		commandOptions[closeborrow.Command, lending.BorrowRecord](s)...,
	)
	if err != nil {
		return err
	}

	s.registerWaitlist, err = observable.NewCommandWrapper[registerwaitlist.Command, registerwaitlist.Outcome](
		registerwaitlist.NewCommandHandler(s.store, registerwaitlist.WithRetryOptions(s.retryOptions...)),
		commandOptions[registerwaitlist.Command, registerwaitlist.Outcome](s)...,
	)
	if err != nil {
		return err
	}

	s.borrowHistory, err = observable.NewQueryWrapper[borrowhistory.Query, lending.HistoryPage](
		borrowhistory.NewQueryHandler(s.store),
		queryOptions[borrowhistory.Query, lending.HistoryPage](s)...,
	)

	return err
}

func commandOptions[C shell.Command, R any](s *Service) []observable.CommandOption[C, R] {
	var opts []observable.CommandOption[C, R]

	if s.metricsCollector != nil {
		opts = append(opts, observable.WithCommandMetrics[C, R](s.metricsCollector))
	}

	if s.tracingCollector != nil {
		opts = append(opts, observable.WithCommandTracing[C, R](s.tracingCollector))
	}

	if s.contextualLogger != nil {
		opts = append(opts, observable.WithCommandContextualLogging[C, R](s.contextualLogger))
	}

	if s.logger != nil {
		opts = append(opts, observable.WithCommandLogging[C, R](s.logger))
	}

	return opts
}

func queryOptions[Q shell.Query, R any](s *Service) []observable.QueryOption[Q, R] {
	var opts []observable.QueryOption[Q, R]

	if s.metricsCollector != nil {
		opts = append(opts, observable.WithQueryMetrics[Q, R](s.metricsCollector))
	}

	if s.tracingCollector != nil {
		opts = append(opts, observable.WithQueryTracing[Q, R](s.tracingCollector))
	}

	if s.contextualLogger != nil {
		opts = append(opts, observable.WithQueryContextualLogging[Q, R](s.contextualLogger))
	}

	if s.logger != nil {
		opts = append(opts, observable.WithQueryLogging[Q, R](s.logger))
	}

	return opts
}
