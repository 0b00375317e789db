package library_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/library"
	"github.com/AntonStoeckl/library-lending-go/library/features/registerwaitlist"
	"github.com/AntonStoeckl/library-lending-go/library/notification"
	"github.com/AntonStoeckl/library-lending-go/library/shared/config"
	"github.com/AntonStoeckl/library-lending-go/library/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/testutil/fixtures"
	"github.com/AntonStoeckl/library-lending-go/testutil/observability/testdoubles"
)

var fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T, store lending.Store, deliverer notification.Deliverer, opts ...library.Option) *library.Service {
	t.Helper()

	opts = append([]library.Option{library.WithClock(func() time.Time { return fixedNow })}, opts...)
	service, err := library.NewService(store, deliverer, opts...)
	require.NoError(t, err, "error in creating the service")

	return service
}

func Test_Service_OpenAndClose(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Dune", 2)
	service := newService(t, store, testdoubles.NewDelivererSpy())
	userID := uuid.New()

	// act
	opened, openErr := service.OpenBorrow(context.Background(), userID, itemID, service.DefaultDueAt())
	afterOpen := fixtures.LoadItem(t, store, itemID)
	closed, closeErr := service.CloseBorrow(context.Background(), opened.ID, lending.Actor{ID: userID})

	// assert
	require.NoError(t, openErr)
	require.NoError(t, closeErr)
	assert.Equal(t, lending.BorrowActive, opened.Status)
	assert.Equal(t, fixedNow.Add(14*24*time.Hour), opened.DueAt)
	assert.Equal(t, 1, afterOpen.AvailableCopies)
	assert.Equal(t, lending.BorrowReturned, closed.Status)
	require.NotNil(t, closed.ReturnedAt)
	assert.Equal(t, fixedNow, *closed.ReturnedAt)
	assert.Equal(t, 2, fixtures.AssertInventoryConsistent(t, store, itemID).AvailableCopies)
}

func Test_Service_OpenBorrow_Error_DueDateInThePast(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Dune", 1)
	service := newService(t, store, testdoubles.NewDelivererSpy())

	// act
	_, err := service.OpenBorrow(context.Background(), uuid.New(), itemID, fixedNow.Add(-time.Second))

	// assert
	assert.ErrorIs(t, err, lending.ErrInvalidDueDate)
	assert.Equal(t, 1, fixtures.LoadItem(t, store, itemID).AvailableCopies)
}

func Test_Service_OpenBorrow_ConcurrentOpens_ExactlyOneWins(t *testing.T) {
	// arrange
	const borrowers = 25

	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Dune", 1)
	service := newService(t, store, testdoubles.NewDelivererSpy())

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		successes   int
		unavailable int
	)

	// act
	for range borrowers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := service.OpenBorrow(context.Background(), uuid.New(), itemID, service.DefaultDueAt())

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				successes++
			case errors.Is(err, lending.ErrUnavailable):
				unavailable++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	// assert
	assert.Equal(t, 1, successes)
	assert.Equal(t, borrowers-1, unavailable)
	assert.Equal(t, 0, fixtures.AssertInventoryConsistent(t, store, itemID).AvailableCopies)
}

func Test_Service_CloseBorrow_ConcurrentCloses_OnlyOneReturns(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Dune", 1)
	service := newService(t, store, testdoubles.NewDelivererSpy())
	userID := uuid.New()
	record, err := service.OpenBorrow(context.Background(), userID, itemID, service.DefaultDueAt())
	require.NoError(t, err)

	errs := make([]error, 2)

	var wg sync.WaitGroup

	// act
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, errs[i] = service.CloseBorrow(context.Background(), record.ID, lending.Actor{ID: userID})
		}()
	}

	wg.Wait()

	// assert
	joined := errors.Join(errs...)
	assert.ErrorIs(t, joined, lending.ErrAlreadyReturned)
	assert.True(t, errs[0] == nil || errs[1] == nil, "one close must succeed")
	assert.Equal(t, 1, fixtures.AssertInventoryConsistent(t, store, itemID).AvailableCopies)
}

func Test_Service_CloseBorrow_Error_Forbidden(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Dune", 1)
	service := newService(t, store, testdoubles.NewDelivererSpy())
	record, err := service.OpenBorrow(context.Background(), uuid.New(), itemID, service.DefaultDueAt())
	require.NoError(t, err)

	// act
	_, err = service.CloseBorrow(context.Background(), record.ID, lending.Actor{ID: uuid.New()})

	// assert
	assert.ErrorIs(t, err, lending.ErrForbidden)
	assert.Equal(t, 0, fixtures.LoadItem(t, store, itemID).AvailableCopies)
}

func Test_Service_Waitlist_NotifiesEveryWaitingUserOnce(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Beloved", 1)
	registry := notification.NewConnectionRegistry()
	defer registry.Close()
	service := newService(t, store, registry)

	holder := uuid.New()
	record, err := service.OpenBorrow(context.Background(), holder, itemID, service.DefaultDueAt())
	require.NoError(t, err)

	connections := make([]*notification.Connection, 0, 3)
	for range 3 {
		userID := uuid.New()
		conn, connectErr := registry.Connect(userID, "ws-"+userID.String())
		require.NoError(t, connectErr)
		connections = append(connections, conn)

		outcome, registerErr := service.RegisterWaitlist(context.Background(), userID, itemID, conn.ChannelID())
		require.NoError(t, registerErr)
		require.Equal(t, registerwaitlist.Registered, outcome)
	}

	// act
	_, err = service.CloseBorrow(context.Background(), record.ID, lending.Actor{ID: holder})
	require.NoError(t, err)

	again, err := service.OpenBorrow(context.Background(), holder, itemID, service.DefaultDueAt())
	require.NoError(t, err)
	_, err = service.CloseBorrow(context.Background(), again.ID, lending.Actor{ID: holder})
	require.NoError(t, err)

	// assert
	for _, conn := range connections {
		require.Len(t, conn.Frames(), 1, "user %s must be notified exactly once", conn.UserID())

		msg, decodeErr := notification.DecodeMessage(<-conn.Frames())
		require.NoError(t, decodeErr)
		assert.Equal(t, notification.MessageTypeItemAvailable, msg.Type)
		assert.Equal(t, itemID, msg.ItemID)
		assert.Equal(t, "The book 'Beloved' is now available.", msg.Message)
	}
}

func Test_Service_RegisterWaitlist_AlreadyAvailable_InsertsNothing(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Beloved", 1)
	deliverer := testdoubles.NewDelivererSpy()
	service := newService(t, store, deliverer)

	// act
	outcome, err := service.RegisterWaitlist(context.Background(), uuid.New(), itemID, "")

	// assert
	require.NoError(t, err)
	assert.Equal(t, registerwaitlist.AlreadyAvailable, outcome)
	assert.ErrorIs(t, outcome.Err(), lending.ErrAlreadyAvailable)

	report, err := service.Dispatcher().Dispatch(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Drained)
}

func Test_Service_CloseBorrow_OfflineWaiterIsDropped(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Beloved", 1)
	offline := uuid.New()
	deliverer := testdoubles.NewDelivererSpy(offline)
	service := newService(t, store, deliverer)

	holder := uuid.New()
	record, err := service.OpenBorrow(context.Background(), holder, itemID, service.DefaultDueAt())
	require.NoError(t, err)
	_, err = service.RegisterWaitlist(context.Background(), offline, itemID, "")
	require.NoError(t, err)

	// act
	_, err = service.CloseBorrow(context.Background(), record.ID, lending.Actor{ID: holder})

	// assert
	require.NoError(t, err, "delivery failures must not fail the return")
	assert.Equal(t, []uuid.UUID{offline}, deliverer.DeliveredTo())

	report, err := service.Dispatcher().Dispatch(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Drained, "dropped notifications are not replayed")
}

func Test_Service_DescribeBorrow_Overdue(t *testing.T) {
	// arrange
	borrowedAt := fixedNow.Add(-10 * 24 * time.Hour)
	record := lending.NewActiveBorrowRecord(uuid.New(), uuid.New(), uuid.New(), uuid.New(), borrowedAt, borrowedAt.Add(7*24*time.Hour))
	service := newService(t, fixtures.NewMemStore(t), testdoubles.NewDelivererSpy())

	// act
	view := service.DescribeBorrow(record)

	// assert
	assert.True(t, view.IsOverdue)
	assert.Equal(t, 0, view.DaysRemaining)
	assert.Equal(t, 3, view.DaysOverdue)
}

func Test_Service_GetBorrow(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Dune", 1)
	service := newService(t, store, testdoubles.NewDelivererSpy())
	owner := uuid.New()
	record, err := service.OpenBorrow(context.Background(), owner, itemID, fixedNow.Add(48*time.Hour))
	require.NoError(t, err)

	// act
	own, ownErr := service.GetBorrow(context.Background(), lending.Actor{ID: owner}, record.ID)
	_, strangerErr := service.GetBorrow(context.Background(), lending.Actor{ID: uuid.New()}, record.ID)
	_, privilegedErr := service.GetBorrow(context.Background(), lending.Actor{ID: uuid.New(), IsPrivileged: true}, record.ID)
	_, missingErr := service.GetBorrow(context.Background(), lending.Actor{ID: owner}, uuid.New())

	// assert
	require.NoError(t, ownErr)
	assert.Equal(t, record.ID, own.Record.ID)
	assert.Equal(t, 2, own.View.DaysRemaining)
	assert.ErrorIs(t, strangerErr, lending.ErrForbidden)
	assert.NoError(t, privilegedErr)
	assert.ErrorIs(t, missingErr, lending.ErrNotFound)
}

func Test_Service_BorrowHistory(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Dune", 3)
	service := newService(t, store, testdoubles.NewDelivererSpy())
	reader := uuid.New()

	for range 2 {
		_, err := service.OpenBorrow(context.Background(), reader, itemID, service.DefaultDueAt())
		require.NoError(t, err)
	}

	_, err := service.OpenBorrow(context.Background(), uuid.New(), itemID, service.DefaultDueAt())
	require.NoError(t, err)

	// act
	own, ownErr := service.BorrowHistory(context.Background(), service.HistoryQuery(lending.Actor{ID: reader}).OwnedBy(reader))
	_, foreignErr := service.BorrowHistory(context.Background(), service.HistoryQuery(lending.Actor{ID: reader}).OwnedBy(uuid.New()))
	all, allErr := service.BorrowHistory(context.Background(), service.HistoryQuery(lending.Actor{ID: uuid.New(), IsPrivileged: true}))

	// assert
	require.NoError(t, ownErr)
	assert.Equal(t, 2, own.Total)
	assert.Len(t, own.Records, 2)
	assert.ErrorIs(t, foreignErr, lending.ErrForbidden)
	require.NoError(t, allErr)
	assert.Equal(t, 3, all.Total)
}

func Test_Service_RecordsCommandMetrics(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Dune", 1)
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	service := newService(t, store, testdoubles.NewDelivererSpy(), library.WithMetrics(metrics))

	// act
	_, err := service.OpenBorrow(context.Background(), uuid.New(), itemID, service.DefaultDueAt())
	require.NoError(t, err)
	_, err = service.OpenBorrow(context.Background(), uuid.New(), itemID, service.DefaultDueAt())

	// assert
	assert.ErrorIs(t, err, lending.ErrUnavailable)
	assert.Equal(t, 1, metrics.CountCounter(shell.CommandHandlerCallsMetric, shell.BuildCommandLabels("OpenBorrow", shell.StatusSuccess)))
	assert.Equal(t, 1, metrics.CountCounter(shell.CommandHandlerCallsMetric, shell.BuildCommandLabels("OpenBorrow", shell.StatusError)))
}

func Test_NewService_InvalidOptions(t *testing.T) {
	store := fixtures.NewMemStore(t)

	_, err := library.NewService(store, testdoubles.NewDelivererSpy(), library.WithClock(nil))
	assert.ErrorIs(t, err, library.ErrNilClock)

	_, err = library.NewService(store, testdoubles.NewDelivererSpy(), library.WithServiceConfig(config.ServiceConfig{}))
	assert.ErrorIs(t, err, library.ErrInvalidLoanPeriod)

	_, err = library.NewService(store, nil)
	assert.ErrorIs(t, err, notification.ErrNilDeliverer)
}
