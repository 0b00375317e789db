package openborrow_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/library/features/openborrow"
	"github.com/AntonStoeckl/library-lending-go/library/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/testutil/fixtures"
)

// conflictingStore fails the first attempts with a concurrency conflict.
type conflictingStore struct {
	lending.Store
	failures atomic.Int32
}

func (s *conflictingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx lending.Tx) error) error {
	if s.failures.Add(-1) >= 0 {
		return errors.Join(lending.ErrConcurrencyConflict, errors.New("could not serialize access"))
	}

	return s.Store.WithinTx(ctx, fn)
}

func Test_CommandHandler_Handle_Success(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Dune", 2)
	handler := openborrow.NewCommandHandler(store)
	now := time.Now()
	command := openborrow.BuildCommand(uuid.New(), itemID, now.Add(7*24*time.Hour), now)

	// act
	record, result, err := handler.Handle(context.Background(), command)

	// assert
	require.NoError(t, err)
	assert.False(t, result.Idempotent)
	assert.Equal(t, 1, result.RetryAttempts)
	assert.Equal(t, command.BorrowID, record.ID)
	assert.Equal(t, lending.BorrowActive, record.Status)
	item := fixtures.AssertInventoryConsistent(t, store, itemID)
	assert.Equal(t, 1, item.AvailableCopies)
}

func Test_CommandHandler_Handle_Error_InvalidDueDateClaimsNothing(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Dune", 1)
	handler := openborrow.NewCommandHandler(store)
	now := time.Now()
	command := openborrow.BuildCommand(uuid.New(), itemID, now.Add(-time.Hour), now)

	// act
	_, _, err := handler.Handle(context.Background(), command)

	// assert
	assert.ErrorIs(t, err, lending.ErrInvalidDueDate)
	item := fixtures.AssertInventoryConsistent(t, store, itemID)
	assert.Equal(t, 1, item.AvailableCopies)
}

func Test_CommandHandler_Handle_Error_UnknownItem(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	handler := openborrow.NewCommandHandler(store)
	now := time.Now()

	// act
	_, result, err := handler.Handle(context.Background(), openborrow.BuildCommand(uuid.New(), uuid.New(), now.Add(time.Hour), now))

	// assert
	assert.ErrorIs(t, err, lending.ErrNotFound)
	assert.Equal(t, 1, result.RetryAttempts)
}

func Test_CommandHandler_Handle_RetriesConcurrencyConflicts(t *testing.T) {
	// arrange
	memStore := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, memStore, "Dune", 1)
	store := &conflictingStore{Store: memStore}
	store.failures.Store(2)
	handler := openborrow.NewCommandHandler(store, openborrow.WithRetryOptions(shell.WithBaseDelay(time.Millisecond)))
	now := time.Now()

	// act
	_, result, err := handler.Handle(context.Background(), openborrow.BuildCommand(uuid.New(), itemID, now.Add(time.Hour), now))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, result.RetryAttempts)
	assert.Greater(t, result.TotalRetryDelay, time.Duration(0))
	item := fixtures.AssertInventoryConsistent(t, memStore, itemID)
	assert.Equal(t, 0, item.AvailableCopies)
}

func Test_CommandHandler_Handle_ConcurrentOpens_ExactlyOneWins(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Dune", 1)
	handler := openborrow.NewCommandHandler(store)
	const contenders = 20

	var wg sync.WaitGroup
	var succeeded, unavailable atomic.Int32

	// act
	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()

			now := time.Now()
			_, _, err := handler.Handle(context.Background(), openborrow.BuildCommand(uuid.New(), itemID, now.Add(time.Hour), now))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, lending.ErrUnavailable):
				unavailable.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	// assert
	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(contenders-1), unavailable.Load())
	item := fixtures.AssertInventoryConsistent(t, store, itemID)
	assert.Equal(t, 0, item.AvailableCopies)
}
