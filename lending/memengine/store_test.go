package memengine_test

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
	"github.com/AntonStoeckl/library-lending-go/lending/memengine"
)

var errBoom = errors.New("boom")

func newStoreWithItem(t *testing.T, copies int) (*memengine.Store, uuid.UUID) {
	t.Helper()

	store, err := memengine.NewStore()
	require.NoError(t, err)

	itemID := uuid.New()
	err = store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		if _, err := tx.AddItem(ctx, itemID, "The Left Hand of Darkness"); err != nil {
			return err
		}

		_, err := tx.AddCopies(ctx, itemID, copies)

		return err
	})
	require.NoError(t, err)

	return store, itemID
}

func getItem(t *testing.T, store *memengine.Store, itemID uuid.UUID) lending.Item {
	t.Helper()

	var item lending.Item
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		var err error
		item, err = tx.GetItem(ctx, itemID)
		return err
	})
	require.NoError(t, err)

	return item
}

func assertInventoryConsistent(t *testing.T, store *memengine.Store, itemID uuid.UUID) {
	t.Helper()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		item, err := tx.LockItem(ctx, itemID)
		if err != nil {
			return err
		}

		available, err := tx.CountCopies(ctx, itemID, lending.CopyAvailable)
		if err != nil {
			return err
		}

		openBorrows, err := tx.CountOpenBorrows(ctx, itemID)
		if err != nil {
			return err
		}

		assert.GreaterOrEqual(t, item.AvailableCopies, 0)
		assert.LessOrEqual(t, item.AvailableCopies, item.TotalCopies)
		assert.Equal(t, item.AvailableCopies, available)
		for copyID, count := range openBorrows {
			assert.LessOrEqual(t, count, 1, "copy %s has %d open borrow records", copyID, count)
		}

		return nil
	})
	require.NoError(t, err)
}

func Test_Store_ClaimCopy_DecrementsAvailableCopies(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 2)

	// act
	var copyID uuid.UUID
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		var err error
		copyID, err = tx.ClaimCopy(ctx, itemID)
		return err
	})

	// assert
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, copyID)
	assert.Equal(t, 1, getItem(t, store, itemID).AvailableCopies)
	assertInventoryConsistent(t, store, itemID)
}

func Test_Store_ClaimCopy_UnknownItem(t *testing.T) {
	// arrange
	store, _ := newStoreWithItem(t, 1)

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		_, err := tx.ClaimCopy(ctx, uuid.New())
		return err
	})

	// assert
	assert.ErrorIs(t, err, lending.ErrNotFound)
}

func Test_Store_ClaimCopy_NoCopyLeft(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		if _, err := tx.ClaimCopy(ctx, itemID); err != nil {
			return err
		}

		_, err := tx.ClaimCopy(ctx, itemID)
		return err
	})

	// assert
	assert.ErrorIs(t, err, lending.ErrUnavailable)
	assert.Equal(t, 1, getItem(t, store, itemID).AvailableCopies, "failed transaction must leave no partial claim")
}

func Test_Store_ReleaseCopy_RestoresAvailability(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)

	var copyID uuid.UUID
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		var err error
		copyID, err = tx.ClaimCopy(ctx, itemID)
		return err
	})
	require.NoError(t, err)

	// act
	var releasedItemID uuid.UUID
	err = store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		var err error
		releasedItemID, err = tx.ReleaseCopy(ctx, copyID)
		return err
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, itemID, releasedItemID)
	assert.Equal(t, 1, getItem(t, store, itemID).AvailableCopies)
	assertInventoryConsistent(t, store, itemID)
}

func Test_Store_ReleaseCopy_NeverExceedsTotal(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)

	var copyIDs []uuid.UUID
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		var err error
		copyIDs, err = tx.AddCopies(ctx, itemID, 1)
		return err
	})
	require.NoError(t, err)

	// act
	err = store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		_, err := tx.ReleaseCopy(ctx, copyIDs[0])
		return err
	})

	// assert
	assert.ErrorIs(t, err, lending.ErrInventoryInconsistent)
	assert.Equal(t, 2, getItem(t, store, itemID).AvailableCopies)
}

func Test_Store_ReleaseCopy_UnknownCopy(t *testing.T) {
	// arrange
	store, _ := newStoreWithItem(t, 1)

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		_, err := tx.ReleaseCopy(ctx, uuid.New())
		return err
	})

	// assert
	assert.ErrorIs(t, err, lending.ErrNotFound)
}

func Test_Store_WithinTx_RollsBackOnError(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		copyID, err := tx.ClaimCopy(ctx, itemID)
		if err != nil {
			return err
		}

		record := lending.NewActiveBorrowRecord(uuid.New(), uuid.New(), copyID, itemID, time.Now(), time.Now())
		if err := tx.InsertBorrowRecord(ctx, record); err != nil {
			return err
		}

		return errBoom
	})

	// assert
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, getItem(t, store, itemID).AvailableCopies)
	assertInventoryConsistent(t, store, itemID)
}

func Test_Store_WithinTx_RollsBackOnCancelledContext(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	// act
	err := store.WithinTx(ctx, func(ctx context.Context, tx lending.Tx) error {
		if _, err := tx.ClaimCopy(ctx, itemID); err != nil {
			return err
		}

		cancel()

		return nil
	})

	// assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, getItem(t, store, itemID).AvailableCopies)
}

func Test_Store_WithinTx_RollsBackOnPanic(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)

	// act
	assert.Panics(t, func() {
		_ = store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
			if _, err := tx.ClaimCopy(ctx, itemID); err != nil {
				return err
			}

			panic("unexpected")
		})
	})

	// assert
	assert.Equal(t, 1, getItem(t, store, itemID).AvailableCopies)
	assertInventoryConsistent(t, store, itemID) // would block if the item lock leaked
}

func Test_Store_UncommittedWrites_AreInvisibleToOtherTransactions(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)
	claimed := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)

	go func() {
		done <- store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
			if _, err := tx.ClaimCopy(ctx, itemID); err != nil {
				return err
			}

			close(claimed)
			<-release

			return nil
		})
	}()

	<-claimed

	// act
	seenDuringClaim := getItem(t, store, itemID).AvailableCopies
	close(release)
	require.NoError(t, <-done)

	// assert
	assert.Equal(t, 1, seenDuringClaim)
	assert.Equal(t, 0, getItem(t, store, itemID).AvailableCopies)
}

func Test_Store_ConcurrentClaims_ExactlyOneWins(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)
	const contenders = 32

	var wg sync.WaitGroup
	var succeeded, unavailable atomic.Int32

	// act
	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
				copyID, err := tx.ClaimCopy(ctx, itemID)
				if err != nil {
					return err
				}

				record := lending.NewActiveBorrowRecord(uuid.New(), uuid.New(), copyID, itemID, time.Now(), time.Now())

				return tx.InsertBorrowRecord(ctx, record)
			})

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
	assert.Equal(t, 0, getItem(t, store, itemID).AvailableCopies)
	assertInventoryConsistent(t, store, itemID)
}

func Test_Store_UpdateBorrowRecord_ClosedRecordIsAlreadyReturned(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)
	record := lending.NewActiveBorrowRecord(uuid.New(), uuid.New(), uuid.New(), itemID, time.Now(), time.Now())

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		return tx.InsertBorrowRecord(ctx, record)
	})
	require.NoError(t, err)

	patch := lending.ReturnPatch(time.Now())
	err = store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		_, err := tx.UpdateBorrowRecord(ctx, record.ID, patch)
		return err
	})
	require.NoError(t, err)

	// act
	err = store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		_, err := tx.UpdateBorrowRecord(ctx, record.ID, patch)
		return err
	})

	// assert
	assert.ErrorIs(t, err, lending.ErrAlreadyReturned)
}

func Test_Store_InsertBorrowRecord_SecondOpenRecordForCopyIsRejected(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)
	copyID := uuid.New()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		return tx.InsertBorrowRecord(ctx, lending.NewActiveBorrowRecord(uuid.New(), uuid.New(), copyID, itemID, time.Now(), time.Now()))
	})
	require.NoError(t, err)

	// act
	err = store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		return tx.InsertBorrowRecord(ctx, lending.NewActiveBorrowRecord(uuid.New(), uuid.New(), copyID, itemID, time.Now(), time.Now()))
	})

	// assert
	assert.ErrorIs(t, err, lending.ErrInventoryInconsistent)
}

func Test_Store_InsertWaitlistEntry_DuplicateIsAlreadyRegistered(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)
	entry := lending.WaitlistEntry{UserID: uuid.New(), ItemID: itemID, CreatedAt: time.Now()}

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		return tx.InsertWaitlistEntry(ctx, entry)
	})
	require.NoError(t, err)

	// act
	err = store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		return tx.InsertWaitlistEntry(ctx, entry)
	})

	// assert
	assert.ErrorIs(t, err, lending.ErrAlreadyRegistered)
}

func Test_Store_ConcurrentDrains_NeverReturnAnEntryTwice(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)
	const waiting = 50
	const drainers = 8

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		for i := range waiting {
			entry := lending.WaitlistEntry{
				UserID:    uuid.New(),
				ItemID:    itemID,
				CreatedAt: time.Now().Add(time.Duration(i) * time.Millisecond),
			}
			if err := tx.InsertWaitlistEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var mu sync.Mutex
	seen := make(map[uuid.UUID]int)
	var wg sync.WaitGroup

	// act
	for range drainers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var drained []lending.WaitlistEntry
			err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
				var err error
				drained, err = tx.DrainWaitlist(ctx, itemID)
				return err
			})
			assert.NoError(t, err)

			mu.Lock()
			for _, entry := range drained {
				seen[entry.UserID]++
			}
			mu.Unlock()
		}()
	}

	wg.Wait()

	// assert
	assert.Len(t, seen, waiting)
	for userID, count := range seen {
		assert.Equal(t, 1, count, "user %s drained %d times", userID, count)
	}
}

func Test_Store_FindBorrowRecords_NewestFirstAndPaged(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)
	userID := uuid.New()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		for i := range 5 {
			borrowedAt := start.Add(time.Duration(i) * 24 * time.Hour)
			record := lending.NewActiveBorrowRecord(uuid.New(), userID, uuid.New(), itemID, borrowedAt, borrowedAt.Add(time.Hour))
			ids = append(ids, record.ID)
			if err := tx.InsertBorrowRecord(ctx, record); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	filter := lending.BuildHistoryFilter(start).OwnedBy(userID).Paged(2, 2).Finalize()

	// act
	var records []lending.BorrowRecord
	var total int
	err = store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		var err error
		records, total, err = tx.FindBorrowRecords(ctx, filter)
		return err
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, records, 2)
	assert.Equal(t, ids[2], records[0].ID)
	assert.Equal(t, ids[1], records[1].ID)
}

func Test_Store_AddCopies_RejectsNonPositiveCount(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		_, err := tx.AddCopies(ctx, itemID, 0)
		return err
	})

	// assert
	assert.ErrorIs(t, err, lending.ErrInvalidCopyCount)
}

func Test_Store_AddItem_Duplicate(t *testing.T) {
	// arrange
	store, itemID := newStoreWithItem(t, 1)

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		_, err := tx.AddItem(ctx, itemID, "again")
		return err
	})

	// assert
	assert.ErrorIs(t, err, lending.ErrDuplicateItem)
}
