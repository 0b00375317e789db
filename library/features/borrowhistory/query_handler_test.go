package borrowhistory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/library/features/borrowhistory"
	"github.com/AntonStoeckl/library-lending-go/testutil/fixtures"
)

func givenRecord(t *testing.T, store lending.Store, itemID, userID uuid.UUID, borrowedAt, dueAt time.Time) lending.BorrowRecord {
	t.Helper()

	var record lending.BorrowRecord
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		copyID, err := tx.ClaimCopy(ctx, itemID)
		if err != nil {
			return err
		}

		record = lending.NewActiveBorrowRecord(uuid.New(), userID, copyID, itemID, borrowedAt, dueAt)

		return tx.InsertBorrowRecord(ctx, record)
	})
	require.NoError(t, err, "error in arranging test data")

	return record
}

func Test_QueryHandler_Handle_OwnRecordsWithViews(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Foundation", 3)
	day := 24 * time.Hour
	d := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	userID := uuid.New()

	overdue := givenRecord(t, store, itemID, userID, d, d.Add(7*day))
	current := givenRecord(t, store, itemID, userID, d.Add(5*day), d.Add(19*day))
	givenRecord(t, store, itemID, uuid.New(), d, d.Add(7*day))

	handler := borrowhistory.NewQueryHandler(store)
	query := borrowhistory.BuildQuery(lending.Actor{ID: userID}, d.Add(10*day))

	// act
	page, err := handler.Handle(context.Background(), query)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.NumberOfPages)
	require.Len(t, page.Records, 2)
	assert.Equal(t, current.ID, page.Records[0].Record.ID, "newest first")
	assert.Equal(t, overdue.ID, page.Records[1].Record.ID)
	assert.True(t, page.Records[1].View.IsOverdue)
	assert.Equal(t, 3, page.Records[1].View.DaysOverdue)
	assert.Equal(t, 0, page.Records[1].View.DaysRemaining)
	assert.False(t, page.Records[0].View.IsOverdue)
	assert.Equal(t, 9, page.Records[0].View.DaysRemaining)
}

func Test_QueryHandler_Handle_OverdueFilterAndPaging(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	itemID := fixtures.SeedItem(t, store, "Foundation", 5)
	day := 24 * time.Hour
	d := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for i := range 3 {
		givenRecord(t, store, itemID, uuid.New(), d.Add(time.Duration(i)*time.Hour), d.Add(2*day))
	}
	givenRecord(t, store, itemID, uuid.New(), d, d.Add(30*day))

	handler := borrowhistory.NewQueryHandler(store)
	query := borrowhistory.BuildQuery(lending.Actor{ID: uuid.New(), IsPrivileged: true}, d.Add(10*day)).
		WithOverdue(true).
		Paged(2, 2)

	// act
	page, err := handler.Handle(context.Background(), query)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.NumberOfPages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 1, page.Size)
}

func Test_QueryHandler_Handle_Error_Forbidden(t *testing.T) {
	// arrange
	store := fixtures.NewMemStore(t)
	handler := borrowhistory.NewQueryHandler(store)
	query := borrowhistory.BuildQuery(lending.Actor{ID: uuid.New()}, time.Now()).OwnedBy(uuid.New())

	// act
	_, err := handler.Handle(context.Background(), query)

	// assert
	assert.ErrorIs(t, err, lending.ErrForbidden)
}
