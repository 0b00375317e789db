package fixtures

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/memengine"
)

// NewMemStore creates an empty in-memory store.
func NewMemStore(t *testing.T, options ...memengine.Option) *memengine.Store {
	t.Helper()

	store, err := memengine.NewStore(options...)
	require.NoError(t, err, "error in creating the in-memory store")

	return store
}

// SeedItem adds an item with the given number of available copies.
func SeedItem(t *testing.T, store lending.Store, title string, copies int) uuid.UUID {
	t.Helper()

	itemID := uuid.New()
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		if _, err := tx.AddItem(ctx, itemID, title); err != nil {
			return err
		}

		_, err := tx.AddCopies(ctx, itemID, copies)

		return err
	})
	require.NoError(t, err, "error in arranging test data")

	return itemID
}

// LoadItem reads an item outside of any business operation.
func LoadItem(t *testing.T, store lending.Store, itemID uuid.UUID) lending.Item {
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

// AssertInventoryConsistent checks the inventory invariants of one item and returns it:
// the available count lies within [0, total] and matches the AVAILABLE copies,
// and no copy has more than one open borrow record.
func AssertInventoryConsistent(t *testing.T, store lending.Store, itemID uuid.UUID) lending.Item {
	t.Helper()

	var (
		item        lending.Item
		available   int
		openBorrows map[uuid.UUID]int
	)

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx lending.Tx) error {
		var err error
		if item, err = tx.LockItem(ctx, itemID); err != nil {
			return err
		}

		if available, err = tx.CountCopies(ctx, itemID, lending.CopyAvailable); err != nil {
			return err
		}

		openBorrows, err = tx.CountOpenBorrows(ctx, itemID)

		return err
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, item.AvailableCopies, 0, "available copies must not be negative")
	assert.LessOrEqual(t, item.AvailableCopies, item.TotalCopies, "available copies must not exceed total")
	assert.Equal(t, item.AvailableCopies, available, "available count must match the AVAILABLE copies")

	for copyID, count := range openBorrows {
		assert.LessOrEqual(t, count, 1, "copy %s has more than one open borrow record", copyID)
	}

	return item
}
