package lending

import (
	"context"

	"github.com/google/uuid"
)

// Store runs units of work against the lending state.
//
// WithinTx begins a transaction, calls fn and commits if fn returns nil. Any error returned by fn,
// a panic, or a cancelled context rolls the whole transaction back, so callers never observe a
// partial claim or a partial return. Errors returned by fn are passed through unchanged.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside one transaction.
type Tx interface {
	Allocator
	BorrowRecords
	Waitlist
	Inventory
}

// Allocator is the only writer of Item.AvailableCopies and Copy.Status.
type Allocator interface {
	// ClaimCopy takes one available copy of the item. It fails with ErrNotFound for an unknown
	// item and with ErrUnavailable when no copy is free.
	ClaimCopy(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error)

	// ReleaseCopy puts a borrowed copy back and returns the id of its item.
	// It fails with ErrNotFound for an unknown copy.
	ReleaseCopy(ctx context.Context, copyID uuid.UUID) (uuid.UUID, error)
}

type BorrowRecords interface {
	InsertBorrowRecord(ctx context.Context, record BorrowRecord) error

	// LockBorrowRecord reads a record and holds it until the transaction ends.
	LockBorrowRecord(ctx context.Context, borrowID uuid.UUID) (BorrowRecord, error)

	// UpdateBorrowRecord applies the patch to a record that is still open.
	// It fails with ErrAlreadyReturned when the record was already closed.
	UpdateBorrowRecord(ctx context.Context, borrowID uuid.UUID, patch BorrowPatch) (BorrowRecord, error)

	GetBorrowRecord(ctx context.Context, borrowID uuid.UUID) (BorrowRecord, error)

	// FindBorrowRecords returns one page of matching records, newest first, and the total count
	// of matching records.
	FindBorrowRecords(ctx context.Context, filter HistoryFilter) ([]BorrowRecord, int, error)
}

type Waitlist interface {
	// InsertWaitlistEntry fails with ErrAlreadyRegistered when the (user, item) pair exists.
	InsertWaitlistEntry(ctx context.Context, entry WaitlistEntry) error

	// DrainWaitlist removes and returns all entries of the item.
	DrainWaitlist(ctx context.Context, itemID uuid.UUID) ([]WaitlistEntry, error)
}

type Inventory interface {
	// AddItem registers an item without copies.
	AddItem(ctx context.Context, itemID uuid.UUID, title string) (Item, error)

	// AddCopies adds count available copies to an item.
	AddCopies(ctx context.Context, itemID uuid.UUID, count int) ([]uuid.UUID, error)

	GetItem(ctx context.Context, itemID uuid.UUID) (Item, error)

	// LockItem reads an item and keeps claims and releases of it out until the transaction ends.
	LockItem(ctx context.Context, itemID uuid.UUID) (Item, error)

	// CountCopies counts the copies of an item in the given status.
	CountCopies(ctx context.Context, itemID uuid.UUID, status CopyStatus) (int, error)

	// CountOpenBorrows counts the open records per copy of an item, keyed by copy id.
	CountOpenBorrows(ctx context.Context, itemID uuid.UUID) (map[uuid.UUID]int, error)
}
