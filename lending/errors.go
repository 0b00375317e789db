package lending

import (
	"errors"
)

// Business errors. They are surfaced to callers and never retried.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnavailable       = errors.New("no copy of the item is available")
	ErrInvalidDueDate    = errors.New("due date is in the past")
	ErrForbidden         = errors.New("actor is not allowed to perform this operation")
	ErrAlreadyReturned   = errors.New("borrow record was already returned")
	ErrAlreadyRegistered = errors.New("user is already on the waitlist for this item")
	ErrAlreadyAvailable  = errors.New("item has available copies, no need to wait")
)

// Infrastructure errors.
var (
	ErrConcurrencyConflict   = errors.New("concurrency conflict, transaction could not be serialized")
	ErrNilDatabaseConnection = errors.New("database connection is nil")
	ErrBeginTxFailed         = errors.New("failed to begin transaction")
	ErrCommitFailed          = errors.New("failed to commit transaction")
	ErrBuildingQueryFailed   = errors.New("building query failed")
	ErrQueryingFailed        = errors.New("querying failed")
	ErrScanningDBRowFailed   = errors.New("scanning db row failed")
	ErrInventoryInconsistent = errors.New("inventory is inconsistent")
	ErrInvalidCopyCount      = errors.New("copy count must be positive")
	ErrDuplicateItem         = errors.New("item already exists")
	ErrDuplicateBorrowRecord = errors.New("borrow record already exists")
	ErrEmptyTableName        = errors.New("empty table name supplied")
)
