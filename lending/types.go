package lending

import (
	"time"

	"github.com/google/uuid"
)

// CopyStatus is the allocation state of a single copy.
type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyBorrowed  CopyStatus = "BORROWED"
)

// BorrowStatus is the stored lifecycle state of a borrow record.
// Overdue is not a stored state, see Describe.
type BorrowStatus string

const (
	BorrowActive   BorrowStatus = "ACTIVE"
	BorrowReturned BorrowStatus = "RETURNED"
)

// Valid reports whether s is one of the stored borrow states.
func (s BorrowStatus) Valid() bool {
	return s == BorrowActive || s == BorrowReturned
}

// Item is a catalog entry with a finite number of lendable copies.
// Invariant: 0 <= AvailableCopies <= TotalCopies.
type Item struct {
	ID              uuid.UUID
	Title           string
	TotalCopies     int
	AvailableCopies int
}

// Copy is one lendable unit of an Item.
type Copy struct {
	ID     uuid.UUID
	ItemID uuid.UUID
	Status CopyStatus
}

// BorrowRecord tracks one allocation of a copy to a user.
type BorrowRecord struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	CopyID     uuid.UUID
	ItemID     uuid.UUID
	BorrowedAt time.Time
	DueAt      time.Time
	ReturnedAt *time.Time
	Status     BorrowStatus
}

// NewActiveBorrowRecord builds the record that is inserted together with a successful claim.
func NewActiveBorrowRecord(
	id uuid.UUID,
	userID uuid.UUID,
	copyID uuid.UUID,
	itemID uuid.UUID,
	borrowedAt time.Time,
	dueAt time.Time,
) BorrowRecord {

	return BorrowRecord{
		ID:         id,
		UserID:     userID,
		CopyID:     copyID,
		ItemID:     itemID,
		BorrowedAt: borrowedAt,
		DueAt:      dueAt,
		Status:     BorrowActive,
	}
}

// IsOpen reports whether the record still holds its copy.
func (r BorrowRecord) IsOpen() bool {
	return r.ReturnedAt == nil
}

// BorrowPatch lists the fields of a BorrowRecord that may change after it was opened.
// Nil fields are left untouched.
type BorrowPatch struct {
	ReturnedAt *time.Time
	Status     *BorrowStatus
}

// IsEmpty reports whether the patch changes nothing.
func (p BorrowPatch) IsEmpty() bool {
	return p.ReturnedAt == nil && p.Status == nil
}

// ApplyTo returns a copy of the record with the patch applied.
func (p BorrowPatch) ApplyTo(record BorrowRecord) BorrowRecord {
	if p.ReturnedAt != nil {
		returnedAt := *p.ReturnedAt
		record.ReturnedAt = &returnedAt
	}

	if p.Status != nil {
		record.Status = *p.Status
	}

	return record
}

// ReturnPatch is the patch written when a borrow record is closed.
func ReturnPatch(returnedAt time.Time) BorrowPatch {
	status := BorrowReturned

	return BorrowPatch{
		ReturnedAt: &returnedAt,
		Status:     &status,
	}
}

// WaitlistEntry records that a user wants to be notified when an item becomes available.
// (UserID, ItemID) is unique.
type WaitlistEntry struct {
	UserID    uuid.UUID
	ItemID    uuid.UUID
	ChannelID string
	CreatedAt time.Time
}

// Actor is the identity on whose behalf an operation runs.
type Actor struct {
	ID           uuid.UUID
	IsPrivileged bool
}

// MayAccess reports whether the actor may act on records owned by ownerID.
func (a Actor) MayAccess(ownerID uuid.UUID) bool {
	return a.IsPrivileged || a.ID == ownerID
}
