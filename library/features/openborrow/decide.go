package openborrow

import (
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Decide validates the command and builds the record to insert for the claimed copy.
//
// Business Rules:
//
//	GIVEN: a claimed copy of the item
//	WHEN: OpenBorrow is received
//	THEN: an ACTIVE borrow record from RequestedAt to DueAt
//	ERROR: ErrInvalidDueDate if DueAt lies before RequestedAt
func Decide(command Command, copyID uuid.UUID) (lending.BorrowRecord, error) {
	if err := ValidateDueDate(command); err != nil {
		return lending.BorrowRecord{}, err
	}

	return lending.NewActiveBorrowRecord(
		command.BorrowID,
		command.UserID,
		copyID,
		command.ItemID,
		command.RequestedAt,
		command.DueAt,
	), nil
}

// ValidateDueDate rejects due dates in the past. A due date equal to the request time is accepted.
func ValidateDueDate(command Command) error {
	if command.DueAt.Before(command.RequestedAt) {
		return lending.ErrInvalidDueDate
	}

	return nil
}
