package closeborrow

import (
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Decide determines the patch that closes the record.
//
// Business Rules:
//
//	GIVEN: a borrow record locked for update
//	WHEN: CloseBorrow is received
//	THEN: ReturnedAt = RequestedAt, Status = RETURNED
//	ERROR: ErrForbidden if the actor neither owns the record nor is privileged
//	ERROR: ErrAlreadyReturned if the record was closed before
//
// Ownership is checked first, so a stranger learns nothing about the record's state.
func Decide(record lending.BorrowRecord, command Command) (lending.BorrowPatch, error) {
	if !command.Actor.MayAccess(record.UserID) {
		return lending.BorrowPatch{}, lending.ErrForbidden
	}

	if !record.IsOpen() {
		return lending.BorrowPatch{}, lending.ErrAlreadyReturned
	}

	return lending.ReturnPatch(command.RequestedAt), nil
}
