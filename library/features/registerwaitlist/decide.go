package registerwaitlist

import (
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Decide determines the waitlist entry to insert for the locked item.
//
// Business Rules:
//
//	GIVEN: an item locked against claims and releases
//	WHEN: RegisterWaitlist is received
//	THEN: a waitlist entry for (UserID, ItemID)
//	OUTCOME: ErrAlreadyAvailable if the item has a free copy, nothing is inserted
func Decide(item lending.Item, command Command) (lending.WaitlistEntry, error) {
	if item.AvailableCopies > 0 {
		return lending.WaitlistEntry{}, lending.ErrAlreadyAvailable
	}

	return lending.WaitlistEntry{
		UserID:    command.UserID,
		ItemID:    item.ID,
		ChannelID: command.ChannelID,
		CreatedAt: command.RequestedAt,
	}, nil
}
