package openborrow

import (
	"time"

	"github.com/google/uuid"
)

const (
	commandType = "OpenBorrow"
)

// Command represents the intent of a user to borrow a copy of an item.
type Command struct {
	BorrowID    uuid.UUID
	UserID      uuid.UUID
	ItemID      uuid.UUID
	DueAt       time.Time
	RequestedAt time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with a fresh borrow id.
func BuildCommand(userID uuid.UUID, itemID uuid.UUID, dueAt time.Time, requestedAt time.Time) Command {
	return Command{
		BorrowID:    uuid.New(),
		UserID:      userID,
		ItemID:      itemID,
		DueAt:       dueAt.UTC(),
		RequestedAt: requestedAt.UTC(),
	}
}
