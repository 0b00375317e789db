package registerwaitlist

import (
	"time"

	"github.com/google/uuid"
)

const (
	commandType = "RegisterWaitlist"
)

// Command represents the intent of a user to wait for an item.
type Command struct {
	UserID      uuid.UUID
	ItemID      uuid.UUID
	ChannelID   string
	RequestedAt time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command. channelID identifies the user's live channel at
// registration time and may be empty.
func BuildCommand(userID uuid.UUID, itemID uuid.UUID, channelID string, requestedAt time.Time) Command {
	return Command{
		UserID:      userID,
		ItemID:      itemID,
		ChannelID:   channelID,
		RequestedAt: requestedAt.UTC(),
	}
}
