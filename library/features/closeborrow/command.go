package closeborrow

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	commandType = "CloseBorrow"
)

// Command represents the intent to return a borrowed copy.
type Command struct {
	BorrowID    uuid.UUID
	Actor       lending.Actor
	RequestedAt time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(borrowID uuid.UUID, actor lending.Actor, requestedAt time.Time) Command {
	return Command{
		BorrowID:    borrowID,
		Actor:       actor,
		RequestedAt: requestedAt.UTC(),
	}
}
