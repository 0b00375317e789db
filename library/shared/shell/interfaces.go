package shell

import "context"

// Command is implemented by every command of the lending features.
type Command interface {
	CommandType() string
}

// Query is implemented by every query of the lending features.
type Query interface {
	QueryType() string
}

// CoreCommandHandler processes a command with business logic only.
// It returns the command's result value and the execution metadata, which the
// observable wrapper turns into metrics.
type CoreCommandHandler[C Command, R any] interface {
	Handle(ctx context.Context, command C) (R, HandlerResult, error)
}

// CoreQueryHandler processes a query with business logic only.
type CoreQueryHandler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}
