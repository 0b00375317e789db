package registerwaitlist

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/library/shared/shell"
)

// CommandHandler runs Lock -> Decide -> Insert in one transaction, with retry on contention.
type CommandHandler struct {
	store        lending.Store
	retryOptions []shell.RetryOption
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithRetryOptions sets a custom retry configuration for the handler.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(h *CommandHandler) {
		h.retryOptions = opts
	}
}

// NewCommandHandler creates a new CommandHandler with optional configuration.
func NewCommandHandler(store lending.Store, opts ...Option) CommandHandler {
	handler := CommandHandler{store: store}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle registers the user and reports the outcome. AlreadyAvailable and AlreadyRegistered
// come back with a nil error and an idempotent HandlerResult.
func (h CommandHandler) Handle(ctx context.Context, command Command) (Outcome, shell.HandlerResult, error) {
	retryMetrics, err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		return h.executeCommand(retryCtx, command)
	}, h.retryOptions...)

	if outcome, ok := outcomeOf(err); ok {
		retryMetrics.LastErrorType = shell.GetErrorType(nil)
		return outcome, shell.NewIdempotentResult(retryMetrics), nil
	}

	if err != nil {
		return "", shell.NewErrorResult(retryMetrics), err
	}

	return Registered, shell.NewSuccessResult(retryMetrics), nil
}

func (h CommandHandler) executeCommand(ctx context.Context, command Command) error {
	return h.store.WithinTx(ctx, func(ctx context.Context, tx lending.Tx) error {
		item, err := tx.LockItem(ctx, command.ItemID)
		if err != nil {
			return err
		}

		entry, err := Decide(item, command)
		if err != nil {
			return err
		}

		return tx.InsertWaitlistEntry(ctx, entry)
	})
}
