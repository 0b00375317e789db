package closeborrow

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/library/shared/shell"
)

// ItemAvailabilityNotifier is told about items that got a copy back.
type ItemAvailabilityNotifier interface {
	OnItemAvailable(ctx context.Context, itemID uuid.UUID)
}

// CommandHandler runs Lock -> Decide -> Update -> Release in one transaction, with retry on
// contention, and notifies after the commit.
type CommandHandler struct {
	store        lending.Store
	notifier     ItemAvailabilityNotifier
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

// WithNotifier sets the notifier that is called after each successful return.
func WithNotifier(notifier ItemAvailabilityNotifier) Option {
	return func(h *CommandHandler) {
		h.notifier = notifier
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

// Handle closes the borrow and returns the updated record.
func (h CommandHandler) Handle(ctx context.Context, command Command) (lending.BorrowRecord, shell.HandlerResult, error) {
	var record lending.BorrowRecord

	retryMetrics, err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		var execErr error
		record, execErr = h.executeCommand(retryCtx, command)

		return execErr
	}, h.retryOptions...)

	if err != nil {
		return lending.BorrowRecord{}, shell.NewErrorResult(retryMetrics), err
	}

	if h.notifier != nil {
		h.notifier.OnItemAvailable(ctx, record.ItemID)
	}

	return record, shell.NewSuccessResult(retryMetrics), nil
}

func (h CommandHandler) executeCommand(ctx context.Context, command Command) (lending.BorrowRecord, error) {
	var updated lending.BorrowRecord

	err := h.store.WithinTx(ctx, func(ctx context.Context, tx lending.Tx) error {
		record, err := tx.LockBorrowRecord(ctx, command.BorrowID)
		if err != nil {
			return err
		}

		patch, err := Decide(record, command)
		if err != nil {
			return err
		}

		updated, err = tx.UpdateBorrowRecord(ctx, command.BorrowID, patch)
		if err != nil {
			return err
		}

		_, err = tx.ReleaseCopy(ctx, record.CopyID)

		return err
	})

	return updated, err
}
