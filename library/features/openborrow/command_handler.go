package openborrow

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/library/shared/shell"
)

// CommandHandler runs Claim -> Decide -> Insert in one transaction, with retry on contention.
// External wrappers handle all observability concerns.
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

// Handle opens the borrow and returns the inserted record.
func (h CommandHandler) Handle(ctx context.Context, command Command) (lending.BorrowRecord, shell.HandlerResult, error) {
	// no point in claiming a copy for a request that can never succeed
	if err := ValidateDueDate(command); err != nil {
		return lending.BorrowRecord{}, shell.HandlerResult{LastErrorType: shell.GetErrorType(err)}, err
	}

	var record lending.BorrowRecord

	retryMetrics, err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		var execErr error
		record, execErr = h.executeCommand(retryCtx, command)

		return execErr
	}, h.retryOptions...)

	if err != nil {
		return lending.BorrowRecord{}, shell.NewErrorResult(retryMetrics), err
	}

	return record, shell.NewSuccessResult(retryMetrics), nil
}

func (h CommandHandler) executeCommand(ctx context.Context, command Command) (lending.BorrowRecord, error) {
	var record lending.BorrowRecord

	err := h.store.WithinTx(ctx, func(ctx context.Context, tx lending.Tx) error {
		copyID, err := tx.ClaimCopy(ctx, command.ItemID)
		if err != nil {
			return err
		}

		record, err = Decide(command, copyID)
		if err != nil {
			return err
		}

		return tx.InsertBorrowRecord(ctx, record)
	})

	return record, err
}
