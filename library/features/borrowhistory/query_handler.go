package borrowhistory

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// QueryHandler reads one page of history. External wrappers handle observability.
type QueryHandler struct {
	store lending.Store
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store lending.Store) QueryHandler {
	return QueryHandler{store: store}
}

// Handle authorizes the query and returns the requested page.
func (h QueryHandler) Handle(ctx context.Context, query Query) (lending.HistoryPage, error) {
	filter, err := BuildFilter(query)
	if err != nil {
		return lending.HistoryPage{}, err
	}

	var (
		records []lending.BorrowRecord
		total   int
	)

	err = h.store.WithinTx(ctx, func(ctx context.Context, tx lending.Tx) error {
		var findErr error
		records, total, findErr = tx.FindBorrowRecords(ctx, filter)

		return findErr
	})
	if err != nil {
		return lending.HistoryPage{}, err
	}

	return lending.NewHistoryPage(lending.DescribeAll(records, filter.AsOf()), filter, total), nil
}
