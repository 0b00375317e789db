package borrowhistory

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	queryType = "BorrowHistory"
)

// Query represents a request for one page of borrow history.
// Nil filters are not applied. Page starts at 1; Limit defaults to lending.DefaultHistoryLimit.
type Query struct {
	Actor   lending.Actor
	UserID  *uuid.UUID
	Status  *lending.BorrowStatus
	Overdue *bool
	Page    int
	Limit   int
	AsOf    time.Time
}

// QueryType returns the type identifier for this query, used for observability.
func (q Query) QueryType() string {
	return queryType
}

// BuildQuery creates a Query for the actor that is evaluated as of asOf.
func BuildQuery(actor lending.Actor, asOf time.Time) Query {
	return Query{
		Actor: actor,
		Page:  1,
		Limit: lending.DefaultHistoryLimit,
		AsOf:  asOf.UTC(),
	}
}

// OwnedBy restricts the query to one user's records.
func (q Query) OwnedBy(userID uuid.UUID) Query {
	q.UserID = &userID
	return q
}

// WithStatus restricts the query to records with the stored status.
func (q Query) WithStatus(status lending.BorrowStatus) Query {
	q.Status = &status
	return q
}

// WithOverdue restricts the query to records that are (or are not) overdue as of AsOf.
func (q Query) WithOverdue(overdue bool) Query {
	q.Overdue = &overdue
	return q
}

// Paged selects a page.
func (q Query) Paged(page, limit int) Query {
	q.Page = page
	q.Limit = limit

	return q
}
