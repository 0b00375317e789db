package borrowhistory

import (
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// BuildFilter checks the actor's permission and turns the query into a storage filter.
//
// Business Rules:
//
//	GIVEN: a non-privileged actor
//	THEN: the filter is pinned to the actor's own records
//	ERROR: ErrForbidden if the query asks for another user's records
//
//	GIVEN: a privileged actor
//	THEN: all records, or one user's records if UserID is set
func BuildFilter(query Query) (lending.HistoryFilter, error) {
	builder := lending.BuildHistoryFilter(query.AsOf)

	switch {
	case query.Actor.IsPrivileged:
		if query.UserID != nil {
			builder.OwnedBy(*query.UserID)
		}

	case query.UserID != nil && *query.UserID != query.Actor.ID:
		return lending.HistoryFilter{}, lending.ErrForbidden

	default:
		builder.OwnedBy(query.Actor.ID)
	}

	if query.Status != nil {
		builder.WithStatus(*query.Status)
	}

	if query.Overdue != nil {
		builder.Overdue(*query.Overdue)
	}

	return builder.Paged(query.Page, query.Limit).Finalize(), nil
}
