package lending

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

/***** HistoryFilter *****/

// HistoryFilter selects borrow records for a history listing.
// Build it with BuildHistoryFilter, the zero value matches every record on the first page.
type HistoryFilter struct {
	userID  *uuid.UUID
	status  *BorrowStatus
	overdue *bool
	asOf    time.Time
	page    int
	limit   int
}

func (f HistoryFilter) UserID() (uuid.UUID, bool) {
	if f.userID == nil {
		return uuid.Nil, false
	}

	return *f.userID, true
}

func (f HistoryFilter) Status() (BorrowStatus, bool) {
	if f.status == nil {
		return "", false
	}

	return *f.status, true
}

// Overdue returns the requested overdue state. Overdue records are open records whose due date
// lies before AsOf.
func (f HistoryFilter) Overdue() (bool, bool) {
	if f.overdue == nil {
		return false, false
	}

	return *f.overdue, true
}

// AsOf is the reference time for the overdue predicate.
func (f HistoryFilter) AsOf() time.Time {
	return f.asOf
}

// Page is 1-based.
func (f HistoryFilter) Page() int {
	return max(1, f.page)
}

func (f HistoryFilter) Limit() int {
	if f.limit <= 0 {
		return DefaultHistoryLimit
	}

	return min(f.limit, MaxHistoryLimit)
}

func (f HistoryFilter) Offset() int {
	return (f.Page() - 1) * f.Limit()
}

// Matches evaluates the filter against a single record, pagination aside.
func (f HistoryFilter) Matches(record BorrowRecord) bool {
	if userID, ok := f.UserID(); ok && record.UserID != userID {
		return false
	}

	if status, ok := f.Status(); ok && record.Status != status {
		return false
	}

	if overdue, ok := f.Overdue(); ok {
		isOverdue := record.ReturnedAt == nil && record.DueAt.Before(f.asOf)
		if isOverdue != overdue {
			return false
		}
	}

	return true
}

/***** HistoryFilterBuilder *****/

// HistoryFilterBuilder assembles a HistoryFilter. Every method returns the builder so calls chain.
type HistoryFilterBuilder struct {
	filter HistoryFilter
}

// BuildHistoryFilter starts a new filter evaluated as of asOf.
func BuildHistoryFilter(asOf time.Time) *HistoryFilterBuilder {
	return &HistoryFilterBuilder{filter: HistoryFilter{asOf: asOf}}
}

func (b *HistoryFilterBuilder) OwnedBy(userID uuid.UUID) *HistoryFilterBuilder {
	b.filter.userID = &userID
	return b
}

// WithStatus ignores values that are not a stored borrow state.
func (b *HistoryFilterBuilder) WithStatus(status BorrowStatus) *HistoryFilterBuilder {
	if status.Valid() {
		b.filter.status = &status
	}

	return b
}

func (b *HistoryFilterBuilder) Overdue(overdue bool) *HistoryFilterBuilder {
	b.filter.overdue = &overdue
	return b
}

func (b *HistoryFilterBuilder) Paged(page, limit int) *HistoryFilterBuilder {
	b.filter.page = page
	b.filter.limit = limit

	return b
}

func (b *HistoryFilterBuilder) Finalize() HistoryFilter {
	return b.filter
}

/***** HistoryPage *****/

// HistoryPage is one page of a history listing.
type HistoryPage struct {
	Records       []DescribedBorrow
	Page          int
	Size          int
	Total         int
	NumberOfPages int
}

// NewHistoryPage computes the paging metadata for a page of records.
func NewHistoryPage(records []DescribedBorrow, filter HistoryFilter, total int) HistoryPage {
	limit := filter.Limit()

	return HistoryPage{
		Records:       records,
		Page:          filter.Page(),
		Size:          len(records),
		Total:         total,
		NumberOfPages: (total + limit - 1) / limit,
	}
}
