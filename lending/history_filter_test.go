package lending_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

func Test_HistoryFilter_Defaults(t *testing.T) {
	// act
	filter := lending.BuildHistoryFilter(borrowedAt).Finalize()

	// assert
	_, hasUser := filter.UserID()
	_, hasStatus := filter.Status()
	_, hasOverdue := filter.Overdue()
	assert.False(t, hasUser)
	assert.False(t, hasStatus)
	assert.False(t, hasOverdue)
	assert.Equal(t, 1, filter.Page())
	assert.Equal(t, lending.DefaultHistoryLimit, filter.Limit())
	assert.Equal(t, 0, filter.Offset())
}

func Test_HistoryFilter_Paged_ClampsValues(t *testing.T) {
	// act
	filter := lending.BuildHistoryFilter(borrowedAt).Paged(3, 1000).Finalize()

	// assert
	assert.Equal(t, 3, filter.Page())
	assert.Equal(t, lending.MaxHistoryLimit, filter.Limit())
	assert.Equal(t, 2*lending.MaxHistoryLimit, filter.Offset())
}

func Test_HistoryFilter_WithStatus_IgnoresUnknownStatus(t *testing.T) {
	// act
	filter := lending.BuildHistoryFilter(borrowedAt).WithStatus("OVERDUE").Finalize()

	// assert
	_, hasStatus := filter.Status()
	assert.False(t, hasStatus)
}

func Test_HistoryFilter_Matches(t *testing.T) {
	owner := uuid.New()
	asOf := borrowedAt.Add(10 * 24 * time.Hour)

	overdue := openRecord(borrowedAt, 7)
	overdue.UserID = owner

	current := openRecord(borrowedAt, 30)
	current.UserID = owner

	returned := lending.ReturnPatch(borrowedAt.Add(24 * time.Hour)).ApplyTo(openRecord(borrowedAt, 7))

	testCases := []struct {
		name     string
		filter   lending.HistoryFilter
		record   lending.BorrowRecord
		expected bool
	}{
		{"owner matches", lending.BuildHistoryFilter(asOf).OwnedBy(owner).Finalize(), current, true},
		{"other owner does not match", lending.BuildHistoryFilter(asOf).OwnedBy(owner).Finalize(), returned, false},
		{"active status", lending.BuildHistoryFilter(asOf).WithStatus(lending.BorrowActive).Finalize(), overdue, true},
		{"returned status", lending.BuildHistoryFilter(asOf).WithStatus(lending.BorrowReturned).Finalize(), overdue, false},
		{"overdue wanted and overdue", lending.BuildHistoryFilter(asOf).Overdue(true).Finalize(), overdue, true},
		{"overdue wanted but current", lending.BuildHistoryFilter(asOf).Overdue(true).Finalize(), current, false},
		{"overdue wanted but returned", lending.BuildHistoryFilter(asOf).Overdue(true).Finalize(), returned, false},
		{"not overdue wanted and returned", lending.BuildHistoryFilter(asOf).Overdue(false).Finalize(), returned, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.filter.Matches(tc.record))
		})
	}
}

func Test_NewHistoryPage_ComputesNumberOfPages(t *testing.T) {
	// arrange
	filter := lending.BuildHistoryFilter(borrowedAt).Paged(2, 10).Finalize()
	records := lending.DescribeAll([]lending.BorrowRecord{openRecord(borrowedAt, 7)}, borrowedAt)

	// act
	page := lending.NewHistoryPage(records, filter, 21)

	// assert
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 1, page.Size)
	assert.Equal(t, 21, page.Total)
	assert.Equal(t, 3, page.NumberOfPages)
}
