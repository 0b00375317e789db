package lending_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

var borrowedAt = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func openRecord(borrowedAt time.Time, loanDays int) lending.BorrowRecord {
	return lending.NewActiveBorrowRecord(
		uuid.New(),
		uuid.New(),
		uuid.New(),
		uuid.New(),
		borrowedAt,
		borrowedAt.Add(time.Duration(loanDays)*24*time.Hour),
	)
}

func Test_Describe_OpenRecordPastDueDate_IsOverdue(t *testing.T) {
	// arrange
	record := openRecord(borrowedAt, 7)
	now := borrowedAt.Add(10 * 24 * time.Hour)

	// act
	view := lending.Describe(record, now)

	// assert
	assert.True(t, view.IsOverdue)
	assert.Equal(t, 0, view.DaysRemaining)
	assert.Equal(t, 3, view.DaysOverdue)
	assert.Equal(t, 10, view.Duration)
}

func Test_Describe_OpenRecordBeforeDueDate_FloorsPartialDays(t *testing.T) {
	// arrange
	record := openRecord(borrowedAt, 7)
	now := borrowedAt.Add(2*24*time.Hour + 23*time.Hour)

	// act
	view := lending.Describe(record, now)

	// assert
	assert.False(t, view.IsOverdue)
	assert.Equal(t, 4, view.DaysRemaining)
	assert.Equal(t, 0, view.DaysOverdue)
	assert.Equal(t, 2, view.Duration)
}

func Test_Describe_OverdueByLessThanADay_ReportsZeroDaysOverdue(t *testing.T) {
	// arrange
	record := openRecord(borrowedAt, 7)
	now := record.DueAt.Add(5 * time.Hour)

	// act
	view := lending.Describe(record, now)

	// assert
	assert.True(t, view.IsOverdue)
	assert.Equal(t, 0, view.DaysRemaining)
	assert.Equal(t, 0, view.DaysOverdue)
}

func Test_Describe_ReturnedRecord_IsNeverOverdue(t *testing.T) {
	// arrange
	record := openRecord(borrowedAt, 7)
	returnedAt := borrowedAt.Add(9*24*time.Hour + 6*time.Hour)
	record = lending.ReturnPatch(returnedAt).ApplyTo(record)
	now := borrowedAt.Add(30 * 24 * time.Hour)

	// act
	view := lending.Describe(record, now)

	// assert
	assert.False(t, view.IsOverdue)
	assert.Equal(t, 0, view.DaysRemaining)
	assert.Equal(t, 0, view.DaysOverdue)
	assert.Equal(t, 9, view.Duration)
}

func Test_DescribeAll_KeepsOrder(t *testing.T) {
	// arrange
	first := openRecord(borrowedAt, 7)
	second := openRecord(borrowedAt, 1)
	now := borrowedAt.Add(3 * 24 * time.Hour)

	// act
	described := lending.DescribeAll([]lending.BorrowRecord{first, second}, now)

	// assert
	assert.Len(t, described, 2)
	assert.Equal(t, first.ID, described[0].Record.ID)
	assert.False(t, described[0].View.IsOverdue)
	assert.Equal(t, second.ID, described[1].Record.ID)
	assert.True(t, described[1].View.IsOverdue)
	assert.Equal(t, 2, described[1].View.DaysOverdue)
}

func Test_ReturnPatch_ApplyTo_ClosesRecord(t *testing.T) {
	// arrange
	record := openRecord(borrowedAt, 7)
	returnedAt := borrowedAt.Add(time.Hour)

	// act
	closed := lending.ReturnPatch(returnedAt).ApplyTo(record)

	// assert
	assert.True(t, record.IsOpen())
	assert.False(t, closed.IsOpen())
	assert.Equal(t, lending.BorrowReturned, closed.Status)
	assert.Equal(t, returnedAt, *closed.ReturnedAt)
}

func Test_Actor_MayAccess(t *testing.T) {
	owner := uuid.New()

	assert.True(t, lending.Actor{ID: owner}.MayAccess(owner))
	assert.False(t, lending.Actor{ID: uuid.New()}.MayAccess(owner))
	assert.True(t, lending.Actor{ID: uuid.New(), IsPrivileged: true}.MayAccess(owner))
}
