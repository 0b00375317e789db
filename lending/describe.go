package lending

import (
	"time"
)

const day = 24 * time.Hour

// BorrowView is the derived, read-only view of a borrow record at a given point in time.
// All durations are whole days, partial days never round up.
type BorrowView struct {
	IsOverdue     bool
	DaysRemaining int
	DaysOverdue   int
	Duration      int
}

// DescribedBorrow couples a record with its derived view.
type DescribedBorrow struct {
	Record BorrowRecord
	View   BorrowView
}

// Describe derives the overdue state of a record as of now. It performs no I/O.
func Describe(record BorrowRecord, now time.Time) BorrowView {
	view := BorrowView{
		IsOverdue: record.ReturnedAt == nil && record.DueAt.Before(now),
	}

	if record.ReturnedAt != nil {
		view.DaysRemaining = 0
		view.Duration = wholeDays(record.ReturnedAt.Sub(record.BorrowedAt))
	} else {
		view.DaysRemaining = max(0, wholeDays(record.DueAt.Sub(now)))
		view.Duration = wholeDays(now.Sub(record.BorrowedAt))
	}

	if view.IsOverdue {
		view.DaysOverdue = wholeDays(now.Sub(record.DueAt))
	}

	return view
}

// DescribeAll derives the views for several records with the same reference time.
func DescribeAll(records []BorrowRecord, now time.Time) []DescribedBorrow {
	described := make([]DescribedBorrow, 0, len(records))
	for _, record := range records {
		described = append(described, DescribedBorrow{Record: record, View: Describe(record, now)})
	}

	return described
}

// wholeDays floors d to full days, also for negative durations.
func wholeDays(d time.Duration) int {
	days := d / day
	if d%day < 0 {
		days--
	}

	return int(days)
}
