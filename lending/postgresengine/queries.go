package postgresengine

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	dialectPostgres = "postgres"

	tableItems         = "items"
	tableCopies        = "copies"
	tableBorrowRecords = "borrow_records"
	tableWaitlist      = "waitlist_entries"

	colID              = "id"
	colTitle           = "title"
	colTotalCopies     = "total_copies"
	colAvailableCopies = "available_copies"
	colItemID          = "item_id"
	colStatus          = "status"
	colUserID          = "user_id"
	colCopyID          = "copy_id"
	colBorrowedAt      = "borrowed_at"
	colDueAt           = "due_at"
	colReturnedAt      = "returned_at"
	colChannelID       = "channel_id"
	colCreatedAt       = "created_at"

	exprDecrement = "? - 1"
	exprIncrement = "? + 1"
	exprAdd       = "? + ?"
)

var (
	itemColumns          = []any{colID, colTitle, colTotalCopies, colAvailableCopies}
	borrowRecordColumns  = []any{colID, colUserID, colCopyID, colItemID, colBorrowedAt, colDueAt, colReturnedAt, colStatus}
	waitlistEntryColumns = []any{colUserID, colItemID, colChannelID, colCreatedAt}
)

type sqlQueryString = string

func dialect() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

/***** items *****/

func buildInsertItemQuery(itemID uuid.UUID, title string) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		Insert(tableItems).
		Rows(goqu.Record{
			colID:              itemID.String(),
			colTitle:           title,
			colTotalCopies:     0,
			colAvailableCopies: 0,
		}).
		OnConflict(goqu.DoNothing()).
		ToSQL()

	return sqlQuery, err
}

func buildSelectItemQuery(itemID uuid.UUID, lockForShare bool) (sqlQueryString, error) {
	ds := dialect().
		From(tableItems).
		Select(itemColumns...).
		Where(goqu.C(colID).Eq(itemID.String()))

	if lockForShare {
		ds = ds.ForShare(exp.Wait)
	}

	sqlQuery, _, err := ds.ToSQL()

	return sqlQuery, err
}

// buildClaimItemQuery decrements the available count only while it is positive.
func buildClaimItemQuery(itemID uuid.UUID) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		Update(tableItems).
		Set(goqu.Record{colAvailableCopies: goqu.L(exprDecrement, goqu.C(colAvailableCopies))}).
		Where(
			goqu.C(colID).Eq(itemID.String()),
			goqu.C(colAvailableCopies).Gt(0),
		).
		ToSQL()

	return sqlQuery, err
}

// buildReleaseItemQuery increments the available count only while it is below the total.
func buildReleaseItemQuery(itemID uuid.UUID) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		Update(tableItems).
		Set(goqu.Record{colAvailableCopies: goqu.L(exprIncrement, goqu.C(colAvailableCopies))}).
		Where(
			goqu.C(colID).Eq(itemID.String()),
			goqu.C(colAvailableCopies).Lt(goqu.C(colTotalCopies)),
		).
		ToSQL()

	return sqlQuery, err
}

func buildGrowItemQuery(itemID uuid.UUID, count int) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		Update(tableItems).
		Set(goqu.Record{
			colTotalCopies:     goqu.L(exprAdd, goqu.C(colTotalCopies), count),
			colAvailableCopies: goqu.L(exprAdd, goqu.C(colAvailableCopies), count),
		}).
		Where(goqu.C(colID).Eq(itemID.String())).
		ToSQL()

	return sqlQuery, err
}

/***** copies *****/

func buildInsertCopiesQuery(itemID uuid.UUID, copyIDs []uuid.UUID) (sqlQueryString, error) {
	rows := make([]any, 0, len(copyIDs))
	for _, copyID := range copyIDs {
		rows = append(rows, goqu.Record{
			colID:     copyID.String(),
			colItemID: itemID.String(),
			colStatus: string(lending.CopyAvailable),
		})
	}

	sqlQuery, _, err := dialect().
		Insert(tableCopies).
		Rows(rows...).
		ToSQL()

	return sqlQuery, err
}

// buildFlipAvailableCopyQuery marks one AVAILABLE copy of the item as BORROWED and returns its id.
// Copies locked by other transactions are skipped rather than waited for.
func buildFlipAvailableCopyQuery(itemID uuid.UUID) (sqlQueryString, error) {
	candidate := dialect().
		From(tableCopies).
		Select(colID).
		Where(
			goqu.C(colItemID).Eq(itemID.String()),
			goqu.C(colStatus).Eq(string(lending.CopyAvailable)),
		).
		Limit(1).
		ForUpdate(exp.SkipLocked)

	sqlQuery, _, err := dialect().
		Update(tableCopies).
		Set(goqu.Record{colStatus: string(lending.CopyBorrowed)}).
		Where(goqu.C(colID).In(candidate)).
		Returning(colID).
		ToSQL()

	return sqlQuery, err
}

func buildSelectCopyQuery(copyID uuid.UUID) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		From(tableCopies).
		Select(colID, colItemID, colStatus).
		Where(goqu.C(colID).Eq(copyID.String())).
		ToSQL()

	return sqlQuery, err
}

func buildReturnCopyQuery(copyID uuid.UUID) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		Update(tableCopies).
		Set(goqu.Record{colStatus: string(lending.CopyAvailable)}).
		Where(
			goqu.C(colID).Eq(copyID.String()),
			goqu.C(colStatus).Eq(string(lending.CopyBorrowed)),
		).
		ToSQL()

	return sqlQuery, err
}

func buildCountCopiesQuery(itemID uuid.UUID, status lending.CopyStatus) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		From(tableCopies).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.C(colItemID).Eq(itemID.String()),
			goqu.C(colStatus).Eq(string(status)),
		).
		ToSQL()

	return sqlQuery, err
}

/***** borrow records *****/

func buildInsertBorrowRecordQuery(record lending.BorrowRecord) (sqlQueryString, error) {
	row := goqu.Record{
		colID:         record.ID.String(),
		colUserID:     record.UserID.String(),
		colCopyID:     record.CopyID.String(),
		colItemID:     record.ItemID.String(),
		colBorrowedAt: record.BorrowedAt,
		colDueAt:      record.DueAt,
		colStatus:     string(record.Status),
	}

	if record.ReturnedAt != nil {
		row[colReturnedAt] = *record.ReturnedAt
	}

	sqlQuery, _, err := dialect().
		Insert(tableBorrowRecords).
		Rows(row).
		ToSQL()

	return sqlQuery, err
}

func buildSelectBorrowRecordQuery(borrowID uuid.UUID, lockForUpdate bool) (sqlQueryString, error) {
	ds := dialect().
		From(tableBorrowRecords).
		Select(borrowRecordColumns...).
		Where(goqu.C(colID).Eq(borrowID.String()))

	if lockForUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	sqlQuery, _, err := ds.ToSQL()

	return sqlQuery, err
}

// buildUpdateBorrowRecordQuery applies the patch only to a record that is still open.
func buildUpdateBorrowRecordQuery(borrowID uuid.UUID, patch lending.BorrowPatch) (sqlQueryString, error) {
	changes := goqu.Record{}

	if patch.ReturnedAt != nil {
		changes[colReturnedAt] = *patch.ReturnedAt
	}

	if patch.Status != nil {
		changes[colStatus] = string(*patch.Status)
	}

	sqlQuery, _, err := dialect().
		Update(tableBorrowRecords).
		Set(changes).
		Where(
			goqu.C(colID).Eq(borrowID.String()),
			goqu.C(colReturnedAt).IsNull(),
		).
		Returning(borrowRecordColumns...).
		ToSQL()

	return sqlQuery, err
}

func historyConditions(filter lending.HistoryFilter) []exp.Expression {
	conditions := make([]exp.Expression, 0, 3)

	if userID, ok := filter.UserID(); ok {
		conditions = append(conditions, goqu.C(colUserID).Eq(userID.String()))
	}

	if status, ok := filter.Status(); ok {
		conditions = append(conditions, goqu.C(colStatus).Eq(string(status)))
	}

	if overdue, ok := filter.Overdue(); ok {
		if overdue {
			conditions = append(conditions, goqu.And(
				goqu.C(colReturnedAt).IsNull(),
				goqu.C(colDueAt).Lt(filter.AsOf()),
			))
		} else {
			conditions = append(conditions, goqu.Or(
				goqu.C(colReturnedAt).IsNotNull(),
				goqu.C(colDueAt).Gte(filter.AsOf()),
			))
		}
	}

	return conditions
}

func buildFindBorrowRecordsQuery(filter lending.HistoryFilter) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		From(tableBorrowRecords).
		Select(borrowRecordColumns...).
		Where(historyConditions(filter)...).
		Order(goqu.C(colBorrowedAt).Desc(), goqu.C(colID).Asc()).
		Limit(uint(filter.Limit())).
		Offset(uint(filter.Offset())).
		ToSQL()

	return sqlQuery, err
}

func buildCountBorrowRecordsQuery(filter lending.HistoryFilter) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		From(tableBorrowRecords).
		Select(goqu.COUNT(goqu.Star())).
		Where(historyConditions(filter)...).
		ToSQL()

	return sqlQuery, err
}

func buildCountOpenBorrowsQuery(itemID uuid.UUID) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		From(tableBorrowRecords).
		Select(colCopyID, goqu.COUNT(goqu.Star())).
		Where(
			goqu.C(colItemID).Eq(itemID.String()),
			goqu.C(colReturnedAt).IsNull(),
		).
		GroupBy(colCopyID).
		ToSQL()

	return sqlQuery, err
}

/***** waitlist *****/

func buildInsertWaitlistEntryQuery(entry lending.WaitlistEntry) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		Insert(tableWaitlist).
		Rows(goqu.Record{
			colUserID:    entry.UserID.String(),
			colItemID:    entry.ItemID.String(),
			colChannelID: entry.ChannelID,
			colCreatedAt: entry.CreatedAt,
		}).
		OnConflict(goqu.DoNothing()).
		ToSQL()

	return sqlQuery, err
}

// buildDrainWaitlistQuery deletes and returns all entries of an item in one statement.
func buildDrainWaitlistQuery(itemID uuid.UUID) (sqlQueryString, error) {
	sqlQuery, _, err := dialect().
		Delete(tableWaitlist).
		Where(goqu.C(colItemID).Eq(itemID.String())).
		Returning(waitlistEntryColumns...).
		ToSQL()

	return sqlQuery, err
}
