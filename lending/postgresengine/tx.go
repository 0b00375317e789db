package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine/internal/adapters"
)

const (
	actionClaimCopy          = "claim_copy"
	actionReleaseCopy        = "release_copy"
	actionInsertBorrowRecord = "insert_borrow_record"
	actionSelectBorrowRecord = "select_borrow_record"
	actionUpdateBorrowRecord = "update_borrow_record"
	actionFindBorrowRecords  = "find_borrow_records"
	actionInsertWaitlist     = "insert_waitlist_entry"
	actionDrainWaitlist      = "drain_waitlist"
	actionInsertItem         = "insert_item"
	actionAddCopies          = "add_copies"
	actionSelectItem         = "select_item"
	actionCountCopies        = "count_copies"
	actionCountOpenBorrows   = "count_open_borrows"
)

// tx implements lending.Tx on top of one database transaction.
type tx struct {
	store      *Store
	db         adapters.DBTx
	statements int
}

/***** statement helpers *****/

func (t *tx) buildFailed(ctx context.Context, action string, err error) error {
	t.store.logError(ctx, logMsgBuildQueryFailed, err, spanAttrOperation, action)
	t.store.recordErrorMetrics(ctx, action, errorTypeBuildQuery)

	return errors.Join(lending.ErrBuildingQueryFailed, err)
}

func (t *tx) statementFailed(ctx context.Context, msg, action, errorType string, sentinel, err error) error {
	wrapped := wrapDBError(sentinel, err)

	if errors.Is(wrapped, lending.ErrConcurrencyConflict) {
		t.store.recordConcurrencyConflict(ctx, action)
		return wrapped
	}

	t.store.logError(ctx, msg, err, spanAttrOperation, action)
	t.store.recordErrorMetrics(ctx, action, errorType)

	return wrapped
}

// queryRows runs a statement that returns rows and hands every row to scanRow.
func (t *tx) queryRows(
	ctx context.Context,
	action string,
	sqlQuery sqlQueryString,
	scanRow func(row adapters.DBRows) error,
) error {

	start := time.Now()
	t.statements++

	rows, err := t.db.Query(ctx, sqlQuery)
	if err != nil {
		return t.statementFailed(ctx, logMsgDBQueryFailed, action, errorTypeQuery, lending.ErrQueryingFailed, err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			t.store.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}()

	for rows.Next() {
		if err := scanRow(rows); err != nil {
			t.store.logError(ctx, logMsgScanRowFailed, err, spanAttrOperation, action)
			t.store.recordErrorMetrics(ctx, action, errorTypeScan)

			return errors.Join(lending.ErrScanningDBRowFailed, err)
		}
	}

	if err := rows.Err(); err != nil {
		return t.statementFailed(ctx, logMsgDBQueryFailed, action, errorTypeQuery, lending.ErrQueryingFailed, err)
	}

	duration := time.Since(start)
	t.store.logQueryWithDuration(ctx, sqlQuery, action, duration)
	t.store.recordStatementDuration(ctx, action, duration)

	return nil
}

// execStatement runs a statement without result rows and returns the affected row count.
func (t *tx) execStatement(ctx context.Context, action string, sqlQuery sqlQueryString) (int64, error) {
	start := time.Now()
	t.statements++

	result, err := t.db.Exec(ctx, sqlQuery)
	if err != nil {
		return 0, t.statementFailed(ctx, logMsgDBExecFailed, action, errorTypeExec, lending.ErrQueryingFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		t.store.logError(ctx, logMsgRowsAffectedFailed, err, spanAttrOperation, action)
		t.store.recordErrorMetrics(ctx, action, errorTypeRowsAffected)

		return 0, errors.Join(lending.ErrQueryingFailed, err)
	}

	duration := time.Since(start)
	t.store.logQueryWithDuration(ctx, sqlQuery, action, duration)
	t.store.recordStatementDuration(ctx, action, duration)
	t.store.logDebug(ctx, logMsgOperation+action, logAttrRowsAffected, rowsAffected)

	return rowsAffected, nil
}

func scanItem(row adapters.DBRows) (lending.Item, error) {
	var item lending.Item
	err := row.Scan(&item.ID, &item.Title, &item.TotalCopies, &item.AvailableCopies)

	return item, err
}

func scanBorrowRecord(row adapters.DBRows) (lending.BorrowRecord, error) {
	var record lending.BorrowRecord
	var returnedAt *time.Time
	var status string

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.CopyID,
		&record.ItemID,
		&record.BorrowedAt,
		&record.DueAt,
		&returnedAt,
		&status,
	)
	if err != nil {
		return lending.BorrowRecord{}, err
	}

	record.ReturnedAt = returnedAt
	record.Status = lending.BorrowStatus(status)

	return record, nil
}

func scanWaitlistEntry(row adapters.DBRows) (lending.WaitlistEntry, error) {
	var entry lending.WaitlistEntry
	err := row.Scan(&entry.UserID, &entry.ItemID, &entry.ChannelID, &entry.CreatedAt)

	return entry, err
}

func (t *tx) selectItem(ctx context.Context, itemID uuid.UUID, lockForShare bool) (lending.Item, error) {
	sqlQuery, err := buildSelectItemQuery(itemID, lockForShare)
	if err != nil {
		return lending.Item{}, t.buildFailed(ctx, actionSelectItem, err)
	}

	var item lending.Item
	found := false
	err = t.queryRows(ctx, actionSelectItem, sqlQuery, func(row adapters.DBRows) error {
		var scanErr error
		item, scanErr = scanItem(row)
		found = true

		return scanErr
	})
	if err != nil {
		return lending.Item{}, err
	}

	if !found {
		return lending.Item{}, lending.ErrNotFound
	}

	return item, nil
}

func (t *tx) selectBorrowRecord(ctx context.Context, borrowID uuid.UUID, lockForUpdate bool) (lending.BorrowRecord, error) {
	sqlQuery, err := buildSelectBorrowRecordQuery(borrowID, lockForUpdate)
	if err != nil {
		return lending.BorrowRecord{}, t.buildFailed(ctx, actionSelectBorrowRecord, err)
	}

	var record lending.BorrowRecord
	found := false
	err = t.queryRows(ctx, actionSelectBorrowRecord, sqlQuery, func(row adapters.DBRows) error {
		var scanErr error
		record, scanErr = scanBorrowRecord(row)
		found = true

		return scanErr
	})
	if err != nil {
		return lending.BorrowRecord{}, err
	}

	if !found {
		return lending.BorrowRecord{}, lending.ErrNotFound
	}

	return record, nil
}

/***** lending.Allocator *****/

func (t *tx) ClaimCopy(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error) {
	sqlQuery, err := buildClaimItemQuery(itemID)
	if err != nil {
		return uuid.Nil, t.buildFailed(ctx, actionClaimCopy, err)
	}

	rowsAffected, err := t.execStatement(ctx, actionClaimCopy, sqlQuery)
	if err != nil {
		return uuid.Nil, err
	}

	if rowsAffected == 0 {
		if _, err := t.selectItem(ctx, itemID, false); err != nil {
			return uuid.Nil, err
		}

		return uuid.Nil, lending.ErrUnavailable
	}

	sqlQuery, err = buildFlipAvailableCopyQuery(itemID)
	if err != nil {
		return uuid.Nil, t.buildFailed(ctx, actionClaimCopy, err)
	}

	copyID := uuid.Nil
	err = t.queryRows(ctx, actionClaimCopy, sqlQuery, func(row adapters.DBRows) error {
		return row.Scan(&copyID)
	})
	if err != nil {
		return uuid.Nil, err
	}

	if copyID == uuid.Nil {
		return uuid.Nil, errors.Join(
			lending.ErrInventoryInconsistent,
			fmt.Errorf("item %s counted an available copy but none is AVAILABLE", itemID),
		)
	}

	return copyID, nil
}

func (t *tx) ReleaseCopy(ctx context.Context, copyID uuid.UUID) (uuid.UUID, error) {
	sqlQuery, err := buildSelectCopyQuery(copyID)
	if err != nil {
		return uuid.Nil, t.buildFailed(ctx, actionReleaseCopy, err)
	}

	var c lending.Copy
	found := false
	err = t.queryRows(ctx, actionReleaseCopy, sqlQuery, func(row adapters.DBRows) error {
		var status string
		found = true
		if err := row.Scan(&c.ID, &c.ItemID, &status); err != nil {
			return err
		}
		c.Status = lending.CopyStatus(status)

		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	if !found {
		return uuid.Nil, lending.ErrNotFound
	}

	// item row first, the same order as ClaimCopy
	sqlQuery, err = buildReleaseItemQuery(c.ItemID)
	if err != nil {
		return uuid.Nil, t.buildFailed(ctx, actionReleaseCopy, err)
	}

	rowsAffected, err := t.execStatement(ctx, actionReleaseCopy, sqlQuery)
	if err != nil {
		return uuid.Nil, err
	}

	if rowsAffected == 0 {
		return uuid.Nil, errors.Join(
			lending.ErrInventoryInconsistent,
			fmt.Errorf("item %s has no borrowed copy to release", c.ItemID),
		)
	}

	sqlQuery, err = buildReturnCopyQuery(copyID)
	if err != nil {
		return uuid.Nil, t.buildFailed(ctx, actionReleaseCopy, err)
	}

	rowsAffected, err = t.execStatement(ctx, actionReleaseCopy, sqlQuery)
	if err != nil {
		return uuid.Nil, err
	}

	if rowsAffected == 0 {
		return uuid.Nil, errors.Join(
			lending.ErrInventoryInconsistent,
			fmt.Errorf("copy %s is not BORROWED", copyID),
		)
	}

	return c.ItemID, nil
}

/***** lending.BorrowRecords *****/

func (t *tx) InsertBorrowRecord(ctx context.Context, record lending.BorrowRecord) error {
	sqlQuery, err := buildInsertBorrowRecordQuery(record)
	if err != nil {
		return t.buildFailed(ctx, actionInsertBorrowRecord, err)
	}

	_, err = t.execStatement(ctx, actionInsertBorrowRecord, sqlQuery)

	return err
}

func (t *tx) LockBorrowRecord(ctx context.Context, borrowID uuid.UUID) (lending.BorrowRecord, error) {
	return t.selectBorrowRecord(ctx, borrowID, true)
}

func (t *tx) UpdateBorrowRecord(
	ctx context.Context,
	borrowID uuid.UUID,
	patch lending.BorrowPatch,
) (lending.BorrowRecord, error) {

	if patch.IsEmpty() {
		record, err := t.selectBorrowRecord(ctx, borrowID, false)
		if err != nil {
			return lending.BorrowRecord{}, err
		}

		if !record.IsOpen() {
			return lending.BorrowRecord{}, lending.ErrAlreadyReturned
		}

		return record, nil
	}

	sqlQuery, err := buildUpdateBorrowRecordQuery(borrowID, patch)
	if err != nil {
		return lending.BorrowRecord{}, t.buildFailed(ctx, actionUpdateBorrowRecord, err)
	}

	var updated lending.BorrowRecord
	found := false
	err = t.queryRows(ctx, actionUpdateBorrowRecord, sqlQuery, func(row adapters.DBRows) error {
		var scanErr error
		updated, scanErr = scanBorrowRecord(row)
		found = true

		return scanErr
	})
	if err != nil {
		return lending.BorrowRecord{}, err
	}

	if found {
		return updated, nil
	}

	// nothing updated: the record is missing or already closed
	if _, err := t.selectBorrowRecord(ctx, borrowID, false); err != nil {
		return lending.BorrowRecord{}, err
	}

	return lending.BorrowRecord{}, lending.ErrAlreadyReturned
}

func (t *tx) GetBorrowRecord(ctx context.Context, borrowID uuid.UUID) (lending.BorrowRecord, error) {
	return t.selectBorrowRecord(ctx, borrowID, false)
}

func (t *tx) FindBorrowRecords(ctx context.Context, filter lending.HistoryFilter) ([]lending.BorrowRecord, int, error) {
	sqlQuery, err := buildCountBorrowRecordsQuery(filter)
	if err != nil {
		return nil, 0, t.buildFailed(ctx, actionFindBorrowRecords, err)
	}

	var total int64
	err = t.queryRows(ctx, actionFindBorrowRecords, sqlQuery, func(row adapters.DBRows) error {
		return row.Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}

	sqlQuery, err = buildFindBorrowRecordsQuery(filter)
	if err != nil {
		return nil, 0, t.buildFailed(ctx, actionFindBorrowRecords, err)
	}

	records := make([]lending.BorrowRecord, 0, filter.Limit())
	err = t.queryRows(ctx, actionFindBorrowRecords, sqlQuery, func(row adapters.DBRows) error {
		record, scanErr := scanBorrowRecord(row)
		if scanErr != nil {
			return scanErr
		}

		records = append(records, record)

		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return records, int(total), nil
}

/***** lending.Waitlist *****/

func (t *tx) InsertWaitlistEntry(ctx context.Context, entry lending.WaitlistEntry) error {
	sqlQuery, err := buildInsertWaitlistEntryQuery(entry)
	if err != nil {
		return t.buildFailed(ctx, actionInsertWaitlist, err)
	}

	rowsAffected, err := t.execStatement(ctx, actionInsertWaitlist, sqlQuery)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return lending.ErrAlreadyRegistered
	}

	return nil
}

func (t *tx) DrainWaitlist(ctx context.Context, itemID uuid.UUID) ([]lending.WaitlistEntry, error) {
	sqlQuery, err := buildDrainWaitlistQuery(itemID)
	if err != nil {
		return nil, t.buildFailed(ctx, actionDrainWaitlist, err)
	}

	var entries []lending.WaitlistEntry
	err = t.queryRows(ctx, actionDrainWaitlist, sqlQuery, func(row adapters.DBRows) error {
		entry, scanErr := scanWaitlistEntry(row)
		if scanErr != nil {
			return scanErr
		}

		entries = append(entries, entry)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}

/***** lending.Inventory *****/

func (t *tx) AddItem(ctx context.Context, itemID uuid.UUID, title string) (lending.Item, error) {
	sqlQuery, err := buildInsertItemQuery(itemID, title)
	if err != nil {
		return lending.Item{}, t.buildFailed(ctx, actionInsertItem, err)
	}

	rowsAffected, err := t.execStatement(ctx, actionInsertItem, sqlQuery)
	if err != nil {
		return lending.Item{}, err
	}

	if rowsAffected == 0 {
		return lending.Item{}, lending.ErrDuplicateItem
	}

	return lending.Item{ID: itemID, Title: title}, nil
}

func (t *tx) AddCopies(ctx context.Context, itemID uuid.UUID, count int) ([]uuid.UUID, error) {
	if count <= 0 {
		return nil, lending.ErrInvalidCopyCount
	}

	sqlQuery, err := buildGrowItemQuery(itemID, count)
	if err != nil {
		return nil, t.buildFailed(ctx, actionAddCopies, err)
	}

	rowsAffected, err := t.execStatement(ctx, actionAddCopies, sqlQuery)
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, lending.ErrNotFound
	}

	copyIDs := make([]uuid.UUID, 0, count)
	for range count {
		copyIDs = append(copyIDs, uuid.New())
	}

	sqlQuery, err = buildInsertCopiesQuery(itemID, copyIDs)
	if err != nil {
		return nil, t.buildFailed(ctx, actionAddCopies, err)
	}

	if _, err := t.execStatement(ctx, actionAddCopies, sqlQuery); err != nil {
		return nil, err
	}

	return copyIDs, nil
}

func (t *tx) GetItem(ctx context.Context, itemID uuid.UUID) (lending.Item, error) {
	return t.selectItem(ctx, itemID, false)
}

func (t *tx) LockItem(ctx context.Context, itemID uuid.UUID) (lending.Item, error) {
	return t.selectItem(ctx, itemID, true)
}

func (t *tx) CountCopies(ctx context.Context, itemID uuid.UUID, status lending.CopyStatus) (int, error) {
	sqlQuery, err := buildCountCopiesQuery(itemID, status)
	if err != nil {
		return 0, t.buildFailed(ctx, actionCountCopies, err)
	}

	var count int64
	err = t.queryRows(ctx, actionCountCopies, sqlQuery, func(row adapters.DBRows) error {
		return row.Scan(&count)
	})

	return int(count), err
}

func (t *tx) CountOpenBorrows(ctx context.Context, itemID uuid.UUID) (map[uuid.UUID]int, error) {
	sqlQuery, err := buildCountOpenBorrowsQuery(itemID)
	if err != nil {
		return nil, t.buildFailed(ctx, actionCountOpenBorrows, err)
	}

	counts := make(map[uuid.UUID]int)
	err = t.queryRows(ctx, actionCountOpenBorrows, sqlQuery, func(row adapters.DBRows) error {
		var copyID uuid.UUID
		var count int64
		if err := row.Scan(&copyID, &count); err != nil {
			return err
		}

		counts[copyID] = int(count)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return counts, nil
}

// compile-time check
var _ lending.Tx = (*tx)(nil)
