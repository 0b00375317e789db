package memengine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	lockPrefixItem     = "item/"
	lockPrefixRecord   = "record/"
	lockPrefixWaitlist = "waitlist/"
)

// tx buffers writes until commit. Reads see the committed state overlaid with the own writes.
type tx struct {
	store *Store
	held  []string

	items        map[uuid.UUID]lending.Item
	copies       map[uuid.UUID]lending.Copy
	newCopies    map[uuid.UUID][]uuid.UUID
	records      map[uuid.UUID]lending.BorrowRecord
	openByCopy   map[uuid.UUID]uuid.UUID // uuid.Nil marks a removed entry
	waitlistAdds []lending.WaitlistEntry
	drained      map[uuid.UUID][]uuid.UUID
}

func newTx(store *Store) *tx {
	return &tx{
		store:      store,
		items:      make(map[uuid.UUID]lending.Item),
		copies:     make(map[uuid.UUID]lending.Copy),
		newCopies:  make(map[uuid.UUID][]uuid.UUID),
		records:    make(map[uuid.UUID]lending.BorrowRecord),
		openByCopy: make(map[uuid.UUID]uuid.UUID),
		drained:    make(map[uuid.UUID][]uuid.UUID),
	}
}

/***** locking *****/

func (t *tx) lock(ctx context.Context, key string) error {
	if slices.Contains(t.held, key) {
		return nil
	}

	if err := t.store.locks.acquire(ctx, key); err != nil {
		return err
	}

	t.held = append(t.held, key)

	return nil
}

func (t *tx) releaseLocks() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.store.locks.release(t.held[i])
	}

	t.held = nil
}

func (t *tx) rollback() {
	t.releaseLocks()
}

// commit applies all buffered writes at once and returns the number of written rows.
func (t *tx) commit() int {
	s := t.store
	writes := 0

	s.mu.Lock()

	for id, item := range t.items {
		s.items[id] = item
		writes++
	}

	for itemID, copyIDs := range t.newCopies {
		s.itemCopies[itemID] = append(s.itemCopies[itemID], copyIDs...)
	}

	for id, c := range t.copies {
		s.copies[id] = c
		writes++
	}

	for id, record := range t.records {
		s.records[id] = record
		writes++
	}

	for copyID, recordID := range t.openByCopy {
		if recordID == uuid.Nil {
			delete(s.openByCopy, copyID)
			continue
		}

		s.openByCopy[copyID] = recordID
	}

	for itemID, userIDs := range t.drained {
		for _, userID := range userIDs {
			delete(s.waitlist[itemID], userID)
			writes++
		}
	}

	for _, entry := range t.waitlistAdds {
		if s.waitlist[entry.ItemID] == nil {
			s.waitlist[entry.ItemID] = make(map[uuid.UUID]lending.WaitlistEntry)
		}

		s.waitlist[entry.ItemID][entry.UserID] = entry
		writes++
	}

	s.mu.Unlock()

	t.releaseLocks()

	return writes
}

/***** reads *****/

func (t *tx) item(itemID uuid.UUID) (lending.Item, bool) {
	if item, ok := t.items[itemID]; ok {
		return item, true
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	item, ok := t.store.items[itemID]

	return item, ok
}

func (t *tx) copyRow(copyID uuid.UUID) (lending.Copy, bool) {
	if c, ok := t.copies[copyID]; ok {
		return c, true
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	c, ok := t.store.copies[copyID]

	return c, ok
}

func (t *tx) copiesOf(itemID uuid.UUID) []lending.Copy {
	t.store.mu.RLock()
	copyIDs := slices.Clone(t.store.itemCopies[itemID])
	t.store.mu.RUnlock()

	copyIDs = append(copyIDs, t.newCopies[itemID]...)

	copies := make([]lending.Copy, 0, len(copyIDs))
	for _, copyID := range copyIDs {
		if c, ok := t.copyRow(copyID); ok {
			copies = append(copies, c)
		}
	}

	return copies
}

func (t *tx) record(borrowID uuid.UUID) (lending.BorrowRecord, bool) {
	if record, ok := t.records[borrowID]; ok {
		return record, true
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	record, ok := t.store.records[borrowID]

	return record, ok
}

func (t *tx) allRecords() []lending.BorrowRecord {
	t.store.mu.RLock()
	records := make([]lending.BorrowRecord, 0, len(t.store.records)+len(t.records))
	for id, record := range t.store.records {
		if _, overwritten := t.records[id]; !overwritten {
			records = append(records, record)
		}
	}
	t.store.mu.RUnlock()

	for _, record := range t.records {
		records = append(records, record)
	}

	return records
}

func (t *tx) openRecordFor(copyID uuid.UUID) (uuid.UUID, bool) {
	if recordID, ok := t.openByCopy[copyID]; ok {
		return recordID, recordID != uuid.Nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	recordID, ok := t.store.openByCopy[copyID]

	return recordID, ok
}

func (t *tx) waitlistOf(itemID uuid.UUID) []lending.WaitlistEntry {
	drained := t.drained[itemID]

	t.store.mu.RLock()
	entries := make([]lending.WaitlistEntry, 0, len(t.store.waitlist[itemID]))
	for userID, entry := range t.store.waitlist[itemID] {
		if !slices.Contains(drained, userID) {
			entries = append(entries, entry)
		}
	}
	t.store.mu.RUnlock()

	for _, entry := range t.waitlistAdds {
		if entry.ItemID == itemID {
			entries = append(entries, entry)
		}
	}

	return entries
}

/***** lending.Allocator *****/

func (t *tx) ClaimCopy(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error) {
	if err := t.lock(ctx, lockPrefixItem+itemID.String()); err != nil {
		return uuid.Nil, err
	}

	item, ok := t.item(itemID)
	if !ok {
		return uuid.Nil, lending.ErrNotFound
	}

	if item.AvailableCopies <= 0 {
		return uuid.Nil, lending.ErrUnavailable
	}

	for _, c := range t.copiesOf(itemID) {
		if c.Status != lending.CopyAvailable {
			continue
		}

		c.Status = lending.CopyBorrowed
		t.copies[c.ID] = c

		item.AvailableCopies--
		t.items[itemID] = item

		return c.ID, nil
	}

	return uuid.Nil, errors.Join(
		lending.ErrInventoryInconsistent,
		fmt.Errorf("item %s counts %d available copies but none is AVAILABLE", itemID, item.AvailableCopies),
	)
}

func (t *tx) ReleaseCopy(ctx context.Context, copyID uuid.UUID) (uuid.UUID, error) {
	c, ok := t.copyRow(copyID)
	if !ok {
		return uuid.Nil, lending.ErrNotFound
	}

	if err := t.lock(ctx, lockPrefixItem+c.ItemID.String()); err != nil {
		return uuid.Nil, err
	}

	// re-read under the item lock
	c, _ = t.copyRow(copyID)
	item, ok := t.item(c.ItemID)
	if !ok {
		return uuid.Nil, lending.ErrNotFound
	}

	if c.Status != lending.CopyBorrowed || item.AvailableCopies >= item.TotalCopies {
		return uuid.Nil, errors.Join(
			lending.ErrInventoryInconsistent,
			fmt.Errorf("copy %s is %s and item %s has %d of %d copies available",
				copyID, c.Status, item.ID, item.AvailableCopies, item.TotalCopies),
		)
	}

	c.Status = lending.CopyAvailable
	t.copies[copyID] = c

	item.AvailableCopies++
	t.items[item.ID] = item

	return item.ID, nil
}

/***** lending.BorrowRecords *****/

func (t *tx) InsertBorrowRecord(ctx context.Context, record lending.BorrowRecord) error {
	if err := t.lock(ctx, lockPrefixRecord+record.ID.String()); err != nil {
		return err
	}

	if _, exists := t.record(record.ID); exists {
		return lending.ErrDuplicateBorrowRecord
	}

	if record.IsOpen() {
		if openID, exists := t.openRecordFor(record.CopyID); exists {
			return errors.Join(
				lending.ErrInventoryInconsistent,
				fmt.Errorf("copy %s is already held by borrow record %s", record.CopyID, openID),
			)
		}

		t.openByCopy[record.CopyID] = record.ID
	}

	t.records[record.ID] = record

	return nil
}

func (t *tx) LockBorrowRecord(ctx context.Context, borrowID uuid.UUID) (lending.BorrowRecord, error) {
	if err := t.lock(ctx, lockPrefixRecord+borrowID.String()); err != nil {
		return lending.BorrowRecord{}, err
	}

	record, ok := t.record(borrowID)
	if !ok {
		return lending.BorrowRecord{}, lending.ErrNotFound
	}

	return record, nil
}

func (t *tx) UpdateBorrowRecord(
	ctx context.Context,
	borrowID uuid.UUID,
	patch lending.BorrowPatch,
) (lending.BorrowRecord, error) {

	record, err := t.LockBorrowRecord(ctx, borrowID)
	if err != nil {
		return lending.BorrowRecord{}, err
	}

	if !record.IsOpen() {
		return lending.BorrowRecord{}, lending.ErrAlreadyReturned
	}

	if patch.IsEmpty() {
		return record, nil
	}

	updated := patch.ApplyTo(record)
	t.records[borrowID] = updated

	if !updated.IsOpen() {
		t.openByCopy[updated.CopyID] = uuid.Nil
	}

	return updated, nil
}

func (t *tx) GetBorrowRecord(_ context.Context, borrowID uuid.UUID) (lending.BorrowRecord, error) {
	record, ok := t.record(borrowID)
	if !ok {
		return lending.BorrowRecord{}, lending.ErrNotFound
	}

	return record, nil
}

func (t *tx) FindBorrowRecords(
	_ context.Context,
	filter lending.HistoryFilter,
) ([]lending.BorrowRecord, int, error) {

	matching := make([]lending.BorrowRecord, 0)
	for _, record := range t.allRecords() {
		if filter.Matches(record) {
			matching = append(matching, record)
		}
	}

	sort.Slice(matching, func(i, j int) bool {
		if matching[i].BorrowedAt.Equal(matching[j].BorrowedAt) {
			return matching[i].ID.String() < matching[j].ID.String()
		}

		return matching[i].BorrowedAt.After(matching[j].BorrowedAt)
	})

	total := len(matching)
	from := min(filter.Offset(), total)
	to := min(from+filter.Limit(), total)

	return matching[from:to], total, nil
}

/***** lending.Waitlist *****/

func (t *tx) InsertWaitlistEntry(ctx context.Context, entry lending.WaitlistEntry) error {
	if err := t.lock(ctx, lockPrefixWaitlist+entry.ItemID.String()); err != nil {
		return err
	}

	for _, existing := range t.waitlistOf(entry.ItemID) {
		if existing.UserID == entry.UserID {
			return lending.ErrAlreadyRegistered
		}
	}

	t.waitlistAdds = append(t.waitlistAdds, entry)

	return nil
}

func (t *tx) DrainWaitlist(ctx context.Context, itemID uuid.UUID) ([]lending.WaitlistEntry, error) {
	if err := t.lock(ctx, lockPrefixWaitlist+itemID.String()); err != nil {
		return nil, err
	}

	entries := t.waitlistOf(itemID)

	t.waitlistAdds = slices.DeleteFunc(t.waitlistAdds, func(entry lending.WaitlistEntry) bool {
		return entry.ItemID == itemID
	})

	for _, entry := range entries {
		t.drained[itemID] = append(t.drained[itemID], entry.UserID)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}

/***** lending.Inventory *****/

func (t *tx) AddItem(ctx context.Context, itemID uuid.UUID, title string) (lending.Item, error) {
	if err := t.lock(ctx, lockPrefixItem+itemID.String()); err != nil {
		return lending.Item{}, err
	}

	if _, exists := t.item(itemID); exists {
		return lending.Item{}, lending.ErrDuplicateItem
	}

	item := lending.Item{ID: itemID, Title: title}
	t.items[itemID] = item

	return item, nil
}

func (t *tx) AddCopies(ctx context.Context, itemID uuid.UUID, count int) ([]uuid.UUID, error) {
	if count <= 0 {
		return nil, lending.ErrInvalidCopyCount
	}

	if err := t.lock(ctx, lockPrefixItem+itemID.String()); err != nil {
		return nil, err
	}

	item, ok := t.item(itemID)
	if !ok {
		return nil, lending.ErrNotFound
	}

	copyIDs := make([]uuid.UUID, 0, count)
	for range count {
		copyID := uuid.New()
		t.copies[copyID] = lending.Copy{ID: copyID, ItemID: itemID, Status: lending.CopyAvailable}
		copyIDs = append(copyIDs, copyID)
	}

	t.newCopies[itemID] = append(t.newCopies[itemID], copyIDs...)

	item.TotalCopies += count
	item.AvailableCopies += count
	t.items[itemID] = item

	return copyIDs, nil
}

func (t *tx) GetItem(_ context.Context, itemID uuid.UUID) (lending.Item, error) {
	item, ok := t.item(itemID)
	if !ok {
		return lending.Item{}, lending.ErrNotFound
	}

	return item, nil
}

func (t *tx) LockItem(ctx context.Context, itemID uuid.UUID) (lending.Item, error) {
	if err := t.lock(ctx, lockPrefixItem+itemID.String()); err != nil {
		return lending.Item{}, err
	}

	return t.GetItem(ctx, itemID)
}

func (t *tx) CountCopies(ctx context.Context, itemID uuid.UUID, status lending.CopyStatus) (int, error) {
	if _, err := t.LockItem(ctx, itemID); err != nil {
		return 0, err
	}

	count := 0
	for _, c := range t.copiesOf(itemID) {
		if c.Status == status {
			count++
		}
	}

	return count, nil
}

func (t *tx) CountOpenBorrows(ctx context.Context, itemID uuid.UUID) (map[uuid.UUID]int, error) {
	if _, err := t.LockItem(ctx, itemID); err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int)
	for _, record := range t.allRecords() {
		if record.ItemID == itemID && record.IsOpen() {
			counts[record.CopyID]++
		}
	}

	return counts, nil
}

// compile-time check
var _ lending.Tx = (*tx)(nil)
