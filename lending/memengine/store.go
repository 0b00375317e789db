package memengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	logMsgTxCommitted  = "memengine transaction committed"
	logMsgTxRolledBack = "memengine transaction rolled back"
	logAttrError       = "error"
	logAttrDurationMS  = "duration_ms"
	logAttrWrites      = "writes"
)

// Store keeps the lending state in memory. The zero value is not usable, use NewStore.
type Store struct {
	mu         sync.RWMutex
	items      map[uuid.UUID]lending.Item
	copies     map[uuid.UUID]lending.Copy
	itemCopies map[uuid.UUID][]uuid.UUID
	records    map[uuid.UUID]lending.BorrowRecord
	openByCopy map[uuid.UUID]uuid.UUID
	waitlist   map[uuid.UUID]map[uuid.UUID]lending.WaitlistEntry

	locks  *keyedLocks
	logger lending.Logger
}

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithLogger sets a logger that receives one debug line per finished transaction.
func WithLogger(logger lending.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// NewStore creates an empty Store.
func NewStore(options ...Option) (*Store, error) {
	s := &Store{
		items:      make(map[uuid.UUID]lending.Item),
		copies:     make(map[uuid.UUID]lending.Copy),
		itemCopies: make(map[uuid.UUID][]uuid.UUID),
		records:    make(map[uuid.UUID]lending.BorrowRecord),
		openByCopy: make(map[uuid.UUID]uuid.UUID),
		waitlist:   make(map[uuid.UUID]map[uuid.UUID]lending.WaitlistEntry),
		locks:      newKeyedLocks(),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// WithinTx runs fn in a transaction. See lending.Store for the contract.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx lending.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	t := newTx(s)

	committed := false
	defer func() {
		if !committed {
			t.rollback()
		}
	}()

	if err := fn(ctx, t); err != nil {
		s.logDebug(logMsgTxRolledBack, logAttrError, err.Error(), logAttrDurationMS, toMilliseconds(time.Since(start)))
		return err
	}

	if err := ctx.Err(); err != nil {
		s.logDebug(logMsgTxRolledBack, logAttrError, err.Error(), logAttrDurationMS, toMilliseconds(time.Since(start)))
		return errors.Join(lending.ErrCommitFailed, err)
	}

	writes := t.commit()
	committed = true
	s.logDebug(logMsgTxCommitted, logAttrWrites, writes, logAttrDurationMS, toMilliseconds(time.Since(start)))

	return nil
}

func (s *Store) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func toMilliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
