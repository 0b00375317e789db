package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/library"
	"github.com/AntonStoeckl/library-lending-go/library/features/registerwaitlist"
	"github.com/AntonStoeckl/library-lending-go/library/notification"
)

// counters are shared by all readers.
type counters struct {
	opened            atomic.Int64
	unavailable       atomic.Int64
	closed            atomic.Int64
	registered        atomic.Int64
	alreadyAvailable  atomic.Int64
	alreadyRegistered atomic.Int64
	notified          atomic.Int64
	failed            atomic.Int64
}

// Simulation drives readers against one service.
type Simulation struct {
	cfg      Config
	logger   *slog.Logger
	service  *library.Service
	registry *notification.ConnectionRegistry
	items    []lending.Item
	counters counters
}

// NewSimulation creates a simulation on an already wired service.
func NewSimulation(cfg Config, logger *slog.Logger, service *library.Service, registry *notification.ConnectionRegistry) *Simulation {
	return &Simulation{
		cfg:      cfg,
		logger:   logger,
		service:  service,
		registry: registry,
	}
}

// Seed adds the configured items and copies.
func (s *Simulation) Seed(ctx context.Context) error {
	s.items = make([]lending.Item, 0, s.cfg.Items)

	for i := range s.cfg.Items {
		item, err := s.service.AddInventory(ctx, fmt.Sprintf("Simulated Title %03d", i+1), s.cfg.CopiesPerItem)
		if err != nil {
			return err
		}

		s.items = append(s.items, item)
	}

	s.logger.Info("inventory seeded", "items", len(s.items), "copies_per_item", s.cfg.CopiesPerItem)

	return nil
}

// Run lets all readers act until ctx is done or the configured duration has passed.
// Every reader returns its open borrows before Run returns.
func (s *Simulation) Run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancel()

	var readers, listeners sync.WaitGroup

	for i := range s.cfg.Readers {
		r := &reader{
			id:  uuid.New(),
			sim: s,
			rng: rand.New(rand.NewPCG(uint64(i), uint64(time.Now().UnixNano()))),
		}

		if r.rng.Float64() < s.cfg.ConnectedRatio {
			conn, err := s.registry.Connect(r.id, "sim-"+r.id.String())
			if err != nil {
				s.logger.Error("connect failed", "user_id", r.id.String(), "error", err.Error())
			} else {
				r.channelID = conn.ChannelID()
				listeners.Add(1)
				go func() {
					defer listeners.Done()
					s.listen(conn)
				}()
			}
		}

		readers.Add(1)
		go func() {
			defer readers.Done()
			r.act(runCtx)
			r.returnAll(context.WithoutCancel(ctx))
		}()
	}

	readers.Wait()
	s.registry.Close()
	listeners.Wait()
}

// listen counts the frames of one connection until it is closed.
func (s *Simulation) listen(conn *notification.Connection) {
	for {
		select {
		case frame := <-conn.Frames():
			if _, err := notification.DecodeMessage(frame); err != nil {
				s.logger.Error("undecodable frame", "error", err.Error())
				continue
			}

			s.counters.notified.Add(1)

		case <-conn.Done():
			// frames still buffered at close are counted too
			for {
				select {
				case <-conn.Frames():
					s.counters.notified.Add(1)
				default:
					return
				}
			}
		}
	}
}

type reader struct {
	id        uuid.UUID
	channelID string
	sim       *Simulation
	rng       *rand.Rand
	borrows   []uuid.UUID
}

func (r *reader) act(ctx context.Context) {
	for ctx.Err() == nil {
		if len(r.borrows) > 0 && r.rng.Float64() < r.sim.cfg.ReturnRatio {
			r.returnOne(ctx)
		} else {
			r.borrow(ctx)
		}

		r.think(ctx)
	}
}

func (r *reader) think(ctx context.Context) {
	if r.sim.cfg.ThinkTime <= 0 {
		return
	}

	timer := time.NewTimer(rand.N(r.sim.cfg.ThinkTime))
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (r *reader) borrow(ctx context.Context) {
	item := r.sim.items[r.rng.IntN(len(r.sim.items))]

	record, err := r.sim.service.OpenBorrow(ctx, r.id, item.ID, r.sim.service.DefaultDueAt())
	switch {
	case err == nil:
		r.borrows = append(r.borrows, record.ID)
		r.sim.counters.opened.Add(1)

	case errors.Is(err, lending.ErrUnavailable):
		r.sim.counters.unavailable.Add(1)
		r.waitFor(ctx, item.ID)

	default:
		r.fail(ctx, "open borrow failed", err)
	}
}

func (r *reader) waitFor(ctx context.Context, itemID uuid.UUID) {
	outcome, err := r.sim.service.RegisterWaitlist(ctx, r.id, itemID, r.channelID)
	if err != nil {
		r.fail(ctx, "waitlist registration failed", err)
		return
	}

	switch outcome {
	case registerwaitlist.Registered:
		r.sim.counters.registered.Add(1)
	case registerwaitlist.AlreadyAvailable:
		r.sim.counters.alreadyAvailable.Add(1)
	case registerwaitlist.AlreadyRegistered:
		r.sim.counters.alreadyRegistered.Add(1)
	}
}

func (r *reader) returnOne(ctx context.Context) {
	i := r.rng.IntN(len(r.borrows))
	borrowID := r.borrows[i]

	if _, err := r.sim.service.CloseBorrow(ctx, borrowID, lending.Actor{ID: r.id}); err != nil {
		r.fail(ctx, "close borrow failed", err)
		return
	}

	r.borrows = append(r.borrows[:i], r.borrows[i+1:]...)
	r.sim.counters.closed.Add(1)
}

func (r *reader) returnAll(ctx context.Context) {
	for len(r.borrows) > 0 {
		before := len(r.borrows)
		r.returnOne(ctx)

		if len(r.borrows) == before {
			return
		}
	}
}

func (r *reader) fail(ctx context.Context, msg string, err error) {
	// the run deadline ends in-flight calls, that is not a failure
	if ctx.Err() != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return
	}

	r.sim.counters.failed.Add(1)
	r.sim.logger.Error(msg, "user_id", r.id.String(), "error", err.Error())
}

/***** invariants *****/

// Violation describes one broken inventory invariant.
type Violation struct {
	ItemID uuid.UUID
	Reason string
}

// CheckInvariants verifies every seeded item: the available count stays within [0, total],
// matches the AVAILABLE copies and no copy has more than one open record.
func (s *Simulation) CheckInvariants(ctx context.Context, store lending.Store) ([]Violation, error) {
	var violations []Violation

	for _, seeded := range s.items {
		err := store.WithinTx(ctx, func(ctx context.Context, tx lending.Tx) error {
			item, err := tx.LockItem(ctx, seeded.ID)
			if err != nil {
				return err
			}

			available, err := tx.CountCopies(ctx, item.ID, lending.CopyAvailable)
			if err != nil {
				return err
			}

			openBorrows, err := tx.CountOpenBorrows(ctx, item.ID)
			if err != nil {
				return err
			}

			if item.AvailableCopies < 0 || item.AvailableCopies > item.TotalCopies {
				violations = append(violations, Violation{item.ID, fmt.Sprintf("available %d outside [0, %d]", item.AvailableCopies, item.TotalCopies)})
			}

			if item.AvailableCopies != available {
				violations = append(violations, Violation{item.ID, fmt.Sprintf("available %d but %d AVAILABLE copies", item.AvailableCopies, available)})
			}

			if item.AvailableCopies != item.TotalCopies {
				violations = append(violations, Violation{item.ID, "copies still borrowed after all readers returned"})
			}

			for copyID, count := range openBorrows {
				if count > 1 {
					violations = append(violations, Violation{item.ID, fmt.Sprintf("copy %s has %d open records", copyID, count)})
				}
			}

			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return violations, nil
}

// LogSummary logs the counters of the run.
func (s *Simulation) LogSummary() {
	c := &s.counters
	s.logger.Info("simulation finished",
		"opened", c.opened.Load(),
		"unavailable", c.unavailable.Load(),
		"closed", c.closed.Load(),
		"registered", c.registered.Load(),
		"already_available", c.alreadyAvailable.Load(),
		"already_registered", c.alreadyRegistered.Load(),
		"notifications_received", c.notified.Load(),
		"failed", c.failed.Load(),
	)
}
