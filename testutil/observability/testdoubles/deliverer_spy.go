package testdoubles

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/library/notification"
)

// SpyDelivery represents one Deliver call.
type SpyDelivery struct {
	UserID  uuid.UUID
	Message notification.Message
}

// DelivererSpy implements notification.Deliverer and records every delivery attempt.
// Users listed as offline fail their deliveries, everybody else succeeds.
type DelivererSpy struct {
	mu         sync.Mutex
	deliveries []SpyDelivery
	offline    map[uuid.UUID]bool
}

// NewDelivererSpy creates a DelivererSpy for which the given users are offline.
func NewDelivererSpy(offline ...uuid.UUID) *DelivererSpy {
	s := &DelivererSpy{offline: make(map[uuid.UUID]bool)}
	for _, userID := range offline {
		s.offline[userID] = true
	}

	return s
}

func (s *DelivererSpy) Deliver(_ context.Context, userID uuid.UUID, msg notification.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries = append(s.deliveries, SpyDelivery{UserID: userID, Message: msg})

	return !s.offline[userID]
}

// Deliveries returns a copy of all recorded delivery attempts.
func (s *DelivererSpy) Deliveries() []SpyDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyDelivery(nil), s.deliveries...)
}

// DeliveredTo returns the users of all recorded attempts in call order.
func (s *DelivererSpy) DeliveredTo() []uuid.UUID {
	deliveries := s.Deliveries()
	users := make([]uuid.UUID, 0, len(deliveries))
	for _, delivery := range deliveries {
		users = append(users, delivery.UserID)
	}

	return users
}

// Reset clears all recorded deliveries.
func (s *DelivererSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries = nil
}
