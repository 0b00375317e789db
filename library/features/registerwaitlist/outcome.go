package registerwaitlist

import (
	"errors"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Outcome is the result of a registration.
type Outcome string

const (
	Registered        Outcome = "REGISTERED"
	AlreadyAvailable  Outcome = "ALREADY_AVAILABLE"
	AlreadyRegistered Outcome = "ALREADY_REGISTERED"
)

// Err returns the sentinel error matching an informational outcome, or nil for Registered.
func (o Outcome) Err() error {
	switch o {
	case AlreadyAvailable:
		return lending.ErrAlreadyAvailable
	case AlreadyRegistered:
		return lending.ErrAlreadyRegistered
	default:
		return nil
	}
}

// outcomeOf maps informational errors to their outcome.
func outcomeOf(err error) (Outcome, bool) {
	switch {
	case errors.Is(err, lending.ErrAlreadyAvailable):
		return AlreadyAvailable, true
	case errors.Is(err, lending.ErrAlreadyRegistered):
		return AlreadyRegistered, true
	default:
		return "", false
	}
}
