package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSlot        = errors.New("invalid slot")
	ErrConflict           = errors.New("booking conflict")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrValidation         = errors.New("validation failed")
	ErrPlaceholderClient  = errors.New("placeholder client cannot be deleted")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ConflictError names the existing booking that collides with a proposal.
type ConflictError struct {
	BookingID int64
	Slot      TimeSlot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflicts with booking %d (%s)", e.BookingID, e.Slot)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports a missing client, artist or booking. Err carries the
// underlying cause when the lookup itself failed, e.g. on a deadline.
type NotFoundError struct {
	Entity string
	ID     string
	Err    error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s not found: %v", e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

// TransitionError reports an event that the booking state machine rejects.
type TransitionError struct {
	From  BookingStatus
	Event BookingEvent
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s booking", e.Event, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// NotFound is shorthand for building a NotFoundError from an integer id.
func NotFound(entity string, id int64, cause error) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id), Err: cause}
}
