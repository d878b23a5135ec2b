package theatre

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a referenced theatre, patient or doctor does
// not exist.
var ErrNotFound = errors.New("not found")

// ErrNoTheatreAvailable is returned when no theatre satisfies a scheduling
// request.
var ErrNoTheatreAvailable = errors.New("no theatre available for the requested window")

// ValidationError reports malformed or missing input, naming the offending
// field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a status change that is illegal from the
// theatre's current status.
type InvalidTransitionError struct {
	From  Status
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a theatre that is %s", e.Event, e.From)
}

// ConflictError reports an overlapping booking, either detected during the
// conflict check or at conditional-write time when a concurrent request won
// the race.
type ConflictError struct {
	OTNumber string
	Start    time.Time
	End      time.Time
}

func (e *ConflictError) Error() string {
	if e.Start.IsZero() {
		return fmt.Sprintf("theatre %s was modified concurrently", e.OTNumber)
	}
	return fmt.Sprintf("theatre %s already has a procedure scheduled from %s to %s",
		e.OTNumber, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}
