package booking

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotCancellable is returned when the cancellation policy refuses a
// cancellation.
var ErrNotCancellable = errors.New("appointment cannot be cancelled")

// CanCancel reports whether a is still cancellable at now: it must be
// Scheduled and start strictly after now.
func CanCancel(a Appointment, now time.Time) bool {
	return a.Status == StatusScheduled && a.DateTime.After(now)
}

// Cancel moves a to Cancelled when CanCancel allows it.
func (a *Appointment) Cancel(now time.Time) error {
	if !CanCancel(*a, now) {
		return fmt.Errorf("%w: status %s, starts %s", ErrNotCancellable, a.Status, a.DateTime.Format(time.RFC3339))
	}
	a.Status = StatusCancelled
	a.UpdatedAt = now
	return nil
}
