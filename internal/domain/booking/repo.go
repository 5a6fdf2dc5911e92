package booking

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotTaken           = errors.New("slot is already booked")
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	List(ctx context.Context, status Status, limit, offset int) ([]*Appointment, int, error)
	// ListScheduled returns Scheduled appointments at facilityID starting in [from, to).
	ListScheduled(ctx context.Context, facilityID int64, from, to time.Time) ([]*Appointment, error)
	// Cancel flips a Scheduled appointment that starts after now to
	// Cancelled. It returns ErrNotCancellable when nothing was updated.
	Cancel(ctx context.Context, id int64, now time.Time) (*Appointment, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
}

// SlotSource supplies the slots a facility offers on a given day.
type SlotSource interface {
	SlotsFor(ctx context.Context, facilityID int64, day time.Time) ([]TimeSlot, error)
}
