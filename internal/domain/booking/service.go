package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrUnknownExam     = errors.New("unknown exam")
	ErrUnknownFacility = errors.New("unknown facility")
	ErrSlotUnavailable = errors.New("slot is not available")
)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used for cancellation and slot checks.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithSlotSource makes bookings check the chosen instant against the slots
// the facility offers.
func WithSlotSource(src SlotSource) ServiceOption {
	return func(s *Service) { s.slots = src }
}

// Service wraps the submission rules and cancellation policy around
// persistence.
type Service struct {
	appointments AppointmentRepository
	patients     PatientRepository
	catalog      Catalog
	slots        SlotSource
	now          func() time.Time
	logger       zerolog.Logger
}

func NewService(appts AppointmentRepository, patients PatientRepository, catalog Catalog, logger zerolog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		appointments: appts,
		patients:     patients,
		catalog:      catalog,
		now:          time.Now,
		logger:       logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Catalog() Catalog { return s.catalog }

// Now returns the current time from the service's clock.
func (s *Service) Now() time.Time { return s.now() }

// Validate runs the submission rules against the service's exam catalog.
func (s *Service) Validate(in RawSubmission) (*AppointmentRequest, ValidationErrors) {
	return Validate(in, s.catalog.Exams)
}

// CanCancel evaluates the cancellation policy at the service's current time.
func (s *Service) CanCancel(a Appointment) bool {
	return CanCancel(a, s.now())
}

// Submit validates a submission and, when it is acceptable, books it. A
// rejected submission is returned as ValidationErrors.
func (s *Service) Submit(ctx context.Context, in RawSubmission) (*Appointment, error) {
	req, verrs := s.Validate(in)
	if verrs != nil {
		fields := make([]string, 0, len(verrs))
		for f := range verrs {
			fields = append(fields, string(f))
		}
		s.logger.Warn().Strs("fields", fields).Msg("submission rejected")
		return nil, verrs
	}
	return s.book(ctx, *req)
}

func (s *Service) book(ctx context.Context, req AppointmentRequest) (*Appointment, error) {
	exam, ok := FindExam(s.catalog.Exams, req.ExamID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownExam, req.ExamID)
	}
	facility, ok := FindFacility(s.catalog.Facilities, req.FacilityID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFacility, req.FacilityID)
	}
	if err := s.checkSlot(ctx, facility.ID, req.DateTime); err != nil {
		return nil, err
	}

	patient, err := s.resolvePatient(ctx, req.PatientRef)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		Patient:                 PatientSummary{ID: patient.ID, FullName: patient.FullName},
		Exam:                    exam,
		Facility:                facility,
		DateTime:                req.DateTime,
		Status:                  StatusScheduled,
		PreparationAcknowledged: req.PreparationAcknowledged,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return nil, fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logger.Info().
		Int64("appointment_id", a.ID).
		Int64("patient_id", a.Patient.ID).
		Int64("exam_id", a.Exam.ID).
		Int64("facility_id", a.Facility.ID).
		Time("date_time", a.DateTime).
		Msg("appointment scheduled")
	return a, nil
}

func (s *Service) checkSlot(ctx context.Context, facilityID int64, at time.Time) error {
	if !at.After(s.now()) {
		return fmt.Errorf("%w: %s is in the past", ErrSlotUnavailable, at.Format(time.RFC3339))
	}
	if s.slots == nil {
		return nil
	}
	slots, err := s.AvailableSlots(ctx, facilityID, at)
	if err != nil {
		return err
	}
	slot, ok := FindSlot(slots, at)
	if !ok || !slot.Available {
		return fmt.Errorf("%w: %s", ErrSlotUnavailable, at.Format(time.RFC3339))
	}
	return nil
}

func (s *Service) resolvePatient(ctx context.Context, ref PatientRef) (*Patient, error) {
	if ref.NewPatient != nil {
		p := &Patient{
			FullName:  ref.FullName,
			TaxID:     ref.TaxID,
			BirthDate: ref.BirthDate,
			Phone:     ref.Phone,
			Email:     ref.Email,
		}
		if err := s.patients.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("register patient: %w", err)
		}
		return p, nil
	}
	p, err := s.patients.GetByID(ctx, *ref.ExistingPatientID)
	if err != nil {
		return nil, fmt.Errorf("patient %d: %w", *ref.ExistingPatientID, err)
	}
	return p, nil
}

// AvailableSlots returns the slots supplied for facilityID on the UTC day
// of day, with already booked instants marked unavailable.
func (s *Service) AvailableSlots(ctx context.Context, facilityID int64, day time.Time) ([]TimeSlot, error) {
	day = day.UTC()
	if _, ok := FindFacility(s.catalog.Facilities, facilityID); !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFacility, facilityID)
	}
	if s.slots == nil {
		return []TimeSlot{}, nil
	}
	supplied, err := s.slots.SlotsFor(ctx, facilityID, day)
	if err != nil {
		return nil, fmt.Errorf("fetch slots: %w", err)
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	booked, err := s.appointments.ListScheduled(ctx, facilityID, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}

	out := make([]TimeSlot, len(supplied))
	copy(out, supplied)
	for i := range out {
		for _, a := range booked {
			if a.DateTime.Equal(out[i].DateTime) {
				out[i].Available = false
				break
			}
		}
	}
	SortSlots(out)
	return out, nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, status Status, limit, offset int) ([]*Appointment, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("invalid appointment status: %s", status)
	}
	return s.appointments.List(ctx, status, limit, offset)
}

// Cancel re-checks the cancellation policy and moves the appointment to
// Cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !CanCancel(*a, now) {
		s.logger.Warn().
			Int64("appointment_id", id).
			Str("status", string(a.Status)).
			Msg("cancellation refused")
		return nil, fmt.Errorf("%w: status %s", ErrNotCancellable, a.Status)
	}

	cancelled, err := s.appointments.Cancel(ctx, id, now)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("appointment_id", id).Msg("appointment cancelled")
	return cancelled, nil
}
