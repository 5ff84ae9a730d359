package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-booking/internal/schedule"
)

// Availability is one doctor's slot partition for one calendar date.
type Availability struct {
	Date        string
	DoctorID    uuid.UUID
	SlotMinutes int
	WorkStart   string
	WorkEnd     string
	Booked      []string
	Available   []string
}

// Availability reads the doctor's active bookings for date and subtracts them
// from the day's slot grid. Reads always go to the store.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date string) (_ *Availability, err error) {
	ctx, span := tracer.Start(ctx, "appointment.Availability", trace.WithAttributes(
		attribute.String("doctor.id", doctorID.String()),
		attribute.String("date", date),
	))
	defer func() { endSpan(span, err) }()

	day, err := schedule.ParseDate(date)
	if err != nil {
		return nil, ErrInvalidDate
	}

	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	from, to := schedule.DayBounds(day)
	times, err := s.repo.ListActiveTimes(ctx, doctor.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list booked times: %w", err)
	}

	available, booked := schedule.Partition(s.hours.Slots(day), times)

	return &Availability{
		Date:        day.Format(schedule.DateLayout),
		DoctorID:    doctor.ID,
		SlotMinutes: int(s.hours.Slot.Minutes()),
		WorkStart:   schedule.ClockLabel(day.Add(s.hours.Start)),
		WorkEnd:     schedule.ClockLabel(day.Add(s.hours.End)),
		Booked:      booked,
		Available:   available,
	}, nil
}

// DoctorAvailability is Availability for the acting doctor's own profile.
func (s *Service) DoctorAvailability(ctx context.Context, actor Actor, date string) (*Availability, error) {
	if actor.Role != RoleDoctor || actor.DoctorID == nil {
		return nil, ErrForbidden
	}
	return s.Availability(ctx, *actor.DoctorID, date)
}
