package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/config"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/schedule"
	"github.com/hackgods/clinic-booking/internal/telemetry"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
)

var (
	ErrDoctorAndDateRequired = apperr.InvalidInput("doctorId and date are required")
	ErrInvalidDateTime       = apperr.InvalidInput("invalid date")
	ErrInvalidDate           = apperr.InvalidInput("date must be in format YYYY-MM-DD")
	ErrInvalidStatus         = apperr.InvalidInput("invalid status")
	ErrAlreadyCancelled      = apperr.InvalidState("already cancelled")
	ErrSlotBusy              = apperr.Unavailable("this time slot is being booked by someone else, please retry shortly")
	ErrNotYourAppointment    = apperr.Forbidden("not your appointment")
	ErrForbidden             = apperr.Forbidden("forbidden")
)

const lockRetryInterval = 50 * time.Millisecond

var tracer = otel.Tracer("github.com/hackgods/clinic-booking/internal/appointment")

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	lockWait time.Duration
	hours    schedule.WorkingHours
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config) *Service {
	if locker == nil {
		locker = redisclient.NewNoopLocker()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		lockWait: cfg.LockWait,
		hours:    schedule.DefaultHours,
		loc:      loc,
		now:      time.Now,
	}
}

// WithLockWait sets how long a booking waits for a slot lock held by another
// request before giving up.
func (s *Service) WithLockWait(d time.Duration) *Service {
	s.lockWait = d
	return s
}

// WithClock replaces the service clock. Intended for tests and simulations.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// wallNow is the current naive wall-clock time in the configured zone.
func (s *Service) wallNow() time.Time {
	return schedule.WallClock(s.now(), s.loc)
}

// CreateAppointment books requested for the patient with the doctor. The
// facility always comes from the doctor's current affiliation. Two concurrent
// requests for the same doctor minute cannot both succeed: the store's unique
// index turns the loser into a Conflict. A slot lock held past lockWait is
// reported as ErrSlotBusy.
func (s *Service) CreateAppointment(ctx context.Context, patientID, doctorID uuid.UUID, requested string) (_ *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointment.Create", trace.WithAttributes(
		attribute.String("doctor.id", doctorID.String()),
	))
	defer func() { endSpan(span, err) }()

	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	scheduledAt, err := schedule.ParseDateTime(requested, s.loc)
	if err != nil {
		return nil, ErrInvalidDateTime
	}

	appt := &Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		DoctorID:    doctor.ID,
		FacilityID:  facilityOf(doctor),
		ScheduledAt: scheduledAt,
		Status:      StatusPending,
	}

	insert := func(ctx context.Context) error {
		if err := s.repo.CreateAppointment(ctx, appt); err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	}

	err = s.withSlotLock(ctx, doctor.ID, scheduledAt, insert)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		// The lock is a fast path only; the unique index still decides.
		telemetry.LoggerFromContext(ctx).Warn().Err(err).Msg("booking without slot lock")
		err = insert(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("appointment.id", appt.ID.String()))

	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"patient_id":   patientID.String(),
		"doctor_id":    doctor.ID.String(),
		"facility_id":  idString(appt.FacilityID),
		"scheduled_at": appt.ScheduledAt.Format("2006-01-02T15:04"),
		"status":       string(appt.Status),
	})

	return appt, nil
}

// withSlotLock retries a held slot lock until lockWait runs out. The holder
// may still fail, so a waiter that gets the lock runs fn and lets the unique
// index decide instead of assuming the slot is gone.
func (s *Service) withSlotLock(ctx context.Context, doctorID uuid.UUID, at time.Time, fn func(ctx context.Context) error) error {
	deadline := time.Now().Add(s.lockWait)
	for {
		err := s.locker.WithSlotLock(ctx, doctorID, at, fn)
		if !errors.Is(err, redisclient.ErrLockNotAcquired) || !time.Now().Before(deadline) {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(lockRetryInterval):
		}
	}
}

// UpdateStatus moves an appointment to target on behalf of actor. Facility
// admins may only touch appointments of their own facility, doctors only
// their own. Cancelled is terminal; re-confirming is a no-op write.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, target AppointmentStatus) (_ *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointment.UpdateStatus", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
		attribute.String("appointment.target_status", string(target)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer func() { endSpan(span, err) }()

	if target != StatusConfirmed && target != StatusCancelled {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := authorizeTransition(actor, appt); err != nil {
		return nil, err
	}

	if appt.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	from := appt.Status
	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, target)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The row exists, so it was cancelled between the read and the write.
			return nil, ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentStatusChanged, map[string]any{
		"from":     string(from),
		"to":       string(updated.Status),
		"actor_id": actor.UserID.String(),
		"role":     string(actor.Role),
	})

	return updated, nil
}

func authorizeTransition(actor Actor, appt *Appointment) error {
	switch actor.Role {
	case RoleFacilityAdmin:
		if appt.FacilityID == nil || actor.FacilityID == nil || *appt.FacilityID != *actor.FacilityID {
			return ErrForbidden
		}
		return nil
	case RoleDoctor:
		if actor.DoctorID == nil || appt.DoctorID != *actor.DoctorID {
			return ErrNotYourAppointment
		}
		return nil
	default:
		return ErrForbidden
	}
}

// ParseStatus validates a client supplied target status.
func ParseStatus(raw string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(raw); st {
	case StatusConfirmed, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

func facilityOf(d *Doctor) *uuid.UUID {
	if d.FacilityID == nil {
		return nil
	}
	id := *d.FacilityID
	return &id
}

func idString(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	logger := telemetry.LoggerFromContext(ctx)

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		logger.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if apperr.KindOf(err) == apperr.KindInternal {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
