package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/schedule"
)

var (
	ErrRangeRequired = apperr.InvalidInput("from and to are required")
	ErrInvalidRange  = apperr.InvalidInput("invalid date format")
	ErrRangeReversed = apperr.InvalidInput("from must not be after to")
	ErrNoFacility    = apperr.Forbidden("facility admin has no facility")
)

// StatusFilter selects statuses in agenda range queries.
type StatusFilter string

const (
	FilterActive    StatusFilter = "active"
	FilterPending   StatusFilter = "pending"
	FilterConfirmed StatusFilter = "confirmed"
	FilterCancelled StatusFilter = "cancelled"
	FilterAll       StatusFilter = "all"
)

// ParseStatusFilter maps a query value to a filter. Empty and unknown values
// mean active.
func ParseStatusFilter(raw string) StatusFilter {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(raw))); f {
	case FilterPending, FilterConfirmed, FilterCancelled, FilterAll:
		return f
	}
	return FilterActive
}

func (f StatusFilter) statuses() []AppointmentStatus {
	switch f {
	case FilterPending:
		return []AppointmentStatus{StatusPending}
	case FilterConfirmed:
		return []AppointmentStatus{StatusConfirmed}
	case FilterCancelled:
		return []AppointmentStatus{StatusCancelled}
	case FilterAll:
		return []AppointmentStatus{StatusPending, StatusConfirmed, StatusCancelled}
	default:
		return []AppointmentStatus{StatusPending, StatusConfirmed}
	}
}

// Agenda splits appointments into upcoming (active, not yet started,
// ascending) and history (cancelled or past, most recent first).
type Agenda struct {
	Upcoming []AppointmentDetail
	History  []AppointmentDetail
}

type AgendaRange struct {
	From   string
	To     string
	Status StatusFilter
	Items  []AppointmentDetail
}

// PatientAgenda returns the acting patient's own appointments.
func (s *Service) PatientAgenda(ctx context.Context, actor Actor) (*Agenda, error) {
	if actor.Role != RolePatient {
		return nil, ErrForbidden
	}
	patientID := actor.UserID
	return s.agenda(ctx, AppointmentQuery{PatientID: &patientID})
}

// DoctorAgenda returns the acting doctor's appointments, restricted to the
// doctor's current facility (or to private appointments for a private doctor).
func (s *Service) DoctorAgenda(ctx context.Context, actor Actor) (*Agenda, error) {
	if actor.Role != RoleDoctor || actor.DoctorID == nil {
		return nil, ErrForbidden
	}
	return s.agenda(ctx, doctorScope(actor))
}

func (s *Service) agenda(ctx context.Context, scope AppointmentQuery) (*Agenda, error) {
	now := s.wallNow()

	upcomingQ := scope
	upcomingQ.Statuses = []AppointmentStatus{StatusPending, StatusConfirmed}
	upcomingQ.From = &now
	upcoming, err := s.repo.ListAppointments(ctx, upcomingQ)
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}

	historyQ := scope
	historyQ.PastOrCancelled = true
	historyQ.Before = &now
	historyQ.Descending = true
	history, err := s.repo.ListAppointments(ctx, historyQ)
	if err != nil {
		return nil, fmt.Errorf("list appointment history: %w", err)
	}

	return &Agenda{Upcoming: nonNil(upcoming), History: nonNil(history)}, nil
}

// FacilityAppointments lists every appointment of the admin's facility in
// ascending date order, regardless of time or status.
func (s *Service) FacilityAppointments(ctx context.Context, actor Actor) ([]AppointmentDetail, error) {
	scope, err := facilityScope(actor)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListAppointments(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list facility appointments: %w", err)
	}
	return nonNil(items), nil
}

// AgendaRange lists appointments between from 00:00:00 and to 23:59:59.999
// with the given status filter, scoped by the actor's role: doctors see their
// own appointments, facility admins their facility's.
func (s *Service) AgendaRange(ctx context.Context, actor Actor, from, to, status string) (*AgendaRange, error) {
	var scope AppointmentQuery
	switch actor.Role {
	case RoleDoctor:
		if actor.DoctorID == nil {
			return nil, ErrForbidden
		}
		scope = doctorScope(actor)
	case RoleFacilityAdmin:
		fs, err := facilityScope(actor)
		if err != nil {
			return nil, err
		}
		scope = fs
	default:
		return nil, ErrForbidden
	}

	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return nil, ErrRangeRequired
	}
	start, end, err := schedule.RangeBounds(from, to)
	if err != nil {
		return nil, ErrInvalidRange
	}
	if start.After(end) {
		return nil, ErrRangeReversed
	}

	filter := ParseStatusFilter(status)
	scope.Statuses = filter.statuses()
	scope.From = &start
	scope.To = &end

	items, err := s.repo.ListAppointments(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list agenda range: %w", err)
	}

	return &AgendaRange{From: from, To: to, Status: filter, Items: nonNil(items)}, nil
}

func doctorScope(actor Actor) AppointmentQuery {
	doctorID := *actor.DoctorID
	return AppointmentQuery{
		DoctorID:       &doctorID,
		FacilityID:     actor.DoctorFacilityID,
		FacilityScoped: true,
	}
}

func facilityScope(actor Actor) (AppointmentQuery, error) {
	if actor.Role != RoleFacilityAdmin {
		return AppointmentQuery{}, ErrForbidden
	}
	if actor.FacilityID == nil {
		return AppointmentQuery{}, ErrNoFacility
	}
	facilityID := *actor.FacilityID
	return AppointmentQuery{FacilityID: &facilityID, FacilityScoped: true}, nil
}

func nonNil(items []AppointmentDetail) []AppointmentDetail {
	if items == nil {
		return []AppointmentDetail{}
	}
	return items
}

