package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

var (
	ErrUserNotFound        = apperr.NotFound("user not found")
	ErrDoctorNotFound      = apperr.NotFound("doctor not found")
	ErrFacilityNotFound    = apperr.NotFound("facility not found")
	ErrAppointmentNotFound = apperr.NotFound("appointment not found")

	// ErrSlotTaken is returned by the store when an active appointment already
	// holds the same doctor and minute.
	ErrSlotTaken        = apperr.Conflict("this time slot is already booked for this doctor")
	ErrEmailExists      = apperr.Conflict("email already exists")
	ErrDoctorUserLinked = apperr.Conflict("user is already linked to a doctor profile")
)

// AppointmentQuery selects appointments for agenda views. Nil fields do not
// filter. FacilityScoped with a nil FacilityID matches private appointments.
type AppointmentQuery struct {
	PatientID      *uuid.UUID
	DoctorID       *uuid.UUID
	FacilityID     *uuid.UUID
	FacilityScoped bool
	Statuses       []AppointmentStatus
	From           *time.Time // inclusive
	To             *time.Time // inclusive
	Before         *time.Time // exclusive
	// PastOrCancelled matches status = cancelled OR scheduled_at < Before.
	PastOrCancelled bool
	Descending      bool
}

type DoctorFilter struct {
	PrivateOnly  bool
	FacilityOnly bool
	FacilityID   *uuid.UUID
}

// Repository contains all store interactions needed by the services.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, u *User) error
	// CreateDoctorAccount stores u and its linked doctor profile d together;
	// on failure neither exists.
	CreateDoctorAccount(ctx context.Context, u *User, d *Doctor) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// Directory
	CreateFacility(ctx context.Context, f *Facility) error
	// CreateFacilityForAdmin stores f and links the admin to it, only while the
	// admin has no facility. Otherwise it returns ErrAdminHasFacility and
	// stores nothing.
	CreateFacilityForAdmin(ctx context.Context, adminID uuid.UUID, f *Facility) error
	GetFacilityByID(ctx context.Context, id uuid.UUID) (*Facility, error)
	ListFacilities(ctx context.Context) ([]Facility, error)
	CreateDoctor(ctx context.Context, d *Doctor) error
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, error)

	// Appointments. CreateAppointment must reject a second active appointment
	// for the same (doctor, scheduled_at) atomically with ErrSlotTaken.
	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateAppointmentStatus applies the change only while the row is not
	// cancelled; otherwise it returns ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error)
	ListActiveTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error)
	ListAppointments(ctx context.Context, q AppointmentQuery) ([]AppointmentDetail, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
