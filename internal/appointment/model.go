package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Active reports whether the status still holds its slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Role string

const (
	RolePatient       Role = "patient"
	RoleDoctor        Role = "doctor"
	RoleFacilityAdmin Role = "admin_facility"
	RoleAdmin         Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleFacilityAdmin, RoleAdmin:
		return true
	}
	return false
}

type FacilityType string

const (
	FacilityClinic   FacilityType = "clinic"
	FacilityHospital FacilityType = "hospital"
)

type User struct {
	ID           uuid.UUID
	FullName     string
	Email        string
	PasswordHash string
	Role         Role
	FacilityID   *uuid.UUID // admin_facility only
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Doctor struct {
	ID         uuid.UUID
	FullName   string
	Specialty  string
	FacilityID *uuid.UUID // nil for private practice
	UserID     *uuid.UUID
	CreatedBy  *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Private reports whether the doctor has no facility affiliation.
func (d *Doctor) Private() bool {
	return d.FacilityID == nil
}

type Facility struct {
	ID        uuid.UUID
	Name      string
	Type      FacilityType
	Address   string
	Phone     string
	CreatedBy uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment times are naive wall-clock times, see package schedule.
type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	FacilityID  *uuid.UUID
	ScheduledAt time.Time
	Status      AppointmentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// AppointmentDetail is an appointment joined with the names callers display.
type AppointmentDetail struct {
	Appointment
	DoctorName      string
	DoctorSpecialty string
	PatientName     string
	PatientEmail    string
	FacilityName    *string
}

// Actor is the authenticated identity performing an operation. It is
// resolved once per request and passed explicitly to the service.
type Actor struct {
	UserID           uuid.UUID
	Role             Role
	FacilityID       *uuid.UUID // admin_facility: the facility the admin manages
	DoctorID         *uuid.UUID // doctor: the linked profile
	DoctorFacilityID *uuid.UUID // doctor: the profile's facility, nil when private
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
