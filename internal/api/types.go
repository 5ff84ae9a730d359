package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

// wallClockLayout renders naive appointment times without an offset.
const wallClockLayout = "2006-01-02T15:04:05"

type CreateAppointmentRequest struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patientId"`
	DoctorID    uuid.UUID  `json:"doctorId"`
	FacilityID  *uuid.UUID `json:"facilityId"`
	ScheduledAt string     `json:"scheduledAt"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type DoctorSummary struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"fullName"`
	Specialty string    `json:"specialty"`
}

type PatientSummary struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email"`
}

type FacilitySummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type AgendaItem struct {
	AppointmentResponse
	Doctor   DoctorSummary    `json:"doctor"`
	Patient  PatientSummary   `json:"patient"`
	Facility *FacilitySummary `json:"facility"`
}

type AgendaResponse struct {
	Upcoming []AgendaItem `json:"upcoming"`
	History  []AgendaItem `json:"history"`
}

type AgendaRangeResponse struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Status string       `json:"status"`
	Total  int          `json:"total"`
	Agenda []AgendaItem `json:"agenda"`
}

type AvailabilityResponse struct {
	Date        string    `json:"date"`
	DoctorID    uuid.UUID `json:"doctorId"`
	SlotMinutes int       `json:"slotMinutes"`
	WorkStart   string    `json:"workStart"`
	WorkEnd     string    `json:"workEnd"`
	Booked      []string  `json:"booked"`
	Available   []string  `json:"available"`
}

type RegisterRequest struct {
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	FacilityID  string `json:"facilityId"`
	Specialty   string `json:"specialty"`
	InviteToken string `json:"inviteToken"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID         uuid.UUID  `json:"id"`
	FullName   string     `json:"fullName"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	FacilityID *uuid.UUID `json:"facilityId"`
}

type AuthResponse struct {
	UserResponse
	Token string `json:"token"`
}

type MeResponse struct {
	UserResponse
	DoctorID *uuid.UUID `json:"doctorId,omitempty"`
}

type CreateFacilityRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type FacilityResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone,omitempty"`
	CreatedBy uuid.UUID `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type InviteResponse struct {
	InviteToken string    `json:"inviteToken"`
	FacilityID  uuid.UUID `json:"facilityId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type CreateDoctorRequest struct {
	FullName  string `json:"fullName"`
	Specialty string `json:"specialty"`
}

type DoctorResponse struct {
	ID         uuid.UUID  `json:"id"`
	FullName   string     `json:"fullName"`
	Specialty  string     `json:"specialty"`
	FacilityID *uuid.UUID `json:"facilityId"`
	UserID     *uuid.UUID `json:"userId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		DoctorID:    a.DoctorID,
		FacilityID:  a.FacilityID,
		ScheduledAt: a.ScheduledAt.Format(wallClockLayout),
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toAgendaItems(items []appointment.AppointmentDetail) []AgendaItem {
	out := make([]AgendaItem, 0, len(items))
	for i := range items {
		d := &items[i]
		item := AgendaItem{
			AppointmentResponse: toAppointmentResponse(&d.Appointment),
			Doctor:              DoctorSummary{ID: d.DoctorID, FullName: d.DoctorName, Specialty: d.DoctorSpecialty},
			Patient:             PatientSummary{ID: d.PatientID, FullName: d.PatientName, Email: d.PatientEmail},
		}
		if d.FacilityID != nil && d.FacilityName != nil {
			item.Facility = &FacilitySummary{ID: *d.FacilityID, Name: *d.FacilityName}
		}
		out = append(out, item)
	}
	return out
}

func toUserResponse(u *appointment.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		Role:       string(u.Role),
		FacilityID: u.FacilityID,
	}
}

func toFacilityResponse(f *appointment.Facility) FacilityResponse {
	return FacilityResponse{
		ID:        f.ID,
		Name:      f.Name,
		Type:      string(f.Type),
		Address:   f.Address,
		Phone:     f.Phone,
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt,
	}
}

func toDoctorResponse(d *appointment.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:         d.ID,
		FullName:   d.FullName,
		Specialty:  d.Specialty,
		FacilityID: d.FacilityID,
		UserID:     d.UserID,
		CreatedAt:  d.CreatedAt,
	}
}

func toDoctorResponses(items []appointment.Doctor) []DoctorResponse {
	out := make([]DoctorResponse, 0, len(items))
	for i := range items {
		out = append(out, toDoctorResponse(&items[i]))
	}
	return out
}
