package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/telemetry"
)

var (
	ErrRegisterFieldsRequired = apperr.InvalidInput("fullName, email and password are required")
	ErrInvalidEmail           = apperr.InvalidInput("invalid email")
	ErrPasswordTooShort       = apperr.InvalidInput(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	ErrInvalidRole            = apperr.InvalidInput("invalid role")
	ErrInvalidFacilityID      = apperr.InvalidInput("invalid facilityId")
	ErrInvalidCredentials     = apperr.Unauthorized("invalid email or password")
	ErrDoctorProfileMissing   = apperr.Forbidden("doctor profile not linked to this account")
	ErrInviteRequired         = apperr.Forbidden("joining an existing facility as admin requires an invite")
	ErrInvalidInvite          = apperr.Forbidden("invalid or expired facility invite")
)

type RegisterInput struct {
	FullName   string
	Email      string
	Password   string
	Role       string
	FacilityID string
	Specialty  string
	// InviteToken is required for admin_facility with a FacilityID.
	InviteToken string
}

type Session struct {
	User  *appointment.User
	Token string
}

type Service struct {
	repo   appointment.Repository
	tokens *Tokens
}

func NewService(repo appointment.Repository, tokens *Tokens) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Register creates an account. Doctors also get a linked doctor profile,
// private unless a facility is given. An admin joining an existing facility
// must present an invite issued by one of its admins.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if fullName == "" || email == "" || in.Password == "" {
		return nil, ErrRegisterFieldsRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	role := appointment.RolePatient
	if raw := strings.TrimSpace(in.Role); raw != "" {
		role = appointment.Role(raw)
		if !role.Valid() {
			return nil, ErrInvalidRole
		}
	}

	var facilityID *uuid.UUID
	if raw := strings.TrimSpace(in.FacilityID); raw != "" && (role == appointment.RoleFacilityAdmin || role == appointment.RoleDoctor) {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, ErrInvalidFacilityID
		}
		if _, err := s.repo.GetFacilityByID(ctx, id); err != nil {
			if errors.Is(err, appointment.ErrFacilityNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load facility: %w", err)
		}
		facilityID = &id
	}

	if role == appointment.RoleFacilityAdmin && facilityID != nil {
		if strings.TrimSpace(in.InviteToken) == "" {
			return nil, ErrInviteRequired
		}
		invited, err := s.tokens.VerifyInvite(strings.TrimSpace(in.InviteToken))
		if err != nil {
			return nil, err
		}
		if invited != *facilityID {
			return nil, ErrInvalidInvite
		}
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &appointment.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if role == appointment.RoleFacilityAdmin {
		user.FacilityID = facilityID
	}

	if role == appointment.RoleDoctor {
		specialty := strings.TrimSpace(in.Specialty)
		if specialty == "" {
			specialty = appointment.DefaultSpecialty
		}
		doc := &appointment.Doctor{
			FullName:   fullName,
			Specialty:  specialty,
			FacilityID: facilityID,
		}
		err = s.repo.CreateDoctorAccount(ctx, user, doc)
	} else {
		err = s.repo.CreateUser(ctx, user)
	}
	if err != nil {
		if errors.Is(err, appointment.ErrEmailExists) || errors.Is(err, appointment.ErrFacilityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	telemetry.LoggerFromContext(ctx).Info().
		Str("user_id", user.ID.String()).
		Str("role", string(role)).
		Msg("user registered")

	return s.session(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, appointment.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.session(user)
}

func (s *Service) session(u *appointment.User) (*Session, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token}, nil
}

// Authenticate verifies a bearer token and resolves the acting identity.
func (s *Service) Authenticate(ctx context.Context, token string) (appointment.Actor, error) {
	userID, _, err := s.tokens.Verify(token)
	if err != nil {
		return appointment.Actor{}, err
	}
	return s.ResolveActor(ctx, userID)
}

// ResolveActor loads the user and, for doctors, the linked profile.
func (s *Service) ResolveActor(ctx context.Context, userID uuid.UUID) (appointment.Actor, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, appointment.ErrUserNotFound) {
			return appointment.Actor{}, ErrInvalidToken
		}
		return appointment.Actor{}, fmt.Errorf("load user: %w", err)
	}

	actor := appointment.Actor{
		UserID:     user.ID,
		Role:       user.Role,
		FacilityID: user.FacilityID,
	}

	if user.Role == appointment.RoleDoctor {
		doc, err := s.repo.GetDoctorByUserID(ctx, user.ID)
		if err != nil {
			if errors.Is(err, appointment.ErrDoctorNotFound) {
				return appointment.Actor{}, ErrDoctorProfileMissing
			}
			return appointment.Actor{}, fmt.Errorf("load doctor profile: %w", err)
		}
		doctorID := doc.ID
		actor.DoctorID = &doctorID
		actor.DoctorFacilityID = doc.FacilityID
	}

	return actor, nil
}

// Invite is a signed invitation to register as an admin of FacilityID.
type Invite struct {
	Token      string
	FacilityID uuid.UUID
	ExpiresAt  time.Time
}

// InviteFacilityAdmin lets an admin invite another admin into their own
// facility.
func (s *Service) InviteFacilityAdmin(ctx context.Context, actor appointment.Actor) (*Invite, error) {
	if actor.Role != appointment.RoleFacilityAdmin {
		return nil, appointment.ErrForbidden
	}
	if actor.FacilityID == nil {
		return nil, appointment.ErrNoFacility
	}

	token, expires, err := s.tokens.IssueInvite(*actor.FacilityID, actor.UserID)
	if err != nil {
		return nil, err
	}

	telemetry.LoggerFromContext(ctx).Info().
		Str("facility_id", actor.FacilityID.String()).
		Str("invited_by", actor.UserID.String()).
		Msg("facility admin invite issued")

	return &Invite{Token: token, FacilityID: *actor.FacilityID, ExpiresAt: expires}, nil
}

// Me returns the account behind actor.
func (s *Service) Me(ctx context.Context, actor appointment.Actor) (*appointment.User, error) {
	user, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, appointment.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
