package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

const DefaultSpecialty = "General"

var (
	ErrFacilityFieldsRequired = apperr.InvalidInput("name, type and address are required")
	ErrInvalidFacilityType    = apperr.InvalidInput("type must be clinic or hospital")
	ErrAdminHasFacility       = apperr.InvalidInput("admin already has a facility")
	ErrAdminWithoutFacility   = apperr.InvalidInput("admin has no facility yet")
	ErrDoctorFieldsRequired   = apperr.InvalidInput("fullName and specialty are required")
	ErrInvalidDoctorType      = apperr.InvalidInput("type must be private or facility")
)

// Directory manages the facility and doctor reference data that scheduling
// reads from.
type Directory struct {
	repo Repository
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

type CreateFacilityInput struct {
	Name    string
	Type    string
	Address string
	Phone   string
}

// CreateFacility creates the acting admin's facility and links the admin to
// it. An admin manages at most one facility.
func (d *Directory) CreateFacility(ctx context.Context, actor Actor, in CreateFacilityInput) (*Facility, error) {
	if actor.Role != RoleFacilityAdmin {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(in.Name)
	address := strings.TrimSpace(in.Address)
	if name == "" || in.Type == "" || address == "" {
		return nil, ErrFacilityFieldsRequired
	}
	ft := FacilityType(strings.ToLower(strings.TrimSpace(in.Type)))
	if ft != FacilityClinic && ft != FacilityHospital {
		return nil, ErrInvalidFacilityType
	}

	admin, err := d.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if admin.FacilityID != nil {
		return nil, ErrAdminHasFacility
	}

	f := &Facility{
		Name:      name,
		Type:      ft,
		Address:   address,
		Phone:     strings.TrimSpace(in.Phone),
		CreatedBy: admin.ID,
	}
	if err := d.repo.CreateFacilityForAdmin(ctx, admin.ID, f); err != nil {
		if errors.Is(err, ErrAdminHasFacility) {
			return nil, err
		}
		return nil, fmt.Errorf("create facility: %w", err)
	}

	return f, nil
}

func (d *Directory) ListFacilities(ctx context.Context) ([]Facility, error) {
	items, err := d.repo.ListFacilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	return items, nil
}

type CreateDoctorInput struct {
	FullName  string
	Specialty string
}

// CreateDoctor adds a doctor profile to the acting admin's facility.
func (d *Directory) CreateDoctor(ctx context.Context, actor Actor, in CreateDoctorInput) (*Doctor, error) {
	if actor.Role != RoleFacilityAdmin {
		return nil, ErrForbidden
	}

	fullName := strings.TrimSpace(in.FullName)
	specialty := strings.TrimSpace(in.Specialty)
	if fullName == "" || specialty == "" {
		return nil, ErrDoctorFieldsRequired
	}
	if actor.FacilityID == nil {
		return nil, ErrAdminWithoutFacility
	}

	facilityID := *actor.FacilityID
	createdBy := actor.UserID
	doc := &Doctor{
		FullName:   fullName,
		Specialty:  specialty,
		FacilityID: &facilityID,
		CreatedBy:  &createdBy,
	}
	if err := d.repo.CreateDoctor(ctx, doc); err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	return doc, nil
}

// ListDoctors lists doctors filtered by kind ("private", "facility" or empty)
// and optionally by facility.
func (d *Directory) ListDoctors(ctx context.Context, kind, facilityID string) ([]Doctor, error) {
	var f DoctorFilter
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "":
	case "private":
		f.PrivateOnly = true
	case "facility":
		f.FacilityOnly = true
	default:
		return nil, ErrInvalidDoctorType
	}

	if facilityID = strings.TrimSpace(facilityID); facilityID != "" {
		id, err := uuid.Parse(facilityID)
		if err != nil {
			return nil, apperr.InvalidInput("invalid facilityId")
		}
		f.FacilityID = &id
	}

	items, err := d.repo.ListDoctors(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return items, nil
}

func (d *Directory) ListFacilityDoctors(ctx context.Context, facilityID uuid.UUID) ([]Doctor, error) {
	items, err := d.repo.ListDoctors(ctx, DoctorFilter{FacilityID: &facilityID})
	if err != nil {
		return nil, fmt.Errorf("list facility doctors: %w", err)
	}
	return items, nil
}

// MyFacilityDoctors lists the doctors of the acting admin's facility.
func (d *Directory) MyFacilityDoctors(ctx context.Context, actor Actor) ([]Doctor, error) {
	if actor.Role != RoleFacilityAdmin {
		return nil, ErrForbidden
	}
	if actor.FacilityID == nil {
		return nil, ErrAdminWithoutFacility
	}
	return d.ListFacilityDoctors(ctx, *actor.FacilityID)
}
