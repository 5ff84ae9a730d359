package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/appointment"
)

func newTestService() (*Service, *appointment.MemoryRepository) {
	repo := appointment.NewMemoryRepository()
	return NewService(repo, NewTokens("test-secret", time.Hour)), repo
}

func TestRegisterAndLogin_Patient(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	sess, err := svc.Register(ctx, RegisterInput{FullName: " Ana ", Email: " Ana@Example.COM ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", sess.User.Email)
	assert.Equal(t, "Ana", sess.User.FullName)
	assert.Equal(t, appointment.RolePatient, sess.User.Role)
	assert.NotEmpty(t, sess.Token)

	actor, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, actor.UserID)
	assert.Nil(t, actor.DoctorID)

	login, err := svc.Login(ctx, "ANA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "ana@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(ctx, RegisterInput{FullName: "Ana2", Email: "ana@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, appointment.ErrEmailExists)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	cases := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"missing fields", RegisterInput{Email: "a@b.co"}, ErrRegisterFieldsRequired},
		{"bad email", RegisterInput{FullName: "A", Email: "nope", Password: "secret1"}, ErrInvalidEmail},
		{"short password", RegisterInput{FullName: "A", Email: "a@b.co", Password: "12345"}, ErrPasswordTooShort},
		{"bad role", RegisterInput{FullName: "A", Email: "a@b.co", Password: "secret1", Role: "nurse"}, ErrInvalidRole},
		{"bad facility", RegisterInput{FullName: "A", Email: "a@b.co", Password: "secret1", Role: "doctor", FacilityID: "x"}, ErrInvalidFacilityID},
		{"unknown facility", RegisterInput{FullName: "A", Email: "a@b.co", Password: "secret1", Role: "doctor", FacilityID: uuid.NewString()}, appointment.ErrFacilityNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRegister_DoctorGetsProfile(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	sess, err := svc.Register(ctx, RegisterInput{FullName: "Dr Who", Email: "who@example.com", Password: "tardis", Role: "doctor"})
	require.NoError(t, err)

	doc, err := repo.GetDoctorByUserID(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.DefaultSpecialty, doc.Specialty)
	assert.True(t, doc.Private())

	actor, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	require.NotNil(t, actor.DoctorID)
	assert.Equal(t, doc.ID, *actor.DoctorID)
	assert.Nil(t, actor.DoctorFacilityID)
}

func TestResolveActor_DoctorWithoutProfile(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	u := &appointment.User{FullName: "Orphan", Email: "orphan@example.com", Role: appointment.RoleDoctor}
	require.NoError(t, repo.CreateUser(ctx, u))

	_, err := svc.ResolveActor(ctx, u.ID)
	assert.ErrorIs(t, err, ErrDoctorProfileMissing)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.ResolveActor(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRegister_DoctorAccountIsAtomic(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	fac := &appointment.Facility{Name: "Clinic", Type: appointment.FacilityClinic, Address: "1 Road", CreatedBy: uuid.New()}
	require.NoError(t, repo.CreateFacility(ctx, fac))

	sess, err := svc.Register(ctx, RegisterInput{FullName: "Dr A", Email: "a@example.com", Password: "secret1", Role: "doctor", FacilityID: fac.ID.String()})
	require.NoError(t, err)
	doc, err := repo.GetDoctorByUserID(ctx, sess.User.ID)
	require.NoError(t, err)
	require.NotNil(t, doc.FacilityID)
	assert.Equal(t, fac.ID, *doc.FacilityID)

	// A failing profile insert must not leave a doctor login behind.
	u := &appointment.User{FullName: "Dr B", Email: "b@example.com", Role: appointment.RoleDoctor}
	missing := uuid.New()
	err = repo.CreateDoctorAccount(ctx, u, &appointment.Doctor{FullName: "Dr B", Specialty: "ENT", FacilityID: &missing})
	assert.ErrorIs(t, err, appointment.ErrFacilityNotFound)
	_, err = repo.GetUserByEmail(ctx, "b@example.com")
	assert.ErrorIs(t, err, appointment.ErrUserNotFound)

	_, err = svc.Login(ctx, "b@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_FacilityAdminNeedsInvite(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	owner, err := svc.Register(ctx, RegisterInput{FullName: "Owner", Email: "owner@example.com", Password: "secret1", Role: "admin_facility"})
	require.NoError(t, err)
	assert.Nil(t, owner.User.FacilityID)

	dir := appointment.NewDirectory(repo)
	ownerActor := appointment.Actor{UserID: owner.User.ID, Role: appointment.RoleFacilityAdmin}
	fac, err := dir.CreateFacility(ctx, ownerActor, appointment.CreateFacilityInput{Name: "Clinic", Type: "clinic", Address: "1 Road"})
	require.NoError(t, err)
	other, err := dir.CreateFacility(ctx, appointment.Actor{UserID: mustAdmin(t, svc, "other@example.com"), Role: appointment.RoleFacilityAdmin},
		appointment.CreateFacilityInput{Name: "Other", Type: "hospital", Address: "2 Road"})
	require.NoError(t, err)

	join := RegisterInput{FullName: "Joiner", Email: "joiner@example.com", Password: "secret1", Role: "admin_facility", FacilityID: fac.ID.String()}

	_, err = svc.Register(ctx, join)
	assert.ErrorIs(t, err, ErrInviteRequired)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	join.InviteToken = "not.a.token"
	_, err = svc.Register(ctx, join)
	assert.ErrorIs(t, err, ErrInvalidInvite)

	ownerActor.FacilityID = &fac.ID
	otherInvite, err := svc.InviteFacilityAdmin(ctx, appointment.Actor{UserID: other.CreatedBy, Role: appointment.RoleFacilityAdmin, FacilityID: &other.ID})
	require.NoError(t, err)
	join.InviteToken = otherInvite.Token
	_, err = svc.Register(ctx, join)
	assert.ErrorIs(t, err, ErrInvalidInvite)

	invite, err := svc.InviteFacilityAdmin(ctx, ownerActor)
	require.NoError(t, err)
	assert.Equal(t, fac.ID, invite.FacilityID)
	join.InviteToken = invite.Token
	sess, err := svc.Register(ctx, join)
	require.NoError(t, err)
	require.NotNil(t, sess.User.FacilityID)
	assert.Equal(t, fac.ID, *sess.User.FacilityID)

	_, err = repo.GetUserByEmail(ctx, "joiner@example.com")
	require.NoError(t, err)
}

func TestInviteFacilityAdmin_Rejects(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	facilityID := uuid.New()

	_, err := svc.InviteFacilityAdmin(ctx, appointment.Actor{UserID: uuid.New(), Role: appointment.RoleDoctor, FacilityID: &facilityID})
	assert.ErrorIs(t, err, appointment.ErrForbidden)

	_, err = svc.InviteFacilityAdmin(ctx, appointment.Actor{UserID: uuid.New(), Role: appointment.RoleFacilityAdmin})
	assert.ErrorIs(t, err, appointment.ErrNoFacility)
}

func mustAdmin(t *testing.T, svc *Service, email string) uuid.UUID {
	t.Helper()
	sess, err := svc.Register(context.Background(), RegisterInput{FullName: "Admin", Email: email, Password: "secret1", Role: "admin_facility"})
	require.NoError(t, err)
	return sess.User.ID
}
