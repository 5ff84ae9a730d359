package appointment

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

func TestDirectory_FacilityAndDoctors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	dir := NewDirectory(repo)

	admin := &User{FullName: "Admin", Email: "admin@example.com", Role: RoleFacilityAdmin}
	require.NoError(t, repo.CreateUser(ctx, admin))
	actor := Actor{UserID: admin.ID, Role: RoleFacilityAdmin}

	_, err := dir.CreateDoctor(ctx, actor, CreateDoctorInput{FullName: "Dr Early", Specialty: "ENT"})
	assert.ErrorIs(t, err, ErrAdminWithoutFacility)

	_, err = dir.CreateFacility(ctx, actor, CreateFacilityInput{Name: "Clinic", Type: "spa", Address: "x"})
	assert.ErrorIs(t, err, ErrInvalidFacilityType)

	_, err = dir.CreateFacility(ctx, actor, CreateFacilityInput{Type: "clinic"})
	assert.ErrorIs(t, err, ErrFacilityFieldsRequired)

	fac, err := dir.CreateFacility(ctx, actor, CreateFacilityInput{Name: "Clinic", Type: "Clinic", Address: "1 Road"})
	require.NoError(t, err)
	assert.Equal(t, FacilityClinic, fac.Type)
	assert.Equal(t, admin.ID, fac.CreatedBy)

	stored, err := repo.GetUserByID(ctx, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FacilityID)
	assert.Equal(t, fac.ID, *stored.FacilityID)

	_, err = dir.CreateFacility(ctx, actor, CreateFacilityInput{Name: "Second", Type: "hospital", Address: "2 Road"})
	assert.ErrorIs(t, err, ErrAdminHasFacility)

	actor.FacilityID = &fac.ID
	docB, err := dir.CreateDoctor(ctx, actor, CreateDoctorInput{FullName: "Dr B", Specialty: "ENT"})
	require.NoError(t, err)
	require.NotNil(t, docB.FacilityID)
	assert.Equal(t, fac.ID, *docB.FacilityID)
	_, err = dir.CreateDoctor(ctx, actor, CreateDoctorInput{FullName: "Dr A", Specialty: "Cardio"})
	require.NoError(t, err)

	private := &Doctor{FullName: "Dr Private", Specialty: "General"}
	require.NoError(t, repo.CreateDoctor(ctx, private))

	mine, err := dir.MyFacilityDoctors(ctx, actor)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Dr A", mine[0].FullName)

	privates, err := dir.ListDoctors(ctx, "private", "")
	require.NoError(t, err)
	require.Len(t, privates, 1)
	assert.Equal(t, private.ID, privates[0].ID)

	affiliated, err := dir.ListDoctors(ctx, "facility", "")
	require.NoError(t, err)
	assert.Len(t, affiliated, 2)

	all, err := dir.ListDoctors(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byFacility, err := dir.ListDoctors(ctx, "", fac.ID.String())
	require.NoError(t, err)
	assert.Len(t, byFacility, 2)

	_, err = dir.ListDoctors(ctx, "", "not-a-uuid")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	_, err = dir.ListDoctors(ctx, "robot", "")
	assert.ErrorIs(t, err, ErrInvalidDoctorType)

	facilities, err := dir.ListFacilities(ctx)
	require.NoError(t, err)
	assert.Len(t, facilities, 1)

	_, err = dir.CreateFacility(ctx, Actor{UserID: uuid.New(), Role: RolePatient}, CreateFacilityInput{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMemoryRepository_DoctorUserLinkIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	userID := uuid.New()

	require.NoError(t, repo.CreateDoctor(ctx, &Doctor{FullName: "One", Specialty: "General", UserID: &userID}))
	err := repo.CreateDoctor(ctx, &Doctor{FullName: "Two", Specialty: "General", UserID: &userID})
	assert.ErrorIs(t, err, ErrDoctorUserLinked)

	d, err := repo.GetDoctorByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "One", d.FullName)
}

func TestMemoryRepository_EmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.CreateUser(ctx, &User{FullName: "A", Email: "a@example.com", Role: RolePatient}))
	err := repo.CreateUser(ctx, &User{FullName: "B", Email: "A@Example.com", Role: RolePatient})
	assert.ErrorIs(t, err, ErrEmailExists)

	u, err := repo.GetUserByEmail(ctx, "A@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "A", u.FullName)
}

func TestDirectory_ConcurrentCreateFacilityLinksOne(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	dir := NewDirectory(repo)

	admin := &User{FullName: "Admin", Email: "admin@example.com", Role: RoleFacilityAdmin}
	require.NoError(t, repo.CreateUser(ctx, admin))
	actor := Actor{UserID: admin.ID, Role: RoleFacilityAdmin}

	const callers = 8
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		created []*Facility
		errs    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			f, err := dir.CreateFacility(ctx, actor, CreateFacilityInput{Name: "Clinic", Type: "clinic", Address: "1 Road"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			created = append(created, f)
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, created, 1)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrAdminHasFacility)
	}

	facilities, err := repo.ListFacilities(ctx)
	require.NoError(t, err)
	require.Len(t, facilities, 1)
	assert.Equal(t, created[0].ID, facilities[0].ID)

	stored, err := repo.GetUserByID(ctx, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FacilityID)
	assert.Equal(t, created[0].ID, *stored.FacilityID)
}

func TestMemoryRepository_CreateFacilityForAdminRejects(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	err := repo.CreateFacilityForAdmin(ctx, uuid.New(), &Facility{Name: "Ghost", Type: FacilityClinic, Address: "x"})
	assert.ErrorIs(t, err, ErrAdminHasFacility)

	existing := uuid.New()
	require.NoError(t, repo.CreateFacility(ctx, &Facility{ID: existing, Name: "First", Type: FacilityClinic, Address: "1 Road"}))
	admin := &User{FullName: "Admin", Email: "admin@example.com", Role: RoleFacilityAdmin, FacilityID: &existing}
	require.NoError(t, repo.CreateUser(ctx, admin))

	err = repo.CreateFacilityForAdmin(ctx, admin.ID, &Facility{Name: "Second", Type: FacilityHospital, Address: "2 Road"})
	assert.ErrorIs(t, err, ErrAdminHasFacility)

	facilities, err := repo.ListFacilities(ctx)
	require.NoError(t, err)
	require.Len(t, facilities, 1)
	assert.Equal(t, "First", facilities[0].Name)
}

func TestMemoryRepository_CreateDoctorAccountStoresBothOrNeither(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	missing := uuid.New()
	u := &User{FullName: "Dr A", Email: "a@example.com", Role: RoleDoctor}
	err := repo.CreateDoctorAccount(ctx, u, &Doctor{FullName: "Dr A", Specialty: "ENT", FacilityID: &missing})
	assert.ErrorIs(t, err, ErrFacilityNotFound)
	_, err = repo.GetUserByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, repo.CreateUser(ctx, &User{FullName: "Taken", Email: "b@example.com", Role: RolePatient}))
	err = repo.CreateDoctorAccount(ctx, &User{FullName: "Dr B", Email: "B@example.com", Role: RoleDoctor}, &Doctor{FullName: "Dr B", Specialty: "ENT"})
	assert.ErrorIs(t, err, ErrEmailExists)
	all, err := repo.ListDoctors(ctx, DoctorFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	u = &User{FullName: "Dr C", Email: "c@example.com", Role: RoleDoctor}
	d := &Doctor{FullName: "Dr C", Specialty: "ENT"}
	require.NoError(t, repo.CreateDoctorAccount(ctx, u, d))
	require.NotNil(t, d.UserID)
	assert.Equal(t, u.ID, *d.UserID)
	linked, err := repo.GetDoctorByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, linked.ID)
}

func TestMemoryRepository_ListDoctorsOrdersSameNameByID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	ids := []uuid.UUID{
		uuid.MustParse("cccccccc-0000-0000-0000-000000000000"),
		uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000"),
		uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000"),
	}
	for _, id := range ids {
		require.NoError(t, repo.CreateDoctor(ctx, &Doctor{ID: id, FullName: "Dr Same", Specialty: "General"}))
	}
	require.NoError(t, repo.CreateDoctor(ctx, &Doctor{FullName: "Dr Alpha", Specialty: "General"}))

	for i := 0; i < 5; i++ {
		got, err := repo.ListDoctors(ctx, DoctorFilter{})
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, "Dr Alpha", got[0].FullName)
		assert.Equal(t, ids[1], got[1].ID)
		assert.Equal(t, ids[2], got[2].ID)
		assert.Equal(t, ids[0], got[3].ID)
	}
}
