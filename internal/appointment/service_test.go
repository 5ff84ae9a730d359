package appointment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/config"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

type fixture struct {
	repo *MemoryRepository
	svc  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := NewMemoryRepository()
	return &fixture{
		repo: repo,
		svc:  NewService(repo, nil, config.Config{Location: time.UTC}),
	}
}

func (f *fixture) patient(t *testing.T, name string) *User {
	t.Helper()
	u := &User{FullName: name, Email: name + "@example.com", Role: RolePatient}
	require.NoError(t, f.repo.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) facility(t *testing.T, name string) *Facility {
	t.Helper()
	fac := &Facility{Name: name, Type: FacilityClinic, Address: "1 Main St", CreatedBy: uuid.New()}
	require.NoError(t, f.repo.CreateFacility(context.Background(), fac))
	return fac
}

func (f *fixture) doctor(t *testing.T, name string, facilityID *uuid.UUID) *Doctor {
	t.Helper()
	userID := uuid.New()
	d := &Doctor{FullName: name, Specialty: "General", FacilityID: facilityID, UserID: &userID}
	require.NoError(t, f.repo.CreateDoctor(context.Background(), d))
	return d
}

func doctorActor(d *Doctor) Actor {
	id := d.ID
	return Actor{UserID: *d.UserID, Role: RoleDoctor, DoctorID: &id, DoctorFacilityID: d.FacilityID}
}

func adminActor(facilityID *uuid.UUID) Actor {
	return Actor{UserID: uuid.New(), Role: RoleFacilityAdmin, FacilityID: facilityID}
}

func TestBookingLifecycle_PrivateDoctor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.doctor(t, "Dr Private", nil)
	a := f.patient(t, "alice")
	b := f.patient(t, "bob")

	apptA, err := f.svc.CreateAppointment(ctx, a.ID, doc.ID, "2025-06-10T09:00:00")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, apptA.Status)
	assert.Nil(t, apptA.FacilityID)
	assert.Equal(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), apptA.ScheduledAt)

	_, err = f.svc.CreateAppointment(ctx, b.ID, doc.ID, "2025-06-10T09:00:00")
	require.ErrorIs(t, err, ErrSlotTaken)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	av, err := f.svc.Availability(ctx, doc.ID, "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, av.Booked)
	assert.Len(t, av.Available, 15)
	assert.Equal(t, "09:30", av.Available[0])
	assert.Equal(t, "16:30", av.Available[14])
	assert.Equal(t, 30, av.SlotMinutes)
	assert.Equal(t, "09:00", av.WorkStart)
	assert.Equal(t, "17:00", av.WorkEnd)

	actor := doctorActor(doc)

	confirmed, err := f.svc.UpdateStatus(ctx, actor, apptA.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	again, err := f.svc.UpdateStatus(ctx, actor, apptA.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, again.Status)

	cancelled, err := f.svc.UpdateStatus(ctx, actor, apptA.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = f.svc.UpdateStatus(ctx, actor, apptA.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	_, err = f.svc.UpdateStatus(ctx, actor, apptA.ID, StatusConfirmed)
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	apptB, err := f.svc.CreateAppointment(ctx, b.ID, doc.ID, "2025-06-10T09:00:00")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, apptB.Status)

	av, err = f.svc.Availability(ctx, doc.ID, "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, av.Booked)
}

func TestCreateAppointment_FacilityComesFromDoctor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fac := f.facility(t, "North Clinic")
	doc := f.doctor(t, "Dr Facility", &fac.ID)
	p := f.patient(t, "carol")

	appt, err := f.svc.CreateAppointment(ctx, p.ID, doc.ID, "2025-06-10T10:30")
	require.NoError(t, err)
	require.NotNil(t, appt.FacilityID)
	assert.Equal(t, fac.ID, *appt.FacilityID)
}

func TestCreateAppointment_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.doctor(t, "Dr Err", nil)
	p := f.patient(t, "dave")

	_, err := f.svc.CreateAppointment(ctx, p.ID, uuid.New(), "2025-06-10T09:00:00")
	assert.ErrorIs(t, err, ErrDoctorNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	for _, in := range []string{"", "tomorrow", "2025-13-40T09:00"} {
		_, err = f.svc.CreateAppointment(ctx, p.ID, doc.ID, in)
		assert.ErrorIs(t, err, ErrInvalidDateTime, in)
	}
}

func TestCreateAppointment_OffsetConvertedToWallClock(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo, nil, config.Config{Location: time.FixedZone("UTC+2", 2*3600)})
	f := &fixture{repo: repo, svc: svc}
	doc := f.doctor(t, "Dr Zone", nil)
	p := f.patient(t, "erin")

	appt, err := svc.CreateAppointment(ctx, p.ID, doc.ID, "2025-06-10T07:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), appt.ScheduledAt)

	av, err := svc.Availability(ctx, doc.ID, "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, av.Booked)
}

func TestCreateAppointment_ConcurrentSameSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.doctor(t, "Dr Busy", nil)

	const n = 25
	patients := make([]*User, n)
	for i := range patients {
		patients[i] = f.patient(t, fmt.Sprintf("p%d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		success   int
		conflicts int
	)
	start := make(chan struct{})
	for _, p := range patients {
		wg.Add(1)
		go func(patientID uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateAppointment(ctx, patientID, doc.ID, "2025-06-10T11:00:00")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case apperr.KindOf(err) == apperr.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(p.ID)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, n-1, conflicts)
}

func TestCreateAppointment_DifferentSlotsBothSucceed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.doctor(t, "Dr Two", nil)
	p := f.patient(t, "frank")

	_, err := f.svc.CreateAppointment(ctx, p.ID, doc.ID, "2025-06-10T09:00")
	require.NoError(t, err)
	_, err = f.svc.CreateAppointment(ctx, p.ID, doc.ID, "2025-06-10T09:30")
	require.NoError(t, err)

	other := f.doctor(t, "Dr Other", nil)
	_, err = f.svc.CreateAppointment(ctx, p.ID, other.ID, "2025-06-10T09:00")
	require.NoError(t, err)
}

type stubLocker struct {
	err error
}

func (l stubLocker) WithSlotLock(_ context.Context, _ uuid.UUID, _ time.Time, _ func(ctx context.Context) error) error {
	return l.err
}

// releasingLocker reports the lock as held for the first busy attempts and
// then runs fn as if the holder had released it.
type releasingLocker struct {
	mu       sync.Mutex
	busy     int
	attempts int
}

func (l *releasingLocker) WithSlotLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.attempts++
	held := l.attempts <= l.busy
	l.mu.Unlock()
	if held {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

func TestCreateAppointment_LockOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("lock held past the wait is busy, not a conflict", func(t *testing.T) {
		repo := NewMemoryRepository()
		svc := NewService(repo, stubLocker{err: redisclient.ErrLockNotAcquired}, config.Config{}).
			WithLockWait(120 * time.Millisecond)
		f := &fixture{repo: repo, svc: svc}
		doc := f.doctor(t, "Dr Lock", nil)

		start := time.Now()
		_, err := svc.CreateAppointment(ctx, uuid.New(), doc.ID, "2025-06-10T09:00")
		require.ErrorIs(t, err, ErrSlotBusy)
		assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
		assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)

		av, err := svc.Availability(ctx, doc.ID, "2025-06-10")
		require.NoError(t, err)
		assert.Contains(t, av.Available, "09:00")
	})

	t.Run("waiter books the slot when the holder fails", func(t *testing.T) {
		repo := NewMemoryRepository()
		locker := &releasingLocker{busy: 2}
		svc := NewService(repo, locker, config.Config{}).WithLockWait(time.Second)
		f := &fixture{repo: repo, svc: svc}
		doc := f.doctor(t, "Dr Retry", nil)

		appt, err := svc.CreateAppointment(ctx, uuid.New(), doc.ID, "2025-06-10T09:00")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, appt.Status)
		assert.Equal(t, 3, locker.attempts)
	})

	t.Run("waiter gets a conflict when the holder booked", func(t *testing.T) {
		repo := NewMemoryRepository()
		locker := &releasingLocker{busy: 1}
		svc := NewService(repo, locker, config.Config{}).WithLockWait(time.Second)
		f := &fixture{repo: repo, svc: svc}
		doc := f.doctor(t, "Dr Holder", nil)

		require.NoError(t, repo.CreateAppointment(ctx, &Appointment{
			PatientID:   uuid.New(),
			DoctorID:    doc.ID,
			ScheduledAt: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
			Status:      StatusPending,
		}))

		_, err := svc.CreateAppointment(ctx, uuid.New(), doc.ID, "2025-06-10T09:00")
		require.ErrorIs(t, err, ErrSlotTaken)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("unavailable lock falls back to the store", func(t *testing.T) {
		repo := NewMemoryRepository()
		lockErr := fmt.Errorf("%w: %v", redisclient.ErrLockUnavailable, errors.New("dial tcp: refused"))
		svc := NewService(repo, stubLocker{err: lockErr}, config.Config{})
		f := &fixture{repo: repo, svc: svc}
		doc := f.doctor(t, "Dr Fallback", nil)

		appt, err := svc.CreateAppointment(ctx, uuid.New(), doc.ID, "2025-06-10T09:00")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, appt.Status)

		_, err = svc.CreateAppointment(ctx, uuid.New(), doc.ID, "2025-06-10T09:00")
		require.ErrorIs(t, err, ErrSlotTaken)
	})
}

func TestUpdateStatus_Scoping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	facA := f.facility(t, "A")
	facB := f.facility(t, "B")
	docA := f.doctor(t, "Dr A", &facA.ID)
	docPrivate := f.doctor(t, "Dr P", nil)
	p := f.patient(t, "gina")

	apptA, err := f.svc.CreateAppointment(ctx, p.ID, docA.ID, "2025-06-10T09:00")
	require.NoError(t, err)
	apptP, err := f.svc.CreateAppointment(ctx, p.ID, docPrivate.ID, "2025-06-10T09:00")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, adminActor(&facB.ID), apptA.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.UpdateStatus(ctx, adminActor(nil), apptA.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.UpdateStatus(ctx, adminActor(&facA.ID), apptP.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.UpdateStatus(ctx, doctorActor(docPrivate), apptA.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrNotYourAppointment)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.svc.UpdateStatus(ctx, Actor{UserID: p.ID, Role: RolePatient}, apptA.ID, StatusCancelled)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.svc.UpdateStatus(ctx, adminActor(&facA.ID), apptA.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)

	updated, err = f.svc.UpdateStatus(ctx, doctorActor(docA), apptA.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
}

func TestUpdateStatus_InvalidInputs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.doctor(t, "Dr X", nil)

	_, err := f.svc.UpdateStatus(ctx, doctorActor(doc), uuid.New(), StatusPending)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(ctx, doctorActor(doc), uuid.New(), StatusConfirmed)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = ParseStatus("done")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	st, err := ParseStatus("cancelled")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, st)
}

func TestEventsAreLogged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.doctor(t, "Dr Ev", nil)
	p := f.patient(t, "hank")

	appt, err := f.svc.CreateAppointment(ctx, p.ID, doc.ID, "2025-06-10T09:00")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, doctorActor(doc), appt.ID, StatusConfirmed)
	require.NoError(t, err)

	events := f.repo.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventAppointmentCreated, events[0].EventType)
	assert.Equal(t, EventAppointmentStatusChanged, events[1].EventType)
	assert.Equal(t, appt.ID, *events[1].AppointmentID)
	assert.JSONEq(t, fmt.Sprintf(`{"from":"pending","to":"confirmed","actor_id":%q,"role":"doctor"}`, doctorActor(doc).UserID), string(events[1].Payload))
}

func TestAvailability_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.doctor(t, "Dr Av", nil)

	_, err := f.svc.Availability(ctx, doc.ID, "10/06/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = f.svc.Availability(ctx, uuid.New(), "2025-06-10")
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	av, err := f.svc.Availability(ctx, doc.ID, "2025-06-11")
	require.NoError(t, err)
	assert.Empty(t, av.Booked)
	assert.Len(t, av.Available, 16)

	_, err = f.svc.DoctorAvailability(ctx, Actor{Role: RolePatient}, "2025-06-11")
	assert.ErrorIs(t, err, ErrForbidden)

	own, err := f.svc.DoctorAvailability(ctx, doctorActor(doc), "2025-06-11")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, own.DoctorID)
}

func TestAvailability_OffGridBookingDoesNotHideSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.doctor(t, "Dr Grid", nil)

	_, err := f.svc.CreateAppointment(ctx, uuid.New(), doc.ID, "2025-06-10T09:15")
	require.NoError(t, err)

	av, err := f.svc.Availability(ctx, doc.ID, "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:15"}, av.Booked)
	assert.Len(t, av.Available, 16)
}
