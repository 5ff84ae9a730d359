package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type slotKey struct {
	doctorID uuid.UUID
	at       time.Time
}

// MemoryRepository is a Repository kept in process memory. It enforces the
// same active-slot uniqueness as the Postgres schema and is used by tests and
// by the api-server when STORE_DRIVER=memory.
type MemoryRepository struct {
	mu sync.RWMutex

	users        map[uuid.UUID]User
	emails       map[string]uuid.UUID
	facilities   map[uuid.UUID]Facility
	doctors      map[uuid.UUID]Doctor
	doctorByUser map[uuid.UUID]uuid.UUID
	appointments map[uuid.UUID]Appointment
	activeSlots  map[slotKey]uuid.UUID
	events       []EventLog
	nextEventID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[uuid.UUID]User),
		emails:       make(map[string]uuid.UUID),
		facilities:   make(map[uuid.UUID]Facility),
		doctors:      make(map[uuid.UUID]Doctor),
		doctorByUser: make(map[uuid.UUID]uuid.UUID),
		appointments: make(map[uuid.UUID]Appointment),
		activeSlots:  make(map[slotKey]uuid.UUID),
	}
}

func keyOf(doctorID uuid.UUID, at time.Time) slotKey {
	return slotKey{doctorID: doctorID, at: at.UTC()}
}

// Users

func (r *MemoryRepository) CreateUser(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUser(u); err != nil {
		return err
	}
	r.putUser(u)
	return nil
}

func (r *MemoryRepository) CreateDoctorAccount(_ context.Context, u *User, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUser(u); err != nil {
		return err
	}
	if err := r.checkDoctor(d); err != nil {
		return err
	}

	r.putUser(u)
	userID := u.ID
	d.UserID = &userID
	d.CreatedBy = &userID
	r.putDoctor(d)
	return nil
}

func (r *MemoryRepository) checkUser(u *User) error {
	if _, ok := r.emails[strings.ToLower(u.Email)]; ok {
		return ErrEmailExists
	}
	if u.FacilityID != nil {
		if _, ok := r.facilities[*u.FacilityID]; !ok {
			return ErrFacilityNotFound
		}
	}
	return nil
}

func (r *MemoryRepository) putUser(u *User) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = strings.ToLower(u.Email)
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	r.users[u.ID] = *u
	r.emails[u.Email] = u.ID
}

func (r *MemoryRepository) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := r.users[id]
	return &u, nil
}

// Directory

func (r *MemoryRepository) CreateFacility(_ context.Context, f *Facility) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.putFacility(f)
	return nil
}

func (r *MemoryRepository) CreateFacilityForAdmin(_ context.Context, adminID uuid.UUID, f *Facility) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	admin, ok := r.users[adminID]
	if !ok || admin.FacilityID != nil {
		return ErrAdminHasFacility
	}

	r.putFacility(f)
	fid := f.ID
	admin.FacilityID = &fid
	admin.UpdatedAt = f.CreatedAt
	r.users[adminID] = admin
	return nil
}

func (r *MemoryRepository) putFacility(f *Facility) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	r.facilities[f.ID] = *f
}

func (r *MemoryRepository) GetFacilityByID(_ context.Context, id uuid.UUID) (*Facility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.facilities[id]
	if !ok {
		return nil, ErrFacilityNotFound
	}
	return &f, nil
}

func (r *MemoryRepository) ListFacilities(_ context.Context) ([]Facility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Facility, 0, len(r.facilities))
	for _, f := range r.facilities {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) CreateDoctor(_ context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkDoctor(d); err != nil {
		return err
	}
	r.putDoctor(d)
	return nil
}

// checkDoctor mirrors the doctors table constraints.
func (r *MemoryRepository) checkDoctor(d *Doctor) error {
	if d.UserID != nil {
		if _, ok := r.doctorByUser[*d.UserID]; ok {
			return ErrDoctorUserLinked
		}
	}
	if d.FacilityID != nil {
		if _, ok := r.facilities[*d.FacilityID]; !ok {
			return ErrFacilityNotFound
		}
	}
	return nil
}

func (r *MemoryRepository) putDoctor(d *Doctor) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	r.doctors[d.ID] = *d
	if d.UserID != nil {
		r.doctorByUser[*d.UserID] = d.ID
	}
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) GetDoctorByUserID(_ context.Context, userID uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.doctorByUser[userID]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	d := r.doctors[id]
	return &d, nil
}

func (r *MemoryRepository) ListDoctors(_ context.Context, f DoctorFilter) ([]Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Doctor, 0)
	for _, d := range r.doctors {
		switch {
		case f.PrivateOnly && d.FacilityID != nil:
			continue
		case f.FacilityOnly && d.FacilityID == nil:
			continue
		case f.FacilityID != nil && !sameID(d.FacilityID, f.FacilityID):
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName == out[j].FullName {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}

// Appointments

func (r *MemoryRepository) CreateAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status.Active() {
		k := keyOf(a.DoctorID, a.ScheduledAt)
		if _, taken := r.activeSlots[k]; taken {
			return ErrSlotTaken
		}
		r.activeSlots[k] = a.ID
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status == StatusCancelled {
		return nil, ErrAppointmentNotFound
	}

	if !to.Active() {
		k := keyOf(a.DoctorID, a.ScheduledAt)
		if r.activeSlots[k] == a.ID {
			delete(r.activeSlots, k)
		}
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) ListActiveTimes(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []time.Time
	for _, a := range r.appointments {
		if a.DoctorID != doctorID || !a.Status.Active() {
			continue
		}
		if a.ScheduledAt.Before(from) || a.ScheduledAt.After(to) {
			continue
		}
		out = append(out, a.ScheduledAt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, q AppointmentQuery) ([]AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AppointmentDetail, 0)
	for _, a := range r.appointments {
		if !q.matches(a) {
			continue
		}
		out = append(out, r.hydrate(a))
	}

	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].ScheduledAt, out[j].ScheduledAt
		if ai.Equal(aj) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if q.Descending {
			return ai.After(aj)
		}
		return ai.Before(aj)
	})
	return out, nil
}

func (q AppointmentQuery) matches(a Appointment) bool {
	if q.PatientID != nil && a.PatientID != *q.PatientID {
		return false
	}
	if q.DoctorID != nil && a.DoctorID != *q.DoctorID {
		return false
	}
	if q.FacilityScoped && !sameID(a.FacilityID, q.FacilityID) {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, st := range q.Statuses {
			if a.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.From != nil && a.ScheduledAt.Before(*q.From) {
		return false
	}
	if q.To != nil && a.ScheduledAt.After(*q.To) {
		return false
	}
	if q.PastOrCancelled {
		past := q.Before != nil && a.ScheduledAt.Before(*q.Before)
		if a.Status != StatusCancelled && !past {
			return false
		}
	} else if q.Before != nil && !a.ScheduledAt.Before(*q.Before) {
		return false
	}
	return true
}

func (r *MemoryRepository) hydrate(a Appointment) AppointmentDetail {
	d := AppointmentDetail{Appointment: a}
	if doc, ok := r.doctors[a.DoctorID]; ok {
		d.DoctorName = doc.FullName
		d.DoctorSpecialty = doc.Specialty
	}
	if p, ok := r.users[a.PatientID]; ok {
		d.PatientName = p.FullName
		d.PatientEmail = p.Email
	}
	if a.FacilityID != nil {
		if f, ok := r.facilities[*a.FacilityID]; ok {
			name := f.Name
			d.FacilityName = &name
		}
	}
	return d
}

// Event logging

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	ev.ID = r.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	r.events = append(r.events, ev)
	return nil
}

// FetchUnpublished returns up to limit events not yet relayed, oldest first.
func (r *MemoryRepository) FetchUnpublished(_ context.Context, limit int) ([]EventLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []EventLog
	for _, ev := range r.events {
		if ev.PublishedAt != nil {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) MarkPublished(_ context.Context, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	now := time.Now().UTC()
	for i := range r.events {
		if _, ok := want[r.events[i].ID]; ok && r.events[i].PublishedAt == nil {
			r.events[i].PublishedAt = &now
		}
	}
	return nil
}

// Events returns a copy of every logged event in insertion order.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}
