package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Unique constraints created by the migrations, mapped to domain conflicts.
const (
	constraintActiveSlot = "appointments_doctor_slot_active_uq"
	constraintUserEmail  = "users_email_uq"
	constraintDoctorUser = "doctors_user_id_uq"
)

const pgUniqueViolation = "23505"

var psql = goqu.Dialect("postgres")

type PgRepository struct {
	pool *pgxpool.Pool
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	_ querier = (*pgxpool.Pool)(nil)
	_ querier = (pgx.Tx)(nil)
)

// inTx runs fn in a transaction committed only when fn succeeds.
func (r *PgRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintActiveSlot:
		return ErrSlotTaken
	case constraintUserEmail:
		return ErrEmailExists
	case constraintDoctorUser:
		return ErrDoctorUserLinked
	}
	return err
}

const userColumns = `id, full_name, email, password_hash, role, facility_id, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.FacilityID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

const facilityColumns = `id, name, type, address, phone, created_by, created_at, updated_at`

func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	var address, phone *string

	err := row.Scan(
		&f.ID,
		&f.Name,
		&f.Type,
		&address,
		&phone,
		&f.CreatedBy,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFacilityNotFound
		}
		return nil, err
	}

	if address != nil {
		f.Address = *address
	}
	if phone != nil {
		f.Phone = *phone
	}
	return &f, nil
}

const doctorColumnList = `id, full_name, specialty, facility_id, user_id, created_by, created_at, updated_at`

var doctorColumns = []any{"id", "full_name", "specialty", "facility_id", "user_id", "created_by", "created_at", "updated_at"}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.FullName,
		&d.Specialty,
		&d.FacilityID,
		&d.UserID,
		&d.CreatedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

const appointmentColumns = `id, patient_id, doctor_id, facility_id, scheduled_at, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.FacilityID,
		&a.ScheduledAt,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var specialty, patientName, patientEmail *string

	err := row.Scan(
		&d.ID,
		&d.PatientID,
		&d.DoctorID,
		&d.FacilityID,
		&d.ScheduledAt,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.DoctorName,
		&specialty,
		&patientName,
		&patientEmail,
		&d.FacilityName,
	)
	if err != nil {
		return nil, err
	}

	if specialty != nil {
		d.DoctorSpecialty = *specialty
	}
	if patientName != nil {
		d.PatientName = *patientName
	}
	if patientEmail != nil {
		d.PatientEmail = *patientEmail
	}
	return &d, nil
}

// Users

func (r *PgRepository) CreateUser(ctx context.Context, u *User) error {
	return insertUser(ctx, r.pool, u)
}

func (r *PgRepository) CreateDoctorAccount(ctx context.Context, u *User, d *Doctor) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		userID := u.ID
		d.UserID = &userID
		d.CreatedBy = &userID
		return insertDoctor(ctx, tx, d)
	})
}

func insertUser(ctx context.Context, q querier, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	row := q.QueryRow(ctx, `
		INSERT INTO users (id, full_name, email, password_hash, role, facility_id, created_at, updated_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, now(), now())
		RETURNING `+userColumns,
		u.ID, u.FullName, u.Email, u.PasswordHash, u.Role, u.FacilityID)

	created, err := scanUser(row)
	if err != nil {
		return mapUniqueViolation(err)
	}
	*u = *created
	return nil
}

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *PgRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email)
	return scanUser(row)
}

// Directory

func (r *PgRepository) CreateFacility(ctx context.Context, f *Facility) error {
	return insertFacility(ctx, r.pool, f)
}

func (r *PgRepository) CreateFacilityForAdmin(ctx context.Context, adminID uuid.UUID, f *Facility) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertFacility(ctx, tx, f); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET facility_id = $2,
			    updated_at = now()
			WHERE id = $1 AND facility_id IS NULL
		`, adminID, f.ID)
		if err != nil {
			return fmt.Errorf("link admin to facility: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAdminHasFacility
		}
		return nil
	})
}

func insertFacility(ctx context.Context, q querier, f *Facility) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	row := q.QueryRow(ctx, `
		INSERT INTO facilities (id, name, type, address, phone, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, now(), now())
		RETURNING `+facilityColumns,
		f.ID, f.Name, f.Type, f.Address, f.Phone, f.CreatedBy)

	created, err := scanFacility(row)
	if err != nil {
		return err
	}
	*f = *created
	return nil
}

func (r *PgRepository) GetFacilityByID(ctx context.Context, id uuid.UUID) (*Facility, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id = $1`, id)
	return scanFacility(row)
}

func (r *PgRepository) ListFacilities(ctx context.Context) ([]Facility, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+facilityColumns+` FROM facilities ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Facility, 0)
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *f)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	return insertDoctor(ctx, r.pool, d)
}

func insertDoctor(ctx context.Context, q querier, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	row := q.QueryRow(ctx, `
		INSERT INTO doctors (id, full_name, specialty, facility_id, user_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+doctorColumnList,
		d.ID, d.FullName, d.Specialty, d.FacilityID, d.UserID, d.CreatedBy)

	created, err := scanDoctor(row)
	if err != nil {
		return mapUniqueViolation(err)
	}
	*d = *created
	return nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorColumnList+` FROM doctors WHERE id = $1`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorColumnList+` FROM doctors WHERE user_id = $1`, userID)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, error) {
	ds := psql.From("doctors").Prepared(true).Select(doctorColumns...)

	switch {
	case f.FacilityID != nil:
		ds = ds.Where(goqu.Ex{"facility_id": *f.FacilityID})
	case f.PrivateOnly:
		ds = ds.Where(goqu.Ex{"facility_id": nil})
	case f.FacilityOnly:
		ds = ds.Where(goqu.C("facility_id").IsNotNull())
	}
	ds = ds.Order(goqu.I("full_name").Asc(), goqu.I("id").Asc())

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list doctors: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Doctor, 0)
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// Appointments

// CreateAppointment relies on appointments_doctor_slot_active_uq, a partial
// unique index over (doctor_id, scheduled_at) for pending and confirmed rows.
func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, facility_id, scheduled_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.DoctorID, a.FacilityID, a.ScheduledAt, a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		return mapUniqueViolation(err)
	}
	*a = *created
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'cancelled'
		RETURNING `+appointmentColumns, id, to)

	return scanAppointment(row)
}

func (r *PgRepository) ListActiveTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scheduled_at
		FROM appointments
		WHERE doctor_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND scheduled_at BETWEEN $2 AND $3
		ORDER BY scheduled_at
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListAppointments(ctx context.Context, q AppointmentQuery) ([]AppointmentDetail, error) {
	query, args, err := buildAppointmentQuery(q).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list appointments: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]AppointmentDetail, 0)
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func buildAppointmentQuery(q AppointmentQuery) *goqu.SelectDataset {
	ds := psql.From(goqu.T("appointments").As("a")).Prepared(true).
		Select(
			"a.id", "a.patient_id", "a.doctor_id", "a.facility_id", "a.scheduled_at",
			"a.status", "a.created_at", "a.updated_at",
			goqu.I("d.full_name"), goqu.I("d.specialty"),
			goqu.I("u.full_name"), goqu.I("u.email"),
			goqu.I("f.name"),
		).
		InnerJoin(goqu.T("doctors").As("d"), goqu.On(goqu.I("d.id").Eq(goqu.I("a.doctor_id")))).
		LeftJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("a.patient_id")))).
		LeftJoin(goqu.T("facilities").As("f"), goqu.On(goqu.I("f.id").Eq(goqu.I("a.facility_id"))))

	if q.PatientID != nil {
		ds = ds.Where(goqu.I("a.patient_id").Eq(*q.PatientID))
	}
	if q.DoctorID != nil {
		ds = ds.Where(goqu.I("a.doctor_id").Eq(*q.DoctorID))
	}
	if q.FacilityScoped {
		if q.FacilityID != nil {
			ds = ds.Where(goqu.I("a.facility_id").Eq(*q.FacilityID))
		} else {
			ds = ds.Where(goqu.I("a.facility_id").IsNull())
		}
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = string(st)
		}
		ds = ds.Where(goqu.I("a.status").In(statuses))
	}
	if q.From != nil {
		ds = ds.Where(goqu.I("a.scheduled_at").Gte(*q.From))
	}
	if q.To != nil {
		ds = ds.Where(goqu.I("a.scheduled_at").Lte(*q.To))
	}
	if q.PastOrCancelled {
		past := goqu.I("a.status").Eq(string(StatusCancelled))
		if q.Before != nil {
			ds = ds.Where(goqu.Or(past, goqu.I("a.scheduled_at").Lt(*q.Before)))
		} else {
			ds = ds.Where(past)
		}
	} else if q.Before != nil {
		ds = ds.Where(goqu.I("a.scheduled_at").Lt(*q.Before))
	}

	if q.Descending {
		ds = ds.Order(goqu.I("a.scheduled_at").Desc(), goqu.I("a.created_at").Asc())
	} else {
		ds = ds.Order(goqu.I("a.scheduled_at").Asc(), goqu.I("a.created_at").Asc())
	}
	return ds
}

// Event logging

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// FetchUnpublished returns up to limit events not yet relayed, oldest first.
func (r *PgRepository) FetchUnpublished(ctx context.Context, limit int) ([]EventLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, appointment_id, payload, created_at, published_at
		FROM event_logs
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EventLog
	for rows.Next() {
		var ev EventLog
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt, &ev.PublishedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func (r *PgRepository) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE event_logs
		SET published_at = now()
		WHERE id = ANY($1) AND published_at IS NULL
	`, ids)
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

