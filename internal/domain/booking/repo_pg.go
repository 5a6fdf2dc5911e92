package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ conn queryable }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{conn: pool}
}

const apptSelect = `SELECT a.id, a.patient_id, p.full_name,
	a.exam_id, a.exam_name, a.exam_requires_preparation, a.exam_preparation_instructions,
	a.facility_id, a.facility_name, a.date_time, a.status, a.preparation_acknowledged,
	a.created_at, a.updated_at
	FROM appointments a JOIN patients p ON p.id = a.patient_id`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.Patient.ID, &a.Patient.FullName,
		&a.Exam.ID, &a.Exam.Name, &a.Exam.RequiresPreparation, &a.Exam.PreparationInstructions,
		&a.Facility.ID, &a.Facility.Name, &a.DateTime, &status, &a.PreparationAcknowledged,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, exam_id, exam_name, exam_requires_preparation,
			exam_preparation_instructions, facility_id, facility_name, date_time, status,
			preparation_acknowledged)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at, updated_at`,
		a.Patient.ID, a.Exam.ID, a.Exam.Name, a.Exam.RequiresPreparation,
		a.Exam.PreparationInstructions, a.Facility.ID, a.Facility.Name, a.DateTime,
		string(a.Status), a.PreparationAcknowledged,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrSlotTaken
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	a, err := r.scanAppointment(r.conn.QueryRow(ctx, apptSelect+` WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	return a, err
}

func (r *appointmentRepoPG) List(ctx context.Context, status Status, limit, offset int) ([]*Appointment, int, error) {
	query := apptSelect + ` WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointments a WHERE 1=1`
	var args []interface{}
	idx := 1

	if status != "" {
		query += fmt.Sprintf(` AND a.status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, string(status))
		idx++
	}

	var total int
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY a.date_time, a.id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	items, err := r.collect(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *appointmentRepoPG) ListScheduled(ctx context.Context, facilityID int64, from, to time.Time) ([]*Appointment, error) {
	return r.collect(ctx, apptSelect+`
		WHERE a.facility_id = $1 AND a.status = $2 AND a.date_time >= $3 AND a.date_time < $4
		ORDER BY a.date_time`,
		facilityID, string(StatusScheduled), from, to)
}

func (r *appointmentRepoPG) Cancel(ctx context.Context, id int64, now time.Time) (*Appointment, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE appointments SET status = $2, updated_at = $4
		WHERE id = $1 AND status = $3 AND date_time > $4`,
		id, string(StatusCancelled), string(StatusScheduled), now)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: status %s", ErrNotCancellable, a.Status)
	}
	return a, nil
}

func (r *appointmentRepoPG) collect(ctx context.Context, query string, args ...interface{}) ([]*Appointment, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// =========== Patient Repository ===========

type patientRepoPG struct{ conn queryable }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{conn: pool}
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn.QueryRow(ctx, `
		INSERT INTO patients (full_name, tax_id, birth_date, phone, email)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at`,
		p.FullName, p.TaxID, p.BirthDate, p.Phone, p.Email,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := r.conn.QueryRow(ctx, `
		SELECT id, full_name, tax_id, birth_date, phone, email, created_at
		FROM patients WHERE id = $1`, id,
	).Scan(&p.ID, &p.FullName, &p.TaxID, &p.BirthDate, &p.Phone, &p.Email, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
