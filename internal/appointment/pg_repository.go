package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-crm/internal/db"
)

const activeSlotConstraint = "appointments_active_slot_key"

const appointmentColumns = `id, date, time, status, reason, channel, notes, consultation_type,
	patient_id, contact_name, contact_email, contact_phone, rescheduled_to_id, created_by_id,
	created_at, updated_at`

type PgRepository struct {
	pool db.Pool
}

func NewPgRepository(pool db.Pool) *PgRepository {
	if pool == nil {
		panic("appointment: db required")
	}
	return &PgRepository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.Reason,
		&a.Channel,
		&a.Notes,
		&a.ConsultationType,
		&a.PatientID,
		&a.ContactName,
		&a.ContactEmail,
		&a.ContactPhone,
		&a.RescheduledToID,
		&a.CreatedByID,
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

func insertAppointment(ctx context.Context, q db.DBTX, a *Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	row := q.QueryRow(ctx, `
		INSERT INTO appointments (id, date, time, status, reason, channel, notes, consultation_type,
			patient_id, contact_name, contact_email, contact_phone, created_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.Date, a.Time, a.Status, a.Reason, a.Channel, a.Notes, a.ConsultationType,
		a.PatientID, a.ContactName, a.ContactEmail, a.ContactPhone, a.CreatedByID,
	)
	created, err := scanAppointment(row)
	if err != nil {
		if db.IsUniqueViolation(err, activeSlotConstraint) {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check patient: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) BookedTimes(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time
		FROM appointments
		WHERE date = $1 AND status <> $2
		ORDER BY time
	`, date, StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("query booked times: %w", err)
	}
	defer rows.Close()

	booked := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		booked = append(booked, t)
	}
	return booked, rows.Err()
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	return insertAppointment(ctx, r.pool, a)
}

func (r *PgRepository) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET reason = COALESCE($2, reason),
		    channel = COALESCE($3, channel),
		    notes = COALESCE($4, notes),
		    consultation_type = COALESCE($5, consultation_type),
		    contact_name = COALESCE($6, contact_name),
		    contact_email = COALESCE($7, contact_email),
		    contact_phone = COALESCE($8, contact_phone),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, in.Reason, in.Channel, in.Notes, in.ConsultationType,
		in.ContactName, in.ContactEmail, in.ContactPhone,
	)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns,
		id, from, to,
	)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrStatusChanged
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return a, nil
}

func (r *PgRepository) Reschedule(ctx context.Context, id uuid.UUID, from Status, replacement *Appointment) (*Appointment, *Appointment, error) {
	var original, created *Appointment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		created, err = insertAppointment(ctx, tx, replacement)
		if err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $3, rescheduled_to_id = $4, updated_at = now()
			WHERE id = $1 AND status = $2
			RETURNING `+appointmentColumns,
			id, from, StatusRescheduled, created.ID,
		)
		original, err = scanAppointment(row)
		if errors.Is(err, ErrAppointmentNotFound) {
			return ErrStatusChanged
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return original, created, nil
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Appointment, int, error) {
	const where = `WHERE ($1::date IS NULL OR date = $1) AND ($2 = '' OR status = $2)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointments `+where, f.Date, f.Status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		`+where+`
		ORDER BY date ASC, time ASC
		LIMIT $3 OFFSET $4
	`, f.Date, f.Status, f.Limit, db.Offset(f.Page, f.Limit))
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	result := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) RecentForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, time DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent appointments: %w", err)
	}
	defer rows.Close()

	result := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) CountByStatus(ctx context.Context, since *time.Time) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM appointments
		WHERE $1::date IS NULL OR date >= $1
		GROUP BY status
	`, since)
	if err != nil {
		return nil, fmt.Errorf("count appointments by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}
