package lead

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-crm/internal/db"
	"github.com/hackgods/clinic-crm/internal/patient"
)

const leadColumns = `id, name, email, phone, address, city, uses_medicated_hearing_aids, channel,
	interest, notes, status, referring_doctor, social_network, offline_campaign, referred_by,
	manual_booking_type, appointment_id, patient_id, created_by_id, created_at, updated_at`

type PgRepository struct {
	pool db.Pool
}

func NewPgRepository(pool db.Pool) *PgRepository {
	if pool == nil {
		panic("lead: db required")
	}
	return &PgRepository{pool: pool}
}

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Email,
		&l.Phone,
		&l.Address,
		&l.City,
		&l.UsesMedicatedHearingAids,
		&l.Channel,
		&l.Interest,
		&l.Notes,
		&l.Status,
		&l.ReferringDoctor,
		&l.SocialNetwork,
		&l.OfflineCampaign,
		&l.ReferredBy,
		&l.ManualBookingType,
		&l.AppointmentID,
		&l.PatientID,
		&l.CreatedByID,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

func (r *PgRepository) Create(ctx context.Context, l *Lead) (*Lead, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (id, name, email, phone, address, city, uses_medicated_hearing_aids, channel,
			interest, notes, status, referring_doctor, social_network, offline_campaign, referred_by,
			manual_booking_type, created_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now(), now())
		RETURNING `+leadColumns,
		l.ID, l.Name, l.Email, l.Phone, l.Address, l.City, l.UsesMedicatedHearingAids, l.Channel,
		l.Interest, l.Notes, l.Status, l.ReferringDoctor, l.SocialNetwork, l.OfflineCampaign, l.ReferredBy,
		l.ManualBookingType, l.CreatedByID,
	)
	created, err := scanLead(row)
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return created, nil
}

func (r *PgRepository) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    phone = COALESCE($4, phone),
		    address = COALESCE($5, address),
		    city = COALESCE($6, city),
		    uses_medicated_hearing_aids = COALESCE($7, uses_medicated_hearing_aids),
		    channel = COALESCE($8, channel),
		    interest = COALESCE($9, interest),
		    notes = COALESCE($10, notes),
		    status = COALESCE($11, status),
		    referring_doctor = COALESCE($12, referring_doctor),
		    social_network = COALESCE($13, social_network),
		    offline_campaign = COALESCE($14, offline_campaign),
		    referred_by = COALESCE($15, referred_by),
		    manual_booking_type = COALESCE($16, manual_booking_type),
		    updated_at = now()
		WHERE id = $1
		  AND ($11::text IS NULL OR status <> 'PACIENTE' OR status = $11)
		RETURNING `+leadColumns,
		id, in.Name, in.Email, in.Phone, in.Address, in.City, in.UsesMedicatedHearingAids, in.Channel,
		in.Interest, in.Notes, in.Status, in.ReferringDoctor, in.SocialNetwork, in.OfflineCampaign,
		in.ReferredBy, in.ManualBookingType,
	)
	return r.unlessFrozen(ctx, id, row)
}

// unlessFrozen scans the result of an UPDATE guarded by status <> 'PACIENTE'.
// No row means the lead is either missing or already a patient.
func (r *PgRepository) unlessFrozen(ctx context.Context, id uuid.UUID, row pgx.Row) (*Lead, error) {
	l, err := scanLead(row)
	if !errors.Is(err, ErrLeadNotFound) {
		return l, err
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check lead: %w", err)
	}
	if exists {
		return nil, ErrLeadFrozen
	}
	return nil, ErrLeadNotFound
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

const listWhere = `WHERE ($1 = '' OR status = $1)
	AND ($2 = ''
		OR name ILIKE '%' || $2 || '%'
		OR email ILIKE '%' || $2 || '%'
		OR phone LIKE '%' || $2 || '%')`

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Lead, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads `+listWhere, f.Status, f.Search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		`+listWhere+`
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, f.Status, f.Search, f.Limit, db.Offset(f.Page, f.Limit))
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	result := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count leads by status: %w", err)
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

func (r *PgRepository) FindDuplicate(ctx context.Context, q DuplicateQuery) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE (($1 <> '' AND lower(email) = lower($1))
		    OR ($2 <> '' AND regexp_replace(phone, '\D', '', 'g') LIKE '%' || $2 || '%'))
		  AND ($3::uuid IS NULL OR id <> $3)
		ORDER BY created_at ASC
		LIMIT 1
	`, q.Email, q.Phone, q.ExcludeID)
	return scanLead(row)
}

func (r *PgRepository) FindByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE appointment_id = $1 LIMIT 1`, appointmentID)
	return scanLead(row)
}

func (r *PgRepository) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET status = $2, updated_at = now()
		WHERE id = $1 AND status <> 'PACIENTE'
		RETURNING `+leadColumns,
		id, status,
	)
	return r.unlessFrozen(ctx, id, row)
}

func (r *PgRepository) LinkAppointment(ctx context.Context, id, appointmentID uuid.UUID) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET appointment_id = $2, status = $3, updated_at = now()
		WHERE id = $1 AND status <> 'PACIENTE'
		RETURNING `+leadColumns,
		id, appointmentID, StatusScheduled,
	)
	return r.unlessFrozen(ctx, id, row)
}

func (r *PgRepository) MoveAppointment(ctx context.Context, from, to uuid.UUID) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET appointment_id = $2, updated_at = now()
		WHERE appointment_id = $1
		RETURNING `+leadColumns,
		from, to,
	)
	return scanLead(row)
}

func (r *PgRepository) ConvertToPatient(ctx context.Context, id uuid.UUID, build PatientBuilder) (*Conversion, error) {
	var conv *Conversion
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		l, err := scanLead(tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if l.PatientID != nil {
			p, err := patient.NewPgRepository(tx).GetByID(ctx, *l.PatientID)
			if err != nil {
				return fmt.Errorf("load converted patient: %w", err)
			}
			conv = &Conversion{Lead: l, Patient: p, AlreadyConverted: true}
			return nil
		}

		p, err := patient.Insert(ctx, tx, build(l))
		if err != nil {
			return err
		}

		updated, err := scanLead(tx.QueryRow(ctx, `
			UPDATE leads SET status = $2, patient_id = $3, updated_at = now()
			WHERE id = $1
			RETURNING `+leadColumns,
			id, StatusPatient, p.ID,
		))
		if err != nil {
			return fmt.Errorf("mark lead converted: %w", err)
		}
		conv = &Conversion{Lead: updated, Patient: p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}
