package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-crm/internal/db"
)

const patientColumns = `id, name, email, phone, address, city, document_number,
	uses_medicated_hearing_aids, channel, hearing_loss, notes, lead_id, created_at, updated_at`

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	if conn == nil {
		panic("patient: db required")
	}
	return &PgRepository{db: conn}
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.Address,
		&p.City,
		&p.DocumentNumber,
		&p.UsesMedicatedHearingAids,
		&p.Channel,
		&p.HearingLoss,
		&p.Notes,
		&p.LeadID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Insert writes p using q, which may be a pool or an open transaction.
// A duplicate email surfaces as ErrEmailTaken.
func Insert(ctx context.Context, q db.DBTX, p *Patient) (*Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := q.QueryRow(ctx, `
		INSERT INTO patients (id, name, email, phone, address, city, document_number,
			uses_medicated_hearing_aids, channel, hearing_loss, notes, lead_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+patientColumns,
		p.ID, p.Name, p.Email, p.Phone, p.Address, p.City, p.DocumentNumber,
		p.UsesMedicatedHearingAids, p.Channel, p.HearingLoss, p.Notes, p.LeadID,
	)
	created, err := scanPatient(row)
	if err != nil {
		if db.IsUniqueViolation(err, "patients_email_key") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE email = $1`, strings.ToLower(email))
	return scanPatient(row)
}

func (r *PgRepository) Create(ctx context.Context, p *Patient) (*Patient, error) {
	return Insert(ctx, r.db, p)
}

func (r *PgRepository) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE patients
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    phone = COALESCE($4, phone),
		    address = COALESCE($5, address),
		    city = COALESCE($6, city),
		    document_number = COALESCE($7, document_number),
		    uses_medicated_hearing_aids = COALESCE($8, uses_medicated_hearing_aids),
		    channel = COALESCE($9, channel),
		    hearing_loss = COALESCE($10, hearing_loss),
		    notes = COALESCE($11, notes),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+patientColumns,
		id, in.Name, in.Email, in.Phone, in.Address, in.City, in.DocumentNumber,
		in.UsesMedicatedHearingAids, in.Channel, in.HearingLoss, in.Notes,
	)
	p, err := scanPatient(row)
	if err != nil {
		if db.IsUniqueViolation(err, "patients_email_key") {
			return nil, ErrEmailTaken
		}
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return p, nil
}

const searchClause = `($1 = ''
	OR name ILIKE '%' || $1 || '%'
	OR email ILIKE '%' || $1 || '%'
	OR phone LIKE '%' || $1 || '%'
	OR document_number LIKE '%' || $1 || '%')`

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Patient, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE `+searchClause, f.Search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE `+searchClause+`
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, f.Search, f.Limit, db.Offset(f.Page, f.Limit))
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	result := make([]Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByChannel: map[string]int{}}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE hearing_loss`).Scan(&stats.WithHearingLoss); err != nil {
		return nil, fmt.Errorf("count patients with hearing loss: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT channel, COUNT(*) FROM patients GROUP BY channel`)
	if err != nil {
		return nil, fmt.Errorf("group patients by channel: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ch string
		var n int
		if err := rows.Scan(&ch, &n); err != nil {
			return nil, err
		}
		stats.ByChannel[ch] = n
	}
	return stats, rows.Err()
}
