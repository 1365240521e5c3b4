package lead

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/apperr"
	"github.com/hackgods/clinic-crm/internal/patient"
)

var (
	ErrLeadNotFound    = apperr.NotFound("lead_not_found", "lead not found")
	ErrInvalidStatus   = apperr.Validation("invalid_status", "unknown lead status")
	ErrLeadFrozen      = apperr.Conflict("lead_is_patient", "the lead is already a patient and its status cannot change")
	ErrConvertRequired = apperr.Validation("convert_required", "use convert-to-patient to make a lead a patient")
	ErrNoDuplicateKeys = apperr.Validation("duplicate_query_empty", "provide an email or a phone")
)

// PatientBuilder derives the patient record from the lead being converted.
type PatientBuilder func(l *Lead) *patient.Patient

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Lead, error)
	Create(ctx context.Context, l *Lead) (*Lead, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]Lead, int, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	// FindDuplicate returns the first lead matching the email or containing
	// the phone digits, or ErrLeadNotFound.
	FindDuplicate(ctx context.Context, q DuplicateQuery) (*Lead, error)
	FindByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Lead, error)
	// SetStatus and LinkAppointment refuse PACIENTE leads with ErrLeadFrozen,
	// as does Update when it carries a status.
	SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Lead, error)
	// LinkAppointment points the lead at appointmentID and marks it AGENDADO.
	LinkAppointment(ctx context.Context, id, appointmentID uuid.UUID) (*Lead, error)
	// MoveAppointment repoints the lead linked to from at its replacement to,
	// leaving the status alone. ErrLeadNotFound when no lead is linked.
	MoveAppointment(ctx context.Context, from, to uuid.UUID) (*Lead, error)
	// ConvertToPatient creates the patient built from the lead and marks the
	// lead PACIENTE as one unit. A lead that already has a patient is
	// returned with that patient and nothing is written.
	ConvertToPatient(ctx context.Context, id uuid.UUID, build PatientBuilder) (*Conversion, error)
}
