package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/apperr"
)

var (
	ErrPatientNotFound = apperr.NotFound("patient_not_found", "patient not found")
	ErrEmailTaken      = apperr.Conflict("patient_email_taken", "a patient with that email already exists")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByEmail(ctx context.Context, email string) (*Patient, error)
	Create(ctx context.Context, p *Patient) (*Patient, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Patient, error)
	List(ctx context.Context, f ListFilter) ([]Patient, int, error)
	Stats(ctx context.Context) (*Stats, error)
}
