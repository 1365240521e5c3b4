package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/channel"
	"github.com/hackgods/clinic-crm/internal/db"
)

type Patient struct {
	ID                       uuid.UUID       `json:"id"`
	Name                     string          `json:"name"`
	Email                    string          `json:"email"`
	Phone                    string          `json:"phone"`
	Address                  string          `json:"address"`
	City                     string          `json:"city"`
	DocumentNumber           string          `json:"document_number"`
	UsesMedicatedHearingAids bool            `json:"uses_medicated_hearing_aids"`
	Channel                  channel.Channel `json:"channel"`
	HearingLoss              bool            `json:"hearing_loss"`
	Notes                    string          `json:"notes"`
	LeadID                   *uuid.UUID      `json:"lead_id,omitempty"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

type CreateInput struct {
	Name                     string `json:"name" validate:"required"`
	Email                    string `json:"email" validate:"required,email"`
	Phone                    string `json:"phone"`
	Address                  string `json:"address"`
	City                     string `json:"city"`
	DocumentNumber           string `json:"document_number"`
	UsesMedicatedHearingAids bool   `json:"uses_medicated_hearing_aids"`
	Channel                  string `json:"channel"`
	HearingLoss              bool   `json:"hearing_loss"`
	Notes                    string `json:"notes"`
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name                     *string `json:"name" validate:"omitempty,min=1"`
	Email                    *string `json:"email" validate:"omitempty,email"`
	Phone                    *string `json:"phone"`
	Address                  *string `json:"address"`
	City                     *string `json:"city"`
	DocumentNumber           *string `json:"document_number"`
	UsesMedicatedHearingAids *bool   `json:"uses_medicated_hearing_aids"`
	Channel                  *string `json:"channel"`
	HearingLoss              *bool   `json:"hearing_loss"`
	Notes                    *string `json:"notes"`
}

type ListFilter struct {
	Search string
	Page   int
	Limit  int
}

type ListResult struct {
	Patients   []Patient     `json:"patients"`
	Pagination db.Pagination `json:"pagination"`
}

type Stats struct {
	Total           int            `json:"total"`
	WithHearingLoss int            `json:"with_hearing_loss"`
	ByChannel       map[string]int `json:"by_channel"`
}
