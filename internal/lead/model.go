package lead

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/channel"
	"github.com/hackgods/clinic-crm/internal/db"
	"github.com/hackgods/clinic-crm/internal/patient"
)

type Status string

const (
	StatusNew       Status = "NUEVO"
	StatusContacted Status = "CONTACTADO"
	StatusScheduled Status = "AGENDADO"
	StatusQualified Status = "CALIFICADO"
	StatusConverted Status = "CONVERTIDO"
	StatusLost      Status = "PERDIDO"
	// StatusPatient is final. Only conversion sets it.
	StatusPatient Status = "PACIENTE"
)

const DefaultInterest = "Consulta General"

// Funnel order.
func AllStatuses() []Status {
	return []Status{
		StatusNew,
		StatusContacted,
		StatusScheduled,
		StatusQualified,
		StatusConverted,
		StatusLost,
		StatusPatient,
	}
}

func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AllStatuses() {
		if s == known {
			return s, true
		}
	}
	return s, false
}

type Lead struct {
	ID                       uuid.UUID       `json:"id"`
	Name                     string          `json:"name"`
	Email                    string          `json:"email"`
	Phone                    string          `json:"phone"`
	Address                  string          `json:"address"`
	City                     string          `json:"city"`
	UsesMedicatedHearingAids bool            `json:"uses_medicated_hearing_aids"`
	Channel                  channel.Channel `json:"channel"`
	Interest                 string          `json:"interest"`
	Notes                    string          `json:"notes"`
	Status                   Status          `json:"status"`
	ReferringDoctor          string          `json:"referring_doctor,omitempty"`
	SocialNetwork            string          `json:"social_network,omitempty"`
	OfflineCampaign          string          `json:"offline_campaign,omitempty"`
	ReferredBy               string          `json:"referred_by,omitempty"`
	ManualBookingType        string          `json:"manual_booking_type,omitempty"`
	AppointmentID            *uuid.UUID      `json:"appointment_id,omitempty"`
	PatientID                *uuid.UUID      `json:"patient_id,omitempty"`
	CreatedByID              *uuid.UUID      `json:"created_by_id,omitempty"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

type CreateInput struct {
	Name                     string `json:"name" validate:"required"`
	Email                    string `json:"email" validate:"required,email"`
	Phone                    string `json:"phone" validate:"required"`
	Address                  string `json:"address"`
	City                     string `json:"city"`
	UsesMedicatedHearingAids bool   `json:"uses_medicated_hearing_aids"`
	Channel                  string `json:"channel"`
	Interest                 string `json:"interest"`
	Notes                    string `json:"notes"`
	ReferringDoctor          string `json:"referring_doctor"`
	SocialNetwork            string `json:"social_network"`
	OfflineCampaign          string `json:"offline_campaign"`
	ReferredBy               string `json:"referred_by"`
	ManualBookingType        string `json:"manual_booking_type"`
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name                     *string `json:"name" validate:"omitempty,min=1"`
	Email                    *string `json:"email" validate:"omitempty,email"`
	Phone                    *string `json:"phone" validate:"omitempty,min=1"`
	Address                  *string `json:"address"`
	City                     *string `json:"city"`
	UsesMedicatedHearingAids *bool   `json:"uses_medicated_hearing_aids"`
	Channel                  *string `json:"channel"`
	Interest                 *string `json:"interest"`
	Notes                    *string `json:"notes"`
	Status                   *string `json:"status"`
	ReferringDoctor          *string `json:"referring_doctor"`
	SocialNetwork            *string `json:"social_network"`
	OfflineCampaign          *string `json:"offline_campaign"`
	ReferredBy               *string `json:"referred_by"`
	ManualBookingType        *string `json:"manual_booking_type"`
}

// ConvertInput carries what the lead itself does not know about the patient.
type ConvertInput struct {
	Notes       *string `json:"notes"`
	HearingLoss bool    `json:"hearing_loss"`
}

type Conversion struct {
	Lead    *Lead            `json:"lead"`
	Patient *patient.Patient `json:"patient"`
	// AlreadyConverted is set when the lead was PACIENTE before the call.
	AlreadyConverted bool `json:"already_converted"`
}

type ScheduleInput struct {
	Date             string `json:"date" validate:"required"`
	Time             string `json:"time" validate:"required,hhmm"`
	Reason           string `json:"reason"`
	ConsultationType string `json:"consultation_type"`
	Notes            string `json:"notes"`
}

type DuplicateQuery struct {
	Email     string
	Phone     string // digits only
	ExcludeID *uuid.UUID
}

type ListFilter struct {
	Status Status
	Search string
	Page   int
	Limit  int
}

type ListResult struct {
	Leads      []Lead        `json:"leads"`
	Pagination db.Pagination `json:"pagination"`
}

// FunnelStats counts leads per status. Percentages have one decimal.
type FunnelStats struct {
	Total       int                `json:"total"`
	ByStatus    map[Status]int     `json:"by_status"`
	Percentages map[Status]float64 `json:"percentages"`
}
