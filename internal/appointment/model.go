package appointment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/channel"
	"github.com/hackgods/clinic-crm/internal/db"
)

type Appointment struct {
	ID               uuid.UUID       `json:"id"`
	Date             time.Time       `json:"date"` // calendar date, midnight UTC
	Time             string          `json:"time"` // HH:MM
	Status           Status          `json:"status"`
	Reason           string          `json:"reason"`
	Channel          channel.Channel `json:"channel"`
	Notes            string          `json:"notes"`
	ConsultationType string          `json:"consultation_type"`
	PatientID        *uuid.UUID      `json:"patient_id,omitempty"`
	ContactName      string          `json:"contact_name,omitempty"`
	ContactEmail     string          `json:"contact_email,omitempty"`
	ContactPhone     string          `json:"contact_phone,omitempty"`
	RescheduledToID  *uuid.UUID      `json:"rescheduled_to_id,omitempty"`
	CreatedByID      *uuid.UUID      `json:"created_by_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// MarshalJSON renders Date as YYYY-MM-DD.
func (a Appointment) MarshalJSON() ([]byte, error) {
	type alias Appointment
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias: alias(a), Date: FormatDate(a.Date)})
}

// SlotKey identifies the bookable slot the appointment occupies.
func (a *Appointment) SlotKey() string {
	return FormatDate(a.Date) + " " + a.Time
}

type CreateInput struct {
	Date             string     `json:"date" validate:"required"`
	Time             string     `json:"time" validate:"required,hhmm"`
	Reason           string     `json:"reason"`
	Channel          string     `json:"channel"`
	Notes            string     `json:"notes"`
	ConsultationType string     `json:"consultation_type"`
	PatientID        *uuid.UUID `json:"patient_id"`
	ContactName      string     `json:"contact_name"`
	ContactEmail     string     `json:"contact_email" validate:"omitempty,email"`
	ContactPhone     string     `json:"contact_phone"`
}

// UpdateInput edits descriptive fields. Date, time and status have their
// own operations.
type UpdateInput struct {
	Reason           *string `json:"reason"`
	Channel          *string `json:"channel"`
	Notes            *string `json:"notes"`
	ConsultationType *string `json:"consultation_type"`
	ContactName      *string `json:"contact_name"`
	ContactEmail     *string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone     *string `json:"contact_phone"`
}

type RescheduleInput struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required,hhmm"`
}

type ListFilter struct {
	Date   *time.Time
	Status Status
	Page   int
	Limit  int
}

type ListResult struct {
	Appointments []Appointment `json:"appointments"`
	Pagination   db.Pagination `json:"pagination"`
}

type Stats struct {
	Period      string `json:"period"`
	Total       int    `json:"total"`
	Confirmed   int    `json:"confirmed"`
	Completed   int    `json:"completed"`
	NoShow      int    `json:"no_show"`
	Cancelled   int    `json:"cancelled"`
	Rescheduled int    `json:"rescheduled"`
	Patient     int    `json:"patient"`
}

// Availability is the result of the slot calculation for one date.
type Availability struct {
	Date           string   `json:"date"`
	AvailableSlots []string `json:"available_slots"`
	BookedSlots    []string `json:"booked_slots"`
}
