package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/apperr"
)

var (
	ErrAppointmentNotFound     = apperr.NotFound("appointment_not_found", "appointment not found")
	ErrPatientNotFound         = apperr.NotFound("patient_not_found", "patient not found")
	ErrInvalidDate             = apperr.Validation("invalid_date", "date must be YYYY-MM-DD or an RFC3339 timestamp")
	ErrInvalidTime             = apperr.Validation("invalid_time", "time must be HH:MM")
	ErrSlotNotOffered          = apperr.Validation("slot_not_offered", "time is not one of the clinic's slots")
	ErrContactRequired         = apperr.Validation("contact_required", "a walk-in needs a contact name and an email or phone")
	ErrInvalidStatus           = apperr.Validation("invalid_status", "unknown appointment status")
	ErrRescheduleNeedsSlot     = apperr.Validation("reschedule_needs_slot", "use the reschedule operation with a new date and time")
	ErrInvalidStatusTransition = apperr.Conflict("invalid_status_transition", "invalid status transition")
	ErrSlotAlreadyBooked       = apperr.Conflict("slot_already_booked", "slot already has an active appointment")
	ErrSlotBeingBooked         = apperr.Conflict("slot_being_booked", "slot is currently being booked, please retry")
	ErrStatusChanged           = apperr.Conflict("status_changed", "appointment status changed concurrently, reload and retry")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	// BookedTimes lists the times of every appointment on date that is not
	// CANCELLED.
	BookedTimes(ctx context.Context, date time.Time) ([]string, error)
	Create(ctx context.Context, a *Appointment) (*Appointment, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Appointment, error)
	// UpdateStatus moves id from one status to another only if it is still
	// in from. ErrStatusChanged reports that it was not.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	// Reschedule stores replacement and marks id RESCHEDULED pointing at it,
	// atomically.
	Reschedule(ctx context.Context, id uuid.UUID, from Status, replacement *Appointment) (original, created *Appointment, err error)
	List(ctx context.Context, f ListFilter) ([]Appointment, int, error)
	// RecentForPatient returns up to limit of the patient's appointments,
	// latest date and time first.
	RecentForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Appointment, error)
	// CountByStatus counts appointments dated on or after since, or all of them.
	CountByStatus(ctx context.Context, since *time.Time) (map[Status]int, error)
}
