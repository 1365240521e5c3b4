// Package profile assembles the full view of a patient: the record itself,
// the lead it was converted from and its latest appointments.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/appointment"
	"github.com/hackgods/clinic-crm/internal/lead"
	"github.com/hackgods/clinic-crm/internal/patient"
)

// RecentAppointments is how many appointments a profile carries.
const RecentAppointments = 10

type PatientReader interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type LeadReader interface {
	Get(ctx context.Context, id uuid.UUID) (*lead.Lead, error)
}

type AppointmentHistory interface {
	RecentForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]appointment.Appointment, error)
}

type Profile struct {
	Patient            *patient.Patient          `json:"patient"`
	Lead               *lead.Lead                `json:"lead,omitempty"`
	RecentAppointments []appointment.Appointment `json:"recent_appointments"`
}

type Service struct {
	patients PatientReader
	leads    LeadReader
	history  AppointmentHistory
}

func NewService(patients PatientReader, leads LeadReader, history AppointmentHistory) *Service {
	return &Service{patients: patients, leads: leads, history: history}
}

// Get returns patient.ErrPatientNotFound for an unknown id. A patient
// created directly, or whose lead was deleted, has no lead.
func (s *Service) Get(ctx context.Context, patientID uuid.UUID) (*Profile, error) {
	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := &Profile{Patient: p}

	if p.LeadID != nil {
		l, err := s.leads.Get(ctx, *p.LeadID)
		switch {
		case err == nil:
			out.Lead = l
		case !errors.Is(err, lead.ErrLeadNotFound):
			return nil, fmt.Errorf("load origin lead: %w", err)
		}
	}

	out.RecentAppointments, err = s.history.RecentForPatient(ctx, patientID, RecentAppointments)
	if err != nil {
		return nil, err
	}
	return out, nil
}
