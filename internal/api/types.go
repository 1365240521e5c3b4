package api

import (
	"github.com/hackgods/clinic-crm/internal/appointment"
	"github.com/hackgods/clinic-crm/internal/lead"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type RescheduleResponse struct {
	Original    *appointment.Appointment `json:"original"`
	Appointment *appointment.Appointment `json:"appointment"`
}

type DuplicateResponse struct {
	Duplicate bool       `json:"duplicate"`
	Lead      *lead.Lead `json:"lead,omitempty"`
}

type ScheduleResponse struct {
	Lead        *lead.Lead               `json:"lead"`
	Appointment *appointment.Appointment `json:"appointment"`
}
