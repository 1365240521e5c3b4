package lead

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hackgods/clinic-crm/internal/appointment"
	"github.com/hackgods/clinic-crm/internal/channel"
	"github.com/hackgods/clinic-crm/internal/db"
	"github.com/hackgods/clinic-crm/internal/eventlog"
	"github.com/hackgods/clinic-crm/internal/metrics"
	"github.com/hackgods/clinic-crm/internal/patient"
	"github.com/hackgods/clinic-crm/internal/validation"
	"github.com/hackgods/clinic-crm/pkg/logging"
)

const (
	EventLeadConverted   = "LEAD_CONVERTED"
	EventLeadReactivated = "LEAD_REACTIVATED"
	EventLeadScheduled   = "LEAD_SCHEDULED"
)

var tracer = otel.Tracer("github.com/hackgods/clinic-crm/internal/lead")

var _ appointment.StatusObserver = (*Service)(nil)

// Booker is the slice of the appointment service that scheduling needs.
type Booker interface {
	Create(ctx context.Context, in appointment.CreateInput, createdBy *uuid.UUID) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type Service struct {
	repo    Repository
	booker  Booker
	events  eventlog.Recorder
	metrics *metrics.Metrics
	logger  *logging.Logger
}

func NewService(repo Repository, booker Booker, events eventlog.Recorder, m *metrics.Metrics, logger *logging.Logger) *Service {
	if events == nil {
		events = eventlog.Nop{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, booker: booker, events: events, metrics: m, logger: logger}
}

func (s *Service) Create(ctx context.Context, in CreateInput, createdBy *uuid.UUID) (*Lead, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	interest := strings.TrimSpace(in.Interest)
	if interest == "" {
		interest = DefaultInterest
	}

	l := &Lead{
		Name:                     strings.TrimSpace(in.Name),
		Email:                    strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:                    strings.TrimSpace(in.Phone),
		Address:                  in.Address,
		City:                     in.City,
		UsesMedicatedHearingAids: in.UsesMedicatedHearingAids,
		Channel:                  s.normalizeChannel(in.Channel),
		Interest:                 interest,
		Notes:                    in.Notes,
		Status:                   StatusNew,
		ReferringDoctor:          in.ReferringDoctor,
		SocialNetwork:            in.SocialNetwork,
		OfflineCampaign:          in.OfflineCampaign,
		ReferredBy:               in.ReferredBy,
		ManualBookingType:        in.ManualBookingType,
		CreatedByID:              createdBy,
	}

	created, err := s.repo.Create(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	s.metrics.LeadCreated(string(created.Channel))
	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Lead, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	f.Page, f.Limit = db.NormalizePage(f.Page, f.Limit)
	f.Search = strings.TrimSpace(f.Search)
	if f.Status != "" {
		st, ok := ParseStatus(string(f.Status))
		if !ok {
			return nil, ErrInvalidStatus
		}
		f.Status = st
	}

	leads, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return &ListResult{Leads: leads, Pagination: db.NewPagination(f.Page, f.Limit, total)}, nil
}

// Update applies a partial update. A PACIENTE lead refuses any other status
// before anything else in the input is looked at, and no lead becomes
// PACIENTE except through ConvertToPatient.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Lead, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load lead: %w", err)
	}

	if in.Status != nil {
		requested := Status(strings.ToUpper(strings.TrimSpace(*in.Status)))
		if existing.Status == StatusPatient && requested != StatusPatient {
			return nil, ErrLeadFrozen
		}
		to, ok := ParseStatus(*in.Status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		if to == StatusPatient && existing.Status != StatusPatient {
			return nil, ErrConvertRequired
		}
		st := string(to)
		in.Status = &st
	}

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &email
	}
	if in.Channel != nil {
		ch := string(s.normalizeChannel(*in.Channel))
		in.Channel = &ch
	}

	l, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}
	return l, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return nil
}

// Stats reports the funnel: a count for every status, zero included.
func (s *Service) Stats(ctx context.Context) (*FunnelStats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("lead stats: %w", err)
	}

	stats := &FunnelStats{
		ByStatus:    make(map[Status]int, len(AllStatuses())),
		Percentages: make(map[Status]float64, len(AllStatuses())),
	}
	for _, n := range counts {
		stats.Total += n
	}
	for _, st := range AllStatuses() {
		n := counts[st]
		stats.ByStatus[st] = n
		if stats.Total > 0 {
			stats.Percentages[st] = math.Round(float64(n)/float64(stats.Total)*1000) / 10
		} else {
			stats.Percentages[st] = 0
		}
	}
	return stats, nil
}

// ConvertToPatient promotes the lead. The patient is created from the lead's
// contact data and the lead becomes PACIENTE in the same transaction.
// Converting a lead twice returns the first conversion.
func (s *Service) ConvertToPatient(ctx context.Context, id uuid.UUID, in ConvertInput) (*Conversion, error) {
	ctx, span := tracer.Start(ctx, "lead.ConvertToPatient")
	defer span.End()
	span.SetAttributes(attribute.String("lead_id", id.String()))

	conv, err := s.repo.ConvertToPatient(ctx, id, func(l *Lead) *patient.Patient {
		notes := l.Notes
		if in.Notes != nil && strings.TrimSpace(*in.Notes) != "" {
			notes = *in.Notes
		}
		leadID := l.ID
		return &patient.Patient{
			Name:                     l.Name,
			Email:                    strings.ToLower(l.Email),
			Phone:                    l.Phone,
			Address:                  l.Address,
			City:                     l.City,
			UsesMedicatedHearingAids: l.UsesMedicatedHearingAids,
			Channel:                  l.Channel,
			HearingLoss:              in.HearingLoss,
			Notes:                    notes,
			LeadID:                   &leadID,
		}
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		switch {
		case errors.Is(err, patient.ErrEmailTaken):
			s.metrics.LeadConversion("email_taken")
		case errors.Is(err, ErrLeadNotFound):
			s.metrics.LeadConversion("not_found")
		default:
			s.metrics.LeadConversion("error")
		}
		return nil, fmt.Errorf("convert lead: %w", err)
	}

	if conv.AlreadyConverted {
		s.metrics.LeadConversion("already_converted")
		return conv, nil
	}

	s.metrics.LeadConversion("converted")
	s.events.Record(ctx, EventLeadConverted, eventlog.EntityLead, id, map[string]any{
		"patient_id": conv.Patient.ID,
	})
	s.logger.Info("lead converted", "lead_id", id, "patient_id", conv.Patient.ID)
	return conv, nil
}

// FindDuplicate looks for a lead sharing the email (any case) or whose phone
// contains the given phone's digits. A nil lead means no match.
func (s *Service) FindDuplicate(ctx context.Context, email, phone string, excludeID *uuid.UUID) (*Lead, error) {
	q := DuplicateQuery{
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Phone:     nonDigits.ReplaceAllString(phone, ""),
		ExcludeID: excludeID,
	}
	if q.Email == "" && q.Phone == "" {
		return nil, ErrNoDuplicateKeys
	}

	l, err := s.repo.FindDuplicate(ctx, q)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			s.metrics.DuplicateCheck(false)
			return nil, nil
		}
		return nil, fmt.Errorf("find duplicate lead: %w", err)
	}
	s.metrics.DuplicateCheck(true)
	return l, nil
}

// Schedule books an appointment for the lead's contact and links it,
// moving the lead to AGENDADO.
func (s *Service) Schedule(ctx context.Context, id uuid.UUID, in ScheduleInput, createdBy *uuid.UUID) (*Lead, *appointment.Appointment, error) {
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}

	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load lead: %w", err)
	}
	if l.Status == StatusPatient {
		return nil, nil, ErrLeadFrozen
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = l.Interest
	}
	appt, err := s.booker.Create(ctx, appointment.CreateInput{
		Date:             in.Date,
		Time:             in.Time,
		Reason:           reason,
		Channel:          string(l.Channel),
		Notes:            in.Notes,
		ConsultationType: in.ConsultationType,
		PatientID:        l.PatientID,
		ContactName:      l.Name,
		ContactEmail:     l.Email,
		ContactPhone:     l.Phone,
	}, createdBy)
	if err != nil {
		return nil, nil, err
	}

	linked, err := s.repo.LinkAppointment(ctx, id, appt.ID)
	if err != nil {
		if _, cancelErr := s.booker.Cancel(ctx, appt.ID); cancelErr != nil {
			s.logger.Error("failed to release appointment after link failure",
				"lead_id", id,
				"appointment_id", appt.ID,
				"error", cancelErr,
			)
		}
		return nil, nil, fmt.Errorf("link appointment: %w", err)
	}

	s.events.Record(ctx, EventLeadScheduled, eventlog.EntityLead, id, map[string]any{
		"appointment_id": appt.ID,
		"date":           appointment.FormatDate(appt.Date),
		"time":           appt.Time,
	})
	return linked, appt, nil
}

// AppointmentStatusChanged keeps the lead attached to its live booking
// across reschedules and puts the lead behind a missed appointment back in
// CONTACTADO so it is worked again.
func (s *Service) AppointmentStatusChanged(ctx context.Context, appt *appointment.Appointment, from appointment.Status) error {
	switch appt.Status {
	case appointment.StatusRescheduled:
		return s.followReschedule(ctx, appt)
	case appointment.StatusNoShow:
		return s.reactivate(ctx, appt)
	}
	return nil
}

func (s *Service) followReschedule(ctx context.Context, appt *appointment.Appointment) error {
	if appt.RescheduledToID == nil {
		return nil
	}
	l, err := s.repo.MoveAppointment(ctx, appt.ID, *appt.RescheduledToID)
	if errors.Is(err, ErrLeadNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("move lead to replacement appointment: %w", err)
	}
	s.logger.Info("lead follows rescheduled appointment",
		"lead_id", l.ID,
		"from_appointment_id", appt.ID,
		"appointment_id", *appt.RescheduledToID,
	)
	return nil
}

func (s *Service) reactivate(ctx context.Context, appt *appointment.Appointment) error {
	l, err := s.repo.FindByAppointment(ctx, appt.ID)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			return nil
		}
		return fmt.Errorf("find lead for appointment: %w", err)
	}
	if l.Status == StatusPatient || l.Status == StatusContacted {
		return nil
	}

	if _, err := s.repo.SetStatus(ctx, l.ID, StatusContacted); err != nil {
		// converted after we looked
		if errors.Is(err, ErrLeadFrozen) {
			return nil
		}
		return fmt.Errorf("reactivate lead: %w", err)
	}
	s.events.Record(ctx, EventLeadReactivated, eventlog.EntityLead, l.ID, map[string]any{
		"appointment_id": appt.ID,
		"previous":       l.Status,
	})
	s.logger.Info("lead reactivated after no-show", "lead_id", l.ID, "appointment_id", appt.ID)
	return nil
}

func (s *Service) normalizeChannel(raw string) channel.Channel {
	c, ok := channel.Parse(raw)
	if !ok && strings.TrimSpace(raw) != "" {
		s.logger.Warn("unrecognized channel, using default", "input", raw, "channel", c)
	}
	return c
}
