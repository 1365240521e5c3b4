package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-crm/internal/channel"
	"github.com/hackgods/clinic-crm/internal/db"
	"github.com/hackgods/clinic-crm/internal/eventlog"
	"github.com/hackgods/clinic-crm/internal/metrics"
	redisclient "github.com/hackgods/clinic-crm/internal/redis"
	"github.com/hackgods/clinic-crm/internal/validation"
	"github.com/hackgods/clinic-crm/pkg/logging"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
)

var tracer = otel.Tracer("github.com/hackgods/clinic-crm/internal/appointment")

// StatusObserver is told about every committed status change.
type StatusObserver interface {
	AppointmentStatusChanged(ctx context.Context, appt *Appointment, from Status) error
}

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	catalog   Catalog
	events    eventlog.Recorder
	metrics   *metrics.Metrics
	logger    *logging.Logger
	observers []StatusObserver
	now       func() time.Time
}

type Option func(*Service)

func WithEvents(r eventlog.Recorder) Option {
	return func(s *Service) { s.events = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, locker redisclient.Locker, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		locker:  locker,
		catalog: NewCatalog(catalog),
		events:  eventlog.Nop{},
		logger:  logging.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddStatusObserver registers o. Not safe to call once requests are served.
func (s *Service) AddStatusObserver(o StatusObserver) {
	s.observers = append(s.observers, o)
}

func (s *Service) Catalog() Catalog {
	return NewCatalog(s.catalog)
}

// AvailableSlots splits the catalog for date into free and booked times.
// Any appointment that is not CANCELLED occupies its slot.
func (s *Service) AvailableSlots(ctx context.Context, date time.Time) (*Availability, error) {
	date = DateOnly(date)
	ctx, span := tracer.Start(ctx, "appointment.AvailableSlots",
		trace.WithAttributes(attribute.String("date", FormatDate(date))))
	defer span.End()

	booked, err := s.repo.BookedTimes(ctx, date)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("load booked times: %w", err)
	}

	available, taken := s.catalog.Split(booked)
	span.SetAttributes(attribute.Int("available", len(available)))
	return &Availability{
		Date:           FormatDate(date),
		AvailableSlots: available,
		BookedSlots:    taken,
	}, nil
}

// Create books a CONFIRMED appointment. The slot is locked in Redis while
// occupancy is rechecked and the row is written, so two concurrent requests
// for the same date and time cannot both succeed.
func (s *Service) Create(ctx context.Context, in CreateInput, createdBy *uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Create")
	defer span.End()

	appt, err := s.newAppointment(ctx, in)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	appt.CreatedByID = createdBy
	span.SetAttributes(attribute.String("slot", appt.SlotKey()))

	created, err := s.book(ctx, appt.Date, appt.Time, func(lockCtx context.Context) (*Appointment, error) {
		return s.repo.Create(lockCtx, appt)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.metrics.AppointmentBooked(string(created.Channel))
	s.events.Record(ctx, EventAppointmentCreated, eventlog.EntityAppointment, created.ID, map[string]any{
		"date":       FormatDate(created.Date),
		"time":       created.Time,
		"channel":    created.Channel,
		"patient_id": created.PatientID,
	})
	s.logger.Info("appointment booked", "appointment_id", created.ID, "slot", created.SlotKey())
	return created, nil
}

// book runs write under the slot lock once the slot is confirmed free.
func (s *Service) book(ctx context.Context, date time.Time, hhmm string, write func(context.Context) (*Appointment, error)) (*Appointment, error) {
	var created *Appointment

	key := redisclient.SlotKey(FormatDate(date), hhmm)
	err := s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		booked, err := s.repo.BookedTimes(lockCtx, date)
		if err != nil {
			return fmt.Errorf("check slot occupancy: %w", err)
		}
		for _, b := range booked {
			if b == hhmm {
				return ErrSlotAlreadyBooked
			}
		}

		created, err = write(lockCtx)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			s.metrics.SlotConflict("locked")
			return nil, ErrSlotBeingBooked
		case errors.Is(err, ErrSlotAlreadyBooked):
			s.metrics.SlotConflict("booked")
			return nil, err
		}
		return nil, err
	}
	return created, nil
}

func (s *Service) newAppointment(ctx context.Context, in CreateInput) (*Appointment, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	date, hhmm, err := s.parseSlot(in.Date, in.Time)
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		Date:             date,
		Time:             hhmm,
		Status:           StatusConfirmed,
		Reason:           strings.TrimSpace(in.Reason),
		Channel:          s.normalizeChannel(in.Channel),
		Notes:            in.Notes,
		ConsultationType: in.ConsultationType,
	}

	if in.PatientID != nil {
		ok, err := s.repo.PatientExists(ctx, *in.PatientID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrPatientNotFound
		}
		appt.PatientID = in.PatientID
		return appt, nil
	}

	name := strings.TrimSpace(in.ContactName)
	email := strings.ToLower(strings.TrimSpace(in.ContactEmail))
	phone := strings.TrimSpace(in.ContactPhone)
	if name == "" || (email == "" && phone == "") {
		return nil, ErrContactRequired
	}
	appt.ContactName, appt.ContactEmail, appt.ContactPhone = name, email, phone
	return appt, nil
}

func (s *Service) parseSlot(rawDate, rawTime string) (time.Time, string, error) {
	date, err := ParseDate(rawDate)
	if err != nil {
		return time.Time{}, "", err
	}
	hhmm, err := NormalizeTime(rawTime)
	if err != nil {
		return time.Time{}, "", err
	}
	if !s.catalog.Contains(hhmm) {
		return time.Time{}, "", ErrSlotNotOffered
	}
	return date, hhmm, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	f.Page, f.Limit = db.NormalizePage(f.Page, f.Limit)
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if f.Date != nil {
		d := DateOnly(*f.Date)
		f.Date = &d
	}

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return &ListResult{Appointments: items, Pagination: db.NewPagination(f.Page, f.Limit, total)}, nil
}

// RecentForPatient returns the patient's latest appointments, newest first.
func (s *Service) RecentForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = db.DefaultPageSize
	}
	items, err := s.repo.RecentForPatient(ctx, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent appointments: %w", err)
	}
	return items, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.ContactEmail != nil {
		email := strings.ToLower(strings.TrimSpace(*in.ContactEmail))
		in.ContactEmail = &email
	}
	if in.Channel != nil {
		ch := string(s.normalizeChannel(*in.Channel))
		in.Channel = &ch
	}

	a, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return a, nil
}

// UpdateStatus applies a transition from the state table. Asking for the
// status the appointment already has returns it unchanged.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, raw string) (*Appointment, error) {
	to, ok := ParseStatus(raw)
	if !ok {
		return nil, ErrInvalidStatus
	}
	if to == StatusRescheduled {
		return nil, ErrRescheduleNeedsSlot
	}
	return s.transition(ctx, id, to)
}

// Cancel frees the slot. Cancelling twice is not an error.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.transition")
	defer span.End()
	span.SetAttributes(attribute.String("appointment_id", id.String()), attribute.String("to", string(to)))

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	from := appt.Status
	if from == to {
		return appt, nil
	}
	if !CanTransition(from, to) {
		return nil, ErrInvalidStatusTransition.Withf("%s to %s", from, to)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, from, to)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.metrics.StatusTransition(string(from), string(to))
	s.events.Record(ctx, EventAppointmentStatusChanged, eventlog.EntityAppointment, id, map[string]any{
		"from": from,
		"to":   to,
	})
	s.notify(ctx, updated, from)
	return updated, nil
}

// Reschedule books the new date and time and marks the original
// RESCHEDULED, pointing at its replacement. Both writes commit together.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, in RescheduleInput, createdBy *uuid.UUID) (original, replacement *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointment.Reschedule",
		trace.WithAttributes(attribute.String("appointment_id", id.String())))
	defer span.End()

	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}
	date, hhmm, err := s.parseSlot(in.Date, in.Time)
	if err != nil {
		return nil, nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load appointment: %w", err)
	}
	if !CanTransition(current.Status, StatusRescheduled) {
		return nil, nil, ErrInvalidStatusTransition.Withf("%s to %s", current.Status, StatusRescheduled)
	}

	next := &Appointment{
		Date:             date,
		Time:             hhmm,
		Status:           StatusConfirmed,
		Reason:           current.Reason,
		Channel:          current.Channel,
		Notes:            current.Notes,
		ConsultationType: current.ConsultationType,
		PatientID:        current.PatientID,
		ContactName:      current.ContactName,
		ContactEmail:     current.ContactEmail,
		ContactPhone:     current.ContactPhone,
		CreatedByID:      createdBy,
	}
	if next.CreatedByID == nil {
		next.CreatedByID = current.CreatedByID
	}

	replacement, err = s.book(ctx, date, hhmm, func(lockCtx context.Context) (*Appointment, error) {
		var err error
		original, replacement, err = s.repo.Reschedule(lockCtx, id, current.Status, next)
		return replacement, err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	s.metrics.StatusTransition(string(current.Status), string(StatusRescheduled))
	s.events.Record(ctx, EventAppointmentRescheduled, eventlog.EntityAppointment, id, map[string]any{
		"from_slot":      current.SlotKey(),
		"to_slot":        replacement.SlotKey(),
		"replacement_id": replacement.ID,
	})
	s.logger.Info("appointment rescheduled",
		"appointment_id", id,
		"replacement_id", replacement.ID,
		"slot", replacement.SlotKey(),
	)
	s.notify(ctx, original, current.Status)
	return original, replacement, nil
}

// Stats counts appointments dated within period: day, week, month
// (default), year or all. Future bookings always fall inside the period.
// Unknown periods count everything.
func (s *Service) Stats(ctx context.Context, period string) (*Stats, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = "month"
	}

	now := s.now().UTC()
	var cutoff time.Time
	switch period {
	case "day":
		cutoff = now.AddDate(0, 0, -1)
	case "week":
		cutoff = now.AddDate(0, 0, -7)
	case "month":
		cutoff = now.AddDate(0, -1, 0)
	case "year":
		cutoff = now.AddDate(-1, 0, 0)
	default:
		period = "all"
	}
	var since *time.Time
	if !cutoff.IsZero() {
		day := DateOnly(cutoff)
		since = &day
	}

	counts, err := s.repo.CountByStatus(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("appointment stats: %w", err)
	}

	stats := &Stats{
		Period:      period,
		Confirmed:   counts[StatusConfirmed],
		Completed:   counts[StatusCompleted],
		NoShow:      counts[StatusNoShow],
		Cancelled:   counts[StatusCancelled],
		Rescheduled: counts[StatusRescheduled],
		Patient:     counts[StatusPatient],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (s *Service) notify(ctx context.Context, appt *Appointment, from Status) {
	for _, o := range s.observers {
		if err := o.AppointmentStatusChanged(ctx, appt, from); err != nil {
			s.logger.Error("status observer failed",
				"appointment_id", appt.ID,
				"from", from,
				"to", appt.Status,
				"error", err,
			)
		}
	}
}

func (s *Service) normalizeChannel(raw string) channel.Channel {
	c, ok := channel.Parse(raw)
	if !ok && strings.TrimSpace(raw) != "" {
		s.logger.Warn("unrecognized channel, using default", "input", raw, "channel", c)
	}
	return c
}
