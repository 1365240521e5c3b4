package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/channel"
	"github.com/hackgods/clinic-crm/internal/db"
)

// InMemoryRepository is a Repository backed by maps. It enforces one
// active appointment per date and time like the partial unique index does.
type InMemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
	patients     map[uuid.UUID]struct{}
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		appointments: make(map[uuid.UUID]*Appointment),
		patients:     make(map[uuid.UUID]struct{}),
	}
}

// AddPatient makes id known to PatientExists.
func (r *InMemoryRepository) AddPatient(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[id] = struct{}{}
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *InMemoryRepository) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.patients[id]
	return ok, nil
}

func (r *InMemoryRepository) BookedTimes(ctx context.Context, date time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	booked := make([]string, 0)
	for _, a := range r.appointments {
		if a.Date.Equal(date) && a.Status != StatusCancelled {
			booked = append(booked, a.Time)
		}
	}
	sort.Strings(booked)
	return booked, nil
}

func (r *InMemoryRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(a)
}

func (r *InMemoryRepository) insertLocked(a *Appointment) (*Appointment, error) {
	for _, existing := range r.appointments {
		if existing.Status != StatusCancelled && existing.Date.Equal(a.Date) && existing.Time == a.Time {
			return nil, ErrSlotAlreadyBooked
		}
	}

	cp := *a
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.appointments[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	cp := *a
	setString(&cp.Reason, in.Reason)
	setString(&cp.Notes, in.Notes)
	setString(&cp.ConsultationType, in.ConsultationType)
	setString(&cp.ContactName, in.ContactName)
	setString(&cp.ContactEmail, in.ContactEmail)
	setString(&cp.ContactPhone, in.ContactPhone)
	if in.Channel != nil {
		cp.Channel = channel.Channel(*in.Channel)
	}
	cp.UpdatedAt = time.Now().UTC()
	r.appointments[id] = &cp

	out := cp
	return &out, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrStatusChanged
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()

	out := *a
	return &out, nil
}

func (r *InMemoryRepository) Reschedule(ctx context.Context, id uuid.UUID, from Status, replacement *Appointment) (*Appointment, *Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, nil, ErrStatusChanged
	}
	created, err := r.insertLocked(replacement)
	if err != nil {
		return nil, nil, err
	}

	a.Status = StatusRescheduled
	a.RescheduledToID = &created.ID
	a.UpdatedAt = time.Now().UTC()

	original := *a
	return &original, created, nil
}

func (r *InMemoryRepository) List(ctx context.Context, f ListFilter) ([]Appointment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]Appointment, 0)
	for _, a := range r.appointments {
		if f.Date != nil && !a.Date.Equal(*f.Date) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		matched = append(matched, *a)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.Before(matched[j].Date)
		}
		return matched[i].Time < matched[j].Time
	})

	total := len(matched)
	start := db.Offset(f.Page, f.Limit)
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *InMemoryRepository) RecentForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]Appointment, 0)
	for _, a := range r.appointments {
		if a.PatientID != nil && *a.PatientID == patientID {
			matched = append(matched, *a)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].Time > matched[j].Time
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *InMemoryRepository) CountByStatus(ctx context.Context, since *time.Time) (map[Status]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Status]int)
	for _, a := range r.appointments {
		if since != nil && a.Date.Before(*since) {
			continue
		}
		counts[a.Status]++
	}
	return counts, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
