package lead

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/channel"
	"github.com/hackgods/clinic-crm/internal/db"
	"github.com/hackgods/clinic-crm/internal/patient"
)

var nonDigits = regexp.MustCompile(`\D`)

// InMemoryRepository is a Repository backed by a map. Conversions write
// through to the patient repository and undo the patient when the lead
// write fails.
type InMemoryRepository struct {
	mu       sync.RWMutex
	leads    map[uuid.UUID]*Lead
	patients *patient.InMemoryRepository
	// FailConvertStatus, when set, fails the next conversion after the
	// patient has been written.
	FailConvertStatus error
}

func NewInMemoryRepository(patients *patient.InMemoryRepository) *InMemoryRepository {
	if patients == nil {
		patients = patient.NewInMemoryRepository()
	}
	return &InMemoryRepository{leads: make(map[uuid.UUID]*Lead), patients: patients}
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *InMemoryRepository) Create(ctx context.Context, l *Lead) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *l
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.leads[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}

	if in.Status != nil && l.Status == StatusPatient && Status(*in.Status) != StatusPatient {
		return nil, ErrLeadFrozen
	}

	cp := *l
	setString(&cp.Name, in.Name)
	setString(&cp.Email, in.Email)
	setString(&cp.Phone, in.Phone)
	setString(&cp.Address, in.Address)
	setString(&cp.City, in.City)
	setString(&cp.Interest, in.Interest)
	setString(&cp.Notes, in.Notes)
	setString(&cp.ReferringDoctor, in.ReferringDoctor)
	setString(&cp.SocialNetwork, in.SocialNetwork)
	setString(&cp.OfflineCampaign, in.OfflineCampaign)
	setString(&cp.ReferredBy, in.ReferredBy)
	setString(&cp.ManualBookingType, in.ManualBookingType)
	if in.UsesMedicatedHearingAids != nil {
		cp.UsesMedicatedHearingAids = *in.UsesMedicatedHearingAids
	}
	if in.Channel != nil {
		cp.Channel = channel.Channel(*in.Channel)
	}
	if in.Status != nil {
		cp.Status = Status(*in.Status)
	}
	cp.UpdatedAt = time.Now().UTC()
	r.leads[id] = &cp

	out := cp
	return &out, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.leads[id]; !ok {
		return ErrLeadNotFound
	}
	delete(r.leads, id)
	return nil
}

func (r *InMemoryRepository) List(ctx context.Context, f ListFilter) ([]Lead, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(f.Search)
	matched := make([]Lead, 0)
	for _, l := range r.leads {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(l.Name), search) &&
			!strings.Contains(strings.ToLower(l.Email), search) &&
			!strings.Contains(l.Phone, f.Search) {
			continue
		}
		matched = append(matched, *l)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

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

func (r *InMemoryRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Status]int)
	for _, l := range r.leads {
		counts[l.Status]++
	}
	return counts, nil
}

func (r *InMemoryRepository) FindDuplicate(ctx context.Context, q DuplicateQuery) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]*Lead, 0, len(r.leads))
	for _, l := range r.leads {
		candidates = append(candidates, l)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })

	for _, l := range candidates {
		if q.ExcludeID != nil && l.ID == *q.ExcludeID {
			continue
		}
		emailHit := q.Email != "" && strings.EqualFold(l.Email, q.Email)
		phoneHit := q.Phone != "" && strings.Contains(nonDigits.ReplaceAllString(l.Phone, ""), q.Phone)
		if emailHit || phoneHit {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrLeadNotFound
}

func (r *InMemoryRepository) FindByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.leads {
		if l.AppointmentID != nil && *l.AppointmentID == appointmentID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrLeadNotFound
}

func (r *InMemoryRepository) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	if l.Status == StatusPatient {
		return nil, ErrLeadFrozen
	}
	l.Status = status
	l.UpdatedAt = time.Now().UTC()

	out := *l
	return &out, nil
}

func (r *InMemoryRepository) LinkAppointment(ctx context.Context, id, appointmentID uuid.UUID) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	if l.Status == StatusPatient {
		return nil, ErrLeadFrozen
	}
	apptID := appointmentID
	l.AppointmentID = &apptID
	l.Status = StatusScheduled
	l.UpdatedAt = time.Now().UTC()

	out := *l
	return &out, nil
}

func (r *InMemoryRepository) MoveAppointment(ctx context.Context, from, to uuid.UUID) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.leads {
		if l.AppointmentID != nil && *l.AppointmentID == from {
			next := to
			l.AppointmentID = &next
			l.UpdatedAt = time.Now().UTC()
			out := *l
			return &out, nil
		}
	}
	return nil, ErrLeadNotFound
}

func (r *InMemoryRepository) ConvertToPatient(ctx context.Context, id uuid.UUID, build PatientBuilder) (*Conversion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}

	if l.PatientID != nil {
		p, err := r.patients.GetByID(ctx, *l.PatientID)
		if err != nil {
			return nil, err
		}
		cp := *l
		return &Conversion{Lead: &cp, Patient: p, AlreadyConverted: true}, nil
	}

	p, err := r.patients.Create(ctx, build(l))
	if err != nil {
		return nil, err
	}

	if err := r.FailConvertStatus; err != nil {
		r.FailConvertStatus = nil
		r.patients.Delete(ctx, p.ID)
		return nil, err
	}

	patientID := p.ID
	l.PatientID = &patientID
	l.Status = StatusPatient
	l.UpdatedAt = time.Now().UTC()

	cp := *l
	return &Conversion{Lead: &cp, Patient: p}, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
