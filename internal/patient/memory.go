package patient

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/channel"
	"github.com/hackgods/clinic-crm/internal/db"
)

// InMemoryRepository is a Repository backed by a map. It enforces the same
// unique email rule as the database.
type InMemoryRepository struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*Patient
	// FailCreate, when set, is returned by the next Create call.
	FailCreate error
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{patients: make(map[uuid.UUID]*Patient)}
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.patients {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (r *InMemoryRepository) Create(ctx context.Context, p *Patient) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.FailCreate; err != nil {
		r.FailCreate = nil
		return nil, err
	}
	for _, existing := range r.patients {
		if strings.EqualFold(existing.Email, p.Email) {
			return nil, ErrEmailTaken
		}
	}

	cp := *p
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.patients[cp.ID] = &cp

	out := cp
	return &out, nil
}

// Delete removes a patient. Used to undo a conversion that failed halfway.
func (r *InMemoryRepository) Delete(ctx context.Context, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.patients, id)
}

func (r *InMemoryRepository) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	if in.Email != nil {
		for otherID, other := range r.patients {
			if otherID != id && strings.EqualFold(other.Email, *in.Email) {
				return nil, ErrEmailTaken
			}
		}
	}

	cp := *p
	setString(&cp.Name, in.Name)
	setString(&cp.Email, in.Email)
	setString(&cp.Phone, in.Phone)
	setString(&cp.Address, in.Address)
	setString(&cp.City, in.City)
	setString(&cp.DocumentNumber, in.DocumentNumber)
	setString(&cp.Notes, in.Notes)
	if in.Channel != nil {
		cp.Channel = channel.Channel(*in.Channel)
	}
	if in.UsesMedicatedHearingAids != nil {
		cp.UsesMedicatedHearingAids = *in.UsesMedicatedHearingAids
	}
	if in.HearingLoss != nil {
		cp.HearingLoss = *in.HearingLoss
	}
	cp.UpdatedAt = time.Now().UTC()
	r.patients[id] = &cp

	out := cp
	return &out, nil
}

func (r *InMemoryRepository) List(ctx context.Context, f ListFilter) ([]Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(f.Search)
	matched := make([]Patient, 0)
	for _, p := range r.patients {
		if search == "" ||
			strings.Contains(strings.ToLower(p.Name), search) ||
			strings.Contains(strings.ToLower(p.Email), search) ||
			strings.Contains(p.Phone, f.Search) ||
			strings.Contains(p.DocumentNumber, f.Search) {
			matched = append(matched, *p)
		}
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

func (r *InMemoryRepository) Stats(ctx context.Context) (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &Stats{ByChannel: map[string]int{}}
	for _, p := range r.patients {
		stats.Total++
		if p.HearingLoss {
			stats.WithHearingLoss++
		}
		stats.ByChannel[string(p.Channel)]++
	}
	return stats, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
