package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/channel"
	"github.com/hackgods/clinic-crm/internal/db"
	"github.com/hackgods/clinic-crm/internal/validation"
	"github.com/hackgods/clinic-crm/pkg/logging"
)

type Service struct {
	repo   Repository
	logger *logging.Logger
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Create registers a patient directly. The email is lowercased and must not
// belong to another patient.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Patient, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrPatientNotFound) {
		return nil, fmt.Errorf("check patient email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	p := &Patient{
		Name:                     strings.TrimSpace(in.Name),
		Email:                    email,
		Phone:                    strings.TrimSpace(in.Phone),
		Address:                  in.Address,
		City:                     in.City,
		DocumentNumber:           in.DocumentNumber,
		UsesMedicatedHearingAids: in.UsesMedicatedHearingAids,
		Channel:                  s.normalizeChannel(in.Channel),
		HearingLoss:              in.HearingLoss,
		Notes:                    in.Notes,
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	f.Page, f.Limit = db.NormalizePage(f.Page, f.Limit)
	f.Search = strings.TrimSpace(f.Search)

	patients, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return &ListResult{Patients: patients, Pagination: db.NewPagination(f.Page, f.Limit, total)}, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Patient, error) {
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

	p, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return p, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("patient stats: %w", err)
	}
	return stats, nil
}

func (s *Service) normalizeChannel(raw string) channel.Channel {
	c, ok := channel.Parse(raw)
	if !ok && strings.TrimSpace(raw) != "" {
		s.logger.Warn("unrecognized channel, using default", "input", raw, "channel", c)
	}
	return c
}
