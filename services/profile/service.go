package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/repositories"
	"github.com/upb/siamonitor/services"
	"github.com/upb/siamonitor/services/policy"
	"go.uber.org/zap"
)

// Update is the caller-editable part of a profile. Nil fields are left alone.
type Update struct {
	Mode    *models.ProfileMode
	GroupNo *string
	Tg      *string
}

// Service keeps local profiles in step with verified identities
type Service struct {
	profiles  repositories.ProfileRepository
	projects  repositories.ProjectRepository
	txMgr     repositories.TransactionManager
	evaluator *policy.Evaluator
	logger    *zap.Logger
}

// NewService creates a new profile service
func NewService(
	profiles repositories.ProfileRepository,
	projects repositories.ProjectRepository,
	txMgr repositories.TransactionManager,
	evaluator *policy.Evaluator,
	logger *zap.Logger,
) *Service {
	return &Service{
		profiles:  profiles,
		projects:  projects,
		txMgr:     txMgr,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Get returns the caller's profile, creating it on first use. Name, email and
// username are refreshed from the token on every call.
func (s *Service) Get(ctx context.Context, id *auth.Identity) (*models.Profile, error) {
	p, err := s.loadOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}

	if syncFromIdentity(p, id) {
		if err := s.profiles.Update(ctx, p); err != nil {
			return nil, services.WrapInternal("failed to update profile", err)
		}
	}
	return p, nil
}

// Update applies caller edits. Teachers keep their mode and group silently;
// a student switching to lead leaves every team in the same transaction.
func (s *Service) Update(ctx context.Context, id *auth.Identity, upd Update) (*models.Profile, error) {
	p, err := s.loadOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}

	teacher := id.IsTeacher()
	leaving := false

	if upd.Mode != nil && !teacher && *upd.Mode != p.Mode {
		if err := s.evaluator.CanChangeMode(id, *upd.Mode).Err(); err != nil {
			return nil, err
		}
		leaving = *upd.Mode == models.ModeLead
		p.Mode = *upd.Mode
	}
	if upd.GroupNo != nil && !teacher {
		p.GroupNo = trimmedOrNil(*upd.GroupNo)
	}
	if upd.Tg != nil {
		p.Tg = trimmedOrNil(*upd.Tg)
	}
	syncFromIdentity(p, id)

	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if leaving {
			n, err := s.projects.RemoveMemberships(ctx, id.Subject)
			if err != nil {
				return err
			}
			if n > 0 {
				s.logger.Info("memberships dropped on switch to lead",
					zap.String("sub", id.Subject), zap.Int64("count", n))
			}
		}
		return s.profiles.Update(ctx, p)
	})
	if err != nil {
		return nil, services.WrapInternal("failed to update profile", err)
	}

	return p, nil
}

func (s *Service) loadOrCreate(ctx context.Context, id *auth.Identity) (*models.Profile, error) {
	p, err := s.profiles.GetBySub(ctx, id.Subject)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, services.WrapInternal("failed to load profile", err)
	}

	p = models.NewProfile(id.Subject)
	syncFromIdentity(p, id)
	if err := s.profiles.Create(ctx, p); err != nil {
		// a concurrent first request may have won the insert
		if existing, getErr := s.profiles.GetBySub(ctx, id.Subject); getErr == nil {
			return existing, nil
		}
		return nil, services.WrapInternal("failed to create profile", err)
	}

	s.logger.Info("profile created", zap.String("sub", p.Sub), zap.String("mode", string(p.Mode)))
	return p, nil
}

// syncFromIdentity copies token-owned fields onto p and reports whether anything changed
func syncFromIdentity(p *models.Profile, id *auth.Identity) bool {
	changed := false
	set := func(dst **string, v string) {
		if v == "" || (*dst != nil && **dst == v) {
			return
		}
		*dst = &v
		changed = true
	}

	set(&p.FullName, id.FullName())
	set(&p.Email, strings.TrimSpace(id.Email))
	set(&p.Username, id.Username)

	if id.IsTeacher() && p.Mode != models.ModeTeacher {
		p.Mode = models.ModeTeacher
		changed = true
	}
	return changed
}

func trimmedOrNil(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
