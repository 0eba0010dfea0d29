package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/repositories"
	"github.com/upb/siamonitor/services"
	"github.com/upb/siamonitor/services/policy"
	"go.uber.org/zap"
)

// CreateInput describes a new project
type CreateInput struct {
	Name          string
	Description   *string
	RepoURL       *string
	TrackerURL    *string
	MobileRepoURL *string
}

// Patch is a partial project update. Nil fields are left alone; an empty
// string clears the field.
type Patch struct {
	Name          *string
	Description   *string
	RepoURL       *string
	TrackerURL    *string
	MobileRepoURL *string
}

// MemberInput describes a team member to add
type MemberInput struct {
	MemberSub     string
	RoleInTeam    *string
	MobileRepoURL *string
}

// Service manages projects and their teams
type Service struct {
	projects  repositories.ProjectRepository
	profiles  repositories.ProfileRepository
	txMgr     repositories.TransactionManager
	evaluator *policy.Evaluator
	logger    *zap.Logger
}

// NewService creates a new project service
func NewService(
	projects repositories.ProjectRepository,
	profiles repositories.ProfileRepository,
	txMgr repositories.TransactionManager,
	evaluator *policy.Evaluator,
	logger *zap.Logger,
) *Service {
	return &Service{
		projects:  projects,
		profiles:  profiles,
		txMgr:     txMgr,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Create makes a project owned by the caller and puts the caller on the team
// as lead, both in one transaction.
func (s *Service) Create(ctx context.Context, id *auth.Identity, in CreateInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, services.Validation("name is required")
	}

	profile, err := s.profiles.GetBySub(ctx, id.Subject)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, services.WrapInternal("failed to load profile", err)
		}
		profile = nil
	}

	owns, err := s.ownsProject(ctx, id.Subject)
	if err != nil {
		return nil, err
	}

	if err := s.evaluator.CanCreateProject(id, profile, owns).Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	project := &models.Project{
		Name:          name,
		Description:   trimmedOrNil(in.Description),
		RepoURL:       trimmedOrNil(in.RepoURL),
		TrackerURL:    trimmedOrNil(in.TrackerURL),
		MobileRepoURL: trimmedOrNil(in.MobileRepoURL),
		LeadSub:       id.Subject,
		CreatedAt:     now,
	}

	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if err := s.projects.Create(ctx, project); err != nil {
			return err
		}
		role := models.TeamRoleLead
		return s.projects.AddMember(ctx, &models.TeamMember{
			ProjectID:  project.ID,
			MemberSub:  id.Subject,
			RoleInTeam: &role,
			AddedAt:    now,
		})
	})
	if err != nil {
		return nil, services.WrapInternal("failed to create project", err)
	}

	s.logger.Info("project created",
		zap.Int64("project_id", project.ID),
		zap.String("lead_sub", project.LeadSub))
	return project, nil
}

// List returns every project to teachers and the caller's own projects to students
func (s *Service) List(ctx context.Context, id *auth.Identity) ([]*models.Project, error) {
	var (
		projects []*models.Project
		err      error
	)
	if id.IsTeacher() {
		projects, err = s.projects.List(ctx)
	} else {
		projects, err = s.projects.ListForMember(ctx, id.Subject)
	}
	if err != nil {
		return nil, services.WrapInternal("failed to list projects", err)
	}
	return projects, nil
}

// Get returns a project visible to the caller
func (s *Service) Get(ctx context.Context, id *auth.Identity, projectID int64) (*models.Project, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.checkView(ctx, id, projectID); err != nil {
		return nil, err
	}
	return project, nil
}

// Members returns the team of a project visible to the caller
func (s *Service) Members(ctx context.Context, id *auth.Identity, projectID int64) ([]*models.TeamMember, error) {
	if _, err := s.load(ctx, projectID); err != nil {
		return nil, err
	}
	if err := s.checkView(ctx, id, projectID); err != nil {
		return nil, err
	}

	members, err := s.projects.ListMembers(ctx, projectID)
	if err != nil {
		return nil, services.WrapInternal("failed to list members", err)
	}
	return members, nil
}

// AddMember puts a student on the lead's team. The project row is locked for
// the duration so concurrent adds cannot overrun the team cap.
func (s *Service) AddMember(ctx context.Context, id *auth.Identity, projectID int64, in MemberInput) (*models.TeamMember, error) {
	sub := strings.TrimSpace(in.MemberSub)
	if sub == "" {
		return nil, services.Validation("member_sub is required")
	}
	if _, err := s.load(ctx, projectID); err != nil {
		return nil, err
	}

	newMobile := ""
	if in.MobileRepoURL != nil {
		newMobile = strings.TrimSpace(*in.MobileRepoURL)
	}

	return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.TeamMember, error) {
		project, err := s.projects.LockByID(ctx, projectID)
		if err != nil {
			return nil, s.mapProjectErr(err)
		}

		candidate, err := s.profiles.GetBySub(ctx, sub)
		if err != nil {
			if !errors.Is(err, repositories.ErrNotFound) {
				return nil, services.WrapInternal("failed to load candidate profile", err)
			}
			candidate = nil
		}

		count, err := s.projects.CountMembers(ctx, projectID)
		if err != nil {
			return nil, services.WrapInternal("failed to count members", err)
		}
		already, err := s.projects.IsMember(ctx, projectID, sub)
		if err != nil {
			return nil, services.WrapInternal("failed to check membership", err)
		}

		decision := s.evaluator.CanAddMember(id, policy.MemberAddition{
			Project:          project,
			Candidate:        candidate,
			MemberCount:      count,
			AlreadyMember:    already,
			NewMobileRepoURL: newMobile,
		})
		if err := decision.Err(); err != nil {
			return nil, err
		}

		if newMobile != "" {
			project.MobileRepoURL = &newMobile
			if err := s.projects.Update(ctx, project); err != nil {
				return nil, services.WrapInternal("failed to store mobile repository", err)
			}
		}

		member := &models.TeamMember{
			ProjectID:  projectID,
			MemberSub:  sub,
			RoleInTeam: trimmedOrNil(in.RoleInTeam),
			AddedAt:    time.Now().UTC(),
			FullName:   candidate.DisplayName(),
		}
		if err := s.projects.AddMember(ctx, member); err != nil {
			return nil, services.WrapInternal("failed to add member", err)
		}

		s.logger.Info("team member added",
			zap.Int64("project_id", projectID),
			zap.String("member_sub", sub),
			zap.Int("team_size", count+1))
		return member, nil
	})
}

// Update edits the descriptive fields of the caller's project
func (s *Service) Update(ctx context.Context, id *auth.Identity, projectID int64, patch Patch) (*models.Project, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.evaluator.CanEditProject(id, project).Err(); err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, services.Validation("name cannot be empty")
		}
		project.Name = name
	}
	if patch.Description != nil {
		project.Description = trimmedOrNil(patch.Description)
	}
	if patch.RepoURL != nil {
		project.RepoURL = trimmedOrNil(patch.RepoURL)
	}
	if patch.TrackerURL != nil {
		project.TrackerURL = trimmedOrNil(patch.TrackerURL)
	}
	if patch.MobileRepoURL != nil {
		project.MobileRepoURL = trimmedOrNil(patch.MobileRepoURL)
		if project.MobileRepoURL == nil {
			count, err := s.projects.CountMembers(ctx, projectID)
			if err != nil {
				return nil, services.WrapInternal("failed to count members", err)
			}
			if err := s.evaluator.CanDropMobileRepo(id, count).Err(); err != nil {
				return nil, err
			}
		}
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, s.mapProjectErr(err)
	}
	return project, nil
}

func (s *Service) load(ctx context.Context, projectID int64) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, s.mapProjectErr(err)
	}
	return project, nil
}

func (s *Service) checkView(ctx context.Context, id *auth.Identity, projectID int64) error {
	isMember := false
	if !id.IsTeacher() {
		var err error
		isMember, err = s.projects.IsMember(ctx, projectID, id.Subject)
		if err != nil {
			return services.WrapInternal("failed to check membership", err)
		}
	}
	return s.evaluator.CanViewProject(id, isMember).Err()
}

func (s *Service) ownsProject(ctx context.Context, sub string) (bool, error) {
	_, err := s.projects.GetByLead(ctx, sub)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repositories.ErrNotFound):
		return false, nil
	default:
		return false, services.WrapInternal("failed to check project ownership", err)
	}
}

func (s *Service) mapProjectErr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return services.ErrProjectNotFound
	}
	return services.WrapInternal("failed to load project", err)
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
