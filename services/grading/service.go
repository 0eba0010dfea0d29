package grading

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/repositories"
	"github.com/upb/siamonitor/services"
	"github.com/upb/siamonitor/services/policy"
	"go.uber.org/zap"
)

// Service manages milestones, grades and the team ranking
type Service struct {
	projects   repositories.ProjectRepository
	milestones repositories.MilestoneRepository
	grades     repositories.GradeRepository
	evaluator  *policy.Evaluator
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new grading service
func NewService(
	projects repositories.ProjectRepository,
	milestones repositories.MilestoneRepository,
	grades repositories.GradeRepository,
	evaluator *policy.Evaluator,
	logger *zap.Logger,
) *Service {
	return &Service{
		projects:   projects,
		milestones: milestones,
		grades:     grades,
		evaluator:  evaluator,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateMilestone adds a course-wide milestone. A deadline, when given, must
// be a YYYY-MM-DD date no earlier than tomorrow in UTC.
func (s *Service) CreateMilestone(ctx context.Context, id *auth.Identity, title string, deadline *string) (*models.Milestone, error) {
	if err := s.evaluator.CanManageMilestones(id).Err(); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, services.Validation("title is required")
	}

	var dl *string
	if deadline != nil && strings.TrimSpace(*deadline) != "" {
		raw := strings.TrimSpace(*deadline)
		d, err := time.Parse(models.DeadlineLayout, raw)
		if err != nil {
			return nil, services.ErrInvalidDeadline
		}
		today := s.now().UTC().Truncate(24 * time.Hour)
		if d.Before(today.AddDate(0, 0, 1)) {
			return nil, services.ErrDeadlineTooSoon
		}
		dl = &raw
	}

	m := &models.Milestone{
		Title:     title,
		Deadline:  dl,
		CreatedAt: s.now().UTC(),
	}
	if err := s.milestones.Create(ctx, m); err != nil {
		return nil, services.WrapInternal("failed to create milestone", err)
	}

	s.logger.Info("milestone created", zap.Int64("milestone_id", m.ID), zap.String("title", m.Title))
	return m, nil
}

// ListMilestones returns every milestone, newest first
func (s *Service) ListMilestones(ctx context.Context) ([]*models.Milestone, error) {
	ms, err := s.milestones.List(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to list milestones", err)
	}
	return ms, nil
}

// Grade records a teacher's grade for a (project, milestone) pair
func (s *Service) Grade(ctx context.Context, id *auth.Identity, projectID, milestoneID int64, value int) (*models.Grade, error) {
	if err := s.evaluator.CanGrade(id, value).Err(); err != nil {
		return nil, err
	}
	if err := s.ensureExists(ctx, projectID, milestoneID); err != nil {
		return nil, err
	}

	g, err := s.grades.UpsertGrade(ctx, projectID, milestoneID, value, id.Subject, s.now().UTC())
	if err != nil {
		return nil, services.WrapInternal("failed to save grade", err)
	}

	s.logger.Info("grade set",
		zap.Int64("project_id", projectID),
		zap.Int64("milestone_id", milestoneID),
		zap.Int("grade", value),
		zap.String("graded_by", id.Subject))
	return g, nil
}

// States returns every milestone with the project's grade and uploads
func (s *Service) States(ctx context.Context, id *auth.Identity, projectID int64) ([]*models.MilestoneState, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrProjectNotFound
		}
		return nil, services.WrapInternal("failed to load project", err)
	}

	isMember := false
	if !id.IsTeacher() {
		var err error
		if isMember, err = s.projects.IsMember(ctx, projectID, id.Subject); err != nil {
			return nil, services.WrapInternal("failed to check membership", err)
		}
	}
	if err := s.evaluator.CanViewProject(id, isMember).Err(); err != nil {
		return nil, err
	}

	states, err := s.grades.ListStates(ctx, projectID)
	if err != nil {
		return nil, services.WrapInternal("failed to list milestone states", err)
	}
	return states, nil
}

// Rating ranks projects by average grade, ungraded projects last, ties by ID
func (s *Service) Rating(ctx context.Context, id *auth.Identity) ([]*models.RatingRow, error) {
	if err := s.evaluator.CanViewRating(id).Err(); err != nil {
		return nil, err
	}

	rows, err := s.grades.Rating(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to build rating", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.AvgGrade != nil && b.AvgGrade != nil && *a.AvgGrade != *b.AvgGrade:
			return *a.AvgGrade > *b.AvgGrade
		case a.AvgGrade != nil && b.AvgGrade == nil:
			return true
		case a.AvgGrade == nil && b.AvgGrade != nil:
			return false
		}
		return a.ProjectID < b.ProjectID
	})
	return rows, nil
}

func (s *Service) ensureExists(ctx context.Context, projectID, milestoneID int64) error {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrProjectNotFound
		}
		return services.WrapInternal("failed to load project", err)
	}
	if _, err := s.milestones.GetByID(ctx, milestoneID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrMilestoneNotFound
		}
		return services.WrapInternal("failed to load milestone", err)
	}
	return nil
}
