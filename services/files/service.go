package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/repositories"
	"github.com/upb/siamonitor/services"
	"github.com/upb/siamonitor/services/policy"
	"github.com/upb/siamonitor/storage"
	"go.uber.org/zap"
)

// Store persists uploaded artifacts
type Store interface {
	Save(ctx context.Context, projectID, milestoneID int64, kind, filename string, r io.Reader, maxBytes int64) (rel string, replaced []string, err error)
	Open(rel string) (*os.File, os.FileInfo, error)
	Remove(rels ...string) error
}

// Part is one uploaded artifact
type Part struct {
	Kind     models.FileKind
	Filename string
	Body     io.Reader
}

// Download is an opened artifact. The caller closes File.
type Download struct {
	File *os.File
	Info os.FileInfo
}

// Service stores and serves milestone artifacts
type Service struct {
	projects   repositories.ProjectRepository
	milestones repositories.MilestoneRepository
	grades     repositories.GradeRepository
	store      Store
	evaluator  *policy.Evaluator
	maxBytes   int64
	logger     *zap.Logger
}

// NewService creates a new files service. maxBytes caps each part.
func NewService(
	projects repositories.ProjectRepository,
	milestones repositories.MilestoneRepository,
	grades repositories.GradeRepository,
	store Store,
	evaluator *policy.Evaluator,
	maxBytes int64,
	logger *zap.Logger,
) *Service {
	return &Service{
		projects:   projects,
		milestones: milestones,
		grades:     grades,
		store:      store,
		evaluator:  evaluator,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// MaxBytes returns the per-part size limit
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores each part in its slot and records the paths on the
// (project, milestone) row. Files a part replaces are deleted only after the
// new path is recorded, so a failed write leaves the row pointing at a file.
func (s *Service) Upload(ctx context.Context, id *auth.Identity, projectID, milestoneID int64, parts []Part) (*models.Grade, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.milestones.GetByID(ctx, milestoneID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrMilestoneNotFound
		}
		return nil, services.WrapInternal("failed to load milestone", err)
	}

	isMember, err := s.isMember(ctx, id, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.evaluator.CanUpload(id, project, isMember).Err(); err != nil {
		return nil, err
	}

	if len(parts) == 0 {
		return nil, services.ErrNoFiles
	}
	for _, p := range parts {
		if !models.IsValidFileKind(p.Kind) {
			return nil, services.ErrInvalidFileKind
		}
	}

	var row *models.Grade
	for _, p := range parts {
		rel, replaced, err := s.store.Save(ctx, projectID, milestoneID, string(p.Kind), p.Filename, p.Body, s.maxBytes)
		if err != nil {
			if errors.Is(err, storage.ErrTooLarge) {
				return nil, services.Validation(fmt.Sprintf("%s exceeds %d bytes", p.Kind, s.maxBytes))
			}
			return nil, services.ErrStorageFailed.WithCause(err)
		}

		row, err = s.grades.SetFilePath(ctx, projectID, milestoneID, p.Kind, rel)
		if err != nil {
			return nil, services.WrapInternal("failed to record upload", err)
		}

		if err := s.store.Remove(replaced...); err != nil {
			s.logger.Warn("failed to remove replaced artifact",
				zap.Strings("paths", replaced),
				zap.Error(err))
		}

		s.logger.Info("artifact uploaded",
			zap.Int64("project_id", projectID),
			zap.Int64("milestone_id", milestoneID),
			zap.String("kind", string(p.Kind)),
			zap.String("path", rel),
			zap.String("by", id.Subject))
	}
	return row, nil
}

// Download opens a stored artifact for a teacher, member or the lead
func (s *Service) Download(ctx context.Context, id *auth.Identity, projectID, milestoneID int64, kind models.FileKind) (*Download, error) {
	if !models.IsValidFileKind(kind) {
		return nil, services.ErrInvalidFileKind
	}

	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.isMember(ctx, id, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.evaluator.CanDownload(id, project, isMember).Err(); err != nil {
		return nil, err
	}

	row, err := s.grades.Get(ctx, projectID, milestoneID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrFilesNotFound
		}
		return nil, services.WrapInternal("failed to load files", err)
	}

	rel := row.PathFor(kind)
	if rel == nil || *rel == "" {
		return nil, services.ErrFileNotUploaded
	}

	f, info, err := s.store.Open(*rel)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
			s.logger.Warn("recorded artifact missing",
				zap.Int64("project_id", projectID),
				zap.Int64("milestone_id", milestoneID),
				zap.String("path", *rel),
				zap.Error(err))
			return nil, services.ErrFileMissing
		}
		return nil, services.WrapInternal("failed to open file", err)
	}
	return &Download{File: f, Info: info}, nil
}

func (s *Service) loadProject(ctx context.Context, projectID int64) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrProjectNotFound
		}
		return nil, services.WrapInternal("failed to load project", err)
	}
	return project, nil
}

func (s *Service) isMember(ctx context.Context, id *auth.Identity, projectID int64) (bool, error) {
	if id.IsTeacher() {
		return false, nil
	}
	ok, err := s.projects.IsMember(ctx, projectID, id.Subject)
	if err != nil {
		return false, services.WrapInternal("failed to check membership", err)
	}
	return ok, nil
}
