package admin

import (
	"context"

	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/repositories"
	"github.com/upb/siamonitor/services"
	"github.com/upb/siamonitor/services/policy"
	"go.uber.org/zap"
)

// FileWiper clears every stored upload
type FileWiper interface {
	Wipe() error
}

// WipeResult is the outcome of a course reset
type WipeResult struct {
	OK         bool               `json:"ok"`
	Deleted    *models.WipeReport `json:"deleted"`
	FilesError *string            `json:"files_error"`
}

// Service performs course-wide maintenance
type Service struct {
	wipe      repositories.WipeRepository
	files     FileWiper
	txMgr     repositories.TransactionManager
	evaluator *policy.Evaluator
	logger    *zap.Logger
}

// NewService creates a new admin service
func NewService(
	wipe repositories.WipeRepository,
	files FileWiper,
	txMgr repositories.TransactionManager,
	evaluator *policy.Evaluator,
	logger *zap.Logger,
) *Service {
	return &Service{
		wipe:      wipe,
		files:     files,
		txMgr:     txMgr,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Wipe removes every upload, then every grade, member, project, milestone and
// student profile in one transaction. A file removal failure is reported in
// the result and does not stop the database wipe.
func (s *Service) Wipe(ctx context.Context, id *auth.Identity) (*WipeResult, error) {
	if err := s.evaluator.CanWipe(id).Err(); err != nil {
		return nil, err
	}

	var filesErr *string
	if err := s.files.Wipe(); err != nil {
		msg := err.Error()
		filesErr = &msg
		s.logger.Error("failed to wipe uploads", zap.Error(err))
	}

	report, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.WipeReport, error) {
		return s.wipe.WipeAll(ctx)
	})
	if err != nil {
		return nil, services.WrapInternal("database wipe failed", err)
	}

	s.logger.Warn("course data wiped",
		zap.String("by", id.Subject),
		zap.Int64("grades", report.Grades),
		zap.Int64("members", report.Members),
		zap.Int64("projects", report.Projects),
		zap.Int64("milestones", report.Milestones),
		zap.Int64("student_profiles", report.StudentProfiles),
		zap.Bool("files_ok", filesErr == nil))

	return &WipeResult{OK: true, Deleted: report, FilesError: filesErr}, nil
}
