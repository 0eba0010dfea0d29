package postgres

import (
	"context"
	"fmt"

	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/repositories"
	"go.uber.org/zap"
)

// WipeRepository implements the repositories.WipeRepository interface
type WipeRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewWipeRepository creates a new wipe repository
func NewWipeRepository(db *DB, logger *zap.Logger) repositories.WipeRepository {
	return &WipeRepository{
		db:     db,
		logger: logger,
	}
}

// WipeAll deletes course data children first. Teacher profiles survive.
func (r *WipeRepository) WipeAll(ctx context.Context) (*models.WipeReport, error) {
	report := &models.WipeReport{}
	steps := []struct {
		name  string
		query string
		into  *int64
	}{
		{"grades", `DELETE FROM project_milestone_grades`, &report.Grades},
		{"members", `DELETE FROM team_members`, &report.Members},
		{"projects", `DELETE FROM projects`, &report.Projects},
		{"milestones", `DELETE FROM milestones`, &report.Milestones},
		{"student_profiles", `DELETE FROM user_profiles WHERE mode <> 'teacher' OR mode IS NULL`, &report.StudentProfiles},
	}

	executor := GetExecutor(ctx, r.db)
	for _, step := range steps {
		result, err := executor.ExecContext(ctx, step.query)
		if err != nil {
			return nil, fmt.Errorf("failed to wipe %s: %w", step.name, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		*step.into = n
	}

	r.logger.Info("course data wiped",
		zap.Int64("grades", report.Grades),
		zap.Int64("members", report.Members),
		zap.Int64("projects", report.Projects),
		zap.Int64("milestones", report.Milestones),
		zap.Int64("student_profiles", report.StudentProfiles))
	return report, nil
}
