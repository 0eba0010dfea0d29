package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/repositories"
	"go.uber.org/zap"
)

// GradeRepository implements the repositories.GradeRepository interface
type GradeRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewGradeRepository creates a new grade repository
func NewGradeRepository(db *DB, logger *zap.Logger) repositories.GradeRepository {
	return &GradeRepository{
		db:     db,
		logger: logger,
	}
}

const gradeColumns = `id, project_id, milestone_id, grade, presentation_path, report_path, graded_by_sub, graded_at`

// Get retrieves the row for a (project, milestone) pair
func (r *GradeRepository) Get(ctx context.Context, projectID, milestoneID int64) (*models.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM project_milestone_grades WHERE project_id = $1 AND milestone_id = $2`

	executor := GetExecutor(ctx, r.db)
	g, err := scanGrade(executor.QueryRowContext(ctx, query, projectID, milestoneID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("grade %d/%d: %w", projectID, milestoneID, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get grade: %w", err)
	}
	return g, nil
}

// UpsertGrade sets the grade on the pair's row, creating it when absent
func (r *GradeRepository) UpsertGrade(ctx context.Context, projectID, milestoneID int64, grade int, gradedBy string, gradedAt time.Time) (*models.Grade, error) {
	query := `
		INSERT INTO project_milestone_grades (project_id, milestone_id, grade, graded_by_sub, graded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, milestone_id) DO UPDATE
		SET grade = EXCLUDED.grade, graded_by_sub = EXCLUDED.graded_by_sub, graded_at = EXCLUDED.graded_at
		RETURNING ` + gradeColumns

	executor := GetExecutor(ctx, r.db)
	g, err := scanGrade(executor.QueryRowContext(ctx, query, projectID, milestoneID, grade, gradedBy, gradedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert grade: %w", err)
	}

	r.logger.Debug("grade set",
		zap.Int64("project_id", projectID),
		zap.Int64("milestone_id", milestoneID),
		zap.Int("grade", grade))
	return g, nil
}

// SetFilePath records the relative path of an uploaded artifact
func (r *GradeRepository) SetFilePath(ctx context.Context, projectID, milestoneID int64, kind models.FileKind, path string) (*models.Grade, error) {
	var column string
	switch kind {
	case models.FileKindPresentation:
		column = "presentation_path"
	case models.FileKindReport:
		column = "report_path"
	default:
		return nil, fmt.Errorf("unknown file kind %q", kind)
	}

	query := fmt.Sprintf(`
		INSERT INTO project_milestone_grades (project_id, milestone_id, %[1]s)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, milestone_id) DO UPDATE SET %[1]s = EXCLUDED.%[1]s
		RETURNING %[2]s`, column, gradeColumns)

	executor := GetExecutor(ctx, r.db)
	g, err := scanGrade(executor.QueryRowContext(ctx, query, projectID, milestoneID, path))
	if err != nil {
		return nil, fmt.Errorf("failed to record %s path: %w", kind, err)
	}

	r.logger.Debug("file path recorded",
		zap.Int64("project_id", projectID),
		zap.Int64("milestone_id", milestoneID),
		zap.String("kind", string(kind)))
	return g, nil
}

// ListStates retrieves every milestone, oldest first, with the project's row joined
func (r *GradeRepository) ListStates(ctx context.Context, projectID int64) ([]*models.MilestoneState, error) {
	query := `
		SELECT m.id, m.title, m.deadline, g.grade, g.presentation_path, g.report_path
		FROM milestones m
		LEFT JOIN project_milestone_grades g ON g.milestone_id = m.id AND g.project_id = $1
		ORDER BY m.id ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestone states: %w", err)
	}
	defer rows.Close()

	states := make([]*models.MilestoneState, 0)
	for rows.Next() {
		s := &models.MilestoneState{ProjectID: projectID}
		var grade sql.NullInt64
		if err := rows.Scan(&s.MilestoneID, &s.Title, &s.Deadline, &grade, &s.PresentationPath, &s.ReportPath); err != nil {
			return nil, fmt.Errorf("failed to scan milestone state: %w", err)
		}
		if grade.Valid {
			v := int(grade.Int64)
			s.Grade = &v
		}
		states = append(states, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating milestone states: %w", err)
	}

	return states, nil
}

// Rating aggregates team size and grades per project, ordered by project ID.
// Team sizes and grades are read separately so members never multiply grades.
func (r *GradeRepository) Rating(ctx context.Context) ([]*models.RatingRow, error) {
	executor := GetExecutor(ctx, r.db)

	projectQuery := `
		SELECT p.id, p.name, (SELECT COUNT(*) FROM team_members tm WHERE tm.project_id = p.id)
		FROM projects p
		ORDER BY p.id ASC
	`
	rows, err := executor.QueryContext(ctx, projectQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating projects: %w", err)
	}

	out := make([]*models.RatingRow, 0)
	byID := make(map[int64]*models.RatingRow)
	for rows.Next() {
		row := &models.RatingRow{Grades: []int{}}
		if err := rows.Scan(&row.ProjectID, &row.ProjectName, &row.TeamSize); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan rating project: %w", err)
		}
		out = append(out, row)
		byID[row.ProjectID] = row
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating rating projects: %w", err)
	}
	rows.Close()

	gradeQuery := `
		SELECT project_id, grade
		FROM project_milestone_grades
		WHERE grade IS NOT NULL
		ORDER BY project_id ASC, milestone_id ASC
	`
	gradeRows, err := executor.QueryContext(ctx, gradeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list grades: %w", err)
	}
	defer gradeRows.Close()

	for gradeRows.Next() {
		var projectID int64
		var grade int
		if err := gradeRows.Scan(&projectID, &grade); err != nil {
			return nil, fmt.Errorf("failed to scan grade: %w", err)
		}
		if row, ok := byID[projectID]; ok {
			row.Grades = append(row.Grades, grade)
		}
	}
	if err := gradeRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grades: %w", err)
	}

	for _, row := range out {
		if len(row.Grades) == 0 {
			continue
		}
		sum := 0
		for _, g := range row.Grades {
			sum += g
		}
		avg := float64(sum) / float64(len(row.Grades))
		row.AvgGrade = &avg
	}

	return out, nil
}

func scanGrade(row rowScanner) (*models.Grade, error) {
	g := &models.Grade{}
	var grade sql.NullInt64
	var gradedAt sql.NullTime
	err := row.Scan(
		&g.ID,
		&g.ProjectID,
		&g.MilestoneID,
		&grade,
		&g.PresentationPath,
		&g.ReportPath,
		&g.GradedBySub,
		&gradedAt,
	)
	if err != nil {
		return nil, err
	}
	if grade.Valid {
		v := int(grade.Int64)
		g.Grade = &v
	}
	if gradedAt.Valid {
		t := gradedAt.Time
		g.GradedAt = &t
	}
	return g, nil
}
