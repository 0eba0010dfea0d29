package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/repositories"
	"go.uber.org/zap"
)

// ProjectRepository implements the repositories.ProjectRepository interface
type ProjectRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *DB, logger *zap.Logger) repositories.ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

const projectColumns = `p.id, p.name, p.description, p.repo_url, p.tracker_url, p.mobile_repo_url, p.lead_sub, p.created_at`

// Create inserts a new project
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (name, description, repo_url, tracker_url, mobile_repo_url, lead_sub, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		project.Name,
		project.Description,
		project.RepoURL,
		project.TrackerURL,
		project.MobileRepoURL,
		project.LeadSub,
		project.CreatedAt,
	).Scan(&project.ID)

	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	r.logger.Debug("project created", zap.Int64("id", project.ID), zap.String("lead_sub", project.LeadSub))
	return nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.id = $1`
	return r.getOne(ctx, query, id)
}

// LockByID retrieves a project with a row lock held for the transaction
func (r *ProjectRepository) LockByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

// GetByLead retrieves the project owned by a lead
func (r *ProjectRepository) GetByLead(ctx context.Context, leadSub string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.lead_sub = $1`
	return r.getOne(ctx, query, leadSub)
}

func (r *ProjectRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Project, error) {
	executor := GetExecutor(ctx, r.db)
	project, err := scanProject(executor.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %v: %w", arg, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// List retrieves every project, newest first
func (r *ProjectRepository) List(ctx context.Context) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p ORDER BY p.id DESC`
	return r.list(ctx, query)
}

// ListForMember retrieves the projects a subject belongs to, newest first
func (r *ProjectRepository) ListForMember(ctx context.Context, memberSub string) ([]*models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		JOIN team_members tm ON tm.project_id = p.id
		WHERE tm.member_sub = $1
		ORDER BY p.id DESC
	`
	return r.list(ctx, query, memberSub)
}

func (r *ProjectRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Project, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// Update writes the descriptive columns of a project
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET name = $2, description = $3, repo_url = $4, tracker_url = $5, mobile_repo_url = $6
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.RepoURL,
		project.TrackerURL,
		project.MobileRepoURL,
	)

	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("project %d: %w", project.ID, repositories.ErrNotFound)
	}

	r.logger.Debug("project updated", zap.Int64("id", project.ID))
	return nil
}

// AddMember inserts a team member
func (r *ProjectRepository) AddMember(ctx context.Context, member *models.TeamMember) error {
	query := `
		INSERT INTO team_members (project_id, member_sub, role_in_team, added_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		member.ProjectID,
		member.MemberSub,
		member.RoleInTeam,
		member.AddedAt,
	).Scan(&member.ID)

	if err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}

	r.logger.Debug("team member added",
		zap.Int64("project_id", member.ProjectID),
		zap.String("member_sub", member.MemberSub))
	return nil
}

// CountMembers counts the members of a project
func (r *ProjectRepository) CountMembers(ctx context.Context, projectID int64) (int, error) {
	query := `SELECT COUNT(*) FROM team_members WHERE project_id = $1`

	executor := GetExecutor(ctx, r.db)
	var count int
	if err := executor.QueryRowContext(ctx, query, projectID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count team members: %w", err)
	}
	return count, nil
}

// IsMember reports whether a subject is on the team
func (r *ProjectRepository) IsMember(ctx context.Context, projectID int64, memberSub string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM team_members WHERE project_id = $1 AND member_sub = $2)`

	executor := GetExecutor(ctx, r.db)
	var exists bool
	if err := executor.QueryRowContext(ctx, query, projectID, memberSub).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return exists, nil
}

// ListMembers retrieves the team, resolving display names from profiles
func (r *ProjectRepository) ListMembers(ctx context.Context, projectID int64) ([]*models.TeamMember, error) {
	query := `
		SELECT tm.id, tm.project_id, tm.member_sub, tm.role_in_team, tm.added_at,
		       COALESCE(NULLIF(up.full_name, ''), NULLIF(up.username, ''), NULLIF(up.email, ''), '')
		FROM team_members tm
		LEFT JOIN user_profiles up ON up.sub = tm.member_sub
		WHERE tm.project_id = $1
		ORDER BY tm.id ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.TeamMember, 0)
	for rows.Next() {
		m := &models.TeamMember{}
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.MemberSub, &m.RoleInTeam, &m.AddedAt, &m.FullName); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team members: %w", err)
	}

	return members, nil
}

// RemoveMemberships deletes every membership of a subject
func (r *ProjectRepository) RemoveMemberships(ctx context.Context, memberSub string) (int64, error) {
	query := `DELETE FROM team_members WHERE member_sub = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, memberSub)
	if err != nil {
		return 0, fmt.Errorf("failed to remove memberships: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Debug("memberships removed", zap.String("member_sub", memberSub), zap.Int64("count", rows))
	return rows, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.RepoURL,
		&p.TrackerURL,
		&p.MobileRepoURL,
		&p.LeadSub,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
