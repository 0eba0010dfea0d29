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

// MilestoneRepository implements the repositories.MilestoneRepository interface
type MilestoneRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMilestoneRepository creates a new milestone repository
func NewMilestoneRepository(db *DB, logger *zap.Logger) repositories.MilestoneRepository {
	return &MilestoneRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new milestone
func (r *MilestoneRepository) Create(ctx context.Context, milestone *models.Milestone) error {
	query := `
		INSERT INTO milestones (title, deadline, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		milestone.Title,
		milestone.Deadline,
		milestone.CreatedAt,
	).Scan(&milestone.ID)

	if err != nil {
		return fmt.Errorf("failed to create milestone: %w", err)
	}

	r.logger.Debug("milestone created", zap.Int64("id", milestone.ID), zap.String("title", milestone.Title))
	return nil
}

// GetByID retrieves a milestone by ID
func (r *MilestoneRepository) GetByID(ctx context.Context, id int64) (*models.Milestone, error) {
	query := `SELECT id, title, deadline, created_at FROM milestones WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	m := &models.Milestone{}

	err := executor.QueryRowContext(ctx, query, id).Scan(&m.ID, &m.Title, &m.Deadline, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("milestone %d: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}

	return m, nil
}

// List retrieves every milestone, newest first
func (r *MilestoneRepository) List(ctx context.Context) ([]*models.Milestone, error) {
	query := `SELECT id, title, deadline, created_at FROM milestones ORDER BY id DESC`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	milestones := make([]*models.Milestone, 0)
	for rows.Next() {
		m := &models.Milestone{}
		if err := rows.Scan(&m.ID, &m.Title, &m.Deadline, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating milestones: %w", err)
	}

	return milestones, nil
}
