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

// ProfileRepository implements the repositories.ProfileRepository interface
type ProfileRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB, logger *zap.Logger) repositories.ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

const profileColumns = `id, sub, username, email, mode, full_name, group_no, tg, created_at`

// Create inserts a new profile
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO user_profiles (sub, username, email, mode, full_name, group_no, tg, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		profile.Sub,
		profile.Username,
		profile.Email,
		profile.Mode,
		profile.FullName,
		profile.GroupNo,
		profile.Tg,
		profile.CreatedAt,
	).Scan(&profile.ID)

	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	r.logger.Debug("profile created", zap.Int64("id", profile.ID), zap.String("sub", profile.Sub))
	return nil
}

// GetBySub retrieves a profile by subject
func (r *ProfileRepository) GetBySub(ctx context.Context, sub string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE sub = $1`

	executor := GetExecutor(ctx, r.db)
	profile := &models.Profile{}

	err := executor.QueryRowContext(ctx, query, sub).Scan(
		&profile.ID,
		&profile.Sub,
		&profile.Username,
		&profile.Email,
		&profile.Mode,
		&profile.FullName,
		&profile.GroupNo,
		&profile.Tg,
		&profile.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", sub, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

// Update writes the mutable columns of a profile
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	query := `
		UPDATE user_profiles
		SET username = $2, email = $3, mode = $4, full_name = $5, group_no = $6, tg = $7
		WHERE sub = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		profile.Sub,
		profile.Username,
		profile.Email,
		profile.Mode,
		profile.FullName,
		profile.GroupNo,
		profile.Tg,
	)

	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("profile %s: %w", profile.Sub, repositories.ErrNotFound)
	}

	r.logger.Debug("profile updated", zap.String("sub", profile.Sub), zap.String("mode", string(profile.Mode)))
	return nil
}
