package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/siamonitor/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Wrap adopts an existing pool, e.g. one opened by sqlmock in tests
func Wrap(sqlDB *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: sqlDB, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// InitSchema creates the tables when they do not exist. It is not a migration system.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Profiles of every subject that has signed in
		CREATE TABLE IF NOT EXISTS user_profiles (
			id BIGSERIAL PRIMARY KEY,
			sub VARCHAR(255) NOT NULL UNIQUE,
			username VARCHAR(255),
			email VARCHAR(255),
			mode VARCHAR(32) NOT NULL DEFAULT 'participant',
			full_name VARCHAR(255),
			group_no VARCHAR(64),
			tg VARCHAR(128),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		-- Course-wide milestones
		CREATE TABLE IF NOT EXISTS milestones (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			deadline VARCHAR(10),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		-- Projects, one per lead
		CREATE TABLE IF NOT EXISTS projects (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			repo_url TEXT,
			tracker_url TEXT,
			mobile_repo_url TEXT,
			lead_sub VARCHAR(255) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		-- Team membership, lead included
		CREATE TABLE IF NOT EXISTS team_members (
			id BIGSERIAL PRIMARY KEY,
			project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			member_sub VARCHAR(255) NOT NULL,
			role_in_team VARCHAR(64),
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(project_id, member_sub)
		);

		-- Grade and artifacts per (project, milestone)
		CREATE TABLE IF NOT EXISTS project_milestone_grades (
			id BIGSERIAL PRIMARY KEY,
			project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			milestone_id BIGINT NOT NULL REFERENCES milestones(id) ON DELETE CASCADE,
			grade INTEGER CHECK (grade BETWEEN 0 AND 5),
			presentation_path TEXT,
			report_path TEXT,
			graded_by_sub VARCHAR(255),
			graded_at TIMESTAMPTZ,
			UNIQUE(project_id, milestone_id)
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_team_members_member_sub ON team_members(member_sub);
		CREATE INDEX IF NOT EXISTS idx_team_members_project_id ON team_members(project_id);
		CREATE INDEX IF NOT EXISTS idx_grades_project_id ON project_milestone_grades(project_id);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
