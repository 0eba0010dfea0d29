package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/upb/siamonitor/models"
)

// ErrNotFound is returned (wrapped) when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns a context carrying the transaction. Repository calls made
	// with it run inside the transaction.
	Context() context.Context
}

// ProfileRepository handles user profile data operations
type ProfileRepository interface {
	// Create inserts a profile and fills its ID and CreatedAt
	Create(ctx context.Context, profile *models.Profile) error

	// GetBySub retrieves a profile by identity provider subject
	GetBySub(ctx context.Context, sub string) (*models.Profile, error)

	// Update writes every mutable column of the profile
	Update(ctx context.Context, profile *models.Profile) error
}

// ProjectRepository handles projects and their team membership
type ProjectRepository interface {
	// Create inserts a project and fills its ID and CreatedAt
	Create(ctx context.Context, project *models.Project) error

	// GetByID retrieves a project by ID
	GetByID(ctx context.Context, id int64) (*models.Project, error)

	// LockByID retrieves a project and locks its row until the surrounding
	// transaction ends. Outside a transaction it behaves like GetByID.
	LockByID(ctx context.Context, id int64) (*models.Project, error)

	// GetByLead retrieves the project owned by a lead
	GetByLead(ctx context.Context, leadSub string) (*models.Project, error)

	// List retrieves every project, newest first
	List(ctx context.Context) ([]*models.Project, error)

	// ListForMember retrieves the projects a subject belongs to, newest first
	ListForMember(ctx context.Context, memberSub string) ([]*models.Project, error)

	// Update writes the project's descriptive columns
	Update(ctx context.Context, project *models.Project) error

	// AddMember inserts a team member and fills its ID and AddedAt
	AddMember(ctx context.Context, member *models.TeamMember) error

	// CountMembers counts the members of a project, lead included
	CountMembers(ctx context.Context, projectID int64) (int, error)

	// IsMember reports whether a subject is on the project's team
	IsMember(ctx context.Context, projectID int64, memberSub string) (bool, error)

	// ListMembers retrieves the team with display names resolved from profiles
	ListMembers(ctx context.Context, projectID int64) ([]*models.TeamMember, error)

	// RemoveMemberships deletes every membership row of a subject
	RemoveMemberships(ctx context.Context, memberSub string) (int64, error)
}

// MilestoneRepository handles milestone data operations
type MilestoneRepository interface {
	// Create inserts a milestone and fills its ID and CreatedAt
	Create(ctx context.Context, milestone *models.Milestone) error

	// GetByID retrieves a milestone by ID
	GetByID(ctx context.Context, id int64) (*models.Milestone, error)

	// List retrieves every milestone, newest first
	List(ctx context.Context) ([]*models.Milestone, error)
}

// GradeRepository handles the (project, milestone) grade rows
type GradeRepository interface {
	// Get retrieves the row for a (project, milestone) pair
	Get(ctx context.Context, projectID, milestoneID int64) (*models.Grade, error)

	// UpsertGrade sets the grade on the pair's row, creating it when absent
	UpsertGrade(ctx context.Context, projectID, milestoneID int64, grade int, gradedBy string, gradedAt time.Time) (*models.Grade, error)

	// SetFilePath records the relative path of an uploaded artifact, creating the row when absent
	SetFilePath(ctx context.Context, projectID, milestoneID int64, kind models.FileKind, path string) (*models.Grade, error)

	// ListStates retrieves every milestone, oldest first, with this project's grade row joined
	ListStates(ctx context.Context, projectID int64) ([]*models.MilestoneState, error)

	// Rating aggregates team size and grades per project, ordered by project ID
	Rating(ctx context.Context) ([]*models.RatingRow, error)
}

// WipeRepository clears course data
type WipeRepository interface {
	// WipeAll deletes grades, members, projects, milestones and non-teacher
	// profiles in that order. Callers run it inside a transaction.
	WipeAll(ctx context.Context) (*models.WipeReport, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Profiles   ProfileRepository
	Projects   ProjectRepository
	Milestones MilestoneRepository
	Grades     GradeRepository
	Wipe       WipeRepository
}
