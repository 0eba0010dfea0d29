// Package mocks provides testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/repositories"
)

// ProfileRepository is a mock implementation of repositories.ProfileRepository
type ProfileRepository struct {
	mock.Mock
}

func (m *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *ProfileRepository) GetBySub(ctx context.Context, sub string) (*models.Profile, error) {
	args := m.Called(ctx, sub)
	if p := args.Get(0); p != nil {
		return p.(*models.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

// ProjectRepository is a mock implementation of repositories.ProjectRepository
type ProjectRepository struct {
	mock.Mock
}

func (m *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *ProjectRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) LockByID(ctx context.Context, id int64) (*models.Project, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) GetByLead(ctx context.Context, leadSub string) (*models.Project, error) {
	args := m.Called(ctx, leadSub)
	if p := args.Get(0); p != nil {
		return p.(*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) List(ctx context.Context) ([]*models.Project, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.([]*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) ListForMember(ctx context.Context, memberSub string) ([]*models.Project, error) {
	args := m.Called(ctx, memberSub)
	if p := args.Get(0); p != nil {
		return p.([]*models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *ProjectRepository) AddMember(ctx context.Context, member *models.TeamMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *ProjectRepository) CountMembers(ctx context.Context, projectID int64) (int, error) {
	args := m.Called(ctx, projectID)
	return args.Int(0), args.Error(1)
}

func (m *ProjectRepository) IsMember(ctx context.Context, projectID int64, memberSub string) (bool, error) {
	args := m.Called(ctx, projectID, memberSub)
	return args.Bool(0), args.Error(1)
}

func (m *ProjectRepository) ListMembers(ctx context.Context, projectID int64) ([]*models.TeamMember, error) {
	args := m.Called(ctx, projectID)
	if p := args.Get(0); p != nil {
		return p.([]*models.TeamMember), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) RemoveMemberships(ctx context.Context, memberSub string) (int64, error) {
	args := m.Called(ctx, memberSub)
	return args.Get(0).(int64), args.Error(1)
}

// MilestoneRepository is a mock implementation of repositories.MilestoneRepository
type MilestoneRepository struct {
	mock.Mock
}

func (m *MilestoneRepository) Create(ctx context.Context, milestone *models.Milestone) error {
	args := m.Called(ctx, milestone)
	return args.Error(0)
}

func (m *MilestoneRepository) GetByID(ctx context.Context, id int64) (*models.Milestone, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.Milestone), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MilestoneRepository) List(ctx context.Context) ([]*models.Milestone, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.([]*models.Milestone), args.Error(1)
	}
	return nil, args.Error(1)
}

// GradeRepository is a mock implementation of repositories.GradeRepository
type GradeRepository struct {
	mock.Mock
}

func (m *GradeRepository) Get(ctx context.Context, projectID, milestoneID int64) (*models.Grade, error) {
	args := m.Called(ctx, projectID, milestoneID)
	if p := args.Get(0); p != nil {
		return p.(*models.Grade), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *GradeRepository) UpsertGrade(ctx context.Context, projectID, milestoneID int64, grade int, gradedBy string, gradedAt time.Time) (*models.Grade, error) {
	args := m.Called(ctx, projectID, milestoneID, grade, gradedBy, gradedAt)
	if p := args.Get(0); p != nil {
		return p.(*models.Grade), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *GradeRepository) SetFilePath(ctx context.Context, projectID, milestoneID int64, kind models.FileKind, path string) (*models.Grade, error) {
	args := m.Called(ctx, projectID, milestoneID, kind, path)
	if p := args.Get(0); p != nil {
		return p.(*models.Grade), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *GradeRepository) ListStates(ctx context.Context, projectID int64) ([]*models.MilestoneState, error) {
	args := m.Called(ctx, projectID)
	if p := args.Get(0); p != nil {
		return p.([]*models.MilestoneState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *GradeRepository) Rating(ctx context.Context) ([]*models.RatingRow, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.([]*models.RatingRow), args.Error(1)
	}
	return nil, args.Error(1)
}

// WipeRepository is a mock implementation of repositories.WipeRepository
type WipeRepository struct {
	mock.Mock
}

func (m *WipeRepository) WipeAll(ctx context.Context) (*models.WipeReport, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.(*models.WipeReport), args.Error(1)
	}
	return nil, args.Error(1)
}

// TransactionManager hands out Transactions that record their outcome
type TransactionManager struct {
	mu        sync.Mutex
	BeginErr  error
	Commits   int
	Rollbacks int
}

func (m *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	return &Transaction{ctx: ctx, mgr: m}, nil
}

func (m *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx.Context(), tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Transaction is returned by TransactionManager
type Transaction struct {
	ctx context.Context
	mgr *TransactionManager
}

func (t *Transaction) Commit() error {
	t.mgr.mu.Lock()
	t.mgr.Commits++
	t.mgr.mu.Unlock()
	return nil
}

func (t *Transaction) Rollback() error {
	t.mgr.mu.Lock()
	t.mgr.Rollbacks++
	t.mgr.mu.Unlock()
	return nil
}

func (t *Transaction) Context() context.Context {
	return t.ctx
}

// Repositories bundles fresh mocks
type Repositories struct {
	Profiles   *ProfileRepository
	Projects   *ProjectRepository
	Milestones *MilestoneRepository
	Grades     *GradeRepository
	Wipe       *WipeRepository
	Tx         *TransactionManager
}

// New creates a set of mocks
func New() *Repositories {
	return &Repositories{
		Profiles:   new(ProfileRepository),
		Projects:   new(ProjectRepository),
		Milestones: new(MilestoneRepository),
		Grades:     new(GradeRepository),
		Wipe:       new(WipeRepository),
		Tx:         new(TransactionManager),
	}
}

// Repositories returns the mocks behind the repository interfaces
func (r *Repositories) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Profiles:   r.Profiles,
		Projects:   r.Projects,
		Milestones: r.Milestones,
		Grades:     r.Grades,
		Wipe:       r.Wipe,
	}
}

// AssertExpectations checks every testify mock
func (r *Repositories) AssertExpectations(t mock.TestingT) {
	r.Profiles.AssertExpectations(t)
	r.Projects.AssertExpectations(t)
	r.Milestones.AssertExpectations(t)
	r.Grades.AssertExpectations(t)
	r.Wipe.AssertExpectations(t)
}
