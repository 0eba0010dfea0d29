package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/middleware"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/services/admin"
	"github.com/upb/siamonitor/services/files"
	"github.com/upb/siamonitor/services/profile"
	"github.com/upb/siamonitor/services/project"
)

var (
	teacherID = &auth.Identity{Subject: "t-1", Username: "prof", Roles: []string{auth.RoleTeacher}}
	studentID = &auth.Identity{Subject: "s-1", Username: "stud", Email: "s1@uni.test", Roles: []string{auth.RoleStudent}}
)

// route serves one request through a chi router so URL params resolve. A nil
// identity leaves the request unauthenticated.
func route(method, pattern, target string, h http.HandlerFunc, id *auth.Identity, body io.Reader, contentType string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id != nil {
				req = req.WithContext(middleware.WithIdentity(req.Context(), id))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Method(method, pattern, h)

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Get(ctx context.Context, id *auth.Identity) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) Update(ctx context.Context, id *auth.Identity, upd profile.Update) (*models.Profile, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) Create(ctx context.Context, id *auth.Identity, in project.CreateInput) (*models.Project, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectService) List(ctx context.Context, id *auth.Identity) ([]*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Project), args.Error(1)
}

func (m *MockProjectService) Get(ctx context.Context, id *auth.Identity, projectID int64) (*models.Project, error) {
	args := m.Called(ctx, id, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectService) Members(ctx context.Context, id *auth.Identity, projectID int64) ([]*models.TeamMember, error) {
	args := m.Called(ctx, id, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TeamMember), args.Error(1)
}

func (m *MockProjectService) AddMember(ctx context.Context, id *auth.Identity, projectID int64, in project.MemberInput) (*models.TeamMember, error) {
	args := m.Called(ctx, id, projectID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TeamMember), args.Error(1)
}

func (m *MockProjectService) Update(ctx context.Context, id *auth.Identity, projectID int64, patch project.Patch) (*models.Project, error) {
	args := m.Called(ctx, id, projectID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

type MockGradingService struct {
	mock.Mock
}

func (m *MockGradingService) CreateMilestone(ctx context.Context, id *auth.Identity, title string, deadline *string) (*models.Milestone, error) {
	args := m.Called(ctx, id, title, deadline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Milestone), args.Error(1)
}

func (m *MockGradingService) ListMilestones(ctx context.Context) ([]*models.Milestone, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Milestone), args.Error(1)
}

func (m *MockGradingService) Grade(ctx context.Context, id *auth.Identity, projectID, milestoneID int64, value int) (*models.Grade, error) {
	args := m.Called(ctx, id, projectID, milestoneID, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Grade), args.Error(1)
}

func (m *MockGradingService) States(ctx context.Context, id *auth.Identity, projectID int64) ([]*models.MilestoneState, error) {
	args := m.Called(ctx, id, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MilestoneState), args.Error(1)
}

func (m *MockGradingService) Rating(ctx context.Context, id *auth.Identity) ([]*models.RatingRow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RatingRow), args.Error(1)
}

type MockFileService struct {
	mock.Mock
	maxBytes int64
}

func (m *MockFileService) Upload(ctx context.Context, id *auth.Identity, projectID, milestoneID int64, parts []files.Part) (*models.Grade, error) {
	args := m.Called(ctx, id, projectID, milestoneID, parts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Grade), args.Error(1)
}

func (m *MockFileService) Download(ctx context.Context, id *auth.Identity, projectID, milestoneID int64, kind models.FileKind) (*files.Download, error) {
	args := m.Called(ctx, id, projectID, milestoneID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*files.Download), args.Error(1)
}

func (m *MockFileService) MaxBytes() int64 {
	return m.maxBytes
}

type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) Wipe(ctx context.Context, id *auth.Identity) (*admin.WipeResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*admin.WipeResult), args.Error(1)
}
