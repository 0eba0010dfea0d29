package handlers

import (
	"context"
	"net/http"

	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/services/project"
	"github.com/upb/siamonitor/utils"
	"go.uber.org/zap"
)

// CreateProjectRequest represents a request to create a project
type CreateProjectRequest struct {
	Name          string  `json:"name" validate:"required,max=200"`
	Description   *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	RepoURL       *string `json:"repo_url,omitempty" validate:"omitempty,url"`
	TrackerURL    *string `json:"tracker_url,omitempty" validate:"omitempty,url"`
	MobileRepoURL *string `json:"mobile_repo_url,omitempty" validate:"omitempty,url"`
}

// UpdateProjectRequest represents a partial project update. An empty string
// clears a field.
type UpdateProjectRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Description   *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	RepoURL       *string `json:"repo_url,omitempty" validate:"omitempty,url"`
	TrackerURL    *string `json:"tracker_url,omitempty" validate:"omitempty,url"`
	MobileRepoURL *string `json:"mobile_repo_url,omitempty" validate:"omitempty,url"`
}

// AddMemberRequest represents a request to add a student to a team
type AddMemberRequest struct {
	MemberSub     string  `json:"member_sub" validate:"required,max=255"`
	RoleInTeam    *string `json:"role_in_team,omitempty" validate:"omitempty,max=100"`
	MobileRepoURL *string `json:"mobile_repo_url,omitempty" validate:"omitempty,url"`
}

// ProjectService defines the project operations used by the handler
type ProjectService interface {
	Create(ctx context.Context, id *auth.Identity, in project.CreateInput) (*models.Project, error)
	List(ctx context.Context, id *auth.Identity) ([]*models.Project, error)
	Get(ctx context.Context, id *auth.Identity, projectID int64) (*models.Project, error)
	Members(ctx context.Context, id *auth.Identity, projectID int64) ([]*models.TeamMember, error)
	AddMember(ctx context.Context, id *auth.Identity, projectID int64, in project.MemberInput) (*models.TeamMember, error)
	Update(ctx context.Context, id *auth.Identity, projectID int64, patch project.Patch) (*models.Project, error)
}

// ProjectHandler handles project and team HTTP requests
type ProjectHandler struct {
	projects ProjectService
	logger   *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(projects ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		logger:   logger,
	}
}

// HandleCreateProject handles POST /api/projects
func (h *ProjectHandler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	p, err := h.projects.Create(r.Context(), id, project.CreateInput{
		Name:          req.Name,
		Description:   req.Description,
		RepoURL:       req.RepoURL,
		TrackerURL:    req.TrackerURL,
		MobileRepoURL: req.MobileRepoURL,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, p)
}

// HandleListProjects handles GET /api/projects
func (h *ProjectHandler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	projects, err := h.projects.List(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	_ = utils.WriteOK(w, projects)
}

// HandleGetProject handles GET /api/projects/{projectID}
func (h *ProjectHandler) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	p, err := h.projects.Get(r.Context(), id, projectID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleUpdateProject handles PATCH /api/projects/{projectID}
func (h *ProjectHandler) HandleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	p, err := h.projects.Update(r.Context(), id, projectID, project.Patch{
		Name:          req.Name,
		Description:   req.Description,
		RepoURL:       req.RepoURL,
		TrackerURL:    req.TrackerURL,
		MobileRepoURL: req.MobileRepoURL,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleListMembers handles GET /api/projects/{projectID}/members
func (h *ProjectHandler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	members, err := h.projects.Members(r.Context(), id, projectID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if members == nil {
		members = []*models.TeamMember{}
	}
	_ = utils.WriteOK(w, members)
}

// HandleAddMember handles POST /api/projects/{projectID}/members
func (h *ProjectHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	var req AddMemberRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	member, err := h.projects.AddMember(r.Context(), id, projectID, project.MemberInput{
		MemberSub:     req.MemberSub,
		RoleInTeam:    req.RoleInTeam,
		MobileRepoURL: req.MobileRepoURL,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, member)
}
