package handlers

import (
	"context"
	"net/http"

	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/utils"
	"go.uber.org/zap"
)

// CreateMilestoneRequest represents a request to create a milestone
type CreateMilestoneRequest struct {
	Title    string  `json:"title" validate:"required,max=200"`
	Deadline *string `json:"deadline,omitempty"` // YYYY-MM-DD, checked by the service
}

// GradeRequest represents a teacher's grade
type GradeRequest struct {
	Grade *int `json:"grade"`
}

// GradingService defines the milestone and grade operations used by the handler
type GradingService interface {
	CreateMilestone(ctx context.Context, id *auth.Identity, title string, deadline *string) (*models.Milestone, error)
	ListMilestones(ctx context.Context) ([]*models.Milestone, error)
	Grade(ctx context.Context, id *auth.Identity, projectID, milestoneID int64, value int) (*models.Grade, error)
	States(ctx context.Context, id *auth.Identity, projectID int64) ([]*models.MilestoneState, error)
	Rating(ctx context.Context, id *auth.Identity) ([]*models.RatingRow, error)
}

// GradingHandler handles milestone, grade and rating HTTP requests
type GradingHandler struct {
	grading GradingService
	logger  *zap.Logger
}

// NewGradingHandler creates a new GradingHandler
func NewGradingHandler(grading GradingService, logger *zap.Logger) *GradingHandler {
	return &GradingHandler{
		grading: grading,
		logger:  logger,
	}
}

// HandleCreateMilestone handles POST /api/milestones
func (h *GradingHandler) HandleCreateMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateMilestoneRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	m, err := h.grading.CreateMilestone(r.Context(), id, req.Title, req.Deadline)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, m)
}

// HandleListMilestones handles GET /api/milestones
func (h *GradingHandler) HandleListMilestones(w http.ResponseWriter, r *http.Request) {
	ms, err := h.grading.ListMilestones(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if ms == nil {
		ms = []*models.Milestone{}
	}
	_ = utils.WriteOK(w, ms)
}

// HandleGrade handles POST /api/projects/{projectID}/milestones/{milestoneID}/grade
func (h *GradingHandler) HandleGrade(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	milestoneID, ok := pathID(w, r, "milestoneID")
	if !ok {
		return
	}

	var req GradeRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.Grade == nil {
		_ = utils.WriteBadRequest(w, "grade is required", nil)
		return
	}

	g, err := h.grading.Grade(r.Context(), id, projectID, milestoneID, *req.Grade)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, g)
}

// HandleMilestoneStates handles GET /api/projects/{projectID}/milestones/with-state
func (h *GradingHandler) HandleMilestoneStates(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	states, err := h.grading.States(r.Context(), id, projectID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if states == nil {
		states = []*models.MilestoneState{}
	}
	_ = utils.WriteOK(w, states)
}

// HandleRating handles GET /api/rating
func (h *GradingHandler) HandleRating(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	rows, err := h.grading.Rating(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if rows == nil {
		rows = []*models.RatingRow{}
	}
	_ = utils.WriteOK(w, rows)
}
