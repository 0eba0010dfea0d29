package handlers

import (
	"context"
	"net/http"

	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/services/profile"
	"github.com/upb/siamonitor/utils"
	"go.uber.org/zap"
)

// UpdateProfileRequest represents a request to edit the caller's profile
type UpdateProfileRequest struct {
	Mode    *string `json:"mode,omitempty" validate:"omitempty,oneof=participant lead"`
	GroupNo *string `json:"group_no,omitempty" validate:"omitempty,max=50"`
	Tg      *string `json:"tg,omitempty" validate:"omitempty,max=100"`
}

// ProfileService defines the profile operations used by the handler
type ProfileService interface {
	Get(ctx context.Context, id *auth.Identity) (*models.Profile, error)
	Update(ctx context.Context, id *auth.Identity, upd profile.Update) (*models.Profile, error)
}

// ProfileHandler handles profile-related HTTP requests
type ProfileHandler struct {
	profiles ProfileService
	logger   *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profiles ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
	}
}

// HandleGetProfile handles GET /api/profile
func (h *ProfileHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	p, err := h.profiles.Get(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleUpdateProfile handles POST /api/profile
func (h *ProfileHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	upd := profile.Update{GroupNo: req.GroupNo, Tg: req.Tg}
	if req.Mode != nil {
		mode := models.ProfileMode(*req.Mode)
		upd.Mode = &mode
	}

	p, err := h.profiles.Update(r.Context(), id, upd)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, p)
}
