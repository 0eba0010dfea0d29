package handlers

import (
	"context"
	"net/http"

	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/middleware"
	"github.com/upb/siamonitor/services/admin"
	"github.com/upb/siamonitor/utils"
	"go.uber.org/zap"
)

// AdminService defines the maintenance operations used by the handler
type AdminService interface {
	Wipe(ctx context.Context, id *auth.Identity) (*admin.WipeResult, error)
}

// AdminHandler handles course maintenance requests
type AdminHandler struct {
	admin  AdminService
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(admin AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		logger: logger,
	}
}

// HandleWipe handles POST /api/admin/wipe
func (h *AdminHandler) HandleWipe(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	h.logger.Warn("course wipe requested",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("sub", id.Subject))

	res, err := h.admin.Wipe(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, res)
}
