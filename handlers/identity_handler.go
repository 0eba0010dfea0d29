package handlers

import (
	"net/http"

	"github.com/upb/siamonitor/middleware"
	"github.com/upb/siamonitor/utils"
	"go.uber.org/zap"
)

// MeResponse describes the verified caller
type MeResponse struct {
	Sub               string   `json:"sub"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Email             string   `json:"email,omitempty"`
	Roles             []string `json:"roles"`
	Issuer            string   `json:"iss,omitempty"`
	Audience          []string `json:"aud,omitempty"`
}

// IdentityHandler reports who the caller is
type IdentityHandler struct {
	logger *zap.Logger
}

// NewIdentityHandler creates a new IdentityHandler
func NewIdentityHandler(logger *zap.Logger) *IdentityHandler {
	return &IdentityHandler{logger: logger}
}

// HandleMe handles GET /api/me
func (h *IdentityHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	resp := MeResponse{
		Sub:               id.Subject,
		PreferredUsername: id.Username,
		Email:             id.Email,
		Roles:             id.Roles,
	}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		resp.Issuer = claims.Issuer
		resp.Audience = claims.Audience
	}

	_ = utils.WriteOK(w, resp)
}

// HandlePing answers a role-gated ping. The route decides which role.
func (h *IdentityHandler) HandlePing(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.GetClaimsFromContext(r.Context())
		sub := ""
		if claims != nil {
			sub = claims.Subject
		}
		_ = utils.WriteOK(w, map[string]string{
			"pong": role,
			"sub":  sub,
		})
	}
}
