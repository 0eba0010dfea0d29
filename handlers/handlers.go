package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/middleware"
	"github.com/upb/siamonitor/utils"
	"go.uber.org/zap"
)

// maxJSONBody caps JSON request bodies
const maxJSONBody = 1 << 20

// requireIdentity returns the caller identity or writes a 401
func requireIdentity(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*auth.Identity, bool) {
	id := middleware.GetIdentityFromContext(r.Context())
	if id == nil {
		logger.Error("missing identity in context",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))
		_ = utils.WriteUnauthorized(w, "")
		return nil, false
	}
	return id, true
}

// pathID parses a positive integer URL parameter or writes a 400
func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := utils.ParseID(chi.URLParam(r, param), param)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return 0, false
	}
	return id, true
}

// decodeJSON reads a JSON body into dst and validates it. An empty body
// decodes to the zero value. On failure a 400 has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		HandleValidationError(w, err, logger)
		return false
	}
	return true
}
