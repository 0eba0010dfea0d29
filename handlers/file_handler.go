package handlers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/services/files"
	"github.com/upb/siamonitor/utils"
	"go.uber.org/zap"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temp files
const multipartMemory = 8 << 20

// uploadKinds are the multipart field names accepted by the upload endpoint
var uploadKinds = []models.FileKind{models.FileKindPresentation, models.FileKindReport}

// FileService defines the artifact operations used by the handler
type FileService interface {
	Upload(ctx context.Context, id *auth.Identity, projectID, milestoneID int64, parts []files.Part) (*models.Grade, error)
	Download(ctx context.Context, id *auth.Identity, projectID, milestoneID int64, kind models.FileKind) (*files.Download, error)
	MaxBytes() int64
}

// FileHandler handles artifact upload and download
type FileHandler struct {
	files    FileService
	transfer time.Duration
	logger   *zap.Logger
}

// NewFileHandler creates a new FileHandler. transfer bounds how long a single
// upload or download may take, overriding the server-wide connection deadlines.
func NewFileHandler(files FileService, transfer time.Duration, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		files:    files,
		transfer: transfer,
		logger:   logger,
	}
}

// extendDeadlines moves the connection read and write deadlines to now+transfer.
// Writers that cannot reach the connection keep the server defaults.
func (h *FileHandler) extendDeadlines(w http.ResponseWriter, read bool) {
	if h.transfer <= 0 {
		return
	}
	rc := http.NewResponseController(w)
	deadline := time.Now().Add(h.transfer)
	if read {
		if err := rc.SetReadDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.logger.Warn("failed to extend read deadline", zap.Error(err))
		}
	}
	if err := rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("failed to extend write deadline", zap.Error(err))
	}
}

// HandleUpload handles POST /api/projects/{projectID}/milestones/{milestoneID}/files
// Parts named presentation and report are stored; others are ignored.
func (h *FileHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
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

	h.extendDeadlines(w, true)

	// Two parts plus multipart framing
	limit := int64(len(uploadKinds))*h.files.MaxBytes() + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = utils.WriteError(w, http.StatusRequestEntityTooLarge, "Upload exceeds size limit", nil)
			return
		}
		_ = utils.WriteBadRequest(w, "Expected multipart/form-data body", nil)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart temp files", zap.Error(err))
		}
	}()

	var parts []files.Part
	for _, kind := range uploadKinds {
		f, header, err := r.FormFile(string(kind))
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			_ = utils.WriteBadRequest(w, "Unreadable "+string(kind)+" part", nil)
			return
		}
		defer f.Close()
		parts = append(parts, files.Part{Kind: kind, Filename: header.Filename, Body: f})
	}

	row, err := h.files.Upload(r.Context(), id, projectID, milestoneID, parts)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, row)
}

// HandleDownload handles GET /api/files/{projectID}/{milestoneID}/{kind}
func (h *FileHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
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
	kind := models.FileKind(chi.URLParam(r, "kind"))

	d, err := h.files.Download(r.Context(), id, projectID, milestoneID, kind)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	defer d.File.Close()

	h.extendDeadlines(w, false)

	name := d.Info.Name()
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, d.Info.ModTime(), d.File)
}
