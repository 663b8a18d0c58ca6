package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-agenda/internal/files"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

// DefaultMaxUpload caps a single uploaded document.
const DefaultMaxUpload int64 = 20 << 20

// FileService is the document surface the file endpoints use.
type FileService interface {
	List(ctx context.Context, patient string) ([]files.File, error)
	Upload(ctx context.Context, patient, name, contentType string, body io.Reader) (files.File, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, files.File, error)
}

// FileHandler serves patient documents.
type FileHandler struct {
	svc       FileService
	maxUpload int64
	logger    *logging.Logger
}

func NewFileHandler(svc FileService, maxUpload int64, logger *logging.Logger) *FileHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FileHandler{svc: svc, maxUpload: maxUpload, logger: logger}
}

// ListFiles returns the documents in a patient's folder.
// GET /patients/{name}/files
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	name := pathName(r, "name")
	list, err := h.svc.List(r.Context(), name)
	if err != nil {
		h.fail(w, "failed to list files", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patient": name, "files": list})
}

// UploadFile stores the multipart "file" field in the patient's folder.
// POST /patients/{name}/files
func (h *FileHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("file exceeds %d bytes", h.maxUpload), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "expected multipart form with a file field", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	part, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer part.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(header.Filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	f, err := h.svc.Upload(r.Context(), pathName(r, "name"), header.Filename, contentType, part)
	if err != nil {
		h.fail(w, "failed to upload file", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// DownloadFile streams a document back to the client.
// GET /files/*
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	if id == "" {
		jsonError(w, "file id required", http.StatusBadRequest)
		return
	}
	body, f, err := h.svc.Download(r.Context(), id)
	if err != nil {
		h.fail(w, "failed to download file", err)
		return
	}
	defer body.Close()

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("file download interrupted", "file_id", id, "error", err)
	}
}

func (h *FileHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	}
	jsonError(w, publicMessage(err, status), status)
}
