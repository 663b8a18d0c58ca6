package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-agenda/internal/agenda"
	"github.com/wolfman30/clinic-agenda/internal/files"
	"github.com/wolfman30/clinic-agenda/internal/roster"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP statuses. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, roster.ErrPatientNotFound),
		errors.Is(err, files.ErrFolderNotFound),
		errors.Is(err, files.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, roster.ErrDuplicatePatient):
		return http.StatusConflict
	case errors.Is(err, roster.ErrNameRequired),
		errors.Is(err, roster.ErrEmptyNote),
		errors.Is(err, files.ErrNameRequired),
		errors.Is(err, agenda.ErrInvalidView):
		return http.StatusBadRequest
	case errors.Is(err, rowstore.ErrTableNotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal error detail behind 5xx responses.
func publicMessage(err error, status int) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusServiceUnavailable:
		return "spreadsheet table not found"
	}
	return err.Error()
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// pathName reads a patient name from the route, undoing any escaping.
func pathName(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		v = u
	}
	return strings.TrimSpace(v)
}
