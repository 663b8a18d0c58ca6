package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/wolfman30/clinic-agenda/internal/roster"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

// PatientService is the roster surface the patient endpoints use.
type PatientService interface {
	List(ctx context.Context, includeInactive bool) ([]roster.Patient, error)
	Get(ctx context.Context, name string) (roster.Patient, error)
	Add(ctx context.Context, p roster.Patient) (roster.Patient, error)
	Deactivate(ctx context.Context, name string) error
	Reactivate(ctx context.Context, name string) error
	AppendNote(ctx context.Context, name, text string) (roster.Patient, error)
	SaveActiveEdits(ctx context.Context, edited []roster.Patient) (roster.MergeResult, error)
}

// PatientHandler exposes the patient roster.
type PatientHandler struct {
	svc    PatientService
	logger *logging.Logger
}

func NewPatientHandler(svc PatientService, logger *logging.Logger) *PatientHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PatientHandler{svc: svc, logger: logger}
}

type CreatePatientRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Insurer  string `json:"insurer"`
	Notes    string `json:"notes"`
}

type NoteRequest struct {
	Text string `json:"text"`
}

// ActiveEditsRequest carries the edited active-patient table.
type ActiveEditsRequest struct {
	Patients []roster.Patient `json:"patients"`
}

// ListPatients returns active patients, or everyone with include_inactive=true.
// GET /patients
func (h *PatientHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	includeInactive := false
	if v := r.URL.Query().Get("include_inactive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, "include_inactive must be a boolean", http.StatusBadRequest)
			return
		}
		includeInactive = b
	}
	patients, err := h.svc.List(r.Context(), includeInactive)
	if err != nil {
		h.fail(w, "failed to list patients", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": patients, "count": len(patients)})
}

// GetPatient returns one patient.
// GET /patients/{name}
func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), pathName(r, "name"))
	if err != nil {
		h.fail(w, "failed to load patient", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePatient registers a new active patient.
// POST /patients
func (h *PatientHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p, err := h.svc.Add(r.Context(), roster.Patient{
		FullName: req.FullName,
		Phone:    req.Phone,
		Insurer:  req.Insurer,
		Notes:    req.Notes,
	})
	if err != nil {
		h.fail(w, "failed to add patient", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// SaveActiveEdits merges the edited active table into the full roster.
// PUT /patients
func (h *PatientHandler) SaveActiveEdits(w http.ResponseWriter, r *http.Request) {
	var req ActiveEditsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	res, err := h.svc.SaveActiveEdits(r.Context(), req.Patients)
	if err != nil {
		h.fail(w, "failed to save patient edits", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Deactivate hides a patient from selection lists.
// POST /patients/{name}/deactivate
func (h *PatientHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Reactivate puts a patient back into selection lists.
// POST /patients/{name}/reactivate
func (h *PatientHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *PatientHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	name := pathName(r, "name")
	var err error
	if active {
		err = h.svc.Reactivate(r.Context(), name)
	} else {
		err = h.svc.Deactivate(r.Context(), name)
	}
	if err != nil {
		h.fail(w, "failed to update patient status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patient": name, "active": active})
}

// AppendNote adds a timestamped line to the patient's notes.
// POST /patients/{name}/notes
func (h *PatientHandler) AppendNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p, err := h.svc.AppendNote(r.Context(), pathName(r, "name"), req.Text)
	if err != nil {
		h.fail(w, "failed to append note", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PatientHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	}
	jsonError(w, publicMessage(err, status), status)
}
