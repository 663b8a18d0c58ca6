package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/wolfman30/clinic-agenda/internal/agenda"
	"github.com/wolfman30/clinic-agenda/internal/reconcile"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
	"github.com/wolfman30/clinic-agenda/internal/schedule"
	"github.com/wolfman30/clinic-agenda/internal/session"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

// AgendaService is what the agenda endpoints need from the schedule layer.
type AgendaService interface {
	Render(ctx context.Context, id session.Identity, view agenda.View) (schedule.Page, error)
	Save(ctx context.Context, view agenda.View, rendered, edited agenda.Selections) (reconcile.Result, error)
	History(ctx context.Context, patient string) ([]schedule.Visit, error)
	SavePayments(ctx context.Context, patient string, paid map[agenda.SlotKey]bool) (reconcile.Result, error)
}

// ViewDefaults fill in view parameters the client leaves out.
type ViewDefaults struct {
	StartHour int
	EndHour   int
	Beds      int
}

type AgendaConfig struct {
	Service  AgendaService
	Defaults ViewDefaults
	Logger   *logging.Logger
	// Today defaults to the local date.
	Today func() civil.Date
}

// AgendaHandler serves the slot grid and the payment history.
type AgendaHandler struct {
	svc      AgendaService
	defaults ViewDefaults
	logger   *logging.Logger
	today    func() civil.Date
}

func NewAgendaHandler(cfg AgendaConfig) *AgendaHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Today == nil {
		cfg.Today = func() civil.Date { return civil.DateOf(time.Now()) }
	}
	if cfg.Defaults.Beds == 0 {
		cfg.Defaults = ViewDefaults{StartHour: agenda.DefaultStartHour, EndHour: agenda.DefaultEndHour, Beds: agenda.DefaultBeds}
	}
	return &AgendaHandler{
		svc:      cfg.Service,
		defaults: cfg.Defaults,
		logger:   cfg.Logger,
		today:    cfg.Today,
	}
}

// SlotInput is one submitted slot value.
type SlotInput struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	Bed     int    `json:"bed"`
	Patient string `json:"patient"`
	Paid    bool   `json:"paid"`
	// Rendered is the value the grid showed for this slot. Clients echo the
	// slot from GET /agenda here so untouched slots are never written.
	Rendered *RenderedCell `json:"rendered,omitempty"`
}

// RenderedCell is a slot value as it was displayed.
type RenderedCell struct {
	Patient string `json:"patient"`
	Paid    bool   `json:"paid"`
}

func (s SlotInput) key() (agenda.SlotKey, error) {
	d, err := rowstore.ParseDate(s.Date)
	if err != nil {
		return agenda.SlotKey{}, err
	}
	t, err := rowstore.ParseTime(s.Time)
	if err != nil {
		return agenda.SlotKey{}, err
	}
	if s.Bed < 1 {
		return agenda.SlotKey{}, fmt.Errorf("invalid bed %d", s.Bed)
	}
	return agenda.SlotKey{Date: d, Time: t, Bed: s.Bed}, nil
}

// SaveAgendaRequest carries the view the grid was rendered for and the
// submitted slots.
type SaveAgendaRequest struct {
	Date  string      `json:"date"`
	Days  int         `json:"days"`
	Start string      `json:"start"`
	End   string      `json:"end"`
	Cells []SlotInput `json:"cells"`
}

// PaymentsRequest carries edited paid flags from the history screen.
type PaymentsRequest struct {
	Payments []SlotInput `json:"payments"`
}

// GetAgenda renders a view.
// GET /agenda?date=YYYY-MM-DD&days=1|7&start=13&end=20
func (h *AgendaHandler) GetAgenda(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := h.parseView(q.Get("date"), q.Get("days"), q.Get("start"), q.Get("end"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, err := h.svc.Render(r.Context(), session.FromContext(r.Context()), view)
	if err != nil {
		h.fail(w, "failed to render agenda", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// PostAgenda saves edited slots. A failed write leaves the earlier writes of
// the batch in place; the response reports them next to the error.
// POST /agenda
func (h *AgendaHandler) PostAgenda(w http.ResponseWriter, r *http.Request) {
	var req SaveAgendaRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	view, err := h.parseView(req.Date, strconv.Itoa(req.Days), req.Start, req.End)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	edited := make(agenda.Selections, len(req.Cells))
	rendered := make(agenda.Selections, len(req.Cells))
	for i, c := range req.Cells {
		key, err := c.key()
		if err != nil {
			jsonError(w, fmt.Sprintf("cell %d: %v", i, err), http.StatusBadRequest)
			return
		}
		edited[key] = agenda.Cell{Patient: c.Patient, Paid: c.Paid}
		if c.Rendered != nil {
			rendered[key] = agenda.Cell{Patient: c.Rendered.Patient, Paid: c.Rendered.Paid}
		}
	}

	res, err := h.svc.Save(r.Context(), view, rendered, edited)
	if err != nil {
		h.failBatch(w, "failed to save agenda", res, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetHistory lists a patient's appointments.
// GET /patients/{name}/history
func (h *AgendaHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	name := pathName(r, "name")
	visits, err := h.svc.History(r.Context(), name)
	if err != nil {
		h.fail(w, "failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patient": name, "visits": visits})
}

// PutHistory saves paid flags.
// PUT /patients/{name}/history
func (h *AgendaHandler) PutHistory(w http.ResponseWriter, r *http.Request) {
	var req PaymentsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	paid := make(map[agenda.SlotKey]bool, len(req.Payments))
	for i, p := range req.Payments {
		key, err := p.key()
		if err != nil {
			jsonError(w, fmt.Sprintf("payment %d: %v", i, err), http.StatusBadRequest)
			return
		}
		paid[key] = p.Paid
	}
	res, err := h.svc.SavePayments(r.Context(), pathName(r, "name"), paid)
	if err != nil {
		h.failBatch(w, "failed to save payments", res, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AgendaHandler) parseView(date, days, start, end string) (agenda.View, error) {
	d := h.today()
	if strings.TrimSpace(date) != "" {
		var err error
		if d, err = rowstore.ParseDate(date); err != nil {
			return agenda.View{}, fmt.Errorf("invalid date %q", date)
		}
	}
	startHour, err := parseHour(start, h.defaults.StartHour)
	if err != nil {
		return agenda.View{}, err
	}
	endHour, err := parseHour(end, h.defaults.EndHour)
	if err != nil {
		return agenda.View{}, err
	}

	n := 1
	if days = strings.TrimSpace(days); days != "" && days != "0" {
		if n, err = strconv.Atoi(days); err != nil {
			return agenda.View{}, fmt.Errorf("invalid days %q", days)
		}
	}
	var view agenda.View
	switch n {
	case 1:
		view = agenda.DayView(d, startHour, endHour, h.defaults.Beds)
	case 7:
		view = agenda.WeekView(d, startHour, endHour, h.defaults.Beds)
	default:
		view = agenda.View{Start: d, Days: n, StartHour: startHour, EndHour: endHour, Beds: h.defaults.Beds}
	}
	if err := view.Validate(); err != nil {
		return agenda.View{}, err
	}
	return view, nil
}

// parseHour accepts "13", "13:00" or "13:00:00".
func parseHour(s string, fallback int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	if strings.Contains(s, ":") {
		t, err := rowstore.ParseTime(s)
		if err != nil {
			return 0, fmt.Errorf("invalid hour %q", s)
		}
		return t.Hour, nil
	}
	h, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid hour %q", s)
	}
	return h, nil
}

func (h *AgendaHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	}
	jsonError(w, publicMessage(err, status), status)
}

func (h *AgendaHandler) failBatch(w http.ResponseWriter, msg string, res reconcile.Result, err error) {
	status := statusFor(err)
	public := publicMessage(err, status)
	if status == http.StatusInternalServerError {
		// the sheet rejected a write mid-batch
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err, "writes_applied", len(res.Writes))
	}
	writeJSON(w, status, map[string]any{
		"error":  public,
		"result": res,
	})
}

