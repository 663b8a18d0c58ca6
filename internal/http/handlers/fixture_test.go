package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-agenda/internal/cache"
	"github.com/wolfman30/clinic-agenda/internal/files"
	"github.com/wolfman30/clinic-agenda/internal/reconcile"
	"github.com/wolfman30/clinic-agenda/internal/roster"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
	"github.com/wolfman30/clinic-agenda/internal/schedule"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

var monday = civil.Date{Year: 2024, Month: time.January, Day: 1}

var appointmentHeader = []string{"Fecha", "Hora", "Camilla", "Paciente", "Pagado"}

type fixture struct {
	store  *rowstore.MemoryStore
	docs   *files.MemoryStore
	router chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := rowstore.NewMemoryStore()
	store.Seed("Turnos", appointmentHeader,
		[]string{"2024-01-01", "13:00:00", "1", "Ana", "No"},
		[]string{"2024-01-03", "14:00:00", "2", "Ana", "Sí"},
	)
	store.Seed("Pacientes", roster.DefaultHeader,
		[]string{"Ana", "111", "OSDE", "Dolor lumbar", "Sí"},
		[]string{"Luis", "222", "", "", "Sí"},
		[]string{"Marta", "333", "Swiss", "", "No"},
	)

	codec := rowstore.DefaultCodec()
	logger := logging.Discard()
	tables := cache.NewMemoryCache(store, time.Hour, nil)
	patients := roster.NewService(store, tables, "Pacientes", codec, logger)
	engine := reconcile.NewEngine(store, tables, "Turnos", codec, nil, logger)
	sched := schedule.NewService(tables, engine, patients, "Turnos", codec)
	docs := files.NewMemoryStore()

	agendaH := NewAgendaHandler(AgendaConfig{
		Service:  sched,
		Defaults: ViewDefaults{StartHour: 13, EndHour: 14, Beds: 2},
		Logger:   logger,
		Today:    func() civil.Date { return monday },
	})
	patientH := NewPatientHandler(patients, logger)
	fileH := NewFileHandler(files.NewService(docs, patients, logger), 1<<10, logger)

	r := chi.NewRouter()
	r.Get("/agenda", agendaH.GetAgenda)
	r.Post("/agenda", agendaH.PostAgenda)
	r.Get("/patients", patientH.ListPatients)
	r.Post("/patients", patientH.CreatePatient)
	r.Put("/patients", patientH.SaveActiveEdits)
	r.Get("/patients/{name}", patientH.GetPatient)
	r.Post("/patients/{name}/deactivate", patientH.Deactivate)
	r.Post("/patients/{name}/reactivate", patientH.Reactivate)
	r.Post("/patients/{name}/notes", patientH.AppendNote)
	r.Get("/patients/{name}/history", agendaH.GetHistory)
	r.Put("/patients/{name}/history", agendaH.PutHistory)
	r.Get("/patients/{name}/files", fileH.ListFiles)
	r.Post("/patients/{name}/files", fileH.UploadFile)
	r.Get("/files/*", fileH.DownloadFile)

	return &fixture{store: store, docs: docs, router: r}
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

