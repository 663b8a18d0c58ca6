package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/clinic-agenda/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-agenda/internal/http/middleware"
	"github.com/wolfman30/clinic-agenda/internal/stats"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	AgendaHandler  *handlers.AgendaHandler
	PatientHandler *handlers.PatientHandler
	FileHandler    *handlers.FileHandler
	StatsHandler   *stats.Handler
	MetricsHandler http.Handler

	// StaffJWTSecret signs staff tokens. When empty and AllowAnonymous is
	// set, staff routes run without identity.
	StaffJWTSecret string
	AllowAnonymous bool

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Staff routes
	r.Group(func(staff chi.Router) {
		staff.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		if cfg.StaffJWTSecret != "" || !cfg.AllowAnonymous {
			staff.Use(httpmiddleware.StaffJWT(cfg.StaffJWTSecret))
		}

		if h := cfg.AgendaHandler; h != nil {
			staff.Get("/agenda", h.GetAgenda)
			staff.Post("/agenda", h.PostAgenda)
		}
		if cfg.StatsHandler != nil {
			staff.Get("/stats", cfg.StatsHandler.GetStats)
		}
		staff.Route("/patients", func(patients chi.Router) {
			if h := cfg.PatientHandler; h != nil {
				patients.Get("/", h.ListPatients)
				patients.Post("/", h.CreatePatient)
				patients.Put("/", h.SaveActiveEdits)
			}
			patients.Route("/{name}", func(p chi.Router) {
				if h := cfg.PatientHandler; h != nil {
					p.Get("/", h.GetPatient)
					p.Post("/deactivate", h.Deactivate)
					p.Post("/reactivate", h.Reactivate)
					p.Post("/notes", h.AppendNote)
				}
				if h := cfg.AgendaHandler; h != nil {
					p.Get("/history", h.GetHistory)
					p.Put("/history", h.PutHistory)
				}
				if h := cfg.FileHandler; h != nil {
					p.Get("/files", h.ListFiles)
					p.Post("/files", h.UploadFile)
				}
			})
		})
		if h := cfg.FileHandler; h != nil {
			staff.Get("/files/*", h.DownloadFile)
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
