// Package router wires every HTTP surface of the platform: the staff API,
// the websocket feed, health and metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agendadigital/agenda-platform/internal/http/handlers"
	httpmiddleware "github.com/agendadigital/agenda-platform/internal/http/middleware"
	"github.com/agendadigital/agenda-platform/internal/tenancy"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Registry           *tenancy.Registry
	Appointments       *handlers.AppointmentsHandler
	Catalog            *handlers.CatalogHandler
	Conversations      *handlers.ConversationsHandler
	Stats              *handlers.StatsHandler
	LiveHandler        http.Handler
	MetricsHandler     http.Handler
	StaffAuthSecret    string
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	// Browser websocket clients cannot set headers, so the live feed sits
	// outside the API group and identifies the tenant via query string.
	if cfg.LiveHandler != nil {
		r.Handle("/live", cfg.LiveHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.StaffJWT(cfg.StaffAuthSecret))
		api.Use(requireTenant(cfg.Registry))

		if cfg.Appointments != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Post("/", cfg.Appointments.Create)
				r.Get("/", cfg.Appointments.List)
				r.Get("/availability", cfg.Appointments.Availability)
				r.Get("/cancelled", cfg.Appointments.ListCancelled)
				r.Get("/phone/{phone}", cfg.Appointments.ListByPhone)
				r.Post("/cancel", cfg.Appointments.Cancel)
				r.Post("/restore", cfg.Appointments.Restore)
				r.Post("/reschedule", cfg.Appointments.Reschedule)
			})
		}
		if cfg.Catalog != nil {
			api.Route("/catalog", func(r chi.Router) {
				r.Get("/sectors", cfg.Catalog.Sectors)
				r.Get("/insurers", cfg.Catalog.Insurers)
				r.Get("/exams", cfg.Catalog.Exams)
				r.Get("/holidays", cfg.Catalog.Holidays)
			})
		}
		if cfg.Conversations != nil {
			api.Route("/conversations", func(r chi.Router) {
				r.Get("/", cfg.Conversations.ListThreads)
				r.Get("/{phone}", cfg.Conversations.History)
				r.Post("/{phone}/send", cfg.Conversations.Send)
				r.Post("/{phone}/source-analysis", cfg.Conversations.AnalyzeSource)
			})
		}
		if cfg.Stats != nil {
			api.Get("/stats/overview", cfg.Stats.Overview)
		}
	})

	return r
}
