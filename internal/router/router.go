package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/vivi-tora/mfc/internal/handler"
	"github.com/vivi-tora/mfc/internal/metrics"
	"github.com/vivi-tora/mfc/internal/middleware"
	"github.com/vivi-tora/mfc/pkg/apierror"
	"github.com/vivi-tora/mfc/pkg/response"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler             *handler.Handler
	AvailabilityHandler *handler.AvailabilityHandler
	BatchHandler        *handler.BatchHandler
	LogsHandler         *handler.LogsHandler
	AdminHandler        *handler.AdminHandler
	AuthMiddleware      func(http.Handler) http.Handler
	Metrics             *metrics.Metrics

	// Requests per minute per client IP on /api/v1. Zero disables limiting.
	RateLimit      int
	AllowedOrigins []string
	Production     bool
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !cfg.Production,
	})

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cfg.Metrics.Middleware)
	r.Use(secureMiddleware.Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "Location", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.NotFound(""))
	})

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/health", cfg.Handler.Health)
		r.Get("/ready", cfg.Handler.Ready)
	}
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	// AUTHENTICATED routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}
		if cfg.RateLimit > 0 {
			r.Use(httprate.Limit(cfg.RateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					response.Error(w, apierror.TooManyRequests(""))
				}),
			))
		}

		if cfg.AvailabilityHandler != nil {
			r.Route("/availability", func(r chi.Router) {
				r.Post("/", cfg.AvailabilityHandler.Submit)
				r.Post("/csv", cfg.AvailabilityHandler.SubmitCSV)
			})
		}

		if cfg.BatchHandler != nil {
			r.Route("/batches/{id}", func(r chi.Router) {
				r.Get("/", cfg.BatchHandler.Get)
				r.Delete("/", cfg.BatchHandler.Cancel)
			})
		}

		if cfg.LogsHandler != nil {
			r.Route("/logs", func(r chi.Router) {
				r.Get("/", cfg.LogsHandler.List)
				r.Get("/export.csv", cfg.LogsHandler.Export)
			})
		}

		if cfg.AdminHandler != nil {
			r.Get("/admin/stats", cfg.AdminHandler.GetStats)
		}
	})

	return r
}
