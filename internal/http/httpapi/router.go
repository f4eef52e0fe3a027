package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"spatia/internal/http/handlers"
	"spatia/internal/infra"
	"spatia/internal/metrics"
	"spatia/internal/middleware"
)

// Options carries the router-level settings that are not handler state.
type Options struct {
	Logger          *infra.Logger
	Metrics         *metrics.Collector
	CORSOrigins     []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
}

// NewRouter mounts every route. ctx bounds background work of the rate
// limiter.
func NewRouter(ctx context.Context, app *handlers.App, opts Options) http.Handler {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
		opts.Metrics.Middleware,
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/v1/dashboard", app.Dashboard)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	// Raw pass-through to the generation API.
	r.Post("/v1/generate", app.Generate)
	r.Get("/v1/status/{operationID}", app.Status)
	r.Post("/v1/upload", app.Upload)
	r.Get("/v1/worlds", app.ListWorlds)
	r.Get("/v1/worlds/{worldID}", app.GetWorld)
	r.Get("/v1/cost", app.EstimateCost)

	r.With(middleware.RateLimit(ctx, opts.RateLimitPerMin, time.Minute)).Get("/v1/proxy", app.Proxy)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Get("/", app.ListJobs)
		r.Post("/", app.SubmitJob)
		r.Get("/history", app.JobHistory)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetJob)
			r.Delete("/", app.DeleteJob)
			r.Get("/export", app.JobExport)
			r.Get("/export.zip", app.JobExportZip)
			r.Post("/view", app.ViewJob)
		})
	})
	r.Get("/v1/events", app.Events)

	r.Route("/v1/viewer", func(r chi.Router) {
		r.Get("/", app.ViewerSnapshot)
		r.Post("/open", app.ViewerOpen)
		r.Post("/close", app.ViewerClose)
		r.Post("/reset", app.ViewerReset)
		r.Post("/fullscreen", app.ViewerFullscreen)
	})

	return r
}
