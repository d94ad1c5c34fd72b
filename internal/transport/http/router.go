package http

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"raise-service/internal/app"
	"raise-service/internal/logging"
)

// Dependencies are the services exposed over HTTP. Gatherer may be nil, in
// which case /metrics serves the default registry.
type Dependencies struct {
	Guidance *app.GuidanceService
	Research *app.ResearchService
	Projects *app.ProjectService
	Gatherer prometheus.Gatherer
	Logger   *log.Logger
}

type api struct {
	guidance *app.GuidanceService
	research *app.ResearchService
	projects *app.ProjectService
	logger   *log.Logger
}

// NewRouter builds the REST surface and the guided-walk websocket.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	a := &api{
		guidance: deps.Guidance,
		research: deps.Research,
		projects: deps.Projects,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws/walk", NewWSHandler(deps.Guidance, deps.Research, logger).ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Route("/ethics", func(r chi.Router) {
			r.Get("/start", a.ethicsStart)
			r.Get("/node/{key}", a.ethicsNode)
			r.Post("/evaluate", a.ethicsEvaluate)
			r.Get("/scenarios", a.ethicsScenarios)
			r.Get("/graph", a.ethicsGraph)
			r.Post("/graph", a.ethicsGraphPath)
		})

		r.Get("/templates", a.templateList)
		r.Get("/templates/{key}", a.templateDetail)
		r.Post("/documents/generate", a.documentGenerate)

		r.Get("/assessment/questions", a.assessmentQuestions)
		r.Post("/assessment/submit", a.assessmentSubmit)

		r.Route("/research", func(r chi.Router) {
			r.Post("/consent", a.submitConsent)
			r.Get("/consent/{code}", a.getConsent)
			r.Post("/consent/{code}/withdraw", a.withdrawConsent)
			r.Post("/session/start", a.startSession)
			r.Post("/session/response", a.recordResponse)
			r.Post("/session/complete", a.completeSession)
			r.Get("/session/{code}", a.getSession)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", a.listProjects)
			r.Post("/", a.createProject)
			r.Get("/use-cases", a.useCases)
			r.Get("/{id}", a.getProject)
			r.Post("/{id}/checkpoints/{cp}/toggle", a.toggleCheckpoint)
			r.Post("/{id}/decisions", a.logDecision)
			r.Get("/{id}/report", a.projectReport)
		})
	})
	return r
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"took", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
