package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/roots/internal/config"
	apierrors "github.com/copyleftdev/roots/internal/errors"
	"github.com/copyleftdev/roots/internal/logging"
	"github.com/copyleftdev/roots/internal/metrics"
	"github.com/copyleftdev/roots/internal/problem"
	"github.com/copyleftdev/roots/internal/roots"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server implements the HTTP and JSON-RPC server for the root-finding
// service. It solves problems inline or as background jobs.
type Server struct {
	cfg      *config.Config
	logger   Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	jobs     *JobManager
}

// NewServer creates a new server instance. Collectors are registered with
// reg; a nil reg gets a private registry.
func NewServer(cfg *config.Config, logger Logger, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  metrics.New(reg),
	}
	s.jobs = NewJobManager(s.solveJob, cfg.Jobs.WorkerCount, cfg.Jobs.Retention)
	s.jobs.onStart = s.metrics.ActiveJobs.Inc
	s.jobs.onFinish = s.metrics.ActiveJobs.Dec
	return s
}

// RegisterRoutes mounts the API on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/solve", s.handleSolve)
		r.Post("/jobs", s.handleStartJob)
		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Delete("/jobs/{id}", s.handleCancelJob)
		r.Get("/jobs/{id}/iterations.csv", s.handleJobIterations)
		r.Post("/interp/eval", s.handleInterpEval)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Router returns the complete HTTP handler: middleware, health and metrics
// endpoints, and the API.
func (s *Server) Router() http.Handler {
	httpLogger := s.logger.WithFields(map[string]interface{}{"component": "http"})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(httpLogger))
	r.Use(apierrors.RecoveryMiddleware(httpLogger))
	r.Use(apierrors.ErrorHandler(httpLogger))
	if s.cfg.HTTP.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.HTTP.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.RegisterRoutes(r)
	return r
}

// solve runs one problem with the configured defaults and records it.
func (s *Server) solve(ctx context.Context, spec problem.Spec, logger *logging.Logger) (*roots.Result, error) {
	opts := s.cfg.SolveOptions()
	opts.Logger = logging.NewZapLogger(logger.WithFields(map[string]interface{}{
		"component": "solver",
		"problem":   spec.Name,
	}))

	start := time.Now()
	result, err := problem.Solve(ctx, spec, opts)
	elapsed := time.Since(start).Seconds()

	status := metrics.StatusConverged
	switch {
	case err == nil:
	case isContextErr(err):
		status = metrics.StatusCanceled
	default:
		status = metrics.StatusFailed
	}
	s.metrics.ObserveSolve(spec.Method, result, elapsed, status)
	return result, err
}

func (s *Server) solveJob(ctx context.Context, spec problem.Spec) (*roots.Result, error) {
	result, err := s.solve(ctx, spec, s.logger.WithFields(nil))
	if err != nil {
		s.logger.Warn("Job solve failed", map[string]interface{}{
			"problem": spec.Name,
			"method":  spec.Method,
			"kind":    apierrors.Kind(err),
			"error":   err.Error(),
		})
	}
	return result, err
}

// Close cancels running jobs and waits for them to stop.
func (s *Server) Close() error {
	return s.jobs.Close()
}

// respondJSON writes v with the given status.
func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

// respondError writes the REST error body for err. result, when present,
// describes the state the solver reached.
func (s *Server) respondError(w http.ResponseWriter, err error, result *roots.Result) {
	body := map[string]interface{}{
		"error": err.Error(),
		"kind":  apierrors.Kind(err),
	}
	if result != nil {
		body["result"] = newSolution(result)
	}
	s.respondJSON(w, apierrors.HTTPStatus(err), body)
}
