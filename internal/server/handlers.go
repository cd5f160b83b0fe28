package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/copyleftdev/roots/internal/errors"
	"github.com/copyleftdev/roots/internal/logging"
	"github.com/copyleftdev/roots/internal/problem"
)

// requestLogger tags the server logger with the request id.
func (s *Server) requestLogger(r *http.Request) *logging.Logger {
	return s.logger.WithFields(map[string]interface{}{
		"request_id": middleware.GetReqID(r.Context()),
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierrors.Wrapf(apierrors.ErrBadRequest, "invalid request body: %v", err)
	}
	return nil
}

// handleSolve handles POST /api/v1/solve and solves the problem inline.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var spec problem.Spec
	if err := decodeBody(r, &spec); err != nil {
		s.respondError(w, err, nil)
		return
	}

	result, err := s.solve(r.Context(), spec, s.requestLogger(r))
	if err != nil {
		s.respondError(w, err, result)
		return
	}
	s.respondJSON(w, http.StatusOK, newSolution(result))
}

// handleStartJob handles POST /api/v1/jobs.
func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var spec problem.Spec
	if err := decodeBody(r, &spec); err != nil {
		s.respondError(w, err, nil)
		return
	}

	job, err := s.startJob(spec)
	if err != nil {
		s.respondError(w, err, nil)
		return
	}
	s.respondJSON(w, http.StatusAccepted, newJobView(job))
}

// handleJobStatus handles GET /api/v1/jobs/{id}.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err, nil)
		return
	}
	s.respondJSON(w, http.StatusOK, newJobView(job))
}

// handleCancelJob handles DELETE /api/v1/jobs/{id}.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.cancelJob(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err, nil)
		return
	}
	s.respondJSON(w, http.StatusOK, newJobView(job))
}

// handleJobIterations handles GET /api/v1/jobs/{id}/iterations.csv.
func (s *Server) handleJobIterations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.jobs.Get(id)
	if err != nil {
		s.respondError(w, err, nil)
		return
	}
	if job.Result == nil {
		err := apierrors.Wrapf(apierrors.ErrConflict, "job %s has no iterations yet (status %s)", id, job.Status)
		s.respondError(w, err, nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`-iterations.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := writeIterations(w, job.Result); err != nil {
		s.logger.Error("Failed to write iterations", map[string]interface{}{
			"job_id": id,
			"error":  err.Error(),
		})
	}
}

// handleInterpEval handles POST /api/v1/interp/eval.
func (s *Server) handleInterpEval(w http.ResponseWriter, r *http.Request) {
	var req interpRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err, nil)
		return
	}

	resp, err := s.evalInterp(req)
	if err != nil {
		s.respondError(w, err, nil)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) startJob(spec problem.Spec) (JobState, error) {
	job, err := s.jobs.Start(spec)
	if err != nil {
		return job, err
	}
	s.logger.Info("Job started", map[string]interface{}{
		"job_id":  job.ID,
		"problem": spec.Name,
		"method":  spec.Method,
	})
	return job, nil
}

func (s *Server) cancelJob(id string) (JobState, error) {
	job, err := s.jobs.Cancel(id)
	if err != nil {
		return job, err
	}
	s.logger.Info("Job cancelled", map[string]interface{}{
		"job_id": id,
	})
	return job, nil
}
