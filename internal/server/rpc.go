package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	apierrors "github.com/copyleftdev/roots/internal/errors"
	"github.com/copyleftdev/roots/internal/problem"
	"github.com/copyleftdev/roots/internal/roots"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcFailure carries a partial result next to a method error.
type rpcFailure struct {
	err    error
	result *roots.Result
}

func (f *rpcFailure) Error() string { return f.err.Error() }
func (f *rpcFailure) Unwrap() error { return f.err }

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, apierrors.CodeParseError, "Parse error", nil, nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, apierrors.CodeInvalidRequest, "Invalid Request", request.ID, nil)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "roots.solve":
		result, err = s.rpcSolve(r, request.Params)
	case "roots.start":
		result, err = s.rpcStart(request.Params)
	case "roots.status":
		result, err = s.rpcStatus(request.Params)
	case "roots.cancel":
		result, err = s.rpcCancel(request.Params)
	case "interp.eval":
		result, err = s.rpcInterpEval(request.Params)
	default:
		s.respondWithError(w, apierrors.CodeMethodNotFound, "Method not found", request.ID, nil)
		return
	}

	if err != nil {
		data := map[string]interface{}{"kind": apierrors.Kind(err)}
		if f, ok := err.(*rpcFailure); ok && f.result != nil {
			data["result"] = newSolution(f.result)
		}
		s.respondWithError(w, apierrors.RPCCode(err), err.Error(), request.ID, data)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// decodeParams accepts params either as an object or as an array whose
// first element is the object.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return apierrors.Wrap(apierrors.ErrBadRequest, "missing required parameters")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return apierrors.Wrapf(apierrors.ErrBadRequest, "invalid parameters: %v", err)
		}
		if len(list) == 0 {
			return apierrors.Wrap(apierrors.ErrBadRequest, "missing required parameters")
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apierrors.Wrapf(apierrors.ErrBadRequest, "invalid parameter format, expected object: %v", err)
	}
	return nil
}

type jobParams struct {
	JobID string `json:"job_id"`
}

func decodeJobID(raw json.RawMessage) (string, error) {
	var p jobParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	if p.JobID == "" {
		return "", apierrors.Wrap(apierrors.ErrBadRequest, "job_id is required")
	}
	return p.JobID, nil
}

// rpcSolve handles roots.solve.
// Expected parameters: a problem, e.g. {"method": "brent", "expression": "x*x - 2", "lower": 0, "upper": 2}
// Returns: the solution
func (s *Server) rpcSolve(r *http.Request, raw json.RawMessage) (interface{}, error) {
	var spec problem.Spec
	if err := decodeParams(raw, &spec); err != nil {
		return nil, err
	}
	result, err := s.solve(r.Context(), spec, s.requestLogger(r))
	if err != nil {
		return nil, &rpcFailure{err: err, result: result}
	}
	return newSolution(result), nil
}

// rpcStart handles roots.start.
// Returns: {"job_id": "...", "status": "pending", ...}
func (s *Server) rpcStart(raw json.RawMessage) (interface{}, error) {
	var spec problem.Spec
	if err := decodeParams(raw, &spec); err != nil {
		return nil, err
	}
	job, err := s.startJob(spec)
	if err != nil {
		return nil, err
	}
	return newJobView(job), nil
}

// rpcStatus handles roots.status.
// Expected parameters: {"job_id": "..."}
func (s *Server) rpcStatus(raw json.RawMessage) (interface{}, error) {
	id, err := decodeJobID(raw)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.Get(id)
	if err != nil {
		return nil, err
	}
	return newJobView(job), nil
}

// rpcCancel handles roots.cancel.
// Expected parameters: {"job_id": "..."}
func (s *Server) rpcCancel(raw json.RawMessage) (interface{}, error) {
	id, err := decodeJobID(raw)
	if err != nil {
		return nil, err
	}
	job, err := s.cancelJob(id)
	if err != nil {
		return nil, err
	}
	return newJobView(job), nil
}

// rpcInterpEval handles interp.eval.
// Expected parameters: {"kind": "cspline", "x": [...], "y": [...], "at": [...], "integral": [a, b]}
func (s *Server) rpcInterpEval(raw json.RawMessage) (interface{}, error) {
	var req interpRequest
	if err := decodeParams(raw, &req); err != nil {
		return nil, err
	}
	return s.evalInterp(req)
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}, data interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	errObj := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if data != nil {
		errObj["data"] = data
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   errObj,
		"id":      id,
	})
}
