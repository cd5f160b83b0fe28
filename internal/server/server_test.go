package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/roots/internal/config"
	apierrors "github.com/copyleftdev/roots/internal/errors"
	"github.com/copyleftdev/roots/internal/logging"
	"github.com/copyleftdev/roots/internal/metrics"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
	}

	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second
	cfg.HTTP.RequestTimeout = 10 * time.Second

	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stdout"

	cfg.Solver.MaxIterations = 100
	cfg.Solver.EpsRel = 1e-10
	cfg.Solver.DerivativeThreshold = 1e-14

	cfg.Jobs.WorkerCount = 3
	cfg.Jobs.Retention = time.Hour

	require.NoError(t, cfg.Validate())
	return cfg
}

// testLogger creates a test logger
func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.New(logging.ErrorLevel, io.Discard)
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	srv := NewServer(testConfig(t), testLogger(t), nil)
	t.Cleanup(func() { srv.Close() })

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, reader))

	var decoded map[string]interface{}
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded), "body %s", rr.Body.String())
	}
	return rr, decoded
}

func TestNewServer(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t), nil)
	assert.NotNil(t, srv, "Server should be created")
	assert.NotNil(t, srv.metrics)
	assert.NoError(t, srv.Close())
}

func TestRegisterRoutes(t *testing.T) {
	_, r := newTestServer(t)

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/solve", true},
		{"POST", "/api/v1/jobs", true},
		{"GET", "/api/v1/jobs/123", true},
		{"DELETE", "/api/v1/jobs/123", true},
		{"GET", "/api/v1/jobs/123/iterations.csv", true},
		{"POST", "/api/v1/interp/eval", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false}, // served by Router only
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}")))

			if tt.shouldExist {
				// A 404 from an existing route carries a JSON body.
				if rr.Code == http.StatusNotFound {
					assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
				}
			} else {
				assert.Equal(t, http.StatusNotFound, rr.Code)
			}
		})
	}
}

func TestRouter(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t), nil)
	defer srv.Close()
	h := srv.Router()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	rr, _ = doJSON(t, h, http.MethodPost, "/api/v1/solve", `{"method":"brent","expression":"x*x - 2","lower":0,"upper":2}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `roots_solves_total{method="brent",status="converged"} 1`)
	assert.Contains(t, rr.Body.String(), "roots_solve_iterations_count")
}

func TestSolveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
		check      func(t *testing.T, body map[string]interface{})
	}{
		{
			name:       "brent",
			body:       `{"method":"brent","expression":"x*x - 2","lower":0,"upper":2}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.InDelta(t, 1.4142135623730951, body["root"], 1e-9)
				assert.Equal(t, true, body["converged"])
				assert.Contains(t, body, "lower")
				assert.Contains(t, body, "upper")
			},
		},
		{
			name:       "newton omits the bracket",
			body:       `{"method":"newton","expression":"x*x - 2","derivative":"2*x","guess":1}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.InDelta(t, 1.4142135623730951, body["root"], 1e-12)
				assert.NotContains(t, body, "lower")
				assert.NotContains(t, body, "upper")
			},
		},
		{
			name:       "tabulated",
			body:       `{"method":"bisection","table":{"kind":"linear","x":[0,1,2],"y":[-1,0,1]},"lower":0.5,"upper":2}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.InDelta(t, 1.0, body["root"], 1e-9)
			},
		},
		{
			name:       "unknown method",
			body:       `{"method":"ridder","expression":"x","lower":-1,"upper":1}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_spec",
		},
		{
			name:       "no sign change",
			body:       `{"method":"bisection","expression":"x*x - 2","lower":3,"upper":4}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "invalid_bracket",
		},
		{
			name:       "iteration budget",
			body:       `{"method":"bisection","expression":"x*x - 2","lower":0,"upper":2,"max_iterations":2}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "max_iterations",
			check: func(t *testing.T, body map[string]interface{}) {
				result, ok := body["result"].(map[string]interface{})
				require.True(t, ok, "partial result expected")
				assert.EqualValues(t, 2, result["iterations"])
				assert.EqualValues(t, 1, result["lower"])
				assert.EqualValues(t, 1.5, result["upper"])
				assert.Equal(t, false, result["converged"])
			},
		},
		{
			name:       "malformed body",
			body:       `{"method":`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, r := newTestServer(t)
			rr, body := doJSON(t, r, http.MethodPost, "/api/v1/solve", tt.body)

			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, body["kind"])
				assert.NotEmpty(t, body["error"])
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestSolveMetrics(t *testing.T) {
	srv, r := newTestServer(t)

	doJSON(t, r, http.MethodPost, "/api/v1/solve", `{"method":"brent","expression":"x*x - 2","lower":0,"upper":2}`)
	doJSON(t, r, http.MethodPost, "/api/v1/solve", `{"method":"brent","expression":"x*x - 2","lower":3,"upper":4}`)
	doJSON(t, r, http.MethodPost, "/api/v1/solve", `{"method":"steffensen","expression":"x*x - 2","guess":1}`)

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.Solves.WithLabelValues("brent", metrics.StatusConverged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.Solves.WithLabelValues("brent", metrics.StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.Solves.WithLabelValues("steffensen", metrics.StatusConverged)))
}

func waitForJob(t *testing.T, h http.Handler, id string) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.Eventually(t, func() bool {
		var rr *httptest.ResponseRecorder
		rr, body = doJSON(t, h, http.MethodGet, "/api/v1/jobs/"+id, "")
		return rr.Code == http.StatusOK && terminal(body["status"].(string))
	}, 5*time.Second, 5*time.Millisecond)
	return body
}

func TestJobLifecycle(t *testing.T) {
	srv, r := newTestServer(t)

	rr, started := doJSON(t, r, http.MethodPost, "/api/v1/jobs", `{"name":"sqrt2","method":"brent","expression":"x*x - 2","lower":0,"upper":2}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.Equal(t, StatusPending, started["status"])
	assert.Equal(t, "sqrt2", started["name"])
	id := started["job_id"].(string)
	require.Len(t, id, 36, "job ids are UUIDs")

	done := waitForJob(t, r, id)
	assert.Equal(t, StatusCompleted, done["status"])
	assert.NotEmpty(t, done["end_time"])
	result := done["result"].(map[string]interface{})
	assert.InDelta(t, 1.4142135623730951, result["root"], 1e-9)
	iterations := int(result["iterations"].(float64))

	// Iteration history as CSV
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id+"/iterations.csv", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	records, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, iterations+1)
	assert.Equal(t, []string{"iteration", "root", "lower", "upper"}, records[0])
	assert.Equal(t, "1", records[1][0])

	// A finished job cannot be cancelled
	rr, body := doJSON(t, r, http.MethodDelete, "/api/v1/jobs/"+id, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "conflict", body["kind"])

	assert.Equal(t, 0.0, testutil.ToFloat64(srv.metrics.ActiveJobs))
}

func TestJobFailureAndUnknown(t *testing.T) {
	_, r := newTestServer(t)

	rr, started := doJSON(t, r, http.MethodPost, "/api/v1/jobs", `{"method":"newton","expression":"x*x + 1","derivative":"2*x","guess":0}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	done := waitForJob(t, r, started["job_id"].(string))
	assert.Equal(t, StatusFailed, done["status"])
	assert.Equal(t, "derivative_degenerate", done["error_kind"])

	rr, _ = doJSON(t, r, http.MethodPost, "/api/v1/jobs", `{"method":"newton"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	for _, path := range []string{"/api/v1/jobs/missing", "/api/v1/jobs/missing/iterations.csv"} {
		rr, body := doJSON(t, r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Equal(t, "not_found", body["kind"], path)
	}
	rr, _ = doJSON(t, r, http.MethodDelete, "/api/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPolishingIterationsCSV(t *testing.T) {
	_, r := newTestServer(t)

	_, started := doJSON(t, r, http.MethodPost, "/api/v1/jobs", `{"method":"secant","expression":"x*x - 2","guess":1,"guess2":2}`)
	id := started["job_id"].(string)
	waitForJob(t, r, id)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id+"/iterations.csv", nil))
	records, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Greater(t, len(records), 1)
	assert.Equal(t, "NaN", records[1][2])
	assert.Equal(t, "NaN", records[1][3])
}

func TestInterpEval(t *testing.T) {
	srv, r := newTestServer(t)

	rr, body := doJSON(t, r, http.MethodPost, "/api/v1/interp/eval",
		`{"kind":"linear","x":[0,1,2],"y":[0,2,4],"at":[0.5,1.5,3],"integral":[0,2]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	assert.Equal(t, "linear", body["kind"])
	assert.InDelta(t, 4.0, body["integral"], 1e-12)

	points := body["points"].([]interface{})
	require.Len(t, points, 3)
	first := points[0].(map[string]interface{})
	assert.InDelta(t, 1.0, first["value"], 1e-12)
	assert.InDelta(t, 2.0, first["deriv"], 1e-12)
	assert.InDelta(t, 0.0, first["deriv2"], 1e-12)

	outside := points[2].(map[string]interface{})
	assert.NotContains(t, outside, "value")
	assert.Contains(t, outside["error"], "interp")

	assert.Equal(t, 2.0, testutil.ToFloat64(srv.metrics.Interp.WithLabelValues("linear", interpOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.Interp.WithLabelValues("linear", interpDomain)))

	tests := []struct {
		name string
		body string
		kind string
	}{
		{"unsorted table", `{"kind":"linear","x":[0,2,1],"y":[0,1,2],"at":[0.5]}`, "invalid_table"},
		{"too few points", `{"kind":"cspline","x":[0,1],"y":[0,1],"at":[0.5]}`, "invalid_table"},
		{"unknown kind", `{"kind":"akima","x":[0,1,2],"y":[0,1,2],"at":[0.5]}`, "invalid_spec"},
		{"reversed integral", `{"kind":"linear","x":[0,1,2],"y":[0,1,2],"integral":[2,0]}`, "invalid_range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := doJSON(t, r, http.MethodPost, "/api/v1/interp/eval", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, tt.kind, body["kind"])
		})
	}
}

func rpc(t *testing.T, h http.Handler, body string) map[string]interface{} {
	t.Helper()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rr.Code, "JSON-RPC always answers 200")

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "2.0", response["jsonrpc"])
	return response
}

func rpcErrorCode(t *testing.T, response map[string]interface{}) int {
	t.Helper()

	errObj, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "response should contain error object: %v", response)
	return int(errObj["code"].(float64))
}

func TestJSONRPC(t *testing.T) {
	_, r := newTestServer(t)

	t.Run("solve with object params", func(t *testing.T) {
		resp := rpc(t, r, `{"jsonrpc":"2.0","id":1,"method":"roots.solve","params":{"method":"false_position","expression":"cos(x) - x","lower":0,"upper":1}}`)
		result := resp["result"].(map[string]interface{})
		assert.InDelta(t, 0.7390851332151607, result["root"], 1e-9)
		assert.EqualValues(t, 1, resp["id"])
	})

	t.Run("solve with array params", func(t *testing.T) {
		resp := rpc(t, r, `{"jsonrpc":"2.0","id":"a","method":"roots.solve","params":[{"method":"newton","expression":"x*x - 2","guess":1}]}`)
		result := resp["result"].(map[string]interface{})
		assert.InDelta(t, 1.4142135623730951, result["root"], 1e-12)
		assert.Equal(t, "a", resp["id"])
	})

	t.Run("solver failure carries kind and partial result", func(t *testing.T) {
		resp := rpc(t, r, `{"jsonrpc":"2.0","id":2,"method":"roots.solve","params":{"method":"bisection","expression":"x*x - 2","lower":0,"upper":2,"max_iterations":3}}`)
		assert.Equal(t, apierrors.CodeSolverFailed, rpcErrorCode(t, resp))
		data := resp["error"].(map[string]interface{})["data"].(map[string]interface{})
		assert.Equal(t, "max_iterations", data["kind"])
		assert.EqualValues(t, 3, data["result"].(map[string]interface{})["iterations"])
	})

	t.Run("start status cancel", func(t *testing.T) {
		resp := rpc(t, r, `{"jsonrpc":"2.0","id":3,"method":"roots.start","params":{"method":"brent","expression":"x*x*x - x - 2","lower":1,"upper":2}}`)
		id := resp["result"].(map[string]interface{})["job_id"].(string)

		require.Eventually(t, func() bool {
			resp := rpc(t, r, `{"jsonrpc":"2.0","id":4,"method":"roots.status","params":{"job_id":"`+id+`"}}`)
			return resp["result"].(map[string]interface{})["status"] == StatusCompleted
		}, 5*time.Second, 5*time.Millisecond)

		resp = rpc(t, r, `{"jsonrpc":"2.0","id":5,"method":"roots.cancel","params":{"job_id":"`+id+`"}}`)
		assert.Equal(t, apierrors.CodeConflict, rpcErrorCode(t, resp))
	})

	t.Run("interp eval", func(t *testing.T) {
		resp := rpc(t, r, `{"jsonrpc":"2.0","id":6,"method":"interp.eval","params":{"kind":"cspline","x":[0,1,2,3],"y":[0,1,2,3],"at":[1.5]}}`)
		points := resp["result"].(map[string]interface{})["points"].([]interface{})
		assert.InDelta(t, 1.5, points[0].(map[string]interface{})["value"], 1e-12)
	})

	errorTests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{"jsonrpc":`, apierrors.CodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"roots.solve"}`, apierrors.CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"roots.optimize"}`, apierrors.CodeMethodNotFound},
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"roots.solve"}`, apierrors.CodeInvalidParams},
		{"empty params array", `{"jsonrpc":"2.0","id":1,"method":"roots.solve","params":[]}`, apierrors.CodeInvalidParams},
		{"invalid spec", `{"jsonrpc":"2.0","id":1,"method":"roots.solve","params":{"method":"brent"}}`, apierrors.CodeInvalidParams},
		{"missing job id", `{"jsonrpc":"2.0","id":1,"method":"roots.status","params":{}}`, apierrors.CodeInvalidParams},
		{"unknown job", `{"jsonrpc":"2.0","id":1,"method":"roots.status","params":{"job_id":"nope"}}`, apierrors.CodeNotFound},
		{"cancel unknown job", `{"jsonrpc":"2.0","id":1,"method":"roots.cancel","params":{"job_id":"nope"}}`, apierrors.CodeNotFound},
	}
	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, rpcErrorCode(t, rpc(t, r, tt.body)))
		})
	}
}

func TestClose(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t), nil)
	err := srv.Close()
	assert.NoError(t, err, "Close should not return an error")

	_, err = srv.jobs.Start(validSpec())
	assert.ErrorIs(t, err, apierrors.ErrUnavailable)
}

func TestRespondWithError(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t), nil)
	defer srv.Close()

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		data       interface{}
		expectedID interface{}
	}{
		{
			name:       "valid error response",
			code:       apierrors.CodeInvalidParams,
			message:    "invalid input",
			id:         "123",
			expectedID: "123",
		},
		{
			name:       "nil id",
			code:       apierrors.CodeInternalError,
			message:    "server error",
			id:         nil,
			expectedID: nil,
		},
		{
			name:       "with data",
			code:       apierrors.CodeSolverFailed,
			message:    "no convergence",
			id:         7.0,
			data:       map[string]interface{}{"kind": "max_iterations"},
			expectedID: 7.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id, tt.data)

			// Errors travel in the body with a 200 status
			assert.Equal(t, http.StatusOK, rr.Code, "status code should match")

			var response map[string]interface{}
			err := json.NewDecoder(rr.Body).Decode(&response)
			assert.NoError(t, err, "should decode response body")

			errObj, ok := response["error"].(map[string]interface{})
			assert.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"], "error code should match")
			assert.Equal(t, tt.message, errObj["message"], "error message should match")
			if tt.data == nil {
				assert.NotContains(t, errObj, "data")
			} else {
				assert.Equal(t, tt.data, errObj["data"])
			}

			assert.Equal(t, tt.expectedID, response["id"], "response ID should match")
		})
	}
}
