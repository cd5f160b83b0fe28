package server

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"time"

	apierrors "github.com/copyleftdev/roots/internal/errors"
	"github.com/copyleftdev/roots/internal/roots"
)

// solution is the wire form of roots.Result. encoding/json rejects NaN,
// so values that are undefined for the method (the bracket of a polishing
// solver) are omitted.
type solution struct {
	Method     string   `json:"method"`
	Root       *float64 `json:"root"`
	Lower      *float64 `json:"lower,omitempty"`
	Upper      *float64 `json:"upper,omitempty"`
	Iterations int      `json:"iterations"`
	Converged  bool     `json:"converged"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func newSolution(r *roots.Result) *solution {
	if r == nil {
		return nil
	}
	return &solution{
		Method:     r.Method,
		Root:       finite(r.Root),
		Lower:      finite(r.Lower),
		Upper:      finite(r.Upper),
		Iterations: r.Iterations,
		Converged:  r.Converged,
	}
}

// jobView is the status document of a job.
type jobView struct {
	ID         string    `json:"job_id"`
	Name       string    `json:"name,omitempty"`
	Method     string    `json:"method"`
	Status     string    `json:"status"`
	StartTime  string    `json:"start_time"`
	LastUpdate string    `json:"last_update"`
	EndTime    string    `json:"end_time,omitempty"`
	Result     *solution `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
}

func newJobView(job JobState) jobView {
	view := jobView{
		ID:         job.ID,
		Name:       job.Spec.Name,
		Method:     job.Spec.Method,
		Status:     job.Status,
		StartTime:  job.StartTime.Format(time.RFC3339),
		LastUpdate: job.LastUpdated.Format(time.RFC3339),
		Result:     newSolution(job.Result),
	}
	if job.EndTime != nil {
		view.EndTime = job.EndTime.Format(time.RFC3339)
	}
	if job.Err != nil {
		view.Error = job.Err.Error()
		view.ErrorKind = apierrors.Kind(job.Err)
	}
	return view
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeIterations writes the iteration history of r as CSV. Undefined
// bracket ends are written as NaN.
func writeIterations(w io.Writer, r *roots.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"iteration", "root", "lower", "upper"}); err != nil {
		return err
	}
	for _, it := range r.History {
		record := []string{
			strconv.Itoa(it.Iteration),
			formatFloat(it.Root),
			formatFloat(it.Lower),
			formatFloat(it.Upper),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
