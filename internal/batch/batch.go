// Package batch solves a file of named root-finding problems and reports
// the outcomes as CSV.
//
// A batch file is TOML with one [[problem]] table per problem:
//
//	workers = 4
//
//	[[problem]]
//	name = "sqrt2"
//	method = "brent"
//	expression = "x*x - 2"
//	lower = 0
//	upper = 2
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/copyleftdev/roots/internal/logging"
	"github.com/copyleftdev/roots/internal/problem"
	"github.com/copyleftdev/roots/internal/roots"
)

// ErrInvalidFile is returned for batch files that decode but cannot run.
var ErrInvalidFile = errors.New("batch: invalid file")

// File is a decoded batch file.
type File struct {
	Workers  int            `toml:"workers"`
	Problems []problem.Spec `toml:"problem"`
}

// Decode reads a batch file from r. Unknown keys are rejected so that a
// misspelt tolerance does not silently fall back to the default. Unnamed
// problems are named problem1, problem2, ... by position.
func Decode(r io.Reader) (*File, error) {
	var f File
	meta, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return finish(&f, meta)
}

// Load reads the batch file at path.
func Load(path string) (*File, error) {
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return finish(&f, meta)
}

func finish(f *File, meta toml.MetaData) (*File, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidFile, strings.Join(keys, ", "))
	}
	if len(f.Problems) == 0 {
		return nil, fmt.Errorf("%w: no [[problem]] entries", ErrInvalidFile)
	}
	if f.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidFile, f.Workers)
	}

	seen := make(map[string]int, len(f.Problems))
	for i := range f.Problems {
		p := &f.Problems[i]
		if p.Name == "" {
			p.Name = "problem" + strconv.Itoa(i+1)
		}
		if j, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("%w: problems %d and %d are both named %q", ErrInvalidFile, j+1, i+1, p.Name)
		}
		seen[p.Name] = i
	}
	return f, nil
}

// Outcome statuses written to the status column.
const (
	StatusConverged = "converged"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Outcome is the result of one problem. Result is nil when the problem
// failed before the solver started.
type Outcome struct {
	Spec     problem.Spec
	Result   *roots.Result
	Err      error
	Duration time.Duration
}

// Status classifies the outcome.
func (o Outcome) Status() string {
	switch {
	case o.Err == nil:
		return StatusConverged
	case errors.Is(o.Err, context.Canceled), errors.Is(o.Err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusFailed
	}
}

// Runner solves problems concurrently. Every problem gets its own function
// and solver instance, so no solver state is shared between goroutines.
type Runner struct {
	Options problem.Options
	// Workers bounds concurrent solves. Zero means GOMAXPROCS.
	Workers int
	Logger  *logging.Logger
}

// Run solves specs and returns one outcome per spec, in input order. A
// failing problem does not stop the others; canceling ctx does.
func (r *Runner) Run(ctx context.Context, specs []problem.Spec) []Outcome {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.New(logging.InfoLevel, io.Discard)
	}

	outcomes := make([]Outcome, len(specs))
	slots := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := range specs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			spec := specs[i]
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				outcomes[i] = Outcome{Spec: spec, Err: ctx.Err()}
				return
			}
			defer func() { <-slots }()

			problemLogger := logger.WithFields(map[string]interface{}{
				"problem": spec.Name,
				"method":  spec.Method,
			})
			opts := r.Options
			opts.Logger = logging.NewZapLogger(problemLogger)

			start := time.Now()
			result, err := problem.Solve(ctx, spec, opts)
			outcomes[i] = Outcome{Spec: spec, Result: result, Err: err, Duration: time.Since(start)}

			if err != nil {
				problemLogger.WithError(err).Warn("Problem failed")
				return
			}
			problemLogger.Info("Problem solved", map[string]interface{}{
				"root":       result.Root,
				"iterations": result.Iterations,
			})
		}(i)
	}

	wg.Wait()
	return outcomes
}
