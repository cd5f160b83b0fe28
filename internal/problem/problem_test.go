package problem

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/roots/internal/roots"
)

func float(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{name: "bracketing", spec: Spec{Method: "brent", Expression: "x*x - 2", Lower: 0, Upper: 2}},
		{name: "alias", spec: Spec{Method: "falsepos", Expression: "x*x - 2", Lower: 0, Upper: 2}},
		{name: "polishing", spec: Spec{Method: "newton", Expression: "x*x - 2", Guess: 1}},
		{name: "table", spec: Spec{Method: "bisection", Table: &Table{X: []float64{0, 1}, Y: []float64{-1, 1}}, Upper: 1}},
		{name: "secant two points", spec: Spec{Method: "secant", Expression: "x*x - 2", Guess: 1, Guess2: float(2)}},
		{name: "unknown method", spec: Spec{Method: "halley", Expression: "x"}, wantErr: true},
		{name: "missing expression", spec: Spec{Method: "newton"}, wantErr: true},
		{name: "expression and table", spec: Spec{Method: "newton", Expression: "x", Table: &Table{}}, wantErr: true},
		{name: "derivative with table", spec: Spec{Method: "newton", Derivative: "1", Table: &Table{}}, wantErr: true},
		{name: "empty bracket", spec: Spec{Method: "bisection", Expression: "x", Lower: 1, Upper: 1}, wantErr: true},
		{name: "guess2 without secant", spec: Spec{Method: "newton", Expression: "x", Guess2: float(1)}, wantErr: true},
		{name: "negative tolerance", spec: Spec{Method: "newton", Expression: "x", EpsAbs: -1}, wantErr: true},
		{name: "negative iterations", spec: Spec{Method: "newton", Expression: "x", MaxIterations: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSpec)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSolve(t *testing.T) {
	methods := []string{"bisection", "false_position", "brent", "newton", "secant", "steffensen"}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			spec := Spec{
				Method:     method,
				Expression: "x*x - 2",
				Derivative: "2*x",
				Lower:      0,
				Upper:      2,
				Guess:      1.5,
				EpsAbs:     1e-12,
			}
			result, err := Solve(context.Background(), spec, DefaultOptions())
			require.NoError(t, err)
			assert.True(t, result.Converged)
			assert.Equal(t, method, result.Method)
			assert.InDelta(t, math.Sqrt2, result.Root, 1e-9)
			assert.Equal(t, spec.Bracketing(), !math.IsNaN(result.Lower))
		})
	}
}

func TestSolveVariants(t *testing.T) {
	t.Run("finite difference derivative", func(t *testing.T) {
		result, err := Solve(context.Background(), Spec{
			Method:     "newton",
			Expression: "cos(x) - x",
			Guess:      1,
		}, DefaultOptions())
		require.NoError(t, err)
		assert.InDelta(t, 0.7390851332151607, result.Root, 1e-8)
	})

	t.Run("secant from two points", func(t *testing.T) {
		result, err := Solve(context.Background(), Spec{
			Method:     "secant",
			Expression: "x*x - 2",
			Guess:      1,
			Guess2:     float(2),
		}, DefaultOptions())
		require.NoError(t, err)
		assert.InDelta(t, math.Sqrt2, result.Root, 1e-9)
	})

	t.Run("tabulated", func(t *testing.T) {
		x := []float64{0, 0.5, 1, 1.5, 2, 2.5, 3}
		y := make([]float64, len(x))
		for i, v := range x {
			y[i] = v*v - 2
		}
		result, err := Solve(context.Background(), Spec{
			Method: "brent",
			Table:  &Table{Kind: "cspline", X: x, Y: y},
			Lower:  0,
			Upper:  3,
		}, DefaultOptions())
		require.NoError(t, err)
		assert.InDelta(t, math.Sqrt2, result.Root, 1e-2)
	})

	t.Run("residual", func(t *testing.T) {
		result, err := Solve(context.Background(), Spec{
			Method:     "bisection",
			Expression: "x*x - 2",
			Lower:      0,
			Upper:      2,
			Residual:   1e-2,
		}, DefaultOptions())
		require.NoError(t, err)
		assert.Less(t, result.Iterations, 10)
	})
}

func TestSolveErrors(t *testing.T) {
	tests := []struct {
		name       string
		spec       Spec
		wantErr    error
		wantResult bool
	}{
		{
			name:    "invalid spec",
			spec:    Spec{Method: "nope"},
			wantErr: ErrInvalidSpec,
		},
		{
			name:    "bad expression",
			spec:    Spec{Method: "newton", Expression: "(x + 1", Guess: 1},
			wantErr: ErrInvalidSpec,
		},
		{
			name:    "bad table",
			spec:    Spec{Method: "newton", Table: &Table{Kind: "akima", X: []float64{0, 1}, Y: []float64{0, 1}}},
			wantErr: ErrInvalidSpec,
		},
		{
			name:    "no sign change",
			spec:    Spec{Method: "brent", Expression: "x*x + 1", Lower: -1, Upper: 1},
			wantErr: roots.ErrInvalidBracket,
		},
		{
			name:       "flat derivative",
			spec:       Spec{Method: "newton", Expression: "x*x + 1", Derivative: "2*x", Guess: 0},
			wantErr:    roots.ErrDerivativeDegenerate,
			wantResult: true,
		},
		{
			name:       "budget",
			spec:       Spec{Method: "bisection", Expression: "x*x - 2", Lower: 0, Upper: 2, EpsAbs: 1e-15, MaxIterations: 5},
			wantErr:    roots.ErrMaxIterations,
			wantResult: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Solve(context.Background(), tt.spec, DefaultOptions())
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantResult, result != nil)
		})
	}
}

func TestSolveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Solve(ctx, Spec{Method: "brent", Expression: "x - 1", Lower: 0, Upper: 3}, DefaultOptions())
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Zero(t, result.Iterations)
}

func TestSolveDerivativeThreshold(t *testing.T) {
	spec := Spec{Method: "newton", Expression: "0.0001 * (x - 1)", Derivative: "0.0001", Guess: 0}

	opts := DefaultOptions()
	opts.DerivativeThreshold = 1e-3
	_, err := Solve(context.Background(), spec, opts)
	assert.ErrorIs(t, err, roots.ErrDerivativeDegenerate)

	result, err := Solve(context.Background(), spec, DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.Root, 1e-12)
}

func TestSolveZeroDerivativeThreshold(t *testing.T) {
	// slope 1e-15 sits below the default cutoff
	spec := Spec{Method: "newton", Expression: "0.000000000000001 * (x - 1)", Derivative: "0.000000000000001", Guess: 0}

	_, err := Solve(context.Background(), spec, DefaultOptions())
	assert.ErrorIs(t, err, roots.ErrDerivativeDegenerate)

	tests := []struct {
		name      string
		threshold float64
		wantErr   error
	}{
		{name: "zero only rejects exact zeros", threshold: 0},
		{name: "negative keeps the default", threshold: -1, wantErr: roots.ErrDerivativeDegenerate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.DerivativeThreshold = tt.threshold
			result, err := Solve(context.Background(), spec, opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, 1.0, result.Root, 1e-12)
		})
	}
}

func TestSpecDecoding(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var spec Spec
		err := json.Unmarshal([]byte(`{"method":"secant","expression":"x*x","guess":1,"guess2":2,"eps_rel":1e-9}`), &spec)
		require.NoError(t, err)
		assert.Equal(t, "secant", spec.Method)
		require.NotNil(t, spec.Guess2)
		assert.Equal(t, 2.0, *spec.Guess2)
		assert.Equal(t, 1e-9, spec.EpsRel)
	})

	t.Run("toml", func(t *testing.T) {
		var spec Spec
		_, err := toml.Decode(`
name = "table"
method = "bisection"
lower = 0.0
upper = 1.0
max_iterations = 20

[table]
kind = "linear"
x = [0.0, 1.0]
y = [-1.0, 1.0]
`, &spec)
		require.NoError(t, err)
		assert.Equal(t, "table", spec.Name)
		assert.Equal(t, 20, spec.MaxIterations)
		require.NotNil(t, spec.Table)
		assert.Equal(t, []float64{-1, 1}, spec.Table.Y)
	})
}
