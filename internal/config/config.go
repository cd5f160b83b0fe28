package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/roots/internal/problem"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Solver struct {
		MaxIterations       int     `env:"SOLVER_MAX_ITERATIONS" envDefault:"100"`
		EpsAbs              float64 `env:"SOLVER_EPS_ABS" envDefault:"0"`
		EpsRel              float64 `env:"SOLVER_EPS_REL" envDefault:"1e-10"`
		DerivativeThreshold float64 `env:"SOLVER_DERIVATIVE_THRESHOLD" envDefault:"1e-14"`
	}
	Jobs struct {
		WorkerCount int           `env:"JOB_WORKER_COUNT" envDefault:"10"`
		Retention   time.Duration `env:"JOB_RETENTION" envDefault:"1h"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the solvers or the job runner cannot use.
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Port <= 0 || c.HTTP.Port > 65535:
		return fmt.Errorf("config: HTTP_PORT %d out of range", c.HTTP.Port)
	case c.Solver.MaxIterations <= 0:
		return fmt.Errorf("config: SOLVER_MAX_ITERATIONS must be positive, got %d", c.Solver.MaxIterations)
	case c.Solver.EpsAbs < 0 || c.Solver.EpsRel < 0:
		return fmt.Errorf("config: solver tolerances must be non-negative")
	case c.Solver.EpsAbs == 0 && c.Solver.EpsRel == 0:
		return fmt.Errorf("config: SOLVER_EPS_ABS and SOLVER_EPS_REL cannot both be zero")
	case c.Solver.DerivativeThreshold < 0:
		return fmt.Errorf("config: SOLVER_DERIVATIVE_THRESHOLD must be non-negative")
	case c.Jobs.WorkerCount <= 0:
		return fmt.Errorf("config: JOB_WORKER_COUNT must be positive, got %d", c.Jobs.WorkerCount)
	}
	return nil
}

// SolveOptions returns the solver defaults as problem options.
func (c *Config) SolveOptions() problem.Options {
	return problem.Options{
		MaxIterations:       c.Solver.MaxIterations,
		EpsAbs:              c.Solver.EpsAbs,
		EpsRel:              c.Solver.EpsRel,
		DerivativeThreshold: c.Solver.DerivativeThreshold,
	}
}
