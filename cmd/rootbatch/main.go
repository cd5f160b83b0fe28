// Command rootbatch solves the problems of a TOML batch file and writes a
// CSV report.
//
//	rootbatch -o report.csv problems.toml
//
// It exits 0 when every problem converged, 1 when any failed or the run
// could not complete, and 2 on a usage error.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/copyleftdev/roots/internal/batch"
	"github.com/copyleftdev/roots/internal/config"
	"github.com/copyleftdev/roots/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("rootbatch", flag.ContinueOnError)
	flags.SetOutput(stderr)
	output := flags.String("o", "", "write the CSV report to this file instead of stdout")
	workers := flags.Int("workers", 0, "concurrent solves (overrides the file's workers setting)")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: rootbatch [flags] problems.toml\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return 2
	}

	// Solver defaults and logging come from the same environment as the
	// server.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	logger = logger.WithField("service", "rootbatch")

	file, err := batch.Load(flags.Arg(0))
	if err != nil {
		logger.Error("Failed to load batch file", map[string]interface{}{"error": err.Error()})
		return 1
	}

	runner := &batch.Runner{
		Options: cfg.SolveOptions(),
		Workers: file.Workers,
		Logger:  logger,
	}
	if *workers > 0 {
		runner.Workers = *workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcomes := runner.Run(ctx, file.Problems)

	if err := writeReport(*output, stdout, outcomes); err != nil {
		logger.Error("Failed to write report", map[string]interface{}{"error": err.Error()})
		return 1
	}

	summary := batch.Summarize(outcomes)
	logger.Info(summary.String(), map[string]interface{}{
		"converged": summary.Converged,
		"failed":    summary.Failed,
		"canceled":  summary.Canceled,
	})
	if summary.Converged != summary.Total {
		return 1
	}
	return 0
}

// writeReport writes the CSV to path, or to stdout when path is empty. The
// file is closed before it returns.
func writeReport(path string, stdout io.Writer, outcomes []batch.Outcome) error {
	if path == "" {
		return batch.WriteCSV(stdout, outcomes)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := batch.WriteCSV(f, outcomes); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
