package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/recs/internal/changelog"
	"github.com/roach88/recs/internal/engine"
	"github.com/roach88/recs/internal/harness"
	"github.com/roach88/recs/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string // record store changes into this change log
	MetricsFile string // write query metrics in Prometheus text format
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string          `json:"scenario"`
	Result   *harness.Result `json:"result"`
	Recorded int             `json:"recorded,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its query events",
		Long: `Run a scenario and print every query event in emission order, followed by
each query's final matching records.

With --db (or RECS_DB) every store change is appended to a SQLite change
log that "recs replay" can rebuild the store from. Appending to an existing
log continues its sequence numbers.

Example:
  recs run ./scenarios/position.yaml
  recs run --db ./recs.db --metrics-file ./recs.prom ./scenarios/position.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record store changes into this SQLite change log (default $RECS_DB)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write query metrics to this file in Prometheus text format")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}

	registry := prometheus.NewRegistry()
	if opts.MetricsFile != "" {
		metrics, err := engine.NewMetrics(registry)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		runOpts = append(runOpts, harness.WithMetrics(metrics))
	}

	var recorder *changelog.Recorder
	if opts.Database != "" || opts.Config.DB != "" {
		db, err := opts.database(opts.Database)
		if err != nil {
			return err
		}
		log, err := changelog.Open(db)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open change log", err)
		}
		defer func() {
			if closeErr := log.Close(); closeErr != nil {
				logger.Error("error closing change log", "error", closeErr)
			}
		}()

		last, err := log.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read change log", err)
		}
		st := store.New(store.WithLogger(logger), store.WithClock(store.NewClockAt(last)))
		recorder = changelog.NewRecorder(ctx, st, log, changelog.WithLogger(logger))
		runOpts = append(runOpts, harness.WithStore(st))
		logger.Info("recording changes", "db", db, "after_seq", last)
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	out := RunResult{Scenario: scenario.Name, Result: result}
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			return WrapExitError(ExitFailure, "failed to record changes", err)
		}
		out.Recorded = recorder.Recorded()
	}

	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, registry); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
		formatter.VerboseLog("Wrote metrics to %s", opts.MetricsFile)
	}

	if formatter.JSON() {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		printRun(formatter, out)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func printRun(formatter *OutputFormatter, out RunResult) {
	for _, e := range out.Result.Trace {
		line := fmt.Sprintf("seq=%d %s %s %s", e.Seq, e.Query, e.Type, e.Record)
		if e.Current != "" {
			line += " " + e.Current
		}
		formatter.Textf("%s", line)
	}

	queries := make([]string, 0, len(out.Result.Matching))
	for name := range out.Result.Matching {
		queries = append(queries, name)
	}
	sort.Strings(queries)
	for _, name := range queries {
		formatter.Textf("%s: %v", name, out.Result.Matching[name])
	}

	if out.Recorded > 0 {
		formatter.Textf("recorded %d change(s)", out.Recorded)
	}
	formatter.Mark(out.Result.Pass, "%s", out.Scenario)
	for _, e := range out.Result.Errors {
		formatter.Textf("  %s", e)
	}
}
