package cli

import (
	"context"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/recs/internal/changelog"
	"github.com/roach88/recs/internal/harness"
	"github.com/roach88/recs/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Schemas  string // CUE schema directory declaring the tables
	Scenario string // scenario file whose tables to declare
	Dump     bool   // print every record's properties
}

// TableSummary holds the replayed contents of one table.
type TableSummary struct {
	Table   string            `json:"table"`
	Records int               `json:"records"`
	Rows    map[string]string `json:"rows,omitempty"` // record -> properties
}

// ReplayReport holds the overall replay result.
type ReplayReport struct {
	Applied       int            `json:"applied"`
	Skipped       int            `json:"skipped"`
	LastSeq       int64          `json:"last_seq"`
	Tables        []TableSummary `json:"tables"`
	Deterministic bool           `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild a store from a change log and verify determinism",
		Long: `Replay a SQLite change log into an empty store and report its contents.

Tables are declared by a CUE schema directory (--schemas or RECS_SCHEMAS),
a scenario file (--scenario), or both. Entries for undeclared tables are
skipped with a warning. The log is replayed twice into separate stores and
the two results are compared.

Exit codes:
  0 - Replay succeeded and is deterministic
  1 - An entry could not be applied, or the two replays differ
  2 - Command error (log not found, no tables declared, etc.)

Examples:
  recs replay --db ./recs.db --schemas ./schemas
  recs replay --db ./recs.db --scenario ./scenarios/position.yaml --dump
  recs replay --db ./recs.db --schemas ./schemas --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite change log (default $RECS_DB)")
	cmd.Flags().StringVar(&opts.Schemas, "schemas", "", "CUE schema directory (default $RECS_SCHEMAS)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario file declaring the tables")
	cmd.Flags().BoolVar(&opts.Dump, "dump", false, "print every record's properties")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := opts.existingDatabase(opts.Database)
	if err != nil {
		return err
	}
	declare, err := opts.tableSource()
	if err != nil {
		return err
	}

	log, err := changelog.Open(db)
	if err != nil {
		_ = formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open change log", err)
	}
	defer func() {
		if closeErr := log.Close(); closeErr != nil {
			logger.Error("error closing change log", "error", closeErr)
		}
	}()

	first, res, err := replayInto(ctx, log, declare, logger)
	if err != nil {
		return err
	}
	second, _, err := replayInto(ctx, log, declare, logger)
	if err != nil {
		return err
	}

	report := ReplayReport{
		Applied:       res.Applied,
		Skipped:       res.Skipped,
		LastSeq:       res.LastSeq,
		Tables:        summarize(first, opts.Dump),
		Deterministic: storesEqual(first, second),
	}

	if formatter.JSON() {
		if !report.Deterministic {
			_ = formatter.Failure(report, ErrCodeReplayFailed, "determinism verification failed")
			return NewExitError(ExitFailure, "determinism verification failed")
		}
		return formatter.Success(report)
	}
	return outputReplayText(formatter, report)
}

// tableSource resolves which tables the replay stores declare.
func (opts *ReplayOptions) tableSource() (func(*store.Store) error, error) {
	schemas := opts.Schemas
	if schemas == "" {
		schemas = opts.Config.Schemas
	}
	if schemas == "" && opts.Scenario == "" {
		return nil, NewExitError(ExitCommandError, "no tables declared: pass --schemas, --scenario or set RECS_SCHEMAS")
	}

	var loaded *LoadResult
	if schemas != "" {
		res, err := LoadTables(schemas)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load schemas", err)
		}
		loaded = res
	}

	var scenario *harness.Scenario
	if opts.Scenario != "" {
		s, err := harness.LoadScenario(opts.Scenario)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		scenario = s
	}

	return func(st *store.Store) error {
		if loaded != nil {
			if err := RegisterLoaded(st, loaded); err != nil {
				return err
			}
		}
		if scenario != nil {
			return harness.RegisterTables(st, scenario)
		}
		return nil
	}, nil
}

// replayInto replays the whole log into a new store.
func replayInto(ctx context.Context, log *changelog.Log, declare func(*store.Store) error, logger *slog.Logger) (*store.Store, changelog.ReplayResult, error) {
	st := store.New(store.WithLogger(logger))
	if err := declare(st); err != nil {
		return nil, changelog.ReplayResult{}, WrapExitError(ExitCommandError, "failed to declare tables", err)
	}
	res, err := changelog.Replay(ctx, log, st, changelog.WithLogger(logger))
	if err != nil {
		return nil, res, WrapExitError(ExitFailure, "replay failed", err)
	}
	return st, res, nil
}

// summarize lists each table's record count, and with rows its properties.
func summarize(st *store.Store, rows bool) []TableSummary {
	tables := st.Tables()
	out := make([]TableSummary, 0, len(tables))
	for _, t := range tables {
		records := st.GetAll(t)
		sum := TableSummary{Table: t.ID(), Records: len(records)}
		if rows {
			sum.Rows = make(map[string]string, len(records))
			for _, r := range records {
				sum.Rows[r.String()] = st.Get(t, r).String()
			}
		}
		out = append(out, sum)
	}
	return out
}

// storesEqual compares the contents of two stores declaring the same tables.
func storesEqual(a, b *store.Store) bool {
	for _, ta := range a.Tables() {
		tb, ok := b.Table(ta.ID())
		if !ok {
			return false
		}
		ra, rb := a.GetAll(ta), b.GetAll(tb)
		if len(ra) != len(rb) {
			return false
		}
		for i, r := range ra {
			if r != rb[i] || !a.Get(ta, r).Equal(b.Get(tb, r)) {
				return false
			}
		}
	}
	return true
}

// outputReplayText outputs the replay report as text.
func outputReplayText(formatter *OutputFormatter, report ReplayReport) error {
	formatter.Textf("Replay Summary: %d applied, %d skipped, last seq %d", report.Applied, report.Skipped, report.LastSeq)
	formatter.Textf("")

	for _, t := range report.Tables {
		formatter.Textf("%s: %d record(s)", t.Table, t.Records)
		for _, r := range sortedKeys(t.Rows) {
			formatter.Textf("  %s %s", r, t.Rows[r])
		}
	}
	formatter.Textf("")

	if report.Deterministic {
		formatter.Mark(true, "Replay verified deterministic")
		return nil
	}

	formatter.Mark(false, "Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
