package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recs/internal/changelog"
	"github.com/roach88/recs/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	After    int64  // only entries with a greater seq
	Table    string // optional - filter to one table
	Record   string // optional - filter to one record (hex)
}

// TraceEntry is one change log entry in the timeline.
type TraceEntry struct {
	Seq        int64  `json:"seq"`
	Op         string `json:"op"`
	Table      string `json:"table"`
	Record     string `json:"record"`
	Properties string `json:"properties,omitempty"` // canonical JSON
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Entries int `json:"entries"`
	Sets    int `json:"sets"`
	Removes int `json:"removes"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceEntry `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the change log timeline",
		Long: `Print the entries of a SQLite change log in replay order.

Each entry is a set (the record's full properties as canonical JSON) or a
remove. No schema is needed.

Examples:
  recs trace --db ./recs.db
  recs trace --db ./recs.db --table Position --after 10
  recs trace --db ./recs.db --record 0x01 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite change log (default $RECS_DB)")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only entries after this seq")
	cmd.Flags().StringVar(&opts.Table, "table", "", "filter to one table")
	cmd.Flags().StringVar(&opts.Record, "record", "", "filter to one record (hex key)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := opts.existingDatabase(opts.Database)
	if err != nil {
		return err
	}
	record, err := opts.recordFilter()
	if err != nil {
		return err
	}

	log, err := changelog.Open(db)
	if err != nil {
		_ = formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open change log", err)
	}
	defer log.Close()

	result := TraceResult{Timeline: []TraceEntry{}}
	err = log.Each(ctx, opts.After, func(e changelog.Entry) error {
		if opts.Table != "" && e.Table != opts.Table {
			return nil
		}
		if record != "" && e.Record.String() != record {
			return nil
		}

		entry := TraceEntry{Seq: e.Seq, Op: string(e.Op), Table: e.Table, Record: e.Record.String()}
		switch e.Op {
		case changelog.OpSet:
			entry.Properties = string(e.Data)
			result.Stats.Sets++
		case changelog.OpRemove:
			result.Stats.Removes++
		}
		result.Timeline = append(result.Timeline, entry)
		result.Stats.Entries++
		return nil
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read change log", err)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	if len(result.Timeline) == 0 {
		formatter.Textf("No entries found.")
		return nil
	}
	for _, e := range result.Timeline {
		line := fmt.Sprintf("[%d] %s %s %s", e.Seq, e.Op, e.Table, e.Record)
		if e.Properties != "" {
			line += " " + e.Properties
		}
		formatter.Textf("%s", line)
	}
	formatter.Textf("")
	formatter.Textf("Stats: %d entries, %d set(s), %d remove(s)", result.Stats.Entries, result.Stats.Sets, result.Stats.Removes)
	return nil
}

// recordFilter normalizes the --record flag to the record's full hex form.
func (opts *TraceOptions) recordFilter() (string, error) {
	if opts.Record == "" {
		return "", nil
	}
	r, err := ir.ParseRecord(opts.Record)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "invalid --record", err)
	}
	return r.String(), nil
}
