package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/recs/internal/config"
	"github.com/roach88/recs/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config and Logger are set before any subcommand runs.
	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the recs CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "recs",
		Version: ir.EngineVersion,
		Short: "recs - reactive record/table queries",
		Long: `Run, test and replay reactive queries over a record/table property store.

Environment:
  RECS_LOG_LEVEL   log level (debug, info, warn, error; default warn)
  RECS_LOG_FORMAT  log format (text, json; default text)
  RECS_DB          default change log path for run, replay and trace
  RECS_SCHEMAS     default CUE schema directory for validate and replay`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// setup loads the environment configuration and builds the logger.
// Logs go to stderr so they never mix with command output.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger, err := cfg.Logger(cmd.ErrOrStderr(), o.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg
	o.Logger = logger
	return nil
}

// logger returns the configured logger, or slog.Default() when setup has
// not run.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// database resolves the change log path: the flag, then RECS_DB.
func (o *RootOptions) database(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if o.Config.DB != "" {
		return o.Config.DB, nil
	}
	return "", NewExitError(ExitCommandError, "no database: pass --db or set RECS_DB")
}

// existingDatabase is database for commands that only read the log.
func (o *RootOptions) existingDatabase(flag string) (string, error) {
	path, err := o.database(flag)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", WrapExitError(ExitCommandError, "database not found", err)
	}
	return path, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
