package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// TableInfo describes one validated table.
type TableInfo struct {
	Name     string            `json:"name"`
	Fields   map[string]string `json:"fields"`
	Required []string          `json:"required"`
	Relation string            `json:"relation,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool        `json:"valid"`
	Files  int         `json:"files"`
	Tables []TableInfo `json:"tables"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schemas-dir]",
		Short: "Validate CUE table schemas",
		Long: `Derive table schemas from the CUE definitions under "table:" and report
them without touching any data.

The directory defaults to RECS_SCHEMAS.

Examples:
  recs validate ./schemas
  recs validate ./schemas --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.Config.Schemas
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if dir == "" {
		return outputValidateError(formatter, ErrCodeNotFound, "no schemas directory: pass one or set RECS_SCHEMAS")
	}

	res, err := LoadTables(dir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Describe())
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error())
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, dir)

	result := ValidationResult{
		Valid:  true,
		Files:  res.FileCount,
		Tables: make([]TableInfo, 0, len(res.Tables)),
	}
	for _, def := range res.Tables {
		info := TableInfo{
			Name:     def.Name,
			Fields:   make(map[string]string, def.Schema.Len()),
			Required: def.Schema.Required(),
			Relation: def.Relation,
		}
		for _, f := range def.Schema.Fields() {
			info.Fields[f.Name] = f.Type.String()
		}
		result.Tables = append(result.Tables, info)
		formatter.VerboseLog("Validated table: %s", def.Name)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	formatter.Mark(true, "%d table(s) valid", len(res.Tables))
	for _, def := range res.Tables {
		line := fmt.Sprintf("  %s %s", def.Name, def.Schema)
		if def.Relation != "" {
			line += " relation=" + def.Relation
		}
		formatter.Textf("%s", line)
	}
	return nil
}

// outputValidateError reports a schema that could not be loaded.
// Invalid schemas are validation failures (exit 1); missing paths are
// command errors (exit 2).
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	exit := ExitFailure
	switch code {
	case ErrCodeNotFound, ErrCodeScanError, ErrCodeNoFiles:
		exit = ExitCommandError
	}
	return NewExitError(exit, fmt.Sprintf("%s: %s", code, message))
}
