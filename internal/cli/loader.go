package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/recs/internal/schema"
	"github.com/roach88/recs/internal/store"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE or scenario files found
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeInvalidTable = "E104" // Table definition rejected (e.g. unknown @recs attribute)
	ErrCodeOpenFailed   = "E201" // Change log could not be opened
	ErrCodeReplayFailed = "E202" // Change log entry could not be applied
	ErrCodeTestFailed   = "E301" // One or more scenarios failed
)

// LoadResult contains the tables derived from a CUE schema directory.
type LoadResult struct {
	Tables    []schema.TableDef
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Describe returns the message prefixed with its CUE position, if any.
func (e *LoadError) Describe() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Message)
	}
	return e.Message
}

// LoadTables derives table definitions from the CUE files in dir.
// Every failure is returned as a *LoadError.
func LoadTables(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schemas directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schemas directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := schema.FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	defs, err := schema.LoadCUEDir(dir)
	if err != nil {
		return nil, convertSchemaError(err)
	}
	return &LoadResult{Tables: defs, FileCount: len(files)}, nil
}

// RegisterLoaded registers every loaded table on st.
func RegisterLoaded(st *store.Store, res *LoadResult) error {
	for _, def := range res.Tables {
		var opts []store.TableOption
		if def.Relation != "" {
			opts = append(opts, store.WithRelationField(def.Relation))
		}
		if _, err := st.RegisterTable(def.Name, def.Schema, opts...); err != nil {
			return err
		}
	}
	return nil
}

// convertSchemaError converts a schema error to a LoadError with position info.
func convertSchemaError(err error) *LoadError {
	var schemaErr *schema.Error
	if errors.As(err, &schemaErr) {
		return &LoadError{
			Code:    ErrCodeInvalidTable,
			Message: fmt.Sprintf("%s: %s", schemaErr.Field, schemaErr.Message),
			Pos:     schemaErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// FindScenarioFiles finds all YAML scenario files under dir, sorted by
// path. A non-empty filter is a glob matched against the file name without
// its extension.
func FindScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			// Golden traces live next to scenarios.
			if path != dir && info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}
