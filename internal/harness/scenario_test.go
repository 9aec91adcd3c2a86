package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: one table, one query
tables:
  - name: Tag
    schema: {}
queries:
  - name: tagged
    fragments:
      - with: Tag
steps:
  - set: Tag
    record: A
assertions:
  - type: matching
    query: tagged
    records: [A]
`

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "position.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "position_scenario", scenario.Name)
	require.Len(t, scenario.Tables, 1)
	assert.Equal(t, []string{"x", "y"}, scenario.Tables[0].Schema.Required())
	assert.True(t, scenario.Tables[0].Index)
	require.Len(t, scenario.Queries, 1)
	assert.Len(t, scenario.Queries[0].Fragments, 2)
	assert.Len(t, scenario.Steps, 7)
	assert.Equal(t, ErrorTypeMismatch, scenario.Steps[6].ExpectError)
}

func TestLoadScenario_ResolvesSchemas(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "hierarchy.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "schemas"), scenario.Schemas)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingSchemas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	content := minimalScenario + "schemas: nowhere\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema directory")
}

func TestParseScenario_Minimal(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, 0, scenario.Tables[0].Schema.Len())
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    minimalScenario + "assertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: `
description: d
tables: [{name: T, schema: {}}]
steps: [{set: T, record: A}]
assertions: [{type: consistent}]
`,
			wantErr: "name is required",
		},
		{
			name: "no tables",
			yaml: `
name: n
description: d
steps: [{set: T, record: A}]
assertions: [{type: consistent}]
`,
			wantErr: "tables or schemas is required",
		},
		{
			name: "bad field type",
			yaml: `
name: n
description: d
tables: [{name: T, schema: {x: float}}]
steps: [{set: T, record: A}]
assertions: [{type: consistent}]
`,
			wantErr: "failed to parse YAML",
		},
		{
			name: "two operations",
			yaml: `
name: n
description: d
tables: [{name: T, schema: {}}]
steps: [{set: T, remove: T, record: A}]
assertions: [{type: consistent}]
`,
			wantErr: "exactly one of set, update, remove",
		},
		{
			name: "fallback on set",
			yaml: `
name: n
description: d
tables: [{name: T, schema: {}}]
steps: [{set: T, record: A, fallback: {}}]
assertions: [{type: consistent}]
`,
			wantErr: "fallback is only valid for update",
		},
		{
			name: "unknown expected error",
			yaml: `
name: n
description: d
tables: [{name: T, schema: {}}]
steps: [{set: T, record: A, expect_error: boom}]
assertions: [{type: consistent}]
`,
			wantErr: `unknown expect_error "boom"`,
		},
		{
			name: "two fragment kinds",
			yaml: `
name: n
description: d
tables: [{name: T, schema: {}}]
queries: [{name: q, fragments: [{with: T, without: T}]}]
steps: [{set: T, record: A}]
assertions: [{type: consistent}]
`,
			wantErr: "exactly one fragment kind",
		},
		{
			name: "duplicate query",
			yaml: `
name: n
description: d
tables: [{name: T, schema: {}}]
queries:
  - {name: q, fragments: [{with: T}]}
  - {name: q, fragments: [{with: T}]}
steps: [{set: T, record: A}]
assertions: [{type: consistent}]
`,
			wantErr: `duplicate query "q"`,
		},
		{
			name: "unknown query",
			yaml: `
name: n
description: d
tables: [{name: T, schema: {}}]
steps: [{set: T, record: A}]
assertions: [{type: matching, query: q}]
`,
			wantErr: `unknown query "q"`,
		},
		{
			name: "state with expect and absent",
			yaml: `
name: n
description: d
tables: [{name: T, schema: {x: number}}]
steps: [{set: T, record: A}]
assertions: [{type: state, table: T, record: A, expect: {x: 1}, absent: true}]
`,
			wantErr: "exactly one of expect and absent",
		},
		{
			name: "unknown assertion",
			yaml: `
name: n
description: d
tables: [{name: T, schema: {}}]
steps: [{set: T, record: A}]
assertions: [{type: trace_contains}]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
