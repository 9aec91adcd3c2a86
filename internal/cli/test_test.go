package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: tagging
description: a tagged record enters and leaves
tables: [{name: Tag, schema: {}}]
queries: [{name: tagged, fragments: [{with: Tag}]}]
steps:
  - {set: Tag, record: A}
  - {remove: Tag, record: A}
assertions:
  - {type: event_order, query: tagged, events: [enter A, exit A]}
`

const failingScenario = `
name: broken
description: the expected record never enters
tables: [{name: Tag, schema: {}}]
queries: [{name: tagged, fragments: [{with: Tag}]}]
steps: [{set: Tag, record: A}]
assertions: [{type: matching, query: tagged, records: [B]}]
`

func writeScenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := executeTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandNoScenarios(t *testing.T) {
	output, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found.")
}

func TestTestCommandAllPass(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"tagging.yaml": passingScenario})

	output, err := executeTest(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "\u2713 tagging\n")
	assert.Contains(t, output, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, output, "\u2713 All scenarios passed")
}

func TestTestCommandFailure(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"tagging.yaml": passingScenario,
		"broken.yaml":  failingScenario,
		"notes.txt":    "not a scenario",
	})

	output, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "\u2717 broken")
	assert.Contains(t, output, "Assertion failed: matching")
	assert.Contains(t, output, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"bad.yaml": "name: bad\nflow: []\n"})

	output, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, output, "\u2717 bad.yaml")
	assert.Contains(t, output, "failed to load scenario")
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"tagging.yaml": passingScenario,
		"broken.yaml":  failingScenario,
	})

	output, err := executeTest(t, "text", dir, "--filter", "tag*")
	require.NoError(t, err)
	assert.Contains(t, output, "1 total")
	assert.NotContains(t, output, "broken")

	_, err = executeTest(t, "text", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandGolden(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"tagging.yaml": passingScenario})
	goldenPath := filepath.Join(dir, "golden", "tagging.golden")

	output, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, output, "\u2713 tagging (golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name": "tagging"`)
	assert.Contains(t, string(golden), `"type": "exit"`)

	// The golden directory is not scanned for scenarios.
	_, err = executeTest(t, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	output, err = executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, output, "trace does not match golden file")
}

func TestTestCommandHarnessGolden(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")
	golden := filepath.Join("..", "harness", "testdata", "golden")

	output, err := executeTest(t, "text", scenarios, "--golden", golden)
	require.NoError(t, err, output)
	assert.Contains(t, output, "2 passed, 0 failed, 2 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"tagging.yaml": passingScenario,
		"broken.yaml":  failingScenario,
	})

	output, err := executeTest(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)

	// Scenarios run in path order.
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "broken", resp.Data.Scenarios[0].Name)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.Equal(t, "tagging", resp.Data.Scenarios[1].Name)
	assert.Equal(t, 2, resp.Data.Scenarios[1].Events)
}
