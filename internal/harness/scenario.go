package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recs/internal/schema"
)

// Scenario defines a reactive query test: tables, live queries, a sequence
// of store mutations, and assertions on the resulting events and state.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden traces are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schemas is an optional CUE schema directory, relative to the scenario
	// file. Its tables are registered before Tables.
	Schemas string `yaml:"schemas,omitempty"`

	// Tables declares tables inline.
	Tables []TableSpec `yaml:"tables,omitempty"`

	// Queries are defined, in order, before the first step.
	Queries []QuerySpec `yaml:"queries,omitempty"`

	// Steps are store mutations applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// TableSpec declares one table.
type TableSpec struct {
	Name string `yaml:"name"`

	// Schema is an ordered mapping of field name to type, e.g. "record?".
	Schema schema.Schema `yaml:"schema"`

	// Relation overrides the default relation field.
	Relation string `yaml:"relation,omitempty"`

	// Index enables the value index.
	Index bool `yaml:"index,omitempty"`
}

// QuerySpec declares one live query.
type QuerySpec struct {
	Name      string         `yaml:"name"`
	Fragments []FragmentSpec `yaml:"fragments"`
	RunOnInit bool           `yaml:"run_on_init,omitempty"`
}

// FragmentSpec is one query fragment. Exactly one field is set.
type FragmentSpec struct {
	With              string          `yaml:"with,omitempty"`
	Without           string          `yaml:"without,omitempty"`
	WithProperties    *PropertiesSpec `yaml:"with_properties,omitempty"`
	WithoutProperties *PropertiesSpec `yaml:"without_properties,omitempty"`
	ProxyRead         *ProxySpec      `yaml:"proxy_read,omitempty"`
	ProxyExpand       *ProxySpec      `yaml:"proxy_expand,omitempty"`
}

// PropertiesSpec is a table plus a property filter.
type PropertiesSpec struct {
	Table      string         `yaml:"table"`
	Properties map[string]any `yaml:"properties"`
}

// ProxySpec is a relation table plus a hop limit.
type ProxySpec struct {
	Table string `yaml:"table"`
	Depth int    `yaml:"depth"`
}

// Step is one store mutation. Exactly one of Set, Update and Remove names
// the table.
type Step struct {
	Set    string `yaml:"set,omitempty"`
	Update string `yaml:"update,omitempty"`
	Remove string `yaml:"remove,omitempty"`

	// Record is a name or a 0x-prefixed hex key.
	Record string `yaml:"record"`

	// Properties are the full properties for Set, the partial ones for Update.
	Properties map[string]any `yaml:"properties,omitempty"`

	// Fallback is the Update base when the record has no properties.
	Fallback map[string]any `yaml:"fallback,omitempty"`

	// ExpectError makes the step pass only if it fails with this error
	// kind: type_mismatch, mutation or configuration.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Query names the query (matching, event_count, event_order). For
	// consistent it is optional and defaults to every query.
	Query string `yaml:"query,omitempty"`

	// Records are the expected matching records, in any order (matching).
	Records []string `yaml:"records,omitempty"`

	// Event is the event type to count (event_count).
	Event string `yaml:"event,omitempty"`

	// Record optionally narrows event_count to one record, and names the
	// record for state.
	Record string `yaml:"record,omitempty"`

	// Count is the expected number of events (event_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected order as "type record" pairs; other events may
	// come in between (event_order).
	Events []string `yaml:"events,omitempty"`

	// Table, Expect and Absent describe a record's final properties (state).
	// Expect is a subset match.
	Table  string         `yaml:"table,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
	Absent bool           `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertMatching   = "matching"
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
	AssertState      = "state"
	AssertConsistent = "consistent"
)

// Expected error kinds for Step.ExpectError.
const (
	ErrorTypeMismatch  = "type_mismatch"
	ErrorMutation      = "mutation"
	ErrorConfiguration = "configuration"
)

// LoadScenario reads and parses a scenario YAML file. The schemas path is
// resolved relative to the file's directory.
//
// Unknown fields are rejected so that typos such as "assertion:" fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schemas != "" && !filepath.IsAbs(scenario.Schemas) {
		scenario.Schemas = filepath.Join(filepath.Dir(path), scenario.Schemas)
	}
	if scenario.Schemas != "" {
		if _, err := os.Stat(scenario.Schemas); err != nil {
			return nil, fmt.Errorf("invalid scenario: schema directory: %w", err)
		}
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schemas == "" && len(s.Tables) == 0 {
		return fmt.Errorf("tables or schemas is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("tables[%d]: name is required", i)
		}
	}

	seen := make(map[string]bool)
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if seen[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate query %q", i, q.Name)
		}
		seen[q.Name] = true
		if len(q.Fragments) == 0 {
			return fmt.Errorf("queries[%d]: fragments list is required", i)
		}
		for j, f := range q.Fragments {
			if n := f.count(); n != 1 {
				return fmt.Errorf("queries[%d].fragments[%d]: exactly one fragment kind must be set, got %d", i, j, n)
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, seen); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func (f FragmentSpec) count() int {
	n := 0
	for _, set := range []bool{
		f.With != "",
		f.Without != "",
		f.WithProperties != nil,
		f.WithoutProperties != nil,
		f.ProxyRead != nil,
		f.ProxyExpand != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func validateStep(step Step) error {
	ops := 0
	for _, t := range []string{step.Set, step.Update, step.Remove} {
		if t != "" {
			ops++
		}
	}
	if ops != 1 {
		return fmt.Errorf("exactly one of set, update, remove is required")
	}
	if step.Record == "" {
		return fmt.Errorf("record is required")
	}
	if step.Fallback != nil && step.Update == "" {
		return fmt.Errorf("fallback is only valid for update")
	}
	switch step.ExpectError {
	case "", ErrorTypeMismatch, ErrorMutation, ErrorConfiguration:
	default:
		return fmt.Errorf("unknown expect_error %q", step.ExpectError)
	}
	return nil
}

func validateAssertion(a Assertion, queries map[string]bool) error {
	needQuery := func() error {
		if a.Query == "" {
			return fmt.Errorf("query is required for %s", a.Type)
		}
		if !queries[a.Query] {
			return fmt.Errorf("unknown query %q", a.Query)
		}
		return nil
	}

	switch a.Type {
	case AssertMatching:
		return needQuery()
	case AssertEventCount:
		if err := needQuery(); err != nil {
			return err
		}
		if a.Event == "" {
			return fmt.Errorf("event is required for event_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for event_count")
		}
	case AssertEventOrder:
		if err := needQuery(); err != nil {
			return err
		}
		if len(a.Events) == 0 {
			return fmt.Errorf("events list is required for event_order")
		}
	case AssertState:
		if a.Table == "" || a.Record == "" {
			return fmt.Errorf("table and record are required for state")
		}
		if a.Absent == (len(a.Expect) > 0) {
			return fmt.Errorf("state needs exactly one of expect and absent")
		}
	case AssertConsistent:
		if a.Query != "" && !queries[a.Query] {
			return fmt.Errorf("unknown query %q", a.Query)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
