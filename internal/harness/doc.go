// Package harness runs declarative reactive query scenarios.
//
// A scenario (YAML, see Scenario) declares tables, live queries and a list
// of store mutations. Run applies them to a fresh store and records every
// query event as a TraceEvent. Assertions then check the trace and the
// final state:
//
//   - matching: a query's final result set
//   - event_count / event_order: what a query emitted
//   - state: a record's final properties
//   - consistent: the live result equals a batch query.Run
//
// Records are named in scenarios and traces; testutil.Names maps names to
// records deterministically, so traces can be compared with golden files
// (RunWithGolden).
package harness
