package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/recs/internal/engine"
	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/query"
	"github.com/roach88/recs/internal/schema"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Events of the asserted query, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] seq=%d %s\n", i+1, event.Seq, event)
		}
	}

	return buf.String()
}

// assertMatching compares a query's final result with the expected names,
// ignoring order.
func (h *Harness) assertMatching(a Assertion) error {
	actual := slices.Clone(h.result.Matching[a.Query])
	expected := slices.Clone(a.Records)
	slices.Sort(actual)
	slices.Sort(expected)
	if slices.Equal(actual, expected) {
		return nil
	}
	return &AssertionError{
		Type:     AssertMatching,
		Expected: fmt.Sprintf("%s matches %v", a.Query, expected),
		Actual:   fmt.Sprintf("%v", actual),
		Trace:    h.result.Events(a.Query),
	}
}

// assertEventCount counts events of one type, optionally for one record.
func (h *Harness) assertEventCount(a Assertion) error {
	count := 0
	for _, e := range h.result.Events(a.Query) {
		if e.Type == a.Event && (a.Record == "" || e.Record == a.Record) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}

	what := a.Event
	if a.Record != "" {
		what += " " + a.Record
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d %s events on %s", a.Count, what, a.Query),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    h.result.Events(a.Query),
	}
}

// assertEventOrder checks that the expected events occur in order.
// Events don't need to be consecutive.
func (h *Harness) assertEventOrder(a Assertion) error {
	events := h.result.Events(a.Query)
	next := 0
	for _, e := range events {
		if next < len(a.Events) && e.String() == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: fmt.Sprintf("%s emits %v in order", a.Query, a.Events),
		Actual:   fmt.Sprintf("%q not found after %d matched events", a.Events[next], next),
		Trace:    events,
	}
}

// assertState checks a record's final properties. Expect is a subset match.
func (h *Harness) assertState(a Assertion) error {
	t, err := h.table(a.Table)
	if err != nil {
		return err
	}
	r, err := h.names.Resolve(a.Record)
	if err != nil {
		return err
	}
	current := h.store.Get(t, r)

	if a.Absent {
		if current == nil {
			return nil
		}
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s has no %s properties", a.Record, a.Table),
			Actual:   current.String(),
		}
	}

	expected, unknown, err := schema.Coerce(t.Schema(), a.Expect, h.names.Resolve)
	if err != nil {
		return fmt.Errorf("state %s %s: %w", a.Table, a.Record, err)
	}
	if len(unknown) > 0 {
		return fmt.Errorf("state %s %s: undeclared fields %v", a.Table, a.Record, unknown)
	}
	if current.Matches(expected) {
		return nil
	}
	return &AssertionError{
		Type:     AssertState,
		Expected: fmt.Sprintf("%s %s includes %s", a.Table, a.Record, expected),
		Actual:   current.String(),
	}
}

// assertConsistent re-runs every query in batch and compares the result
// with the incrementally maintained one.
func (h *Harness) assertConsistent(a Assertion) error {
	names := h.order
	if a.Query != "" {
		names = []string{a.Query}
	}
	for _, name := range names {
		if err := h.consistent(name, h.queries[name]); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) consistent(name string, q *engine.Query) error {
	batch, err := query.Run(h.store, q.Fragments(), nil)
	if err != nil {
		return fmt.Errorf("consistent %s: %w", name, err)
	}
	live := ir.NewRecordSet(q.Matching()...)
	if live.Equal(batch) {
		return nil
	}
	return &AssertionError{
		Type:     AssertConsistent,
		Expected: fmt.Sprintf("%s matches batch result %v", name, h.names.NameAll(batch.Sorted())),
		Actual:   fmt.Sprintf("%v", h.names.NameAll(live.Sorted())),
		Trace:    h.result.Events(name),
	}
}

// evaluateAssertions evaluates all assertions against the finished run.
// Returns a slice of error messages for failed assertions.
func (h *Harness) evaluateAssertions(assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertMatching:
			err = h.assertMatching(assertion)
		case AssertEventCount:
			err = h.assertEventCount(assertion)
		case AssertEventOrder:
			err = h.assertEventOrder(assertion)
		case AssertState:
			err = h.assertState(assertion)
		case AssertConsistent:
			err = h.assertConsistent(assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
