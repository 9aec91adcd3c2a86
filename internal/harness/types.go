package harness

import (
	"fmt"
)

// TraceEvent is one query event as recorded by the harness.
type TraceEvent struct {
	Query   string `json:"query"`
	Type    string `json:"type"`
	Record  string `json:"record"`
	Seq     int64  `json:"seq"`
	Current string `json:"current,omitempty"`
}

// String renders the event as used by event_order assertions, e.g.
// "enter A".
func (e TraceEvent) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.Record)
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step and assertion succeeded.
	Pass bool `json:"pass"`

	// Trace holds every query event in emission order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Matching holds each query's final result as record names, sorted by
	// record.
	Matching map[string][]string `json:"matching,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Matching: make(map[string][]string),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the trace of one query.
func (r *Result) Events(query string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Query == query {
			out = append(out, e)
		}
	}
	return out
}
