package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/recs/internal/engine"
	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/query"
	"github.com/roach88/recs/internal/schema"
	"github.com/roach88/recs/internal/store"
	"github.com/roach88/recs/internal/testutil"
)

// Harness executes one scenario against a fresh store.
type Harness struct {
	store   *store.Store
	names   *testutil.Names
	queries map[string]*engine.Query
	order   []string
	metrics *engine.Metrics
	logger  *slog.Logger
	result  *Result
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger for the store and queries. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithStore runs the scenario against st instead of a new store. st must
// not hold any of the scenario's tables yet; callers use it to attach
// listeners such as a change log recorder before the first step.
func WithStore(st *store.Store) Option {
	return func(h *Harness) {
		h.store = st
	}
}

// WithMetrics records query metrics during the run.
func WithMetrics(m *engine.Metrics) Option {
	return func(h *Harness) {
		h.metrics = m
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh store with a clock starting at 0 and
// name-derived records, so the same scenario always produces the same
// trace.
//
// Execution flow:
//  1. Register tables from Schemas, then from Tables
//  2. Define queries in order; their events are appended to the trace
//  3. Apply steps, checking expected errors
//  4. Evaluate assertions
//
// Malformed scenarios (bad tables, fragments or property values) return an
// error; step and assertion failures are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		names:   testutil.NewNames(),
		queries: make(map[string]*engine.Query),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:  NewResult(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.store == nil {
		h.store = store.New(store.WithLogger(h.logger))
	}
	defer h.close()

	if err := RegisterTables(h.store, scenario); err != nil {
		return nil, fmt.Errorf("failed to register tables: %w", err)
	}
	if err := h.defineQueries(scenario.Queries); err != nil {
		return nil, fmt.Errorf("failed to define queries: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, name := range h.order {
		h.result.Matching[name] = h.names.NameAll(h.queries[name].Matching())
	}

	for _, msg := range h.evaluateAssertions(scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) close() {
	for _, q := range h.queries {
		q.Close()
	}
}

// RegisterTables registers the scenario's tables on st: the CUE schema
// directory first, then the inline tables.
func RegisterTables(st *store.Store, s *Scenario) error {
	if s.Schemas != "" {
		defs, err := schema.LoadCUEDir(s.Schemas)
		if err != nil {
			return err
		}
		for _, def := range defs {
			var opts []store.TableOption
			if def.Relation != "" {
				opts = append(opts, store.WithRelationField(def.Relation))
			}
			if _, err := st.RegisterTable(def.Name, def.Schema, opts...); err != nil {
				return err
			}
		}
	}

	for _, spec := range s.Tables {
		var opts []store.TableOption
		if spec.Relation != "" {
			opts = append(opts, store.WithRelationField(spec.Relation))
		}
		if spec.Index {
			opts = append(opts, store.WithValueIndex())
		}
		if _, err := st.RegisterTable(spec.Name, spec.Schema, opts...); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) table(name string) (*store.Table, error) {
	t, ok := h.store.Table(name)
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// filter decodes a fragment filter against t's schema.
func (h *Harness) filter(t *store.Table, raw map[string]any) (ir.Properties, error) {
	props, unknown, err := schema.Coerce(t.Schema(), raw, h.names.Resolve)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.ID(), err)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("table %s: undeclared filter fields %v", t.ID(), unknown)
	}
	return props, nil
}

// properties decodes mutation values. A null clears the field. Values that
// do not decode against the declared type, and undeclared fields, are passed
// through untyped so the store reports them the way it would for any caller.
func (h *Harness) properties(t *store.Table, raw map[string]any) ir.Properties {
	if raw == nil {
		return nil
	}
	props := make(ir.Properties, len(raw))
	for name, rv := range raw {
		if rv == nil {
			props[name] = nil
			continue
		}
		if f, ok := t.Schema().Lookup(name); ok {
			if v, err := schema.DecodeValue(f.Type, rv, h.names.Resolve); err == nil {
				props[name] = v
				continue
			}
		}
		props[name] = untyped(rv)
	}
	return props
}

func untyped(raw any) ir.Value {
	switch v := raw.(type) {
	case bool:
		return ir.Bool(v)
	case int:
		return ir.Number(v)
	case float64:
		return ir.Number(v)
	case string:
		return ir.String(v)
	default:
		return ir.String(fmt.Sprint(v))
	}
}

func (h *Harness) defineQueries(specs []QuerySpec) error {
	for _, spec := range specs {
		frags, err := h.fragments(spec.Fragments)
		if err != nil {
			return fmt.Errorf("query %s: %w", spec.Name, err)
		}

		name := spec.Name
		opts := []engine.Option{
			engine.WithName(name),
			engine.WithLogger(h.logger),
			engine.WithHandler(func(ev engine.Event) { h.trace(name, ev) }),
		}
		if spec.RunOnInit {
			opts = append(opts, engine.RunOnInit())
		}
		if h.metrics != nil {
			opts = append(opts, engine.WithMetrics(h.metrics))
		}

		q, err := engine.Define(h.store, frags, opts...)
		if err != nil {
			return fmt.Errorf("query %s: %w", name, err)
		}
		h.queries[name] = q
		h.order = append(h.order, name)
	}
	return nil
}

func (h *Harness) fragments(specs []FragmentSpec) ([]query.Fragment, error) {
	frags := make([]query.Fragment, 0, len(specs))
	for i, spec := range specs {
		f, err := h.fragment(spec)
		if err != nil {
			return nil, fmt.Errorf("fragment %d: %w", i, err)
		}
		frags = append(frags, f)
	}
	return frags, nil
}

func (h *Harness) fragment(spec FragmentSpec) (query.Fragment, error) {
	filtered := func(p *PropertiesSpec, build func(*store.Table, ir.Properties) query.Fragment) (query.Fragment, error) {
		t, err := h.table(p.Table)
		if err != nil {
			return nil, err
		}
		props, err := h.filter(t, p.Properties)
		if err != nil {
			return nil, err
		}
		return build(t, props), nil
	}
	proxy := func(p *ProxySpec, build func(*store.Table, int) query.Fragment) (query.Fragment, error) {
		t, err := h.table(p.Table)
		if err != nil {
			return nil, err
		}
		return build(t, p.Depth), nil
	}

	switch {
	case spec.With != "":
		t, err := h.table(spec.With)
		if err != nil {
			return nil, err
		}
		return query.With(t), nil
	case spec.Without != "":
		t, err := h.table(spec.Without)
		if err != nil {
			return nil, err
		}
		return query.Without(t), nil
	case spec.WithProperties != nil:
		return filtered(spec.WithProperties, query.WithProperties)
	case spec.WithoutProperties != nil:
		return filtered(spec.WithoutProperties, query.WithoutProperties)
	case spec.ProxyRead != nil:
		return proxy(spec.ProxyRead, query.ProxyRead)
	case spec.ProxyExpand != nil:
		return proxy(spec.ProxyExpand, query.ProxyExpand)
	default:
		return nil, fmt.Errorf("empty fragment")
	}
}

func (h *Harness) trace(name string, ev engine.Event) {
	te := TraceEvent{
		Query:  name,
		Type:   string(ev.Type),
		Record: h.names.Name(ev.Record),
		Seq:    ev.Seq,
	}
	if ev.Current != nil {
		te.Current = h.format(ev.Current)
	}
	h.result.Trace = append(h.result.Trace, te)
}

// format renders properties with record values shown by name.
func (h *Harness) format(p ir.Properties) string {
	named := make(ir.Properties, len(p))
	for k, v := range p {
		if r, ok := v.(ir.Record); ok {
			v = ir.String(h.names.Name(r))
		}
		named[k] = v
	}
	return named.String()
}

// executeStep applies one mutation. Bad scenario data is returned as an
// error; an unexpected or missing store error is recorded in the result.
func (h *Harness) executeStep(step Step) error {
	r, err := h.names.Resolve(step.Record)
	if err != nil {
		return err
	}

	var opErr error
	switch {
	case step.Set != "":
		t, err := h.table(step.Set)
		if err != nil {
			return err
		}
		props := h.properties(t, step.Properties)
		if props == nil {
			props = ir.Properties{}
		}
		_, opErr = h.store.Set(t, r, props)

	case step.Update != "":
		t, err := h.table(step.Update)
		if err != nil {
			return err
		}
		partial := h.properties(t, step.Properties)
		fallback := h.properties(t, step.Fallback)
		_, opErr = h.store.Update(t, r, partial, fallback)

	case step.Remove != "":
		t, err := h.table(step.Remove)
		if err != nil {
			return err
		}
		_, opErr = h.store.Remove(t, r)
	}

	h.checkStepError(step, opErr)
	return nil
}

func (h *Harness) checkStepError(step Step, err error) {
	if step.ExpectError == "" {
		if err != nil {
			h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", describeStep(step), err))
		}
		return
	}

	if err == nil {
		h.result.AddError(fmt.Sprintf("%s: expected %s error, got none", describeStep(step), step.ExpectError))
		return
	}

	var matched bool
	switch step.ExpectError {
	case ErrorTypeMismatch:
		matched = store.IsTypeMismatchError(err)
	case ErrorMutation:
		matched = store.IsMutationError(err)
	case ErrorConfiguration:
		matched = store.IsConfigurationError(err)
	}
	if !matched {
		h.result.AddError(fmt.Sprintf("%s: expected %s error, got: %v", describeStep(step), step.ExpectError, err))
	}
}

func describeStep(step Step) string {
	switch {
	case step.Set != "":
		return fmt.Sprintf("set %s %s", step.Set, step.Record)
	case step.Update != "":
		return fmt.Sprintf("update %s %s", step.Update, step.Record)
	default:
		return fmt.Sprintf("remove %s %s", step.Remove, step.Record)
	}
}
