package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/query"
	"github.com/roach88/recs/internal/store"
)

// Mode is the evaluation strategy of a query, fixed at Define.
type Mode string

const (
	// ModeDirect rechecks only the updated record on each store update.
	ModeDirect Mode = "direct"

	// ModeProxy recomputes the whole result on each store update. Used when
	// the fragments contain ProxyRead or ProxyExpand, since an update to one
	// record can change the membership of records related to it.
	ModeProxy Mode = "proxy"
)

// Query is a live, incrementally maintained query result.
//
// A Query subscribes to every table its fragments reference. Each store
// update is folded into the matching set synchronously and the resulting
// events are delivered to subscribers before the mutating call returns.
//
// INVARIANTS:
//   - Matching() always equals query.Run over the same fragments
//   - exactly one enter per record joining the set, one exit per record
//     leaving it
//   - store noop updates never produce events
//
// A Query is not safe for concurrent use; like the store it runs on the
// caller's goroutine.
type Query struct {
	st       *store.Store
	name     string
	frags    []query.Fragment
	tables   []*store.Table
	mode     Mode
	matching ir.RecordSet

	subs   []*subscriber
	unsubs []func()
	closed bool
	gen    uint64

	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Query at Define.
type Option func(*config)

type config struct {
	name      string
	runOnInit bool
	handlers  []*subscriber
	metrics   *Metrics
	logger    *slog.Logger
}

// RunOnInit delivers one synthetic enter per initially matching record, in
// record order, to the handlers given with WithHandler. Synthetic events
// carry no table and no properties; consumers may rely only on the record.
func RunOnInit() Option {
	return func(c *config) {
		c.runOnInit = true
	}
}

// WithHandler subscribes fn before the query is seeded, so it also receives
// the RunOnInit events. With no types, fn receives every event type.
func WithHandler(fn Handler, types ...store.UpdateType) Option {
	return func(c *config) {
		c.handlers = append(c.handlers, newSubscriber(fn, types))
	}
}

// WithName labels the query in logs and metrics. Default: the mode and the
// referenced table ids, e.g. "direct:Position,Tag". Filter values are never
// part of the default, so unnamed queries share a bounded set of labels.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithMetrics records events, recomputes and the matching size.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Define creates a live query over frags.
//
// The fragments are validated first; a malformed list fails with a
// query.ConfigurationError. The matching set is seeded with one query.Run,
// so it equals a fresh evaluation whether or not RunOnInit is given.
func Define(st *store.Store, frags []query.Fragment, opts ...Option) (*Query, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := query.Validate(frags); err != nil {
		return nil, err
	}

	fragsCopy := make([]query.Fragment, len(frags))
	copy(fragsCopy, frags)

	q := &Query{
		st:      st,
		name:    cfg.name,
		frags:   fragsCopy,
		tables:  query.Tables(fragsCopy),
		mode:    ModeDirect,
		subs:    cfg.handlers,
		metrics: cfg.metrics,
		logger:  cfg.logger,
	}
	if query.HasSetting(fragsCopy) {
		q.mode = ModeProxy
	}
	if q.name == "" {
		q.name = defaultName(q.mode, q.tables)
	}

	matching, err := query.Run(st, fragsCopy, nil)
	if err != nil {
		return nil, fmt.Errorf("seed query %s: %w", q.name, err)
	}
	q.matching = matching

	for _, t := range q.tables {
		unsub, err := st.Subscribe(t, q.onUpdate)
		if err != nil {
			q.Close()
			return nil, fmt.Errorf("subscribe query %s to %s: %w", q.name, t, err)
		}
		q.unsubs = append(q.unsubs, unsub)
	}

	q.logger.Debug("query defined",
		"query", q.name,
		"mode", q.mode,
		"tables", len(q.tables),
		"matching", q.matching.Len(),
	)
	q.observeSize()

	if cfg.runOnInit {
		for _, r := range q.matching.Sorted() {
			q.emit(Event{Type: store.Enter, Record: r})
		}
	}
	return q, nil
}

func defaultName(mode Mode, tables []*store.Table) string {
	ids := make([]string, len(tables))
	for i, t := range tables {
		ids[i] = t.ID()
	}
	return string(mode) + ":" + strings.Join(ids, ",")
}

// Name returns the query label.
func (q *Query) Name() string {
	return q.name
}

// Mode returns the evaluation strategy.
func (q *Query) Mode() Mode {
	return q.mode
}

// Fragments returns a copy of the query's fragments.
func (q *Query) Fragments() []query.Fragment {
	out := make([]query.Fragment, len(q.frags))
	copy(out, q.frags)
	return out
}

// Matching returns the current result, sorted.
func (q *Query) Matching() []ir.Record {
	return q.matching.Sorted()
}

// Has reports whether r is in the current result.
func (q *Query) Has(r ir.Record) bool {
	return q.matching.Has(r)
}

// Len returns the size of the current result.
func (q *Query) Len() int {
	return q.matching.Len()
}

// Close unsubscribes the query from the store and drops its subscribers.
// The matching set is frozen at its last state. Close is idempotent.
func (q *Query) Close() {
	if q.closed {
		return
	}
	q.closed = true
	for _, unsub := range q.unsubs {
		unsub()
	}
	q.unsubs = nil
	for _, s := range q.subs {
		s.active = false
	}
	q.subs = nil
	q.logger.Debug("query closed", "query", q.name)
}

// onUpdate folds one store update into the matching set.
func (q *Query) onUpdate(u store.Update) {
	if q.closed || u.Type == store.Noop {
		return
	}
	switch q.mode {
	case ModeProxy:
		q.recompute(u)
	default:
		q.recheck(u)
	}
}

// recheck handles direct mode: only u.Record can change membership.
func (q *Query) recheck(u store.Update) {
	r := u.Record
	ev := Event{Record: r, Table: u.Table, Current: u.Current, Prev: u.Prev, Seq: u.Seq}

	if q.matching.Has(r) {
		if q.passes(r, u.Table) {
			ev.Type = store.Change
		} else {
			q.matching.Delete(r)
			q.observeSize()
			ev.Type = store.Exit
		}
		q.emit(ev)
		return
	}

	if q.passes(r, nil) {
		q.matching.Add(r)
		q.observeSize()
		ev.Type = store.Enter
		q.emit(ev)
	}
}

// passes evaluates the fragments referring to only, or all fragments when
// only is nil.
func (q *Query) passes(r ir.Record, only *store.Table) bool {
	for _, f := range q.frags {
		if only != nil && f.From() != only {
			continue
		}
		if !query.Passes(q.st, r, f) {
			return false
		}
	}
	return true
}

// recompute handles proxy mode: rerun the query and diff the result.
// Exits are emitted first, then a change or enter for every record of the
// new result in record order.
func (q *Query) recompute(u store.Update) {
	q.gen++
	gen := q.gen
	if q.metrics != nil {
		q.metrics.recomputes.WithLabelValues(q.name).Inc()
	}

	next, err := query.Run(q.st, q.frags, nil)
	if err != nil {
		q.logger.Error("query recompute failed", "query", q.name, "error", err)
		return
	}

	event := func(r ir.Record, typ store.UpdateType) Event {
		ev := Event{
			Type:    typ,
			Record:  r,
			Table:   u.Table,
			Current: q.st.Get(u.Table, r),
			Seq:     u.Seq,
		}
		if r == u.Record {
			ev.Current = u.Current
			ev.Prev = u.Prev
		}
		return ev
	}

	for _, r := range q.matching.Sorted() {
		if next.Has(r) {
			continue
		}
		q.matching.Delete(r)
		q.observeSize()
		q.emit(event(r, store.Exit))
		if q.superseded(gen) {
			return
		}
	}

	for _, r := range next.Sorted() {
		typ := store.Change
		if q.matching.Add(r) {
			typ = store.Enter
			q.observeSize()
		}
		q.emit(event(r, typ))
		if q.superseded(gen) {
			return
		}
	}
}

// superseded reports whether a subscriber's nested mutation already
// reconciled the query to a newer store state, or closed it.
func (q *Query) superseded(gen uint64) bool {
	return q.closed || q.gen != gen
}

func (q *Query) observeSize() {
	if q.metrics != nil {
		q.metrics.matching.WithLabelValues(q.name).Set(float64(q.matching.Len()))
	}
}
