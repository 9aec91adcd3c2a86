package watcher

import (
	"fmt"
	"log/slog"

	"github.com/roach88/recs/internal/engine"
	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/query"
	"github.com/roach88/recs/internal/store"
)

// Watcher is a table-scoped subscription point with pause/resume.
//
// Each Watch call defines an engine query of With(table) plus optional
// predicate fragments. While a record is paused its events are withheld from
// every subscription and Get reports the frozen value; the store keeps
// recording the real mutations. Resuming reconciles each subscription with
// the store and emits at most one catch-up event per subscription.
type Watcher struct {
	st      *store.Store
	table   *store.Table
	logger  *slog.Logger
	metrics *engine.Metrics

	subs []*Subscription

	// paused holds the frozen visible value of individually paused records.
	// A nil value freezes the record as absent.
	paused map[ir.Record]ir.Properties

	// all is set by PauseAll and holds the table snapshot taken then.
	all map[ir.Record]ir.Properties
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithMetrics passes m to the queries of every subscription.
func WithMetrics(m *engine.Metrics) Option {
	return func(w *Watcher) {
		w.metrics = m
	}
}

// New creates a watcher over t.
func New(st *store.Store, t *store.Table, opts ...Option) *Watcher {
	w := &Watcher{
		st:     st,
		table:  t,
		logger: slog.Default(),
		paused: make(map[ir.Record]ir.Properties),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Table returns the watched table.
func (w *Watcher) Table() *store.Table {
	return w.table
}

// Get returns r's externally visible properties: the frozen value while r
// is paused, the store's value otherwise.
func (w *Watcher) Get(r ir.Record) ir.Properties {
	if props, ok := w.frozen(r); ok {
		return props.Clone()
	}
	return w.st.Get(w.table, r)
}

// Pause freezes r's visible value. With fixed nil the value is r's current
// visible value; otherwise fixed overrides it. Pausing a paused record with
// a nil fixed keeps its frozen value.
func (w *Watcher) Pause(r ir.Record, fixed ir.Properties) {
	if fixed != nil {
		w.paused[r] = fixed.Clone()
	} else if _, ok := w.paused[r]; !ok {
		w.paused[r] = w.Get(r)
	}
	w.logger.Debug("watcher paused record", "table", w.table.ID(), "record", r.Short())
}

// PauseAll freezes every record of the table at its current visible value.
func (w *Watcher) PauseAll() {
	if w.all != nil {
		return
	}
	w.all = make(map[ir.Record]ir.Properties)
	for _, r := range w.st.GetAll(w.table) {
		w.all[r] = w.st.Get(w.table, r)
	}
	w.logger.Debug("watcher paused table", "table", w.table.ID(), "records", len(w.all))
}

// Resume lifts r's individual pause and reconciles it. While the whole
// table is paused r keeps its frozen value until ResumeAll.
func (w *Watcher) Resume(r ir.Record) {
	visible, ok := w.paused[r]
	if !ok {
		return
	}
	delete(w.paused, r)
	if w.all != nil {
		w.all[r] = visible
		return
	}
	w.reconcile(r, visible)
}

// ResumeAll lifts every pause and reconciles all affected records in record
// order.
func (w *Watcher) ResumeAll() {
	visible := make(map[ir.Record]ir.Properties)
	for r := range w.all {
		visible[r] = w.all[r]
	}
	for r, props := range w.paused {
		visible[r] = props
	}

	candidates := ir.NewRecordSet()
	for r := range visible {
		candidates.Add(r)
	}
	if w.all != nil {
		// Records that appeared during a table pause have no snapshot entry.
		for _, s := range w.subs {
			for _, r := range s.q.Matching() {
				candidates.Add(r)
			}
		}
	}

	w.all = nil
	w.paused = make(map[ir.Record]ir.Properties)
	for _, r := range candidates.Sorted() {
		w.reconcile(r, visible[r])
	}
}

// Paused reports whether r's visible value is frozen.
func (w *Watcher) Paused(r ir.Record) bool {
	_, ok := w.frozen(r)
	return ok
}

func (w *Watcher) frozen(r ir.Record) (ir.Properties, bool) {
	if props, ok := w.paused[r]; ok {
		return props, true
	}
	if w.all != nil {
		return w.all[r], true
	}
	return nil, false
}

// reconcile brings every subscription's view of r up to date after a pause.
func (w *Watcher) reconcile(r ir.Record, visible ir.Properties) {
	current := w.st.Get(w.table, r)
	for _, s := range w.subs {
		s.catchUp(r, visible, current)
	}
}

// Watch subscribes cb to the table. The subscription's query is
// With(table) followed by any WithPredicate fragments. Unless WithoutInit
// is given, cb.OnEnter first receives every matching record that is not
// paused.
func (w *Watcher) Watch(cb Callbacks, opts ...WatchOption) (*Subscription, error) {
	cfg := watchConfig{runOnInit: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	frags := append([]query.Fragment{query.With(w.table)}, cfg.predicate...)
	s := &Subscription{w: w, cb: cb, shown: ir.NewRecordSet(), active: true}

	engineOpts := []engine.Option{
		engine.WithHandler(s.handle),
		engine.WithLogger(w.logger),
	}
	if cfg.name != "" {
		engineOpts = append(engineOpts, engine.WithName(cfg.name))
	}
	if w.metrics != nil {
		engineOpts = append(engineOpts, engine.WithMetrics(w.metrics))
	}

	q, err := engine.Define(w.st, frags, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", w.table.ID(), err)
	}
	s.q = q
	w.subs = append(w.subs, s)

	seq := w.st.Clock().Current()
	for _, r := range q.Matching() {
		if w.Paused(r) {
			continue
		}
		s.shown.Add(r)
		if cfg.runOnInit {
			s.deliver(engine.Event{
				Type:    store.Enter,
				Record:  r,
				Table:   w.table,
				Current: w.st.Get(w.table, r),
				Seq:     seq,
			})
		}
	}

	w.logger.Debug("watch started", "table", w.table.ID(), "query", q.Name(), "matching", q.Len())
	return s, nil
}

func (w *Watcher) remove(s *Subscription) {
	for i, x := range w.subs {
		if x == s {
			w.subs = append(w.subs[:i:i], w.subs[i+1:]...)
			return
		}
	}
}
