package engine

import (
	"slices"

	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/query"
	"github.com/roach88/recs/internal/store"
)

// DefineEnterQuery defines a query whose handler receives only enter events.
// With RunOnInit, fn also receives the initial matches.
func DefineEnterQuery(st *store.Store, frags []query.Fragment, fn Handler, opts ...Option) (*Query, error) {
	return Define(st, frags, append(opts, WithHandler(fn, store.Enter))...)
}

// DefineExitQuery defines a query whose handler receives only exit events.
func DefineExitQuery(st *store.Store, frags []query.Fragment, fn Handler, opts ...Option) (*Query, error) {
	return Define(st, frags, append(opts, WithHandler(fn, store.Exit))...)
}

// DefineUpdateQuery defines a query whose handler receives only change
// events of records that stay in the result.
func DefineUpdateQuery(st *store.Store, frags []query.Fragment, fn Handler, opts ...Option) (*Query, error) {
	return Define(st, frags, append(opts, WithHandler(fn, store.Change))...)
}

// View is a sorted snapshot of a query's matching set, refreshed as the
// query emits. It is the plain subscribe/unsubscribe surface a UI binding
// redraws from.
type View struct {
	q         *Query
	records   []ir.Record
	shapeOnly bool
	subs      []*viewSub
	unsub     func()
}

type viewSub struct {
	fn     func([]ir.Record)
	active bool
}

// ViewOption configures a View.
type ViewOption func(*View)

// OnlyOnShapeChange refreshes the view only when the set of records
// changes, ignoring property-only change events.
func OnlyOnShapeChange() ViewOption {
	return func(v *View) {
		v.shapeOnly = true
	}
}

// LiveView creates a view over q, starting from its current result.
func LiveView(q *Query, opts ...ViewOption) *View {
	v := &View{q: q, records: q.Matching()}
	for _, opt := range opts {
		opt(v)
	}
	v.unsub = q.Subscribe(func(Event) { v.refresh() })
	return v
}

// Records returns the current snapshot.
func (v *View) Records() []ir.Record {
	return slices.Clone(v.records)
}

// Subscribe registers fn for every refresh. The returned func unsubscribes
// and is idempotent.
func (v *View) Subscribe(fn func([]ir.Record)) func() {
	s := &viewSub{fn: fn, active: true}
	v.subs = append(v.subs, s)
	return func() {
		if !s.active {
			return
		}
		s.active = false
		v.subs = slices.DeleteFunc(slices.Clone(v.subs), func(x *viewSub) bool { return x == s })
	}
}

// Close detaches the view from its query. The query itself stays open.
func (v *View) Close() {
	if v.unsub != nil {
		v.unsub()
		v.unsub = nil
	}
	v.subs = nil
}

func (v *View) refresh() {
	next := v.q.Matching()
	if v.shapeOnly && slices.Equal(next, v.records) {
		return
	}
	v.records = next
	for _, s := range v.subs {
		if s.active {
			s.fn(slices.Clone(next))
		}
	}
}
