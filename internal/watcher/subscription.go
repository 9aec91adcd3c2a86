package watcher

import (
	"github.com/roach88/recs/internal/engine"
	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/query"
	"github.com/roach88/recs/internal/store"
)

// Callbacks receive a subscription's events. Nil callbacks are skipped.
// The type-specific callback runs before OnChange.
type Callbacks struct {
	OnEnter  func(engine.Event)
	OnExit   func(engine.Event)
	OnUpdate func(engine.Event) // change of a record that stays matched
	OnChange func(engine.Event) // every event
}

// WatchOption configures one Watch call.
type WatchOption func(*watchConfig)

type watchConfig struct {
	predicate []query.Fragment
	runOnInit bool
	name      string
}

// WithPredicate appends fragments after With(table).
func WithPredicate(frags ...query.Fragment) WatchOption {
	return func(c *watchConfig) {
		c.predicate = append(c.predicate, frags...)
	}
}

// WithoutInit skips the initial enter events.
func WithoutInit() WatchOption {
	return func(c *watchConfig) {
		c.runOnInit = false
	}
}

// WithName labels the subscription's query in logs and metrics.
func WithName(name string) WatchOption {
	return func(c *watchConfig) {
		c.name = name
	}
}

// Subscription is one Watch registration.
type Subscription struct {
	w  *Watcher
	q  *engine.Query
	cb Callbacks

	// shown is the matching set as surfaced to the callbacks.
	shown  ir.RecordSet
	active bool
}

// Records returns the surfaced matching set, sorted.
func (s *Subscription) Records() []ir.Record {
	return s.shown.Sorted()
}

// Unsubscribe stops delivery immediately. It is idempotent.
func (s *Subscription) Unsubscribe() {
	if !s.active {
		return
	}
	s.active = false
	s.q.Close()
	s.w.remove(s)
}

func (s *Subscription) handle(ev engine.Event) {
	if !s.active || s.w.Paused(ev.Record) {
		return
	}

	// Events triggered by predicate tables carry the watched table's
	// properties.
	if ev.Table != s.w.table {
		props := s.w.st.Get(s.w.table, ev.Record)
		ev.Table = s.w.table
		ev.Current = props
		ev.Prev = props
	}

	switch ev.Type {
	case store.Enter:
		s.shown.Add(ev.Record)
	case store.Exit:
		s.shown.Delete(ev.Record)
	}
	s.deliver(ev)
}

// catchUp emits the single event that moves the callbacks from the frozen
// view of r to the store's state, if the two differ.
func (s *Subscription) catchUp(r ir.Record, visible, current ir.Properties) {
	if !s.active {
		return
	}
	was, is := s.shown.Has(r), s.q.Has(r)

	ev := engine.Event{
		Record:  r,
		Table:   s.w.table,
		Current: current,
		Prev:    visible,
		Seq:     s.w.st.Clock().Current(),
	}
	switch {
	case was && !is:
		s.shown.Delete(r)
		ev.Type = store.Exit
	case !was && is:
		s.shown.Add(r)
		ev.Type = store.Enter
	case was && is && !visible.Equal(current):
		ev.Type = store.Change
	default:
		return
	}
	s.deliver(ev)
}

func (s *Subscription) deliver(ev engine.Event) {
	var fn func(engine.Event)
	switch ev.Type {
	case store.Enter:
		fn = s.cb.OnEnter
	case store.Exit:
		fn = s.cb.OnExit
	case store.Change:
		fn = s.cb.OnUpdate
	}
	if fn != nil {
		fn(ev)
	}
	if s.active && s.cb.OnChange != nil {
		s.cb.OnChange(ev)
	}
}
