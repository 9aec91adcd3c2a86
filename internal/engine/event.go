package engine

import (
	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/store"
)

// Event is one change of a query result: a record entering or leaving the
// matching set, or a matching record's properties changing.
type Event struct {
	// Type is Enter, Exit or Change. Queries never emit Noop.
	Type store.UpdateType

	// Record is the affected record.
	Record ir.Record

	// Table is the table whose update triggered the event; nil for the
	// synthetic events of RunOnInit.
	Table *store.Table

	// Current and Prev are the record's properties in Table after and before
	// the triggering update. In proxy mode, records other than the updated
	// one carry their current properties in Table and a nil Prev.
	Current ir.Properties
	Prev    ir.Properties

	// Seq is the store clock value of the triggering update, 0 for
	// synthetic events.
	Seq int64
}

// Handler receives query events synchronously.
type Handler func(Event)

type subscriber struct {
	fn     Handler
	types  map[store.UpdateType]bool
	active bool
}

func newSubscriber(fn Handler, types []store.UpdateType) *subscriber {
	s := &subscriber{fn: fn, active: true}
	if len(types) > 0 {
		s.types = make(map[store.UpdateType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
	return s
}

func (s *subscriber) wants(t store.UpdateType) bool {
	return s.types == nil || s.types[t]
}

// Subscribe registers fn for future events of the given types, or of every
// type when none are given. The returned func unsubscribes; it is idempotent
// and takes effect immediately. Subscribing to a closed query is a no-op.
func (q *Query) Subscribe(fn Handler, types ...store.UpdateType) func() {
	if q.closed {
		return func() {}
	}
	s := newSubscriber(fn, types)
	q.subs = append(q.subs, s)
	return func() {
		if !s.active {
			return
		}
		s.active = false
		for i, x := range q.subs {
			if x == s {
				q.subs = append(q.subs[:i:i], q.subs[i+1:]...)
				break
			}
		}
	}
}

// emit delivers ev to the subscribers registered when delivery began.
func (q *Query) emit(ev Event) {
	if q.metrics != nil {
		q.metrics.events.WithLabelValues(q.name, string(ev.Type)).Inc()
	}
	q.logger.Debug("query event",
		"query", q.name,
		"type", ev.Type,
		"record", ev.Record.Short(),
		"seq", ev.Seq,
	)

	for _, s := range q.subs {
		if s.active && s.wants(ev.Type) {
			s.fn(ev)
		}
	}
}
