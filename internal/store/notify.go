package store

import (
	"slices"

	"github.com/roach88/recs/internal/ir"
)

// UpdateType classifies a table update.
type UpdateType string

const (
	// Enter: the record gained properties.
	Enter UpdateType = "enter"

	// Exit: the record lost its properties.
	Exit UpdateType = "exit"

	// Change: the record had and still has properties, and they differ.
	Change UpdateType = "change"

	// Noop: nothing readable changed.
	Noop UpdateType = "noop"
)

// Update is the notification produced by exactly one mutating call.
type Update struct {
	// Table is the mutated table.
	Table *Table

	// Record is the mutated record.
	Record ir.Record

	// Current holds the properties after the mutation, nil if none.
	Current ir.Properties

	// Prev holds the properties before the mutation, nil if none.
	Prev ir.Properties

	// Type classifies the transition from Prev to Current.
	Type UpdateType

	// Seq is the logical clock value assigned to the mutation.
	Seq int64
}

// Listener receives updates synchronously.
type Listener func(Update)

type listener struct {
	fn     Listener
	table  *Table
	active bool
}

// Subscribe registers fn for updates of table t. The returned func
// unsubscribes; it is idempotent and takes effect immediately, including for
// a dispatch already in progress.
func (s *Store) Subscribe(t *Table, fn Listener) (func(), error) {
	if err := s.owns(t); err != nil {
		return nil, err
	}
	l := &listener{fn: fn, table: t, active: true}
	t.listeners = append(t.listeners, l)
	return func() { s.unsubscribe(l) }, nil
}

// SubscribeAll registers fn for updates of every table.
//
// Store-wide listeners are called before the listeners of the mutated table,
// so they observe updates in mutation order even when a table listener
// mutates the store.
func (s *Store) SubscribeAll(fn Listener) func() {
	l := &listener{fn: fn, active: true}
	s.global = append(s.global, l)
	return func() { s.unsubscribe(l) }
}

func (s *Store) unsubscribe(l *listener) {
	if !l.active {
		return
	}
	l.active = false
	remove := func(ls []*listener) []*listener {
		// Copy so a dispatch iterating the old slice is unaffected.
		return slices.DeleteFunc(slices.Clone(ls), func(x *listener) bool { return x == l })
	}
	if l.table != nil {
		l.table.listeners = remove(l.table.listeners)
	} else {
		s.global = remove(s.global)
	}
}

// dispatch delivers u to the listeners registered when the dispatch began.
// Listeners may mutate the store; nested updates are dispatched before this
// call returns.
func (s *Store) dispatch(u Update) {
	global := s.global
	local := u.Table.listeners
	for _, l := range global {
		if l.active {
			l.fn(u)
		}
	}
	for _, l := range local {
		if l.active {
			l.fn(u)
		}
	}
}
