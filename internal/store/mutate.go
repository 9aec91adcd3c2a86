package store

import (
	"sort"

	"github.com/roach88/recs/internal/ir"
)

// MutationOption configures a single mutating call.
type MutationOption func(*mutationConfig)

type mutationConfig struct {
	skipNotify bool
}

// SkipNotify suppresses the update notification. The write still happens
// and still consumes a clock value.
func SkipNotify() MutationOption {
	return func(c *mutationConfig) {
		c.skipNotify = true
	}
}

// Set writes props as the complete properties of r in t.
//
// Declared fields missing from props (or given a nil value) are cleared;
// if that leaves a required field empty the record stops having properties.
// Undeclared fields are dropped with a warning. A value of the wrong type
// fails the call before anything is written.
//
// The returned Update has already been delivered to listeners unless
// SkipNotify was given.
func (s *Store) Set(t *Table, r ir.Record, props ir.Properties, opts ...MutationOption) (Update, error) {
	if err := s.owns(t); err != nil {
		return Update{}, err
	}

	var unknown []string
	for name, v := range props {
		f, ok := t.schema.Lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if v == nil {
			continue
		}
		if err := f.Type.Check(v); err != nil {
			return Update{}, newTypeMismatchError(t, r, name, err)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		s.logger.Warn("dropping undeclared fields",
			"table", t.id,
			"record", r.Short(),
			"fields", unknown,
		)
	}

	prev := t.read(r)
	if prev != nil {
		t.unindex(r, prev)
	}

	for name, col := range t.columns {
		if v := props[name]; v != nil {
			col[r] = v
		} else {
			delete(col, r)
		}
	}
	t.rows.Add(r)

	current := s.settle(t, r)
	return s.emit(t, r, prev, current, opts), nil
}

// Update merges partial over r's current properties and writes the result
// with Set. When r has no properties the merge starts from fallback; with a
// nil fallback the call fails with a mutation error.
func (s *Store) Update(t *Table, r ir.Record, partial, fallback ir.Properties, opts ...MutationOption) (Update, error) {
	if err := s.owns(t); err != nil {
		return Update{}, err
	}
	base := t.read(r)
	if base == nil {
		if fallback == nil {
			return Update{}, newMutationError(t, r)
		}
		base = fallback
	}
	return s.Set(t, r, base.Merge(partial), opts...)
}

// Remove deletes r from every column of t. Emits exit if r had properties,
// noop otherwise.
func (s *Store) Remove(t *Table, r ir.Record, opts ...MutationOption) (Update, error) {
	if err := s.owns(t); err != nil {
		return Update{}, err
	}

	prev := t.read(r)
	if prev != nil {
		t.unindex(r, prev)
	}
	for _, col := range t.columns {
		delete(col, r)
	}
	t.rows.Delete(r)

	current := s.settle(t, r)
	return s.emit(t, r, prev, current, opts), nil
}

// settle recomputes r's presence after a write and re-indexes it.
func (s *Store) settle(t *Table, r ir.Record) ir.Properties {
	if t.complete(r) {
		t.present.Add(r)
	} else {
		t.present.Delete(r)
	}
	current := t.read(r)
	if current != nil {
		t.index(r, current)
	}
	return current
}

func (s *Store) emit(t *Table, r ir.Record, prev, current ir.Properties, opts []MutationOption) Update {
	var cfg mutationConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	u := Update{
		Table:   t,
		Record:  r,
		Current: current,
		Prev:    prev,
		Type:    classify(prev, current),
		Seq:     s.clock.Next(),
	}
	if !cfg.skipNotify {
		s.dispatch(u)
	}
	return u
}

func classify(prev, current ir.Properties) UpdateType {
	switch {
	case prev == nil && current == nil:
		return Noop
	case prev == nil:
		return Enter
	case current == nil:
		return Exit
	case prev.Equal(current):
		return Noop
	default:
		return Change
	}
}
