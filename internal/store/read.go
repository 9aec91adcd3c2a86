package store

import (
	"github.com/roach88/recs/internal/ir"
)

// Has reports whether r has properties in t. O(1).
func (s *Store) Has(t *Table, r ir.Record) bool {
	if s.owns(t) != nil {
		return false
	}
	return t.present.Has(r)
}

// Get returns r's properties in t, or nil if r has none. The result is a
// fresh map owned by the caller.
func (s *Store) Get(t *Table, r ir.Record) ir.Properties {
	if s.owns(t) != nil {
		return nil
	}
	return t.read(r)
}

// GetAll returns every record with properties in t, sorted.
func (s *Store) GetAll(t *Table) []ir.Record {
	if s.owns(t) != nil {
		return nil
	}
	return t.present.Sorted()
}

// GetAllWithProperties returns the records of t whose properties equal
// filter on the filter's keys, sorted. An empty filter matches every record
// with properties.
func (s *Store) GetAllWithProperties(t *Table, filter ir.Properties) []ir.Record {
	if s.owns(t) != nil {
		return nil
	}
	candidates := t.present
	if set, ok := t.lookupIndexed(filter); ok {
		candidates = set
	}

	out := []ir.Record{}
	for _, r := range candidates.Sorted() {
		if t.read(r).Matches(filter) {
			out = append(out, r)
		}
	}
	return out
}

// GetAllWithoutProperties returns the records of t with properties that do
// not match filter, sorted.
func (s *Store) GetAllWithoutProperties(t *Table, filter ir.Properties) []ir.Record {
	if s.owns(t) != nil {
		return nil
	}
	out := []ir.Record{}
	for _, r := range t.present.Sorted() {
		if !t.read(r).Matches(filter) {
			out = append(out, r)
		}
	}
	return out
}

// Children returns the records of t whose relation field references r,
// sorted. Empty when t has no relation field.
func (s *Store) Children(t *Table, r ir.Record) []ir.Record {
	if s.owns(t) != nil {
		return nil
	}
	kids := t.children[r]
	if kids == nil {
		return nil
	}
	return kids.Sorted()
}

// Parent returns the record r references through t's relation field, if r
// has properties and the field is set.
func (s *Store) Parent(t *Table, r ir.Record) (ir.Record, bool) {
	if s.owns(t) != nil || !t.present.Has(r) {
		return ir.NoRecord, false
	}
	return t.parent(r)
}

// lookupIndexed narrows a full-schema filter to the records whose canonical
// properties hash equal. Canonical form normalizes strings to NFC and writes
// bytes, records and strings alike, so hits are a superset of the matches and
// still have to be checked with Matches.
func (t *Table) lookupIndexed(filter ir.Properties) (ir.RecordSet, bool) {
	if !t.indexVals || len(filter) != t.schema.Len() {
		return nil, false
	}
	for name, v := range filter {
		if _, ok := t.schema.Lookup(name); !ok || v == nil {
			return nil, false
		}
	}
	key, err := ir.PropertiesHash(filter)
	if err != nil {
		return nil, false
	}
	set := t.valueIdx[key]
	if set == nil {
		return ir.NewRecordSet(), true
	}
	return set, true
}
