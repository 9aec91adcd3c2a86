// Package testutil provides deterministic record naming for scenarios,
// golden traces and tests.
package testutil

import (
	"fmt"
	"strings"

	"github.com/roach88/recs/internal/ir"
)

// Names maps human-readable names to records and back.
//
// A name always yields the same record (ir.RecordFromName), so the same
// scenario produces byte-identical traces across runs. Records that were
// never named render as their short hex form.
//
// Names is not safe for concurrent use.
type Names struct {
	byName   map[string]ir.Record
	byRecord map[ir.Record]string
}

// NewNames creates an empty registry.
func NewNames() *Names {
	return &Names{
		byName:   make(map[string]ir.Record),
		byRecord: make(map[ir.Record]string),
	}
}

// Record returns the record for name, registering it.
func (n *Names) Record(name string) ir.Record {
	if r, ok := n.byName[name]; ok {
		return r
	}
	r := ir.RecordFromName(name)
	n.byName[name] = r
	n.byRecord[r] = name
	return r
}

// Records returns the records for names, in the given order.
func (n *Names) Records(names ...string) []ir.Record {
	out := make([]ir.Record, len(names))
	for i, name := range names {
		out[i] = n.Record(name)
	}
	return out
}

// Resolve turns a scenario reference into a record: a 0x-prefixed hex key
// is parsed, anything else is a name. It satisfies schema.RecordResolver.
func (n *Names) Resolve(ref string) (ir.Record, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ir.NoRecord, fmt.Errorf("empty record reference")
	}
	if strings.HasPrefix(ref, "0x") {
		return ir.ParseRecord(ref)
	}
	return n.Record(ref), nil
}

// Name returns the registered name of r, or its short hex form.
func (n *Names) Name(r ir.Record) string {
	if name, ok := n.byRecord[r]; ok {
		return name
	}
	return r.Short()
}

// NameAll maps Name over records.
func (n *Names) NameAll(records []ir.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = n.Name(r)
	}
	return out
}
