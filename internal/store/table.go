package store

import (
	"maps"

	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/schema"
)

// Table is a schema-typed column store keyed by record.
//
// Each declared field has its own column (record -> value). A record has
// properties in the table iff every required field has a stored value;
// partially-written records are kept in the columns but are not readable.
//
// Tables are created by Store.RegisterTable and are only valid with the
// store that created them.
type Table struct {
	store    *Store
	id       string
	schema   schema.Schema
	required []string
	metadata map[string]string

	columns map[string]map[ir.Record]ir.Value
	rows    ir.RecordSet // written and not removed
	present ir.RecordSet // rows with every required field

	relation  string
	children  map[ir.Record]ir.RecordSet // parent -> present records referencing it
	valueIdx  map[string]ir.RecordSet    // properties hash -> present records
	indexVals bool

	listeners []*listener
}

// TableOption configures a table at registration.
type TableOption func(*tableConfig)

type tableConfig struct {
	metadata   map[string]string
	relation   string
	valueIndex bool
}

// WithMetadata attaches a key/value pair to the table.
func WithMetadata(key, value string) TableOption {
	return func(c *tableConfig) {
		c.metadata[key] = value
	}
}

// WithRelationField designates the single-valued record field used for
// proxy traversal. Without it, a table with exactly one such field uses it.
func WithRelationField(name string) TableOption {
	return func(c *tableConfig) {
		c.relation = name
	}
}

// WithValueIndex maintains a properties-hash index so full-schema
// GetAllWithProperties lookups do not scan the table.
func WithValueIndex() TableOption {
	return func(c *tableConfig) {
		c.valueIndex = true
	}
}

// ID returns the table id.
func (t *Table) ID() string {
	return t.id
}

// Schema returns the table schema.
func (t *Table) Schema() schema.Schema {
	return t.schema
}

// Metadata returns a copy of the table metadata.
func (t *Table) Metadata() map[string]string {
	return maps.Clone(t.metadata)
}

// Relation returns the designated relation field, if the table has one.
func (t *Table) Relation() (string, bool) {
	return t.relation, t.relation != ""
}

// Len returns the number of records with properties.
func (t *Table) Len() int {
	return t.present.Len()
}

// String returns the table id.
func (t *Table) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.id
}

// complete reports whether r has a value in every required column.
func (t *Table) complete(r ir.Record) bool {
	if !t.rows.Has(r) {
		return false
	}
	for _, name := range t.required {
		if _, ok := t.columns[name][r]; !ok {
			return false
		}
	}
	return true
}

// read assembles r's properties from the columns. Optional fields without a
// value are omitted. Returns nil when r has no properties.
func (t *Table) read(r ir.Record) ir.Properties {
	if !t.present.Has(r) {
		return nil
	}
	props := make(ir.Properties, len(t.columns))
	for name, col := range t.columns {
		if v, ok := col[r]; ok {
			props[name] = v
		}
	}
	return props
}

// parent returns the record r references through the relation field.
func (t *Table) parent(r ir.Record) (ir.Record, bool) {
	if t.relation == "" {
		return ir.NoRecord, false
	}
	v, ok := t.columns[t.relation][r]
	if !ok {
		return ir.NoRecord, false
	}
	p, ok := v.(ir.Record)
	return p, ok
}

// index adds r, whose properties are props, to the secondary indexes.
func (t *Table) index(r ir.Record, props ir.Properties) {
	if p, ok := t.parent(r); ok {
		kids := t.children[p]
		if kids == nil {
			kids = ir.NewRecordSet()
			t.children[p] = kids
		}
		kids.Add(r)
	}
	if t.indexVals {
		if key, err := ir.PropertiesHash(props); err == nil {
			set := t.valueIdx[key]
			if set == nil {
				set = ir.NewRecordSet()
				t.valueIdx[key] = set
			}
			set.Add(r)
		}
	}
}

// unindex removes r, whose properties were props, from the secondary indexes.
// Must run before the columns change.
func (t *Table) unindex(r ir.Record, props ir.Properties) {
	if p, ok := t.parent(r); ok {
		if kids := t.children[p]; kids != nil {
			kids.Delete(r)
			if kids.Len() == 0 {
				delete(t.children, p)
			}
		}
	}
	if t.indexVals {
		if key, err := ir.PropertiesHash(props); err == nil {
			if set := t.valueIdx[key]; set != nil {
				set.Delete(r)
				if set.Len() == 0 {
					delete(t.valueIdx, key)
				}
			}
		}
	}
}
