package changelog

import (
	"fmt"

	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/schema"
)

// Op is the kind of mutation an entry records.
type Op string

const (
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// Entry is one logged mutation.
//
// Properties are stored as RFC 8785 canonical JSON. The encoding is not
// self-describing, so Decode needs the table schema.
type Entry struct {
	ID     int64 // assigned by Append
	Seq    int64
	Table  string
	Record ir.Record
	Op     Op
	Data   []byte // canonical JSON of the properties; nil for OpRemove
}

// SetEntry builds an OpSet entry.
func SetEntry(seq int64, table string, r ir.Record, props ir.Properties) (Entry, error) {
	if props == nil {
		props = ir.Properties{}
	}
	data, err := ir.MarshalCanonical(props)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal properties: %w", err)
	}
	return Entry{Seq: seq, Table: table, Record: r, Op: OpSet, Data: data}, nil
}

// RemoveEntry builds an OpRemove entry.
func RemoveEntry(seq int64, table string, r ir.Record) Entry {
	return Entry{Seq: seq, Table: table, Record: r, Op: OpRemove}
}

// Decode parses the entry's properties against s. Remove entries decode to
// nil.
func (e Entry) Decode(s schema.Schema) (ir.Properties, error) {
	if e.Op == OpRemove {
		return nil, nil
	}
	return schema.DecodeProperties(s, e.Data)
}

func (e Entry) validate() error {
	switch e.Op {
	case OpSet:
		if len(e.Data) == 0 {
			return fmt.Errorf("set entry without properties")
		}
	case OpRemove:
	default:
		return fmt.Errorf("unknown op %q", e.Op)
	}
	if e.Table == "" {
		return fmt.Errorf("entry without table")
	}
	return nil
}
