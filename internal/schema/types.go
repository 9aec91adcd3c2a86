package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/recs/internal/ir"
)

// Kind is the element kind of a field.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindNumber
	KindBigInt
	KindString
	KindBytes
	KindRecord
)

var kindNames = map[Kind]string{
	KindBool:   "bool",
	KindNumber: "number",
	KindBigInt: "bigint",
	KindString: "string",
	KindBytes:  "bytes",
	KindRecord: "record",
}

// String returns the kind's tag name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind parses a kind tag. "boolean" and "int" are accepted aliases.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "bool", "boolean":
		return KindBool, nil
	case "number", "int":
		return KindNumber, nil
	case "bigint":
		return KindBigInt, nil
	case "string":
		return KindString, nil
	case "bytes":
		return KindBytes, nil
	case "record":
		return KindRecord, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}

// Type is the resolved type tag of one schema field.
//
// Text form: "<kind>[][?]", e.g. "number", "string[]", "record?", "bigint[]?".
// A trailing "?" marks the field optional: it is not required for presence.
type Type struct {
	Kind     Kind
	Array    bool
	Optional bool
}

// ParseType parses the text form of a type tag.
func ParseType(s string) (Type, error) {
	var t Type
	rest := strings.TrimSpace(s)
	if strings.HasSuffix(rest, "?") {
		t.Optional = true
		rest = strings.TrimSuffix(rest, "?")
	}
	if strings.HasSuffix(rest, "[]") {
		t.Array = true
		rest = strings.TrimSuffix(rest, "[]")
	}
	k, err := ParseKind(rest)
	if err != nil {
		return Type{}, fmt.Errorf("parse type %q: %w", s, err)
	}
	t.Kind = k
	return t, nil
}

// MustParseType is like ParseType but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String renders the text form accepted by ParseType.
func (t Type) String() string {
	s := t.Kind.String()
	if t.Array {
		s += "[]"
	}
	if t.Optional {
		s += "?"
	}
	return s
}

// IsRelation reports whether a field of this type can serve as a proxy
// relation: a single-valued record.
func (t Type) IsRelation() bool {
	return t.Kind == KindRecord && !t.Array
}

// Check verifies that v has the shape this type declares.
func (t Type) Check(v ir.Value) error {
	if v == nil {
		return fmt.Errorf("nil value for %s", t)
	}
	if t.Array {
		arr, ok := v.(ir.Array)
		if !ok {
			return fmt.Errorf("expected %s, got %T", t, v)
		}
		elem := Type{Kind: t.Kind}
		for i, e := range arr {
			if err := elem.Check(e); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	}

	var ok bool
	switch t.Kind {
	case KindBool:
		_, ok = v.(ir.Bool)
	case KindNumber:
		var n ir.Number
		if n, ok = v.(ir.Number); ok && !n.Finite() {
			return fmt.Errorf("number %v is not finite", float64(n))
		}
	case KindBigInt:
		_, ok = v.(ir.BigInt)
	case KindString:
		_, ok = v.(ir.String)
	case KindBytes:
		_, ok = v.(ir.Bytes)
	case KindRecord:
		_, ok = v.(ir.Record)
	default:
		return fmt.Errorf("invalid kind %s", t.Kind)
	}
	if !ok {
		return fmt.Errorf("expected %s, got %T", t, v)
	}
	return nil
}
