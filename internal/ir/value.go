package ir

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing a typed property value.
// Only Bool, Number, BigInt, String, Bytes, Record and Array implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Number is a finite float64. NaN and the infinities are rejected by
// schema checks and canonical encoding; -0 equals and encodes as 0.
// Integers beyond 2^53 lose precision, use BigInt for those.
type Number float64

func (Number) value() {}

// Finite reports whether n is neither NaN nor infinite.
func (n Number) Finite() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// BigInt is an arbitrary-precision integer.
// The wrapped big.Int is never exposed, so a BigInt is immutable once built.
type BigInt struct {
	n *big.Int
}

func (BigInt) value() {}

// NewBigInt copies n into a BigInt. A nil n is zero.
func NewBigInt(n *big.Int) BigInt {
	if n == nil {
		return BigInt{n: new(big.Int)}
	}
	return BigInt{n: new(big.Int).Set(n)}
}

// BigIntFromInt64 creates a BigInt from an int64.
func BigIntFromInt64(n int64) BigInt {
	return BigInt{n: big.NewInt(n)}
}

// ParseBigInt parses a base-10 integer.
func ParseBigInt(s string) (BigInt, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return BigInt{}, fmt.Errorf("invalid big integer %q", s)
	}
	return BigInt{n: n}, nil
}

// Int returns a copy of the wrapped integer.
func (b BigInt) Int() *big.Int {
	if b.n == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.n)
}

// String renders the integer in base 10.
func (b BigInt) String() string {
	if b.n == nil {
		return "0"
	}
	return b.n.String()
}

func (b BigInt) cmp(other BigInt) int {
	return b.Int().Cmp(other.Int())
}

// String is a UTF-8 string value.
type String string

func (String) value() {}

// Bytes is a byte-string value.
type Bytes []byte

func (Bytes) value() {}

// Array is an ordered list of values of one kind.
type Array []Value

func (Array) value() {}

// Equal reports deep equality of two values.
// Values of different concrete types are never equal; nil equals only nil.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case BigInt:
		bv, ok := b.(BigInt)
		return ok && av.cmp(bv) == 0
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bytes:
		bv, ok := b.(Bytes)
		return ok && bytes.Equal(av, bv)
	case Record:
		bv, ok := b.(Record)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		return ok && slices.EqualFunc(av, bv, Equal)
	default:
		return false
	}
}

// Properties holds one value per schema field, keyed by field name.
// A nil Properties means "no properties" (the record is absent from a table).
// Use SortedKeys() for deterministic iteration.
type Properties map[string]Value

// Clone returns a shallow copy; values themselves are immutable.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p with every key of partial written over it.
func (p Properties) Merge(partial Properties) Properties {
	out := make(Properties, len(p)+len(partial))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Equal reports whether both objects hold the same keys with equal values.
// A nil object equals only another nil object; an empty object is not nil.
func (p Properties) Equal(other Properties) bool {
	if (p == nil) != (other == nil) {
		return false
	}
	if len(p) != len(other) {
		return false
	}
	for k, v := range p {
		ov, ok := other[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

// Matches reports whether every key of filter is present in p with an equal value.
// Keys of p absent from filter are ignored. A nil p matches nothing.
func (p Properties) Matches(filter Properties) bool {
	if p == nil {
		return false
	}
	for k, want := range filter {
		got, ok := p[k]
		if !ok || !Equal(got, want) {
			return false
		}
	}
	return true
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (p Properties) SortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	// If all compared units are equal, shorter string comes first
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Format renders a value for logs and traces.
func Format(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case Bool:
		return fmt.Sprintf("%t", bool(val))
	case Number:
		return formatNumber(val)
	case BigInt:
		return val.String() + "n"
	case String:
		return fmt.Sprintf("%q", string(val))
	case Bytes:
		return fmt.Sprintf("0x%x", []byte(val))
	case Record:
		return val.String()
	case Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(Format(elem))
		}
		buf.WriteByte(']')
		return buf.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// String renders properties as {k=v ...} in canonical key order.
func (p Properties) String() string {
	if p == nil {
		return "<none>"
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.SortedKeys() {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(Format(p[k]))
	}
	buf.WriteByte('}')
	return buf.String()
}
