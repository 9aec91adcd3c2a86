package schema

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"

	"github.com/roach88/recs/internal/ir"
)

// RecordResolver maps a textual record reference to a Record.
// ir.ParseRecord is the resolver for hex references; the scenario harness
// resolves symbolic names.
type RecordResolver func(string) (ir.Record, error)

// DecodeValue converts a loosely-typed value, as produced by yaml.v3 or by
// encoding/json with UseNumber, into an ir.Value of type t.
//
// Accepted inputs per kind:
//   - number: any Go integer or float, json.Number; never NaN or Inf
//   - bigint: any Go integer, integral float64, json.Number, decimal strings
//   - bytes: 0x-prefixed hex strings or []byte
//   - record: strings passed to resolve
func DecodeValue(t Type, raw any, resolve RecordResolver) (ir.Value, error) {
	if raw == nil {
		return nil, fmt.Errorf("null value for %s", t)
	}
	if t.Array {
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list for %s, got %T", t, raw)
		}
		elem := Type{Kind: t.Kind}
		out := make(ir.Array, 0, len(items))
		for i, item := range items {
			v, err := DecodeValue(elem, item, resolve)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, v)
		}
		return out, nil
	}

	switch t.Kind {
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", raw)
		}
		return ir.Bool(b), nil

	case KindNumber:
		n, err := toFloat64(raw)
		if err != nil {
			return nil, err
		}
		return ir.Number(n), nil

	case KindBigInt:
		return toBigInt(raw)

	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return ir.String(s), nil

	case KindBytes:
		switch b := raw.(type) {
		case []byte:
			return ir.Bytes(bytes.Clone(b)), nil
		case string:
			decoded, err := hex.DecodeString(strings.TrimPrefix(b, "0x"))
			if err != nil {
				return nil, fmt.Errorf("invalid bytes %q: %w", b, err)
			}
			return ir.Bytes(decoded), nil
		default:
			return nil, fmt.Errorf("expected hex string, got %T", raw)
		}

	case KindRecord:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected record reference, got %T", raw)
		}
		if resolve == nil {
			resolve = ir.ParseRecord
		}
		r, err := resolve(s)
		if err != nil {
			return nil, err
		}
		return r, nil

	default:
		return nil, fmt.Errorf("invalid kind %s", t.Kind)
	}
}

// Coerce decodes a raw property map against s. Keys the schema does not
// declare are not decoded; their names are returned sorted so the caller can
// decide how to report them.
func Coerce(s Schema, raw map[string]any, resolve RecordResolver) (ir.Properties, []string, error) {
	props := make(ir.Properties, len(raw))
	var unknown []string
	for name, rv := range raw {
		f, ok := s.Lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		v, err := DecodeValue(f.Type, rv, resolve)
		if err != nil {
			return nil, nil, &Error{Field: name, Message: err.Error()}
		}
		props[name] = v
	}
	sort.Strings(unknown)
	return props, unknown, nil
}

// DecodeProperties parses canonical JSON produced by ir.MarshalCanonical
// back into properties typed by s.
func DecodeProperties(s Schema, data []byte) (ir.Properties, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode properties: not an object")
	}

	props, unknown, err := Coerce(s, raw, ir.ParseRecord)
	if err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("decode properties: undeclared fields %v", unknown)
	}
	return props, nil
}

func toFloat64(raw any) (float64, error) {
	var f float64
	switch n := raw.(type) {
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("number %s: %w", n, err)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("number %v is not finite", f)
	}
	return f, nil
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("number %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n < math.MinInt64 || n > math.MaxInt64 {
			return 0, fmt.Errorf("number %v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("number %s: %w", n, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}

func toBigInt(raw any) (ir.Value, error) {
	switch n := raw.(type) {
	case string:
		return ir.ParseBigInt(n)
	case json.Number:
		return ir.ParseBigInt(n.String())
	case uint64:
		return ir.NewBigInt(new(big.Int).SetUint64(n)), nil
	default:
		i, err := toInt64(raw)
		if err != nil {
			return nil, err
		}
		return ir.BigIntFromInt64(i), nil
	}
}
