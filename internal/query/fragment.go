package query

import (
	"fmt"

	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/store"
)

// Fragment is one clause of a compound membership query.
//
// This is a sealed interface: only the six fragment types of this package
// implement it, so evaluators can switch over them exhaustively.
//
// Fragment kinds:
//   - positive: WithFragment, WithPropertiesFragment
//   - negative: WithoutFragment, WithoutPropertiesFragment
//   - setting: ProxyReadFragment, ProxyExpandFragment
//
// Setting fragments test nothing themselves; they configure proxy traversal
// for every fragment that follows them in the list.
type Fragment interface {
	// From returns the table the fragment refers to.
	From() *store.Table
	fmt.Stringer
	fragmentNode()
}

// WithFragment passes for records that have properties in Table.
type WithFragment struct {
	Table *store.Table
}

// WithPropertiesFragment passes for records whose properties in Table equal
// Properties on its keys.
type WithPropertiesFragment struct {
	Table      *store.Table
	Properties ir.Properties
}

// WithoutFragment passes for records without properties in Table.
type WithoutFragment struct {
	Table *store.Table
}

// WithoutPropertiesFragment passes for records that do not match Properties
// in Table, including records without properties there.
type WithoutPropertiesFragment struct {
	Table      *store.Table
	Properties ir.Properties
}

// ProxyReadFragment makes later fragments also test the records reachable
// by following Table's relation field up to Depth hops.
type ProxyReadFragment struct {
	Table *store.Table
	Depth int
}

// ProxyExpandFragment makes later fragments also admit the records that
// reference a candidate through Table's relation field, up to Depth hops
// down.
type ProxyExpandFragment struct {
	Table *store.Table
	Depth int
}

func (WithFragment) fragmentNode()              {}
func (WithPropertiesFragment) fragmentNode()    {}
func (WithoutFragment) fragmentNode()           {}
func (WithoutPropertiesFragment) fragmentNode() {}
func (ProxyReadFragment) fragmentNode()         {}
func (ProxyExpandFragment) fragmentNode()       {}

func (f WithFragment) From() *store.Table              { return f.Table }
func (f WithPropertiesFragment) From() *store.Table    { return f.Table }
func (f WithoutFragment) From() *store.Table           { return f.Table }
func (f WithoutPropertiesFragment) From() *store.Table { return f.Table }
func (f ProxyReadFragment) From() *store.Table         { return f.Table }
func (f ProxyExpandFragment) From() *store.Table       { return f.Table }

func (f WithFragment) String() string {
	return fmt.Sprintf("With(%s)", f.Table)
}

func (f WithPropertiesFragment) String() string {
	return fmt.Sprintf("WithProperties(%s, %s)", f.Table, f.Properties)
}

func (f WithoutFragment) String() string {
	return fmt.Sprintf("Without(%s)", f.Table)
}

func (f WithoutPropertiesFragment) String() string {
	return fmt.Sprintf("WithoutProperties(%s, %s)", f.Table, f.Properties)
}

func (f ProxyReadFragment) String() string {
	return fmt.Sprintf("ProxyRead(%s, %d)", f.Table, f.Depth)
}

func (f ProxyExpandFragment) String() string {
	return fmt.Sprintf("ProxyExpand(%s, %d)", f.Table, f.Depth)
}

// With matches records that have properties in t.
func With(t *store.Table) Fragment {
	return WithFragment{Table: t}
}

// WithProperties matches records whose properties in t equal p on p's keys.
// The filter is copied.
func WithProperties(t *store.Table, p ir.Properties) Fragment {
	return WithPropertiesFragment{Table: t, Properties: p.Clone()}
}

// Without matches records that have no properties in t.
func Without(t *store.Table) Fragment {
	return WithoutFragment{Table: t}
}

// WithoutProperties matches records that do not match p in t.
func WithoutProperties(t *store.Table, p ir.Properties) Fragment {
	return WithoutPropertiesFragment{Table: t, Properties: p.Clone()}
}

// ProxyRead activates upward traversal of t's relation field for the
// fragments that follow. Depth 0 disables it.
func ProxyRead(t *store.Table, depth int) Fragment {
	return ProxyReadFragment{Table: t, Depth: depth}
}

// ProxyExpand activates downward traversal of t's relation field for the
// fragments that follow. Depth 0 disables it.
func ProxyExpand(t *store.Table, depth int) Fragment {
	return ProxyExpandFragment{Table: t, Depth: depth}
}

// IsPositive reports whether f is With or WithProperties.
func IsPositive(f Fragment) bool {
	switch f.(type) {
	case WithFragment, WithPropertiesFragment:
		return true
	default:
		return false
	}
}

// IsNegative reports whether f is Without or WithoutProperties.
func IsNegative(f Fragment) bool {
	switch f.(type) {
	case WithoutFragment, WithoutPropertiesFragment:
		return true
	default:
		return false
	}
}

// IsSetting reports whether f is ProxyRead or ProxyExpand.
func IsSetting(f Fragment) bool {
	switch f.(type) {
	case ProxyReadFragment, ProxyExpandFragment:
		return true
	default:
		return false
	}
}

// HasSetting reports whether any fragment is a setting fragment.
func HasSetting(frags []Fragment) bool {
	for _, f := range frags {
		if IsSetting(f) {
			return true
		}
	}
	return false
}

// Tables returns the distinct tables referenced by frags in first-use order.
func Tables(frags []Fragment) []*store.Table {
	seen := make(map[*store.Table]bool)
	var out []*store.Table
	for _, f := range frags {
		t := f.From()
		if t == nil || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// References reports whether any fragment refers to t.
func References(frags []Fragment, t *store.Table) bool {
	for _, f := range frags {
		if f.From() == t {
			return true
		}
	}
	return false
}
