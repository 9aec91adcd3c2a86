package query

import (
	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/store"
)

// Passes reports whether r satisfies f directly, without proxy traversal.
// Setting fragments test nothing and always pass.
func Passes(st *store.Store, r ir.Record, f Fragment) bool {
	switch frag := f.(type) {
	case WithFragment:
		return st.Has(frag.Table, r)
	case WithPropertiesFragment:
		return st.Get(frag.Table, r).Matches(frag.Properties)
	case WithoutFragment:
		return !st.Has(frag.Table, r)
	case WithoutPropertiesFragment:
		return !st.Get(frag.Table, r).Matches(frag.Properties)
	case ProxyReadFragment, ProxyExpandFragment:
		return true
	default:
		return false
	}
}

// breaking reports whether a pass result is final for f: a positive
// fragment that passes or a negative fragment that fails. Proxy traversal
// stops at the first breaking state.
func breaking(passes bool, f Fragment) bool {
	return (passes && IsPositive(f)) || (!passes && IsNegative(f))
}

// Descendants returns the records reaching r through t's relation field in
// at most depth hops. Cycles are not detected; traversal ends at depth.
func Descendants(st *store.Store, t *store.Table, r ir.Record, depth int) ir.RecordSet {
	out := ir.NewRecordSet()
	frontier := []ir.Record{r}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []ir.Record
		for _, p := range frontier {
			for _, c := range st.Children(t, p) {
				if out.Add(c) {
					next = append(next, c)
				}
			}
		}
		frontier = next
	}
	return out
}

// evaluator holds the proxy settings active at one point of a fragment scan.
type evaluator struct {
	st     *store.Store
	read   *ProxyReadFragment
	expand *ProxyExpandFragment
}

func (e *evaluator) apply(f Fragment) {
	switch frag := f.(type) {
	case ProxyReadFragment:
		e.read = &frag
	case ProxyExpandFragment:
		e.expand = &frag
	}
}

func (e *evaluator) reading() bool {
	return e.read != nil && e.read.Depth > 0
}

func (e *evaluator) expanding() bool {
	return e.expand != nil && e.expand.Depth > 0
}

// passes tests r against f, walking the active proxy-read chain when the
// direct result is not breaking. The result is the first breaking state
// found within depth hops, or the direct result if there is none.
func (e *evaluator) passes(r ir.Record, f Fragment) bool {
	direct := Passes(e.st, r, f)
	if !e.reading() || breaking(direct, f) {
		return direct
	}

	cur := r
	for hop := 0; hop < e.read.Depth; hop++ {
		next, ok := e.st.Parent(e.read.Table, cur)
		if !ok {
			break
		}
		cur = next
		if p := Passes(e.st, cur, f); breaking(p, f) {
			return p
		}
	}
	return direct
}

// descendants returns r's descendants under the active proxy expansion.
func (e *evaluator) descendants(r ir.Record) []ir.Record {
	return Descendants(e.st, e.expand.Table, r, e.expand.Depth).Sorted()
}

// Run evaluates frags against the store and returns the matching records.
//
// Fragments are scanned left to right. Setting fragments configure proxy
// traversal for the fragments after them. The first membership fragment
// seeds the candidates from the store unless initial is given, in which
// case a copy of initial is the seed and every membership fragment filters.
// Each later fragment filters the candidates in sorted order; with
// ProxyExpand active, descendants of each candidate that pass the fragment
// are added.
//
// An empty fragment list yields an empty set.
func Run(st *store.Store, frags []Fragment, initial ir.RecordSet) (ir.RecordSet, error) {
	if err := validate(frags, initial != nil); err != nil {
		return nil, err
	}

	var candidates ir.RecordSet
	if initial != nil {
		candidates = initial.Clone()
	}
	e := &evaluator{st: st}

	for _, f := range frags {
		if IsSetting(f) {
			e.apply(f)
			continue
		}

		if candidates == nil {
			candidates = seed(st, f)
			if e.expanding() {
				for _, r := range candidates.Sorted() {
					for _, c := range e.descendants(r) {
						candidates.Add(c)
					}
				}
			}
			continue
		}

		for _, r := range candidates.Sorted() {
			if !e.passes(r, f) {
				candidates.Delete(r)
			}
			if e.expanding() {
				for _, c := range e.descendants(r) {
					if e.passes(c, f) {
						candidates.Add(c)
					}
				}
			}
		}
	}

	if candidates == nil {
		return ir.NewRecordSet(), nil
	}
	return candidates, nil
}

// seed builds the first candidate set from a positive fragment.
func seed(st *store.Store, f Fragment) ir.RecordSet {
	switch frag := f.(type) {
	case WithFragment:
		return ir.NewRecordSet(st.GetAll(frag.Table)...)
	case WithPropertiesFragment:
		return ir.NewRecordSet(st.GetAllWithProperties(frag.Table, frag.Properties)...)
	default:
		return ir.NewRecordSet()
	}
}
