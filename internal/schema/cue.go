package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// TableDef is a table schema derived from an external type descriptor.
type TableDef struct {
	Name   string
	Schema Schema
	// Relation names the field tagged @recs(relation), or "" if none.
	Relation string
}

// FromCUE derives table definitions from the structs under the "table" field
// of v, in declaration order:
//
//	table: Node: {
//		label:   string
//		weight:  int
//		parent?: string @recs(record,relation)
//		tags:    [...string]
//	}
//
// int, float and number map to number, list to the array of its element
// kind, and a "?" label to an optional field. @recs(record) and
// @recs(bigint) select the record and big-integer kinds.
func FromCUE(v cue.Value) ([]TableDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, &Error{Field: "table", Message: "no table definitions found", Pos: v.Pos()}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []TableDef
	for iter.Next() {
		def, err := tableFromCUE(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func tableFromCUE(name string, v cue.Value) (TableDef, error) {
	if !ValidName(name) {
		return TableDef{}, &Error{Field: "table." + name, Message: "invalid table name", Pos: v.Pos()}
	}

	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		return TableDef{}, formatCUEError(err)
	}

	def := TableDef{Name: name}
	var fields []Field
	for iter.Next() {
		label := iter.Label()
		fv := iter.Value()
		attrs, err := recsAttrs(fv)
		if err != nil {
			return TableDef{}, &Error{Field: name + "." + label, Message: err.Error(), Pos: fv.Pos()}
		}

		t, err := extractType(fv, attrs)
		if err != nil {
			return TableDef{}, &Error{Field: name + "." + label, Message: err.Error(), Pos: fv.Pos()}
		}
		t.Optional = iter.IsOptional()

		if attrs["relation"] {
			if !t.IsRelation() {
				return TableDef{}, &Error{Field: name + "." + label, Message: "relation field must be a single record", Pos: fv.Pos()}
			}
			if def.Relation != "" {
				return TableDef{}, &Error{Field: name + "." + label, Message: "multiple relation fields", Pos: fv.Pos()}
			}
			def.Relation = label
		}
		fields = append(fields, Field{Name: label, Type: t})
	}

	s, err := New(fields...)
	if err != nil {
		return TableDef{}, fmt.Errorf("table %s: %w", name, err)
	}
	def.Schema = s
	return def, nil
}

// recsAttrs returns the flags of a field's @recs(...) attribute.
func recsAttrs(v cue.Value) (map[string]bool, error) {
	flags := make(map[string]bool)
	attr := v.Attribute("recs")
	if attr.Err() != nil {
		return flags, nil
	}
	for i := 0; i < attr.NumArgs(); i++ {
		arg, err := attr.String(i)
		if err != nil {
			return nil, err
		}
		switch arg {
		case "record", "bigint", "relation":
			flags[arg] = true
		default:
			return nil, fmt.Errorf("unknown @recs attribute %q", arg)
		}
	}
	if flags["record"] && flags["bigint"] {
		return nil, fmt.Errorf("@recs(record) and @recs(bigint) are exclusive")
	}
	return flags, nil
}

// extractType converts a CUE field type to a field Type.
func extractType(v cue.Value, attrs map[string]bool) (Type, error) {
	kind := v.IncompleteKind()
	if kind == cue.ListKind {
		elem := v.LookupPath(cue.MakePath(cue.AnyIndex))
		if !elem.Exists() {
			return Type{}, fmt.Errorf("list must be open with an element type, e.g. [...int]")
		}
		if elem.IncompleteKind() == cue.ListKind {
			return Type{}, fmt.Errorf("nested lists are not supported")
		}
		t, err := extractType(elem, attrs)
		if err != nil {
			return Type{}, err
		}
		t.Array = true
		return t, nil
	}

	switch {
	case attrs["record"]:
		if kind != cue.StringKind {
			return Type{}, fmt.Errorf("@recs(record) requires a string field, got %v", kind)
		}
		return Type{Kind: KindRecord}, nil
	case attrs["bigint"]:
		if kind != cue.IntKind && kind != cue.StringKind {
			return Type{}, fmt.Errorf("@recs(bigint) requires an int or string field, got %v", kind)
		}
		return Type{Kind: KindBigInt}, nil
	}

	switch kind {
	case cue.StringKind:
		return Type{Kind: KindString}, nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		return Type{Kind: KindNumber}, nil
	case cue.BoolKind:
		return Type{Kind: KindBool}, nil
	case cue.BytesKind:
		return Type{Kind: KindBytes}, nil
	default:
		return Type{}, fmt.Errorf("unsupported type kind: %v", kind)
	}
}

// LoadCUEDir loads the CUE package in dir and derives its tables.
func LoadCUEDir(dir string) ([]TableDef, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schemas directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", formatCUEError(inst.Err))
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}
	return FromCUE(value)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
