package schema

import (
	"fmt"
	"regexp"
)

// validName matches field and table identifiers.
var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Field is one named, typed column of a table.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`
}

// F is a shorthand for building a Field from a type tag.
// Panics on an invalid tag; intended for literals in code and tests.
func F(name, typ string) Field {
	return Field{Name: name, Type: MustParseType(typ)}
}

// Schema is an ordered set of fields. Order is declaration order and is
// preserved in every listing. The zero Schema has no fields.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New builds a schema, rejecting duplicate or malformed field names.
func New(fields ...Field) (Schema, error) {
	s := Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if !validName.MatchString(f.Name) {
			return Schema{}, &Error{Field: f.Name, Message: "invalid field name"}
		}
		if f.Type.Kind == 0 {
			return Schema{}, &Error{Field: f.Name, Message: "missing type"}
		}
		if _, dup := s.index[f.Name]; dup {
			return Schema{}, &Error{Field: f.Name, Message: "duplicate field"}
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustNew is like New but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustNew(fields ...Field) Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the fields in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// Lookup returns the named field.
func (s Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Required returns the names of non-optional fields in declaration order.
func (s Schema) Required() []string {
	var out []string
	for _, f := range s.fields {
		if !f.Type.Optional {
			out = append(out, f.Name)
		}
	}
	return out
}

// Relations returns the names of fields that can serve as proxy relations.
func (s Schema) Relations() []string {
	var out []string
	for _, f := range s.fields {
		if f.Type.IsRelation() {
			out = append(out, f.Name)
		}
	}
	return out
}

// String renders the schema as {name:type ...}.
func (s Schema) String() string {
	out := "{"
	for i, f := range s.fields {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s:%s", f.Name, f.Type)
	}
	return out + "}"
}

// ValidName reports whether s is a valid table or field identifier.
func ValidName(s string) bool {
	return validName.MatchString(s)
}
