// Package schema defines table schemas: ordered, typed field lists.
//
// A field's Type is a small tagged enum (kind plus array and optional
// flags) resolved once when a table is registered, so property reads and
// writes never inspect type strings.
//
// Schemas come from three places:
//   - Go literals via New and F
//   - YAML mappings (Schema implements yaml.Unmarshaler, keeping key order)
//   - CUE struct definitions via FromCUE and LoadCUEDir
//
// Decode helpers turn loosely-typed input (YAML scalars, JSON with
// json.Number) into ir values checked against a schema.
package schema
