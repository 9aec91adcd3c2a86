package ir

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// RecordSize is the fixed width of a record key in bytes.
const RecordSize = 32

// Record is an opaque key identifying an entity across tables.
//
// Records are immutable values: identity is by value, two records with the
// same bytes are the same record. The zero Record is valid but reserved as
// "no record" by callers that need a sentinel.
type Record [RecordSize]byte

func (Record) value() {}

// NoRecord is the zero record.
var NoRecord Record

// String renders the record as 0x-prefixed lowercase hex.
func (r Record) String() string {
	return "0x" + hex.EncodeToString(r[:])
}

// Short renders the first four bytes, for log output.
func (r Record) Short() string {
	return "0x" + hex.EncodeToString(r[:4])
}

// IsZero reports whether r is NoRecord.
func (r Record) IsZero() bool {
	return r == NoRecord
}

// Compare orders records by their bytes.
func (r Record) Compare(other Record) int {
	return bytes.Compare(r[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (r Record) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Record) UnmarshalText(text []byte) error {
	parsed, err := ParseRecord(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRecord parses a hex record key. The 0x prefix is optional and shorter
// inputs are left-padded with zeros, so "0x1" and "0x0...01" are the same record.
func ParseRecord(s string) (Record, error) {
	var r Record
	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if h == "" {
		return r, fmt.Errorf("parse record %q: empty", s)
	}
	if len(h) > RecordSize*2 {
		return r, fmt.Errorf("parse record %q: longer than %d bytes", s, RecordSize)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return r, fmt.Errorf("parse record %q: %w", s, err)
	}
	copy(r[RecordSize-len(raw):], raw)
	return r, nil
}

// MustParseRecord is like ParseRecord but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseRecord(s string) Record {
	r, err := ParseRecord(s)
	if err != nil {
		panic(err)
	}
	return r
}

// RecordFromName derives a stable record from a human-readable name.
// The same name always yields the same record (domain-separated SHA-256).
func RecordFromName(name string) Record {
	var r Record
	copy(r[:], hashBytesWithDomain(DomainRecordName, []byte(name)))
	return r
}

// NewRecord mints a fresh record from a UUIDv7.
//
// UUIDv7 embeds a timestamp in its most significant bits, so records minted
// by one process sort by creation time. The UUID occupies the low 16 bytes.
//
// Panics if UUID generation fails (should never happen in practice).
func NewRecord() Record {
	id := uuid.Must(uuid.NewV7())
	var r Record
	copy(r[RecordSize-len(id):], id[:])
	return r
}

// SortRecords sorts records in place by their bytes.
func SortRecords(records []Record) {
	slices.SortFunc(records, Record.Compare)
}

// RecordSet is a mutable set of records.
//
// A RecordSet is owned by exactly one component; components hand out Sorted()
// copies rather than the set itself.
type RecordSet map[Record]struct{}

// NewRecordSet creates a set holding the given records.
func NewRecordSet(records ...Record) RecordSet {
	s := make(RecordSet, len(records))
	for _, r := range records {
		s[r] = struct{}{}
	}
	return s
}

// Add inserts r and reports whether it was absent before.
func (s RecordSet) Add(r Record) bool {
	if _, ok := s[r]; ok {
		return false
	}
	s[r] = struct{}{}
	return true
}

// Delete removes r and reports whether it was present.
func (s RecordSet) Delete(r Record) bool {
	if _, ok := s[r]; !ok {
		return false
	}
	delete(s, r)
	return true
}

// Has reports whether r is in the set.
func (s RecordSet) Has(r Record) bool {
	_, ok := s[r]
	return ok
}

// Len returns the number of records in the set.
func (s RecordSet) Len() int {
	return len(s)
}

// Sorted returns the members in byte order.
func (s RecordSet) Sorted() []Record {
	out := make([]Record, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	SortRecords(out)
	return out
}

// Clone returns an independent copy.
func (s RecordSet) Clone() RecordSet {
	out := make(RecordSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold exactly the same records.
func (s RecordSet) Equal(other RecordSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if _, ok := other[r]; !ok {
			return false
		}
	}
	return true
}
