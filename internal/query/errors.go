package query

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a malformed fragment list. It is raised
// synchronously when a query is evaluated or defined and is never retried.
type ConfigurationError struct {
	// Index is the position of the offending fragment.
	Index int

	// Fragment is the offending fragment.
	Fragment Fragment

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Fragment == nil {
		return fmt.Sprintf("CONFIGURATION: fragment %d: %s", e.Index, e.Message)
	}
	return fmt.Sprintf("CONFIGURATION: fragment %d %s: %s", e.Index, e.Fragment, e.Message)
}

// IsConfigurationError returns true if err is a malformed fragment list.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Validate checks a fragment list:
//   - every fragment refers to a table
//   - proxy depths are not negative
//   - proxy tables have a relation field
//   - the first membership fragment is positive
func Validate(frags []Fragment) error {
	return validate(frags, false)
}

// validate skips the leading-positive rule when the caller supplies the
// initial candidate set.
func validate(frags []Fragment, seeded bool) error {
	sawMembership := seeded
	for i, f := range frags {
		if f == nil {
			return &ConfigurationError{Index: i, Message: "nil fragment"}
		}
		if f.From() == nil {
			return &ConfigurationError{Index: i, Fragment: f, Message: "fragment has no table"}
		}

		switch frag := f.(type) {
		case ProxyReadFragment:
			if err := validateProxy(i, f, frag.Depth); err != nil {
				return err
			}
		case ProxyExpandFragment:
			if err := validateProxy(i, f, frag.Depth); err != nil {
				return err
			}
		default:
			if !sawMembership && IsNegative(f) {
				return &ConfigurationError{Index: i, Fragment: f, Message: "first membership fragment must be With or WithProperties"}
			}
			sawMembership = true
		}
	}
	return nil
}

func validateProxy(i int, f Fragment, depth int) error {
	if depth < 0 {
		return &ConfigurationError{Index: i, Fragment: f, Message: fmt.Sprintf("negative depth %d", depth)}
	}
	if _, ok := f.From().Relation(); !ok {
		return &ConfigurationError{Index: i, Fragment: f, Message: "proxy table has no single-valued record relation field"}
	}
	return nil
}
