package model

import "fmt"

// InvalidTransitionError indicates a requested state or status change that
// violates the legal-transition table. It is always surfaced to the caller,
// never silently coerced.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// UnknownEnumValueError indicates a raw string from an external source that
// does not map to any variant of a closed enum type.
type UnknownEnumValueError struct {
	Enum  string
	Value string
}

func (e *UnknownEnumValueError) Error() string {
	return fmt.Sprintf("unknown %s value %q", e.Enum, e.Value)
}
