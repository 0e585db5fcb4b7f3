package heatmap

import "fmt"

// InvalidBoundsError is returned when a bound is missing or does not parse
// to a finite number. No store query is issued in that case.
type InvalidBoundsError struct {
	Field string
	Value string
}

func (e *InvalidBoundsError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid bounds: %s is required", e.Field)
	}
	return fmt.Sprintf("invalid bounds: %s=%q is not a finite number", e.Field, e.Value)
}

// UpstreamQueryError wraps a failed store fetch. It is not retried.
type UpstreamQueryError struct {
	Op  string
	Err error
}

func (e *UpstreamQueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamQueryError) Unwrap() error {
	return e.Err
}
