package apptable

import (
	"errors"
	"fmt"
)

var (
	// ErrRowLength is returned in strict mode when a data row does not have
	// one cell per header.
	ErrRowLength = errors.New("row length does not match headers")
	// ErrUnknownColumn is returned in strict mode when an additional column
	// is not one of the headers.
	ErrUnknownColumn = errors.New("additional column not found in headers")
)

// HighlightedCols returns the ascending indexes of headers whose value is
// listed in additional. Duplicate headers each contribute their own index;
// additional entries missing from headers are ignored.
func HighlightedCols(headers, additional []string) []int {
	if len(additional) == 0 {
		return []int{}
	}
	wanted := make(map[string]struct{}, len(additional))
	for _, col := range additional {
		wanted[col] = struct{}{}
	}
	out := []int{}
	for idx, header := range headers {
		if _, ok := wanted[header]; ok {
			out = append(out, idx)
		}
	}
	return out
}

// Validate reports every ragged row and unknown additional column in p.
// A nil result means the props are well formed.
func Validate(p Props) error {
	var errs []error
	for idx, row := range p.Data {
		if len(row) != len(p.Headers) {
			errs = append(errs, fmt.Errorf("row %d has %d cells, want %d: %w", idx, len(row), len(p.Headers), ErrRowLength))
		}
	}
	known := make(map[string]struct{}, len(p.Headers))
	for _, header := range p.Headers {
		known[header] = struct{}{}
	}
	for _, col := range p.AdditionalColumns {
		if _, ok := known[col]; !ok {
			errs = append(errs, fmt.Errorf("%q: %w", col, ErrUnknownColumn))
		}
	}
	return errors.Join(errs...)
}
