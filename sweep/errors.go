package sweep

import (
	"errors"
	"fmt"
)

// Failure kinds. Every one of them aborts the sweep.
var (
	ErrBuild      = errors.New("build failure")
	ErrGeneration = errors.New("generation failure")
	ErrExecution  = errors.New("execution failure")
	ErrIntegrity  = errors.New("integrity failure")
)

const noSize = -1

// CellError reports which failure kind stopped the sweep and at which cell.
type CellError struct {
	Kind error
	Cell Cell
	Err  error
}

func (e *CellError) Error() string {
	if e == nil {
		return ""
	}

	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Cell, e.Err)
}

func (e *CellError) Unwrap() []error { return []error{e.Kind, e.Err} }

func cellError(kind error, cell Cell, err error) error {
	return &CellError{Kind: kind, Cell: cell, Err: err}
}
