package convert

import (
	"errors"
	"fmt"
)

// ErrSourceDirMissing indicates the conversion input directory does not
// exist. This is the one global precondition failure that halts a batch;
// everything else is scoped to a single chart or layer.
var ErrSourceDirMissing = errors.New("source directory missing")

// ExtractionError indicates the extraction utility failed for one layer.
// The layer is skipped; sibling layers and charts continue.
type ExtractionError struct {
	Source string // Source chart file
	Layer  string // Layer being extracted
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract layer %s from %s: %v", e.Layer, e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// PackagingError indicates the packaging utility failed for one chart.
// The chart is skipped; the rest of the batch continues.
type PackagingError struct {
	Chart string
	Err   error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("package chart %s: %v", e.Chart, e.Err)
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}
