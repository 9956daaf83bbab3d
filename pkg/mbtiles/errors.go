package mbtiles

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTileNotFound indicates a valid archive has no tile at the requested
// coordinate. This is an expected outcome, not a storage failure.
var ErrTileNotFound = errors.New("tile not found")

// ErrInvalidArchive indicates a file failed MBTiles schema validation.
type ErrInvalidArchive struct {
	Path   string   // File that failed validation
	Tables []string // Tables and views discovered, for diagnostics
	Err    error    // Underlying query error
}

func (e *ErrInvalidArchive) Error() string {
	if len(e.Tables) > 0 {
		return fmt.Sprintf("invalid mbtiles archive %s: no usable tiles table (found: %s): %v",
			e.Path, strings.Join(e.Tables, ", "), e.Err)
	}
	return fmt.Sprintf("invalid mbtiles archive %s: no usable tiles table: %v", e.Path, e.Err)
}

func (e *ErrInvalidArchive) Unwrap() error {
	return e.Err
}
