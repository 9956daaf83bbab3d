// Package mbtiles provides read-only access to MBTiles chart archives.
//
// An MBTiles archive is a SQLite database following the MBTiles
// specification: a tiles table (or view) keyed by zoom_level, tile_column
// and tile_row, plus a metadata table of string key/value pairs. Rows are
// stored in TMS convention (row 0 at the bottom); use FlipRow to convert
// from the XYZ ("slippy") convention used by web clients.
package mbtiles

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

// Archive is a read-only handle to one MBTiles file.
//
// An Archive is safe for concurrent use; queries run against a shared
// database/sql connection pool. The archive is never mutated: tiles for a
// given coordinate do not change once packaged.
//
// Example:
//
//	archive, err := mbtiles.Open("US5MA22M.mbtiles")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer archive.Close()
//
//	tile, err := archive.GetTile(10, 308, 621)
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens an MBTiles archive and validates its schema.
//
// The file must already exist; Open never creates a database. On open the
// archive is validated to expose the expected tile-lookup schema. If
// validation fails the handle is closed and an *ErrInvalidArchive is
// returned listing whatever tables were discoverable, so a malformed
// archive can be diagnosed without opening it by hand.
func Open(path string) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	a := &Archive{db: db, path: path}
	if err := a.validate(); err != nil {
		db.Close()
		return nil, err
	}

	return a, nil
}

// validate checks that the archive exposes the MBTiles tile-lookup schema.
func (a *Archive) validate() error {
	var one int
	err := a.db.QueryRow(
		`SELECT 1 FROM tiles WHERE zoom_level = 0 AND tile_column = 0 AND tile_row = 0 LIMIT 1`,
	).Scan(&one)
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return nil
	}

	return &ErrInvalidArchive{
		Path:   a.path,
		Tables: a.tableNames(),
		Err:    err,
	}
}

// tableNames lists the tables and views present in the database, for
// diagnostics when validation fails.
func (a *Archive) tableNames() []string {
	rows, err := a.db.Query(
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') ORDER BY name`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names
		}
		names = append(names, name)
	}
	return names
}

// Path returns the file-system path the archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Metadata returns the archive's metadata table as a key/value map.
//
// Common MBTiles keys include "name", "format", "bounds", "minzoom",
// "maxzoom" and "attribution". An archive without a metadata table
// returns an empty map rather than an error.
func (a *Archive) Metadata() (map[string]string, error) {
	md := make(map[string]string)

	// Metadata is optional in practice; a missing table is not fatal,
	// but any other query failure is.
	var table string
	err := a.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name = 'metadata'`,
	).Scan(&table)
	if errors.Is(err, sql.ErrNoRows) {
		return md, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	rows, err := a.db.Query(`SELECT name, value FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("read metadata: %w", err)
		}
		md[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	return md, nil
}

// TileCount returns the number of tiles stored in the archive.
//
// A count of zero is valid: the chart loads and serves empty responses
// for every coordinate.
func (a *Archive) TileCount() (int, error) {
	var count int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM tiles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tiles: %w", err)
	}
	return count, nil
}

// ZoomLevels returns the sorted set of zoom levels actually present.
func (a *Archive) ZoomLevels() ([]int, error) {
	rows, err := a.db.Query(`SELECT DISTINCT zoom_level FROM tiles`)
	if err != nil {
		return nil, fmt.Errorf("query zoom levels: %w", err)
	}
	defer rows.Close()

	var zooms []int
	for rows.Next() {
		var z int
		if err := rows.Scan(&z); err != nil {
			return nil, fmt.Errorf("query zoom levels: %w", err)
		}
		zooms = append(zooms, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query zoom levels: %w", err)
	}

	sort.Ints(zooms)
	return zooms, nil
}

// GetTile returns the tile payload at (zoom, column, row).
//
// Coordinates are in the archive's native TMS convention: callers holding
// an XYZ row must convert it with FlipRow before querying. Returns
// ErrTileNotFound when no tile exists at the coordinate; this is a normal
// outcome for any coordinate outside the chart's data extent.
func (a *Archive) GetTile(zoom, column, row int) ([]byte, error) {
	var data []byte
	err := a.db.QueryRow(
		`SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`,
		zoom, column, row,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query tile %d/%d/%d: %w", zoom, column, row, err)
	}
	return data, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// FlipRow converts a tile row between the XYZ ("slippy") and TMS
// conventions at the given zoom level.
//
// XYZ rows increase southward from the top of the world; TMS rows increase
// northward from the bottom. The transform is its own inverse:
//
//	FlipRow(z, FlipRow(z, y)) == y
//
// The column is identical under both conventions and is not touched.
func FlipRow(zoom, row int) int {
	return (1 << uint(zoom)) - 1 - row
}
