// Package testutil builds throwaway MBTiles fixtures for tests.
package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// TileRow is one tile to insert into a fixture archive. Row is in the
// archive's native TMS convention.
type TileRow struct {
	Zoom, Column, Row int
	Data              []byte
}

// WriteArchive creates a minimal MBTiles database at path with the given
// metadata and tiles.
func WriteArchive(t *testing.T, path string, metadata map[string]string, tiles []TileRow) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE metadata (name TEXT, value TEXT);
		CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB);
		CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row);
	`)
	require.NoError(t, err)

	for name, value := range metadata {
		_, err = db.Exec(`INSERT INTO metadata (name, value) VALUES (?, ?)`, name, value)
		require.NoError(t, err)
	}
	for _, tile := range tiles {
		_, err = db.Exec(
			`INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`,
			tile.Zoom, tile.Column, tile.Row, tile.Data)
		require.NoError(t, err)
	}
}

// WriteTilesOnlyArchive creates an MBTiles database at path that has a
// tiles table but no metadata table at all.
func WriteTilesOnlyArchive(t *testing.T, path string, tiles []TileRow) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB);
		CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row);
	`)
	require.NoError(t, err)

	for _, tile := range tiles {
		_, err = db.Exec(
			`INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`,
			tile.Zoom, tile.Column, tile.Row, tile.Data)
		require.NoError(t, err)
	}
}

// WriteBogusArchive creates a SQLite database at path that is not an
// MBTiles archive (wrong table names).
func WriteBogusArchive(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE sidecar (id INTEGER PRIMARY KEY, note TEXT)`)
	require.NoError(t, err)
}
