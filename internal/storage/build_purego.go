//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Default build. Uses a pure Go SQLite driver with FTS5 built in; cosine
// similarity for the vector channel is computed in Go over the campaign's
// embeddings.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
