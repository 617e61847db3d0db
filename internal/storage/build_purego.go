//go:build !sqlite_cgo
// +build !sqlite_cgo

package storage

// Compiled by default. Uses a pure Go SQLite implementation so the
// binary cross-compiles without a C toolchain.
//
// Build command:
//
//	CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
