//go:build purego || !sqlite_cgo
// +build purego !sqlite_cgo

package taskstore

// This file is compiled when building without CGO or with the purego tag.
// The pure Go driver needs no C compiler and cross-compiles cleanly.
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

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
