//go:build !sqlite_cgo

package storage

import (
	_ "modernc.org/sqlite"
)

// driverName selects the pure-Go modernc.org/sqlite driver by default, so
// this module builds without cgo (spec SPEC_FULL.md DOMAIN STACK). Pass
// -tags sqlite_cgo to build against mattn/go-sqlite3 instead, which is
// required to load the sqlite-vec extension (see vecext.go).
const driverName = "sqlite"
