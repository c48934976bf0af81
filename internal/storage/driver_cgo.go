//go:build sqlite_cgo

package storage

import (
	_ "github.com/mattn/go-sqlite3"
)

// driverName selects the cgo mattn/go-sqlite3 driver, needed for the
// sqlite-vec extension (see vecext.go) since sqlite-vec's Go bindings
// register against the C sqlite3 API, not modernc's pure-Go engine.
const driverName = "sqlite3"
