//go:build sqlite_vec && sqlite_cgo

package storage

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register the sqlite-vec extension as auto-loadable against the
	// cgo mattn/go-sqlite3 driver (grounded on the teacher's
	// store/init_vec.go, same auto-load call).
	vec.Auto()
}
