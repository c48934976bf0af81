package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sys2dsl/engine/internal/logging"
)

// SQLiteAdapter is the reference Adapter implementation (spec SPEC_FULL.md
// DOMAIN STACK): a single BLOB column per snapshot key, plus a vector
// table written by StoreVectorBytes and read back by VectorBytesByName,
// and detection of the sqlite-vec extension (grounded on the teacher's internal/store.LocalStore, which
// follows the same open-then-detect-extension shape).
type SQLiteAdapter struct {
	db        *sql.DB
	vectorExt bool
}

// NewSQLiteAdapter opens (creating if absent) a SQLite database at path
// and ensures its snapshot/vector tables exist.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	timer := logging.StartTimer(logging.CategoryStorage, "NewSQLiteAdapter")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: creating directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("storage: opening %s: %w", path, err)
	}
	a := &SQLiteAdapter{db: db}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	a.detectVecExtension()
	if a.vectorExt {
		logging.Named(logging.CategoryStorage).Infow("sqlite-vec extension detected")
	}
	return a, nil
}

func (a *SQLiteAdapter) initialize() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			key        TEXT PRIMARY KEY,
			data       BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS vectors (
			name   TEXT PRIMARY KEY,
			vector BLOB NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("storage: creating schema: %w", err)
	}
	return nil
}

// detectVecExtension probes for vec0 virtual table support the same way
// the teacher's LocalStore does: attempt to create one and see if it
// errors.
func (a *SQLiteAdapter) detectVecExtension() {
	if _, err := a.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		a.vectorExt = true
		a.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	a.vectorExt = false
}

// Save implements Adapter.
func (a *SQLiteAdapter) Save(ctx context.Context, key string, data []byte) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, key, data)
	if err != nil {
		return fmt.Errorf("storage: saving snapshot %q: %w", key, err)
	}
	return nil
}

// Load implements Adapter.
func (a *SQLiteAdapter) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := a.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: loading snapshot %q: %w", key, err)
	}
	return data, true, nil
}

// Close implements Adapter.
func (a *SQLiteAdapter) Close() error {
	return a.db.Close()
}

// StoreVectorBytes persists name's strategy-serialized vector bytes for
// later reads through VectorBytesByName, independent of the snapshot blob.
func (a *SQLiteAdapter) StoreVectorBytes(ctx context.Context, name string, vec []byte) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO vectors (name, vector) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET vector = excluded.vector
	`, name, vec)
	if err != nil {
		return fmt.Errorf("storage: storing vector bytes for %q: %w", name, err)
	}
	return nil
}

// VectorBytesByName scans every stored (name, vector) pair, for a caller
// to brute-force rank when the sqlite-vec extension is unavailable.
func (a *SQLiteAdapter) VectorBytesByName(ctx context.Context) (map[string][]byte, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT name, vector FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("storage: scanning vectors: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]byte)
	for rows.Next() {
		var name string
		var vec []byte
		if err := rows.Scan(&name, &vec); err != nil {
			return nil, fmt.Errorf("storage: scanning vector row: %w", err)
		}
		out[name] = vec
	}
	return out, rows.Err()
}

// HasVectorExtension reports whether sqlite-vec's vec0 virtual table is
// available, for a caller to choose between an ANN query and the
// brute-force VectorBytesByName fallback.
func (a *SQLiteAdapter) HasVectorExtension() bool {
	return a.vectorExt
}
