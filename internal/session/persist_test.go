package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sys2dsl/engine/internal/ast"
	"github.com/sys2dsl/engine/internal/config"
	"github.com/sys2dsl/engine/internal/proof"
	"github.com/sys2dsl/engine/internal/storage"
)

func factStmt(op string, args ...string) ast.Statement {
	exprs := make([]ast.Expr, len(args))
	for i, a := range args {
		exprs[i] = ast.Expr{Kind: ast.ExprIdentifier, Name: a}
	}
	return ast.Statement{Operator: op, Args: exprs}
}

func TestSessionSaveLoadRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "memory"
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Learn(ast.Program{Statements: []ast.Statement{
		factStmt("isA", "Fido", "Dog"),
		factStmt("isA", "Dog", "Mammal"),
	}})
	require.NoError(t, err)
	require.True(t, res.Success)

	require.NoError(t, s.Save(context.Background(), "snap"))

	fresh, err := New(cfg)
	require.NoError(t, err)
	defer fresh.Close()

	found, err := fresh.Load(context.Background(), "snap")
	require.NoError(t, err)
	require.True(t, found)

	proved := fresh.Prove(context.Background(), factStmt("isA", "Fido", "Mammal"), proof.Options{})
	require.True(t, proved.Valid)
	require.Equal(t, "transitive_chain", proved.Method)
}

func TestSessionLoadMissingKeyReturnsFalse(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "memory"
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	found, err := s.Load(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.False(t, found)
}

func TestTheoryPackWatcherReloadsSnapshotFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "memory"
	cfg.Storage.TheoryPackDir = dir
	cfg.Storage.WatchReload = true

	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Learn(ast.Program{Statements: []ast.Statement{factStmt("isA", "Opus", "Penguin")}})
	require.NoError(t, err)
	require.True(t, res.Success)

	// Build a snapshot under a throwaway session sharing the same strategy
	// and geometry (but no watcher of its own), declaring a fact the
	// original session never learned, so a successful watcher-triggered
	// reload is distinguishable from s's own pre-existing state.
	donorCfg := config.DefaultConfig()
	donorCfg.Storage.Driver = "memory"
	donor, err := New(donorCfg)
	require.NoError(t, err)
	defer donor.Close()
	_, err = donor.Learn(ast.Program{Statements: []ast.Statement{factStmt("isA", "Tweety", "Bird")}})
	require.NoError(t, err)

	data, err := storage.Encode(donor.strategy, storage.Snapshot{
		StrategyID: donor.strategy.ID(),
		Geometry:   donor.vocabulary.Geometry(),
		VocabNames: donor.vocabulary.Names(),
		Facts:      donor.base.Facts(),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pack.bin"), data, 0o644))

	require.Eventually(t, func() bool {
		proved := s.Prove(context.Background(), factStmt("isA", "Tweety", "Bird"), proof.Options{})
		return proved.Valid
	}, 2*time.Second, 20*time.Millisecond)
}
