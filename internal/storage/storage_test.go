package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/kb"
)

func TestSQLiteAdapterSaveLoadRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session.db")
	adapter, err := NewSQLiteAdapter(dbPath)
	require.NoError(t, err)
	defer adapter.Close()

	ctx := context.Background()
	_, found, err := adapter.Load(ctx, "main")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, adapter.Save(ctx, "main", []byte("hello")))
	got, found, err := adapter.Load(ctx, "main")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("hello"), got)

	require.NoError(t, adapter.Save(ctx, "main", []byte("updated")))
	got, found, err = adapter.Load(ctx, "main")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("updated"), got)
}

func TestCodecEncodeDecodeRoundTrip(t *testing.T) {
	strategy, err := hdc.Get("dense-binary")
	require.NoError(t, err)

	vecA, err := strategy.CreateFromName("alice", 2048)
	require.NoError(t, err)
	vecB, err := strategy.CreateFromName("bob", 2048)
	require.NoError(t, err)

	snap := Snapshot{
		StrategyID: strategy.ID(),
		Geometry:   2048,
		VocabNames: []string{"alice", "bob", "isA"},
		Facts: []kb.Fact{
			kb.NewFact("isA", []string{"alice", "person"}, vecA, kb.CanonicalMetadata{Operator: "isA", Args: []string{"alice", "person"}}, ""),
			kb.NewFact("isA", []string{"bob", "person"}, vecB, kb.CanonicalMetadata{Operator: "isA", Args: []string{"bob", "person"}}, ""),
		},
	}

	data, err := Encode(strategy, snap)
	require.NoError(t, err)

	decoded, err := Decode(strategy, data)
	require.NoError(t, err)
	require.Equal(t, snap.StrategyID, decoded.StrategyID)
	require.Equal(t, snap.Geometry, decoded.Geometry)
	require.Equal(t, snap.VocabNames, decoded.VocabNames)
	require.Len(t, decoded.Facts, 2)
	require.Equal(t, snap.Facts[0].ID, decoded.Facts[0].ID)
	require.Equal(t, snap.Facts[0].Operator, decoded.Facts[0].Operator)
	require.Equal(t, snap.Facts[1].Args, decoded.Facts[1].Args)

	sim, err := strategy.Similarity(decoded.Facts[0].Vector, vecA)
	require.NoError(t, err)
	require.Greater(t, sim, 0.99)
}

func TestMemoryAdapterSaveLoadRoundTrip(t *testing.T) {
	adapter := NewMemoryAdapter()
	ctx := context.Background()

	_, found, err := adapter.Load(ctx, "main")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, adapter.Save(ctx, "main", []byte("hello")))
	got, found, err := adapter.Load(ctx, "main")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("hello"), got)
	require.NoError(t, adapter.Close())
}

func TestDecodeRejectsStrategyMismatch(t *testing.T) {
	dense, err := hdc.Get("dense-binary")
	require.NoError(t, err)
	exact, err := hdc.Get("exact")
	require.NoError(t, err)

	data, err := Encode(dense, Snapshot{StrategyID: dense.ID(), Geometry: 2048})
	require.NoError(t, err)

	_, err = Decode(exact, data)
	require.Error(t, err)
}
