package vocab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sys2dsl/engine/internal/hdc"
)

func newTestVocab(t *testing.T) *Vocabulary {
	t.Helper()
	s, err := hdc.Get("dense-binary")
	require.NoError(t, err)
	v, err := New(s, 2048)
	require.NoError(t, err)
	return v
}

func TestGetOrCreateIdempotent(t *testing.T) {
	v := newTestVocab(t)
	a, err := v.GetOrCreate("Fido")
	require.NoError(t, err)
	b, err := v.GetOrCreate("Fido")
	require.NoError(t, err)
	require.Equal(t, a.Hash(), b.Hash())
	require.Equal(t, 1, v.Size())
}

func TestPositionVectorsDistinct(t *testing.T) {
	v := newTestVocab(t)
	p1, err := v.PositionVector(1)
	require.NoError(t, err)
	p2, err := v.PositionVector(2)
	require.NoError(t, err)
	require.NotEqual(t, p1.Hash(), p2.Hash())

	_, err = v.PositionVector(21)
	require.Error(t, err)
}

func TestReverseLookupFindsExactMatch(t *testing.T) {
	v := newTestVocab(t)
	_, err := v.GetOrCreate("Fido")
	require.NoError(t, err)
	_, err = v.GetOrCreate("Rex")
	require.NoError(t, err)

	probe, err := v.GetOrCreate("Fido")
	require.NoError(t, err)

	matches, err := v.ReverseLookup(probe, 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	require.Equal(t, "Fido", matches[0].Name)
	require.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	v := newTestVocab(t)
	_, err := v.GetOrCreate("Fido")
	require.NoError(t, err)
	snapshot := v.Snapshot()

	_, err = v.GetOrCreate("Rex")
	require.NoError(t, err)
	require.Equal(t, 2, v.Size())

	v.Rollback(snapshot)
	require.Equal(t, 1, v.Size())
	_, ok := v.Lookup("Rex")
	require.False(t, ok)
	_, ok = v.Lookup("Fido")
	require.True(t, ok)
}
