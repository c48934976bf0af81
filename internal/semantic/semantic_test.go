package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sys2dsl/engine/internal/kb"
)

func TestRebuildCollectsOperatorProperties(t *testing.T) {
	facts := []kb.Fact{
		kb.NewFact("__TransitiveRelation", []string{"IS_A"}, nil, kb.CanonicalMetadata{}, ""),
		kb.NewFact("__SymmetricRelation", []string{"MARRIED_TO"}, nil, kb.CanonicalMetadata{}, ""),
		kb.NewFact("inverseOf", []string{"PARENT_OF", "CHILD_OF"}, nil, kb.CanonicalMetadata{}, ""),
		kb.NewFact("synonym", []string{"canine", "dog"}, nil, kb.CanonicalMetadata{}, ""),
		kb.NewFact("mutuallyExclusive", []string{"hasState", "Open", "Closed"}, nil, kb.CanonicalMetadata{}, ""),
		kb.NewFact("disjointWith", []string{"cat", "dog"}, nil, kb.CanonicalMetadata{}, ""),
	}

	idx := NewCanonicalizer().Rebuild(facts)

	require.True(t, idx.IsTransitive("IS_A"))
	require.True(t, idx.IsSymmetric("MARRIED_TO"))

	inv, ok := idx.Inverse("PARENT_OF")
	require.True(t, ok)
	require.Equal(t, "CHILD_OF", inv)

	require.Equal(t, "dog", idx.Canonical("canine"))

	mex := idx.MutualExclusionsFor("hasState")
	require.Len(t, mex, 1)
	require.Equal(t, "Open", mex[0].ValueA)

	_, disjoint := idx.IsDisjoint("dog", "cat")
	require.True(t, disjoint)
}

func TestCanonicalIsIdempotent(t *testing.T) {
	idx := newIndex()
	idx.Synonym["a"] = "b"
	idx.Synonym["b"] = "c"

	once := idx.Canonical("a")
	twice := idx.Canonical(once)
	require.Equal(t, once, twice)
	require.Equal(t, "c", once)
}

func TestCanonicalHandlesCycles(t *testing.T) {
	idx := newIndex()
	idx.Synonym["a"] = "b"
	idx.Synonym["b"] = "a"

	require.NotPanics(t, func() {
		idx.Canonical("a")
	})
}
