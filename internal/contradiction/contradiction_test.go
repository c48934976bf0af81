package contradiction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/kb"
	"github.com/sys2dsl/engine/internal/semantic"
)

func vec(t *testing.T, strategy hdc.Strategy, name string) hdc.Vector {
	t.Helper()
	v, err := strategy.CreateFromName(name, 2048)
	require.NoError(t, err)
	return v
}

func TestCheckRejectsMutuallyExclusive(t *testing.T) {
	strategy, err := hdc.Get("dense-binary")
	require.NoError(t, err)
	base := kb.New(strategy)

	idx := semantic.NewCanonicalizer().Rebuild([]kb.Fact{
		kb.NewFact("mutuallyExclusive", []string{"hasState", "Open", "Closed"}, nil, kb.CanonicalMetadata{}, ""),
	})
	d := New(idx)

	existing := kb.NewFact("hasState", []string{"Door1", "Open"}, vec(t, strategy, "hasState|Door1|Open"), kb.CanonicalMetadata{Operator: "hasState", Args: []string{"Door1", "Open"}}, "")
	require.NoError(t, base.AddFact(existing, d))

	newFact := kb.NewFact("hasState", []string{"Door1", "Closed"}, vec(t, strategy, "hasState|Door1|Closed"), kb.CanonicalMetadata{Operator: "hasState", Args: []string{"Door1", "Closed"}}, "")
	err = base.AddFact(newFact, d)
	require.Error(t, err)
	var rejected *kb.ErrContradictionRejected
	require.ErrorAs(t, err, &rejected)
}

func TestCheckRejectsSameArgsConflict(t *testing.T) {
	strategy, err := hdc.Get("dense-binary")
	require.NoError(t, err)
	base := kb.New(strategy)

	idx := semantic.NewCanonicalizer().Rebuild([]kb.Fact{
		kb.NewFact("contradictsSameArgs", []string{"before"}, nil, kb.CanonicalMetadata{}, ""),
	})
	d := New(idx)

	existing := kb.NewFact("before", []string{"A", "B"}, vec(t, strategy, "before|A|B"), kb.CanonicalMetadata{Operator: "before", Args: []string{"A", "B"}}, "")
	require.NoError(t, base.AddFact(existing, d))

	swapped := kb.NewFact("before", []string{"B", "A"}, vec(t, strategy, "before|B|A"), kb.CanonicalMetadata{Operator: "before", Args: []string{"B", "A"}}, "")
	err = base.AddFact(swapped, d)
	require.Error(t, err)
}

func TestCheckRejectsTaxonomicDisjoint(t *testing.T) {
	strategy, err := hdc.Get("dense-binary")
	require.NoError(t, err)
	base := kb.New(strategy)

	idx := semantic.NewCanonicalizer().Rebuild([]kb.Fact{
		kb.NewFact("disjointWith", []string{"Cat", "Dog"}, nil, kb.CanonicalMetadata{}, ""),
	})
	d := New(idx)

	isACat := kb.NewFact("isA", []string{"Fido", "Cat"}, vec(t, strategy, "isA|Fido|Cat"), kb.CanonicalMetadata{Operator: "isA", Args: []string{"Fido", "Cat"}}, "")
	require.NoError(t, base.AddFact(isACat, d))

	isADog := kb.NewFact("isA", []string{"Fido", "Dog"}, vec(t, strategy, "isA|Fido|Dog"), kb.CanonicalMetadata{Operator: "isA", Args: []string{"Fido", "Dog"}}, "")
	err = base.AddFact(isADog, d)
	require.Error(t, err)
}

func TestCheckAllowsNotWithoutRejecting(t *testing.T) {
	strategy, err := hdc.Get("dense-binary")
	require.NoError(t, err)
	base := kb.New(strategy)

	idx := semantic.NewCanonicalizer().Rebuild([]kb.Fact{
		kb.NewFact("mutuallyExclusive", []string{"hasState", "Open", "Closed"}, nil, kb.CanonicalMetadata{}, ""),
	})
	d := New(idx)

	existing := kb.NewFact("hasState", []string{"Door1", "Open"}, vec(t, strategy, "hasState|Door1|Open"), kb.CanonicalMetadata{Operator: "hasState", Args: []string{"Door1", "Open"}}, "")
	require.NoError(t, base.AddFact(existing, d))

	negated := kb.NewFact("Not", []string{"Door1", "Closed"}, vec(t, strategy, "not|hasState|Door1|Closed"),
		kb.CanonicalMetadata{Operator: "Not", InnerOperator: "hasState", InnerArgs: []string{"Door1", "Closed"}, Args: []string{"Door1", "Closed"}}, "")
	require.NoError(t, base.AddFact(negated, d))
}
