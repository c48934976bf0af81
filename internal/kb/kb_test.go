package kb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sys2dsl/engine/internal/hdc"
)

func newTestFact(t *testing.T, strategy hdc.Strategy, geometry int, op string, args ...string) Fact {
	t.Helper()
	opVec, err := strategy.CreateFromName(op, geometry)
	require.NoError(t, err)
	vec := opVec
	for i, arg := range args {
		argVec, err := strategy.CreateFromName(arg, geometry)
		require.NoError(t, err)
		pos, err := strategy.CreateFromName(positionName(i+1), geometry)
		require.NoError(t, err)
		bound, err := strategy.Bind(pos, argVec)
		require.NoError(t, err)
		vec, err = strategy.Bind(vec, bound)
		require.NoError(t, err)
	}
	return NewFact(op, args, vec, CanonicalMetadata{Operator: op, Args: args}, "")
}

func positionName(i int) string {
	return "__Pos" + string(rune('0'+i))
}

func TestAddFactUpdatesIndicesAndVector(t *testing.T) {
	strategy, err := hdc.Get("dense-binary")
	require.NoError(t, err)
	base := New(strategy)

	f := newTestFact(t, strategy, 2048, "IS_A", "Fido", "Dog")
	require.NoError(t, base.AddFact(f, nil))

	require.Equal(t, 1, base.FactCount())
	require.NotNil(t, base.Vector())
	require.Len(t, base.Index().ByOperator("IS_A"), 1)
	require.Len(t, base.Index().ByOperatorArg0("IS_A", "Fido"), 1)
	require.Len(t, base.Index().ByCanonicalKey("IS_A", []string{"Fido", "Dog"}), 1)
}

type rejectAll struct{}

func (rejectAll) Check(*KnowledgeBase, Fact) error { return errors.New("rejected") }

func TestAddFactRejectedLeavesStateUnchanged(t *testing.T) {
	strategy, err := hdc.Get("dense-binary")
	require.NoError(t, err)
	base := New(strategy)

	f := newTestFact(t, strategy, 2048, "IS_A", "Fido", "Dog")
	err = base.AddFact(f, rejectAll{})
	require.Error(t, err)
	var rejected *ErrContradictionRejected
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, 0, base.FactCount())
	require.Nil(t, base.Vector())
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	strategy, err := hdc.Get("dense-binary")
	require.NoError(t, err)
	base := New(strategy)

	f1 := newTestFact(t, strategy, 2048, "IS_A", "Fido", "Dog")
	require.NoError(t, base.AddFact(f1, nil))
	snap := base.Snapshot()

	f2 := newTestFact(t, strategy, 2048, "IS_A", "Rex", "Dog")
	require.NoError(t, base.AddFact(f2, nil))
	require.Equal(t, 2, base.FactCount())

	base.Rollback(snap)
	require.Equal(t, 1, base.FactCount())
	require.Len(t, base.Index().ByOperatorArg0("IS_A", "Rex"), 0)
	require.Len(t, base.Index().ByOperatorArg0("IS_A", "Fido"), 1)
}
