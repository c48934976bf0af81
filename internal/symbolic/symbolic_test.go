package symbolic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddFactAndQueryRoundTrip(t *testing.T) {
	s := New()
	require.NoError(t, s.AddFact("isA", []string{"Fido", "Dog"}))

	rows, err := s.Query(context.Background(), `isA("Fido", X)`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Dog", rows[0][0].Value)
}

func TestExistsReportsDerivedFacts(t *testing.T) {
	s := New()
	require.NoError(t, s.EnsureDeclared("parent", 2))
	require.NoError(t, s.EnsureDeclared("ancestor", 2))
	require.NoError(t, s.AddRule(`ancestor(X, Y) :- parent(X, Y).`))
	require.NoError(t, s.AddRule(`ancestor(X, Z) :- parent(X, Y), ancestor(Y, Z).`))

	require.NoError(t, s.AddFact("parent", []string{"Alice", "Bob"}))
	require.NoError(t, s.AddFact("parent", []string{"Bob", "Carol"}))

	ok, err := s.Exists(context.Background(), "ancestor", []string{"Alice", "Carol"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Exists(context.Background(), "ancestor", []string{"Carol", "Alice"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueryUnknownPredicateErrors(t *testing.T) {
	s := New()
	_, err := s.Query(context.Background(), `nope(X)`)
	require.Error(t, err)
}

func TestRollbackDiscardsFactsAndRules(t *testing.T) {
	s := New()
	require.NoError(t, s.AddFact("isA", []string{"Fido", "Dog"}))
	snap := s.Snapshot()

	require.NoError(t, s.EnsureDeclared("parent", 2))
	require.NoError(t, s.AddRule(`ancestor(X, Y) :- parent(X, Y).`))
	require.NoError(t, s.AddFact("parent", []string{"Alice", "Bob"}))
	require.NoError(t, s.AddFact("isA", []string{"Rex", "Dog"}))

	require.NoError(t, s.Rollback(snap))

	rows, err := s.Query(context.Background(), `isA("Fido", X)`)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = s.Query(context.Background(), `isA("Rex", X)`)
	require.NoError(t, err)

	ok, err := s.Exists(context.Background(), "isA", []string{"Rex", "Dog"})
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.Query(context.Background(), `ancestor(X, Y)`)
	require.Error(t, err)
}
