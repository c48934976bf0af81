package executor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sys2dsl/engine/internal/ast"
	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/kb"
	"github.com/sys2dsl/engine/internal/semantic"
	"github.com/sys2dsl/engine/internal/vocab"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	strategy, err := hdc.Get("dense-binary")
	require.NoError(t, err)
	v, err := vocab.New(strategy, 2048)
	require.NoError(t, err)
	return New(v)
}

func identifier(name string) ast.Expr {
	return ast.Expr{Kind: ast.ExprIdentifier, Name: name}
}

func TestBuildStatementVectorDeterministic(t *testing.T) {
	e := newTestExecutor(t)
	stmt := ast.Statement{Operator: "IS_A", Args: []ast.Expr{identifier("Fido"), identifier("Dog")}}

	v1, err := e.BuildStatementVector(stmt, NewScope(false))
	require.NoError(t, err)
	v2, err := e.BuildStatementVector(stmt, NewScope(false))
	require.NoError(t, err)

	sim, err := e.strategy.Similarity(v1, v2)
	require.NoError(t, err)
	require.Equal(t, 1.0, sim)
}

func TestBuildStatementVectorArgOrderMatters(t *testing.T) {
	e := newTestExecutor(t)
	ab := ast.Statement{Operator: "LIKES", Args: []ast.Expr{identifier("Alice"), identifier("Bob")}}
	ba := ast.Statement{Operator: "LIKES", Args: []ast.Expr{identifier("Bob"), identifier("Alice")}}

	vab, err := e.BuildStatementVector(ab, NewScope(false))
	require.NoError(t, err)
	vba, err := e.BuildStatementVector(ba, NewScope(false))
	require.NoError(t, err)

	sim, err := e.strategy.Similarity(vab, vba)
	require.NoError(t, err)
	require.Less(t, sim, 1.0)
}

func TestBuildStatementVectorHoleErrors(t *testing.T) {
	e := newTestExecutor(t)
	stmt := ast.Statement{Operator: "IS_A", Args: []ast.Expr{{Kind: ast.ExprHole, Name: "who"}, identifier("Dog")}}

	_, err := e.BuildStatementVector(stmt, NewScope(false))
	require.ErrorIs(t, err, ErrHoleInStatement)
}

func TestBuildPartialVectorSkipsHolePosition(t *testing.T) {
	e := newTestExecutor(t)
	stmt := ast.Statement{Operator: "IS_A", Args: []ast.Expr{{Kind: ast.ExprHole, Name: "who"}, identifier("Dog")}}

	v, err := e.BuildPartialVector(stmt, NewScope(false), map[int]bool{1: true})
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestResolveArgVectorReference(t *testing.T) {
	e := newTestExecutor(t)
	scope := NewScope(false)

	inner := ast.Statement{Operator: "IS_A", Args: []ast.Expr{identifier("Fido"), identifier("Dog")}}
	vec, err := e.BuildStatementVector(inner, scope)
	require.NoError(t, err)
	scope.Bind("fact1", Binding{Vector: vec, Metadata: kb.CanonicalMetadata{Operator: "IS_A", Args: []string{"Fido", "Dog"}}})

	refExpr := ast.Expr{Kind: ast.ExprReference, Name: "fact1"}
	resolved, err := e.ResolveArgVector(refExpr, scope)
	require.NoError(t, err)

	sim, err := e.strategy.Similarity(vec, resolved)
	require.NoError(t, err)
	require.Equal(t, 1.0, sim)
}

func TestResolveArgVectorStrictModeRejectsUnknownRef(t *testing.T) {
	e := newTestExecutor(t)
	scope := NewScope(true)

	_, err := e.ResolveArgVector(ast.Expr{Kind: ast.ExprReference, Name: "missing"}, scope)
	require.Error(t, err)
}

func TestExtractCanonicalMetadataAppliesSynonyms(t *testing.T) {
	e := newTestExecutor(t)
	e.SetSemanticIndex(semantic.NewCanonicalizer().Rebuild([]kb.Fact{
		kb.NewFact("synonym", []string{"canine", "dog"}, nil, kb.CanonicalMetadata{}, ""),
	}))

	stmt := ast.Statement{Operator: "IS_A", Args: []ast.Expr{identifier("Fido"), identifier("canine")}}
	meta, err := e.ExtractCanonicalMetadata(stmt, NewScope(false))
	require.NoError(t, err)
	require.Equal(t, []string{"Fido", "dog"}, meta.Args)
	require.Equal(t, 0, meta.Level)
}

func TestExtractCanonicalMetadataNotPreservesReferencedStructure(t *testing.T) {
	e := newTestExecutor(t)
	scope := NewScope(false)

	inner := ast.Statement{Operator: "flies", Args: []ast.Expr{identifier("Tweety")}}
	vec, err := e.BuildStatementVector(inner, scope)
	require.NoError(t, err)
	innerMeta, err := e.ExtractCanonicalMetadata(inner, scope)
	require.NoError(t, err)
	scope.Bind("f1", Binding{Vector: vec, Metadata: innerMeta})

	notStmt := ast.Statement{Operator: "Not", Args: []ast.Expr{{Kind: ast.ExprReference, Name: "f1"}}}
	meta, err := e.ExtractCanonicalMetadata(notStmt, scope)
	require.NoError(t, err)

	require.Equal(t, "Not", meta.Operator)
	require.True(t, meta.IsNegation())
	require.Equal(t, "flies", meta.InnerOperator)
	require.Equal(t, []string{"Tweety"}, meta.InnerArgs)
	require.Equal(t, 1, meta.Level)
}

func TestExtractCanonicalMetadataNotOverCompound(t *testing.T) {
	e := newTestExecutor(t)
	notStmt := ast.Statement{
		Operator: "Not",
		Args: []ast.Expr{
			{Kind: ast.ExprCompound, Operator: "flies", Args: []ast.Expr{identifier("Dog")}},
		},
	}

	meta, err := e.ExtractCanonicalMetadata(notStmt, NewScope(false))
	require.NoError(t, err)
	require.Equal(t, "flies", meta.InnerOperator)
	require.Equal(t, []string{"Dog"}, meta.InnerArgs)
}
