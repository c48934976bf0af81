package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sys2dsl/engine/internal/ast"
	"github.com/sys2dsl/engine/internal/executor"
	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/kb"
	"github.com/sys2dsl/engine/internal/vocab"
)

func ident(name string) ast.Expr { return ast.Expr{Kind: ast.ExprIdentifier, Name: name} }
func hole(name string) ast.Expr  { return ast.Expr{Kind: ast.ExprHole, Name: name} }

func setup(t *testing.T) (*executor.Executor, *vocab.Vocabulary, *kb.KnowledgeBase, hdc.Strategy) {
	t.Helper()
	strategy, err := hdc.Get("dense-binary")
	require.NoError(t, err)
	v, err := vocab.New(strategy, 16384)
	require.NoError(t, err)
	exec := executor.New(v)
	base := kb.New(strategy)
	return exec, v, base, strategy
}

func learnFact(t *testing.T, exec *executor.Executor, base *kb.KnowledgeBase, scope *executor.Scope, op string, args ...string) {
	t.Helper()
	var exprArgs []ast.Expr
	for _, a := range args {
		exprArgs = append(exprArgs, ident(a))
	}
	stmt := ast.Statement{Operator: op, Args: exprArgs}
	vec, err := exec.BuildStatementVector(stmt, scope)
	require.NoError(t, err)
	meta, err := exec.ExtractCanonicalMetadata(stmt, scope)
	require.NoError(t, err)
	fact := kb.NewFact(op, meta.Args, vec, meta, "")
	require.NoError(t, base.AddFact(fact, nil))
}

func TestIdentifyHoles(t *testing.T) {
	stmt := ast.Statement{Operator: "PARENT_OF", Args: []ast.Expr{ident("Ion"), hole("who")}}
	holes := IdentifyHoles(stmt)
	require.Len(t, holes, 1)
	require.Equal(t, 2, holes[0].Position)
	require.Equal(t, "who", holes[0].Name)
}

func TestDecodeFindsVerifiedCandidates(t *testing.T) {
	exec, v, base, strategy := setup(t)
	scope := executor.NewScope(false)

	learnFact(t, exec, base, scope, "PARENT_OF", "Ion", "Maria")
	learnFact(t, exec, base, scope, "PARENT_OF", "Ion", "Mihai")

	qe := New(exec, v, base, strategy, nil)
	stmt := ast.Statement{Operator: "PARENT_OF", Args: []ast.Expr{ident("Ion"), hole("who")}}

	res, err := qe.Decode(context.Background(), stmt, scope, Options{TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, res.Bindings)

	found := map[string]bool{}
	for _, b := range res.Bindings {
		c, ok := b["who"]
		if ok {
			found[c.Answer] = found[c.Answer] || c.Verified
		}
	}
	for _, b := range res.Alternatives {
		c, ok := b["who"]
		if ok {
			found[c.Answer] = found[c.Answer] || c.Verified
		}
	}
	require.True(t, found["Maria"] || found["Mihai"], "expected at least one known child among candidates, got %+v", found)
}

func TestDecodeErrorsWithoutHoles(t *testing.T) {
	exec, v, base, strategy := setup(t)
	qe := New(exec, v, base, strategy, nil)
	stmt := ast.Statement{Operator: "PARENT_OF", Args: []ast.Expr{ident("Ion"), ident("Maria")}}
	_, err := qe.Decode(context.Background(), stmt, executor.NewScope(false), Options{})
	require.ErrorIs(t, err, ErrNoHoles)
}

func TestDecodeEnforcesMaxHoles(t *testing.T) {
	exec, v, base, strategy := setup(t)
	qe := New(exec, v, base, strategy, nil)
	stmt := ast.Statement{Operator: "REL", Args: []ast.Expr{hole("a"), hole("b"), hole("c"), hole("d")}}
	_, err := qe.Decode(context.Background(), stmt, executor.NewScope(false), Options{MaxHoles: 3})
	require.Error(t, err)
	var tooMany *ErrTooManyHoles
	require.ErrorAs(t, err, &tooMany)
}

func TestParseAssignments(t *testing.T) {
	args := []string{"x", "1", "y", "2"}
	got := ParseAssignments(args)
	require.Equal(t, []Assignment{{Variable: "x", Value: "1"}, {Variable: "y", Value: "2"}}, got)
}
