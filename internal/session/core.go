package session

import "github.com/sys2dsl/engine/internal/ast"

// ident/lit build Expr leaves for the hardcoded Core pack below.
func ident(name string) ast.Expr   { return ast.Expr{Kind: ast.ExprIdentifier, Name: name} }
func fact(op string, args ...string) ast.Statement {
	exprs := make([]ast.Expr, len(args))
	for i, a := range args {
		exprs[i] = ident(a)
	}
	return ast.Statement{Operator: op, Args: exprs}
}

// corePack is the bundled "Core" theory (spec §4.9 "optionally preloads a
// Core theory pack"), expressed directly as ast data since the Sys2DSL
// lexer/parser is an external collaborator out of scope of this module.
// It declares the handful of relation properties most theories assume
// are already in effect: isA is transitive and used for taxonomic
// disjointness; parentOf/childOf are a canonical inverse pair.
func corePack() ast.Program {
	return ast.Program{
		Statements: []ast.Statement{
			fact("__TransitiveRelation", "isA"),
			fact("__InheritableProperty", "isA"),
			fact("inverseOf", "parentOf", "childOf"),
			fact("inverseOf", "before", "after"),
			fact("contradictsSameArgs", "before"),
			fact("synonym", "kind_of", "isA"),
		},
	}
}
