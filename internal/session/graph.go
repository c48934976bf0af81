package session

import (
	"fmt"

	"github.com/sys2dsl/engine/internal/ast"
	"github.com/sys2dsl/engine/internal/executor"
)

// Graph is a named, parameterized composition of statements (spec §3
// "Graph (macro)", §4.3 "Graph (macro) invocation"). Invoking one with
// caller-supplied arguments expands its body into real facts, bound
// positionally by Params into a fresh scope frame; reserved names
// `subject`, `object`, and `freevarN` are conventional parameter names,
// not special-cased here beyond ordinary positional binding.
type Graph struct {
	Name   string
	Params []string
	Body   []ast.Statement
}

// returnDestName is the reserved Dest name an inner statement uses to
// designate the graph's result, overriding the "topologically last
// statement" default (spec §4.3).
const returnDestName = "return"

// registerGraph stores a parsed Graph block as an invocable macro.
func (s *Session) registerGraph(b ast.Block) error {
	if b.Name == "" {
		return &ValidationError{Line: b.Pos.Line, Column: b.Pos.Column, Message: "graph block requires a name"}
	}
	s.graphs[b.Name] = &Graph{Name: b.Name, Params: append([]string{}, b.Params...), Body: b.Body}
	return nil
}

// isGraph reports whether name is a registered graph macro.
func (s *Session) isGraph(name string) bool {
	_, ok := s.graphs[name]
	return ok
}

// invokeGraph expands g's body against callArgs (resolved in the
// caller's scope before the new frame is pushed, since graph invocation
// is not recursive-capture: a param's argument expression belongs to the
// call site) and commits every resulting body statement as a fact via
// the ordinary learn pipeline. It returns the binding designated by an
// inner `@return` destination, or the last body statement's binding if
// none is designated.
func (s *Session) invokeGraph(g *Graph, callArgs []ast.Expr, scope *executor.Scope) (executor.Binding, []factResult, error) {
	if len(callArgs) != len(g.Params) {
		return executor.Binding{}, nil, &ValidationError{
			Message: fmt.Sprintf("graph %s expects %d argument(s), got %d", g.Name, len(g.Params), len(callArgs)),
		}
	}

	// Resolve each call argument in the caller's current frame before
	// pushing, then bind it under the param name in the new frame.
	resolved := make([]executor.Binding, len(callArgs))
	for i, arg := range callArgs {
		vec, err := s.exec.ResolveArgVector(arg, scope)
		if err != nil {
			return executor.Binding{}, nil, fmt.Errorf("session: resolving graph %s argument %d: %w", g.Name, i+1, err)
		}
		resolved[i] = executor.Binding{Vector: vec}
	}

	scope.Push()
	defer scope.Pop()
	for i, paramName := range g.Params {
		scope.Bind(paramName, resolved[i])
	}

	var facts []factResult
	var last executor.Binding
	var returned *executor.Binding
	for _, stmt := range g.Body {
		b, fr, err := s.processStatement(stmt, scope)
		if err != nil {
			return executor.Binding{}, nil, err
		}
		facts = append(facts, fr...)
		last = b
		if stmt.Dest != nil && stmt.Dest.Name == returnDestName {
			returned = &b
		}
	}
	if returned != nil {
		return *returned, facts, nil
	}
	return last, facts, nil
}
