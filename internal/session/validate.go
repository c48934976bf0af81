package session

import (
	"fmt"

	"github.com/sys2dsl/engine/internal/ast"
	"github.com/sys2dsl/engine/internal/executor"
)

// builtinOperators are always valid regardless of what a session has
// learned so far (spec §4.5 declaration operators plus core control
// forms).
var builtinOperators = map[string]bool{
	"isA": true, "Not": true, "And": true, "Or": true,
	"inverseOf": true, "synonym": true, "canonical": true,
	"mutuallyExclusive": true, "contradictsSameArgs": true, "disjointWith": true,
	"__TransitiveRelation": true, "__SymmetricRelation": true,
	"__ReflexiveRelation": true, "__InheritableProperty": true,
}

// checkDSL implements check_dsl (spec §4.9 step 2): strict validation run
// before a learn/query/prove program is executed. allowHoles controls
// whether Hole expressions may appear (true for query(), false for
// prove() and learn()).
func (s *Session) checkDSL(prog ast.Program, scope *executor.Scope, allowHoles bool) []error {
	var errs []error
	for _, b := range prog.Blocks {
		switch b.Kind {
		case ast.BlockGraph:
			for _, stmt := range b.Body {
				errs = append(errs, s.checkStatement(stmt, scope, allowHoles)...)
			}
		case ast.BlockRule:
			if b.Condition != nil {
				errs = append(errs, s.checkStatement(*b.Condition, scope, false)...)
			}
			if b.Conclusion != nil {
				errs = append(errs, s.checkStatement(*b.Conclusion, scope, false)...)
			}
		}
	}
	for _, stmt := range prog.Statements {
		errs = append(errs, s.checkStatement(stmt, scope, allowHoles)...)
	}
	return errs
}

func (s *Session) checkStatement(stmt ast.Statement, scope *executor.Scope, allowHoles bool) []error {
	var errs []error
	if !s.isKnownOperator(stmt.Operator) {
		errs = append(errs, &ValidationError{
			Line: stmt.Pos.Line, Column: stmt.Pos.Column,
			Message: fmt.Sprintf("unknown operator %q: not builtin, core, previously declared, or a graph", stmt.Operator),
		})
	}
	for _, arg := range stmt.Args {
		errs = append(errs, s.checkExpr(arg, scope, allowHoles)...)
	}
	return errs
}

func (s *Session) checkExpr(expr ast.Expr, scope *executor.Scope, allowHoles bool) []error {
	var errs []error
	switch expr.Kind {
	case ast.ExprHole:
		if !allowHoles {
			errs = append(errs, &ValidationError{
				Line: expr.Pos.Line, Column: expr.Pos.Column,
				Message: fmt.Sprintf("hole ?%s is not permitted here; holes are only valid in query()", expr.Name),
			})
		}
	case ast.ExprReference:
		if _, ok := scope.Resolve(expr.Name); !ok {
			errs = append(errs, &ValidationError{
				Line: expr.Pos.Line, Column: expr.Pos.Column,
				Message: fmt.Sprintf("undefined $%s", expr.Name),
			})
		}
	case ast.ExprCompound:
		errs = append(errs, s.checkStatement(ast.Statement{Operator: expr.Operator, Args: expr.Args, Pos: expr.Pos}, scope, allowHoles)...)
	case ast.ExprStatement:
		if expr.Inner != nil {
			errs = append(errs, s.checkStatement(*expr.Inner, scope, allowHoles)...)
		}
	}
	return errs
}

// isKnownOperator reports whether op is usable as a statement operator:
// a builtin/declaration form, a previously learned relation, a rule
// conclusion operator, or a registered graph.
func (s *Session) isKnownOperator(op string) bool {
	if builtinOperators[op] {
		return true
	}
	if s.isGraph(op) {
		return true
	}
	return s.knownOperators[op]
}
