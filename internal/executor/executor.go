// Package executor builds statement vectors and canonical metadata from
// parsed-AST statements (spec §4.3): it binds the operator vector with
// each positionally-bound argument vector, and separately derives the
// normalized (operator, args, inner) record the rest of the engine
// reasons over.
package executor

import (
	"fmt"

	"github.com/sys2dsl/engine/internal/ast"
	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/kb"
	"github.com/sys2dsl/engine/internal/semantic"
	"github.com/sys2dsl/engine/internal/vocab"
)

// Executor computes statement vectors and canonical metadata. It holds
// no per-statement state; Scope carries whatever state is specific to a
// single learn/query/prove call.
type Executor struct {
	vocab    *vocab.Vocabulary
	strategy hdc.Strategy
	semantic *semantic.Index
}

// New constructs an Executor bound to a Vocabulary and the Strategy it
// was built with.
func New(vocabulary *vocab.Vocabulary) *Executor {
	return &Executor{
		vocab:    vocabulary,
		strategy: vocabulary.Strategy(),
		semantic: emptySemanticIndex(),
	}
}

func emptySemanticIndex() *semantic.Index {
	return semantic.NewCanonicalizer().Rebuild(nil)
}

// SetSemanticIndex rewires the Executor to the session's current
// SemanticIndex, rebuilt whenever the theory changes (spec §4.5).
func (e *Executor) SetSemanticIndex(idx *semantic.Index) {
	e.semantic = idx
}

// ErrHoleInStatement is returned by BuildStatementVector when the
// statement contains a Hole; holes are only valid in query goals, which
// use BuildPartialVector instead.
var ErrHoleInStatement = fmt.Errorf("executor: statement contains a hole; use BuildPartialVector for queries")

// BuildStatementVector computes
// op_vec bind (Pos1 bind arg1_vec) bind (Pos2 bind arg2_vec) ... (spec §4.3).
func (e *Executor) BuildStatementVector(stmt ast.Statement, scope *Scope) (hdc.Vector, error) {
	return e.buildVector(stmt.Operator, stmt.Args, scope, nil)
}

// BuildPartialVector is BuildStatementVector for query goals: positions
// named in skipHolePositions (1-indexed) are left unbound so the query
// engine can unbind them from the KB (spec §4.8 step 1).
func (e *Executor) BuildPartialVector(stmt ast.Statement, scope *Scope, skipHolePositions map[int]bool) (hdc.Vector, error) {
	return e.buildVector(stmt.Operator, stmt.Args, scope, skipHolePositions)
}

func (e *Executor) buildVector(operator string, args []ast.Expr, scope *Scope, skip map[int]bool) (hdc.Vector, error) {
	canonicalOp := e.semantic.Canonical(operator)
	opVec, err := e.vocab.OperatorVector(canonicalOp)
	if err != nil {
		return nil, fmt.Errorf("executor: resolving operator %q: %w", operator, err)
	}

	result := opVec
	for i, arg := range args {
		position := i + 1
		if skip != nil && skip[position] {
			continue
		}
		if arg.Kind == ast.ExprHole {
			return nil, ErrHoleInStatement
		}
		argVec, err := e.ResolveArgVector(arg, scope)
		if err != nil {
			return nil, fmt.Errorf("executor: resolving arg %d: %w", position, err)
		}
		posVec, err := e.vocab.PositionVector(position)
		if err != nil {
			return nil, err
		}
		bound, err := e.strategy.Bind(posVec, argVec)
		if err != nil {
			return nil, fmt.Errorf("executor: binding position %d: %w", position, err)
		}
		result, err = e.strategy.Bind(result, bound)
		if err != nil {
			return nil, fmt.Errorf("executor: binding arg %d into statement vector: %w", position, err)
		}
	}
	return result, nil
}

// ResolveArgVector resolves a single argument expression to a vector:
// scope lookup for $refs, vocabulary lookup/auto-create for identifiers
// and literals, synonym/canonical replacement via the SemanticIndex, and
// recursive resolution for nested compounds/statements.
func (e *Executor) ResolveArgVector(expr ast.Expr, scope *Scope) (hdc.Vector, error) {
	switch expr.Kind {
	case ast.ExprReference:
		b, ok := scope.Resolve(expr.Name)
		if !ok {
			if scope.Strict() {
				return nil, fmt.Errorf("executor: undefined $%s in strict-dependency mode", expr.Name)
			}
			return e.vocab.GetOrCreate(expr.Name)
		}
		return b.Vector, nil
	case ast.ExprIdentifier:
		canonical := e.semantic.Canonical(expr.Name)
		return e.vocab.GetOrCreate(canonical)
	case ast.ExprLiteral:
		return e.vocab.GetOrCreate(fmt.Sprintf("%v", expr.Literal))
	case ast.ExprCompound:
		return e.buildVector(expr.Operator, expr.Args, scope, nil)
	case ast.ExprStatement:
		if expr.Inner == nil {
			return nil, fmt.Errorf("executor: nested statement expression missing Inner")
		}
		return e.BuildStatementVector(*expr.Inner, scope)
	default:
		return nil, fmt.Errorf("executor: unsupported expression kind %d", expr.Kind)
	}
}

// ExtractCanonicalMetadata resolves operator and arg names to canonical
// forms and, for Not(inner), computes innerOperator/innerArgs by looking
// through $refs to their bound statements when possible, preserving
// structure rather than collapsing to the $ref name alone (spec §4.3).
func (e *Executor) ExtractCanonicalMetadata(stmt ast.Statement, scope *Scope) (kb.CanonicalMetadata, error) {
	canonicalOp := e.semantic.Canonical(stmt.Operator)

	if canonicalOp == "Not" {
		return e.extractNotMetadata(stmt, scope)
	}

	args := make([]string, len(stmt.Args))
	level := 0
	for i, a := range stmt.Args {
		name, argLevel, err := e.argCanonicalName(a, scope)
		if err != nil {
			return kb.CanonicalMetadata{}, err
		}
		args[i] = name
		if a.Kind == ast.ExprReference && argLevel+1 > level {
			level = argLevel + 1
		}
	}
	if len(stmt.Args) == 0 {
		level = 0
	}
	return kb.CanonicalMetadata{Operator: canonicalOp, Args: args, Level: level}, nil
}

func (e *Executor) extractNotMetadata(stmt ast.Statement, scope *Scope) (kb.CanonicalMetadata, error) {
	if len(stmt.Args) != 1 {
		return kb.CanonicalMetadata{}, fmt.Errorf("executor: Not expects exactly one argument, got %d", len(stmt.Args))
	}
	inner := stmt.Args[0]

	var innerOp string
	var innerArgs []string
	level := 0

	switch inner.Kind {
	case ast.ExprReference:
		b, ok := scope.Resolve(inner.Name)
		if ok && b.Metadata.Operator != "" {
			innerOp, innerArgs = b.Metadata.Operator, b.Metadata.Args
			level = b.Metadata.Level + 1
		} else {
			innerOp, innerArgs = inner.Name, nil
		}
	case ast.ExprCompound:
		innerOp = inner.Operator
		innerArgs = make([]string, len(inner.Args))
		for i, a := range inner.Args {
			name, argLevel, err := e.argCanonicalName(a, scope)
			if err != nil {
				return kb.CanonicalMetadata{}, err
			}
			innerArgs[i] = name
			if argLevel+1 > level {
				level = argLevel + 1
			}
		}
	case ast.ExprStatement:
		if inner.Inner == nil {
			return kb.CanonicalMetadata{}, fmt.Errorf("executor: Not(Statement) missing Inner")
		}
		innerOp = inner.Inner.Operator
		innerArgs = make([]string, len(inner.Inner.Args))
		for i, a := range inner.Inner.Args {
			name, argLevel, err := e.argCanonicalName(a, scope)
			if err != nil {
				return kb.CanonicalMetadata{}, err
			}
			innerArgs[i] = name
			if argLevel+1 > level {
				level = argLevel + 1
			}
		}
	default:
		return kb.CanonicalMetadata{}, fmt.Errorf("executor: Not argument must be a $ref, compound, or nested statement")
	}

	innerOp, innerArgs = e.semantic.NormalizeNot(innerOp, innerArgs)

	return kb.CanonicalMetadata{
		Operator:      "Not",
		Args:          innerArgs,
		InnerOperator: innerOp,
		InnerArgs:     innerArgs,
		Level:         level,
	}, nil
}

// argCanonicalName returns the canonical name an argument expression
// contributes to a fact's Args list, plus the constructivist level of any
// referenced sub-statement (0 if the argument is a leaf).
func (e *Executor) argCanonicalName(expr ast.Expr, scope *Scope) (string, int, error) {
	switch expr.Kind {
	case ast.ExprReference:
		b, ok := scope.Resolve(expr.Name)
		if ok {
			return expr.Name, b.Metadata.Level, nil
		}
		return expr.Name, 0, nil
	case ast.ExprIdentifier:
		return e.semantic.Canonical(expr.Name), 0, nil
	case ast.ExprLiteral:
		return fmt.Sprintf("%v", expr.Literal), 0, nil
	case ast.ExprCompound:
		return expr.Operator, 0, nil
	default:
		return "", 0, fmt.Errorf("executor: unsupported argument expression kind %d", expr.Kind)
	}
}
