// Package session implements the Session lifecycle (spec §4.9): the
// owner of a Vocabulary, KnowledgeBase, Rules, Graphs, SemanticIndex, and
// Scope, and the entry point for learn/query/prove/solve.
package session

import (
	"fmt"

	"github.com/sys2dsl/engine/internal/contradiction"
)

// ParseError reports invalid DSL syntax; this package never constructs
// one itself (parsing is an external collaborator's job), but re-exports
// the kind so a Parser's error can be classified alongside the rest of
// the taxonomy (spec §7).
type ParseError struct {
	Line, Column int
	Snippet      string
	Message      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s (%s)", e.Line, e.Column, e.Message, e.Snippet)
}

// ValidationError reports an unknown operator, an undefined $ref, a
// wrong-case atom name, or holes in a prove goal (spec §7).
type ValidationError struct {
	Line, Column int
	Message      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// ContradictionRejected wraps the Contradiction that blocked a learn()
// call (spec §4.6, §7).
type ContradictionRejected struct {
	Contradiction *contradiction.Contradiction
}

func (e *ContradictionRejected) Error() string {
	return e.Contradiction.Error()
}
func (e *ContradictionRejected) Unwrap() error { return e.Contradiction }

// BudgetExceeded reports that a proof search hit its depth/step/timeout
// ceiling; surfaced as a non-valid result, never returned as an error
// from Prove (spec §7).
type BudgetExceeded struct {
	Reason string
}

func (e *BudgetExceeded) Error() string { return e.Reason }

// CapacityError reports that a vocabulary or KB fact-count limit was
// reached (spec §7).
type CapacityError struct {
	Resource     string // "vocabulary" | "kb_facts"
	Count, Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity error: %s at %d/%d", e.Resource, e.Count, e.Limit)
}

// InternalError wraps an invariant violation: a condition this package
// never expects to reach given correct upstream state (spec §7).
type InternalError struct {
	Invariant string
	Message   string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: invariant %q violated: %s", e.Invariant, e.Message)
}
