package session

import (
	"fmt"

	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/kb"
	"github.com/sys2dsl/engine/internal/query"
)

// SolveProblem names which compound-solution operator to emit and
// supplies the already-computed candidate solutions; the CSP/planning
// search itself is an external collaborator's job (spec §4.9 "solve()
// ... its core algorithm is out of scope of this specification beyond:
// it emits facts planStep/planAction/cspSolution").
type SolveProblem struct {
	Kind      string
	Solutions [][]query.Assignment
}

// SolveResult is solve()'s result record (spec §6).
type SolveResult struct {
	Solutions     [][]query.Assignment
	StoredFactIDs []string
}

// Solve implements solve() (spec §4.9, §6): for each candidate solution,
// stores a fact whose operator is problem.Kind, whose args are the
// flattened (variable, value) pairs, and whose vector is the bundle of
// each pair's role-filler binding.
func (s *Session) Solve(problem SolveProblem) (*SolveResult, error) {
	if s.closed {
		return nil, &InternalError{Invariant: "session_open", Message: "session is closed"}
	}
	if !query.CompoundSolutionOps[problem.Kind] {
		return nil, &ValidationError{Message: fmt.Sprintf("solve: unknown compound solution kind %q", problem.Kind)}
	}

	res := &SolveResult{Solutions: problem.Solutions}
	snap := s.snapshot()
	for _, assignments := range problem.Solutions {
		vec, args, err := s.buildAssignmentVector(assignments)
		if err != nil {
			s.rollback(snap)
			return nil, err
		}
		meta := kb.CanonicalMetadata{Operator: problem.Kind, Args: args}
		f := kb.NewFact(problem.Kind, args, vec, meta, "")
		if err := s.base.AddFact(f, s.detector); err != nil {
			s.rollback(snap)
			return nil, fmt.Errorf("session: solve: storing %s fact: %w", problem.Kind, err)
		}
		s.markOperatorKnown(problem.Kind)
		s.refreshSemantics()
		res.StoredFactIDs = append(res.StoredFactIDs, f.ID)
	}
	return res, nil
}

// buildAssignmentVector flattens assignments into a fact's Args list and
// composes its vector as the bundle of each assignment's variable/value
// binding (spec §4.9: "vectors are compositions of their assignments'
// vectors").
func (s *Session) buildAssignmentVector(assignments []query.Assignment) (hdc.Vector, []string, error) {
	if len(assignments) == 0 {
		return nil, nil, fmt.Errorf("session: solve: solution has no assignments")
	}
	var bound []hdc.Vector
	var args []string
	for _, a := range assignments {
		varVec, err := s.vocabulary.GetOrCreate(a.Variable)
		if err != nil {
			return nil, nil, fmt.Errorf("session: solve: resolving variable %q: %w", a.Variable, err)
		}
		valVec, err := s.vocabulary.GetOrCreate(a.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("session: solve: resolving value %q: %w", a.Value, err)
		}
		pair, err := s.strategy.Bind(varVec, valVec)
		if err != nil {
			return nil, nil, fmt.Errorf("session: solve: binding %s=%s: %w", a.Variable, a.Value, err)
		}
		bound = append(bound, pair)
		args = append(args, a.Variable, a.Value)
	}
	vec, err := s.strategy.Bundle(bound)
	if err != nil {
		return nil, nil, fmt.Errorf("session: solve: bundling assignment vectors: %w", err)
	}
	return vec, args, nil
}
