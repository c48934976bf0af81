// Package contradiction implements the Contradiction Detector (spec
// §4.6): it validates a proposed fact against the facts and constraints
// already present in a knowledge base before the fact is committed.
package contradiction

import (
	"fmt"

	"github.com/sys2dsl/engine/internal/kb"
	"github.com/sys2dsl/engine/internal/semantic"
)

// Kind discriminates the constraint family that triggered a rejection.
type Kind string

const (
	KindMutuallyExclusive Kind = "mutually_exclusive"
	KindSameArgsConflict  Kind = "contradicts_same_args"
	KindTaxonomicDisjoint Kind = "taxonomic_disjoint"
)

// ProofStep is one line of the rejection's supporting derivation, for
// surfacing alongside the learn result (spec §4.6 step 3).
type ProofStep struct {
	Description string
}

// Contradiction describes a rejected fact: the constraint it violated,
// the conflicting fact (if any), and the steps that justify the reject.
type Contradiction struct {
	Kind             Kind
	Severity         string // always "reject"; reserved for future "warn" tiers
	NewFact          kb.Fact
	ConflictingFact  *kb.Fact
	ConstraintSource semantic.ConstraintSource
	ConstraintText   string
	Proof            []ProofStep
}

func (c *Contradiction) Error() string {
	if c.ConflictingFact != nil {
		return fmt.Sprintf("contradiction (%s): %s(%v) conflicts with %s(%v): %s",
			c.Kind, c.NewFact.Operator, c.NewFact.Args, c.ConflictingFact.Operator, c.ConflictingFact.Args, c.ConstraintText)
	}
	return fmt.Sprintf("contradiction (%s): %s(%v): %s", c.Kind, c.NewFact.Operator, c.NewFact.Args, c.ConstraintText)
}

// Detector implements kb.ContradictionChecker against a session's current
// SemanticIndex. The index is swapped in by the owning Session whenever
// the theory changes (spec §4.5).
type Detector struct {
	index *semantic.Index
}

// New constructs a Detector bound to a (possibly nil) SemanticIndex; a
// nil index behaves as if no constraints are declared.
func New(index *semantic.Index) *Detector {
	return &Detector{index: index}
}

// SetIndex rewires the Detector to a freshly rebuilt SemanticIndex.
func (d *Detector) SetIndex(index *semantic.Index) {
	d.index = index
}

// Check implements kb.ContradictionChecker. It returns a non-nil
// *Contradiction (wrapped as error) on the first violated constraint it
// finds; checks run in the spec's documented order.
func (d *Detector) Check(base *kb.KnowledgeBase, fact kb.Fact) error {
	if d.index == nil {
		return nil
	}
	// Not is never grounds to reject a compatible positive fact (spec §4.6 step 4).
	if fact.Metadata.IsNegation() {
		return nil
	}

	if c := d.checkMutuallyExclusive(base, fact); c != nil {
		return c
	}
	if c := d.checkSameArgsConflict(base, fact); c != nil {
		return c
	}
	if c := d.checkTaxonomicDisjoint(base, fact); c != nil {
		return c
	}
	return nil
}

func (d *Detector) checkMutuallyExclusive(base *kb.KnowledgeBase, fact kb.Fact) *Contradiction {
	if len(fact.Args) == 0 {
		return nil
	}
	for _, mex := range d.index.MutualExclusionsFor(fact.Operator) {
		var newValue, otherValue string
		switch {
		case len(fact.Args) > 1 && fact.Args[1] == mex.ValueA:
			newValue, otherValue = mex.ValueA, mex.ValueB
		case len(fact.Args) > 1 && fact.Args[1] == mex.ValueB:
			newValue, otherValue = mex.ValueB, mex.ValueA
		default:
			continue
		}
		for _, idx := range base.Index().ByOperatorArg0(fact.Operator, fact.Args[0]) {
			existing := base.Facts()[idx]
			if len(existing.Args) > 1 && existing.Args[1] == otherValue {
				return &Contradiction{
					Kind:            KindMutuallyExclusive,
					Severity:        "reject",
					NewFact:         fact,
					ConflictingFact: &existing,
					ConstraintSource: mex.Source,
					ConstraintText:  mex.Source.Text,
					Proof: []ProofStep{
						{Description: fmt.Sprintf("mutuallyExclusive %s %s %s", mex.Op, mex.ValueA, mex.ValueB)},
						{Description: fmt.Sprintf("existing: %s(%v)", existing.Operator, existing.Args)},
						{Description: fmt.Sprintf("new: %s(%v) asserts %s", fact.Operator, fact.Args, newValue)},
						{Description: "reject"},
					},
				}
			}
		}
	}
	return nil
}

func (d *Detector) checkSameArgsConflict(base *kb.KnowledgeBase, fact kb.Fact) *Contradiction {
	source, ok := d.index.ContradictsSameArgsOp(fact.Operator)
	if !ok || len(fact.Args) < 2 {
		return nil
	}
	swapped := []string{fact.Args[1], fact.Args[0]}
	swapped = append(swapped, fact.Args[2:]...)
	for _, idx := range base.Index().ByCanonicalKey(fact.Operator, swapped) {
		existing := base.Facts()[idx]
		return &Contradiction{
			Kind:            KindSameArgsConflict,
			Severity:        "reject",
			NewFact:         fact,
			ConflictingFact: &existing,
			ConstraintSource: source,
			ConstraintText:  source.Text,
			Proof: []ProofStep{
				{Description: fmt.Sprintf("contradictsSameArgs %s", fact.Operator)},
				{Description: fmt.Sprintf("existing: %s(%v)", existing.Operator, existing.Args)},
				{Description: fmt.Sprintf("new: %s(%v) is the swapped form", fact.Operator, fact.Args)},
				{Description: "reject"},
			},
		}
	}
	return nil
}

func (d *Detector) checkTaxonomicDisjoint(base *kb.KnowledgeBase, fact kb.Fact) *Contradiction {
	if fact.Operator != "isA" || len(fact.Args) < 2 {
		return nil
	}
	entity, newType := fact.Args[0], fact.Args[1]

	existingTypes := reachableTypes(base, entity, newType)
	for _, existingType := range existingTypes {
		pair, disjoint := d.index.IsDisjoint(existingType, newType)
		if !disjoint {
			continue
		}
		conflicting := firstIsAFact(base, entity, existingType)
		return &Contradiction{
			Kind:            KindTaxonomicDisjoint,
			Severity:        "reject",
			NewFact:         fact,
			ConflictingFact: conflicting,
			ConstraintSource: pair.Source,
			ConstraintText:  pair.Source.Text,
			Proof: []ProofStep{
				{Description: fmt.Sprintf("disjointWith %s %s", pair.TypeA, pair.TypeB)},
				{Description: fmt.Sprintf("isA(%s, %s) reachable via transitive isA", entity, existingType)},
				{Description: fmt.Sprintf("new: isA(%s, %s)", entity, newType)},
				{Description: "reject"},
			},
		}
	}
	return nil
}

// reachableTypes returns every type entity is directly or transitively
// isA-related to, excluding newType itself, via BFS over isA facts. isA
// is always treated as transitive for this check regardless of whether
// the theory declared __TransitiveRelation isA, since taxonomic
// disjointness is a built-in semantic of isA (spec §4.6 step 2).
func reachableTypes(base *kb.KnowledgeBase, entity, newType string) []string {
	visited := map[string]bool{entity: true}
	queue := []string{entity}
	var types []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, idx := range base.Index().ByOperatorArg0("isA", cur) {
			f := base.Facts()[idx]
			if len(f.Args) < 2 {
				continue
			}
			t := f.Args[1]
			if t == newType || visited[t] {
				continue
			}
			visited[t] = true
			types = append(types, t)
			queue = append(queue, t)
		}
	}
	return types
}

func firstIsAFact(base *kb.KnowledgeBase, entity, typ string) *kb.Fact {
	for _, idx := range base.Index().ByCanonicalKey("isA", []string{entity, typ}) {
		f := base.Facts()[idx]
		return &f
	}
	return nil
}
