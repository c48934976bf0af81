// Package semantic implements the Canonicalizer and SemanticIndex (spec
// §3, §4.5): the derived, read-mostly tables of operator properties,
// aliases, and constraints that the executor, contradiction detector,
// and proof engine all consult.
package semantic

import (
	"fmt"

	"github.com/sys2dsl/engine/internal/kb"
)

// ConstraintSource records where a constraint was declared, for proof
// rendering (spec §4.5).
type ConstraintSource struct {
	Source string // the rule/fact id that declared this constraint
	Line   int
	Text   string
}

// MutualExclusion is a `mutuallyExclusive op valueA valueB` constraint.
type MutualExclusion struct {
	Op, ValueA, ValueB string
	Source             ConstraintSource
}

// DisjointPair is a `disjointWith typeA typeB` constraint.
type DisjointPair struct {
	TypeA, TypeB string
	Source       ConstraintSource
}

// Index is the derived SemanticIndex: a deterministic function of the
// currently loaded rules/graphs and constraint declarations. It is never
// edited ad-hoc; it is rebuilt wholesale by Canonicalizer.Rebuild.
type Index struct {
	TransitiveOps  map[string]bool
	SymmetricOps   map[string]bool
	ReflexiveOps   map[string]bool
	InheritableOps map[string]bool
	InverseOf      map[string]string
	Synonym        map[string]string // alias -> canonical

	MutuallyExclusive   []MutualExclusion
	ContradictsSameArgs map[string]ConstraintSource
	DisjointWith        []DisjointPair
}

func newIndex() *Index {
	return &Index{
		TransitiveOps:       make(map[string]bool),
		SymmetricOps:        make(map[string]bool),
		ReflexiveOps:        make(map[string]bool),
		InheritableOps:      make(map[string]bool),
		InverseOf:           make(map[string]string),
		Synonym:             make(map[string]string),
		ContradictsSameArgs: make(map[string]ConstraintSource),
	}
}

func (idx *Index) IsTransitive(op string) bool  { return idx.TransitiveOps[op] }
func (idx *Index) IsSymmetric(op string) bool   { return idx.SymmetricOps[op] }
func (idx *Index) IsReflexive(op string) bool   { return idx.ReflexiveOps[op] }
func (idx *Index) IsInheritable(op string) bool { return idx.InheritableOps[op] }

// Inverse returns the inverse operator for op, if declared.
func (idx *Index) Inverse(op string) (string, bool) {
	inv, ok := idx.InverseOf[op]
	return inv, ok
}

// Canonical resolves name through the synonym chain to a fixed point,
// guarding against cycles. Canonicalization is idempotent:
// Canonical(Canonical(x)) == Canonical(x).
func (idx *Index) Canonical(name string) string {
	seen := map[string]bool{name: true}
	cur := name
	for {
		next, ok := idx.Synonym[cur]
		if !ok || next == cur || seen[next] {
			return cur
		}
		seen[next] = true
		cur = next
	}
}

// MutualExclusionsFor returns the mutuallyExclusive constraints declared
// for op.
func (idx *Index) MutualExclusionsFor(op string) []MutualExclusion {
	var out []MutualExclusion
	for _, m := range idx.MutuallyExclusive {
		if m.Op == op {
			out = append(out, m)
		}
	}
	return out
}

// ContradictsSameArgsOp reports whether op is declared as a
// contradictsSameArgs operator (e.g. before/after) and its source.
func (idx *Index) ContradictsSameArgsOp(op string) (ConstraintSource, bool) {
	src, ok := idx.ContradictsSameArgs[op]
	return src, ok
}

// DisjointPairsInvolving returns every disjointWith pair naming typ on
// either side.
func (idx *Index) DisjointPairsInvolving(typ string) []DisjointPair {
	var out []DisjointPair
	for _, d := range idx.DisjointWith {
		if d.TypeA == typ || d.TypeB == typ {
			out = append(out, d)
		}
	}
	return out
}

// IsDisjoint reports whether typeA and typeB are declared disjoint, and
// returns the declaring constraint.
func (idx *Index) IsDisjoint(typeA, typeB string) (DisjointPair, bool) {
	for _, d := range idx.DisjointWith {
		if (d.TypeA == typeA && d.TypeB == typeB) || (d.TypeA == typeB && d.TypeB == typeA) {
			return d, true
		}
	}
	return DisjointPair{}, false
}

// Canonicalizer derives a SemanticIndex from the facts currently loaded
// in a KnowledgeBase. It is re-run once per load/learn and on any theory
// change (spec §4.5).
type Canonicalizer struct{}

// NewCanonicalizer returns a Canonicalizer. It holds no state of its own;
// all derived state lives in the Index it produces.
func NewCanonicalizer() *Canonicalizer { return &Canonicalizer{} }

// Rebuild scans facts for the declaration operators the spec assigns to
// the SemanticIndex and produces a fresh Index. Declaration operators not
// recognized here are left to the knowledge base as ordinary facts.
func (c *Canonicalizer) Rebuild(facts []kb.Fact) *Index {
	idx := newIndex()
	for _, f := range facts {
		switch f.Operator {
		case "__TransitiveRelation":
			markOp(idx.TransitiveOps, f.Args)
		case "__SymmetricRelation":
			markOp(idx.SymmetricOps, f.Args)
		case "__ReflexiveRelation":
			markOp(idx.ReflexiveOps, f.Args)
		case "__InheritableProperty":
			markOp(idx.InheritableOps, f.Args)
		case "inverseOf":
			if len(f.Args) >= 2 {
				idx.InverseOf[f.Args[0]] = f.Args[1]
				idx.InverseOf[f.Args[1]] = f.Args[0]
			}
		case "synonym", "canonical":
			if len(f.Args) >= 2 {
				idx.Synonym[f.Args[0]] = f.Args[1]
			}
		case "mutuallyExclusive":
			if len(f.Args) >= 3 {
				idx.MutuallyExclusive = append(idx.MutuallyExclusive, MutualExclusion{
					Op: f.Args[0], ValueA: f.Args[1], ValueB: f.Args[2],
					Source: sourceOf(f),
				})
			}
		case "contradictsSameArgs":
			if len(f.Args) >= 1 {
				idx.ContradictsSameArgs[f.Args[0]] = sourceOf(f)
			}
		case "disjointWith":
			if len(f.Args) >= 2 {
				idx.DisjointWith = append(idx.DisjointWith, DisjointPair{
					TypeA: f.Args[0], TypeB: f.Args[1],
					Source: sourceOf(f),
				})
			}
		}
	}
	return idx
}

func markOp(set map[string]bool, args []string) {
	if len(args) >= 1 {
		set[args[0]] = true
	}
}

func sourceOf(f kb.Fact) ConstraintSource {
	return ConstraintSource{
		Source: f.ID,
		Text:   fmt.Sprintf("%s(%v)", f.Operator, f.Args),
	}
}

// NormalizeNot produces canonical (innerOperator, innerArgs) for a Not
// form, applying synonym resolution so `Not $ref` and `Not (Compound …)`
// referring to the same statement yield identical canonical metadata.
func (idx *Index) NormalizeNot(innerOperator string, innerArgs []string) (string, []string) {
	canonOp := idx.Canonical(innerOperator)
	canonArgs := make([]string, len(innerArgs))
	for i, a := range innerArgs {
		canonArgs[i] = idx.Canonical(a)
	}
	return canonOp, canonArgs
}
