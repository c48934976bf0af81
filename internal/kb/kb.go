// Package kb implements the bundled knowledge base and fact index (spec
// §3, §4.4): a superposition vector over every stored fact, plus the
// indexed fact records that give the proof and query engines O(1)
// average lookups by operator and argument position.
package kb

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/logging"
)

// CanonicalMetadata is the normalized, alias-resolved record attached to
// every fact and proof goal after Not-form normalization (spec §3).
type CanonicalMetadata struct {
	Operator      string
	Args          []string
	InnerOperator string // set for Not(...) facts
	InnerArgs     []string
	Level         int // constructivist level: max premise level + 1, leaves level 0
}

// IsNegation reports whether this metadata represents a Not(...) fact.
func (m CanonicalMetadata) IsNegation() bool { return m.InnerOperator != "" }

// Fact is an immutable record of a learned statement. Facts never change
// in place; corrections happen by appending new facts and by rollback on
// transaction abort.
type Fact struct {
	ID         string
	Operator   string
	Args       []string
	Vector     hdc.Vector
	Metadata   CanonicalMetadata
	SourceRule string // empty for directly-learned facts
}

// CanonicalKey returns the deterministic index key op + '|' + args joined
// by '|' (the plain string, not a hash of it).
func CanonicalKey(op string, args []string) string {
	return op + "|" + strings.Join(args, "|")
}

// NewFact constructs a Fact with a fresh id.
func NewFact(operator string, args []string, vector hdc.Vector, metadata CanonicalMetadata, sourceRule string) Fact {
	return Fact{
		ID:         uuid.NewString(),
		Operator:   operator,
		Args:       args,
		Vector:     vector,
		Metadata:   metadata,
		SourceRule: sourceRule,
	}
}

// FactIndex gives O(1) average lookup by operator, by (operator, arg0),
// by (operator, arg1), and by canonical key. Values are indices into the
// owning KnowledgeBase's facts slice; the index holds no ownership.
type FactIndex struct {
	byOp           map[string][]int
	byOpArg0       map[string][]int
	byOpArg1       map[string][]int
	byCanonicalKey map[string][]int
}

func newFactIndex() *FactIndex {
	return &FactIndex{
		byOp:           make(map[string][]int),
		byOpArg0:       make(map[string][]int),
		byOpArg1:       make(map[string][]int),
		byCanonicalKey: make(map[string][]int),
	}
}

func opArg0Key(op string, args []string) string {
	if len(args) == 0 {
		return op + "|"
	}
	return op + "|" + args[0]
}

func opArg1Key(op string, args []string) string {
	if len(args) < 2 {
		return op + "||"
	}
	return op + "||" + args[1]
}

func (idx *FactIndex) insert(factIdx int, f Fact) {
	idx.byOp[f.Operator] = append(idx.byOp[f.Operator], factIdx)
	idx.byOpArg0[opArg0Key(f.Operator, f.Args)] = append(idx.byOpArg0[opArg0Key(f.Operator, f.Args)], factIdx)
	idx.byOpArg1[opArg1Key(f.Operator, f.Args)] = append(idx.byOpArg1[opArg1Key(f.Operator, f.Args)], factIdx)
	key := CanonicalKey(f.Operator, f.Args)
	idx.byCanonicalKey[key] = append(idx.byCanonicalKey[key], factIdx)
}

// ByOperator returns the indices of facts with the given operator.
func (idx *FactIndex) ByOperator(op string) []int { return idx.byOp[op] }

// ByOperatorArg0 returns the indices of facts with the given operator
// whose first argument equals arg0.
func (idx *FactIndex) ByOperatorArg0(op, arg0 string) []int {
	return idx.byOpArg0[op+"|"+arg0]
}

// ByOperatorArg1 returns the indices of facts with the given operator
// whose second argument equals arg1.
func (idx *FactIndex) ByOperatorArg1(op, arg1 string) []int {
	return idx.byOpArg1[op+"||"+arg1]
}

// ByCanonicalKey returns the indices of facts matching the exact
// (operator, args) tuple.
func (idx *FactIndex) ByCanonicalKey(op string, args []string) []int {
	return idx.byCanonicalKey[CanonicalKey(op, args)]
}

// ContradictionChecker validates a proposed fact against the current
// knowledge base before insertion. Implemented by internal/contradiction;
// declared here as an interface so this package has no dependency on it
// (spec §4.4 step 2, §4.6).
type ContradictionChecker interface {
	Check(base *KnowledgeBase, fact Fact) error
}

// KnowledgeBase is the bundled KB vector plus the indexed fact list. A
// Session owns exactly one KnowledgeBase (spec §3 "Ownership & lifecycles").
type KnowledgeBase struct {
	strategy hdc.Strategy
	kbVector hdc.Vector // nil until the first fact is added
	facts    []Fact
	index    *FactIndex
}

// New constructs an empty KnowledgeBase bound to strategy.
func New(strategy hdc.Strategy) *KnowledgeBase {
	return &KnowledgeBase{
		strategy: strategy,
		index:    newFactIndex(),
	}
}

// Vector returns the current KB bundle, or nil if no facts are stored.
func (k *KnowledgeBase) Vector() hdc.Vector { return k.kbVector }

// Strategy returns the HDC strategy this knowledge base was constructed
// with, so callers (the proof and query engines) can read its
// thresholds without hardcoding them (spec §4.1).
func (k *KnowledgeBase) Strategy() hdc.Strategy { return k.strategy }

// Facts returns the immutable fact list in insertion order.
func (k *KnowledgeBase) Facts() []Fact { return k.facts }

// Index returns the fact index.
func (k *KnowledgeBase) Index() *FactIndex { return k.index }

// FactCount returns the number of stored facts.
func (k *KnowledgeBase) FactCount() int { return len(k.facts) }

// ErrContradictionRejected wraps a rejection from a ContradictionChecker,
// identifying the spec's ContradictionRejected error kind.
type ErrContradictionRejected struct {
	Err error
}

func (e *ErrContradictionRejected) Error() string { return e.Err.Error() }
func (e *ErrContradictionRejected) Unwrap() error { return e.Err }

// AddFact implements spec §4.4 add_fact: check the contradiction checker
// (if any), append to facts, update all four indices, and re-bundle the
// KB vector. On rejection, no state is mutated.
func (k *KnowledgeBase) AddFact(fact Fact, checker ContradictionChecker) error {
	timer := logging.StartTimer(logging.CategoryKB, "add_fact")
	defer timer.Stop()

	if checker != nil {
		if err := checker.Check(k, fact); err != nil {
			return &ErrContradictionRejected{Err: err}
		}
	}

	k.facts = append(k.facts, fact)
	k.index.insert(len(k.facts)-1, fact)

	if k.kbVector == nil {
		k.kbVector = fact.Vector
		return nil
	}
	bundled, err := k.strategy.Bundle([]hdc.Vector{k.kbVector, fact.Vector})
	if err != nil {
		return fmt.Errorf("kb: bundling new fact into kb vector: %w", err)
	}
	k.kbVector = bundled
	return nil
}

// Snapshot is the minimal state needed to roll a transaction back: the
// fact count and the kb vector at the time of the snapshot (spec §9:
// capture counts/pointers, not deep copies, for append-only collections).
type Snapshot struct {
	FactCount int
	KBVector  hdc.Vector
}

// Snapshot captures the current fact count and kb vector.
func (k *KnowledgeBase) Snapshot() Snapshot {
	return Snapshot{FactCount: len(k.facts), KBVector: k.kbVector}
}

// Rollback truncates facts back to the snapshot's count, restores the
// prior kb vector, and rebuilds the fact index from the truncated slice.
func (k *KnowledgeBase) Rollback(snap Snapshot) {
	if snap.FactCount < len(k.facts) {
		k.facts = k.facts[:snap.FactCount]
	}
	k.kbVector = snap.KBVector
	k.rebuildIndex()
}

func (k *KnowledgeBase) rebuildIndex() {
	idx := newFactIndex()
	for i, f := range k.facts {
		idx.insert(i, f)
	}
	k.index = idx
}

// Similarity returns the strategy similarity between the KB bundle and v,
// used by the proof engine's direct-match strategy (spec §4.7 step 6).
func (k *KnowledgeBase) Similarity(v hdc.Vector) (float64, error) {
	if k.kbVector == nil {
		return 0, nil
	}
	return k.strategy.Similarity(k.kbVector, v)
}
