// Package proof implements the symbolic-priority Proof Engine (spec
// §4.7): an ordered bank of resolution strategies tried in sequence for
// each goal, with cycle detection, memoization, and depth/step/timeout
// budgets.
package proof

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sys2dsl/engine/internal/ast"
	"github.com/sys2dsl/engine/internal/kb"
	"github.com/sys2dsl/engine/internal/logging"
	"github.com/sys2dsl/engine/internal/semantic"
	"github.com/sys2dsl/engine/internal/symbolic"
)

// ConfidenceDecay is applied once per rule application when combining
// confidences (spec §4.7). It is a fixed value used for every strategy;
// the proof engine does not read Strategy.Thresholds().ConfidenceDecay.
const ConfidenceDecay = 0.9

// Rule is a condition -> conclusion pair, lowered from a parsed Rule
// block (spec §4.3 Block, kind Rule).
type Rule struct {
	ID              string
	Condition       ast.Statement
	Conclusion      ast.Statement
	ConclusionLevel int
	MaxPremiseLevel int
}

// Goal is the normalized form the engine reasons over: either a plain
// atom (Operator, Args) or a negation of one (Negated, InnerOperator,
// InnerArgs).
type Goal struct {
	Operator      string
	Args          []string
	Negated       bool
	InnerOperator string
	InnerArgs     []string
}

// String renders the goal's cycle-detection key: order-sensitive, since
// strategy binding can be commutative and would falsely equate
// permuted-argument goals if vector hashes were used instead (spec §4.7).
func (g Goal) String() string {
	if g.Negated {
		return "Not(" + g.InnerOperator + "(" + strings.Join(g.InnerArgs, ",") + "))"
	}
	return g.Operator + "(" + strings.Join(g.Args, ",") + ")"
}

// GoalFromMetadata builds a Goal from canonical metadata, as produced by
// internal/executor.ExtractCanonicalMetadata for a parsed goal statement.
func GoalFromMetadata(m kb.CanonicalMetadata) Goal {
	if m.IsNegation() {
		return Goal{Negated: true, InnerOperator: m.InnerOperator, InnerArgs: m.InnerArgs}
	}
	return Goal{Operator: m.Operator, Args: m.Args}
}

// Options configures a single prove() call (spec §4.7, §5).
type Options struct {
	MaxDepth              int
	MaxSteps              int
	TimeoutMs             int
	ClosedWorldAssumption bool
	IgnoreNegation        bool
	Trace                 bool
}

// Step is one line of a successful proof's derivation.
type Step struct {
	Strategy string
	Goal     string
	Detail   string
}

// TraceEntry records one strategy attempt for a goal, successful or not,
// surfaced to the caller when Options.Trace is set (spec §7).
type TraceEntry struct {
	Strategy string
	Goal     string
	Outcome  string // "succeeded" | "declined" | "failed"
	Reason   string
}

// Result is the outcome of a prove() call.
type Result struct {
	Valid       bool
	Method      string
	Confidence  float64
	Goal        string
	Steps       []Step
	Reason      string
	SearchTrace []TraceEntry
}

// budgetExceeded signals max_steps/timeout_ms was hit; the caller
// surfaces this as a non-valid result, not an error (spec §7).
type budgetExceeded struct{ reason string }

func (b budgetExceeded) Error() string { return b.reason }

type memoKey struct {
	goal           string
	depth          int
	ignoreNegation bool
	cwa            bool
}

// Engine runs prove() calls against a fixed KnowledgeBase/SemanticIndex
// snapshot. A new Engine (or at least a fresh memo/visited set) is used
// per call since visited/memo are call-scoped (spec §4.7 "State per
// proof").
type Engine struct {
	base     *kb.KnowledgeBase
	semIndex *semantic.Index
	datalog  *symbolic.Store
	rules    []Rule
}

// New constructs an Engine bound to the session's current KnowledgeBase,
// SemanticIndex, and Datalog store. datalog may be nil; strategies that
// need it (transitive-chain cross-check) degrade to KB-only reasoning.
func New(base *kb.KnowledgeBase, semIndex *semantic.Index, datalog *symbolic.Store, rules []Rule) *Engine {
	return &Engine{base: base, semIndex: semIndex, datalog: datalog, rules: rules}
}

type proofState struct {
	opts       Options
	visited    map[string]bool
	memo       map[memoKey]*Result
	steps      int
	startedAt  time.Time
	trace      []TraceEntry
	ctxDone    <-chan struct{}
}

// Prove runs the ordered strategy bank against goal.
func (e *Engine) Prove(ctx context.Context, goal Goal, opts Options) *Result {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 200
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 5000
	}
	if opts.TimeoutMs <= 0 {
		opts.TimeoutMs = 5000
	}
	timer := logging.StartTimer(logging.CategoryProof, "prove")
	defer timer.Stop()

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
	defer cancel()

	st := &proofState{
		opts:      opts,
		visited:   make(map[string]bool),
		memo:      make(map[memoKey]*Result),
		startedAt: time.Now(),
		ctxDone:   ctx.Done(),
	}
	res := e.prove(goal, 0, st)
	if opts.Trace {
		res.SearchTrace = st.trace
	}
	return res
}

func (e *Engine) prove(goal Goal, depth int, st *proofState) *Result {
	key := memoKey{goal: goal.String(), depth: depth, ignoreNegation: st.opts.IgnoreNegation, cwa: st.opts.ClosedWorldAssumption}
	if cached, ok := st.memo[key]; ok {
		return cached
	}

	select {
	case <-st.ctxDone:
		return &Result{Valid: false, Goal: goal.String(), Reason: "timeout_ms exceeded"}
	default:
	}
	if depth > st.opts.MaxDepth {
		return &Result{Valid: false, Goal: goal.String(), Reason: "max_depth exceeded"}
	}
	st.steps++
	if st.steps > st.opts.MaxSteps {
		return &Result{Valid: false, Goal: goal.String(), Reason: "max_steps exceeded"}
	}
	gkey := goal.String()
	if st.visited[gkey] {
		return &Result{Valid: false, Goal: gkey, Reason: "cycle detected"}
	}
	st.visited[gkey] = true
	defer delete(st.visited, gkey)

	res := e.resolve(goal, depth, st)
	st.memo[key] = res
	return res
}

// resolve tries the ordered strategy bank, returning on first success.
func (e *Engine) resolve(goal Goal, depth int, st *proofState) *Result {
	strategies := []func(Goal, int, *proofState) *Result{
		e.strategyExistsGoal,
		e.strategyNotExplicit,
		e.strategyNotRuleDerived,
		e.strategyNotContrapositive,
		e.strategyNotInnerRefutationCWA,
		e.strategyDirectMatch,
		e.strategyDirectMetadata,
		e.strategySymmetricInverse,
		e.strategySynonym,
		e.strategyTransitiveChain,
		e.strategyPropertyInheritance,
		e.strategyDefaultWithException,
		e.strategyModusPonensHolds,
		e.strategyRuleIndexLookup,
		e.strategyDatalogFallback,
		e.strategyWeakMatch,
		e.strategyDisjointnessProof,
	}
	for _, strat := range strategies {
		if r := strat(goal, depth, st); r != nil {
			return r
		}
	}
	return &Result{Valid: false, Goal: goal.String(), Reason: "no strategy derived the goal", SearchTrace: st.trace}
}

func (e *Engine) decline(st *proofState, strategy, goal, reason string) {
	if st.opts.Trace {
		st.trace = append(st.trace, TraceEntry{Strategy: strategy, Goal: goal, Outcome: "declined", Reason: reason})
	}
}

func (e *Engine) succeed(st *proofState, strategy, goal string) {
	if st.opts.Trace {
		st.trace = append(st.trace, TraceEntry{Strategy: strategy, Goal: goal, Outcome: "succeeded"})
	}
}

// --- Strategy 1: Exists goal -------------------------------------------------

func (e *Engine) strategyExistsGoal(goal Goal, depth int, st *proofState) *Result {
	if goal.Operator != "__Exists" && goal.InnerOperator != "__Exists" {
		return nil
	}
	// Not(Exists x. P(x)): refute via type-disjointness over required vs
	// forbidden types of the existential variable.
	if goal.Negated {
		required, forbidden := e.existsTypeConstraints(goal.InnerArgs)
		for _, req := range required {
			for _, forb := range forbidden {
				if e.typeReachable(req, forb) {
					e.succeed(st, "quantifier_type_disjointness", goal.String())
					return &Result{
						Valid: true, Method: "quantifier_type_disjointness", Confidence: 1.0, Goal: goal.String(),
						Steps: []Step{{Strategy: "quantifier_type_disjointness", Goal: goal.String(),
							Detail: fmt.Sprintf("required type %s reaches forbidden type %s", req, forb)}},
					}
				}
			}
		}
		e.decline(st, "quantifier_type_disjointness", goal.String(), "no required type reaches a forbidden type")
		return nil
	}
	// Positive Exists: enumerate candidates from required isA types,
	// proving the predicate for each; first success wins.
	required, _ := e.existsTypeConstraints(goal.Args)
	candidates := e.entitiesOfAllTypes(required)
	for _, candidate := range candidates {
		subArgs := substituteFirst(goal.Args, candidate)
		sub := Goal{Operator: existsPredicateOp(goal.Args), Args: subArgs}
		if r := e.prove(sub, depth+1, st); r.Valid {
			e.succeed(st, "exists_goal", goal.String())
			r.Method = "exists_goal"
			return r
		}
	}
	e.decline(st, "exists_goal", goal.String(), "no candidate entity satisfied the predicate")
	return nil
}

// --- Strategies 2-5: Not-goal handling ---------------------------------------

func (e *Engine) strategyNotExplicit(goal Goal, depth int, st *proofState) *Result {
	if !goal.Negated {
		return nil
	}
	for _, idx := range e.base.Index().ByOperator("Not") {
		f := e.base.Facts()[idx]
		if f.Metadata.InnerOperator == goal.InnerOperator && stringsEqual(f.Metadata.InnerArgs, goal.InnerArgs) {
			e.succeed(st, "explicit_negation", goal.String())
			return &Result{
				Valid: true, Method: "explicit_negation", Confidence: 1.0, Goal: goal.String(),
				Steps: []Step{{Strategy: "explicit_negation", Goal: goal.String(), Detail: "matched stored Not fact " + f.ID}},
			}
		}
	}
	e.decline(st, "explicit_negation", goal.String(), "no matching stored Not fact")
	return nil
}

func (e *Engine) strategyNotRuleDerived(goal Goal, depth int, st *proofState) *Result {
	if !goal.Negated {
		return nil
	}
	for _, rule := range e.rules {
		concOp, concArgs, negatedConc := conclusionLeafOperator(rule.Conclusion)
		if !negatedConc || concOp != goal.InnerOperator {
			continue
		}
		bindings, ok := unify(concArgs, goal.InnerArgs)
		if !ok {
			continue
		}
		condGoal := substituteCondition(rule.Condition, bindings)
		if r := e.proveCondition(condGoal, depth+1, st, false); r.Valid {
			e.succeed(st, "not_rule_derived", goal.String())
			r.Method = "not_rule_derived"
			r.Steps = append([]Step{{Strategy: "not_rule_derived", Goal: goal.String(), Detail: "via rule " + rule.ID}}, r.Steps...)
			return r
		}
	}
	e.decline(st, "not_rule_derived", goal.String(), "no rule concludes this negation")
	return nil
}

func (e *Engine) strategyNotContrapositive(goal Goal, depth int, st *proofState) *Result {
	if !goal.Negated {
		return nil
	}
	for _, rule := range e.rules {
		concOp, concArgs, negatedConc := conclusionLeafOperator(rule.Conclusion)
		if negatedConc || concOp == "" {
			continue
		}
		leaves := conditionLeaves(rule.Condition)
		if len(leaves) < 2 {
			continue
		}
		notC := Goal{Negated: true, InnerOperator: concOp, InnerArgs: concArgs}
		cRes := e.prove(notC, depth+1, st)
		if !cRes.Valid {
			continue
		}
		var remaining *ast.Statement
		allOthersProved := true
		var otherSteps []Step
		for i := range leaves {
			leaf := leaves[i]
			if i == len(leaves)-1 && remaining == nil {
				// try each leaf as "the remaining one" in turn
			}
			_ = leaf
		}
		// Evaluate: find exactly one leaf that fails to prove while all
		// others succeed; conclude Not(that leaf).
		var failing *ast.Statement
		failCount := 0
		for i := range leaves {
			leaf := leaves[i]
			g := statementToGoal(leaf)
			r := e.prove(g, depth+1, st)
			if !r.Valid {
				failCount++
				failing = &leaves[i]
				continue
			}
			otherSteps = append(otherSteps, r.Steps...)
		}
		if failCount != 1 || failing == nil {
			allOthersProved = false
		} else if fg := statementToGoal(*failing); fg.Operator != goal.InnerOperator || !stringsEqual(fg.Args, goal.InnerArgs) {
			// Not(failing leaf) only proves the goal when that leaf is
			// the goal's own inner statement.
			allOthersProved = false
		}
		if allOthersProved {
			failGoal := statementToGoal(*failing)
			e.succeed(st, "not_contrapositive", goal.String())
			return &Result{
				Valid: true, Method: "not_contrapositive", Confidence: ConfidenceDecay, Goal: goal.String(),
				Steps: append(append(otherSteps, cRes.Steps...), Step{
					Strategy: "not_contrapositive", Goal: goal.String(),
					Detail: fmt.Sprintf("rule %s: Not(%s) forces Not(%s)", rule.ID, concOp, failGoal.String()),
				}),
			}
		}
	}
	e.decline(st, "not_contrapositive", goal.String(), "no contrapositive rule applies")
	return nil
}

func (e *Engine) strategyNotInnerRefutationCWA(goal Goal, depth int, st *proofState) *Result {
	if !goal.Negated {
		return nil
	}
	inner := Goal{Operator: goal.InnerOperator, Args: goal.InnerArgs}
	innerRes := e.prove(inner, depth+1, st)
	if innerRes.Valid {
		e.decline(st, "closed_world_assumption", goal.String(), "inner goal is provable; cannot refute")
		return nil
	}
	if !st.opts.ClosedWorldAssumption {
		e.decline(st, "closed_world_assumption", goal.String(), "CWA disabled")
		return nil
	}
	e.succeed(st, "closed_world_assumption", goal.String())
	return &Result{
		Valid: true, Method: "closed_world_assumption", Confidence: 0.7, Goal: goal.String(),
		Steps: []Step{{Strategy: "closed_world_assumption", Goal: goal.String(), Detail: "inner goal unprovable under CWA"}},
	}
}

// --- Strategy 6-7: direct match / direct metadata ---------------------------

// strategyDirectMatch is tried first per spec §4.7 step 6: vector
// similarity against the KB bundle above VeryStrongMatch AND the fact
// must actually be in the index. strategyDirectMetadata (step 7) is the
// fallback that accepts an index hit regardless of similarity.
func (e *Engine) strategyDirectMatch(goal Goal, depth int, st *proofState) *Result {
	if goal.Negated || e.base.Vector() == nil {
		return nil
	}
	idxHits := e.base.Index().ByCanonicalKey(goal.Operator, goal.Args)
	if len(idxHits) == 0 {
		e.decline(st, "direct_match", goal.String(), "no fact with this exact (operator,args) key")
		return nil
	}
	f := e.base.Facts()[idxHits[0]]
	if f.Vector == nil {
		return nil
	}
	sim, err := e.base.Similarity(f.Vector)
	if err != nil {
		e.decline(st, "direct_match", goal.String(), "similarity computation failed: "+err.Error())
		return nil
	}
	thresholds := e.base.Strategy().Thresholds()
	if sim < thresholds.VeryStrongMatch {
		e.decline(st, "direct_match", goal.String(), "KB similarity below very-strong-match threshold")
		return nil
	}
	e.succeed(st, "direct_match", goal.String())
	return &Result{
		Valid: true, Method: "direct_match", Confidence: sim, Goal: goal.String(),
		Steps: []Step{{Strategy: "direct_match", Goal: goal.String(), Detail: "matched fact " + f.ID}},
	}
}

func (e *Engine) strategyDirectMetadata(goal Goal, depth int, st *proofState) *Result {
	if goal.Negated {
		return nil
	}
	idxHits := e.base.Index().ByCanonicalKey(goal.Operator, goal.Args)
	if len(idxHits) == 0 {
		e.decline(st, "direct_metadata", goal.String(), "no fact with this exact (operator,args) key")
		return nil
	}
	f := e.base.Facts()[idxHits[0]]
	e.succeed(st, "direct_metadata", goal.String())
	return &Result{
		Valid: true, Method: "direct_metadata", Confidence: 1.0, Goal: goal.String(),
		Steps: []Step{{Strategy: "direct_metadata", Goal: goal.String(), Detail: "matched fact " + f.ID}},
	}
}

// --- Strategy 8: symmetric / inverse -----------------------------------------

func (e *Engine) strategySymmetricInverse(goal Goal, depth int, st *proofState) *Result {
	if goal.Negated || e.semIndex == nil {
		return nil
	}
	if e.semIndex.IsSymmetric(goal.Operator) && len(goal.Args) == 2 {
		swapped := Goal{Operator: goal.Operator, Args: []string{goal.Args[1], goal.Args[0]}}
		if hits := e.base.Index().ByCanonicalKey(swapped.Operator, swapped.Args); len(hits) > 0 {
			e.succeed(st, "symmetric", goal.String())
			return &Result{Valid: true, Method: "symmetric", Confidence: 1.0, Goal: goal.String(),
				Steps: []Step{{Strategy: "symmetric", Goal: goal.String(), Detail: "symmetric operator, swapped args matched"}}}
		}
	}
	if inv, ok := e.semIndex.Inverse(goal.Operator); ok && len(goal.Args) == 2 {
		invGoal := Goal{Operator: inv, Args: []string{goal.Args[1], goal.Args[0]}}
		if hits := e.base.Index().ByCanonicalKey(invGoal.Operator, invGoal.Args); len(hits) > 0 {
			e.succeed(st, "inverse", goal.String())
			return &Result{Valid: true, Method: "inverse", Confidence: 1.0, Goal: goal.String(),
				Steps: []Step{{Strategy: "inverse", Goal: goal.String(), Detail: "matched via inverse operator " + inv}}}
		}
	}
	e.decline(st, "symmetric_inverse", goal.String(), "not symmetric/inverse or no matching swapped fact")
	return nil
}

// --- Strategy 9: synonym ------------------------------------------------------

func (e *Engine) strategySynonym(goal Goal, depth int, st *proofState) *Result {
	if goal.Negated || e.semIndex == nil || len(goal.Args) < 2 {
		return nil
	}
	canonArg1 := e.semIndex.Canonical(goal.Args[1])
	if canonArg1 == goal.Args[1] {
		e.decline(st, "synonym", goal.String(), "arg1 already canonical")
		return nil
	}
	expanded := append(append([]string{}, goal.Args[:1]...), canonArg1)
	expanded = append(expanded, goal.Args[2:]...)
	if hits := e.base.Index().ByCanonicalKey(goal.Operator, expanded); len(hits) > 0 {
		e.succeed(st, "synonym", goal.String())
		return &Result{Valid: true, Method: "synonym", Confidence: 1.0, Goal: goal.String(),
			Steps: []Step{{Strategy: "synonym", Goal: goal.String(), Detail: "matched via canonical arg " + canonArg1}}}
	}
	return nil
}

// --- Strategy 10: transitive chain -------------------------------------------

func (e *Engine) strategyTransitiveChain(goal Goal, depth int, st *proofState) *Result {
	if goal.Negated || e.semIndex == nil || !e.semIndex.IsTransitive(goal.Operator) || len(goal.Args) != 2 {
		return nil
	}
	from, to := goal.Args[0], goal.Args[1]
	visited := map[string]bool{from: true}
	queue := []struct {
		node string
		path []Step
	}{{node: from}}
	for len(queue) > 0 && depth < st.opts.MaxDepth {
		cur := queue[0]
		queue = queue[1:]
		for _, idx := range e.base.Index().ByOperatorArg0(goal.Operator, cur.node) {
			f := e.base.Facts()[idx]
			if len(f.Args) < 2 {
				continue
			}
			next := f.Args[1]
			step := Step{Strategy: "transitive_chain", Goal: goal.String(), Detail: fmt.Sprintf("%s(%s,%s)", goal.Operator, cur.node, next)}
			if next == to {
				e.succeed(st, "transitive_chain", goal.String())
				return &Result{Valid: true, Method: "transitive_chain", Confidence: ConfidenceDecay, Goal: goal.String(),
					Steps: append(append([]Step{}, cur.path...), step)}
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, struct {
					node string
					path []Step
				}{node: next, path: append(append([]Step{}, cur.path...), step)})
			}
		}
	}
	e.decline(st, "transitive_chain", goal.String(), "no chain reaches target within max_depth")
	return nil
}

// --- Strategy 11: property inheritance ---------------------------------------

func (e *Engine) strategyPropertyInheritance(goal Goal, depth int, st *proofState) *Result {
	if goal.Negated || e.semIndex == nil || !e.semIndex.IsInheritable(goal.Operator) || len(goal.Args) < 1 {
		return nil
	}
	entity := goal.Args[0]
	for _, typ := range e.ancestorTypes(entity) {
		args := append([]string{typ}, goal.Args[1:]...)
		if hits := e.base.Index().ByCanonicalKey(goal.Operator, args); len(hits) > 0 {
			f := e.base.Facts()[hits[0]]
			e.succeed(st, "property_inheritance", goal.String())
			return &Result{Valid: true, Method: "property_inheritance", Confidence: ConfidenceDecay, Goal: goal.String(),
				Steps: []Step{
					{Strategy: "property_inheritance", Goal: goal.String(), Detail: fmt.Sprintf("isA(%s,%s)", entity, typ)},
					{Strategy: "property_inheritance", Goal: goal.String(), Detail: "inherited from " + f.ID},
				}}
		}
	}
	e.decline(st, "property_inheritance", goal.String(), "no ancestor type declares this property")
	return nil
}

// --- Strategy 12: default reasoning with exception blocking -----------------

func (e *Engine) strategyDefaultWithException(goal Goal, depth int, st *proofState) *Result {
	if goal.Negated || len(goal.Args) < 1 {
		return nil
	}
	entity := goal.Args[0]
	ancestors := e.ancestorTypesOrdered(entity) // most specific first
	for i, typ := range ancestors {
		args := append([]string{typ}, goal.Args[1:]...)
		defaultHits := e.base.Index().ByCanonicalKey(goal.Operator, args)
		if len(defaultHits) == 0 {
			continue
		}
		for _, moreSpecific := range ancestors[:i] {
			exceptionArgs := append([]string{moreSpecific}, goal.Args[1:]...)
			if _, exceptHits := true, e.base.Index().ByOperatorArg0("Not", moreSpecific); exceptHits != nil {
				for _, idx := range exceptHits {
					f := e.base.Facts()[idx]
					if f.Metadata.InnerOperator == goal.Operator && stringsEqual(f.Metadata.InnerArgs, exceptionArgs) {
						return &Result{Valid: false, Goal: goal.String(),
							Reason: fmt.Sprintf("default from %s blocked by more-specific exception at %s", typ, moreSpecific)}
					}
				}
			}
		}
		e.succeed(st, "default_with_exception", goal.String())
		return &Result{Valid: true, Method: "default_with_exception", Confidence: ConfidenceDecay * 0.8, Goal: goal.String(),
			Steps: []Step{{Strategy: "default_with_exception", Goal: goal.String(), Detail: "default from ancestor " + typ}}}
	}
	e.decline(st, "default_with_exception", goal.String(), "no ancestor declares a default")
	return nil
}

// --- Strategy 13: modus ponens on holds ---------------------------------------

func (e *Engine) strategyModusPonensHolds(goal Goal, depth int, st *proofState) *Result {
	if goal.Negated {
		return nil
	}
	if goal.Operator != "holds" || len(goal.Args) < 1 {
		return nil
	}
	target := goal.Args[0]
	for _, rule := range e.rules {
		concOp, concArgs, negated := conclusionLeafOperator(rule.Conclusion)
		if negated {
			continue
		}
		if concOp != "holds" && concOp != target {
			continue
		}
		if concOp == "holds" && (len(concArgs) == 0 || concArgs[0] != target) {
			continue
		}
		if r := e.proveCondition(rule.Condition, depth+1, st, false); r.Valid {
			e.succeed(st, "modus_ponens_holds", goal.String())
			r.Method = "modus_ponens_holds"
			r.Steps = append(r.Steps, Step{Strategy: "modus_ponens_holds", Goal: goal.String(), Detail: "via rule " + rule.ID})
			return r
		}
	}
	e.decline(st, "modus_ponens_holds", goal.String(), "no rule concludes holds for this identifier")
	return nil
}

// --- Strategy 14: rule index lookup ------------------------------------------

func (e *Engine) strategyRuleIndexLookup(goal Goal, depth int, st *proofState) *Result {
	if goal.Negated {
		return nil
	}
	for _, rule := range e.rules {
		concOp, concArgs, negated := conclusionLeafOperator(rule.Conclusion)
		if negated || concOp != goal.Operator {
			continue
		}
		bindings, ok := unify(concArgs, goal.Args)
		if !ok {
			continue
		}
		condGoal := substituteCondition(rule.Condition, bindings)
		if r := e.proveCondition(condGoal, depth+1, st, false); r.Valid {
			e.succeed(st, "rule_index_lookup", goal.String())
			r.Method = "rule_index_lookup"
			r.Confidence *= ConfidenceDecay
			r.Steps = append(r.Steps, Step{Strategy: "rule_index_lookup", Goal: goal.String(), Detail: "via rule " + rule.ID})
			return r
		}
	}
	e.decline(st, "rule_index_lookup", goal.String(), "no rule's conclusion matches this goal")
	return nil
}

// strategyDatalogFallback asks the Mangle-backed Store whether the goal
// is derivable (directly stored or via any rule it has evaluated). It is
// tried after the hand-rolled rule-index lookup so the engine's own
// ordered strategies remain authoritative for proof-step rendering, but
// still gives the "symbolic priority" search a genuine Datalog fallback
// for rule shapes the hand-rolled unifier does not cover (spec §4.7,
// domain-stack note on internal/symbolic).
func (e *Engine) strategyDatalogFallback(goal Goal, depth int, st *proofState) *Result {
	if goal.Negated || e.datalog == nil {
		return nil
	}
	ok, err := e.datalog.Exists(context.Background(), goal.Operator, goal.Args)
	if err != nil || !ok {
		e.decline(st, "datalog_rule_evaluation", goal.String(), "not derivable in the Mangle-backed store")
		return nil
	}
	e.succeed(st, "datalog_rule_evaluation", goal.String())
	return &Result{
		Valid: true, Method: "datalog_rule_evaluation", Confidence: ConfidenceDecay, Goal: goal.String(),
		Steps: []Step{{Strategy: "datalog_rule_evaluation", Goal: goal.String(), Detail: "derived by the Mangle Datalog evaluator"}},
	}
}

// --- Strategy 15: weak match ---------------------------------------------------

func (e *Engine) strategyWeakMatch(goal Goal, depth int, st *proofState) *Result {
	if goal.Negated || e.base.Vector() == nil || len(goal.Args) == 0 {
		return nil
	}
	if len(e.base.Index().ByOperator(goal.Operator)) == 0 {
		e.decline(st, "weak_match", goal.String(), "operator never seen")
		return nil
	}
	hasEntity := false
	for _, idx := range e.base.Index().ByOperator(goal.Operator) {
		f := e.base.Facts()[idx]
		if len(f.Args) > 0 && f.Args[0] == goal.Args[0] {
			hasEntity = true
			break
		}
	}
	if !hasEntity {
		e.decline(st, "weak_match", goal.String(), "arg0 entity not present for this operator")
		return nil
	}
	confidence := e.base.Strategy().Thresholds().StrongMatch
	e.succeed(st, "weak_match", goal.String())
	return &Result{Valid: true, Method: "weak_match", Confidence: confidence, Goal: goal.String(),
		Steps: []Step{{Strategy: "weak_match", Goal: goal.String(), Detail: "heuristic: entity and operator co-occur; not symbolically verified"}}}
}

// --- Strategy 16: disjointness proof ------------------------------------------

func (e *Engine) strategyDisjointnessProof(goal Goal, depth int, st *proofState) *Result {
	if !goal.Negated || goal.InnerOperator != "isA" || len(goal.InnerArgs) < 2 || e.semIndex == nil {
		return nil
	}
	entity, forbiddenType := goal.InnerArgs[0], goal.InnerArgs[1]
	for _, typ := range e.ancestorTypes(entity) {
		if _, disjoint := e.semIndex.IsDisjoint(typ, forbiddenType); disjoint {
			e.succeed(st, "disjointness_proof", goal.String())
			return &Result{Valid: true, Method: "disjointness_proof", Confidence: 1.0, Goal: goal.String(),
				Steps: []Step{{Strategy: "disjointness_proof", Goal: goal.String(),
					Detail: fmt.Sprintf("isA(%s,%s) disjointWith %s", entity, typ, forbiddenType)}}}
		}
	}
	e.decline(st, "disjointness_proof", goal.String(), "no declared-disjoint ancestor type")
	return nil
}

// --- condition-tree evaluation for rule bodies -------------------------------

// proveCondition recursively proves an And/Or/Not condition tree, combining
// confidences per spec §4.7 (And: min * decay, Or: max, Not: ignore_negation
// flag true on the inner recursive call per section-4.7 negation semantics).
func (e *Engine) proveCondition(stmt ast.Statement, depth int, st *proofState, ignoreNegation bool) *Result {
	switch stmt.Operator {
	case "And":
		var steps []Step
		minConf := 1.0
		for _, arg := range stmt.Args {
			inner, ok := innerStatement(arg)
			if !ok {
				continue
			}
			r := e.proveCondition(inner, depth+1, st, ignoreNegation)
			if !r.Valid {
				return &Result{Valid: false, Goal: stmt.Operator, Reason: "And leaf failed: " + r.Goal}
			}
			steps = append(steps, r.Steps...)
			if r.Confidence > 0 && r.Confidence < minConf {
				minConf = r.Confidence
			}
		}
		return &Result{Valid: true, Confidence: minConf * ConfidenceDecay, Steps: steps, Goal: stmt.Operator}
	case "Or":
		for _, arg := range stmt.Args {
			inner, ok := innerStatement(arg)
			if !ok {
				continue
			}
			if r := e.proveCondition(inner, depth+1, st, ignoreNegation); r.Valid {
				return r
			}
		}
		return &Result{Valid: false, Goal: stmt.Operator, Reason: "no Or leaf succeeded"}
	case "Not":
		if len(stmt.Args) != 1 {
			return &Result{Valid: false, Reason: "Not requires exactly one argument"}
		}
		inner, ok := innerStatement(stmt.Args[0])
		if !ok {
			return &Result{Valid: false, Reason: "Not argument is not a statement"}
		}
		g := statementToGoal(inner)
		g.Negated = true
		g.InnerOperator = inner.Operator
		g.InnerArgs = statementArgNames(inner)
		prev := st.opts.IgnoreNegation
		st.opts.IgnoreNegation = true
		r := e.prove(g, depth, st)
		st.opts.IgnoreNegation = prev
		return r
	default:
		g := statementToGoal(stmt)
		return e.prove(g, depth, st)
	}
}

func innerStatement(e ast.Expr) (ast.Statement, bool) {
	if e.Kind == ast.ExprStatement && e.Inner != nil {
		return *e.Inner, true
	}
	if e.Kind == ast.ExprCompound {
		return ast.Statement{Operator: e.Operator, Args: e.Args}, true
	}
	return ast.Statement{}, false
}

func statementToGoal(stmt ast.Statement) Goal {
	return Goal{Operator: stmt.Operator, Args: statementArgNames(stmt)}
}

func statementArgNames(stmt ast.Statement) []string {
	names := make([]string, len(stmt.Args))
	for i, a := range stmt.Args {
		switch a.Kind {
		case ast.ExprIdentifier, ast.ExprReference:
			names[i] = a.Name
		case ast.ExprLiteral:
			names[i] = fmt.Sprintf("%v", a.Literal)
		case ast.ExprCompound:
			names[i] = a.Operator
		}
	}
	return names
}

func substituteCondition(stmt ast.Statement, bindings map[string]string) ast.Statement {
	out := stmt
	out.Args = make([]ast.Expr, len(stmt.Args))
	for i, a := range stmt.Args {
		switch a.Kind {
		case ast.ExprIdentifier:
			if v, ok := bindings[a.Name]; ok {
				out.Args[i] = ast.Expr{Kind: ast.ExprIdentifier, Name: v}
				continue
			}
		case ast.ExprStatement:
			if a.Inner != nil {
				sub := substituteCondition(*a.Inner, bindings)
				out.Args[i] = ast.Expr{Kind: ast.ExprStatement, Inner: &sub}
				continue
			}
		case ast.ExprCompound:
			sub := substituteCondition(ast.Statement{Operator: a.Operator, Args: a.Args}, bindings)
			out.Args[i] = ast.Expr{Kind: ast.ExprCompound, Operator: sub.Operator, Args: sub.Args}
			continue
		}
		out.Args[i] = a
	}
	return out
}

// unify matches a rule conclusion's parameter pattern against concrete goal
// args. Every pattern arg binds 1:1 by position to the concrete arg; a
// name repeated in the pattern must bind the same value each time.
func unify(pattern, concrete []string) (map[string]string, bool) {
	if len(pattern) != len(concrete) {
		return nil, false
	}
	bindings := make(map[string]string, len(pattern))
	for i, p := range pattern {
		if existing, ok := bindings[p]; ok {
			if existing != concrete[i] {
				return nil, false
			}
			continue
		}
		bindings[p] = concrete[i]
	}
	return bindings, true
}

func conclusionLeafOperator(stmt ast.Statement) (op string, args []string, negated bool) {
	if stmt.Operator == "Not" && len(stmt.Args) == 1 {
		if inner, ok := innerStatement(stmt.Args[0]); ok {
			return inner.Operator, statementArgNames(inner), true
		}
	}
	return stmt.Operator, statementArgNames(stmt), false
}

func conditionLeaves(stmt ast.Statement) []ast.Statement {
	if stmt.Operator != "And" {
		return []ast.Statement{stmt}
	}
	var leaves []ast.Statement
	for _, a := range stmt.Args {
		if inner, ok := innerStatement(a); ok {
			leaves = append(leaves, inner)
		}
	}
	return leaves
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func substituteFirst(args []string, value string) []string {
	out := append([]string{}, args...)
	if len(out) > 0 {
		out[0] = value
	}
	return out
}

func existsPredicateOp(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}

// existsTypeConstraints pulls required/forbidden isA types for an
// existential variable out of its argument list by convention: args[2:]
// holds required types, and any arg prefixed with "!" names a forbidden
// type. Lowered this way by the caller constructing the Exists goal.
func (e *Engine) existsTypeConstraints(args []string) (required, forbidden []string) {
	if len(args) <= 2 {
		return nil, nil
	}
	for _, a := range args[2:] {
		if strings.HasPrefix(a, "!") {
			forbidden = append(forbidden, strings.TrimPrefix(a, "!"))
		} else if a != "" {
			required = append(required, a)
		}
	}
	return required, forbidden
}

func (e *Engine) entitiesOfAllTypes(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, typ := range types {
		for _, idx := range e.base.Index().ByOperatorArg1("isA", typ) {
			f := e.base.Facts()[idx]
			if len(f.Args) > 0 {
				counts[f.Args[0]]++
			}
		}
	}
	var out []string
	for entity, n := range counts {
		if n == len(types) {
			out = append(out, entity)
		}
	}
	sort.Strings(out)
	return out
}

func (e *Engine) typeReachable(from, to string) bool {
	if from == to {
		return true
	}
	for _, t := range e.ancestorTypes(from) {
		if t == to {
			return true
		}
	}
	return false
}

// ancestorTypes returns every type entity is isA-related to, via BFS,
// nearest first.
func (e *Engine) ancestorTypes(entity string) []string {
	return e.ancestorTypesOrdered(entity)
}

func (e *Engine) ancestorTypesOrdered(entity string) []string {
	visited := map[string]bool{entity: true}
	queue := []string{entity}
	var order []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, idx := range e.base.Index().ByOperatorArg0("isA", cur) {
			f := e.base.Facts()[idx]
			if len(f.Args) < 2 || visited[f.Args[1]] {
				continue
			}
			visited[f.Args[1]] = true
			order = append(order, f.Args[1])
			queue = append(queue, f.Args[1])
		}
	}
	return order
}

