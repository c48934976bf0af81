// Package query implements the Query/Decode Engine (spec §4.8): the
// HDC-priority half of the dual-engine reasoner. Given a statement with
// one or more holes, it builds a partial vector from the knowns, unbinds
// it against the bundled KB, and ranks candidate fillers by vocabulary
// reverse lookup before verifying each symbolically against the fact
// index (or, failing that, the proof engine).
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sys2dsl/engine/internal/ast"
	"github.com/sys2dsl/engine/internal/executor"
	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/kb"
	"github.com/sys2dsl/engine/internal/logging"
	"github.com/sys2dsl/engine/internal/proof"
	"github.com/sys2dsl/engine/internal/vocab"
)

// Hole is one `?name` placeholder in a query statement, at its 1-indexed
// argument position.
type Hole struct {
	Position int
	Name     string
}

// IdentifyHoles scans stmt's arguments for Hole expressions (spec §4.8
// step 1). Compound/nested-statement holes are not supported: a hole may
// only appear as a direct argument of the query's top-level statement.
func IdentifyHoles(stmt ast.Statement) []Hole {
	var holes []Hole
	for i, a := range stmt.Args {
		if a.Kind == ast.ExprHole {
			holes = append(holes, Hole{Position: i + 1, Name: a.Name})
		}
	}
	return holes
}

// Candidate is one ranked filler for a hole.
type Candidate struct {
	Answer     string
	Confidence float64
	Method     string
	Verified   bool
}

// Binding maps each hole name to the candidate chosen for it in one
// combination.
type Binding map[string]Candidate

// Result is the outcome of a Decode call (spec §6 `query()`).
type Result struct {
	Bindings     []Binding
	Alternatives []Binding
	Trace        []string
}

// ErrNoHoles is returned when the statement carries no holes; use the
// proof engine's Prove for goals without holes.
var ErrNoHoles = fmt.Errorf("query: statement contains no holes")

// ErrTooManyHoles is returned when a statement exceeds the configured
// max_holes_per_query budget (spec §5).
type ErrTooManyHoles struct{ Count, Max int }

func (e *ErrTooManyHoles) Error() string {
	return fmt.Sprintf("query: %d holes exceeds max_holes_per_query %d", e.Count, e.Max)
}

// Options configures a single Decode call.
type Options struct {
	TopK         int
	MaxHoles     int
	VerifyByProof bool // fall back to the proof engine when the index has no direct hit
	ProofOptions proof.Options
}

// Engine runs the HDC decode strategy against a fixed Vocabulary,
// Executor, and KnowledgeBase, optionally verifying unindexed candidates
// via a ProofEngine.
type Engine struct {
	exec        *executor.Executor
	vocabulary  *vocab.Vocabulary
	base        *kb.KnowledgeBase
	strategy    hdc.Strategy
	proofEngine *proof.Engine
}

// New constructs a decode Engine. proofEngine may be nil, in which case
// verification is limited to direct FactIndex lookups.
func New(exec *executor.Executor, vocabulary *vocab.Vocabulary, base *kb.KnowledgeBase, strategy hdc.Strategy, proofEngine *proof.Engine) *Engine {
	return &Engine{exec: exec, vocabulary: vocabulary, base: base, strategy: strategy, proofEngine: proofEngine}
}

// Decode identifies stmt's holes, builds a partial vector, unbinds it
// against the KB bundle, and returns ranked, symbolically-verified
// candidates for every hole (spec §4.8).
func (e *Engine) Decode(ctx context.Context, stmt ast.Statement, scope *executor.Scope, opts Options) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryQuery, "decode")
	defer timer.Stop()

	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxHoles <= 0 {
		opts.MaxHoles = 3
	}

	holes := IdentifyHoles(stmt)
	if len(holes) == 0 {
		return nil, ErrNoHoles
	}
	if len(holes) > opts.MaxHoles {
		return nil, &ErrTooManyHoles{Count: len(holes), Max: opts.MaxHoles}
	}

	skip := make(map[int]bool, len(holes))
	for _, h := range holes {
		skip[h.Position] = true
	}
	partial, err := e.exec.BuildPartialVector(stmt, scope, skip)
	if err != nil {
		return nil, fmt.Errorf("query: building partial vector: %w", err)
	}

	kbVec := e.base.Vector()
	if kbVec == nil {
		return &Result{Trace: []string{"knowledge base is empty; no candidates possible"}}, nil
	}

	// Unbind from the KB bundle: self-inverse strategies cancel the
	// bound operator/known-arg structure, leaving a residual dominated by
	// the hole positions' bound values (spec §4.8 step 2).
	composite, err := e.strategy.Bind(partial, kbVec)
	if err != nil {
		return nil, fmt.Errorf("query: unbinding partial vector from kb: %w", err)
	}

	var trace []string
	perHole := make(map[string][]Candidate, len(holes))
	for _, h := range holes {
		posVec, err := e.vocabulary.PositionVector(h.Position)
		if err != nil {
			return nil, err
		}
		residual, err := e.strategy.Bind(composite, posVec)
		if err != nil {
			return nil, fmt.Errorf("query: removing position marker for hole %s: %w", h.Name, err)
		}
		matches, err := e.vocabulary.ReverseLookup(residual, opts.TopK)
		if err != nil {
			return nil, fmt.Errorf("query: reverse lookup for hole %s: %w", h.Name, err)
		}
		trace = append(trace, fmt.Sprintf("hole %s: %d candidate(s) above orthogonality threshold", h.Name, len(matches)))
		candidates := make([]Candidate, 0, len(matches))
		for _, m := range matches {
			verified, method := e.verify(ctx, stmt, h, m.Name, opts)
			candidates = append(candidates, Candidate{
				Answer: m.Name, Confidence: m.Similarity, Method: method, Verified: verified,
			})
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Verified != candidates[j].Verified {
				return candidates[i].Verified
			}
			return candidates[i].Confidence > candidates[j].Confidence
		})
		perHole[h.Name] = candidates
	}

	return combine(holes, perHole, trace), nil
}

// verify checks whether stmt with hole h bound to answer exists directly
// in the fact index, or (if opts.VerifyByProof and a proof engine is
// attached) follows from a rule (spec §4.8 step 5).
func (e *Engine) verify(ctx context.Context, stmt ast.Statement, h Hole, answer string, opts Options) (bool, string) {
	args := make([]string, len(stmt.Args))
	for i, a := range stmt.Args {
		switch {
		case i+1 == h.Position:
			args[i] = answer
		case a.Kind == ast.ExprIdentifier || a.Kind == ast.ExprReference:
			args[i] = a.Name
		case a.Kind == ast.ExprLiteral:
			args[i] = fmt.Sprintf("%v", a.Literal)
		}
	}
	if hits := e.base.Index().ByCanonicalKey(stmt.Operator, args); len(hits) > 0 {
		return true, "fact_index"
	}
	if opts.VerifyByProof && e.proofEngine != nil {
		res := e.proofEngine.Prove(ctx, proof.Goal{Operator: stmt.Operator, Args: args}, opts.ProofOptions)
		if res.Valid {
			return true, res.Method
		}
	}
	return false, "unverified"
}

// combine builds the canonical best-combination binding (one candidate
// per hole, highest-ranked first) plus every other observed combination
// as an alternative, ordered by total confidence.
func combine(holes []Hole, perHole map[string][]Candidate, trace []string) *Result {
	res := &Result{Trace: trace}
	maxLen := 0
	for _, h := range holes {
		if n := len(perHole[h.Name]); n > maxLen {
			maxLen = n
		}
	}
	if maxLen == 0 {
		return res
	}
	var combos []Binding
	for i := 0; i < maxLen; i++ {
		b := make(Binding, len(holes))
		complete := true
		for _, h := range holes {
			cands := perHole[h.Name]
			if i >= len(cands) {
				complete = false
				continue
			}
			b[h.Name] = cands[i]
		}
		if len(b) > 0 {
			combos = append(combos, b)
		}
		if !complete && i > 0 {
			break
		}
	}
	sort.SliceStable(combos, func(i, j int) bool {
		return totalConfidence(combos[i]) > totalConfidence(combos[j])
	})
	if len(combos) > 0 {
		res.Bindings = combos[:1]
		res.Alternatives = combos[1:]
	}
	return res
}

func totalConfidence(b Binding) float64 {
	sum := 0.0
	for _, c := range b {
		sum += c.Confidence
	}
	return sum
}

// Assignment is one variable->value pair extracted from a stored
// compound-solution fact's flattened Args list (spec §4.8 step 6: a
// cspSolution/planStep/planAction fact's metadata records the
// assignments that produced it, authoritative over any HDC signal).
type Assignment struct {
	Variable string
	Value    string
}

// CompoundSolutionOps are the fact operators §4.9's solve() emits.
var CompoundSolutionOps = map[string]bool{
	"planStep":    true,
	"planAction":  true,
	"cspSolution": true,
}

// ParseAssignments extracts (variable, value) pairs from a compound
// solution fact's flattened Args ([var1, val1, var2, val2, ...]).
func ParseAssignments(args []string) []Assignment {
	var out []Assignment
	for i := 0; i+1 < len(args); i += 2 {
		out = append(out, Assignment{Variable: args[i], Value: args[i+1]})
	}
	return out
}

// SearchCompoundSolutions scans stored planStep/planAction/cspSolution
// facts for one whose assignments satisfy every (variable, value)
// constraint in want, using HDC similarity against probe only to break
// ties between otherwise-equal symbolic matches (spec §4.8 step 6: the
// stored metadata is authoritative, similarity is a signal only).
func (e *Engine) SearchCompoundSolutions(probe hdc.Vector, want map[string]string) []kb.Fact {
	var out []kb.Fact
	for op := range CompoundSolutionOps {
		for _, idx := range e.base.Index().ByOperator(op) {
			f := e.base.Facts()[idx]
			assignments := ParseAssignments(f.Args)
			if satisfiesAll(assignments, want) {
				out = append(out, f)
			}
		}
	}
	if probe == nil || len(out) < 2 {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, _ := e.strategy.Similarity(probe, out[i].Vector)
		sj, _ := e.strategy.Similarity(probe, out[j].Vector)
		return si > sj
	})
	return out
}

func satisfiesAll(assignments []Assignment, want map[string]string) bool {
	have := make(map[string]string, len(assignments))
	for _, a := range assignments {
		have[a.Variable] = a.Value
	}
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// Summarize renders a Binding for diagnostics, e.g. "who=Maria(0.92,verified)".
func (b Binding) Summarize() string {
	var parts []string
	for name, c := range b {
		tag := "unverified"
		if c.Verified {
			tag = "verified"
		}
		parts = append(parts, fmt.Sprintf("%s=%s(%.2f,%s)", name, c.Answer, c.Confidence, tag))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
