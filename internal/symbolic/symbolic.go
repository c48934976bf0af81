// Package symbolic lowers learned facts and rule conclusions into the
// google/mangle Datalog substrate so the proof engine can fall back to
// full Datalog evaluation (e.g. transitive-closure and rule-index
// lookups) alongside its own ordered resolution strategies (spec §4.7
// "Proof Engine (symbolic priority)").
package symbolic

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	_ "github.com/google/mangle/packages"
	"github.com/google/mangle/parse"
	"github.com/google/mangle/unionfind"
)

// Store is a Mangle-backed fact store plus program info, rebuilt
// whenever a new predicate arity or rule is declared. It is owned by a
// Session alongside the KnowledgeBase (spec §3).
type Store struct {
	mu sync.RWMutex

	store     factstore.ConcurrentFactStore
	baseStore factstore.FactStoreWithRemove

	fragments    []parse.SourceUnit
	arity        map[string]int // predicate -> declared arity
	programInfo  *analysis.ProgramInfo
	queryContext *mengine.QueryContext
	autoEval     bool

	asserted []assertedFact // EDB facts, in insertion order, for snapshot/rollback
	rules    []RuleText     // rule fragments, in insertion order
}

type assertedFact struct {
	operator string
	args     []string
}

// New constructs an empty Store.
func New() *Store {
	base := factstore.NewSimpleInMemoryStore()
	return &Store{
		store:     factstore.NewConcurrentFactStore(base),
		baseStore: base,
		arity:     make(map[string]int),
		autoEval:  true,
	}
}

// RuleText is a single Datalog rule in Mangle surface syntax, e.g.
// `ancestor(X, Y) :- parent(X, Y).` Lowered directly from a Sys2DSL
// Rule block's condition/conclusion tree by the caller (internal/session),
// which understands And/Or/Not structure; this package only needs the
// rendered text.
type RuleText string

// EnsureDeclared declares predicate with the given arity if it hasn't
// been declared yet (or redeclares if the arity changed), then rebuilds
// the analyzed program. Declaring is idempotent for a stable arity.
func (s *Store) EnsureDeclared(predicate string, arity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.arity[predicate]; ok && existing == arity {
		return nil
	}
	s.arity[predicate] = arity

	vars := make([]string, arity)
	for i := range vars {
		vars[i] = fmt.Sprintf("X%d", i)
	}
	declText := fmt.Sprintf("Decl %s(%s).", predicate, strings.Join(vars, ", "))
	unit, err := parse.Unit(bytes.NewReader([]byte(declText)))
	if err != nil {
		return fmt.Errorf("symbolic: parsing declaration for %s/%d: %w", predicate, arity, err)
	}
	s.fragments = append(s.fragments, unit)
	return s.rebuildLocked()
}

// AddRule parses rule and adds it to the program, rebuilding the
// analyzed rule index. Call EnsureDeclared for every predicate the rule
// mentions (head and body) before calling AddRule.
func (s *Store) AddRule(rule RuleText) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	unit, err := parse.Unit(bytes.NewReader([]byte(rule)))
	if err != nil {
		return fmt.Errorf("symbolic: parsing rule %q: %w", rule, err)
	}
	s.fragments = append(s.fragments, unit)
	s.rules = append(s.rules, rule)
	return s.rebuildLocked()
}

func (s *Store) rebuildLocked() error {
	var clauses []ast.Clause
	var decls []ast.Decl
	for _, fragment := range s.fragments {
		clauses = append(clauses, fragment.Clauses...)
		decls = append(decls, fragment.Decls...)
	}
	unit := parse.SourceUnit{Clauses: clauses, Decls: decls}

	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return fmt.Errorf("symbolic: analyzing program: %w", err)
	}
	s.programInfo = programInfo

	predToDecl := make(map[ast.PredicateSym]*ast.Decl, len(programInfo.Decls))
	for sym, decl := range programInfo.Decls {
		predToDecl[sym] = decl
	}
	predToRules := make(map[ast.PredicateSym][]ast.Clause)
	for _, clause := range programInfo.Rules {
		predToRules[clause.Head.Predicate] = append(predToRules[clause.Head.Predicate], clause)
	}
	s.queryContext = &mengine.QueryContext{
		PredToRules: predToRules,
		PredToDecl:  predToDecl,
		Store:       s.store,
	}
	if s.autoEval {
		if _, err := mengine.EvalProgramWithStats(s.programInfo, s.store); err != nil {
			return fmt.Errorf("symbolic: evaluating rules: %w", err)
		}
	}
	return nil
}

// AddFact declares predicate/len(args) if needed and inserts the fact,
// treating every argument as a vocabulary-normalized atom name (stored
// as a Mangle string constant).
func (s *Store) AddFact(operator string, args []string) error {
	if err := s.EnsureDeclared(operator, len(args)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sym := ast.PredicateSym{Symbol: operator, Arity: len(args)}
	terms := make([]ast.BaseTerm, len(args))
	for i, a := range args {
		terms[i] = ast.String(a)
	}
	s.store.Add(ast.Atom{Predicate: sym, Args: terms})
	s.asserted = append(s.asserted, assertedFact{operator: operator, args: append([]string{}, args...)})
	if s.autoEval && s.programInfo != nil {
		if _, err := mengine.EvalProgramWithStats(s.programInfo, s.store); err != nil {
			return fmt.Errorf("symbolic: evaluating rules after fact insert: %w", err)
		}
	}
	return nil
}

// Snapshot captures the number of asserted EDB facts and declared rules,
// for transaction rollback (spec §4.9 step 3; mirrors the
// counts-not-deep-copies pattern internal/kb uses for its own snapshot).
type Snapshot struct {
	Facts int
	Rules int
}

// Snapshot returns the current counts of asserted facts and rules.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Facts: len(s.asserted), Rules: len(s.rules)}
}

// Rollback discards every fact and rule asserted after snap was taken and
// rebuilds the Mangle program from the retained prefix. Mangle's fact
// store has no cheap single-fact removal once rules have re-derived IDB
// facts from it, so rollback rebuilds the store from scratch and replays
// the retained declarations/rules/facts in their original order.
func (s *Store) Rollback(snap Snapshot) error {
	s.mu.Lock()
	if snap.Facts >= len(s.asserted) && snap.Rules >= len(s.rules) {
		s.mu.Unlock()
		return nil
	}
	retainedFacts := append([]assertedFact{}, s.asserted[:snap.Facts]...)
	retainedRules := append([]RuleText{}, s.rules[:snap.Rules]...)
	s.mu.Unlock()

	fresh := New()
	fresh.autoEval = false
	for _, f := range retainedFacts {
		if err := fresh.EnsureDeclared(f.operator, len(f.args)); err != nil {
			return fmt.Errorf("symbolic: rollback re-declaring %s: %w", f.operator, err)
		}
	}
	for _, r := range retainedRules {
		if err := fresh.AddRule(r); err != nil {
			return fmt.Errorf("symbolic: rollback replaying rule: %w", err)
		}
	}
	for _, f := range retainedFacts {
		sym := ast.PredicateSym{Symbol: f.operator, Arity: len(f.args)}
		terms := make([]ast.BaseTerm, len(f.args))
		for i, a := range f.args {
			terms[i] = ast.String(a)
		}
		fresh.store.Add(ast.Atom{Predicate: sym, Args: terms})
	}
	fresh.asserted = retainedFacts
	fresh.rules = retainedRules
	fresh.autoEval = true
	if err := fresh.rebuildLocked(); err != nil {
		return fmt.Errorf("symbolic: rollback re-evaluating rules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = fresh.store
	s.baseStore = fresh.baseStore
	s.fragments = fresh.fragments
	s.arity = fresh.arity
	s.programInfo = fresh.programInfo
	s.queryContext = fresh.queryContext
	s.asserted = fresh.asserted
	s.rules = fresh.rules
	return nil
}

// Binding is one variable assignment produced by a matched query row.
type Binding struct {
	Name  string
	Value string
}

// Row is one solution to a query: the bindings for every variable
// position in the query atom.
type Row []Binding

// Query evaluates a Mangle atom query (e.g. `isA(X, "Dog")`) against the
// current program and returns every matching row, honoring ctx
// cancellation/timeout for the proof engine's own budgets.
func (s *Store) Query(ctx context.Context, query string) ([]Row, error) {
	atom, err := parse.Atom(strings.TrimSuffix(strings.TrimSpace(query), "."))
	if err != nil {
		return nil, fmt.Errorf("symbolic: parsing query %q: %w", query, err)
	}

	s.mu.RLock()
	qc := s.queryContext
	if qc == nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("symbolic: no predicates declared yet")
	}
	decl, ok := qc.PredToDecl[atom.Predicate]
	if !ok {
		s.mu.RUnlock()
		return nil, fmt.Errorf("symbolic: predicate %s is not declared", atom.Predicate.Symbol)
	}
	modes := decl.Modes()
	if len(modes) == 0 {
		s.mu.RUnlock()
		return nil, fmt.Errorf("symbolic: predicate %s has no modes", atom.Predicate.Symbol)
	}
	mode := modes[0]
	s.mu.RUnlock()

	type varRef struct {
		name  string
		index int
	}
	var vars []varRef
	for i, arg := range atom.Args {
		if v, ok := arg.(ast.Variable); ok {
			vars = append(vars, varRef{name: v.Symbol, index: i})
		}
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	var rows []Row
	evalErr := qc.EvalQuery(atom, mode, unionfind.New(), func(fact ast.Atom) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		row := make(Row, 0, len(vars))
		for _, v := range vars {
			if v.index >= len(fact.Args) {
				continue
			}
			row = append(row, Binding{Name: v.name, Value: termString(fact.Args[v.index])})
		}
		rows = append(rows, row)
		return nil
	})
	if evalErr != nil {
		return nil, fmt.Errorf("symbolic: evaluating query %q: %w", query, evalErr)
	}
	return rows, nil
}

// Exists reports whether atom(args...) is derivable (directly stored or
// via a rule), without returning bindings. Used by the proof engine's
// datalog_rule_evaluation strategy as a fast existence check.
func (s *Store) Exists(ctx context.Context, predicate string, args []string) (bool, error) {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	rows, err := s.Query(ctx, fmt.Sprintf("%s(%s)", predicate, strings.Join(quoted, ", ")))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func termString(t ast.BaseTerm) string {
	switch v := t.(type) {
	case ast.Constant:
		return strings.Trim(v.String(), `"`)
	default:
		return fmt.Sprintf("%v", t)
	}
}
