package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/sys2dsl/engine/internal/ast"
	"github.com/sys2dsl/engine/internal/config"
	"github.com/sys2dsl/engine/internal/contradiction"
	"github.com/sys2dsl/engine/internal/executor"
	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/kb"
	"github.com/sys2dsl/engine/internal/logging"
	"github.com/sys2dsl/engine/internal/proof"
	"github.com/sys2dsl/engine/internal/query"
	"github.com/sys2dsl/engine/internal/semantic"
	"github.com/sys2dsl/engine/internal/storage"
	"github.com/sys2dsl/engine/internal/symbolic"
	"github.com/sys2dsl/engine/internal/vocab"
)

// ReasoningStats accumulates counters surfaced through dump() (spec
// §2.10): how much work prove()/query() have done across the session's
// lifetime, modeled on the teacher's per-query kernel audit counters.
type ReasoningStats struct {
	RuleAttempts     int
	KBScans          int
	SimilarityChecks int
}

// factResult records one fact committed during a learn() call, so the
// caller can report FactsAdded and so a transaction rollback knows
// nothing beyond bookkeeping needs undoing (the KB snapshot already
// covers the fact itself).
type factResult struct {
	Fact kb.Fact
}

// Session owns exactly one Vocabulary, KnowledgeBase, rule set, graph
// registry, SemanticIndex, and Scope (spec §3 "Ownership & lifecycles",
// §4.9).
type Session struct {
	cfg      *config.Config
	strategy hdc.Strategy

	vocabulary *vocab.Vocabulary
	exec       *executor.Executor
	base       *kb.KnowledgeBase
	canon      *semantic.Canonicalizer
	semIndex   *semantic.Index
	detector   *contradiction.Detector
	datalog    *symbolic.Store
	rules      []proof.Rule
	graphs     map[string]*Graph
	graphOrder []string

	knownOperators map[string]bool
	operatorOrder  []string

	scope *executor.Scope

	stats   ReasoningStats
	closed  bool
	storage storage.Adapter
	watcher *storage.TheoryPackWatcher
}

// New constructs a Session per cfg: a Strategy + Vocabulary + empty KB +
// empty SemanticIndex, optionally preloading the bundled Core theory
// pack (spec §4.9 Session.new).
func New(cfg *config.Config) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	strategy, err := hdc.Get(cfg.HDC.Strategy)
	if err != nil {
		return nil, fmt.Errorf("session: resolving hdc strategy %q: %w", cfg.HDC.Strategy, err)
	}
	vocabulary, err := vocab.New(strategy, cfg.HDC.Dimension)
	if err != nil {
		return nil, fmt.Errorf("session: constructing vocabulary: %w", err)
	}
	exec := executor.New(vocabulary)
	base := kb.New(strategy)
	canon := semantic.NewCanonicalizer()
	semIndex := canon.Rebuild(nil)
	exec.SetSemanticIndex(semIndex)
	detector := contradiction.New(semIndex)

	s := &Session{
		cfg:            cfg,
		strategy:       strategy,
		vocabulary:     vocabulary,
		exec:           exec,
		base:           base,
		canon:          canon,
		semIndex:       semIndex,
		detector:       detector,
		datalog:        symbolic.New(),
		graphs:         make(map[string]*Graph),
		knownOperators: make(map[string]bool),
		scope:          executor.NewScope(false),
	}

	if cfg.AutoLoadCore {
		if res, err := s.Learn(corePack()); err != nil || !res.Success {
			return nil, fmt.Errorf("session: preloading core theory pack: success=%v err=%v", res != nil && res.Success, err)
		}
	}

	adapter, err := openStorageAdapter(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("session: opening storage adapter: %w", err)
	}
	s.storage = adapter

	if cfg.Storage.WatchReload && cfg.Storage.TheoryPackDir != "" {
		w, err := storage.WatchTheoryPack(cfg.Storage.TheoryPackDir, s.reloadSnapshotFile)
		if err != nil {
			s.storage.Close()
			return nil, fmt.Errorf("session: starting theory pack watcher: %w", err)
		}
		s.watcher = w
	}
	return s, nil
}

// openStorageAdapter resolves cfg.Driver into a concrete storage.Adapter.
// "memory" selects a no-op adapter for sessions that never persist (spec
// §6 Storage defaults to opt-in).
func openStorageAdapter(cfg config.StorageConfig) (storage.Adapter, error) {
	switch cfg.Driver {
	case "", "memory":
		return storage.NewMemoryAdapter(), nil
	case "sqlite3", "sqlite":
		return storage.NewSQLiteAdapter(cfg.Path)
	default:
		return nil, fmt.Errorf("session: unknown storage driver %q", cfg.Driver)
	}
}

// txnSnapshot captures every owned collection's append-only extent so a
// failed learn() can restore them exactly (spec §4.9 step 3, §4.4
// "Rollback MUST leave scope, rules, graphs, operators, and vocabulary
// at their snapshot sizes/contents").
type txnSnapshot struct {
	kb       kb.Snapshot
	vocab    int
	scope    int
	datalog  symbolic.Snapshot
	rules    int
	graphs   int
	operators int
}

func (s *Session) snapshot() txnSnapshot {
	return txnSnapshot{
		kb:        s.base.Snapshot(),
		vocab:     s.vocabulary.Snapshot(),
		scope:     s.scope.Snapshot(),
		datalog:   s.datalog.Snapshot(),
		rules:     len(s.rules),
		graphs:    len(s.graphOrder),
		operators: len(s.operatorOrder),
	}
}

func (s *Session) rollback(snap txnSnapshot) {
	s.base.Rollback(snap.kb)
	s.vocabulary.Rollback(snap.vocab)
	s.scope.Rollback(snap.scope)
	if err := s.datalog.Rollback(snap.datalog); err != nil {
		logging.Named(logging.CategorySession).Errorw("datalog rollback failed", "error", err)
	}
	s.rules = s.rules[:snap.rules]
	for _, name := range s.graphOrder[snap.graphs:] {
		delete(s.graphs, name)
	}
	s.graphOrder = s.graphOrder[:snap.graphs]
	for _, op := range s.operatorOrder[snap.operators:] {
		delete(s.knownOperators, op)
	}
	s.operatorOrder = s.operatorOrder[:snap.operators]
	s.refreshSemantics()
}

// refreshSemantics rebuilds the SemanticIndex from the current KB facts
// and rewires every consumer to it, since SemanticIndex is a
// deterministic function of the loaded theory, never edited ad-hoc
// (spec §4.5, §3 invariants).
func (s *Session) refreshSemantics() {
	s.semIndex = s.canon.Rebuild(s.base.Facts())
	s.exec.SetSemanticIndex(s.semIndex)
	s.detector.SetIndex(s.semIndex)
}

func (s *Session) markOperatorKnown(op string) {
	if s.knownOperators[op] {
		return
	}
	s.knownOperators[op] = true
	s.operatorOrder = append(s.operatorOrder, op)
}

// LearnResult is learn()'s result record (spec §6).
type LearnResult struct {
	Success        bool
	FactsAdded     int
	Errors         []error
	Contradictions []*contradiction.Contradiction
}

// Learn implements learn() (spec §4.9): validate, snapshot, execute
// every block/statement in source order, and roll back the whole
// transaction on the first validation failure or contradiction.
func (s *Session) Learn(prog ast.Program) (*LearnResult, error) {
	if s.closed {
		return nil, &InternalError{Invariant: "session_open", Message: "session is closed"}
	}
	if errs := s.checkDSL(prog, s.scope, false); len(errs) > 0 {
		return &LearnResult{Success: false, Errors: errs}, nil
	}

	snap := s.snapshot()
	var facts []factResult
	for _, item := range orderProgram(prog) {
		switch {
		case item.block != nil:
			if err := s.processBlock(*item.block); err != nil {
				return s.abortLearn(snap, err)
			}
		case item.stmt != nil:
			_, fr, err := s.processStatement(*item.stmt, s.scope)
			if err != nil {
				return s.abortLearn(snap, err)
			}
			facts = append(facts, fr...)
		}
	}

	if limit := s.cfg.Limits.VocabularyLimit; limit > 0 && s.vocabulary.Size() > limit {
		return s.abortLearn(snap, &CapacityError{Resource: "vocabulary", Count: s.vocabulary.Size(), Limit: limit})
	}
	if limit := s.cfg.Limits.KBFactLimit; limit > 0 && s.base.FactCount() > limit {
		return s.abortLearn(snap, &CapacityError{Resource: "kb_facts", Count: s.base.FactCount(), Limit: limit})
	}

	return &LearnResult{Success: true, FactsAdded: len(facts)}, nil
}

func (s *Session) abortLearn(snap txnSnapshot, err error) (*LearnResult, error) {
	s.rollback(snap)
	var cr *ContradictionRejected
	if errors.As(err, &cr) {
		return &LearnResult{Success: false, Contradictions: []*contradiction.Contradiction{cr.Contradiction}}, nil
	}
	return &LearnResult{Success: false, Errors: []error{err}}, nil
}

type orderedItem struct {
	pos   ast.Pos
	block *ast.Block
	stmt  *ast.Statement
}

// orderProgram merges Blocks and top-level Statements into source order
// (by line, then column), since ast.Program keeps them in separate
// slices but learn() must execute them as they appeared in the DSL text.
func orderProgram(prog ast.Program) []orderedItem {
	items := make([]orderedItem, 0, len(prog.Blocks)+len(prog.Statements))
	for i := range prog.Blocks {
		items = append(items, orderedItem{pos: prog.Blocks[i].Pos, block: &prog.Blocks[i]})
	}
	for i := range prog.Statements {
		items = append(items, orderedItem{pos: prog.Statements[i].Pos, stmt: &prog.Statements[i]})
	}
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && less(items[j].pos, items[j-1].pos) {
			items[j], items[j-1] = items[j-1], items[j]
			j--
		}
	}
	return items
}

func less(a, b ast.Pos) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

func (s *Session) processBlock(b ast.Block) error {
	switch b.Kind {
	case ast.BlockGraph:
		if err := s.registerGraph(b); err != nil {
			return err
		}
		s.graphOrder = append(s.graphOrder, b.Name)
		return nil
	case ast.BlockRule:
		return s.registerRule(b)
	case ast.BlockBegin:
		s.scope.Push()
		return nil
	case ast.BlockEnd:
		s.scope.Pop()
		return nil
	default:
		return &InternalError{Invariant: "block_kind", Message: fmt.Sprintf("unrecognized block kind %d", b.Kind)}
	}
}

// processStatement executes a single fact statement, or expands a graph
// invocation into its constituent facts, binding the result to stmt.Dest
// if present.
func (s *Session) processStatement(stmt ast.Statement, scope *executor.Scope) (executor.Binding, []factResult, error) {
	if g, ok := s.graphs[stmt.Operator]; ok {
		binding, facts, err := s.invokeGraph(g, stmt.Args, scope)
		if err != nil {
			return executor.Binding{}, nil, err
		}
		if stmt.Dest != nil {
			scope.Bind(stmt.Dest.Name, binding)
		}
		return binding, facts, nil
	}

	vec, err := s.exec.BuildStatementVector(stmt, scope)
	if err != nil {
		return executor.Binding{}, nil, fmt.Errorf("session: building statement vector for %s: %w", stmt.Operator, err)
	}
	meta, err := s.exec.ExtractCanonicalMetadata(stmt, scope)
	if err != nil {
		return executor.Binding{}, nil, fmt.Errorf("session: extracting canonical metadata for %s: %w", stmt.Operator, err)
	}

	f := kb.NewFact(meta.Operator, meta.Args, vec, meta, "")
	if err := s.base.AddFact(f, s.detector); err != nil {
		var rejected *kb.ErrContradictionRejected
		if errors.As(err, &rejected) {
			var c *contradiction.Contradiction
			if errors.As(rejected.Err, &c) {
				return executor.Binding{}, nil, &ContradictionRejected{Contradiction: c}
			}
		}
		return executor.Binding{}, nil, fmt.Errorf("session: adding fact %s: %w", meta.Operator, err)
	}
	s.markOperatorKnown(meta.Operator)
	s.refreshSemantics()

	binding := executor.Binding{Vector: vec, Metadata: meta}
	if stmt.Dest != nil {
		scope.Bind(stmt.Dest.Name, binding)
	}
	return binding, []factResult{{Fact: f}}, nil
}

// Query implements query() (spec §4.8, §6): a read-only HDC-priority
// decode over a statement with holes.
func (s *Session) Query(ctx context.Context, stmt ast.Statement, opts query.Options) (*query.Result, error) {
	if s.closed {
		return nil, &InternalError{Invariant: "session_open", Message: "session is closed"}
	}
	if errs := s.checkDSL(ast.Program{Statements: []ast.Statement{stmt}}, s.scope, true); len(errs) > 0 {
		return nil, errs[0]
	}
	opts.ProofOptions = s.defaultProofOptions(opts.ProofOptions)
	qe := query.New(s.exec, s.vocabulary, s.base, s.strategy, s.proofEngine())
	res, err := qe.Decode(ctx, stmt, s.scope, opts)
	s.stats.KBScans++
	if res != nil {
		for _, b := range res.Bindings {
			s.stats.SimilarityChecks += len(b)
		}
	}
	return res, err
}

// Prove implements prove() (spec §4.7, §6): a read-only symbolic-priority
// search against a goal statement without holes.
func (s *Session) Prove(ctx context.Context, goal ast.Statement, opts proof.Options) *proof.Result {
	if errs := s.checkDSL(ast.Program{Statements: []ast.Statement{goal}}, s.scope, false); len(errs) > 0 {
		return &proof.Result{Valid: false, Reason: errs[0].Error()}
	}
	meta, err := s.exec.ExtractCanonicalMetadata(goal, s.scope)
	if err != nil {
		return &proof.Result{Valid: false, Reason: err.Error()}
	}
	opts = s.defaultProofOptions(opts)
	res := s.proofEngine().Prove(ctx, proof.GoalFromMetadata(meta), opts)
	s.stats.RuleAttempts += len(res.Steps)
	s.stats.KBScans++
	return res
}

func (s *Session) defaultProofOptions(opts proof.Options) proof.Options {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = s.cfg.Limits.MaxDepth
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = s.cfg.Limits.MaxReasoningStep
	}
	if opts.TimeoutMs <= 0 {
		opts.TimeoutMs = s.cfg.Limits.ProofTimeoutMs
	}
	opts.Trace = opts.Trace || s.cfg.DebugTrace
	return opts
}

// proofEngine constructs a fresh proof.Engine bound to the session's
// current KB/SemanticIndex/Datalog/rules, matching proof.Engine's
// documented per-call memo/visited lifetime.
func (s *Session) proofEngine() *proof.Engine {
	return proof.New(s.base, s.semIndex, s.datalog, s.rules)
}

// DumpInfo is dump()'s result record (spec §6).
type DumpInfo struct {
	Geometry       int
	StrategyID     string
	VocabSize      int
	FactCount      int
	RuleCount      int
	ScopeBindings  int
	ReasoningStats ReasoningStats
}

// Dump implements dump() (spec §6).
func (s *Session) Dump() DumpInfo {
	return DumpInfo{
		Geometry:       s.vocabulary.Geometry(),
		StrategyID:     s.strategy.ID(),
		VocabSize:      s.vocabulary.Size(),
		FactCount:      s.base.FactCount(),
		RuleCount:      len(s.rules),
		ScopeBindings:  s.scope.Snapshot(),
		ReasoningStats: s.stats,
	}
}

// Similarity implements similarity(a,b) (spec §6): the strategy
// similarity between two atom names' vectors, auto-creating either atom
// that hasn't been seen yet.
func (s *Session) Similarity(a, b string) (float64, error) {
	va, err := s.vocabulary.GetOrCreate(a)
	if err != nil {
		return 0, err
	}
	vb, err := s.vocabulary.GetOrCreate(b)
	if err != nil {
		return 0, err
	}
	return s.strategy.Similarity(va, vb)
}

// Structure is decode()'s result record: the ranked atom candidates a
// vector most resembles (spec §6).
type Structure struct {
	Candidates []vocab.Match
}

// Decode implements decode(vec) (spec §6): reverse-lookup vec against
// the vocabulary.
func (s *Session) Decode(vec hdc.Vector, topK int) (*Structure, error) {
	matches, err := s.vocabulary.ReverseLookup(vec, topK)
	if err != nil {
		return nil, err
	}
	return &Structure{Candidates: matches}, nil
}

// Summarize implements summarize(vec) (spec §6): a one-line rendering of
// vec's closest known atom.
func (s *Session) Summarize(vec hdc.Vector) (string, error) {
	st, err := s.Decode(vec, 1)
	if err != nil {
		return "", err
	}
	if len(st.Candidates) == 0 {
		return "unknown", nil
	}
	return fmt.Sprintf("%s(%.2f)", st.Candidates[0].Name, st.Candidates[0].Similarity), nil
}

// Close implements close() (spec §6): stops the theory-pack watcher (if
// any) and releases the storage adapter's handle before guarding further
// use.
func (s *Session) Close() error {
	s.closed = true
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			return fmt.Errorf("session: stopping theory pack watcher: %w", err)
		}
	}
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
