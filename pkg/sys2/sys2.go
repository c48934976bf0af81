// Package sys2 is the public, language-agnostic facade over the
// reasoning substrate (spec §6 "Session API"). External collaborators —
// a Sys2DSL lexer/parser, a chat front-end, a CLI/REPL, a storage
// adapter — are all out of scope of this module and talk to the engine
// only through this package, never through internal/session directly
// (the same boundary the teacher draws around its own mangle kernel with
// pkg/mangle).
package sys2

import (
	"context"

	"github.com/sys2dsl/engine/internal/ast"
	"github.com/sys2dsl/engine/internal/config"
	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/proof"
	"github.com/sys2dsl/engine/internal/query"
	"github.com/sys2dsl/engine/internal/session"
)

// Re-exported ingress types (spec §6 "Parsed-AST ingress contract"): a
// Parser builds these directly, with no dependency on internal/ast.
type (
	Program   = ast.Program
	Statement = ast.Statement
	Expr      = ast.Expr
	ExprKind  = ast.ExprKind
	VarDecl   = ast.VarDecl
	Block     = ast.Block
	BlockKind = ast.BlockKind
	Pos       = ast.Pos
)

const (
	ExprIdentifier = ast.ExprIdentifier
	ExprReference  = ast.ExprReference
	ExprHole       = ast.ExprHole
	ExprLiteral    = ast.ExprLiteral
	ExprCompound   = ast.ExprCompound
	ExprStatement  = ast.ExprStatement
)

const (
	BlockGraph = ast.BlockGraph
	BlockRule  = ast.BlockRule
	BlockBegin = ast.BlockBegin
	BlockEnd   = ast.BlockEnd
)

// Config and Vector are re-exported so a caller can select an HDC
// strategy and round-trip decode() results without importing
// internal/config or internal/hdc.
type (
	Config = config.Config
	Vector = hdc.Vector
)

var DefaultConfig = config.DefaultConfig

// Result types, one per Session API call (spec §6).
type (
	LearnResult  = session.LearnResult
	QueryResult  = query.Result
	ProveResult  = proof.Result
	SolveResult  = session.SolveResult
	SolveProblem = session.SolveProblem
	DumpInfo     = session.DumpInfo
	Structure    = session.Structure
	Assignment   = query.Assignment
)

// QueryOptions and ProveOptions configure a single query()/prove() call.
type (
	QueryOptions = query.Options
	ProveOptions = proof.Options
)

// Session is the engine's single entry point: one Vocabulary, one
// KnowledgeBase, one rule/graph/scope set (spec §3 "Ownership &
// lifecycles"). Not safe for concurrent use from multiple goroutines;
// callers wanting parallelism construct independent Sessions (spec §5).
type Session struct {
	inner *session.Session
}

// New constructs a Session from cfg (nil selects DefaultConfig()),
// optionally preloading the bundled Core theory pack (spec §4.9).
func New(cfg *Config) (*Session, error) {
	inner, err := session.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Session{inner: inner}, nil
}

// Learn implements learn(text) (spec §6): parse externally, then submit
// the resulting Program here. All-or-nothing: a contradiction or
// validation error rolls back every statement in prog, including ones
// that individually would have succeeded.
func (s *Session) Learn(prog Program) (*LearnResult, error) {
	return s.inner.Learn(prog)
}

// Query implements query(text) (spec §6): stmt must carry at least one
// Hole and no more than the configured max_holes_per_query.
func (s *Session) Query(ctx context.Context, stmt Statement, opts QueryOptions) (*QueryResult, error) {
	return s.inner.Query(ctx, stmt, opts)
}

// Prove implements prove(text) (spec §6): goal must carry no holes.
func (s *Session) Prove(ctx context.Context, goal Statement, opts ProveOptions) *ProveResult {
	return s.inner.Prove(ctx, goal, opts)
}

// Solve implements solve(problem) (spec §6): stores each supplied
// candidate solution as a planStep/planAction/cspSolution fact. The
// CSP/planning search that produces the candidates is an external
// collaborator's job (spec §4.9).
func (s *Session) Solve(problem SolveProblem) (*SolveResult, error) {
	return s.inner.Solve(problem)
}

// Dump implements dump() (spec §6): a snapshot of session geometry,
// strategy, sizes, and reasoning stats.
func (s *Session) Dump() DumpInfo {
	return s.inner.Dump()
}

// Similarity implements similarity(a,b) (spec §6).
func (s *Session) Similarity(a, b string) (float64, error) {
	return s.inner.Similarity(a, b)
}

// Decode implements decode(vec) (spec §6).
func (s *Session) Decode(vec Vector, topK int) (*Structure, error) {
	return s.inner.Decode(vec, topK)
}

// Summarize implements summarize(vec) (spec §6).
func (s *Session) Summarize(vec Vector) (string, error) {
	return s.inner.Summarize(vec)
}

// Save persists the session's vocabulary and knowledge base to the
// configured storage adapter under key (spec §6 "Storage (delegated)").
func (s *Session) Save(ctx context.Context, key string) error {
	return s.inner.Save(ctx, key)
}

// Load restores the vocabulary and knowledge base previously saved under
// key, replacing the session's current facts and atoms. Reports false if
// no snapshot exists under key.
func (s *Session) Load(ctx context.Context, key string) (bool, error) {
	return s.inner.Load(ctx, key)
}

// Close implements close() (spec §6).
func (s *Session) Close() error {
	return s.inner.Close()
}
