// Package hdc provides the pluggable hyperdimensional-computing strategy
// layer: a Vector type opaque to every higher layer, and the algebraic
// operations (bind, bundle, similarity, extend) a strategy must supply.
// Strategies are registered in a table keyed by a stable string id and
// selected once, at session construction.
package hdc

import "fmt"

// VectorHash is a stable signature of a Vector's content, used for
// vocabulary reverse lookup and proof memoization keys. Two vectors that
// represent distinct atoms above the strategy's orthogonality threshold
// must not collide.
type VectorHash [8]byte

// Vector is produced and consumed only by the Strategy that created it.
// Higher layers treat it as opaque and must not inspect its internals.
type Vector interface {
	// Strategy returns the id of the strategy that owns this vector.
	Strategy() string
	// Geometry returns the vector's dimension/bit-length/term-count,
	// whichever the owning strategy uses as its size parameter.
	Geometry() int
	// Hash returns the vector's stable content signature.
	Hash() VectorHash
}

// Thresholds are strategy-scoped similarity cutoffs, read by higher layers
// through Strategy.Thresholds(). ConfidenceDecay is the exception: the
// proof engine applies its own fixed proof.ConfidenceDecay instead.
type Thresholds struct {
	DirectMatch     float64 // lenient existence threshold
	StrongMatch     float64 // weak-match heuristic (proof step 15)
	VeryStrongMatch float64 // direct-match heuristic (proof step 6)
	RuleConfidence  float64 // initial confidence assigned to a rule application
	ConditionConfidence float64 // initial confidence assigned to a premise match
	ConfidenceDecay float64 // multiplier applied per chained rule application
	Orthogonality   float64 // similarity below which two atoms are considered unrelated
}

// Strategy is a pluggable HDC codec: a vector type plus the algebra and
// thresholds needed by the executor, knowledge base, and proof/query
// engines.
type Strategy interface {
	// ID is the stable string key this strategy is registered under.
	ID() string
	// DefaultGeometry is the strategy's recommended dimension when the
	// caller does not specify one.
	DefaultGeometry() int
	// Validate reports whether geometry is acceptable for this strategy
	// (e.g. dense-binary requires a multiple of 32).
	Validate(geometry int) error
	// CreateFromName deterministically derives a Vector from the byte
	// representation of name: same name and geometry always produce an
	// identical vector, across runs and machines.
	CreateFromName(name string, geometry int) (Vector, error)
	// Bind combines a value with a role/position. It must satisfy
	// Bind(Bind(a,b),b) ~= a up to the strategy's similarity threshold.
	Bind(a, b Vector) (Vector, error)
	// Bundle superposes one or more vectors into one that is similar to
	// every input, with similarity decreasing as N grows. Commutative
	// and associative up to deterministic tie-breaks.
	Bundle(vs []Vector) (Vector, error)
	// Similarity returns a normalized score in [0,1]: 1.0 for identical
	// vectors, near 0 for orthogonal ones.
	Similarity(a, b Vector) (float64, error)
	// Extend losslessly upsizes v to newGeometry.
	Extend(v Vector, newGeometry int) (Vector, error)
	// Serialize produces a byte-stable encoding of v.
	Serialize(v Vector) ([]byte, error)
	// Deserialize is the inverse of Serialize.
	Deserialize(data []byte) (Vector, error)
	// Thresholds returns this strategy's similarity cutoffs.
	Thresholds() Thresholds
}

// ErrGeometry indicates a strategy rejected a geometry value during
// Validate, CreateFromName, or Extend.
type ErrGeometry struct {
	Strategy string
	Geometry int
	Reason   string
}

func (e *ErrGeometry) Error() string {
	return fmt.Sprintf("hdc: strategy %s rejects geometry %d: %s", e.Strategy, e.Geometry, e.Reason)
}

// ErrStrategyMismatch indicates an operation received vectors from two
// different strategies.
type ErrStrategyMismatch struct {
	Want, Got string
}

func (e *ErrStrategyMismatch) Error() string {
	return fmt.Sprintf("hdc: strategy mismatch: want %s, got %s", e.Want, e.Got)
}
