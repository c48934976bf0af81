// Package vocab implements the atom vocabulary (§4.2): the name<->vector
// mapping a Session uses to resolve identifiers to deterministic vectors
// and to decode candidate vectors back to names.
package vocab

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/logging"
)

// Match is a reverse_lookup candidate: an atom name paired with its
// similarity to the probe vector.
type Match struct {
	Name       string
	Similarity float64
}

// Vocabulary owns the atom name -> vector table and its reverse index,
// plus the Pos1..Pos20 position-vector cache and the operator cache.
// Exclusively owned by a Session (spec §3 "Ownership & lifecycles").
type Vocabulary struct {
	mu       sync.RWMutex
	strategy hdc.Strategy
	geometry int

	byName map[string]hdc.Vector
	// order preserves insertion order for deterministic reverse_lookup
	// tie-breaking.
	order []string

	positions map[int]hdc.Vector
	operators map[string]hdc.Vector
}

// MaxPosition is the highest supported position index (spec §5 max_positions=20).
const MaxPosition = 20

// New constructs an empty Vocabulary bound to strategy at geometry.
func New(strategy hdc.Strategy, geometry int) (*Vocabulary, error) {
	if err := strategy.Validate(geometry); err != nil {
		return nil, err
	}
	v := &Vocabulary{
		strategy:  strategy,
		geometry:  geometry,
		byName:    make(map[string]hdc.Vector),
		positions: make(map[int]hdc.Vector),
		operators: make(map[string]hdc.Vector),
	}
	for i := 1; i <= MaxPosition; i++ {
		vec, err := strategy.CreateFromName(fmt.Sprintf("__Pos%d", i), geometry)
		if err != nil {
			return nil, fmt.Errorf("vocab: building position vector %d: %w", i, err)
		}
		v.positions[i] = vec
	}
	return v, nil
}

// GetOrCreate returns the deterministic vector for name, creating and
// caching it on first use. Idempotent: identical name always yields the
// identical cached vector within this Vocabulary's lifetime.
func (v *Vocabulary) GetOrCreate(name string) (hdc.Vector, error) {
	v.mu.RLock()
	if vec, ok := v.byName[name]; ok {
		v.mu.RUnlock()
		return vec, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	if vec, ok := v.byName[name]; ok {
		return vec, nil
	}
	vec, err := v.strategy.CreateFromName(name, v.geometry)
	if err != nil {
		return nil, fmt.Errorf("vocab: creating atom %q: %w", name, err)
	}
	v.byName[name] = vec
	v.order = append(v.order, name)
	logging.Named(logging.CategoryVocab).Debugw("atom created", "name", name, "size", len(v.byName))
	return vec, nil
}

// Lookup returns the vector already cached for name, without creating it.
func (v *Vocabulary) Lookup(name string) (hdc.Vector, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vec, ok := v.byName[name]
	return vec, ok
}

// Size returns the number of distinct atoms currently cached.
func (v *Vocabulary) Size() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.byName)
}

// Names returns every cached atom name in insertion order, for a storage
// adapter to persist; atoms are deterministic functions of name and
// geometry, so a reload only needs the names, not the vector bytes.
func (v *Vocabulary) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, len(v.order))
	copy(names, v.order)
	return names
}

// Snapshot returns the number of cached atoms, for transaction snapshots
// (spec §4.9 step 3: counts, not deep copies, since the atom cache is
// append-only and never mutates an existing entry).
func (v *Vocabulary) Snapshot() int {
	return v.Size()
}

// Rollback truncates the vocabulary back to a prior snapshot count.
// Names are append-only in v.order, so truncating both the order slice
// and the byName map to the snapshot length restores exact prior state
// because GetOrCreate never mutates an existing atom's vector.
func (v *Vocabulary) Rollback(snapshot int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if snapshot >= len(v.order) {
		return
	}
	for _, name := range v.order[snapshot:] {
		delete(v.byName, name)
	}
	v.order = v.order[:snapshot]
}

// PositionVector returns Pos_i for i in [1,MaxPosition].
func (v *Vocabulary) PositionVector(i int) (hdc.Vector, error) {
	if i < 1 || i > MaxPosition {
		return nil, fmt.Errorf("vocab: position index %d out of range [1,%d]", i, MaxPosition)
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.positions[i], nil
}

// OperatorVector returns the cached vector for an operator (verb) atom,
// creating it via GetOrCreate on first use and remembering it separately
// so callers needing "all known operators" need not scan the full atom
// table.
func (v *Vocabulary) OperatorVector(op string) (hdc.Vector, error) {
	vec, err := v.GetOrCreate(op)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.operators[op] = vec
	v.mu.Unlock()
	return vec, nil
}

// HashVector returns the stable content signature used for reverse
// lookup and memoization keys.
func (v *Vocabulary) HashVector(vec hdc.Vector) hdc.VectorHash {
	return vec.Hash()
}

// ReverseLookup scans known atoms and returns the top_k whose similarity
// to probe is at or above the strategy's orthogonality threshold, most
// similar first; ties break by insertion order.
func (v *Vocabulary) ReverseLookup(probe hdc.Vector, topK int) ([]Match, error) {
	thresholds := v.strategy.Thresholds()
	v.mu.RLock()
	names := make([]string, len(v.order))
	copy(names, v.order)
	v.mu.RUnlock()

	matches := make([]Match, 0, len(names))
	for _, name := range names {
		v.mu.RLock()
		vec := v.byName[name]
		v.mu.RUnlock()
		sim, err := v.strategy.Similarity(probe, vec)
		if err != nil {
			return nil, fmt.Errorf("vocab: reverse_lookup similarity for %q: %w", name, err)
		}
		if sim >= thresholds.Orthogonality {
			matches = append(matches, Match{Name: name, Similarity: sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Strategy returns the strategy this vocabulary was constructed with.
func (v *Vocabulary) Strategy() hdc.Strategy { return v.strategy }

// Geometry returns this vocabulary's vector geometry.
func (v *Vocabulary) Geometry() int { return v.geometry }
