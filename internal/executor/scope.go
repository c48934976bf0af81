package executor

import (
	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/kb"
)

// Binding is what a `$name` reference resolves to: the vector the
// referenced statement produced, plus its canonical metadata so that
// `Not $ref` can preserve the referenced statement's structure instead of
// collapsing to the ref name alone (spec §4.3).
type Binding struct {
	Vector   hdc.Vector
	Metadata kb.CanonicalMetadata
}

// Scope is a stack of named bindings: global -> theory -> session ->
// graph invocation. Resolution walks outward; unknown identifiers
// auto-create atoms unless strict-dependency mode is on (spec §3).
type Scope struct {
	frames []map[string]Binding
	// globalOrder records the order names were bound into the global
	// (frames[0]) frame, so a transaction snapshot/rollback can truncate
	// it the same way vocab.Vocabulary truncates its append-only atom
	// cache (spec §4.9 step 3).
	globalOrder []string
	strict      bool
}

// NewScope constructs a Scope with a single global frame.
func NewScope(strict bool) *Scope {
	return &Scope{frames: []map[string]Binding{make(map[string]Binding)}, strict: strict}
}

// Push opens a new, innermost binding frame (e.g. for a graph invocation).
func (s *Scope) Push() {
	s.frames = append(s.frames, make(map[string]Binding))
}

// Pop discards the innermost binding frame.
func (s *Scope) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Depth reports how many frames are currently pushed, for
// max_nesting_depth enforcement.
func (s *Scope) Depth() int { return len(s.frames) }

// Bind records name -> b in the innermost frame.
func (s *Scope) Bind(name string, b Binding) {
	frame := len(s.frames) - 1
	s.frames[frame][name] = b
	if frame == 0 {
		s.globalOrder = append(s.globalOrder, name)
	}
}

// Resolve walks frames from innermost to outermost looking for name.
func (s *Scope) Resolve(name string) (Binding, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if b, ok := s.frames[i][name]; ok {
			return b, true
		}
	}
	return Binding{}, false
}

// Strict reports whether unknown identifiers must fail instead of
// auto-creating atoms.
func (s *Scope) Strict() bool { return s.strict }

// Snapshot captures the number of names bound into the global frame so
// far, for transaction rollback (spec §4.9). Pushed frames never need
// snapshotting: a graph invocation's Push/Pop already discards them
// wholesale, so only the append-only global frame can leak bindings
// across a failed transaction.
func (s *Scope) Snapshot() int {
	return len(s.globalOrder)
}

// Rollback discards every global-frame binding made after snapshot,
// mirroring vocab.Vocabulary's order-tracked truncation.
func (s *Scope) Rollback(snapshot int) {
	if snapshot >= len(s.globalOrder) {
		return
	}
	for _, name := range s.globalOrder[snapshot:] {
		delete(s.frames[0], name)
	}
	s.globalOrder = s.globalOrder[:snapshot]
}
