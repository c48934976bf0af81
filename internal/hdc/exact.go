package hdc

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

func init() {
	Register(exactStrategy{})
}

// exactVector is a structural term: either a named atom, a Bind node
// (value bound under a role, which cancels when bound again under the
// same role), or a Bundle node (an unordered, deduplicated set of
// children). Geometry is nominal; exact is not approximate.
type exactVector struct {
	kind     exactKind
	name     string
	value    *exactVector
	role     *exactVector
	children []*exactVector
	geometry int
}

type exactKind int

const (
	exactAtom exactKind = iota
	exactBind
	exactBundle
)

func (v *exactVector) Strategy() string { return "exact" }
func (v *exactVector) Geometry() int    { return v.geometry }

func (v *exactVector) Hash() VectorHash {
	var h VectorHash
	s := v.canonicalString()
	sum := fnv64a(s)
	binary.LittleEndian.PutUint64(h[:], sum)
	return h
}

func (v *exactVector) canonicalString() string {
	switch v.kind {
	case exactAtom:
		return "A(" + v.name + ")"
	case exactBind:
		return "B(" + v.value.canonicalString() + "," + v.role.canonicalString() + ")"
	case exactBundle:
		parts := make([]string, len(v.children))
		for i, c := range v.children {
			parts[i] = c.canonicalString()
		}
		sort.Strings(parts)
		return "U(" + strings.Join(parts, "|") + ")"
	}
	return ""
}

func (v *exactVector) leafAtoms(out map[string]struct{}) {
	switch v.kind {
	case exactAtom:
		out[v.name] = struct{}{}
	case exactBind:
		v.value.leafAtoms(out)
		v.role.leafAtoms(out)
	case exactBundle:
		for _, c := range v.children {
			c.leafAtoms(out)
		}
	}
}

// exactStrategy implements the exact (structural) HDC codec: no
// approximation, vectors are exact symbolic terms. This is the FS-stated
// default strategy id (spec §4.1, §9).
type exactStrategy struct{}

func (exactStrategy) ID() string          { return "exact" }
func (exactStrategy) DefaultGeometry() int { return 0 }

func (exactStrategy) Validate(geometry int) error { return nil }

func (s exactStrategy) CreateFromName(name string, geometry int) (Vector, error) {
	return &exactVector{kind: exactAtom, name: name, geometry: geometry}, nil
}

func (s exactStrategy) asExact(v Vector) (*exactVector, error) {
	ev, ok := v.(*exactVector)
	if !ok {
		return nil, &ErrStrategyMismatch{Want: "exact", Got: v.Strategy()}
	}
	return ev, nil
}

// Bind wraps a under role b, unless a is already Bind(x,b), in which
// case it cancels structurally back to x — an exact involution.
func (s exactStrategy) Bind(a, b Vector) (Vector, error) {
	ea, err := s.asExact(a)
	if err != nil {
		return nil, err
	}
	eb, err := s.asExact(b)
	if err != nil {
		return nil, err
	}
	if ea.kind == exactBind && ea.role.canonicalString() == eb.canonicalString() {
		return ea.value, nil
	}
	return &exactVector{kind: exactBind, value: ea, role: eb, geometry: ea.geometry}, nil
}

// Bundle collects children into a deduplicated, unordered set.
func (s exactStrategy) Bundle(vs []Vector) (Vector, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("hdc: bundle requires at least one vector")
	}
	seen := make(map[string]*exactVector)
	var children []*exactVector
	geometry := 0
	for _, v := range vs {
		ev, err := s.asExact(v)
		if err != nil {
			return nil, err
		}
		geometry = ev.geometry
		key := ev.canonicalString()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = ev
		children = append(children, ev)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &exactVector{kind: exactBundle, children: children, geometry: geometry}, nil
}

// Similarity is 1.0 for structurally identical terms, otherwise the
// Jaccard index of their flattened leaf-atom sets — a partial signal
// useful for ranking reverse_lookup candidates even without an exact hit.
func (s exactStrategy) Similarity(a, b Vector) (float64, error) {
	ea, err := s.asExact(a)
	if err != nil {
		return 0, err
	}
	eb, err := s.asExact(b)
	if err != nil {
		return 0, err
	}
	if ea.canonicalString() == eb.canonicalString() {
		return 1.0, nil
	}
	leavesA := make(map[string]struct{})
	leavesB := make(map[string]struct{})
	ea.leafAtoms(leavesA)
	eb.leafAtoms(leavesB)
	intersect := 0
	for k := range leavesA {
		if _, ok := leavesB[k]; ok {
			intersect++
		}
	}
	union := len(leavesA) + len(leavesB) - intersect
	if union == 0 {
		return 1.0, nil
	}
	return float64(intersect) / float64(union), nil
}

func (s exactStrategy) Extend(v Vector, newGeometry int) (Vector, error) {
	ev, err := s.asExact(v)
	if err != nil {
		return nil, err
	}
	clone := *ev
	clone.geometry = newGeometry
	return &clone, nil
}

func (s exactStrategy) Serialize(v Vector) ([]byte, error) {
	ev, err := s.asExact(v)
	if err != nil {
		return nil, err
	}
	return []byte(ev.canonicalString()), nil
}

// Deserialize only reconstructs atom terms from their canonical "A(name)"
// form; structural Bind/Bundle terms are not round-tripped through bytes
// since the exact strategy exists to keep structure, not to serialize it
// compactly. Higher layers needing durable exact-strategy storage persist
// the originating statement instead.
func (s exactStrategy) Deserialize(data []byte) (Vector, error) {
	str := string(data)
	if strings.HasPrefix(str, "A(") && strings.HasSuffix(str, ")") {
		return &exactVector{kind: exactAtom, name: str[2 : len(str)-1]}, nil
	}
	return nil, fmt.Errorf("hdc: exact strategy can only deserialize atom terms, got %q", str)
}

func (exactStrategy) Thresholds() Thresholds {
	return Thresholds{
		DirectMatch:         1.0,
		StrongMatch:         1.0,
		VeryStrongMatch:     1.0,
		RuleConfidence:      1.0,
		ConditionConfidence: 1.0,
		ConfidenceDecay:     1.0,
		Orthogonality:       0.0,
	}
}
