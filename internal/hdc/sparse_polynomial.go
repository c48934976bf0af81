package hdc

import (
	"encoding/binary"
	"fmt"
	"sort"
)

func init() {
	Register(sparsePolynomialStrategy{})
}

// sparsePolynomialVector represents a sparse polynomial over GF(2): the
// set of exponents (positions) whose coefficient is 1, out of a modulus
// used as the strategy's geometry. Kept sorted and deduplicated.
type sparsePolynomialVector struct {
	modulus   int
	exponents []int32
}

func (v *sparsePolynomialVector) Strategy() string { return "sparse-polynomial" }
func (v *sparsePolynomialVector) Geometry() int    { return v.modulus }

func (v *sparsePolynomialVector) Hash() VectorHash {
	var h VectorHash
	if len(v.exponents) > 0 {
		binary.LittleEndian.PutUint32(h[0:4], uint32(v.exponents[0]))
	}
	if len(v.exponents) > 1 {
		binary.LittleEndian.PutUint32(h[4:8], uint32(v.exponents[1]))
	}
	return h
}

// sparsePolynomialStrategy implements the sparse-polynomial HDC codec:
// vectors are fixed-density exponent sets, bind is symmetric difference
// (self-inverse), bundle keeps the most frequent exponents.
type sparsePolynomialStrategy struct{}

func (sparsePolynomialStrategy) ID() string          { return "sparse-polynomial" }
func (sparsePolynomialStrategy) DefaultGeometry() int { return 4096 }

const sparseDensity = 32 // number of "on" exponents per vector

func (sparsePolynomialStrategy) Validate(geometry int) error {
	if geometry < sparseDensity*4 {
		return &ErrGeometry{Strategy: "sparse-polynomial", Geometry: geometry, Reason: fmt.Sprintf("modulus must be at least %d to keep density sparse", sparseDensity*4)}
	}
	return nil
}

func (s sparsePolynomialStrategy) CreateFromName(name string, geometry int) (Vector, error) {
	if err := s.Validate(geometry); err != nil {
		return nil, err
	}
	seed := fnv64a(name)
	seen := make(map[int32]struct{}, sparseDensity)
	exps := make([]int32, 0, sparseDensity)
	for len(exps) < sparseDensity {
		seed = splitmix64(seed)
		e := int32(seed % uint64(geometry))
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		exps = append(exps, e)
	}
	sort.Slice(exps, func(i, j int) bool { return exps[i] < exps[j] })
	return &sparsePolynomialVector{modulus: geometry, exponents: exps}, nil
}

func (s sparsePolynomialStrategy) asSparse(v Vector) (*sparsePolynomialVector, error) {
	sv, ok := v.(*sparsePolynomialVector)
	if !ok {
		return nil, &ErrStrategyMismatch{Want: "sparse-polynomial", Got: v.Strategy()}
	}
	return sv, nil
}

// Bind computes the symmetric difference of the two exponent sets, which
// is its own inverse: Bind(Bind(a,b),b) == a exactly.
func (s sparsePolynomialStrategy) Bind(a, b Vector) (Vector, error) {
	sa, err := s.asSparse(a)
	if err != nil {
		return nil, err
	}
	sb, err := s.asSparse(b)
	if err != nil {
		return nil, err
	}
	if sa.modulus != sb.modulus {
		return nil, &ErrGeometry{Strategy: "sparse-polynomial", Geometry: sb.modulus, Reason: "bind operands have mismatched modulus"}
	}
	set := make(map[int32]bool, len(sa.exponents)+len(sb.exponents))
	for _, e := range sa.exponents {
		set[e] = !set[e]
	}
	for _, e := range sb.exponents {
		set[e] = !set[e]
	}
	out := make([]int32, 0, len(set))
	for e, on := range set {
		if on {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return &sparsePolynomialVector{modulus: sa.modulus, exponents: out}, nil
}

// Bundle keeps, out of every exponent seen across vs, the sparseDensity
// most frequently occurring ones; ties break toward the smaller exponent
// so the result is deterministic regardless of input order beyond ties.
func (s sparsePolynomialStrategy) Bundle(vs []Vector) (Vector, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("hdc: bundle requires at least one vector")
	}
	first, err := s.asSparse(vs[0])
	if err != nil {
		return nil, err
	}
	modulus := first.modulus
	counts := make(map[int32]int)
	for _, v := range vs {
		sv, err := s.asSparse(v)
		if err != nil {
			return nil, err
		}
		if sv.modulus != modulus {
			return nil, &ErrGeometry{Strategy: "sparse-polynomial", Geometry: sv.modulus, Reason: "bundle operands have mismatched modulus"}
		}
		for _, e := range sv.exponents {
			counts[e]++
		}
	}
	type pair struct {
		exp   int32
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for e, c := range counts {
		pairs = append(pairs, pair{e, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].exp < pairs[j].exp
	})
	n := sparseDensity
	if n > len(pairs) {
		n = len(pairs)
	}
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = pairs[i].exp
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return &sparsePolynomialVector{modulus: modulus, exponents: out}, nil
}

// Similarity is the Jaccard index of the two exponent sets.
func (s sparsePolynomialStrategy) Similarity(a, b Vector) (float64, error) {
	sa, err := s.asSparse(a)
	if err != nil {
		return 0, err
	}
	sb, err := s.asSparse(b)
	if err != nil {
		return 0, err
	}
	setA := make(map[int32]struct{}, len(sa.exponents))
	for _, e := range sa.exponents {
		setA[e] = struct{}{}
	}
	intersect := 0
	for _, e := range sb.exponents {
		if _, ok := setA[e]; ok {
			intersect++
		}
	}
	union := len(sa.exponents) + len(sb.exponents) - intersect
	if union == 0 {
		return 1.0, nil
	}
	return float64(intersect) / float64(union), nil
}

func (s sparsePolynomialStrategy) Extend(v Vector, newGeometry int) (Vector, error) {
	sv, err := s.asSparse(v)
	if err != nil {
		return nil, err
	}
	if newGeometry < sv.modulus {
		return nil, &ErrGeometry{Strategy: "sparse-polynomial", Geometry: newGeometry, Reason: "extend cannot shrink modulus"}
	}
	if err := s.Validate(newGeometry); err != nil {
		return nil, err
	}
	out := make([]int32, len(sv.exponents))
	copy(out, sv.exponents)
	return &sparsePolynomialVector{modulus: newGeometry, exponents: out}, nil
}

func (s sparsePolynomialStrategy) Serialize(v Vector) ([]byte, error) {
	sv, err := s.asSparse(v)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 8+4*len(sv.exponents))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(sv.modulus))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(sv.exponents)))
	for i, e := range sv.exponents {
		binary.LittleEndian.PutUint32(buf[8+4*i:], uint32(e))
	}
	return buf, nil
}

func (s sparsePolynomialStrategy) Deserialize(data []byte) (Vector, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("hdc: sparse-polynomial payload too short")
	}
	modulus := int(binary.LittleEndian.Uint32(data[0:4]))
	count := int(binary.LittleEndian.Uint32(data[4:8]))
	if len(data) != 8+4*count {
		return nil, fmt.Errorf("hdc: sparse-polynomial payload length mismatch")
	}
	exps := make([]int32, count)
	for i := range exps {
		exps[i] = int32(binary.LittleEndian.Uint32(data[8+4*i:]))
	}
	return &sparsePolynomialVector{modulus: modulus, exponents: exps}, nil
}

func (sparsePolynomialStrategy) Thresholds() Thresholds {
	return Thresholds{
		DirectMatch:         0.30,
		StrongMatch:         0.45,
		VeryStrongMatch:     0.65,
		RuleConfidence:      0.9,
		ConditionConfidence: 0.85,
		ConfidenceDecay:     0.9,
		Orthogonality:       0.08,
	}
}
