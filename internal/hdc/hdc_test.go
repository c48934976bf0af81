package hdc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func allStrategies(t *testing.T) []Strategy {
	t.Helper()
	var out []Strategy
	for _, id := range []string{"dense-binary", "sparse-polynomial", "metric-affine", "exact"} {
		s, err := Get(id)
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func TestCreateFromNameDeterministic(t *testing.T) {
	for _, s := range allStrategies(t) {
		geom := s.DefaultGeometry()
		if geom == 0 {
			geom = 8
		}
		a, err := s.CreateFromName("Fido", geom)
		require.NoError(t, err)
		b, err := s.CreateFromName("Fido", geom)
		require.NoError(t, err)
		sim, err := s.Similarity(a, b)
		require.NoError(t, err)
		require.InDelta(t, 1.0, sim, 1e-9, "strategy %s: same name must produce identical vectors", s.ID())
	}
}

func TestCreateFromNameOrthogonality(t *testing.T) {
	for _, s := range allStrategies(t) {
		geom := s.DefaultGeometry()
		if geom == 0 {
			geom = 8
		}
		a, err := s.CreateFromName("Fido", geom)
		require.NoError(t, err)
		b, err := s.CreateFromName("TotallyUnrelatedConceptXYZ", geom)
		require.NoError(t, err)
		sim, err := s.Similarity(a, b)
		require.NoError(t, err)
		require.Less(t, sim, 0.9, "strategy %s: distinct names should not be near-identical", s.ID())
	}
}

func TestBindSelfInverse(t *testing.T) {
	for _, s := range allStrategies(t) {
		geom := s.DefaultGeometry()
		if geom == 0 {
			geom = 8
		}
		a, err := s.CreateFromName("value", geom)
		require.NoError(t, err)
		role, err := s.CreateFromName("role", geom)
		require.NoError(t, err)

		bound, err := s.Bind(a, role)
		require.NoError(t, err)
		unbound, err := s.Bind(bound, role)
		require.NoError(t, err)

		sim, err := s.Similarity(a, unbound)
		require.NoError(t, err)
		require.GreaterOrEqual(t, sim, 1.0-1e-6, "strategy %s: Bind(Bind(a,b),b) must equal a", s.ID())
	}
}

func TestBundleSimilarToEachInput(t *testing.T) {
	for _, s := range allStrategies(t) {
		geom := s.DefaultGeometry()
		if geom == 0 {
			geom = 8
		}
		a, err := s.CreateFromName("alpha", geom)
		require.NoError(t, err)
		b, err := s.CreateFromName("beta", geom)
		require.NoError(t, err)

		bundled, err := s.Bundle([]Vector{a, b})
		require.NoError(t, err)

		simA, err := s.Similarity(bundled, a)
		require.NoError(t, err)
		simB, err := s.Similarity(bundled, b)
		require.NoError(t, err)
		require.Greater(t, simA, s.Thresholds().Orthogonality, "strategy %s: bundle must stay similar to first input", s.ID())
		require.Greater(t, simB, s.Thresholds().Orthogonality, "strategy %s: bundle must stay similar to second input", s.ID())
	}
}

func TestBundleDeterministic(t *testing.T) {
	for _, s := range allStrategies(t) {
		geom := s.DefaultGeometry()
		if geom == 0 {
			geom = 8
		}
		a, _ := s.CreateFromName("alpha", geom)
		b, _ := s.CreateFromName("beta", geom)
		c, _ := s.CreateFromName("gamma", geom)

		first, err := s.Bundle([]Vector{a, b, c})
		require.NoError(t, err)
		second, err := s.Bundle([]Vector{a, b, c})
		require.NoError(t, err)

		sim, err := s.Similarity(first, second)
		require.NoError(t, err)
		require.InDelta(t, 1.0, sim, 1e-9, "strategy %s: bundle must be deterministic", s.ID())
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	for _, s := range allStrategies(t) {
		if s.ID() == "exact" {
			continue // exact only round-trips atom terms, covered separately
		}
		geom := s.DefaultGeometry()
		a, err := s.CreateFromName("roundtrip", geom)
		require.NoError(t, err)

		data, err := s.Serialize(a)
		require.NoError(t, err)
		back, err := s.Deserialize(data)
		require.NoError(t, err)

		sim, err := s.Similarity(a, back)
		require.NoError(t, err)
		require.InDelta(t, 1.0, sim, 1e-9, "strategy %s: serialize/deserialize must round-trip", s.ID())
	}
}

func TestExactSerializeAtomRoundTrip(t *testing.T) {
	s, err := Get("exact")
	require.NoError(t, err)
	a, err := s.CreateFromName("Fido", 0)
	require.NoError(t, err)
	data, err := s.Serialize(a)
	require.NoError(t, err)
	back, err := s.Deserialize(data)
	require.NoError(t, err)
	sim, err := s.Similarity(a, back)
	require.NoError(t, err)
	require.Equal(t, 1.0, sim)
}

func TestDenseBinaryValidateRejectsNonMultipleOf32(t *testing.T) {
	s, err := Get("dense-binary")
	require.NoError(t, err)
	require.Error(t, s.Validate(33))
	require.NoError(t, s.Validate(32768))
}

func TestDenseBinaryExtendLossless(t *testing.T) {
	s, err := Get("dense-binary")
	require.NoError(t, err)
	a, err := s.CreateFromName("extendme", 64)
	require.NoError(t, err)
	ext, err := s.Extend(a, 128)
	require.NoError(t, err)
	require.Equal(t, 128, ext.Geometry())

	// The extended vector must keep the original's bits unchanged over
	// the original bit range: extend is a lossless upsize, not a
	// re-derivation.
	aBytes, err := s.Serialize(a)
	require.NoError(t, err)
	extBytes, err := s.Serialize(ext)
	require.NoError(t, err)
	// Packed words: header (4 bytes) + word data. The original's words
	// must appear unchanged as the prefix of the extended vector's words.
	require.True(t, len(extBytes) > len(aBytes))
	require.Equal(t, aBytes[4:], extBytes[4:4+len(aBytes)-4])
}

func TestRegistryKnowsAllFourStrategies(t *testing.T) {
	ids := IDs()
	require.ElementsMatch(t, []string{"dense-binary", "sparse-polynomial", "metric-affine", "exact"}, ids)
}
