package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/sys2dsl/engine/internal/hdc"
	"github.com/sys2dsl/engine/internal/kb"
)

// magic tags a snapshot blob as this package's format, so a Load against
// foreign bytes fails fast instead of silently misparsing (spec §235
// "byte format is strategy-versioned with a magic header").
var magic = [4]byte{'S', '2', 'D', 'B'}

const formatVersion = 1

// Snapshot is the full byte-stable unit persisted for one Session: the
// strategy/geometry pair a reload must match, the vocabulary's atom
// names (vectors are deterministically re-derived from these, never
// persisted raw), and every KB fact in original insertion order.
type Snapshot struct {
	StrategyID string
	Geometry   int
	VocabNames []string
	Facts      []kb.Fact
}

// factRecord is Fact's wire shape: Vector is stored as strategy-opaque
// bytes via Strategy.Serialize rather than JSON-marshaled directly.
type factRecord struct {
	ID         string
	Operator   string
	Args       []string
	Vector     []byte
	Metadata   kb.CanonicalMetadata
	SourceRule string
}

// Encode renders snap as a byte-stable blob: magic, version, strategy id,
// geometry, vocab names, then facts in their given order. Fact ordering
// is never reordered or deduplicated so reloaded KB bundles are
// byte-identical to what was saved (spec §235).
func Encode(strategy hdc.Strategy, snap Snapshot) ([]byte, error) {
	records := make([]factRecord, len(snap.Facts))
	for i, f := range snap.Facts {
		vecBytes, err := strategy.Serialize(f.Vector)
		if err != nil {
			return nil, fmt.Errorf("storage: serializing fact %s vector: %w", f.ID, err)
		}
		records[i] = factRecord{
			ID: f.ID, Operator: f.Operator, Args: f.Args,
			Vector: vecBytes, Metadata: f.Metadata, SourceRule: f.SourceRule,
		}
	}
	payload, err := json.Marshal(struct {
		VocabNames []string
		Facts      []factRecord
	}{VocabNames: snap.VocabNames, Facts: records})
	if err != nil {
		return nil, fmt.Errorf("storage: marshaling snapshot payload: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	binary.Write(&buf, binary.BigEndian, uint32(formatVersion))
	writeString(&buf, snap.StrategyID)
	binary.Write(&buf, binary.BigEndian, uint32(snap.Geometry))
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode is Encode's inverse. strategy must be the same strategy id the
// blob was encoded with; Decode rejects a mismatch rather than silently
// reinterpreting vectors under the wrong algebra.
func Decode(strategy hdc.Strategy, data []byte) (Snapshot, error) {
	r := bytes.NewReader(data)
	var gotMagic [4]byte
	if _, err := r.Read(gotMagic[:]); err != nil || gotMagic != magic {
		return Snapshot{}, fmt.Errorf("storage: not a snapshot blob (bad magic)")
	}
	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return Snapshot{}, fmt.Errorf("storage: reading format version: %w", err)
	}
	if version != formatVersion {
		return Snapshot{}, fmt.Errorf("storage: unsupported snapshot format version %d", version)
	}
	strategyID, err := readString(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("storage: reading strategy id: %w", err)
	}
	if strategyID != strategy.ID() {
		return Snapshot{}, fmt.Errorf("storage: snapshot strategy %q does not match loader strategy %q", strategyID, strategy.ID())
	}
	var geometry uint32
	if err := binary.Read(r, binary.BigEndian, &geometry); err != nil {
		return Snapshot{}, fmt.Errorf("storage: reading geometry: %w", err)
	}

	var body struct {
		VocabNames []string
		Facts      []factRecord
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return Snapshot{}, fmt.Errorf("storage: decoding snapshot payload: %w", err)
	}

	facts := make([]kb.Fact, len(body.Facts))
	for i, rec := range body.Facts {
		vec, err := strategy.Deserialize(rec.Vector)
		if err != nil {
			return Snapshot{}, fmt.Errorf("storage: deserializing fact %s vector: %w", rec.ID, err)
		}
		facts[i] = kb.Fact{
			ID: rec.ID, Operator: rec.Operator, Args: rec.Args,
			Vector: vec, Metadata: rec.Metadata, SourceRule: rec.SourceRule,
		}
	}
	return Snapshot{
		StrategyID: strategyID,
		Geometry:   int(geometry),
		VocabNames: body.VocabNames,
		Facts:      facts,
	}, nil
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}
