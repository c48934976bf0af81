package session

import (
	"context"
	"fmt"
	"os"

	"github.com/sys2dsl/engine/internal/executor"
	"github.com/sys2dsl/engine/internal/kb"
	"github.com/sys2dsl/engine/internal/semantic"
	"github.com/sys2dsl/engine/internal/storage"
	"github.com/sys2dsl/engine/internal/symbolic"
	"github.com/sys2dsl/engine/internal/vocab"
)

// Save implements the persistence half of spec §6 "Storage (delegated)":
// encode the vocabulary and KB as a byte-stable snapshot and hand it to
// the configured storage.Adapter under key.
func (s *Session) Save(ctx context.Context, key string) error {
	if s.closed {
		return &InternalError{Invariant: "session_open", Message: "session is closed"}
	}
	data, err := storage.Encode(s.strategy, storage.Snapshot{
		StrategyID: s.strategy.ID(),
		Geometry:   s.vocabulary.Geometry(),
		VocabNames: s.vocabulary.Names(),
		Facts:      s.base.Facts(),
	})
	if err != nil {
		return fmt.Errorf("session: encoding snapshot: %w", err)
	}
	if err := s.storage.Save(ctx, key, data); err != nil {
		return fmt.Errorf("session: saving snapshot %q: %w", key, err)
	}
	return nil
}

// Load restores the vocabulary and KB from the snapshot stored under key,
// replacing the session's current facts and atoms (spec §6). Rules and
// graphs registered via learn()'s Rule/Graph blocks are not part of the
// persisted snapshot; a caller that needs them back replays the theory
// text that declared them.
func (s *Session) Load(ctx context.Context, key string) (bool, error) {
	if s.closed {
		return false, &InternalError{Invariant: "session_open", Message: "session is closed"}
	}
	data, found, err := s.storage.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("session: loading snapshot %q: %w", key, err)
	}
	if !found {
		return false, nil
	}
	snap, err := storage.Decode(s.strategy, data)
	if err != nil {
		return false, fmt.Errorf("session: decoding snapshot %q: %w", key, err)
	}
	return true, s.applySnapshot(snap)
}

// applySnapshot rebuilds the vocabulary and KB from snap in original
// insertion order, replaying each fact through AddFact/refreshSemantics so
// the semantic index and operator registry end up exactly as they would
// from a live learn() of the same facts (spec §235 byte-stable reload).
func (s *Session) applySnapshot(snap storage.Snapshot) error {
	if snap.Geometry != s.vocabulary.Geometry() {
		return fmt.Errorf("session: snapshot geometry %d does not match session geometry %d", snap.Geometry, s.vocabulary.Geometry())
	}
	newVocab, err := vocab.New(s.strategy, snap.Geometry)
	if err != nil {
		return fmt.Errorf("session: rebuilding vocabulary: %w", err)
	}
	for _, name := range snap.VocabNames {
		if _, err := newVocab.GetOrCreate(name); err != nil {
			return fmt.Errorf("session: recreating atom %q: %w", name, err)
		}
	}
	newBase := kb.New(s.strategy)
	newExec := executor.New(newVocab)

	s.vocabulary = newVocab
	s.exec = newExec
	s.base = newBase
	s.canon = semantic.NewCanonicalizer()
	s.semIndex = s.canon.Rebuild(nil)
	s.exec.SetSemanticIndex(s.semIndex)
	s.detector.SetIndex(s.semIndex)
	s.knownOperators = make(map[string]bool)
	s.operatorOrder = nil
	s.rules = nil
	s.graphs = make(map[string]*Graph)
	s.graphOrder = nil
	s.datalog = symbolic.New()

	for _, f := range snap.Facts {
		if err := s.base.AddFact(f, s.detector); err != nil {
			return fmt.Errorf("session: replaying fact %s: %w", f.ID, err)
		}
		s.markOperatorKnown(f.Operator)
		s.refreshSemantics()
	}
	return nil
}

// reloadSnapshotFile is the TheoryPackWatcher callback: the theory-pack
// directory holds this package's own snapshot blobs (§6 codec), one per
// watched file, so a changed file is read and applied directly rather
// than parsed as DSL source (parsing the on-disk theory-pack's concrete
// format is an external collaborator's job per spec §1 Non-goals).
func (s *Session) reloadSnapshotFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("session: reading theory pack file %s: %w", path, err)
	}
	snap, err := storage.Decode(s.strategy, data)
	if err != nil {
		return fmt.Errorf("session: decoding theory pack file %s: %w", path, err)
	}
	return s.applySnapshot(snap)
}
