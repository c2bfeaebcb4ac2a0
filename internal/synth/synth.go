// Package synth implements the Relationship Synthesizer: given four arrays
// of decoded entities with possibly asymmetric relation data, it populates
// every designated inverse relation so the graph is bidirectionally
// consistent (I2, T1, T2).
package synth

import "github.com/kestrel-labs/workspacegraph/internal/entity"

// Snapshot is the Synthesizer's working set: the four entity arrays,
// addressable by id for the mirroring pass.
type Snapshot struct {
	Characters     []*entity.Character
	Elements       []*entity.Element
	Puzzles        []*entity.Puzzle
	TimelineEvents []*entity.TimelineEvent
}

// index builds an id -> pointer lookup per kind, used to resolve the
// "inverse side" target of a relation pair during mirroring.
type index struct {
	byKind map[entity.Kind]map[string]interface{}
}

func (s *Snapshot) buildIndex() *index {
	idx := &index{byKind: map[entity.Kind]map[string]interface{}{
		entity.KindCharacter:     {},
		entity.KindElement:       {},
		entity.KindPuzzle:        {},
		entity.KindTimelineEvent: {},
	}}
	for _, c := range s.Characters {
		idx.byKind[entity.KindCharacter][c.ID] = c
	}
	for _, e := range s.Elements {
		idx.byKind[entity.KindElement][e.ID] = e
	}
	for _, p := range s.Puzzles {
		idx.byKind[entity.KindPuzzle][p.ID] = p
	}
	for _, t := range s.TimelineEvents {
		idx.byKind[entity.KindTimelineEvent][t.ID] = t
	}
	return idx
}

func (idx *index) entitiesOf(kind entity.Kind) []interface{} {
	m := idx.byKind[kind]
	out := make([]interface{}, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// Synthesize populates every designated inverse relation in place and
// returns the same Snapshot for chaining. Running it twice is a no-op
// (T1): the mirroring pass only ever appends an id that is not already
// present.
func Synthesize(snap *Snapshot) *Snapshot {
	idx := snap.buildIndex()

	for _, pair := range entity.RelationPairs {
		mirror(idx, pair.LeftKind, pair.LeftField, pair.RightKind, pair.RightField)
		mirror(idx, pair.RightKind, pair.RightField, pair.LeftKind, pair.LeftField)
	}

	return snap
}

// mirror walks every entity of fromKind holding a value in fromField and
// ensures each referenced target (of toKind) has fromEntity's id present in
// toField, appending and deduplicating as needed.
func mirror(idx *index, fromKind entity.Kind, fromField string, toKind entity.Kind, toField string) {
	for _, e := range idx.entitiesOf(fromKind) {
		sourceID := entity.EntityID(e)
		targets := entity.GetRelation(e, fromField)
		for _, targetID := range targets {
			target, ok := idx.byKind[toKind][targetID]
			if !ok {
				continue // unresolved reference: Graph Builder handles placeholders, not the Synthesizer
			}
			current := entity.GetRelation(target, toField)
			if containsID(current, sourceID) {
				continue
			}
			entity.SetRelation(target, toField, append(current, sourceID))
		}
	}
}

func containsID(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
