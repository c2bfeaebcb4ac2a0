package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/workspacegraph/internal/entity"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Characters: []*entity.Character{
			{ID: "char-1", Name: "Alice", OwnedElements: []string{"elem-1"}, Events: []string{"event-1"}},
			{ID: "char-2", Name: "Bob"},
		},
		Elements: []*entity.Element{
			{ID: "elem-1", Name: "Locket"},
			{ID: "elem-2", Name: "Crate", Container: "elem-2-parent"},
		},
		Puzzles: []*entity.Puzzle{
			{ID: "puzzle-1", Name: "Lockbox", RequiredForPuzzles: nil},
		},
		TimelineEvents: []*entity.TimelineEvent{
			{ID: "event-1", Name: "The Gala"},
		},
	}
}

func TestSynthesizePopulatesInverseRelation(t *testing.T) {
	snap := sampleSnapshot()
	Synthesize(snap)

	var locket *entity.Element
	for _, e := range snap.Elements {
		if e.ID == "elem-1" {
			locket = e
		}
	}
	require.NotNil(t, locket)
	assert.Equal(t, "char-1", locket.Owner, "Owner must mirror the owning Character's OwnedElements entry")

	var gala *entity.TimelineEvent
	for _, te := range snap.TimelineEvents {
		if te.ID == "event-1" {
			gala = te
		}
	}
	require.NotNil(t, gala)
	assert.Contains(t, gala.CharactersInvolved, "char-1")
}

func TestSynthesizeIsIdempotent(t *testing.T) {
	snap := sampleSnapshot()
	Synthesize(snap)
	first := snapshotFingerprint(snap)

	Synthesize(snap)
	second := snapshotFingerprint(snap)

	assert.Equal(t, first, second, "running Synthesize twice must not change the result (T1)")
}

func TestSynthesizeUnresolvedReferenceIsSkipped(t *testing.T) {
	snap := &Snapshot{
		Characters: []*entity.Character{
			{ID: "char-1", OwnedElements: []string{"missing-element"}},
		},
	}

	assert.NotPanics(t, func() { Synthesize(snap) })
}

func TestSynthesizeManyToManyMirrorsBothDirections(t *testing.T) {
	snap := &Snapshot{
		Elements: []*entity.Element{
			{ID: "elem-1", RequiredForPuzzles: []string{"puzzle-1"}},
			{ID: "elem-2"},
		},
		Puzzles: []*entity.Puzzle{
			{ID: "puzzle-1"},
			{ID: "puzzle-2", PuzzleElements: []string{"elem-2"}},
		},
	}
	Synthesize(snap)

	assert.Contains(t, snap.Puzzles[0].PuzzleElements, "elem-1")
	assert.Contains(t, snap.Elements[1].RequiredForPuzzles, "puzzle-2")
}

func snapshotFingerprint(snap *Snapshot) [][]string {
	var out [][]string
	for _, c := range snap.Characters {
		out = append(out, append([]string{c.ID}, c.OwnedElements...))
		out = append(out, append([]string{c.ID}, c.Events...))
	}
	for _, e := range snap.Elements {
		out = append(out, []string{e.ID, e.Owner, e.Container})
		out = append(out, append([]string{e.ID}, e.Contents...))
	}
	for _, p := range snap.Puzzles {
		out = append(out, append([]string{p.ID}, p.PuzzleElements...))
		out = append(out, append([]string{p.ID}, p.Rewards...))
	}
	for _, te := range snap.TimelineEvents {
		out = append(out, append([]string{te.ID}, te.CharactersInvolved...))
	}
	return out
}
