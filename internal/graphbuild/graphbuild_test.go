package graphbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/workspacegraph/internal/entity"
	"github.com/kestrel-labs/workspacegraph/internal/synth"
)

func sampleSnapshot() *synth.Snapshot {
	return &synth.Snapshot{
		Characters: []*entity.Character{
			{ID: "char-1", Name: "Alice", OwnedElements: []string{"elem-1"}, CharacterPuzzles: []string{"missing-puzzle"}},
		},
		Elements: []*entity.Element{
			{ID: "elem-1", Name: "Locket"},
		},
		Puzzles: []*entity.Puzzle{
			{ID: "puzzle-1", Name: "Lockbox", Rewards: []string{"elem-1"}},
		},
		TimelineEvents: nil,
	}
}

func TestBuildEdgeEndpointsExistAsNodes(t *testing.T) {
	g := Build(sampleSnapshot())

	nodeIDs := map[string]bool{}
	for _, n := range g.Nodes {
		nodeIDs[n.ID] = true
	}
	for _, e := range g.Edges {
		assert.True(t, nodeIDs[e.Source], "edge source %q must have a node (real or placeholder)", e.Source)
		assert.True(t, nodeIDs[e.Target], "edge target %q must have a node (real or placeholder)", e.Target)
	}
}

func TestBuildDanglingReferenceProducesPlaceholder(t *testing.T) {
	g := Build(sampleSnapshot())

	var placeholder *Node
	for i := range g.Nodes {
		if g.Nodes[i].ID == "missing-puzzle" {
			placeholder = &g.Nodes[i]
		}
	}
	require.NotNil(t, placeholder, "dangling reference must produce a placeholder node, never silently vanish")
	assert.True(t, placeholder.IsPlaceholder)
	assert.Equal(t, entity.KindPlaceholder, placeholder.Kind)
	assert.Equal(t, 1, g.Metadata.PlaceholderNodes)
	require.Len(t, g.Metadata.MissingEntities, 1)
	assert.Equal(t, "character:char-1", g.Metadata.MissingEntities[0].ReferencedBy)
}

func TestBuildEdgesAreDeduplicatedBySourceTargetKind(t *testing.T) {
	snap := &synth.Snapshot{
		Characters: []*entity.Character{
			{ID: "char-1", OwnedElements: []string{"elem-1", "elem-1"}},
		},
		Elements: []*entity.Element{
			{ID: "elem-1"},
		},
	}
	g := Build(snap)

	count := 0
	for _, e := range g.Edges {
		if e.Source == "char-1" && e.Target == "elem-1" && e.Kind == "ownership" {
			count++
		}
	}
	assert.Equal(t, 1, count, "duplicate (source,target,kind) edges must collapse to one (I3)")
}

func TestBuildIsInvariantUnderEntityPermutation(t *testing.T) {
	snapA := &synth.Snapshot{
		Characters: []*entity.Character{
			{ID: "char-1", OwnedElements: []string{"elem-1"}},
			{ID: "char-2", OwnedElements: []string{"elem-2"}},
		},
		Elements: []*entity.Element{
			{ID: "elem-1"},
			{ID: "elem-2"},
		},
	}
	snapB := &synth.Snapshot{
		Characters: []*entity.Character{
			{ID: "char-2", OwnedElements: []string{"elem-2"}},
			{ID: "char-1", OwnedElements: []string{"elem-1"}},
		},
		Elements: []*entity.Element{
			{ID: "elem-2"},
			{ID: "elem-1"},
		},
	}

	gA := Build(snapA)
	gB := Build(snapB)

	assert.ElementsMatch(t, nodeIDs(gA), nodeIDs(gB))
	assert.ElementsMatch(t, edgeKeys(gA), edgeKeys(gB))
}

func nodeIDs(g Graph) []string {
	out := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.ID
	}
	return out
}

func edgeKeys(g Graph) []string {
	out := make([]string, len(g.Edges))
	for i, e := range g.Edges {
		out[i] = e.ID
	}
	return out
}
