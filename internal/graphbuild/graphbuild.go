// Package graphbuild implements the Graph Builder: from a synthesized
// snapshot it emits one node per entity plus a placeholder per unresolved
// reference, and a deduplicated, weighted, typed edge list.
package graphbuild

import (
	"fmt"
	"sort"

	"github.com/kestrel-labs/workspacegraph/internal/entity"
	"github.com/kestrel-labs/workspacegraph/internal/synth"
)

// Node is one graph node: a real entity or a placeholder for a dangling
// reference.
type Node struct {
	ID            string
	Kind          entity.Kind
	Label         string
	Data          interface{}
	IsPlaceholder bool
	Metadata      map[string]interface{}
	// Version is left empty by Build. When a caller sets it on both nodes
	// being compared, the Delta Calculator decides node equality from it
	// without inspecting individual properties.
	Version string
}

// Edge is one deduplicated, weighted, typed edge.
type Edge struct {
	ID     string
	Source string
	Target string
	Kind   string
	Weight int
}

// MissingEntity describes one unresolved reference, surfaced in metadata.
type MissingEntity struct {
	ID           string
	ReferencedBy string
	ExpectedKind entity.Kind
}

// Metadata carries summary counts and the missing-entity list the Builder
// accumulates while walking relations.
type Metadata struct {
	TotalNodes      int
	TotalEdges      int
	PlaceholderNodes int
	MissingEntities []MissingEntity
}

// Graph is the Builder's full output.
type Graph struct {
	Nodes    []Node
	Edges    []Edge
	Metadata Metadata
}

// edgeKey is the deterministic (source, target, kind) function I3 requires
// for deduplication.
func edgeKey(source, target, kind string) string {
	return source + "\x00" + target + "\x00" + kind
}

// builder accumulates nodes/edges/placeholders while walking a snapshot.
type builder struct {
	nodes        map[string]Node
	placeholders map[string]*placeholderAccum
	edges        map[string]Edge
	// order preserves first-seen ordering for deterministic output
	nodeOrder []string
	edgeOrder []string
}

type placeholderAccum struct {
	expectedKind entity.Kind
	referencedBy []string
}

func newBuilder() *builder {
	return &builder{
		nodes:        map[string]Node{},
		placeholders: map[string]*placeholderAccum{},
		edges:        map[string]Edge{},
	}
}

func (b *builder) addNode(n Node) {
	if _, exists := b.nodes[n.ID]; !exists {
		b.nodeOrder = append(b.nodeOrder, n.ID)
	}
	b.nodes[n.ID] = n
}

// reference records that (referrerKind, referrerID) points at targetID,
// expected to be of expectedKind. If targetID does not resolve to a real
// node, a placeholder accumulates the reference (I1).
func (b *builder) reference(targetID string, expectedKind entity.Kind, referrerKind entity.Kind, referrerID string) {
	if targetID == "" {
		return
	}
	if _, ok := b.nodes[targetID]; ok {
		return
	}
	ref := fmt.Sprintf("%s:%s", referrerKind, referrerID)
	acc, ok := b.placeholders[targetID]
	if !ok {
		acc = &placeholderAccum{expectedKind: expectedKind}
		b.placeholders[targetID] = acc
		b.nodeOrder = append(b.nodeOrder, targetID)
	}
	acc.referencedBy = append(acc.referencedBy, ref)
}

func (b *builder) addEdge(source, target, kind string, weight int) {
	if source == "" || target == "" {
		return
	}
	key := edgeKey(source, target, kind)
	if _, exists := b.edges[key]; exists {
		return
	}
	b.edges[key] = Edge{ID: key, Source: source, Target: target, Kind: kind, Weight: weight}
	b.edgeOrder = append(b.edgeOrder, key)
}

// Build walks a synthesized snapshot and produces the full graph.
func Build(snap *synth.Snapshot) Graph {
	b := newBuilder()

	for _, c := range snap.Characters {
		b.addNode(Node{ID: c.ID, Kind: entity.KindCharacter, Label: label(c.Name, "Character"), Data: c,
			Metadata: map[string]interface{}{"kind": entity.KindCharacter}})
	}
	for _, e := range snap.Elements {
		b.addNode(Node{ID: e.ID, Kind: entity.KindElement, Label: label(e.Name, "Element"), Data: e,
			Metadata: map[string]interface{}{"kind": entity.KindElement}})
	}
	for _, p := range snap.Puzzles {
		b.addNode(Node{ID: p.ID, Kind: entity.KindPuzzle, Label: label(p.Name, "Puzzle"), Data: p,
			Metadata: map[string]interface{}{"kind": entity.KindPuzzle}})
	}
	for _, t := range snap.TimelineEvents {
		b.addNode(Node{ID: t.ID, Kind: entity.KindTimelineEvent, Label: label(t.Name, "Event"), Data: t,
			Metadata: map[string]interface{}{"kind": entity.KindTimelineEvent}})
	}

	for _, c := range snap.Characters {
		for _, target := range c.OwnedElements {
			b.reference(target, entity.KindElement, entity.KindCharacter, c.ID)
			b.addEdge(c.ID, target, "ownership", 10)
		}
		for _, target := range c.AssociatedElements {
			b.reference(target, entity.KindElement, entity.KindCharacter, c.ID)
			b.addEdge(c.ID, target, "association", 6)
		}
		for _, target := range c.CharacterPuzzles {
			b.reference(target, entity.KindPuzzle, entity.KindCharacter, c.ID)
			b.addEdge(c.ID, target, "puzzle", 7)
		}
		for _, target := range c.Events {
			b.reference(target, entity.KindTimelineEvent, entity.KindCharacter, c.ID)
			b.addEdge(c.ID, target, "timeline", 6)
		}
	}

	for _, e := range snap.Elements {
		for _, target := range e.RequiredForPuzzles {
			b.reference(target, entity.KindPuzzle, entity.KindElement, e.ID)
			b.addEdge(e.ID, target, "requirement", 8)
		}
	}

	for _, p := range snap.Puzzles {
		for _, target := range p.Rewards {
			b.reference(target, entity.KindElement, entity.KindPuzzle, p.ID)
			b.addEdge(p.ID, target, "reward", 8)
		}
		if p.ParentItem != "" {
			b.reference(p.ParentItem, entity.KindPuzzle, entity.KindPuzzle, p.ID)
			b.addEdge(p.ParentItem, p.ID, "dependency", 10)
		}
		for _, target := range p.SubPuzzles {
			b.reference(target, entity.KindPuzzle, entity.KindPuzzle, p.ID)
			b.addEdge(p.ID, target, "chain", 15)
		}
	}

	for i := 0; i+1 < len(snap.TimelineEvents); i++ {
		b.addEdge(snap.TimelineEvents[i].ID, snap.TimelineEvents[i+1].ID, "timeline", 3)
	}
	for _, t := range snap.TimelineEvents {
		for _, target := range t.CharactersInvolved {
			b.reference(target, entity.KindCharacter, entity.KindTimelineEvent, t.ID)
			b.addEdge(t.ID, target, "timeline", 6)
		}
		for _, target := range t.MemoryEvidence {
			b.reference(target, entity.KindElement, entity.KindTimelineEvent, t.ID)
			b.addEdge(t.ID, target, "timeline", 6)
		}
	}

	return b.finish()
}

func label(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func (b *builder) finish() Graph {
	nodes := make([]Node, 0, len(b.nodeOrder))
	var missing []MissingEntity
	for _, id := range b.nodeOrder {
		if n, ok := b.nodes[id]; ok {
			nodes = append(nodes, n)
			continue
		}
		acc := b.placeholders[id]
		sort.Strings(acc.referencedBy)
		nodes = append(nodes, Node{
			ID:            id,
			Kind:          entity.KindPlaceholder,
			Label:         id,
			IsPlaceholder: true,
			Metadata: map[string]interface{}{
				"expectedKind": acc.expectedKind,
				"missingFrom":  acc.referencedBy,
			},
		})
		for _, ref := range acc.referencedBy {
			missing = append(missing, MissingEntity{ID: id, ReferencedBy: ref, ExpectedKind: acc.expectedKind})
		}
	}

	edges := make([]Edge, 0, len(b.edgeOrder))
	for _, key := range b.edgeOrder {
		edges = append(edges, b.edges[key])
	}

	return Graph{
		Nodes: nodes,
		Edges: edges,
		Metadata: Metadata{
			TotalNodes:       len(nodes),
			TotalEdges:       len(edges),
			PlaceholderNodes: len(b.placeholders),
			MissingEntities:  missing,
		},
	}
}
