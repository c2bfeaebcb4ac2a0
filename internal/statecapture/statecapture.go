// Package statecapture implements Graph State Capture: a minimal
// "neighborhood" subgraph fetch before a mutation, and an explicit id-set
// refetch after one, so deltas can be computed without re-materializing the
// whole graph. Neither mode is ever cached: two writes to the
// same entity inside the cache window would otherwise see a stale "before".
package statecapture

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kestrel-labs/workspacegraph/internal/decode"
	"github.com/kestrel-labs/workspacegraph/internal/entity"
	wgerrors "github.com/kestrel-labs/workspacegraph/internal/errors"
	"github.com/kestrel-labs/workspacegraph/internal/gateway"
	"github.com/kestrel-labs/workspacegraph/internal/graphbuild"
	"github.com/kestrel-labs/workspacegraph/internal/logging"
	"github.com/kestrel-labs/workspacegraph/internal/synth"
)

// KindResolver maps an upstream page's parent database id to an entity
// kind — database-id-based detection.
type KindResolver interface {
	KindForDatabaseID(dbID string) (string, bool)
}

type Capture struct {
	gw       *gateway.Gateway
	dec      *decode.Decoder
	resolver KindResolver
	logger   *logging.ContextLogger
}

func New(gw *gateway.Gateway, dec *decode.Decoder, resolver KindResolver, logger *logging.ContextLogger) *Capture {
	return &Capture{gw: gw, dec: dec, resolver: resolver, logger: logger}
}

func kindOf(s string) entity.Kind {
	return entity.Kind(s)
}

// fetchAndTransform retrieves one page and transforms it by the kind
// detected from its parent database id. A 404-equivalent upstream error is
// treated as absence (ok=false), not a failure — both capture modes
// tolerate per-id failures this way.
func (c *Capture) fetchAndTransform(ctx context.Context, id string) (entity.Kind, interface{}, bool) {
	page, err := c.gw.RetrievePage(ctx, id)
	if err != nil {
		var wgErr *wgerrors.Error
		if wgerrors.As(err, &wgErr) && wgErr.Kind == wgerrors.KindUpstreamPermanent {
			return "", nil, false
		}
		c.logger.WithField("id", id).WithError(err).Warn("state capture: failed to fetch page, skipping")
		return "", nil, false
	}

	kindStr, ok := c.resolver.KindForDatabaseID(page.DatabaseID)
	if !ok {
		c.logger.WithField("id", id).Warn("state capture: unrecognized database id, skipping")
		return "", nil, false
	}
	kind := kindOf(kindStr)

	decoded, err := entity.TransformByKind(ctx, c.dec, kind, &page)
	if err != nil {
		c.logger.WithField("id", id).WithError(err).Warn("state capture: transform failed, skipping")
		return "", nil, false
	}
	return kind, decoded, true
}

// buildSnapshot groups a set of (kind, decoded entity) pairs into a
// synth.Snapshot ready for the Synthesizer and Builder.
func buildSnapshot(items map[string]struct {
	kind entity.Kind
	data interface{}
}) *synth.Snapshot {
	snap := &synth.Snapshot{}
	for _, item := range items {
		switch v := item.data.(type) {
		case *entity.Character:
			snap.Characters = append(snap.Characters, v)
		case *entity.Element:
			snap.Elements = append(snap.Elements, v)
		case *entity.Puzzle:
			snap.Puzzles = append(snap.Puzzles, v)
		case *entity.TimelineEvent:
			snap.TimelineEvents = append(snap.TimelineEvents, v)
		}
	}
	return snap
}

// Neighborhood fetches the target entity plus every entity referenced by
// its mutable relations, synthesizes and builds over just that set, and
// returns the subgraph consisting of the target node, every node directly
// connected to it, and the edges between them.
func (c *Capture) Neighborhood(ctx context.Context, targetKind entity.Kind, targetID string) (graphbuild.Graph, error) {
	targetPageKind, targetData, ok := c.fetchAndTransform(ctx, targetID)
	if !ok {
		return graphbuild.Graph{}, wgerrors.NotFound(string(targetKind), targetID)
	}

	neighborIDs := neighborsOf(targetPageKind, targetData)

	type fetched struct {
		kind entity.Kind
		data interface{}
	}
	results := make(map[string]fetched, len(neighborIDs)+1)
	results[targetID] = fetched{kind: targetPageKind, data: targetData}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range neighborIDs {
		if id == targetID {
			continue
		}
		id := id
		g.Go(func() error {
			kind, data, ok := c.fetchAndTransform(gctx, id)
			if !ok {
				return nil
			}
			mu.Lock()
			results[id] = fetched{kind: kind, data: data}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	items := make(map[string]struct {
		kind entity.Kind
		data interface{}
	}, len(results))
	for id, f := range results {
		items[id] = struct {
			kind entity.Kind
			data interface{}
		}{kind: f.kind, data: f.data}
	}
	snap := buildSnapshot(items)
	synth.Synthesize(snap)
	full := graphbuild.Build(snap)

	return restrictToNeighborhood(full, targetID), nil
}

// IDSet fetches each id in ids (404 => treated as deletion, i.e. omitted),
// transforms by the kind detected from the page's parent database id, and
// builds the subgraph restricted to those ids.
func (c *Capture) IDSet(ctx context.Context, ids []string) (graphbuild.Graph, error) {
	type fetched struct {
		kind entity.Kind
		data interface{}
	}
	results := make(map[string]fetched, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			kind, data, ok := c.fetchAndTransform(gctx, id)
			if !ok {
				return nil
			}
			mu.Lock()
			results[id] = fetched{kind: kind, data: data}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	items := make(map[string]struct {
		kind entity.Kind
		data interface{}
	}, len(results))
	for id, f := range results {
		items[id] = struct {
			kind entity.Kind
			data interface{}
		}{kind: f.kind, data: f.data}
	}
	snap := buildSnapshot(items)
	synth.Synthesize(snap)
	return graphbuild.Build(snap), nil
}

// neighborsOf returns every id directly referenced by an entity's mutable
// relation fields (the only fields valid to chase for a neighborhood —
// derived fields are never dereferenced here).
func neighborsOf(kind entity.Kind, data interface{}) []string {
	var ids []string
	for _, field := range entity.MutableRelationFields[kind] {
		ids = append(ids, entity.GetRelation(data, field)...)
	}
	return ids
}

// restrictToNeighborhood extracts (a) the target node, (b) every node
// connected to it by any edge, (c) all edges whose endpoints are in (a)∪(b).
func restrictToNeighborhood(full graphbuild.Graph, targetID string) graphbuild.Graph {
	keep := map[string]bool{targetID: true}
	for _, e := range full.Edges {
		if e.Source == targetID {
			keep[e.Target] = true
		}
		if e.Target == targetID {
			keep[e.Source] = true
		}
	}

	var nodes []graphbuild.Node
	for _, n := range full.Nodes {
		if keep[n.ID] {
			nodes = append(nodes, n)
		}
	}

	var edges []graphbuild.Edge
	for _, e := range full.Edges {
		if keep[e.Source] && keep[e.Target] {
			edges = append(edges, e)
		}
	}

	return graphbuild.Graph{
		Nodes: nodes,
		Edges: edges,
		Metadata: graphbuild.Metadata{
			TotalNodes: len(nodes),
			TotalEdges: len(edges),
		},
	}
}
