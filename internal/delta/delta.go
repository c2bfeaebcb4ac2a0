// Package delta implements the Delta Calculator: given "before" and
// "after" snapshots of nodes and edges, it produces the minimal
// {created, updated, deleted} triple for each, using the entity package's
// mutable/derived property classification to avoid false positives from
// derived properties (T8-T11).
package delta

import (
	"reflect"
	"time"

	"github.com/kestrel-labs/workspacegraph/internal/entity"
	"github.com/kestrel-labs/workspacegraph/internal/graphbuild"
	"github.com/kestrel-labs/workspacegraph/internal/logging"
	"github.com/kestrel-labs/workspacegraph/internal/metrics"
)

// NodeDelta is the {created, updated, deleted} triple for nodes.
type NodeDelta struct {
	Created []graphbuild.Node
	Updated []graphbuild.Node
	Deleted []graphbuild.Node
}

// EdgeDelta is the {created, updated, deleted} triple for edges.
type EdgeDelta struct {
	Created []graphbuild.Edge
	Updated []graphbuild.Edge
	Deleted []graphbuild.Edge
}

// Result is the full delta between two snapshots.
type Result struct {
	Nodes NodeDelta
	Edges EdgeDelta
	// FullInvalidation is true when the calculator degraded to marking
	// every surviving node/edge as updated after an internal error — a
	// conservative "everything changed" signal is preferred over a wrong
	// minimal delta, since the client applies deltas in-place.
	FullInvalidation bool
}

// Calculate compares (oldNodes, newNodes) and (oldEdges, newEdges) and
// returns the minimal delta. It never panics: any internal failure is
// caught and converted into a full-invalidation Result.
func Calculate(logger *logging.ContextLogger, oldNodes, newNodes []graphbuild.Node, oldEdges, newEdges []graphbuild.Edge) (result Result) {
	start := time.Now()
	defer func() { metrics.DeltaCalculationDuration.Observe(time.Since(start).Seconds()) }()
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("delta calculation failed, degrading to full invalidation")
			result = fullInvalidation(newNodes, newEdges)
		}
	}()

	oldNodeByID := indexNodes(oldNodes)
	newNodeByID := indexNodes(newNodes)

	var nd NodeDelta
	for id, n := range newNodeByID {
		old, existed := oldNodeByID[id]
		if !existed {
			nd.Created = append(nd.Created, n)
			continue
		}
		if equal, diffs := nodeEqual(old, n); !equal {
			if len(diffs) > 0 {
				logger.WithFields(map[string]interface{}{"node_id": id, "diffs": diffs}).Debug("node differs")
			}
			nd.Updated = append(nd.Updated, n)
		}
	}
	for id, n := range oldNodeByID {
		if _, stillExists := newNodeByID[id]; !stillExists {
			nd.Deleted = append(nd.Deleted, n)
		}
	}

	var ed EdgeDelta
	oldEdgeByID := indexEdges(oldEdges)
	newEdgeByID := indexEdges(newEdges)
	for id, e := range newEdgeByID {
		// Orphan rule: a new edge whose source or target no longer exists
		// as a node is treated as deleted, never created or updated.
		if _, srcOK := newNodeByID[e.Source]; !srcOK {
			if old, existed := oldEdgeByID[id]; existed {
				ed.Deleted = append(ed.Deleted, old)
			} else {
				ed.Deleted = append(ed.Deleted, e)
			}
			continue
		}
		if _, tgtOK := newNodeByID[e.Target]; !tgtOK {
			if old, existed := oldEdgeByID[id]; existed {
				ed.Deleted = append(ed.Deleted, old)
			} else {
				ed.Deleted = append(ed.Deleted, e)
			}
			continue
		}

		old, existed := oldEdgeByID[id]
		if !existed {
			ed.Created = append(ed.Created, e)
			continue
		}
		if !edgeEqual(old, e) {
			ed.Updated = append(ed.Updated, e)
		}
	}
	for id, e := range oldEdgeByID {
		if _, stillExists := newEdgeByID[id]; !stillExists {
			ed.Deleted = append(ed.Deleted, e)
		}
	}

	return Result{Nodes: nd, Edges: ed}
}

func indexNodes(nodes []graphbuild.Node) map[string]graphbuild.Node {
	m := make(map[string]graphbuild.Node, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return m
}

func indexEdges(edges []graphbuild.Edge) map[string]graphbuild.Edge {
	m := make(map[string]graphbuild.Edge, len(edges))
	for _, e := range edges {
		m[e.ID] = e
	}
	return m
}

// nodeEqual implements the node-equality cascade: structural
// fields first, then version, then lastEdited, then per-kind mutable
// property comparison. Unknown kinds are conservatively unequal.
func nodeEqual(a, b graphbuild.Node) (bool, []string) {
	if a.ID != b.ID || a.Kind != b.Kind || a.Label != b.Label || a.IsPlaceholder != b.IsPlaceholder {
		return false, []string{"structural"}
	}

	if a.Version != "" && b.Version != "" {
		return a.Version == b.Version, []string{"version"}
	}

	aLast, aOK := lastEdited(a.Data)
	bLast, bOK := lastEdited(b.Data)
	if aOK && bOK {
		return aLast == bLast, []string{"lastEdited"}
	}

	switch a.Kind {
	case entity.KindCharacter, entity.KindElement, entity.KindPuzzle, entity.KindTimelineEvent:
		return entity.PropertiesEqual(a.Kind, a.Data, b.Data)
	default:
		return false, []string{"unknown_kind"}
	}
}

func lastEdited(data interface{}) (string, bool) {
	if data == nil {
		return "", false
	}
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", false
	}
	fv := v.FieldByName("LastEdited")
	if !fv.IsValid() || fv.Kind() != reflect.String {
		return "", false
	}
	return fv.String(), fv.String() != ""
}

// edgeEqual compares edges on (id, source, target, kind, weight) — the
// "remaining data keys" rule collapses to Weight here since the
// Builder's Edge carries no other payload.
func edgeEqual(a, b graphbuild.Edge) bool {
	return a.ID == b.ID && a.Source == b.Source && a.Target == b.Target && a.Kind == b.Kind && a.Weight == b.Weight
}

// fullInvalidation marks every surviving node and edge as updated — the
// graceful-degradation path for internal errors.
func fullInvalidation(nodes []graphbuild.Node, edges []graphbuild.Edge) Result {
	return Result{
		Nodes:            NodeDelta{Updated: append([]graphbuild.Node(nil), nodes...)},
		Edges:            EdgeDelta{Updated: append([]graphbuild.Edge(nil), edges...)},
		FullInvalidation: true,
	}
}
