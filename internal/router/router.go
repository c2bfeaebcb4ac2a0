// Package router implements the Entity Router: the generic per-kind CRUD
// contract (list/get/create/update/archive) composed from the gateway,
// decoder, transformer/encoder, cache coordinator, merger, inverse-relation
// maintainer and graph state capture. One Router[T] is instantiated
// per entity kind by cmd/server.
package router

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kestrel-labs/workspacegraph/internal/cache"
	"github.com/kestrel-labs/workspacegraph/internal/decode"
	"github.com/kestrel-labs/workspacegraph/internal/delta"
	"github.com/kestrel-labs/workspacegraph/internal/entity"
	wgerrors "github.com/kestrel-labs/workspacegraph/internal/errors"
	"github.com/kestrel-labs/workspacegraph/internal/gateway"
	"github.com/kestrel-labs/workspacegraph/internal/graphbuild"
	"github.com/kestrel-labs/workspacegraph/internal/logging"
	"github.com/kestrel-labs/workspacegraph/internal/maintainer"
	"github.com/kestrel-labs/workspacegraph/internal/merge"
	"github.com/kestrel-labs/workspacegraph/internal/statecapture"
	"github.com/kestrel-labs/workspacegraph/internal/synth"
	"github.com/kestrel-labs/workspacegraph/internal/workspace"
)

// KindSpec binds a concrete entity type T to its kind tag, upstream
// database id, and the Transform/Encode pair generated for it — the data
// that parameterizes Router[T] per kind.
type KindSpec[T any] struct {
	Kind       entity.Kind
	DatabaseID string
	Transform  func(ctx context.Context, dec *decode.Decoder, page *workspace.Page) (T, error)
	Encode     func(value T, fields []string) map[string]workspace.Property
}

// ListResult is the envelope returned by List, version-stamped for caching.
type ListResult[T any] struct {
	Data          []T
	NextCursor    string
	HasMore       bool
	Version       uint64
	EntityVersion map[string]uint64
	// CacheHit reports whether this result was served from the Cache
	// Coordinator rather than freshly materialized — surfaced to callers as
	// the advisory X-Cache-Hit header.
	CacheHit bool
}

// Router is the generic per-kind CRUD implementation.
type Router[T any] struct {
	gw         *gateway.Gateway
	dec        *decode.Decoder
	cache      *cache.Coordinator
	maintainer *maintainer.Maintainer
	capture    *statecapture.Capture
	logger     *logging.ContextLogger
	spec       KindSpec[T]
}

func New[T any](gw *gateway.Gateway, dec *decode.Decoder, c *cache.Coordinator, m *maintainer.Maintainer, capture *statecapture.Capture, logger *logging.ContextLogger, spec KindSpec[T]) *Router[T] {
	return &Router[T]{gw: gw, dec: dec, cache: c, maintainer: m, capture: capture, logger: logger, spec: spec}
}

// List paginates against the gateway until limit is reached or the
// upstream has no more, filling in relation pagination for each page via
// the Decoder, and serves from cache unless bypassCache is set.
func (r *Router[T]) List(ctx context.Context, limit int, cursor string, filter interface{}, bypassCache bool) (ListResult[T], error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	key := cache.CollectionKey(string(r.spec.Kind), strconv.Itoa(limit), cursor)
	if !bypassCache {
		if cached, ok := r.cache.Get(key); ok {
			result := cached.(ListResult[T])
			result.CacheHit = true
			return result, nil
		}
	}

	var data []T
	entityVersions := map[string]uint64{}
	nextCursor := cursor
	hasMore := true
	for len(data) < limit && hasMore {
		res, err := r.gw.QueryDatabase(ctx, r.spec.DatabaseID, nextCursor, limit-len(data), filter)
		if err != nil {
			return ListResult[T]{}, err
		}
		for i := range res.Pages {
			page := res.Pages[i]
			value, err := r.spec.Transform(ctx, r.dec, &page)
			if err != nil {
				return ListResult[T]{}, wgerrors.Internal("transforming page", err)
			}
			id := entity.EntityID(&value)
			entityVersions[id] = r.cache.EntityVersion(id)
			data = append(data, value)
			if len(data) >= limit {
				break
			}
		}
		nextCursor = res.NextCursor
		hasMore = res.HasMore
	}

	result := ListResult[T]{Data: data, NextCursor: nextCursor, HasMore: hasMore, Version: r.cache.GlobalVersion(), EntityVersion: entityVersions}
	r.cache.Set(key, result)
	return result, nil
}

// Get fetches a single entity by id, version-stamped, serving from cache
// unless bypassCache is set. The final bool reports whether the result was
// served from cache (X-Cache-Hit).
func (r *Router[T]) Get(ctx context.Context, id string, bypassCache bool) (T, uint64, bool, error) {
	var zero T
	key := cache.EntityKey(string(r.spec.Kind), id, "", "")
	if !bypassCache {
		if cached, ok := r.cache.Get(key); ok {
			cv := cached.(cachedEntity[T])
			return cv.value, cv.version, true, nil
		}
	}

	page, err := r.gw.RetrievePage(ctx, id)
	if err != nil {
		return zero, 0, false, err
	}
	value, err := r.spec.Transform(ctx, r.dec, &page)
	if err != nil {
		return zero, 0, false, wgerrors.Internal("transforming page", err)
	}

	version := r.cache.EntityVersion(id)
	r.cache.Set(key, cachedEntity[T]{value: value, version: version})
	return value, version, false, nil
}

type cachedEntity[T any] struct {
	value   T
	version uint64
}

// ParentRelation names the parent entity and field a newly created entity
// should be atomically linked into.
type ParentRelation struct {
	ParentKind entity.Kind
	ParentID   string
	FieldKey   string
}

// Create encodes and creates a new page upstream. If parentRelation is
// present, the parent's corresponding relation field is atomically
// updated; on failure the just-created page is archived and the error
// surfaced — this is the sole internal-rollback case in the system.
// The Inverse-Relation Maintainer then runs for the created entity's own
// relations, and list/graph caches are invalidated.
func (r *Router[T]) Create(ctx context.Context, partial T, fields []string, parentRelation *ParentRelation) (T, error) {
	var zero T
	props := r.spec.Encode(partial, fields)

	page, err := r.gw.CreatePage(ctx, r.spec.DatabaseID, props)
	if err != nil {
		return zero, err
	}
	created, err := r.spec.Transform(ctx, r.dec, &page)
	if err != nil {
		return zero, wgerrors.Internal("transforming created page", err)
	}
	createdID := entity.EntityID(&created)

	if parentRelation != nil {
		if err := r.linkParent(ctx, *parentRelation, createdID); err != nil {
			if _, archiveErr := r.gw.ArchivePage(ctx, createdID); archiveErr != nil {
				r.logger.WithField("id", createdID).WithError(archiveErr).Error("failed to roll back created page after parent link failure")
			}
			return zero, wgerrors.Internal("linking parent relation, created page rolled back", err)
		}
	}

	result := r.maintainer.Reconcile(ctx, r.spec.Kind, createdID, &zero, &created)
	r.invalidateForTouched(r.spec.Kind, createdID, result.Touched)
	if len(result.Failed) > 0 {
		r.logger.WithField("id", createdID).WithField("failed_count", len(result.Failed)).Warn("inverse relation partial failure on create")
	}

	r.cache.InvalidatePattern(cache.CollectionKeyPrefix(string(r.spec.Kind)))
	r.cache.InvalidatePattern(cache.GraphCompleteKey + "*")

	return created, nil
}

func (r *Router[T]) linkParent(ctx context.Context, rel ParentRelation, createdID string) error {
	page, err := r.gw.RetrievePage(ctx, rel.ParentID)
	if err != nil {
		return err
	}
	parent, err := entity.TransformByKind(ctx, r.dec, rel.ParentKind, &page)
	if err != nil {
		return err
	}
	current := entity.GetRelation(parent, rel.FieldKey)
	entity.SetRelation(parent, rel.FieldKey, append(current, createdID))
	props, err := entity.EncodeByKind(rel.ParentKind, parent, []string{rel.FieldKey})
	if err != nil {
		return err
	}
	_, err = r.gw.UpdatePage(ctx, rel.ParentID, props)
	return err
}

// Update fetches the current entity (for inverse-relation diffing and
// merge), encodes and applies the update upstream, merges the decoded
// response onto the pre-update snapshot, runs the Maintainer, invalidates
// caches, and returns the merged entity plus a delta computed from
// before/after neighborhoods.
func (r *Router[T]) Update(ctx context.Context, id string, partial T, fields []string) (T, *delta.Result, error) {
	var zero T

	before, err := r.capture.Neighborhood(ctx, r.spec.Kind, id)
	if err != nil {
		return zero, nil, err
	}

	currentPage, err := r.gw.RetrievePage(ctx, id)
	if err != nil {
		return zero, nil, err
	}
	oldEntity, err := r.spec.Transform(ctx, r.dec, &currentPage)
	if err != nil {
		return zero, nil, wgerrors.Internal("transforming current page", err)
	}

	props := r.spec.Encode(partial, fields)
	updatedPage, err := r.gw.UpdatePage(ctx, id, props)
	if err != nil {
		return zero, nil, err
	}
	decodedPartial, err := r.spec.Transform(ctx, r.dec, &updatedPage)
	if err != nil {
		return zero, nil, wgerrors.Internal("transforming updated page", err)
	}

	requestFields := make(map[string]bool, len(fields))
	for _, f := range fields {
		requestFields[f] = true
	}
	mergedAny, warnings := merge.Merge(&oldEntity, &decodedPartial, requestFields)
	merged := *(mergedAny.(*T))
	if len(warnings) > 0 {
		r.logger.WithFields(map[string]interface{}{"id": id, "fields": warnings}).Warn("consistency: field(s) decreased to empty without being requested")
	}

	result := r.maintainer.Reconcile(ctx, r.spec.Kind, id, &oldEntity, &merged)
	if len(result.Failed) > 0 {
		r.logger.WithField("id", id).WithField("failed_count", len(result.Failed)).Warn("inverse relation partial failure on update")
	}

	r.cache.InvalidateEntity(string(r.spec.Kind), id)
	r.invalidateForTouched(r.spec.Kind, id, result.Touched)
	r.cache.InvalidatePattern(cache.GraphCompleteKey + "*")

	neighborIDs := []string{id}
	for _, n := range before.Nodes {
		neighborIDs = append(neighborIDs, n.ID)
	}
	after, err := r.capture.IDSet(ctx, neighborIDs)
	if err != nil {
		r.logger.WithField("id", id).WithError(err).Warn("after-capture failed, skipping delta")
		return merged, nil, nil
	}

	d := delta.Calculate(r.logger, before.Nodes, after.Nodes, before.Edges, after.Edges)
	return merged, &d, nil
}

// Archive fetches the current entity (for inverse-relation cleanup),
// archives it upstream, and runs the Maintainer with an empty "new" entity
// so this id is stripped from every inverse side it participated in.
func (r *Router[T]) Archive(ctx context.Context, id string) (bool, *delta.Result, error) {
	before, err := r.capture.Neighborhood(ctx, r.spec.Kind, id)
	if err != nil {
		return false, nil, err
	}

	currentPage, err := r.gw.RetrievePage(ctx, id)
	if err != nil {
		return false, nil, err
	}
	oldEntity, err := r.spec.Transform(ctx, r.dec, &currentPage)
	if err != nil {
		return false, nil, wgerrors.Internal("transforming page before archive", err)
	}

	if _, err := r.gw.ArchivePage(ctx, id); err != nil {
		return false, nil, err
	}

	var empty T
	result := r.maintainer.Reconcile(ctx, r.spec.Kind, id, &oldEntity, &empty)
	if len(result.Failed) > 0 {
		r.logger.WithField("id", id).WithField("failed_count", len(result.Failed)).Warn("inverse relation partial failure on archive")
	}

	r.cache.InvalidateEntity(string(r.spec.Kind), id)
	r.invalidateForTouched(r.spec.Kind, id, result.Touched)
	r.cache.InvalidatePattern(cache.GraphCompleteKey + "*")

	neighborIDs := make([]string, 0, len(before.Nodes))
	for _, n := range before.Nodes {
		if n.ID != id {
			neighborIDs = append(neighborIDs, n.ID)
		}
	}
	after, err := r.capture.IDSet(ctx, neighborIDs)
	if err != nil {
		return true, nil, nil
	}
	d := delta.Calculate(r.logger, before.Nodes, after.Nodes, before.Edges, after.Edges)
	return true, &d, nil
}

func (r *Router[T]) invalidateForTouched(selfKind entity.Kind, selfID string, touched []maintainer.TouchedEntity) {
	byKind := map[string][]string{}
	for _, t := range touched {
		byKind[string(t.Kind)] = append(byKind[string(t.Kind)], t.ID)
	}
	related := make([]cache.RelatedInvalidation, 0, len(byKind))
	for kind, ids := range byKind {
		related = append(related, cache.RelatedInvalidation{Kind: kind, IDs: ids})
	}
	r.cache.InvalidateRelated(string(selfKind), selfID, related)
}

// CompleteGraph assembles the whole graph across all four kinds. It is
// owned by the wiring layer (cmd/server), not Router[T], since it spans
// every kind; GraphService below implements it using the same gateway/
// decoder the per-kind routers share.
type GraphService struct {
	gw     *gateway.Gateway
	dec    *decode.Decoder
	cache  *cache.Coordinator
	specs  [4]graphKindSpec
	logger *logging.ContextLogger
}

type graphKindSpec struct {
	kind       entity.Kind
	databaseID string
}

func NewGraphService(gw *gateway.Gateway, dec *decode.Decoder, c *cache.Coordinator, logger *logging.ContextLogger, characterDB, elementDB, puzzleDB, timelineDB string) *GraphService {
	return &GraphService{
		gw: gw, dec: dec, cache: c, logger: logger,
		specs: [4]graphKindSpec{
			{kind: entity.KindCharacter, databaseID: characterDB},
			{kind: entity.KindElement, databaseID: elementDB},
			{kind: entity.KindPuzzle, databaseID: puzzleDB},
			{kind: entity.KindTimelineEvent, databaseID: timelineDB},
		},
	}
}

// GetCompleteGraph fetches every page of every database, transforms,
// synthesizes and builds the full graph, serving from cache unless
// bypassCache is set. Returns whether the result was served from cache
// (X-Cache-Hit) and how long the fresh build took (X-Graph-Build-Time).
func (g *GraphService) GetCompleteGraph(ctx context.Context, bypassCache bool) (graphbuild.Graph, bool, time.Duration, error) {
	if !bypassCache {
		if cached, ok := g.cache.Get(cache.GraphCompleteKey); ok {
			return cached.(graphbuild.Graph), true, 0, nil
		}
	}
	start := time.Now()

	snap := &synth.Snapshot{}
	for _, spec := range g.specs {
		cursor := ""
		for {
			res, err := g.gw.QueryDatabase(ctx, spec.databaseID, cursor, 100, nil)
			if err != nil {
				return graphbuild.Graph{}, false, 0, err
			}
			for i := range res.Pages {
				page := res.Pages[i]
				decoded, err := entity.TransformByKind(ctx, g.dec, spec.kind, &page)
				if err != nil {
					return graphbuild.Graph{}, false, 0, wgerrors.Internal("transforming page", err)
				}
				appendToSnapshot(snap, decoded)
			}
			if !res.HasMore {
				break
			}
			cursor = res.NextCursor
		}
	}

	synth.Synthesize(snap)
	graph := graphbuild.Build(snap)
	g.cache.Set(cache.GraphCompleteKey, graph)
	return graph, false, time.Since(start), nil
}

func appendToSnapshot(snap *synth.Snapshot, decoded interface{}) {
	switch v := decoded.(type) {
	case *entity.Character:
		snap.Characters = append(snap.Characters, v)
	case *entity.Element:
		snap.Elements = append(snap.Elements, v)
	case *entity.Puzzle:
		snap.Puzzles = append(snap.Puzzles, v)
	case *entity.TimelineEvent:
		snap.TimelineEvents = append(snap.TimelineEvents, v)
	default:
		panic(fmt.Sprintf("router: unrecognized decoded type %T", decoded))
	}
}
