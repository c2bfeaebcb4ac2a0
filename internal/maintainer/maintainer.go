// Package maintainer implements the Inverse-Relation Maintainer: given a
// write's before/after relation sets, it computes the set difference per
// designated relation pair and concurrently updates the opposite side of
// every affected link, tolerating partial failure.
package maintainer

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kestrel-labs/workspacegraph/internal/decode"
	"github.com/kestrel-labs/workspacegraph/internal/entity"
	wgerrors "github.com/kestrel-labs/workspacegraph/internal/errors"
	"github.com/kestrel-labs/workspacegraph/internal/gateway"
	"github.com/kestrel-labs/workspacegraph/internal/logging"
	"github.com/kestrel-labs/workspacegraph/internal/metrics"
)

// Maintainer drives concurrent inverse-relation updates through the
// gateway. It holds no state of its own between calls.
type Maintainer struct {
	gw     *gateway.Gateway
	dec    *decode.Decoder
	logger *logging.ContextLogger
}

func New(gw *gateway.Gateway, dec *decode.Decoder, logger *logging.ContextLogger) *Maintainer {
	return &Maintainer{gw: gw, dec: dec, logger: logger}
}

// TouchedEntity names one (kind, id) whose inverse field was updated, so
// the caller can invalidate the right cache keys.
type TouchedEntity struct {
	Kind entity.Kind
	ID   string
}

// Result summarizes a Reconcile call: every entity whose inverse field was
// touched, and every attempted update that failed (caller sees a count, not
// an exception per failure).
type Result struct {
	Touched []TouchedEntity
	Failed  []wgerrors.FailedRelation
}

// relationDirection pairs a RelationPair with which side `kind` occupies,
// so Reconcile can iterate only the pairs relevant to the entity being
// written.
type relationDirection struct {
	primaryField string
	targetKind   entity.Kind
	targetField  string
}

func directionsFor(kind entity.Kind) []relationDirection {
	var dirs []relationDirection
	for _, pair := range entity.RelationPairs {
		if pair.LeftKind == kind {
			dirs = append(dirs, relationDirection{primaryField: pair.LeftField, targetKind: pair.RightKind, targetField: pair.RightField})
		}
		if pair.RightKind == kind {
			dirs = append(dirs, relationDirection{primaryField: pair.RightField, targetKind: pair.LeftKind, targetField: pair.LeftField})
		}
	}
	return dirs
}

// Reconcile computes, for every designated relation pair where entityID
// (of kind `kind`) holds the primary side, the ids added and removed
// between old and newE, and concurrently applies the opposite-side update
// to every affected target. A single target appearing in both an "added"
// set for one field and a "removed" set for another is updated once per
// field, each independently — the fan-out is per (field, target), not per
// target.
func (m *Maintainer) Reconcile(ctx context.Context, kind entity.Kind, entityID string, old, newE interface{}) Result {
	type update struct {
		targetKind  entity.Kind
		targetID    string
		targetField string
		add         bool // true = append entityID, false = remove it
	}

	var updates []update
	for _, dir := range directionsFor(kind) {
		oldIDs := entity.GetRelation(old, dir.primaryField)
		newIDs := entity.GetRelation(newE, dir.primaryField)
		added := setDiff(newIDs, oldIDs)
		removed := setDiff(oldIDs, newIDs)
		for _, id := range added {
			updates = append(updates, update{targetKind: dir.targetKind, targetID: id, targetField: dir.targetField, add: true})
		}
		for _, id := range removed {
			updates = append(updates, update{targetKind: dir.targetKind, targetID: id, targetField: dir.targetField, add: false})
		}
	}

	var (
		mu      sync.Mutex
		touched []TouchedEntity
		failed  []wgerrors.FailedRelation
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, u := range updates {
		u := u
		g.Go(func() error {
			if err := m.applyOne(gctx, u.targetKind, u.targetID, u.targetField, entityID, u.add); err != nil {
				metrics.InverseRelationFailures.Inc()
				mu.Lock()
				failed = append(failed, wgerrors.FailedRelation{EntityID: u.targetID, Relation: u.targetField, Cause: err})
				mu.Unlock()
				m.logger.WithFields(map[string]interface{}{
					"target_id": u.targetID, "field": u.targetField,
				}).WithError(err).Warn("inverse relation update failed, continuing")
				return nil // tolerate: partial failure, not exception-per-failure
			}
			mu.Lock()
			touched = append(touched, TouchedEntity{Kind: u.targetKind, ID: u.targetID})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // applyOne never returns a non-nil error upward; errors are captured in `failed`

	return Result{Touched: touched, Failed: failed}
}

// applyOne fetches target's current page, decodes its inverse field, adds
// or removes entityID, and writes back only that field.
func (m *Maintainer) applyOne(ctx context.Context, targetKind entity.Kind, targetID, targetField, entityID string, add bool) error {
	page, err := m.gw.RetrievePage(ctx, targetID)
	if err != nil {
		return err
	}

	target, err := entity.TransformByKind(ctx, m.dec, targetKind, &page)
	if err != nil {
		return err
	}

	current := entity.GetRelation(target, targetField)
	var next []string
	if add {
		if containsID(current, entityID) {
			return nil
		}
		next = append(append([]string(nil), current...), entityID)
	} else {
		next = removeID(current, entityID)
		if len(next) == len(current) {
			return nil
		}
	}
	entity.SetRelation(target, targetField, next)

	props, err := entity.EncodeByKind(targetKind, target, []string{targetField})
	if err != nil {
		return err
	}
	_, err = m.gw.UpdatePage(ctx, targetID, props)
	return err
}

func setDiff(a, b []string) []string {
	inB := make(map[string]int, len(b))
	for _, id := range b {
		inB[id]++
	}
	var out []string
	for _, id := range a {
		if inB[id] > 0 {
			inB[id]--
			continue
		}
		out = append(out, id)
	}
	return out
}

func containsID(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func removeID(ids []string, target string) []string {
	out := make([]string, 0, len(ids))
	removed := false
	for _, id := range ids {
		if !removed && id == target {
			removed = true
			continue
		}
		out = append(out, id)
	}
	return out
}
