package maintainer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/workspacegraph/internal/decode"
	"github.com/kestrel-labs/workspacegraph/internal/entity"
	"github.com/kestrel-labs/workspacegraph/internal/gateway"
	"github.com/kestrel-labs/workspacegraph/internal/logging"
	"github.com/kestrel-labs/workspacegraph/internal/workspace"
)

// registryTransport is a fake gateway.Transport backed by an in-memory page
// registry, letting applyOne's retrieve-decode-mutate-encode-write cycle run
// against fixture data without a real upstream.
type registryTransport struct {
	mu    sync.Mutex
	pages map[string]workspace.Page
}

func newRegistryTransport(pages ...workspace.Page) *registryTransport {
	rt := &registryTransport{pages: map[string]workspace.Page{}}
	for _, p := range pages {
		rt.pages[p.ID] = p
	}
	return rt
}

func (r *registryTransport) QueryDatabase(ctx context.Context, databaseID, cursor string, pageSize int, filter interface{}) (gateway.QueryResult, error) {
	return gateway.QueryResult{}, nil
}

func (r *registryTransport) RetrievePage(ctx context.Context, id string) (workspace.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pages[id], nil
}

func (r *registryTransport) RetrieveProperty(ctx context.Context, pageID, propertyID, cursor string) (gateway.PropertyPage, error) {
	return gateway.PropertyPage{}, nil
}

func (r *registryTransport) UpdatePage(ctx context.Context, id string, properties map[string]workspace.Property) (workspace.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := r.pages[id]
	if page.Properties == nil {
		page.Properties = map[string]workspace.Property{}
	}
	for k, v := range properties {
		page.Properties[k] = v
	}
	r.pages[id] = page
	return page, nil
}

func (r *registryTransport) CreatePage(ctx context.Context, parentDatabaseID string, properties map[string]workspace.Property) (workspace.Page, error) {
	return workspace.Page{}, nil
}

func (r *registryTransport) ArchivePage(ctx context.Context, id string) (workspace.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := r.pages[id]
	page.Archived = true
	r.pages[id] = page
	return page, nil
}

func (r *registryTransport) page(id string) workspace.Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pages[id]
}

func testLogger() *logging.ContextLogger {
	return logging.ServiceLogger(logging.New(logging.DefaultConfig()), "maintainer-test", "0.0.0")
}

const (
	charID1 = "11111111-1111-1111-1111-111111111111"
	elemID1 = "22222222-2222-2222-2222-222222222222"
	elemID2 = "33333333-3333-3333-3333-333333333333"
)

func TestReconcileAddsInverseOwnerOnNewlyOwnedElement(t *testing.T) {
	rt := newRegistryTransport(
		workspace.Page{ID: elemID1, Properties: map[string]workspace.Property{}},
	)
	gw := gateway.New(rt, gateway.Config{RequestsPerSecond: 1000, BurstSize: 1000}, testLogger())
	dec := decode.New(gw)
	m := New(gw, dec, testLogger())

	old := &entity.Character{ID: charID1}
	newE := &entity.Character{ID: charID1, OwnedElements: []string{elemID1}}

	result := m.Reconcile(context.Background(), entity.KindCharacter, charID1, old, newE)

	require.Empty(t, result.Failed)
	require.Len(t, result.Touched, 1)
	assert.Equal(t, elemID1, result.Touched[0].ID)

	updated := rt.page(elemID1)
	ownerProp := updated.Properties["Owner"]
	assert.Equal(t, []string{charID1}, ownerProp.RelationIDs)
}

func TestReconcileRemovesInverseOwnerWhenRelationDropped(t *testing.T) {
	rt := newRegistryTransport(
		workspace.Page{ID: elemID1, Properties: map[string]workspace.Property{
			"Owner": {Kind: workspace.PropertyRelation, RelationIDs: []string{charID1}},
		}},
	)
	gw := gateway.New(rt, gateway.Config{RequestsPerSecond: 1000, BurstSize: 1000}, testLogger())
	dec := decode.New(gw)
	m := New(gw, dec, testLogger())

	old := &entity.Character{ID: charID1, OwnedElements: []string{elemID1}}
	newE := &entity.Character{ID: charID1}

	result := m.Reconcile(context.Background(), entity.KindCharacter, charID1, old, newE)

	require.Empty(t, result.Failed)
	require.Len(t, result.Touched, 1)

	updated := rt.page(elemID1)
	assert.Empty(t, updated.Properties["Owner"].RelationIDs)
}

func TestReconcileTwoTargetsSucceedsIndependently(t *testing.T) {
	rt := newRegistryTransport(
		workspace.Page{ID: elemID1, Properties: map[string]workspace.Property{}},
		workspace.Page{ID: elemID2, Properties: map[string]workspace.Property{}},
	)
	gw := gateway.New(rt, gateway.Config{RequestsPerSecond: 1000, BurstSize: 1000}, testLogger())
	dec := decode.New(gw)
	m := New(gw, dec, testLogger())

	old := &entity.Character{ID: charID1}
	newE := &entity.Character{ID: charID1, OwnedElements: []string{elemID1, elemID2}}

	result := m.Reconcile(context.Background(), entity.KindCharacter, charID1, old, newE)

	require.Empty(t, result.Failed)
	assert.Len(t, result.Touched, 2)
}
