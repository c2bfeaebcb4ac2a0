package router

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/workspacegraph/internal/cache"
	"github.com/kestrel-labs/workspacegraph/internal/decode"
	"github.com/kestrel-labs/workspacegraph/internal/entity"
	"github.com/kestrel-labs/workspacegraph/internal/gateway"
	"github.com/kestrel-labs/workspacegraph/internal/logging"
	"github.com/kestrel-labs/workspacegraph/internal/maintainer"
	"github.com/kestrel-labs/workspacegraph/internal/statecapture"
	"github.com/kestrel-labs/workspacegraph/internal/workspace"
)

const (
	charDBID = "char-db"
	elemDBID = "elem-db"
)

// fakeTransport is an in-memory, database-partitioned stand-in for the
// upstream workspace API, supporting the full CRUD surface the Router
// exercises without any real pagination (every QueryDatabase call returns
// its whole database in one page).
type fakeTransport struct {
	mu         sync.Mutex
	pages      map[string]workspace.Page
	byDatabase map[string][]string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{pages: map[string]workspace.Page{}, byDatabase: map[string][]string{}}
}

func (f *fakeTransport) seed(databaseID string, props map[string]workspace.Property) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.pages[id] = workspace.Page{ID: id, DatabaseID: databaseID, Properties: props}
	f.byDatabase[databaseID] = append(f.byDatabase[databaseID], id)
	return id
}

func (f *fakeTransport) QueryDatabase(ctx context.Context, databaseID, cursor string, pageSize int, filter interface{}) (gateway.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pages []workspace.Page
	for _, id := range f.byDatabase[databaseID] {
		pages = append(pages, f.pages[id])
	}
	return gateway.QueryResult{Pages: pages, HasMore: false}, nil
}

func (f *fakeTransport) RetrievePage(ctx context.Context, id string) (workspace.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[id], nil
}

func (f *fakeTransport) RetrieveProperty(ctx context.Context, pageID, propertyID, cursor string) (gateway.PropertyPage, error) {
	return gateway.PropertyPage{}, nil
}

func (f *fakeTransport) UpdatePage(ctx context.Context, id string, properties map[string]workspace.Property) (workspace.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := f.pages[id]
	if page.Properties == nil {
		page.Properties = map[string]workspace.Property{}
	}
	for k, v := range properties {
		page.Properties[k] = v
	}
	f.pages[id] = page
	return page, nil
}

func (f *fakeTransport) CreatePage(ctx context.Context, parentDatabaseID string, properties map[string]workspace.Property) (workspace.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	page := workspace.Page{ID: id, DatabaseID: parentDatabaseID, Properties: properties}
	f.pages[id] = page
	f.byDatabase[parentDatabaseID] = append(f.byDatabase[parentDatabaseID], id)
	return page, nil
}

func (f *fakeTransport) ArchivePage(ctx context.Context, id string) (workspace.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := f.pages[id]
	page.Archived = true
	f.pages[id] = page
	return page, nil
}

func (f *fakeTransport) page(id string) workspace.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[id]
}

type fakeResolver map[string]string

func (f fakeResolver) KindForDatabaseID(dbID string) (string, bool) {
	kind, ok := f[dbID]
	return kind, ok
}

func testLogger() *logging.ContextLogger {
	return logging.ServiceLogger(logging.New(logging.DefaultConfig()), "router-test", "0.0.0")
}

func characterSpec() KindSpec[entity.Character] {
	return KindSpec[entity.Character]{
		Kind:       entity.KindCharacter,
		DatabaseID: charDBID,
		Transform:  entity.TransformCharacter,
		Encode:     entity.EncodeCharacter,
	}
}

func elementSpec() KindSpec[entity.Element] {
	return KindSpec[entity.Element]{
		Kind:       entity.KindElement,
		DatabaseID: elemDBID,
		Transform:  entity.TransformElement,
		Encode:     entity.EncodeElement,
	}
}

// harness wires one fakeTransport through real Gateway/Decoder/Cache/
// Maintainer/Capture components, mirroring cmd/server's own wiring.
type harness struct {
	transport *fakeTransport
	gw        *gateway.Gateway
	dec       *decode.Decoder
	cache     *cache.Coordinator
	maint     *maintainer.Maintainer
	capture   *statecapture.Capture
}

func newHarness() *harness {
	transport := newFakeTransport()
	gw := gateway.New(transport, gateway.Config{RequestsPerSecond: 1000, BurstSize: 1000}, testLogger())
	dec := decode.New(gw)
	coord := cache.New(cache.DefaultConfig(), nil)
	maint := maintainer.New(gw, dec, testLogger())
	capture := statecapture.New(gw, dec, fakeResolver{charDBID: string(entity.KindCharacter), elemDBID: string(entity.KindElement)}, testLogger())
	return &harness{transport: transport, gw: gw, dec: dec, cache: coord, maint: maint, capture: capture}
}

func characterRouter(h *harness) *Router[entity.Character] {
	return New(h.gw, h.dec, h.cache, h.maint, h.capture, testLogger(), characterSpec())
}

func elementRouter(h *harness) *Router[entity.Element] {
	return New(h.gw, h.dec, h.cache, h.maint, h.capture, testLogger(), elementSpec())
}

func nameProp(text string) workspace.Property {
	return workspace.Property{Kind: workspace.PropertyTitle, RichText: []workspace.RichTextFragment{{PlainText: text}}}
}

func TestRouterListReturnsAllAndCachesOnSecondCall(t *testing.T) {
	h := newHarness()
	h.transport.seed(charDBID, map[string]workspace.Property{"Name": nameProp("Alice")})
	h.transport.seed(charDBID, map[string]workspace.Property{"Name": nameProp("Bob")})
	r := characterRouter(h)

	first, err := r.List(context.Background(), 10, "", nil, false)
	require.NoError(t, err)
	assert.Len(t, first.Data, 2)
	assert.False(t, first.CacheHit)

	second, err := r.List(context.Background(), 10, "", nil, false)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Len(t, second.Data, 2)
}

func TestRouterGetServesFromCacheOnSecondCall(t *testing.T) {
	h := newHarness()
	id := h.transport.seed(charDBID, map[string]workspace.Property{"Name": nameProp("Alice")})
	r := characterRouter(h)

	value, _, hit, err := r.Get(context.Background(), id, false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Alice", value.Name)

	_, _, hit, err = r.Get(context.Background(), id, false)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestRouterGetBypassCacheAlwaysRefetches(t *testing.T) {
	h := newHarness()
	id := h.transport.seed(charDBID, map[string]workspace.Property{"Name": nameProp("Alice")})
	r := characterRouter(h)

	_, _, _, err := r.Get(context.Background(), id, false)
	require.NoError(t, err)

	_, _, hit, err := r.Get(context.Background(), id, true)
	require.NoError(t, err)
	assert.False(t, hit, "bypassCache must skip the cache even on a key that is populated")
}

func TestRouterCreateWithoutParentRelation(t *testing.T) {
	h := newHarness()
	r := characterRouter(h)

	created, err := r.Create(context.Background(), entity.Character{Name: "Alice"}, []string{"Name"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Alice", created.Name)
}

func TestRouterCreateWithParentRelationLinksParentAtomically(t *testing.T) {
	h := newHarness()
	charID := h.transport.seed(charDBID, map[string]workspace.Property{"Name": nameProp("Alice")})
	er := elementRouter(h)

	created, err := er.Create(context.Background(), entity.Element{Name: "Locket"}, []string{"Name"}, &ParentRelation{
		ParentKind: entity.KindCharacter,
		ParentID:   charID,
		FieldKey:   "OwnedElements",
	})

	require.NoError(t, err)
	parentPage := h.transport.page(charID)
	ownedProp := parentPage.Properties["Owned Elements"]
	assert.Contains(t, ownedProp.RelationIDs, created.ID)
}

func TestRouterUpdateAppliesChangeAndReturnsDelta(t *testing.T) {
	h := newHarness()
	id := h.transport.seed(charDBID, map[string]workspace.Property{"Name": nameProp("Alice")})
	r := characterRouter(h)

	merged, d, err := r.Update(context.Background(), id, entity.Character{Name: "Alice Updated"}, []string{"Name"})

	require.NoError(t, err)
	assert.Equal(t, "Alice Updated", merged.Name)
	assert.NotNil(t, d)
}

func TestRouterArchiveMarksPageArchivedAndStripsInverseRelations(t *testing.T) {
	h := newHarness()
	elemID := h.transport.seed(elemDBID, map[string]workspace.Property{"Name": nameProp("Locket")})
	charID := h.transport.seed(charDBID, map[string]workspace.Property{
		"Name":           nameProp("Alice"),
		"Owned Elements": {Kind: workspace.PropertyRelation, RelationIDs: []string{elemID}},
	})
	_, err := h.transport.UpdatePage(context.Background(), elemID, map[string]workspace.Property{
		"Owner": {Kind: workspace.PropertyRelation, RelationIDs: []string{charID}},
	})
	require.NoError(t, err)
	r := characterRouter(h)

	archived, d, err := r.Archive(context.Background(), charID)

	require.NoError(t, err)
	assert.True(t, archived)
	assert.NotNil(t, d)
	assert.True(t, h.transport.page(charID).Archived)

	elemPage := h.transport.page(elemID)
	assert.Empty(t, elemPage.Properties["Owner"].RelationIDs, "archiving the owning character must strip it from the element's inverse Owner field")
}
