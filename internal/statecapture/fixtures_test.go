package statecapture

import (
	"context"
	"sync"

	"github.com/kestrel-labs/workspacegraph/internal/decode"
	wgerrors "github.com/kestrel-labs/workspacegraph/internal/errors"
	"github.com/kestrel-labs/workspacegraph/internal/gateway"
	"github.com/kestrel-labs/workspacegraph/internal/workspace"
)

type fixtureProp struct {
	text     string
	relation []string
}

func fixturePage(id, databaseID string, props map[string]fixtureProp) workspace.Page {
	page := workspace.Page{ID: id, DatabaseID: databaseID, Properties: map[string]workspace.Property{}}
	for name, p := range props {
		switch {
		case p.relation != nil:
			page.Properties[name] = workspace.Property{Kind: workspace.PropertyRelation, RelationIDs: p.relation}
		default:
			page.Properties[name] = workspace.Property{Kind: workspace.PropertyTitle, RichText: []workspace.RichTextFragment{{PlainText: p.text}}}
		}
	}
	return page
}

// fixtureTransport is a fake gateway.Transport serving a fixed set of pages
// by id, for tests that only exercise retrieval, never mutation.
type fixtureTransport struct {
	mu    sync.Mutex
	pages map[string]workspace.Page
}

func newFixtureTransport(pages ...workspace.Page) *fixtureTransport {
	ft := &fixtureTransport{pages: map[string]workspace.Page{}}
	for _, p := range pages {
		ft.pages[p.ID] = p
	}
	return ft
}

func (f *fixtureTransport) QueryDatabase(ctx context.Context, databaseID, cursor string, pageSize int, filter interface{}) (gateway.QueryResult, error) {
	return gateway.QueryResult{}, nil
}

func (f *fixtureTransport) RetrievePage(ctx context.Context, id string) (workspace.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[id]
	if !ok {
		return workspace.Page{}, wgerrors.UpstreamPermanent("not found", notFoundErr{})
	}
	return page, nil
}

func (f *fixtureTransport) RetrieveProperty(ctx context.Context, pageID, propertyID, cursor string) (gateway.PropertyPage, error) {
	return gateway.PropertyPage{}, nil
}

func (f *fixtureTransport) UpdatePage(ctx context.Context, id string, properties map[string]workspace.Property) (workspace.Page, error) {
	return workspace.Page{}, nil
}

func (f *fixtureTransport) CreatePage(ctx context.Context, parentDatabaseID string, properties map[string]workspace.Property) (workspace.Page, error) {
	return workspace.Page{}, nil
}

func (f *fixtureTransport) ArchivePage(ctx context.Context, id string) (workspace.Page, error) {
	return workspace.Page{}, nil
}

// notFoundErr is the cause inside the wgerrors.UpstreamPermanent error that
// RetrievePage returns for an unknown id — the classification statecapture
// relies on to treat a missing page as absence, not failure.
type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

func decoderFor(gw *gateway.Gateway) *decode.Decoder {
	return decode.New(gw)
}
