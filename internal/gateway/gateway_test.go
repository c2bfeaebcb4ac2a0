package gateway

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wgerrors "github.com/kestrel-labs/workspacegraph/internal/errors"
	"github.com/kestrel-labs/workspacegraph/internal/logging"
	"github.com/kestrel-labs/workspacegraph/internal/workspace"
)

func testLogger() *logging.ContextLogger {
	return logging.ServiceLogger(logging.New(logging.DefaultConfig()), "gateway-test", "0.0.0")
}

// fakeTransport lets each test script exactly how many times a call fails
// before succeeding (or fails permanently).
type fakeTransport struct {
	retrievePageCalls int32
	failTimes         int32 // number of leading calls that return a transient error
	permanent         bool
}

func (f *fakeTransport) QueryDatabase(ctx context.Context, databaseID, cursor string, pageSize int, filter interface{}) (QueryResult, error) {
	return QueryResult{}, nil
}

func (f *fakeTransport) RetrievePage(ctx context.Context, id string) (workspace.Page, error) {
	n := atomic.AddInt32(&f.retrievePageCalls, 1)
	if f.permanent {
		return workspace.Page{}, wgerrors.UpstreamPermanent("not found", nil)
	}
	if n <= f.failTimes {
		return workspace.Page{}, wgerrors.UpstreamTransient("temporary failure", nil)
	}
	return workspace.Page{ID: id}, nil
}

func (f *fakeTransport) RetrieveProperty(ctx context.Context, pageID, propertyID, cursor string) (PropertyPage, error) {
	return PropertyPage{}, nil
}

func (f *fakeTransport) UpdatePage(ctx context.Context, id string, properties map[string]workspace.Property) (workspace.Page, error) {
	return workspace.Page{ID: id}, nil
}

func (f *fakeTransport) CreatePage(ctx context.Context, parentDatabaseID string, properties map[string]workspace.Property) (workspace.Page, error) {
	return workspace.Page{ID: "new-page"}, nil
}

func (f *fakeTransport) ArchivePage(ctx context.Context, id string) (workspace.Page, error) {
	return workspace.Page{ID: id, Archived: true}, nil
}

func fastConfig() Config {
	return Config{RequestsPerSecond: 1000, BurstSize: 1000, MaxRetries: 3, InitialBackoff: time.Millisecond, Strategy: BackoffExponential}
}

func TestGatewayRetriesTransientFailureThenSucceeds(t *testing.T) {
	ft := &fakeTransport{failTimes: 2}
	gw := New(ft, fastConfig(), testLogger())

	page, err := gw.RetrievePage(context.Background(), "page-1")

	require.NoError(t, err)
	assert.Equal(t, "page-1", page.ID)
	assert.Equal(t, int32(3), ft.retrievePageCalls)
}

func TestGatewayDoesNotRetryPermanentError(t *testing.T) {
	ft := &fakeTransport{permanent: true}
	gw := New(ft, fastConfig(), testLogger())

	_, err := gw.RetrievePage(context.Background(), "page-1")

	require.Error(t, err)
	assert.Equal(t, int32(1), ft.retrievePageCalls, "a permanent error must not be retried")
}

func TestGatewayExhaustsRetriesAndReturnsTransientError(t *testing.T) {
	ft := &fakeTransport{failTimes: 100}
	cfg := fastConfig()
	cfg.MaxRetries = 2
	gw := New(ft, cfg, testLogger())

	_, err := gw.RetrievePage(context.Background(), "page-1")

	require.Error(t, err)
	assert.Equal(t, int32(3), ft.retrievePageCalls) // initial + 2 retries
	assert.True(t, wgerrors.IsKind(err, wgerrors.KindUpstreamTransient))
}

func TestGatewayRespectsContextCancellation(t *testing.T) {
	ft := &fakeTransport{failTimes: 100}
	gw := New(ft, fastConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.RetrievePage(ctx, "page-1")
	require.Error(t, err)
}

func TestRetrieveFullRelationReturnsFirstIDsWhenNotPaginated(t *testing.T) {
	ft := &fakeTransport{}
	gw := New(ft, fastConfig(), testLogger())

	first := workspace.Property{RelationIDs: []string{"a", "b"}, RelationMore: false}
	ids, err := gw.RetrieveFullRelation(context.Background(), "page-1", "prop-1", first)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestCalculateBackoffStrategies(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, calculateBackoff(0, BackoffLinear, 100*time.Millisecond))
	assert.Equal(t, 300*time.Millisecond, calculateBackoff(2, BackoffLinear, 100*time.Millisecond))

	assert.Equal(t, 100*time.Millisecond, calculateBackoff(0, BackoffExponential, 100*time.Millisecond))
	assert.Equal(t, 400*time.Millisecond, calculateBackoff(2, BackoffExponential, 100*time.Millisecond))
}
