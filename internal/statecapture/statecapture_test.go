package statecapture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/workspacegraph/internal/entity"
	"github.com/kestrel-labs/workspacegraph/internal/gateway"
	"github.com/kestrel-labs/workspacegraph/internal/logging"
)

const (
	charDBID = "char-db"
	elemDBID = "elem-db"

	charID1 = "11111111-1111-1111-1111-111111111111"
	elemID1 = "22222222-2222-2222-2222-222222222222"
	elemID2 = "33333333-3333-3333-3333-333333333333"
)

type fakeResolver map[string]string

func (f fakeResolver) KindForDatabaseID(dbID string) (string, bool) {
	kind, ok := f[dbID]
	return kind, ok
}

func testLogger() *logging.ContextLogger {
	return logging.ServiceLogger(logging.New(logging.DefaultConfig()), "statecapture-test", "0.0.0")
}

func TestNeighborhoodIncludesTargetAndDirectNeighborsOnly(t *testing.T) {
	rt := newFixtureTransport(
		fixturePage(charID1, charDBID, map[string]fixtureProp{
			"Name":           {text: "Alice"},
			"Owned Elements": {relation: []string{elemID1}},
		}),
		fixturePage(elemID1, elemDBID, map[string]fixtureProp{
			"Name": {text: "Locket"},
		}),
		fixturePage(elemID2, elemDBID, map[string]fixtureProp{
			"Name": {text: "Unrelated Crate"},
		}),
	)
	gw := gateway.New(rt, gateway.Config{RequestsPerSecond: 1000, BurstSize: 1000}, testLogger())
	capture := New(gw, decoderFor(gw), fakeResolver{charDBID: string(entity.KindCharacter), elemDBID: string(entity.KindElement)}, testLogger())

	graph, err := capture.Neighborhood(context.Background(), entity.KindCharacter, charID1)

	require.NoError(t, err)
	ids := map[string]bool{}
	for _, n := range graph.Nodes {
		ids[n.ID] = true
	}
	assert.True(t, ids[charID1])
	assert.True(t, ids[elemID1])
	assert.False(t, ids[elemID2], "an entity with no edge to the target must not appear in its neighborhood")
}

func TestIDSetOmitsUnfetchableIDs(t *testing.T) {
	rt := newFixtureTransport(
		fixturePage(charID1, charDBID, map[string]fixtureProp{"Name": {text: "Alice"}}),
	)
	gw := gateway.New(rt, gateway.Config{RequestsPerSecond: 1000, BurstSize: 1000}, testLogger())
	capture := New(gw, decoderFor(gw), fakeResolver{charDBID: string(entity.KindCharacter)}, testLogger())

	graph, err := capture.IDSet(context.Background(), []string{charID1, "does-not-exist"})

	require.NoError(t, err)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, charID1, graph.Nodes[0].ID)
}
