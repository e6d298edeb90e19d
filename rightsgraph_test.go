package rightsgraph

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinelex/rightsgraph/pkg/config"
	"github.com/cinelex/rightsgraph/pkg/hypergraph"
	"github.com/cinelex/rightsgraph/pkg/ingest"
	"github.com/cinelex/rightsgraph/pkg/query"
	"github.com/cinelex/rightsgraph/pkg/resolver"
	"github.com/cinelex/rightsgraph/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Embedding: config.EmbeddingConfig{Provider: "hashing", Dimensions: 64},
		Resolver: config.ResolverConfig{
			HighThreshold:   0.95,
			LowThreshold:    0.80,
			YearTolerance:   1,
			FallbackCeiling: 0.75,
			TopK:            5,
			CacheTTLHours:   1,
		},
		Ingest: config.IngestConfig{BatchSize: 10, Workers: 2},
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientResolveAndLookup(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	res, err := client.ResolveRecord(ctx, &resolver.Record{
		Kind:        types.KindAsset,
		Title:       "Harbor Lights",
		Year:        2012,
		ExternalIDs: map[string]string{"imdb": "tt0099001"},
	})
	require.NoError(t, err)
	require.Equal(t, types.OutcomeCreated, res.Outcome)

	node, err := client.FindNodeByExternalID(ctx, "imdb", "tt0099001")
	require.NoError(t, err)
	assert.Equal(t, res.CanonicalID, node.CanonicalID)

	again, err := client.ResolveRecord(ctx, &resolver.Record{
		Kind:        types.KindAsset,
		Title:       "Harbour Lights",
		ExternalIDs: map[string]string{"imdb": "tt0099001"},
	})
	require.NoError(t, err)
	assert.Equal(t, res.CanonicalID, again.CanonicalID)
	assert.Equal(t, types.OutcomeMatched, again.Outcome)
}

func TestClientRightsRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	ids := map[string]string{}
	for title, kind := range map[string]types.NodeKind{
		"Harbor Lights": types.KindAsset,
		"France":        types.KindTerritory,
		"StreamCo":      types.KindPlatform,
	} {
		res, err := client.ResolveRecord(ctx, &resolver.Record{Kind: kind, Title: title})
		require.NoError(t, err)
		ids[title] = res.CanonicalID
	}

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	participants := []types.Participant{
		{Role: "asset", NodeID: ids["Harbor Lights"]},
		{Role: "territory", NodeID: ids["France"]},
		{Role: "platform", NodeID: ids["StreamCo"]},
	}

	first, err := client.PutHyperedge(ctx, &types.Hyperedge{
		Relation:     "distribution_rights",
		Participants: participants,
		ValidFrom:    from,
		ValidTo:      &to,
		Props:        map[string]any{"license_type": "exclusive"},
	})
	require.NoError(t, err)
	assert.Empty(t, first.Conflicts)

	// An overlapping exclusive claim is recorded and flagged, not rejected.
	overlapTo := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	second, err := client.PutHyperedge(ctx, &types.Hyperedge{
		Relation:     "distribution_rights",
		Participants: participants,
		ValidFrom:    time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:      &overlapTo,
		Props:        map[string]any{"license_type": "exclusive"},
	})
	require.NoError(t, err)
	require.Len(t, second.Conflicts, 1)
	assert.Equal(t, first.Edge.ID, second.Conflicts[0].ID)

	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	edges, err := client.GetHyperedges(ctx, hypergraph.Filter{
		Relation: "distribution_rights",
		NodeID:   ids["Harbor Lights"],
	}, &asOf, nil)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, first.Edge.ID, edges[0].ID)
}

func TestClientIngestAndSearch(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	feed := strings.Join([]string{
		`{"title": "Glacier Patrol", "year": 2019, "overview": "arctic rescue team drama", "external_ids": {"feed": "1"}}`,
		`{"title": "Desert Mirage", "year": 2020, "overview": "survival in the dunes", "external_ids": {"feed": "2"}}`,
		`{"broken": true`,
	}, "\n")

	report, err := client.Ingest(ctx, "run-1",
		ingest.NewJSONLSource(io.NopCloser(strings.NewReader(feed))))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Stored)
	assert.Equal(t, 1, report.Failed)

	res, err := client.SemanticSearch(ctx, "Glacier Patrol", 5)
	require.NoError(t, err)
	assert.Equal(t, types.SearchModeNative, res.Mode)
	require.NotEmpty(t, res.Items)
	assert.Equal(t, "Glacier Patrol", res.Items[0].Node.Title)

	page, err := client.StructuredQuery(ctx, query.Filter{Kind: types.KindAsset}, query.SortYear, true, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Desert Mirage", page.Items[0].Title)
}
