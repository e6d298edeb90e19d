package hypergraph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cinelex/rightsgraph/pkg/docstore"
	"github.com/cinelex/rightsgraph/pkg/schema"
	"github.com/cinelex/rightsgraph/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(docstore.NewMemory(), schema.NewRegistry())
}

func seedNodes(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	ctx := context.Background()
	kinds := map[string]types.NodeKind{
		"asset-x": types.KindAsset, "fr": types.KindTerritory, "de": types.KindTerritory,
		"plat-p": types.KindPlatform, "person-1": types.KindPerson,
	}
	for _, id := range ids {
		kind, ok := kinds[id]
		if !ok {
			kind = types.KindAsset
		}
		node := &types.Node{CanonicalID: id, Title: id, Kind: kind}
		require.NoError(t, s.CreateNode(ctx, node))
	}
}

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func tp(t time.Time) *time.Time { return &t }

func rightsEdge(from time.Time, to *time.Time, license string) *types.Hyperedge {
	return &types.Hyperedge{
		Relation: "distribution_rights",
		Participants: []types.Participant{
			{NodeID: "asset-x", Role: "asset"},
			{NodeID: "fr", Role: "territory"},
			{NodeID: "plat-p", Role: "platform"},
		},
		ValidFrom: from,
		ValidTo:   to,
		Props:     map[string]any{"license_type": license},
	}
}

func TestPutHyperedgeRejectsMissingRole(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedNodes(t, s, "asset-x", "fr", "plat-p")

	edge := rightsEdge(day(1), nil, "exclusive")
	edge.Participants = edge.Participants[:2]
	_, err := s.PutHyperedge(ctx, edge)
	require.ErrorIs(t, err, &types.SchemaError{})
}

func TestPutHyperedgeRejectsUnknownParticipant(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedNodes(t, s, "asset-x", "fr") // no platform node

	_, err := s.PutHyperedge(ctx, rightsEdge(day(1), nil, "exclusive"))
	require.ErrorIs(t, err, types.ErrNotFound)
}

// Insert an exclusive right for (asset, FR, platform) over Jan-Jun, then a
// second exclusive right for the same key over May-Dec: exactly one conflict
// is reported, both edges end up marked conflict, and neither is deleted.
func TestExclusiveOverlapMarksBothConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedNodes(t, s, "asset-x", "fr", "plat-p")

	first, err := s.PutHyperedge(ctx, rightsEdge(day(1), tp(time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)), "exclusive"))
	require.NoError(t, err)
	require.Empty(t, first.Conflicts)
	require.Equal(t, types.StatusActive, first.Edge.Status)

	second, err := s.PutHyperedge(ctx, rightsEdge(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), tp(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)), "exclusive"))
	require.NoError(t, err)
	require.Len(t, second.Conflicts, 1)
	require.Equal(t, first.Edge.ID, second.Conflicts[0].ID)
	require.Equal(t, types.StatusConflict, second.Edge.Status)

	stored1, err := s.GetHyperedge(ctx, first.Edge.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusConflict, stored1.Status)
	require.Contains(t, stored1.ConflictsWith, second.Edge.ID)

	stored2, err := s.GetHyperedge(ctx, second.Edge.ID)
	require.NoError(t, err)
	require.Contains(t, stored2.ConflictsWith, first.Edge.ID)
}

func TestNonExclusiveNeverCollides(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedNodes(t, s, "asset-x", "fr", "plat-p")

	_, err := s.PutHyperedge(ctx, rightsEdge(day(1), nil, "non_exclusive"))
	require.NoError(t, err)

	res, err := s.PutHyperedge(ctx, rightsEdge(day(2), nil, "non_exclusive"))
	require.NoError(t, err)
	require.Empty(t, res.Conflicts)
	require.Equal(t, types.StatusActive, res.Edge.Status)
}

func TestDifferentKeyDoesNotCollide(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedNodes(t, s, "asset-x", "fr", "de", "plat-p")

	_, err := s.PutHyperedge(ctx, rightsEdge(day(1), nil, "exclusive"))
	require.NoError(t, err)

	other := rightsEdge(day(1), nil, "exclusive")
	other.Participants[1].NodeID = "de"
	res, err := s.PutHyperedge(ctx, other)
	require.NoError(t, err)
	require.Empty(t, res.Conflicts)
}

func TestBitemporalQuery(t *testing.T) {
	ctx := context.Background()
	clock := day(1)
	var mu sync.Mutex
	s := New(docstore.NewMemory(), schema.NewRegistry(), WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}))
	seedNodes(t, s, "asset-x", "fr", "plat-p")

	res, err := s.PutHyperedge(ctx, rightsEdge(day(10), tp(day(20)), "non_exclusive"))
	require.NoError(t, err)
	txAfterInsert := res.Edge.TxTime

	// Valid-time slicing: before, inside, at exclusive end, after.
	for _, tc := range []struct {
		name  string
		at    time.Time
		found bool
	}{
		{"before window", day(5), false},
		{"at valid_from", day(10), true},
		{"inside window", day(15), true},
		{"at valid_to (half-open)", day(20), false},
		{"after window", day(25), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			edges, err := s.GetHyperedges(ctx, Filter{Relation: "distribution_rights"}, tp(tc.at), nil)
			require.NoError(t, err)
			require.Equal(t, tc.found, len(edges) == 1, "got %d edges", len(edges))
		})
	}

	// Transaction-time slicing: a query as of a transaction time before the
	// insert sees nothing, even inside the valid window.
	before := txAfterInsert.Add(-time.Millisecond)
	edges, err := s.GetHyperedges(ctx, Filter{}, tp(day(15)), &before)
	require.NoError(t, err)
	require.Empty(t, edges)

	edges, err = s.GetHyperedges(ctx, Filter{}, tp(day(15)), &txAfterInsert)
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestReviseClosesOldAndInsertsNew(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedNodes(t, s, "asset-x", "fr", "plat-p")

	orig, err := s.PutHyperedge(ctx, rightsEdge(day(1), nil, "non_exclusive"))
	require.NoError(t, err)

	replacement := rightsEdge(day(15), nil, "non_exclusive")
	revised, err := s.ReviseHyperedge(ctx, orig.Edge.ID, replacement, nil)
	require.NoError(t, err)
	require.NotEqual(t, orig.Edge.ID, revised.Edge.ID)

	old, err := s.GetHyperedge(ctx, orig.Edge.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusSuperseded, old.Status)
	require.NotNil(t, old.ValidTo)
	require.True(t, old.ValidTo.Equal(day(15)), "old version closed at replacement's valid_from")
	require.True(t, revised.Edge.TxTime.After(old.TxTime), "audit chain ordering")

	// As of day 10 the old version applies; as of day 20, the new one.
	at10, err := s.GetHyperedges(ctx, Filter{}, tp(day(10)), nil)
	require.NoError(t, err)
	require.Len(t, at10, 1)
	require.Equal(t, old.ID, at10[0].ID)

	at20, err := s.GetHyperedges(ctx, Filter{}, tp(day(20)), nil)
	require.NoError(t, err)
	require.Len(t, at20, 1)
	require.Equal(t, revised.Edge.ID, at20[0].ID)
}

func TestTransactionTimeMonotonic(t *testing.T) {
	ctx := context.Background()
	// A frozen clock forces the store to fabricate strictly increasing
	// transaction times.
	s := New(docstore.NewMemory(), schema.NewRegistry(), WithClock(func() time.Time { return day(1) }))
	seedNodes(t, s, "asset-x", "fr", "plat-p")

	var last time.Time
	for i := 0; i < 5; i++ {
		res, err := s.PutHyperedge(ctx, rightsEdge(day(1), nil, "non_exclusive"))
		require.NoError(t, err)
		require.True(t, res.Edge.TxTime.After(last), "tx time must be strictly increasing")
		last = res.Edge.TxTime
	}
}

func TestConcurrentExclusiveWritesSameKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedNodes(t, s, "asset-x", "fr", "plat-p")

	const writers = 8
	var wg sync.WaitGroup
	results := make([]*PutResult, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.PutHyperedge(ctx, rightsEdge(day(1), tp(day(30)), "exclusive"))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// Exactly one writer can have seen an empty store; all others must have
	// detected at least one collision. No outcome where two writers both
	// miss each other is acceptable.
	clean := 0
	for _, res := range results {
		if len(res.Conflicts) == 0 {
			clean++
		}
	}
	require.Equal(t, 1, clean, "exactly one write should precede all collisions")
}

func TestSupersedeNodeKeepsAliasChain(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	winner := &types.Node{Title: "Blade Runner", Kind: types.KindAsset, ExternalIDs: map[string]string{"imdb": "tt0083658"}}
	require.NoError(t, s.CreateNode(ctx, winner))
	loser := &types.Node{Title: "Blade Runner (1982)", Kind: types.KindAsset, ExternalIDs: map[string]string{"tmdb": "78"}}
	require.NoError(t, s.CreateNode(ctx, loser))

	require.NoError(t, s.SupersedeNode(ctx, loser.CanonicalID, winner.CanonicalID))

	gotLoser, err := s.GetNode(ctx, loser.CanonicalID)
	require.NoError(t, err)
	require.True(t, gotLoser.Superseded)
	require.Equal(t, []string{winner.CanonicalID}, gotLoser.Aliases)

	gotWinner, err := s.GetNode(ctx, winner.CanonicalID)
	require.NoError(t, err)
	require.Contains(t, gotWinner.Aliases, loser.CanonicalID)

	// External-id lookup through the superseded node lands on the winner.
	resolved, err := s.FindNodeByExternalID(ctx, "tmdb", "78")
	require.NoError(t, err)
	require.Equal(t, winner.CanonicalID, resolved.CanonicalID)
}

func TestFindNodeByExternalIDMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.FindNodeByExternalID(ctx, "imdb", "tt000")
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
