package ingest

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinelex/rightsgraph/pkg/docstore"
	"github.com/cinelex/rightsgraph/pkg/embedder"
	"github.com/cinelex/rightsgraph/pkg/hypergraph"
	"github.com/cinelex/rightsgraph/pkg/resolver"
	"github.com/cinelex/rightsgraph/pkg/schema"
	"github.com/cinelex/rightsgraph/pkg/types"
	"github.com/cinelex/rightsgraph/pkg/vecindex"
)

// downClient forces the resolver onto its deterministic fallback path.
type downClient struct{}

func (downClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, types.ErrProviderUnavailable
}
func (downClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return nil, types.ErrProviderUnavailable
}
func (downClient) Dimensions() int { return 64 }
func (downClient) ModelID() string { return "down" }
func (downClient) Close() error    { return nil }

// sliceSource serves rows from memory, with an optional per-call hook.
type sliceSource struct {
	rows   [][]byte
	next   int
	onNext func(served int)
}

func (s *sliceSource) Next(ctx context.Context) (*RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	s.next++
	if s.onNext != nil {
		s.onNext(s.next)
	}
	return &RawRecord{Line: s.next, Data: s.rows[s.next-1]}, nil
}

func (s *sliceSource) Close() error { return nil }

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *hypergraph.Store) {
	t.Helper()
	store := hypergraph.New(docstore.NewMemory(), schema.NewRegistry())
	idx := vecindex.NewMemory(64, 1)
	res := resolver.New(store, downClient{}, idx, nil, resolver.DefaultConfig(), nil)
	return New(res, store, nil, opts...), store
}

// feedRows builds n rows; lines listed in malformed carry no title and must
// be rejected.
func feedRows(n int, malformed ...int) [][]byte {
	bad := make(map[int]bool, len(malformed))
	for _, line := range malformed {
		bad[line] = true
	}
	rows := make([][]byte, 0, n)
	for i := 1; i <= n; i++ {
		if bad[i] {
			rows = append(rows, []byte(`{"overview": "row without a title"}`))
			continue
		}
		rows = append(rows, []byte(fmt.Sprintf(
			`{"title": "Feed Film %03d", "year": %d, "external_ids": {"feed": "row-%d"}}`,
			i, 1980+i%40, i)))
	}
	return rows
}

func TestRunTolerateRowFailures(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t)

	report, err := p.Run(ctx, "run-1", &sliceSource{rows: feedRows(100, 10, 50, 90)})
	require.NoError(t, err)

	assert.Equal(t, 100, report.Processed)
	assert.Equal(t, 97, report.Stored)
	assert.Equal(t, 3, report.Failed)
	assert.Greater(t, report.Duration.Nanoseconds(), int64(0))

	require.Len(t, report.Errors, 3)
	lines := map[int]bool{}
	for _, re := range report.Errors {
		lines[re.Line] = true
	}
	assert.Equal(t, map[int]bool{10: true, 50: true, 90: true}, lines)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t)

	first, err := p.Run(ctx, "run-1", &sliceSource{rows: feedRows(20)})
	require.NoError(t, err)
	require.Equal(t, 20, first.Stored)

	var before int
	require.NoError(t, store.Nodes(ctx, func(*types.Node) error { before++; return nil }))

	// Same payload again: every row resolves onto its existing node via the
	// structured identifier and the content hash marks it unchanged.
	second, err := p.Run(ctx, "run-2", &sliceSource{rows: feedRows(20)})
	require.NoError(t, err)
	assert.Equal(t, 20, second.Processed)
	assert.Equal(t, 0, second.Stored)
	assert.Equal(t, 0, second.Failed)

	var after int
	require.NoError(t, store.Nodes(ctx, func(*types.Node) error { after++; return nil }))
	assert.Equal(t, before, after)
}

func TestRunUpdatesChangedRows(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t)

	_, err := p.Run(ctx, "run-1", &sliceSource{rows: [][]byte{
		[]byte(`{"title": "Drifting North", "year": 1991, "external_ids": {"feed": "a"}}`),
	}})
	require.NoError(t, err)

	report, err := p.Run(ctx, "run-2", &sliceSource{rows: [][]byte{
		[]byte(`{"title": "Drifting North", "year": 1991, "overview": "restored cut", "external_ids": {"feed": "a"}}`),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stored)

	node, err := store.FindNodeByExternalID(ctx, "feed", "a")
	require.NoError(t, err)
	assert.Equal(t, "restored cut", node.Overview)

	// A retitle on the same identifier lands on the node too.
	_, err = p.Run(ctx, "run-3", &sliceSource{rows: [][]byte{
		[]byte(`{"title": "Drifting True North", "year": 1991, "overview": "restored cut", "external_ids": {"feed": "a"}}`),
	}})
	require.NoError(t, err)

	node, err = store.FindNodeByExternalID(ctx, "feed", "a")
	require.NoError(t, err)
	assert.Equal(t, "Drifting True North", node.Title)
}

func TestRunDeduplicatesIdenticalRowsInOneBatch(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t)

	rows := make([][]byte, 16)
	for i := range rows {
		rows[i] = []byte(`{"title": "Same Film", "external_ids": {"imdb": "tt0099999"}}`)
	}

	report, err := p.Run(ctx, "run-1", &sliceSource{rows: rows})
	require.NoError(t, err)
	assert.Equal(t, 16, report.Processed)
	assert.Equal(t, 1, report.Stored)
	assert.Equal(t, 0, report.Failed)

	// Concurrent copies of one row must collapse onto a single canonical
	// node, not race each other into duplicates.
	count := 0
	require.NoError(t, store.Nodes(ctx, func(*types.Node) error { count++; return nil }))
	assert.Equal(t, 1, count)
}

func TestRunIdempotentWithResolutionCache(t *testing.T) {
	ctx := context.Background()
	store := hypergraph.New(docstore.NewMemory(), schema.NewRegistry())
	idx := vecindex.NewMemory(64, 1)
	cache, err := resolver.OpenCache("", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	res := resolver.New(store, downClient{}, idx, cache, resolver.DefaultConfig(), nil)
	p := New(res, store, nil)

	first, err := p.Run(ctx, "run-1", &sliceSource{rows: feedRows(10)})
	require.NoError(t, err)
	require.Equal(t, 10, first.Stored)

	// The cache replays the original outcomes; replayed creations wrote
	// nothing and must not count as stored.
	second, err := p.Run(ctx, "run-2", &sliceSource{rows: feedRows(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, second.Processed)
	assert.Equal(t, 0, second.Stored)
}

func TestRunReindexesChangedRows(t *testing.T) {
	ctx := context.Background()
	store := hypergraph.New(docstore.NewMemory(), schema.NewRegistry())
	emb := embedder.NewHashingClient(64)
	idx := vecindex.NewMemory(64, 1)
	res := resolver.New(store, emb, idx, nil, resolver.DefaultConfig(), nil)
	p := New(res, store, nil)

	_, err := p.Run(ctx, "run-1", &sliceSource{rows: [][]byte{
		[]byte(`{"title": "Quiet Delta", "external_ids": {"feed": "q"}}`),
	}})
	require.NoError(t, err)

	report, err := p.Run(ctx, "run-2", &sliceSource{rows: [][]byte{
		[]byte(`{"title": "Quiet Delta", "overview": "a river pilot retires", "external_ids": {"feed": "q"}}`),
	}})
	require.NoError(t, err)
	require.Equal(t, 1, report.Stored)

	node, err := store.FindNodeByExternalID(ctx, "feed", "q")
	require.NoError(t, err)

	// The index must now hold the vector of the updated content, not the
	// original title-only text.
	vector, err := emb.EmbedSingle(ctx, resolver.NormalizedText(&resolver.Record{
		Kind:     node.Kind,
		Title:    node.Title,
		Overview: node.Overview,
	}))
	require.NoError(t, err)
	matches, err := idx.Query(ctx, vector, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, node.CanonicalID, matches[0].NodeID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
}

func TestRunCancelBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, _ := newTestPipeline(t, WithBatchSize(2))

	src := &sliceSource{rows: feedRows(10)}
	// Cancel while the second batch is being read: the first batch has
	// already been fully applied.
	src.onNext = func(served int) {
		if served == 3 {
			cancel()
		}
	}

	report, err := p.Run(ctx, "run-1", src)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Stored)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	cs, err := NewCheckpointStore(t.TempDir())
	require.NoError(t, err)
	p, _ := newTestPipeline(t, WithBatchSize(2), WithCheckpoints(cs))

	require.NoError(t, cs.Save(&Checkpoint{RunID: "run-1", RowsDone: 4}))

	report, err := p.Run(ctx, "run-1", &sliceSource{rows: feedRows(10)})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Processed)
	assert.Equal(t, 6, report.Stored)

	// A finished run clears its checkpoint.
	_, ok, err := cs.Load("run-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseRecordRepairsMalformedJSON(t *testing.T) {
	// Trailing comma and unquoted key: repairable.
	rec, err := ParseRecord([]byte(`{title: "Salt Flats", "year": 2004,}`))
	require.NoError(t, err)
	assert.Equal(t, "Salt Flats", rec.Title)
	assert.Equal(t, 2004, rec.Year)
}

func TestParseRecordRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no title", `{"year": 2000}`},
		{"unknown kind", `{"title": "x", "kind": "starship"}`},
		{"not json at all", `:::`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord([]byte(tt.data))
			require.Error(t, err)
			var verr *types.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestParseRecordFieldAliases(t *testing.T) {
	rec, err := ParseRecord([]byte(`{"name": "Aliased", "type": "person", "release_year": 1970}`))
	require.NoError(t, err)
	assert.Equal(t, "Aliased", rec.Title)
	assert.Equal(t, types.KindPerson, rec.Kind)
	assert.Equal(t, 1970, rec.Year)
}

func TestJSONLSourceSkipsBlankLines(t *testing.T) {
	ctx := context.Background()
	src := NewJSONLSource(io.NopCloser(newStringReader("{\"title\": \"a\"}\n\n{\"title\": \"b\"}\n")))
	defer src.Close()

	first, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Line)

	second, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Line)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

type stringReader struct {
	data []byte
	pos  int
}

func newStringReader(s string) *stringReader { return &stringReader{data: []byte(s)} }

func (r *stringReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
