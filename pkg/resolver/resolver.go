// Package resolver maps incoming catalog records onto canonical nodes.
// Structured identifiers win outright; otherwise the record's normalized
// text is embedded and matched against existing node embeddings, with
// thresholds splitting the result into matched, ambiguous (provisional node
// for later reconciliation), or created. When the embedding provider is
// down the resolver degrades to a normalized edit-distance match whose
// confidence is capped below the match threshold, so a degraded run can
// never silently merge entities.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cinelex/rightsgraph/pkg/embedder"
	"github.com/cinelex/rightsgraph/pkg/hypergraph"
	"github.com/cinelex/rightsgraph/pkg/types"
	"github.com/cinelex/rightsgraph/pkg/vecindex"
)

// Record is a normalized incoming catalog record.
type Record struct {
	Kind        types.NodeKind    `json:"kind"`
	Title       string            `json:"title"`
	Year        int               `json:"year,omitempty"`
	Overview    string            `json:"overview,omitempty"`
	Tagline     string            `json:"tagline,omitempty"`
	Popularity  float64           `json:"popularity,omitempty"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
}

// Config holds the resolver thresholds. The defaults are starting points;
// production values want tuning against a labeled validation set.
type Config struct {
	HighThreshold   float64 `mapstructure:"high_threshold"`
	LowThreshold    float64 `mapstructure:"low_threshold"`
	YearTolerance   int     `mapstructure:"year_tolerance"`
	FallbackCeiling float64 `mapstructure:"fallback_ceiling"`
	TopK            int     `mapstructure:"top_k"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		HighThreshold:   0.95,
		LowThreshold:    0.80,
		YearTolerance:   1,
		FallbackCeiling: 0.75,
		TopK:            5,
	}
}

const lockStripes = 64

// Resolver resolves records against the hypergraph store and vector index.
type Resolver struct {
	store    *hypergraph.Store
	embedder embedder.Client
	index    vecindex.Index
	cache    *Cache
	config   Config
	logger   *slog.Logger

	keyLocks [lockStripes]sync.Mutex
}

// New creates a resolver. cache may be nil to disable caching.
func New(store *hypergraph.Store, emb embedder.Client, index vecindex.Index, cache *Cache, config Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if config.TopK <= 0 {
		config.TopK = 5
	}
	return &Resolver{
		store:    store,
		embedder: emb,
		index:    index,
		cache:    cache,
		config:   config,
		logger:   logger,
	}
}

// Resolve maps one record to a canonical node, creating one when needed.
func (r *Resolver) Resolve(ctx context.Context, rec *Record) (*types.Resolution, error) {
	if rec.Title == "" {
		return nil, types.NewValidationError("record has no title")
	}

	fp := Fingerprint(rec)
	if r.cache != nil {
		if entry, ok, err := r.cache.Get(fp); err == nil && ok {
			// Cached decisions are only reused while the node still exists;
			// the cache is an accelerator, not a source of truth.
			if _, err := r.store.GetNode(ctx, entry.CanonicalID); err == nil {
				return &types.Resolution{
					CanonicalID: entry.CanonicalID,
					Confidence:  entry.Confidence,
					Outcome:     entry.Outcome,
					CacheHit:    true,
				}, nil
			}
		}
	}

	unlock := r.lockRecord(rec)
	res, err := r.resolveUncached(ctx, rec)
	unlock()
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Put(&types.ResolutionCacheEntry{
			Fingerprint: fp,
			CanonicalID: res.CanonicalID,
			Confidence:  res.Confidence,
			Outcome:     res.Outcome,
			ResolvedAt:  time.Now().UTC(),
		}); err != nil {
			r.logger.Warn("failed to record resolution", "fingerprint", fp, "error", err)
		}
	}
	return res, nil
}

// lockRecord serializes find-or-create for records that could land on the
// same node: callers sharing a structured identifier (or, absent one, the
// same fingerprint) funnel through the same stripe, so concurrent copies of
// one row cannot each pass the external-id lookup and create duplicates.
// Stripes are taken in index order to rule out deadlock between records
// whose identifier sets overlap.
func (r *Resolver) lockRecord(rec *Record) func() {
	stripes := map[uint32]bool{stripeFor(Fingerprint(rec)): true}
	for _, scheme := range sortedKeys(rec.ExternalIDs) {
		stripes[stripeFor(scheme+"\x00"+rec.ExternalIDs[scheme])] = true
	}
	order := make([]uint32, 0, len(stripes))
	for s := range stripes {
		order = append(order, s)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, s := range order {
		r.keyLocks[s].Lock()
	}
	return func() {
		for i := len(order) - 1; i >= 0; i-- {
			r.keyLocks[order[i]].Unlock()
		}
	}
}

func stripeFor(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % lockStripes
}

func (r *Resolver) resolveUncached(ctx context.Context, rec *Record) (*types.Resolution, error) {
	// Structured identifiers are authoritative: any present key that is
	// already registered decides the match outright.
	for _, scheme := range sortedKeys(rec.ExternalIDs) {
		node, err := r.store.FindNodeByExternalID(ctx, scheme, rec.ExternalIDs[scheme])
		if err == nil {
			return &types.Resolution{
				CanonicalID: node.CanonicalID,
				Confidence:  1.0,
				Outcome:     types.OutcomeMatched,
			}, nil
		}
		if !errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
	}

	vector, err := r.embedder.EmbedSingle(ctx, NormalizedText(rec))
	if err != nil {
		if errors.Is(err, types.ErrProviderUnavailable) {
			r.logger.Warn("embedding provider unavailable, using edit-distance fallback", "title", rec.Title)
			return r.resolveFallback(ctx, rec)
		}
		return nil, err
	}

	matches, err := r.index.Query(ctx, vector, r.config.TopK)
	if err != nil {
		if errors.Is(err, types.ErrProviderUnavailable) {
			return r.resolveFallback(ctx, rec)
		}
		return nil, err
	}

	best, bestSim, err := r.selectBest(ctx, rec.Kind, matches)
	if err != nil {
		return nil, err
	}

	if best != nil && bestSim >= r.config.HighThreshold && r.yearWithinTolerance(rec, best) {
		return &types.Resolution{
			CanonicalID: best.CanonicalID,
			Confidence:  bestSim,
			Outcome:     types.OutcomeMatched,
		}, nil
	}

	if best != nil && bestSim >= r.config.LowThreshold {
		node, err := r.createNode(ctx, rec, vector, true)
		if err != nil {
			return nil, err
		}
		return &types.Resolution{
			CanonicalID: node.CanonicalID,
			Confidence:  bestSim,
			Outcome:     types.OutcomeAmbiguous,
		}, nil
	}

	node, err := r.createNode(ctx, rec, vector, false)
	if err != nil {
		return nil, err
	}
	return &types.Resolution{
		CanonicalID: node.CanonicalID,
		Confidence:  bestSim,
		Outcome:     types.OutcomeCreated,
	}, nil
}

// selectBest picks the winning candidate of the record's kind from index
// matches. Matches arrive ordered, but exact similarity ties are re-broken
// here on node state: most recently updated first, then canonical ID
// ascending, so the decision is reproducible regardless of index iteration
// order.
func (r *Resolver) selectBest(ctx context.Context, kind types.NodeKind, matches []vecindex.Match) (*types.Node, float64, error) {
	var (
		tied   []*types.Node
		topSim float64
	)
	for _, m := range matches {
		if len(tied) > 0 && m.Similarity != topSim {
			break
		}
		node, err := r.store.GetNode(ctx, m.NodeID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				// Index can lag the store; skip dangling entries.
				continue
			}
			return nil, 0, err
		}
		if node.Kind != kind || node.Superseded {
			continue
		}
		if len(tied) == 0 {
			topSim = m.Similarity
		}
		tied = append(tied, node)
	}
	if len(tied) == 0 {
		return nil, 0, nil
	}
	sort.Slice(tied, func(i, j int) bool {
		if !tied[i].UpdatedAt.Equal(tied[j].UpdatedAt) {
			return tied[i].UpdatedAt.After(tied[j].UpdatedAt)
		}
		return tied[i].CanonicalID < tied[j].CanonicalID
	})
	return tied[0], topSim, nil
}

func (r *Resolver) yearWithinTolerance(rec *Record, node *types.Node) bool {
	if rec.Year == 0 || node.Year == 0 {
		// No coarse field to cross-check; accept on similarity alone.
		return true
	}
	diff := rec.Year - node.Year
	if diff < 0 {
		diff = -diff
	}
	return diff <= r.config.YearTolerance
}

// resolveFallback matches on normalized edit distance over same-kind titles.
// Candidate strength is judged against LowThreshold before the ceiling is
// applied; the FallbackCeiling then caps the reported confidence below
// HighThreshold, so the outcome is only ever ambiguous or created.
func (r *Resolver) resolveFallback(ctx context.Context, rec *Record) (*types.Resolution, error) {
	target := normalizeTitle(rec.Title)

	var bestID string
	bestSim := -1.0
	err := r.store.Nodes(ctx, func(node *types.Node) error {
		if node.Kind != rec.Kind || node.Superseded {
			return nil
		}
		sim := TitleSimilarity(target, normalizeTitle(node.Title))
		// Strict improvement only: with nodes visited in canonical ID
		// order, equal scores keep the earlier ID, which makes the pick
		// deterministic.
		if sim > bestSim {
			bestSim = sim
			bestID = node.CanonicalID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	confidence := 0.0
	if bestID != "" {
		confidence = bestSim * r.config.FallbackCeiling
	}

	if bestID != "" && bestSim >= r.config.LowThreshold {
		node, err := r.createNode(ctx, rec, nil, true)
		if err != nil {
			return nil, err
		}
		return &types.Resolution{
			CanonicalID: node.CanonicalID,
			Confidence:  confidence,
			Outcome:     types.OutcomeAmbiguous,
		}, nil
	}

	node, err := r.createNode(ctx, rec, nil, false)
	if err != nil {
		return nil, err
	}
	return &types.Resolution{
		CanonicalID: node.CanonicalID,
		Confidence:  confidence,
		Outcome:     types.OutcomeCreated,
	}, nil
}

func (r *Resolver) createNode(ctx context.Context, rec *Record, vector []float32, provisional bool) (*types.Node, error) {
	node := &types.Node{
		Kind:        rec.Kind,
		Title:       rec.Title,
		Overview:    rec.Overview,
		Tagline:     rec.Tagline,
		Year:        rec.Year,
		Popularity:  rec.Popularity,
		ExternalIDs: rec.ExternalIDs,
		ContentHash: ContentHash(rec),
		Provisional: provisional,
	}
	if err := r.store.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	if vector != nil {
		if err := r.index.Upsert(ctx, node.CanonicalID, vector, vecindex.Meta{
			Popularity: rec.Popularity,
			ModelID:    r.embedder.ModelID(),
		}); err != nil {
			// A shape problem with one vector must not lose the node.
			r.logger.Warn("failed to index node embedding", "node", node.CanonicalID, "error", err)
		}
	}
	return node, nil
}

// Reindex refreshes a node's stored embedding after its descriptive content
// changed, so semantic search ranks on the current text. When the provider
// is unavailable the node keeps its previous vector until a later pass.
func (r *Resolver) Reindex(ctx context.Context, node *types.Node) error {
	text := NormalizedText(&Record{
		Kind:     node.Kind,
		Title:    node.Title,
		Year:     node.Year,
		Overview: node.Overview,
		Tagline:  node.Tagline,
	})
	vector, err := r.embedder.EmbedSingle(ctx, text)
	if err != nil {
		if errors.Is(err, types.ErrProviderUnavailable) {
			r.logger.Warn("embedding provider unavailable, node keeps its previous vector", "node", node.CanonicalID)
			return nil
		}
		return err
	}
	if err := r.index.Upsert(ctx, node.CanonicalID, vector, vecindex.Meta{
		Popularity: node.Popularity,
		ModelID:    r.embedder.ModelID(),
	}); err != nil {
		r.logger.Warn("failed to index node embedding", "node", node.CanonicalID, "error", err)
	}
	return nil
}

// NormalizedText builds the text that gets embedded for a record: title,
// year, and descriptive fields collapsed to single-spaced lowercase.
func NormalizedText(rec *Record) string {
	parts := []string{strings.ToLower(rec.Title)}
	if rec.Year > 0 {
		parts = append(parts, strconv.Itoa(rec.Year))
	}
	if rec.Overview != "" {
		parts = append(parts, strings.ToLower(rec.Overview))
	}
	if rec.Tagline != "" {
		parts = append(parts, strings.ToLower(rec.Tagline))
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// Fingerprint returns a stable hash identifying the record's resolution
// input, used as the resolution cache key.
func Fingerprint(rec *Record) string {
	h := sha256.New()
	h.Write([]byte(string(rec.Kind)))
	h.Write([]byte{0})
	h.Write([]byte(normalizeTitle(rec.Title)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(rec.Year)))
	for _, scheme := range sortedKeys(rec.ExternalIDs) {
		h.Write([]byte{0})
		h.Write([]byte(scheme + "=" + rec.ExternalIDs[scheme]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash fingerprints the record's full descriptive content so the
// ingestion pipeline can detect unchanged rows.
func ContentHash(rec *Record) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s|%.4f", rec.Kind, rec.Title, rec.Year, rec.Overview, rec.Tagline, rec.Popularity)
	for _, scheme := range sortedKeys(rec.ExternalIDs) {
		fmt.Fprintf(h, "|%s=%s", scheme, rec.ExternalIDs[scheme])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
