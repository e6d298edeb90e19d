// Package rightsgraph provides a metadata and rights catalog for media
// assets, built on a bitemporal hypergraph.
//
// Catalog entities (assets, platforms, territories, people) are canonical
// nodes produced by embedding-driven duplicate resolution. Facts about them,
// such as distribution rights, are n-ary hyperedges carrying both a validity
// window and an immutable transaction time, so the catalog can be queried as
// of any point in either timeline. Writes of exclusive rights are checked
// for overlapping claims; collisions are recorded on both edges and
// surfaced to the caller rather than rejected.
//
// # Basic Usage
//
// Create a client from configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	client, err := rightsgraph.New(cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// # Ingesting catalog feeds
//
// Bulk feeds are newline-delimited JSON. Each row is resolved against the
// existing catalog before being written, so re-running a feed is idempotent:
//
//	report, err := client.IngestFile(ctx, "nightly-2026-08-30", "feed.jsonl")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("processed=%d stored=%d failed=%d\n",
//		report.Processed, report.Stored, report.Failed)
//
// # Recording rights
//
//	result, err := client.PutHyperedge(ctx, &types.Hyperedge{
//		Relation: "distribution_rights",
//		Participants: []types.Participant{
//			{Role: "asset", NodeID: assetID},
//			{Role: "territory", NodeID: territoryID},
//			{Role: "platform", NodeID: platformID},
//		},
//		ValidFrom: start,
//		ValidTo:   &end,
//		Props:     map[string]any{"license_type": "exclusive"},
//	})
//	if len(result.Conflicts) > 0 {
//		// overlapping exclusive claims, recorded but not rejected
//	}
//
// # Searching
//
// Semantic search ranks nodes by embedding similarity and reports whether
// the native ranking or the lexical fallback served the request:
//
//	res, err := client.SemanticSearch(ctx, "french crime drama", 10)
//	if res.Mode == types.SearchModeFallback {
//		// embedding provider was down; deterministic lexical ranking used
//	}
//
// # Architecture
//
//   - pkg/types: core type definitions and typed errors
//   - pkg/schema: relation-type registry and participant validation
//   - pkg/docstore: keyed document collections with atomic batches
//   - pkg/hypergraph: bitemporal node and hyperedge store
//   - pkg/embedder: embedding provider clients with retry and breaker
//   - pkg/vecindex: vector index abstraction
//   - pkg/resolver: duplicate resolution
//   - pkg/query: semantic, lexical, and structured queries
//   - pkg/ingest: bulk ingestion pipeline
package rightsgraph
