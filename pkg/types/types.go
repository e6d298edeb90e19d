package types

import (
	"time"
)

// NodeKind classifies a canonical catalog node.
type NodeKind string

const (
	KindAsset     NodeKind = "asset"
	KindPlatform  NodeKind = "platform"
	KindTerritory NodeKind = "territory"
	KindPerson    NodeKind = "person"
)

// EdgeStatus is the lifecycle state of a hyperedge version.
type EdgeStatus string

const (
	StatusActive     EdgeStatus = "active"
	StatusSuperseded EdgeStatus = "superseded"
	StatusConflict   EdgeStatus = "conflict"
)

// Outcome describes how an incoming record was resolved.
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeCreated   Outcome = "created"
	OutcomeAmbiguous Outcome = "ambiguous"
)

// SearchMode reports which ranking path actually served a semantic query.
type SearchMode string

const (
	SearchModeNative   SearchMode = "native"
	SearchModeFallback SearchMode = "fallback"
)

// Node is the single authoritative representation of a catalog entity after
// duplicate resolution. Nodes are never physically deleted; a superseded node
// keeps an alias link to its canonical replacement.
type Node struct {
	CanonicalID string            `json:"canonical_id"`
	Kind        NodeKind          `json:"kind"`
	Title       string            `json:"title"`
	Overview    string            `json:"overview,omitempty"`
	Tagline     string            `json:"tagline,omitempty"`
	Year        int               `json:"year,omitempty"`
	Popularity  float64           `json:"popularity,omitempty"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`

	// Aliases holds canonical IDs of nodes this node superseded, and, on a
	// superseded node, the single ID of its replacement.
	Aliases    []string `json:"aliases,omitempty"`
	Superseded bool     `json:"superseded,omitempty"`

	// ContentHash fingerprints the descriptive content so unchanged
	// re-ingests can be detected without field-by-field comparison.
	ContentHash string `json:"content_hash,omitempty"`

	Provisional bool      `json:"provisional,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the fields required of every node.
func (n *Node) Validate() error {
	if n.Title == "" {
		return ErrEmptyTitle
	}
	switch n.Kind {
	case KindAsset, KindPlatform, KindTerritory, KindPerson:
	default:
		return ErrUnknownKind
	}
	return nil
}

// Participant binds a node into a hyperedge under a named role.
type Participant struct {
	NodeID string `json:"node_id"`
	Role   string `json:"role"`
}

// Hyperedge is an n-ary relationship between typed participants with
// bitemporal validity. ValidFrom/ValidTo track when the fact held in the
// world ([ValidFrom, ValidTo), nil ValidTo = open-ended); TxTime tracks when
// the version was recorded and is immutable once committed.
type Hyperedge struct {
	ID           string         `json:"id"`
	Relation     string         `json:"relation"`
	Participants []Participant  `json:"participants"`
	ValidFrom    time.Time      `json:"valid_from"`
	ValidTo      *time.Time     `json:"valid_to,omitempty"`
	TxTime       time.Time      `json:"tx_time"`
	Status       EdgeStatus     `json:"status"`
	Props        map[string]any `json:"props,omitempty"`
	Weight       float64        `json:"weight,omitempty"`

	// ConflictsWith lists the IDs of exclusive edges whose validity windows
	// overlap this one on the same participant key. Populated when the edge
	// is marked StatusConflict; kept as data, never raised as an error.
	ConflictsWith []string `json:"conflicts_with,omitempty"`
}

// ValidateInterval enforces valid_from <= valid_to whenever valid_to is set.
func (h *Hyperedge) ValidateInterval() error {
	if h.ValidTo != nil && h.ValidTo.Before(h.ValidFrom) {
		return ErrInvalidInterval
	}
	return nil
}

// Role returns the participant bound to the given role, or nil.
func (h *Hyperedge) Role(role string) *Participant {
	for i := range h.Participants {
		if h.Participants[i].Role == role {
			return &h.Participants[i]
		}
	}
	return nil
}

// OverlapsValid reports whether the half-open validity windows of h and
// other intersect. A nil ValidTo is treated as +infinity.
func (h *Hyperedge) OverlapsValid(other *Hyperedge) bool {
	// new.from < existing.to AND new.to > existing.from, half-open.
	if other.ValidTo != nil && !h.ValidFrom.Before(*other.ValidTo) {
		return false
	}
	if h.ValidTo != nil && !h.ValidTo.After(other.ValidFrom) {
		return false
	}
	return true
}

// EmbeddingRecord associates a node with its vector under a given model and
// index generation. Vectors from different generations never mix.
type EmbeddingRecord struct {
	NodeID     string    `json:"node_id"`
	Vector     []float32 `json:"vector"`
	ModelID    string    `json:"model_id"`
	Generation int       `json:"generation"`
}

// Resolution is the outcome of resolving one incoming record.
type Resolution struct {
	CanonicalID string  `json:"canonical_id"`
	Confidence  float64 `json:"confidence"`
	Outcome     Outcome `json:"outcome"`

	// CacheHit reports that the decision was replayed from the resolution
	// cache. A replayed "created" did not create a node on this call.
	CacheHit bool `json:"-"`
}

// ResolutionCacheEntry records a past resolution keyed by the input
// fingerprint. The cache is a performance and audit aid only; correctness
// never depends on it.
type ResolutionCacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	CanonicalID string    `json:"canonical_id"`
	Confidence  float64   `json:"confidence"`
	Outcome     Outcome   `json:"outcome"`
	ResolvedAt  time.Time `json:"resolved_at"`
}
