// Package hypergraph persists canonical nodes and bitemporal n-ary
// hyperedges on top of a document store. Hyperedges are versioned, never
// mutated in place: revising one closes the old version's validity window
// and inserts a new row, preserving the full audit chain. All writes that
// touch the same (relation, participant-key) are serialized through a
// striped lock, which is what makes collision detection correct under
// concurrent writers.
package hypergraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cinelex/rightsgraph/pkg/docstore"
	"github.com/cinelex/rightsgraph/pkg/schema"
	"github.com/cinelex/rightsgraph/pkg/types"
)

const (
	collectionNodes = "nodes"
	collectionEdges = "edges"
	collectionExtID = "extids"

	lockStripes = 64
)

// Store is the hypergraph store.
type Store struct {
	docs   docstore.Store
	schema *schema.Registry
	logger *slog.Logger

	now func() time.Time

	// txMu guards lastTx so transaction time is monotonic per store even
	// when the wall clock stalls or steps backwards.
	txMu   sync.Mutex
	lastTx time.Time

	keyLocks [lockStripes]sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a hypergraph store over the given document store and relation
// registry.
func New(docs docstore.Store, reg *schema.Registry, opts ...Option) *Store {
	s := &Store{
		docs:   docs,
		schema: reg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema exposes the relation registry the store validates against.
func (s *Store) Schema() *schema.Registry {
	return s.schema
}

func (s *Store) keyLock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.keyLocks[h.Sum32()%lockStripes]
}

// nextTxTime returns a transaction time strictly after every previously
// issued one.
func (s *Store) nextTxTime() time.Time {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	now := s.now().UTC()
	if !now.After(s.lastTx) {
		now = s.lastTx.Add(time.Microsecond)
	}
	s.lastTx = now
	return now
}

// ---- nodes ----

// CreateNode validates and persists a new canonical node, minting an ID when
// absent, and registers its external identifiers for exact lookup.
func (s *Store) CreateNode(ctx context.Context, node *types.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	if node.CanonicalID == "" {
		node.CanonicalID = uuid.NewString()
	}
	now := s.now().UTC()
	node.CreatedAt = now
	node.UpdatedAt = now

	doc, err := json.Marshal(node)
	if err != nil {
		return err
	}
	if err := s.docs.Create(ctx, collectionNodes, node.CanonicalID, doc); err != nil {
		return fmt.Errorf("failed to create node %s: %w", node.CanonicalID, err)
	}
	return s.registerExternalIDs(ctx, node)
}

// UpdateNode persists changed descriptive content for an existing node.
func (s *Store) UpdateNode(ctx context.Context, node *types.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	if _, err := s.GetNode(ctx, node.CanonicalID); err != nil {
		return err
	}
	node.UpdatedAt = s.now().UTC()
	doc, err := json.Marshal(node)
	if err != nil {
		return err
	}
	if err := s.docs.Put(ctx, collectionNodes, node.CanonicalID, doc); err != nil {
		return fmt.Errorf("failed to update node %s: %w", node.CanonicalID, err)
	}
	return s.registerExternalIDs(ctx, node)
}

func (s *Store) registerExternalIDs(ctx context.Context, node *types.Node) error {
	if len(node.ExternalIDs) == 0 {
		return nil
	}
	ops := make([]docstore.Op, 0, len(node.ExternalIDs))
	for scheme, value := range node.ExternalIDs {
		ref, err := json.Marshal(map[string]string{"canonical_id": node.CanonicalID})
		if err != nil {
			return err
		}
		ops = append(ops, docstore.Op{
			Kind:       docstore.OpPut,
			Collection: collectionExtID,
			Key:        externalIDKey(scheme, value),
			Value:      ref,
		})
	}
	return s.docs.Batch(ctx, ops)
}

func externalIDKey(scheme, value string) string {
	return scheme + ":" + value
}

// GetNode returns the node with the given canonical ID.
func (s *Store) GetNode(ctx context.Context, canonicalID string) (*types.Node, error) {
	doc, err := s.docs.Get(ctx, collectionNodes, canonicalID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("node %s: %w", canonicalID, types.ErrNotFound)
		}
		return nil, err
	}
	var node types.Node
	if err := json.Unmarshal(doc, &node); err != nil {
		return nil, fmt.Errorf("failed to decode node %s: %w", canonicalID, err)
	}
	return &node, nil
}

// FindNodeByExternalID resolves a structured identifier to its canonical
// node, following the alias link if the referenced node was superseded.
func (s *Store) FindNodeByExternalID(ctx context.Context, scheme, value string) (*types.Node, error) {
	doc, err := s.docs.Get(ctx, collectionExtID, externalIDKey(scheme, value))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("external id %s:%s: %w", scheme, value, types.ErrNotFound)
		}
		return nil, err
	}
	var ref struct {
		CanonicalID string `json:"canonical_id"`
	}
	if err := json.Unmarshal(doc, &ref); err != nil {
		return nil, err
	}
	node, err := s.GetNode(ctx, ref.CanonicalID)
	if err != nil {
		return nil, err
	}
	if node.Superseded && len(node.Aliases) > 0 {
		return s.GetNode(ctx, node.Aliases[0])
	}
	return node, nil
}

// SupersedeNode marks loser as a duplicate of winner. The loser is kept for
// traceability with an alias link to its replacement; the winner records the
// loser among its aliases.
func (s *Store) SupersedeNode(ctx context.Context, loserID, winnerID string) error {
	if loserID == winnerID {
		return fmt.Errorf("node cannot supersede itself")
	}
	loser, err := s.GetNode(ctx, loserID)
	if err != nil {
		return err
	}
	winner, err := s.GetNode(ctx, winnerID)
	if err != nil {
		return err
	}

	loser.Superseded = true
	loser.Aliases = []string{winner.CanonicalID}
	loser.UpdatedAt = s.now().UTC()
	winner.Aliases = appendUnique(winner.Aliases, loser.CanonicalID)
	winner.UpdatedAt = loser.UpdatedAt

	loserDoc, err := json.Marshal(loser)
	if err != nil {
		return err
	}
	winnerDoc, err := json.Marshal(winner)
	if err != nil {
		return err
	}
	return s.docs.Batch(ctx, []docstore.Op{
		{Kind: docstore.OpPut, Collection: collectionNodes, Key: loser.CanonicalID, Value: loserDoc},
		{Kind: docstore.OpPut, Collection: collectionNodes, Key: winner.CanonicalID, Value: winnerDoc},
	})
}

func appendUnique(list []string, v string) []string {
	for _, item := range list {
		if item == v {
			return list
		}
	}
	return append(list, v)
}

// Nodes visits every node in the store in canonical ID order.
func (s *Store) Nodes(ctx context.Context, fn func(*types.Node) error) error {
	return s.docs.Scan(ctx, collectionNodes, func(_ string, doc []byte) error {
		var node types.Node
		if err := json.Unmarshal(doc, &node); err != nil {
			return err
		}
		return fn(&node)
	})
}

// ---- hyperedges ----

// edgeDoc is the persisted envelope for a hyperedge. The participant key is
// stored alongside so collision candidates can be selected without
// re-deriving it from the registry on every read.
type edgeDoc struct {
	types.Hyperedge
	ParticipantKey string `json:"participant_key"`
}

// PutResult reports a hyperedge write together with any exclusivity
// collisions it triggered. Collisions are advisory: the write has already
// been committed, with both sides marked StatusConflict.
type PutResult struct {
	Edge      *types.Hyperedge
	Conflicts []*types.Hyperedge
}

// PutHyperedge validates the edge against its relation schema, verifies all
// participants exist, detects exclusivity collisions, and persists a new
// version. The whole sequence runs under the per-(relation, participant-key)
// lock so two concurrent inserts cannot both pass the collision check before
// either commits.
func (s *Store) PutHyperedge(ctx context.Context, edge *types.Hyperedge) (*PutResult, error) {
	if err := s.schema.Validate(edge); err != nil {
		return nil, err
	}
	for _, p := range edge.Participants {
		if _, err := s.GetNode(ctx, p.NodeID); err != nil {
			return nil, fmt.Errorf("participant %s (role %s): %w", p.NodeID, p.Role, err)
		}
	}

	key, err := s.schema.ParticipantKey(edge)
	if err != nil {
		return nil, err
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	return s.putLocked(ctx, edge, key)
}

// putLocked inserts the edge. The caller must hold the key lock.
func (s *Store) putLocked(ctx context.Context, edge *types.Hyperedge, key string) (*PutResult, error) {
	existing, err := s.edgesByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	conflicts := DetectCollisions(s.schema, edge, existing)

	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	edge.TxTime = s.nextTxTime()
	if edge.Status == "" {
		edge.Status = types.StatusActive
	}

	ops := make([]docstore.Op, 0, len(conflicts)+1)
	if len(conflicts) > 0 {
		edge.Status = types.StatusConflict
		for _, c := range conflicts {
			edge.ConflictsWith = appendUnique(edge.ConflictsWith, c.ID)
			c.Status = types.StatusConflict
			c.ConflictsWith = appendUnique(c.ConflictsWith, edge.ID)
			doc, err := json.Marshal(edgeDoc{Hyperedge: *c, ParticipantKey: key})
			if err != nil {
				return nil, err
			}
			ops = append(ops, docstore.Op{Kind: docstore.OpPut, Collection: collectionEdges, Key: c.ID, Value: doc})
		}
		s.logger.Warn("exclusive grant collision",
			"relation", edge.Relation,
			"participant_key", key,
			"edge", edge.ID,
			"conflicts", len(conflicts))
	}

	doc, err := json.Marshal(edgeDoc{Hyperedge: *edge, ParticipantKey: key})
	if err != nil {
		return nil, err
	}
	ops = append(ops, docstore.Op{Kind: docstore.OpCreate, Collection: collectionEdges, Key: edge.ID, Value: doc})

	if err := s.docs.Batch(ctx, ops); err != nil {
		return nil, fmt.Errorf("failed to persist hyperedge %s: %w", edge.ID, err)
	}
	return &PutResult{Edge: edge, Conflicts: conflicts}, nil
}

func (s *Store) edgesByKey(ctx context.Context, key string) ([]*types.Hyperedge, error) {
	var edges []*types.Hyperedge
	err := s.docs.Scan(ctx, collectionEdges, func(_ string, doc []byte) error {
		var ed edgeDoc
		if err := json.Unmarshal(doc, &ed); err != nil {
			return err
		}
		if ed.ParticipantKey == key {
			e := ed.Hyperedge
			edges = append(edges, &e)
		}
		return nil
	})
	return edges, err
}

// GetHyperedge returns a single hyperedge version by ID.
func (s *Store) GetHyperedge(ctx context.Context, id string) (*types.Hyperedge, error) {
	doc, err := s.docs.Get(ctx, collectionEdges, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("hyperedge %s: %w", id, types.ErrNotFound)
		}
		return nil, err
	}
	var ed edgeDoc
	if err := json.Unmarshal(doc, &ed); err != nil {
		return nil, err
	}
	e := ed.Hyperedge
	return &e, nil
}

// Filter selects hyperedges in GetHyperedges. Zero values match everything.
type Filter struct {
	Relation string
	NodeID   string
	Role     string
	Statuses []types.EdgeStatus
}

func (f *Filter) matches(e *types.Hyperedge) bool {
	if f.Relation != "" && e.Relation != f.Relation {
		return false
	}
	if f.NodeID != "" {
		found := false
		for _, p := range e.Participants {
			if p.NodeID == f.NodeID && (f.Role == "" || p.Role == f.Role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, st := range f.Statuses {
			if e.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// GetHyperedges returns the hyperedge versions matching the filter that were
// valid at asOfValid and recorded by asOfTx. Both as-of parameters default
// to now, giving standard bitemporal query semantics: valid_from <= asOfValid
// < valid_to (open-ended when valid_to is unset) and tx_time <= asOfTx.
// Results are ordered by transaction time then ID.
func (s *Store) GetHyperedges(ctx context.Context, filter Filter, asOfValid, asOfTx *time.Time) ([]*types.Hyperedge, error) {
	now := s.now().UTC()
	valid := now
	if asOfValid != nil {
		valid = asOfValid.UTC()
	}
	tx := now
	if asOfTx != nil {
		tx = asOfTx.UTC()
	}

	var out []*types.Hyperedge
	err := s.docs.Scan(ctx, collectionEdges, func(_ string, doc []byte) error {
		var ed edgeDoc
		if err := json.Unmarshal(doc, &ed); err != nil {
			return err
		}
		e := ed.Hyperedge
		if e.TxTime.After(tx) {
			return nil
		}
		if e.ValidFrom.After(valid) {
			return nil
		}
		if e.ValidTo != nil && !valid.Before(*e.ValidTo) {
			return nil
		}
		if !filter.matches(&e) {
			return nil
		}
		out = append(out, &e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TxTime.Equal(out[j].TxTime) {
			return out[i].TxTime.Before(out[j].TxTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ReviseHyperedge supersedes an existing version with a replacement. The old
// version's validity window is closed at the replacement's ValidFrom (or at
// closeAt when given) and its status set to superseded; the replacement is
// inserted as a fresh version with its own transaction time. Nothing is
// deleted. When old and new share a participant key the whole revision runs
// under one key lock.
func (s *Store) ReviseHyperedge(ctx context.Context, id string, replacement *types.Hyperedge, closeAt *time.Time) (*PutResult, error) {
	if err := s.schema.Validate(replacement); err != nil {
		return nil, err
	}
	for _, p := range replacement.Participants {
		if _, err := s.GetNode(ctx, p.NodeID); err != nil {
			return nil, fmt.Errorf("participant %s (role %s): %w", p.NodeID, p.Role, err)
		}
	}

	old, err := s.GetHyperedge(ctx, id)
	if err != nil {
		return nil, err
	}
	oldKey, err := s.schema.ParticipantKey(old)
	if err != nil {
		return nil, err
	}
	newKey, err := s.schema.ParticipantKey(replacement)
	if err != nil {
		return nil, err
	}

	locks := []*sync.Mutex{s.keyLock(oldKey)}
	if second := s.keyLock(newKey); second != locks[0] {
		locks = append(locks, second)
	}
	// Fixed acquisition order by stripe address avoids deadlock between
	// concurrent revisions crossing the same two stripes.
	sort.Slice(locks, func(i, j int) bool {
		return fmt.Sprintf("%p", locks[i]) < fmt.Sprintf("%p", locks[j])
	})
	for _, l := range locks {
		l.Lock()
	}
	defer func() {
		for _, l := range locks {
			l.Unlock()
		}
	}()

	cut := replacement.ValidFrom
	if closeAt != nil {
		cut = *closeAt
	}
	if cut.Before(old.ValidFrom) {
		return nil, types.ErrInvalidInterval
	}
	old.ValidTo = &cut
	old.Status = types.StatusSuperseded
	doc, err := json.Marshal(edgeDoc{Hyperedge: *old, ParticipantKey: oldKey})
	if err != nil {
		return nil, err
	}
	if err := s.docs.Put(ctx, collectionEdges, old.ID, doc); err != nil {
		return nil, fmt.Errorf("failed to close hyperedge %s: %w", old.ID, err)
	}

	return s.putLocked(ctx, replacement, newKey)
}

// CloseHyperedge ends the validity window of a version at the given instant
// without inserting a replacement.
func (s *Store) CloseHyperedge(ctx context.Context, id string, at time.Time) error {
	edge, err := s.GetHyperedge(ctx, id)
	if err != nil {
		return err
	}
	key, err := s.schema.ParticipantKey(edge)
	if err != nil {
		return err
	}
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	at = at.UTC()
	if at.Before(edge.ValidFrom) {
		return types.ErrInvalidInterval
	}
	edge.ValidTo = &at
	doc, err := json.Marshal(edgeDoc{Hyperedge: *edge, ParticipantKey: key})
	if err != nil {
		return err
	}
	return s.docs.Put(ctx, collectionEdges, edge.ID, doc)
}
