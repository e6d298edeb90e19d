package hypergraph

import (
	"github.com/cinelex/rightsgraph/pkg/schema"
	"github.com/cinelex/rightsgraph/pkg/types"
)

// DetectCollisions returns the existing hyperedges whose validity windows
// overlap the candidate's. It applies only when the candidate's relation is
// exclusive-capable and the candidate itself claims exclusivity; candidates
// are compared against existing edges on the same participant key that are
// also flagged exclusive and not already superseded.
//
// The overlap test is over half-open [valid_from, valid_to) intervals with a
// nil valid_to treated as +infinity:
//
//	new.valid_from < existing.valid_to AND new.valid_to > existing.valid_from
//
// Callers that intend to write must invoke this under the same per-key lock
// as the insert; checking outside it reintroduces the check-then-act race.
func DetectCollisions(reg *schema.Registry, candidate *types.Hyperedge, existing []*types.Hyperedge) []*types.Hyperedge {
	rt, err := reg.Get(candidate.Relation)
	if err != nil || !rt.IsExclusive(candidate) {
		return nil
	}

	var collisions []*types.Hyperedge
	for _, e := range existing {
		if e.ID == candidate.ID {
			continue
		}
		if e.Status == types.StatusSuperseded {
			continue
		}
		if !rt.IsExclusive(e) {
			continue
		}
		if candidate.OverlapsValid(e) {
			collisions = append(collisions, e)
		}
	}
	return collisions
}
