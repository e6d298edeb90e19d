package hypergraph

import (
	"math/rand"
	"testing"

	"github.com/cinelex/rightsgraph/pkg/schema"
	"github.com/cinelex/rightsgraph/pkg/types"
)

// referenceOverlap is the half-open interval test written directly against
// int day offsets, with nil valid_to as +infinity. The fuzz below checks
// DetectCollisions against it.
func referenceOverlap(aFrom int, aTo *int, bFrom int, bTo *int) bool {
	if bTo != nil && aFrom >= *bTo {
		return false
	}
	if aTo != nil && *aTo <= bFrom {
		return false
	}
	return true
}

func fuzzEdge(id string, from int, to *int, license string) *types.Hyperedge {
	e := &types.Hyperedge{
		ID:       id,
		Relation: "distribution_rights",
		Participants: []types.Participant{
			{NodeID: "asset-x", Role: "asset"},
			{NodeID: "fr", Role: "territory"},
			{NodeID: "plat-p", Role: "platform"},
		},
		ValidFrom: day(1).AddDate(0, 0, from),
		Status:    types.StatusActive,
		Props:     map[string]any{"license_type": license},
	}
	if to != nil {
		t := day(1).AddDate(0, 0, *to)
		e.ValidTo = &t
	}
	return e
}

// DetectCollisions must flag a pair of exclusive same-key edges if and only
// if their half-open windows overlap, including open-ended and zero-length
// windows.
func TestDetectCollisionsFuzz(t *testing.T) {
	reg := schema.NewRegistry()
	rng := rand.New(rand.NewSource(42))

	randWindow := func() (int, *int) {
		from := rng.Intn(40)
		switch rng.Intn(4) {
		case 0:
			return from, nil // open-ended
		case 1:
			return from, &from // zero-length
		default:
			to := from + rng.Intn(40)
			return from, &to
		}
	}

	for i := 0; i < 2000; i++ {
		aFrom, aTo := randWindow()
		bFrom, bTo := randWindow()

		candidate := fuzzEdge("new", aFrom, aTo, "exclusive")
		existing := fuzzEdge("old", bFrom, bTo, "exclusive")

		got := len(DetectCollisions(reg, candidate, []*types.Hyperedge{existing})) == 1
		want := referenceOverlap(aFrom, aTo, bFrom, bTo)
		if got != want {
			t.Fatalf("case %d: windows [%d,%v) vs [%d,%v): got %v, want %v",
				i, aFrom, deref(aTo), bFrom, deref(bTo), got, want)
		}
	}
}

func deref(p *int) any {
	if p == nil {
		return "inf"
	}
	return *p
}

func TestDetectCollisionsSkipsNonCandidates(t *testing.T) {
	reg := schema.NewRegistry()
	to := 30

	tests := []struct {
		name      string
		candidate *types.Hyperedge
		existing  *types.Hyperedge
		want      int
	}{
		{
			name:      "non-exclusive candidate",
			candidate: fuzzEdge("new", 0, &to, "non_exclusive"),
			existing:  fuzzEdge("old", 0, &to, "exclusive"),
			want:      0,
		},
		{
			name:      "non-exclusive existing",
			candidate: fuzzEdge("new", 0, &to, "exclusive"),
			existing:  fuzzEdge("old", 0, &to, "non_exclusive"),
			want:      0,
		},
		{
			name:      "superseded existing ignored",
			candidate: fuzzEdge("new", 0, &to, "exclusive"),
			existing: func() *types.Hyperedge {
				e := fuzzEdge("old", 0, &to, "exclusive")
				e.Status = types.StatusSuperseded
				return e
			}(),
			want: 0,
		},
		{
			name:      "already conflicted existing still collides again",
			candidate: fuzzEdge("new", 0, &to, "exclusive"),
			existing: func() *types.Hyperedge {
				e := fuzzEdge("old", 0, &to, "exclusive")
				e.Status = types.StatusConflict
				return e
			}(),
			want: 1,
		},
		{
			name:      "relation without exclusivity",
			candidate: &types.Hyperedge{ID: "new", Relation: "credited_on", ValidFrom: day(1)},
			existing:  &types.Hyperedge{ID: "old", Relation: "credited_on", ValidFrom: day(1)},
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectCollisions(reg, tt.candidate, []*types.Hyperedge{tt.existing})
			if len(got) != tt.want {
				t.Errorf("DetectCollisions() returned %d, want %d", len(got), tt.want)
			}
		})
	}
}
