package query

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/cinelex/rightsgraph/pkg/types"
)

// Field weights for the lexical ranking. Title hits dominate, descriptive
// fields contribute, popularity breaks near-ties without drowning text
// relevance.
const (
	weightTitle    = 10.0
	weightOverview = 3.0
	weightTagline  = 2.0
)

// lexical is the deterministic fallback ranking: weighted term-frequency
// over title, overview, and tagline plus a log-damped popularity boost.
// Identical input against identical data always produces the same order.
func (e *Engine) lexical(ctx context.Context, text string, k int) (*SemanticResult, error) {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return &SemanticResult{Mode: types.SearchModeFallback}, nil
	}

	var items []ScoredNode
	err := e.store.Nodes(ctx, func(node *types.Node) error {
		if node.Superseded {
			return nil
		}
		score := lexicalScore(node, terms)
		if score <= 0 {
			return nil
		}
		items = append(items, ScoredNode{Node: node, Score: score + math.Log1p(node.Popularity)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Node.CanonicalID < items[j].Node.CanonicalID
	})
	if k < len(items) {
		items = items[:k]
	}
	return &SemanticResult{Items: items, Mode: types.SearchModeFallback}, nil
}

func lexicalScore(node *types.Node, terms []string) float64 {
	title := strings.ToLower(node.Title)
	overview := strings.ToLower(node.Overview)
	tagline := strings.ToLower(node.Tagline)

	var score float64
	for _, term := range terms {
		score += weightTitle * float64(countTerm(title, term))
		score += weightOverview * float64(countTerm(overview, term))
		score += weightTagline * float64(countTerm(tagline, term))
	}
	return score
}

// countTerm counts whole-word occurrences of term in text.
func countTerm(text, term string) int {
	if text == "" {
		return 0
	}
	n := 0
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if word == term {
			n++
		}
	}
	return n
}
