package query

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cinelex/rightsgraph/pkg/types"
)

// SortField selects the ordering of a structured query.
type SortField string

const (
	SortTitle      SortField = "title"
	SortYear       SortField = "year"
	SortPopularity SortField = "popularity"
	SortCreatedAt  SortField = "created_at"
)

// DefaultPageSize bounds structured result pages when the caller does not
// set a limit.
const DefaultPageSize = 50

// Filter narrows a structured query. Zero values mean "no constraint".
type Filter struct {
	Kind        types.NodeKind `json:"kind,omitempty"`
	YearFrom    int            `json:"year_from,omitempty"`
	YearTo      int            `json:"year_to,omitempty"`
	TitlePrefix string         `json:"title_prefix,omitempty"`
	Provisional *bool          `json:"provisional,omitempty"`
}

// Page is one page of structured results. NextCursor resumes after the last
// item; a resumed page never repeats or skips items that existed when the
// cursor was issued, even if writes landed in between.
type Page struct {
	Items      []*types.Node `json:"items"`
	Total      int           `json:"total"`
	HasMore    bool          `json:"has_more"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// cursor pins a position in the total order (sort value, then node ID), so
// pagination survives concurrent inserts without duplication.
type cursor struct {
	SortValue string `json:"v"`
	NodeID    string `json:"id"`
}

func encodeCursor(c cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (cursor, error) {
	var c cursor
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, types.NewValidationError("malformed cursor")
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, types.NewValidationError("malformed cursor")
	}
	return c, nil
}

// sortValue renders the node's sort key as a string whose lexicographic
// order matches the field's natural order. Numeric fields are zero-padded
// fixed-width decimals.
func sortValue(node *types.Node, field SortField) string {
	switch field {
	case SortYear:
		return fmt.Sprintf("%08d", node.Year)
	case SortPopularity:
		// The offset keeps negative scores lexicographically ordered.
		return fmt.Sprintf("%015.4f", node.Popularity+1e8)
	case SortCreatedAt:
		return node.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z")
	default:
		return strings.ToLower(node.Title)
	}
}

// Structured runs a filtered, sorted, paginated query over the node catalog.
func (e *Engine) Structured(ctx context.Context, filter Filter, field SortField, desc bool, limit int, cursorStr string) (*Page, error) {
	switch field {
	case SortTitle, SortYear, SortPopularity, SortCreatedAt:
	case "":
		field = SortTitle
	default:
		return nil, types.NewValidationError("unknown sort field %q", field)
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var after *cursor
	if cursorStr != "" {
		c, err := decodeCursor(cursorStr)
		if err != nil {
			return nil, err
		}
		after = &c
	}

	var all []*types.Node
	err := e.store.Nodes(ctx, func(node *types.Node) error {
		if !matchesFilter(node, filter) {
			return nil
		}
		all = append(all, node)
		return nil
	})
	if err != nil {
		return nil, err
	}
	total := len(all)

	// Total order: sort value in the requested direction, node ID ascending
	// as the unconditional tie-break.
	sort.Slice(all, func(i, j int) bool {
		vi, vj := sortValue(all[i], field), sortValue(all[j], field)
		if vi != vj {
			if desc {
				return vi > vj
			}
			return vi < vj
		}
		return all[i].CanonicalID < all[j].CanonicalID
	})

	start := 0
	if after != nil {
		// First position strictly after the cursor in the same order.
		start = sort.Search(len(all), func(i int) bool {
			vi := sortValue(all[i], field)
			if vi != after.SortValue {
				if desc {
					return vi < after.SortValue
				}
				return vi > after.SortValue
			}
			return all[i].CanonicalID > after.NodeID
		})
	}

	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := &Page{
		Items:   all[start:end],
		Total:   total,
		HasMore: end < len(all),
	}
	if page.HasMore {
		last := page.Items[len(page.Items)-1]
		page.NextCursor = encodeCursor(cursor{SortValue: sortValue(last, field), NodeID: last.CanonicalID})
	}
	return page, nil
}

func matchesFilter(node *types.Node, f Filter) bool {
	if node.Superseded {
		return false
	}
	if f.Kind != "" && node.Kind != f.Kind {
		return false
	}
	if f.YearFrom != 0 && node.Year < f.YearFrom {
		return false
	}
	if f.YearTo != 0 && node.Year > f.YearTo {
		return false
	}
	if f.TitlePrefix != "" && !strings.HasPrefix(strings.ToLower(node.Title), strings.ToLower(f.TitlePrefix)) {
		return false
	}
	if f.Provisional != nil && node.Provisional != *f.Provisional {
		return false
	}
	return true
}
