package ingest

import (
	"encoding/json"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/cinelex/rightsgraph/pkg/resolver"
	"github.com/cinelex/rightsgraph/pkg/types"
)

// rawRow is the wire shape of one ingestion row. Aliases cover the field
// name variants seen across feed providers.
type rawRow struct {
	Kind        string            `json:"kind"`
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Name        string            `json:"name"`
	Year        int               `json:"year"`
	ReleaseYear int               `json:"release_year"`
	Overview    string            `json:"overview"`
	Tagline     string            `json:"tagline"`
	Popularity  float64           `json:"popularity"`
	ExternalIDs map[string]string `json:"external_ids"`
}

// ParseRecord decodes one raw row into a resolver record. Malformed JSON
// gets one repair attempt before the row is rejected with a ValidationError.
func ParseRecord(data []byte) (*resolver.Record, error) {
	var row rawRow
	if err := json.Unmarshal(data, &row); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return nil, types.NewValidationError("unparseable row: %s", err)
		}
		if err := json.Unmarshal([]byte(repaired), &row); err != nil {
			return nil, types.NewValidationError("unparseable row: %s", err)
		}
	}
	return normalizeRow(&row)
}

func normalizeRow(row *rawRow) (*resolver.Record, error) {
	title := strings.TrimSpace(row.Title)
	if title == "" {
		title = strings.TrimSpace(row.Name)
	}
	if title == "" {
		return nil, types.NewValidationError("row has no title")
	}

	kind := row.Kind
	if kind == "" {
		kind = row.Type
	}
	if kind == "" {
		kind = string(types.KindAsset)
	}
	switch types.NodeKind(kind) {
	case types.KindAsset, types.KindPlatform, types.KindTerritory, types.KindPerson:
	default:
		return nil, types.NewValidationError("unknown kind %q", kind)
	}

	year := row.Year
	if year == 0 {
		year = row.ReleaseYear
	}

	ids := make(map[string]string, len(row.ExternalIDs))
	for scheme, value := range row.ExternalIDs {
		scheme = strings.ToLower(strings.TrimSpace(scheme))
		value = strings.TrimSpace(value)
		if scheme == "" || value == "" {
			continue
		}
		ids[scheme] = value
	}
	if len(ids) == 0 {
		ids = nil
	}

	return &resolver.Record{
		Kind:        types.NodeKind(kind),
		Title:       title,
		Year:        year,
		Overview:    strings.TrimSpace(row.Overview),
		Tagline:     strings.TrimSpace(row.Tagline),
		Popularity:  row.Popularity,
		ExternalIDs: ids,
	}, nil
}
