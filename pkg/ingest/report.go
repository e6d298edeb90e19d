package ingest

import "time"

// RowError records one rejected row.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Report summarizes an ingestion run. Processed counts every row seen,
// Stored counts rows that changed the catalog, Failed counts rejected rows.
type Report struct {
	RunID     string        `json:"run_id"`
	Processed int           `json:"processed"`
	Stored    int           `json:"stored"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Errors    []RowError    `json:"errors,omitempty"`
}
