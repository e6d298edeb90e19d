package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
)

// AuditRecord is one row's resolution outcome in the audit trail.
type AuditRecord struct {
	Line        int       `parquet:"line"`
	CanonicalID string    `parquet:"canonical_id"`
	Outcome     string    `parquet:"outcome"`
	Confidence  float64   `parquet:"confidence"`
	Stored      bool      `parquet:"stored"`
	Error       string    `parquet:"error"`
	Timestamp   time.Time `parquet:"timestamp"`
}

// AuditWriter buffers per-row outcomes and writes them as Parquet files,
// one file per flush.
type AuditWriter struct {
	outputDir string
	batchSize int

	mu     sync.Mutex
	buffer []AuditRecord
}

// NewAuditWriter creates the audit directory if needed.
func NewAuditWriter(outputDir string) (*AuditWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	return &AuditWriter{
		outputDir: outputDir,
		batchSize: 1000,
		buffer:    make([]AuditRecord, 0, 1000),
	}, nil
}

// Record buffers one row outcome, flushing when the buffer fills.
func (w *AuditWriter) Record(out RowOutcome) {
	rec := AuditRecord{
		Line:        out.Line,
		CanonicalID: out.CanonicalID,
		Outcome:     string(out.Outcome),
		Confidence:  out.Confidence,
		Stored:      out.Stored,
		Timestamp:   time.Now().UTC(),
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, rec)
	if len(w.buffer) >= w.batchSize {
		_ = w.flush()
	}
}

// Flush writes any buffered records to a new Parquet file.
func (w *AuditWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flush()
}

// flush requires the lock.
func (w *AuditWriter) flush() error {
	if len(w.buffer) == 0 {
		return nil
	}
	name := fmt.Sprintf("ingest_audit_%s_%d.parquet", time.Now().Format("20060102_150405"), time.Now().UnixNano())
	if err := parquet.WriteFile(filepath.Join(w.outputDir, name), w.buffer); err != nil {
		return fmt.Errorf("writing audit parquet file: %w", err)
	}
	w.buffer = w.buffer[:0]
	return nil
}
